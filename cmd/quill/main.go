// quill plays compiled ink stories: interactively on the terminal, or as a
// Connect session service with -serve.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/quill/manifest"
	"github.com/chazu/quill/pkg/inkpath"
	"github.com/chazu/quill/savestore"
	"github.com/chazu/quill/server"
	"github.com/chazu/quill/vm"
)

func main() {
	verbosity := flag.Int("v", -1, "Log verbosity (overrides quill.toml)")
	seedFlag := flag.String("seed", "", "Random seed (default: quill.toml or random)")
	budget := flag.Int("budget", -1, "Step budget per turn, 0 for unlimited")
	fallbacks := flag.Bool("fallbacks", false, "Run the story's own function when an external is unbound")
	trace := flag.Bool("trace", false, "Log every step at debug level")
	savesPath := flag.String("saves", "", "Save slot database (default: quill.toml [saves])")
	serveMode := flag.Bool("serve", false, "Start the story session server (Connect HTTP/JSON)")
	addr := flag.String("addr", "", "Server address (used with -serve)")
	dumpPath := flag.String("dump", "", "Print the compiled encoding of the element at PATH and exit (\".\" for the root)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: quill [options] [story.json]\n\n")
		fmt.Fprintf(os.Stderr, "Plays a compiled ink story. Settings are read from the nearest quill.toml.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  quill story.json                 # Play in the terminal\n")
		fmt.Fprintf(os.Stderr, "  quill -seed 7 story.json         # Repeatable randomness\n")
		fmt.Fprintf(os.Stderr, "  quill -dump knot.0 story.json    # Show a compiled container\n")
		fmt.Fprintf(os.Stderr, "  quill -serve -addr :8484         # Serve sessions over HTTP\n")
	}
	flag.Parse()

	cwd, err := os.Getwd()
	if err != nil {
		fatal(err)
	}
	m, err := manifest.FindAndLoad(cwd)
	if err != nil {
		fatal(err)
	}
	if m == nil {
		m = manifest.Default(cwd)
	}

	if *verbosity >= 0 {
		m.Log.Verbosity = *verbosity
	}
	commonlog.Configure(m.Log.Verbosity, m.LogPath())

	storyPath := m.StoryPath()
	if flag.NArg() > 0 {
		storyPath = flag.Arg(0)
	}
	story, err := loadStory(storyPath)
	if err != nil {
		fatal(err)
	}

	if *dumpPath != "" {
		if err := dump(story, *dumpPath); err != nil {
			fatal(err)
		}
		return
	}

	opts := []vm.Option{vm.WithTrace(*trace)}
	if *seedFlag != "" {
		seed, err := strconv.Atoi(*seedFlag)
		if err != nil {
			fatal(fmt.Errorf("bad -seed: %w", err))
		}
		opts = append(opts, vm.WithSeed(seed))
	} else if m.Story.Seed != nil {
		opts = append(opts, vm.WithSeed(*m.Story.Seed))
	}
	if *budget >= 0 {
		opts = append(opts, vm.WithStepBudget(*budget))
	} else {
		opts = append(opts, vm.WithStepBudget(m.Story.StepBudget))
	}
	opts = append(opts, vm.WithExternalFallbacks(*fallbacks || m.Story.FallbackExternals))

	dbPath := m.DatabasePath()
	if *savesPath != "" {
		dbPath = *savesPath
	}
	saves, err := savestore.Open(dbPath)
	if err != nil {
		fatal(err)
	}
	defer saves.Close()

	if *serveMode {
		if *addr != "" {
			m.Server.Addr = *addr
		}
		if err := serve(story, saves, m, opts); err != nil {
			fatal(err)
		}
		return
	}

	sess, err := vm.NewSession(story, opts...)
	if err != nil {
		fatal(err)
	}
	if err := play(sess, saves); err != nil {
		fatal(err)
	}
}

func loadStory(path string) (*vm.Story, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	story, err := vm.LoadStory(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if u := story.Unresolved(); len(u) > 0 {
		commonlog.GetLogger("quill").Warningf("%s: %d unresolved divert targets, first %s", path, len(u), u[0])
	}
	return story, nil
}

func dump(story *vm.Story, path string) error {
	var node vm.Node = story.Root
	if path != "." {
		p, err := inkpath.Parse(path)
		if err != nil {
			return err
		}
		n, ok := story.Resolve(p)
		if !ok {
			return fmt.Errorf("%w: %s", vm.ErrDivertTargetNotFound, path)
		}
		node = n
	}
	data, err := vm.EncodeNodeIndent(node, "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func serve(story *vm.Story, saves *savestore.Store, m *manifest.Manifest, opts []vm.Option) error {
	srv := server.New(story,
		server.WithSessionOptions(opts...),
		server.WithSaveStore(saves),
		server.WithSessionTTL(m.Server.SessionTTL.Duration, m.Server.SweepInterval.Duration),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe(m.Server.Addr) }()

	select {
	case err := <-errc:
		srv.Stop()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
