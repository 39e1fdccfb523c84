package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/chazu/quill/savestore"
	"github.com/chazu/quill/vm"
)

const historyFile = ".quill_history"

const playerHelp = `Enter a choice number, or a command:
  :save NAME     save the session to a slot
  :load NAME     restore a slot
  :saves         list saved slots
  :restart       start the story again
  :goto PATH     jump to a knot or stitch
  :vars          show global variables
  :quit          leave
`

// player drives a session from the terminal.
type player struct {
	sess  *vm.Session
	saves *savestore.Store
	out   io.Writer
}

func play(sess *vm.Session, saves *savestore.Store) error {
	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	// Load history (best-effort)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	p := &player{sess: sess, saves: saves, out: os.Stdout}
	p.advance()

	for {
		line, err := ln.Prompt("> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(p.out)
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ln.AppendHistory(line)
		if quit := p.handle(line); quit {
			return nil
		}
	}
}

// advance continues the story and prints the turn and its choices.
func (p *player) advance() {
	if !p.sess.CanContinue() {
		p.showChoices()
		return
	}
	turn, err := p.sess.ContinueAll()
	if err != nil {
		fmt.Fprintf(p.out, "error: %v\n(use :restart or :load to resume)\n", err)
		return
	}
	for _, l := range turn.Lines() {
		if len(l.Tags) > 0 {
			fmt.Fprintf(p.out, "%s  # %s\n", l.Text, strings.Join(l.Tags, " # "))
		} else {
			fmt.Fprintln(p.out, l.Text)
		}
	}
	for _, w := range turn.Warnings {
		fmt.Fprintf(p.out, "warning: %s\n", w)
	}
	p.showChoices()
}

func (p *player) showChoices() {
	choices := p.sess.Choices()
	switch {
	case len(choices) > 0:
		fmt.Fprintln(p.out)
		for i, c := range choices {
			fmt.Fprintf(p.out, "%d: %s\n", i+1, c.Text)
		}
	case p.sess.Ended():
		fmt.Fprintln(p.out, "\n-- THE END --")
	case p.sess.Fault() == nil:
		fmt.Fprintln(p.out, "\n-- the story has stopped --")
	}
}

// handle runs one line of input and reports whether to quit.
func (p *player) handle(line string) bool {
	if !strings.HasPrefix(line, ":") {
		n, err := strconv.Atoi(line)
		if err != nil {
			fmt.Fprint(p.out, playerHelp)
			return false
		}
		if err := p.sess.Choose(n - 1); err != nil {
			fmt.Fprintf(p.out, "error: %v\n", err)
			return false
		}
		fmt.Fprintln(p.out)
		p.advance()
		return false
	}

	fields := strings.Fields(line)
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}
	ctx := context.Background()

	switch fields[0] {
	case ":quit", ":q":
		return true
	case ":help", ":h":
		fmt.Fprint(p.out, playerHelp)
	case ":restart":
		if err := p.sess.Restart(); err != nil {
			fmt.Fprintf(p.out, "error: %v\n", err)
			return false
		}
		p.advance()
	case ":goto":
		if err := p.sess.GoTo(arg); err != nil {
			fmt.Fprintf(p.out, "error: %v\n", err)
			return false
		}
		p.advance()
	case ":save":
		if arg == "" {
			fmt.Fprintln(p.out, "usage: :save NAME")
			return false
		}
		slot, err := p.saves.SaveSession(ctx, arg, p.sess)
		if err != nil {
			fmt.Fprintf(p.out, "error: %v\n", err)
			return false
		}
		fmt.Fprintf(p.out, "saved %q (turn %d)\n", slot.Name, slot.Turn)
	case ":load":
		if arg == "" {
			fmt.Fprintln(p.out, "usage: :load NAME")
			return false
		}
		slot, err := p.saves.LoadSession(ctx, arg, p.sess)
		if err != nil {
			fmt.Fprintf(p.out, "error: %v\n", err)
			return false
		}
		fmt.Fprintf(p.out, "loaded %q (turn %d, saved %s)\n", slot.Name, slot.Turn, slot.SavedAt.Local().Format("2006-01-02 15:04"))
		p.advance()
	case ":saves":
		slots, err := p.saves.List(ctx, p.sess.Story().Fingerprint())
		if err != nil {
			fmt.Fprintf(p.out, "error: %v\n", err)
			return false
		}
		if len(slots) == 0 {
			fmt.Fprintln(p.out, "no saves")
		}
		for _, s := range slots {
			fmt.Fprintf(p.out, "  %-16s turn %-4d %s\n", s.Name, s.Turn, s.SavedAt.Local().Format("2006-01-02 15:04"))
		}
	case ":vars":
		for _, name := range p.sess.GlobalNames() {
			v, _ := p.sess.Variable(name)
			fmt.Fprintf(p.out, "  %s = %s\n", name, v)
		}
	default:
		fmt.Fprintf(p.out, "unknown command %s\n", fields[0])
		fmt.Fprint(p.out, playerHelp)
	}
	return false
}
