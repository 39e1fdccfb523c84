// Package manifest handles quill.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the manifest file looked up in a project directory.
const FileName = "quill.toml"

// Manifest represents a quill.toml project configuration.
type Manifest struct {
	Story  StoryConfig  `toml:"story"`
	Server ServerConfig `toml:"server"`
	Saves  SavesConfig  `toml:"saves"`
	Log    LogConfig    `toml:"log"`

	// Dir is the directory containing the quill.toml file (set at load time).
	Dir string `toml:"-"`
}

// StoryConfig selects the compiled story and how sessions play it.
type StoryConfig struct {
	File              string `toml:"file"`
	Seed              *int   `toml:"seed"`
	StepBudget        int    `toml:"step-budget"`
	FallbackExternals bool   `toml:"fallback-externals"`
}

// ServerConfig configures the session service.
type ServerConfig struct {
	Addr          string   `toml:"addr"`
	SessionTTL    Duration `toml:"session-ttl"`
	SweepInterval Duration `toml:"sweep-interval"`
}

// SavesConfig configures the save slot database.
type SavesConfig struct {
	Database string `toml:"database"`
}

// LogConfig configures logging.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Duration is a time.Duration written as a string such as "30m".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Defaults.
const (
	DefaultStoryFile     = "story.json"
	DefaultAddr          = "localhost:8484"
	DefaultSessionTTL    = 30 * time.Minute
	DefaultSweepInterval = time.Minute
	DefaultDatabase      = ".quill/saves.db"
	DefaultStepBudget    = 1_000_000
)

// Default returns a manifest with every default applied, rooted at dir.
func Default(dir string) *Manifest {
	m := &Manifest{Dir: dir}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.Story.File == "" {
		m.Story.File = DefaultStoryFile
	}
	if m.Story.StepBudget == 0 {
		m.Story.StepBudget = DefaultStepBudget
	}
	if m.Server.Addr == "" {
		m.Server.Addr = DefaultAddr
	}
	if m.Server.SessionTTL.Duration == 0 {
		m.Server.SessionTTL.Duration = DefaultSessionTTL
	}
	if m.Server.SweepInterval.Duration == 0 {
		m.Server.SweepInterval.Duration = DefaultSweepInterval
	}
	if m.Saves.Database == "" {
		m.Saves.Database = DefaultDatabase
	}
}

// Load parses a quill.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}
	if m.Story.StepBudget < 0 {
		return nil, fmt.Errorf("%s: step-budget must not be negative", path)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()
	return &m, nil
}

// FindAndLoad walks up from startDir to find a quill.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// StoryPath returns the absolute path of the compiled story.
func (m *Manifest) StoryPath() string {
	return m.resolve(m.Story.File)
}

// DatabasePath returns the absolute path of the save database.
func (m *Manifest) DatabasePath() string {
	if m.Saves.Database == ":memory:" {
		return m.Saves.Database
	}
	return m.resolve(m.Saves.Database)
}

// LogPath returns the log file path, or nil to log to stderr.
func (m *Manifest) LogPath() *string {
	if m.Log.File == "" {
		return nil
	}
	p := m.resolve(m.Log.File)
	return &p
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
