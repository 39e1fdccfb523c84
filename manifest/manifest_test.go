package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[story]
file = "build/tale.json"
seed = 42
step-budget = 5000
fallback-externals = true

[server]
addr = ":9000"
session-ttl = "10m"
sweep-interval = "15s"

[saves]
database = "/var/lib/quill/saves.db"

[log]
verbosity = 2
file = "quill.log"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Story.File != "build/tale.json" {
		t.Errorf("story file = %q, want build/tale.json", m.Story.File)
	}
	if m.Story.Seed == nil || *m.Story.Seed != 42 {
		t.Errorf("story seed = %v, want 42", m.Story.Seed)
	}
	if m.Story.StepBudget != 5000 {
		t.Errorf("step budget = %d, want 5000", m.Story.StepBudget)
	}
	if !m.Story.FallbackExternals {
		t.Error("fallback-externals = false, want true")
	}
	if m.Server.Addr != ":9000" {
		t.Errorf("server addr = %q, want :9000", m.Server.Addr)
	}
	if m.Server.SessionTTL.Duration != 10*time.Minute {
		t.Errorf("session ttl = %v, want 10m", m.Server.SessionTTL)
	}
	if m.Server.SweepInterval.Duration != 15*time.Second {
		t.Errorf("sweep interval = %v, want 15s", m.Server.SweepInterval)
	}
	if m.StoryPath() != filepath.Join(m.Dir, "build", "tale.json") {
		t.Errorf("StoryPath() = %q", m.StoryPath())
	}
	if m.DatabasePath() != "/var/lib/quill/saves.db" {
		t.Errorf("DatabasePath() = %q, want the absolute path unchanged", m.DatabasePath())
	}
	if m.Log.Verbosity != 2 {
		t.Errorf("log verbosity = %d, want 2", m.Log.Verbosity)
	}
	if p := m.LogPath(); p == nil || *p != filepath.Join(m.Dir, "quill.log") {
		t.Errorf("LogPath() = %v", p)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[story]\n")

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Story.File != DefaultStoryFile {
		t.Errorf("story file = %q, want %q", m.Story.File, DefaultStoryFile)
	}
	if m.Story.Seed != nil {
		t.Errorf("story seed = %d, want unset", *m.Story.Seed)
	}
	if m.Story.StepBudget != DefaultStepBudget {
		t.Errorf("step budget = %d, want %d", m.Story.StepBudget, DefaultStepBudget)
	}
	if m.Server.Addr != DefaultAddr {
		t.Errorf("server addr = %q, want %q", m.Server.Addr, DefaultAddr)
	}
	if m.Server.SessionTTL.Duration != DefaultSessionTTL {
		t.Errorf("session ttl = %v, want %v", m.Server.SessionTTL, DefaultSessionTTL)
	}
	if m.LogPath() != nil {
		t.Errorf("LogPath() = %q, want nil", *m.LogPath())
	}
}

func TestLoadManifestErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown key", "[story]\nfiel = \"x\"\n", "unknown key"},
		{"bad duration", "[server]\nsession-ttl = \"soon\"\n", "parse error"},
		{"negative budget", "[story]\nstep-budget = -1\n", "negative"},
		{"bad toml", "[story\n", "parse error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeManifest(t, dir, tt.content)
			_, err := Load(dir)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Load error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestFindAndLoad(t *testing.T) {
	// Create nested directory structure
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, dir, "[story]\nfile = \"found.json\"\n")

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Story.File != "found.json" {
		t.Errorf("story file = %q, want found.json", m.Story.File)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no quill.toml exists")
	}
}

func TestDefault(t *testing.T) {
	m := Default("/app")
	if m.StoryPath() != "/app/story.json" {
		t.Errorf("StoryPath() = %q, want /app/story.json", m.StoryPath())
	}
	if m.DatabasePath() != "/app/.quill/saves.db" {
		t.Errorf("DatabasePath() = %q, want /app/.quill/saves.db", m.DatabasePath())
	}
}
