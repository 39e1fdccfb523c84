package vm

import (
	"errors"
	"testing"
)

func TestSnapshotRestoreAtChoice(t *testing.T) {
	story := mustStory(t, choiceStory)
	a, err := NewSession(story, WithSeed(3))
	if err != nil {
		t.Fatal(err)
	}
	mustContinue(t, a)

	snap, err := a.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Choices) != 2 {
		t.Fatalf("snapshot choices = %d, want 2", len(snap.Choices))
	}

	if err := a.Choose(0); err != nil {
		t.Fatal(err)
	}
	if got := mustContinue(t, a).Text(); got != "You chose red.\n" {
		t.Fatalf("a: Text() = %q", got)
	}

	b, err := NewSession(story)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Restore(snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if b.Seed() != 3 {
		t.Fatalf("restored seed = %d, want 3", b.Seed())
	}
	choices := b.Choices()
	if len(choices) != 2 || choices[1].Text != "Blue" {
		t.Fatalf("restored choices = %+v", choices)
	}
	if err := b.Choose(1); err != nil {
		t.Fatal(err)
	}
	turn := mustContinue(t, b)
	if got := turn.Text(); got != "You chose blue.\n" {
		t.Fatalf("b: Text() = %q", got)
	}
	if !turn.Ended {
		t.Fatal("b should have ended")
	}
}

func TestSnapshotCarriesGlobals(t *testing.T) {
	story := mustStory(t, globalsStory)
	a, err := NewSession(story)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.SetVariable("x", IntValue(41)); err != nil {
		t.Fatal(err)
	}
	snap, err := a.Snapshot()
	if err != nil {
		t.Fatal(err)
	}

	b, err := NewSession(story)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Restore(snap); err != nil {
		t.Fatal(err)
	}
	if got := mustContinue(t, b).Text(); got != "42\n" {
		t.Fatalf("Text() = %q, want %q", got, "42\n")
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	s := mustSession(t, globalsStory)
	snap, err := s.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	mustContinue(t, s)
	if got := snap.Globals["x"].Int; got != 5 {
		t.Fatalf("snapshot x = %d after Continue, want 5", got)
	}
}

func TestRestoreRejectsOtherStory(t *testing.T) {
	snap, err := mustSession(t, helloStory).Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	s := mustSession(t, choiceStory)
	if err := s.Restore(snap); !errors.Is(err, ErrSnapshotMismatch) {
		t.Fatalf("Restore error = %v, want ErrSnapshotMismatch", err)
	}
	if err := s.Restore(nil); !errors.Is(err, ErrSnapshotMismatch) {
		t.Fatalf("Restore(nil) error = %v, want ErrSnapshotMismatch", err)
	}
	if got := mustContinue(t, s).Text(); got != "Pick one.\n" {
		t.Fatalf("failed restore changed the session: %q", got)
	}
}

func TestRestoreRejectsUnknownContainer(t *testing.T) {
	story := mustStory(t, choiceStory)
	s, err := NewSession(story)
	if err != nil {
		t.Fatal(err)
	}
	snap, err := s.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	snap.Threads[0].Frames[0].Pointer.Container = "9.nowhere"
	if err := s.Restore(snap); !errors.Is(err, ErrSnapshotMismatch) {
		t.Fatalf("Restore error = %v, want ErrSnapshotMismatch", err)
	}
}

func TestRestoreClearsFault(t *testing.T) {
	story := mustStory(t, choiceStory)
	s, err := NewSession(story)
	if err != nil {
		t.Fatal(err)
	}
	snap, err := s.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	s.fault = ErrRanOutOfContent
	if _, err := s.Continue(); !errors.Is(err, ErrSessionFaulted) {
		t.Fatalf("Continue error = %v, want ErrSessionFaulted", err)
	}
	if err := s.Restore(snap); err != nil {
		t.Fatal(err)
	}
	if s.Fault() != nil {
		t.Fatalf("Fault() = %v after Restore", s.Fault())
	}
	mustContinue(t, s)
}
