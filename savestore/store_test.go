package savestore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/chazu/quill/vm"
)

const choiceStory = `{"inkVersion":21,"root":[
	["^Pick.","\n",
	 "ev","str","^A","/str","/ev",{"*":"0.c-0","flg":20},
	 "ev","str","^B","/str","/ev",{"*":"0.c-1","flg":20},
	 {"c-0":["^Took A","\n","end",{"#f":5}],
	  "c-1":["^Took B","\n","end",{"#f":5}]}],
	"done",null]}`

func openStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "saves", "quill.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func newSession(t *testing.T) *vm.Session {
	t.Helper()
	story, err := vm.ParseStory([]byte(choiceStory))
	if err != nil {
		t.Fatal(err)
	}
	s, err := vm.NewSession(story)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSaveAndLoadSession(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)

	a := newSession(t)
	if _, err := a.Continue(); err != nil {
		t.Fatal(err)
	}
	slot, err := st.SaveSession(ctx, "before-choice", a)
	if err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if slot.Story != a.Story().Fingerprint() || slot.Revision == "" {
		t.Fatalf("slot = %+v", slot)
	}

	b := newSession(t)
	got, err := st.LoadSession(ctx, "before-choice", b)
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if got.Revision != slot.Revision {
		t.Fatalf("revision = %s, want %s", got.Revision, slot.Revision)
	}
	if err := b.Choose(1); err != nil {
		t.Fatal(err)
	}
	turn, err := b.Continue()
	if err != nil {
		t.Fatal(err)
	}
	if turn.Text() != "Took B\n" {
		t.Fatalf("Text() = %q", turn.Text())
	}
}

func TestSaveReplacesSlot(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	s := newSession(t)

	first, err := st.SaveSession(ctx, "auto", s)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Continue(); err != nil {
		t.Fatal(err)
	}
	second, err := st.SaveSession(ctx, "auto", s)
	if err != nil {
		t.Fatal(err)
	}
	if first.Revision == second.Revision {
		t.Fatal("saving again should create a new revision")
	}

	slots, err := st.List(ctx, s.Story().Fingerprint())
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 1 || slots[0].Revision != second.Revision {
		t.Fatalf("List = %+v, want the second revision only", slots)
	}
}

func TestListAndDelete(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	s := newSession(t)
	story := s.Story().Fingerprint()

	for _, name := range []string{"one", "two"} {
		if _, err := st.SaveSession(ctx, name, s); err != nil {
			t.Fatal(err)
		}
	}
	slots, err := st.List(ctx, story)
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 2 {
		t.Fatalf("List = %d slots, want 2", len(slots))
	}

	if err := st.Delete(ctx, story, "one"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := st.Delete(ctx, story, "one"); !errors.Is(err, ErrSlotNotFound) {
		t.Fatalf("second Delete error = %v, want ErrSlotNotFound", err)
	}
	if _, _, err := st.Get(ctx, story, "one"); !errors.Is(err, ErrSlotNotFound) {
		t.Fatalf("Get error = %v, want ErrSlotNotFound", err)
	}
	if slots, _ := st.List(ctx, "other-story"); len(slots) != 0 {
		t.Fatalf("List(other-story) = %+v", slots)
	}
}

func TestPutRejectsGarbage(t *testing.T) {
	st := openStore(t)
	if _, err := st.Put(context.Background(), "x", 0, []byte("not cbor")); err == nil {
		t.Fatal("Put should reject data that is not a snapshot")
	}
	if _, err := st.Put(context.Background(), "", 0, nil); err == nil {
		t.Fatal("Put should reject an empty slot name")
	}
}
