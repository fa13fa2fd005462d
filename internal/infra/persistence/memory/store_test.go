package memory

import (
	"bytes"
	"context"
	"testing"
)

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	if err := s.SetState(ctx, map[string][]byte{"aa": []byte("one"), "bb": []byte("two")}); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := s.GetState(ctx, []string{"aa", "bb", "cc"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if !bytes.Equal(got["aa"], []byte("one")) {
		t.Fatalf("aa = %q", got["aa"])
	}
	if _, ok := got["cc"]; ok {
		t.Fatal("missing address must be absent, not empty")
	}
}

func TestGetStateCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	if err := s.SetState(ctx, map[string][]byte{"aa": []byte("one")}); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, _ := s.GetState(ctx, []string{"aa"})
	got["aa"][0] = 'X'

	again, _ := s.GetState(ctx, []string{"aa"})
	if !bytes.Equal(again["aa"], []byte("one")) {
		t.Fatalf("caller mutation leaked into store: %q", again["aa"])
	}
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	src := NewStore()
	if err := src.SetState(ctx, map[string][]byte{"aa": []byte("one"), "bb": []byte("two")}); err != nil {
		t.Fatalf("set: %v", err)
	}

	snapshot, err := src.ExportState(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	dst := NewStore()
	if err := dst.SetState(ctx, map[string][]byte{"stale": []byte("gone")}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := dst.ImportState(ctx, snapshot); err != nil {
		t.Fatalf("import: %v", err)
	}

	got, _ := dst.GetState(ctx, []string{"aa", "bb", "stale"})
	if len(got) != 2 {
		t.Fatalf("import must replace wholesale, got %v", got)
	}
	if !bytes.Equal(got["bb"], []byte("two")) {
		t.Fatalf("bb = %q", got["bb"])
	}
}
