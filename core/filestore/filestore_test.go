package filestore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveAndRemove(t *testing.T) {
	s, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ref, err := s.Save("Policy.PDF", strings.NewReader("hello"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(ref, ".pdf") {
		t.Fatalf("expected lowercased extension kept, got %q", ref)
	}
	data, err := os.ReadFile(s.PathFor(ref))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Fatalf("stored content = %q", data)
	}
	if err := s.Remove(ref); err != nil {
		t.Fatal(err)
	}
	// Removing again must stay silent.
	if err := s.Remove(ref); err != nil {
		t.Fatalf("second remove: %v", err)
	}
}

func TestPathForStripsTraversal(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDiskStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	p := s.PathFor("../../etc/passwd")
	if filepath.Dir(p) != dir {
		t.Fatalf("path escaped upload dir: %s", p)
	}
}
