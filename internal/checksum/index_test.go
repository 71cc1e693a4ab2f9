package checksum

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIndexLookupAndRecord(t *testing.T) {
	index := NewIndex()
	id := Identity{Device: 1, Inode: 42}

	if _, ok := index.Lookup(id); ok {
		t.Fatalf("expected empty index")
	}
	index.Record(id, Digest{1})
	index.Record(id, Digest{2})

	digest, ok := index.Lookup(id)
	if !ok || digest != (Digest{2}) {
		t.Fatalf("expected latest digest, got %v %v", digest, ok)
	}
	if index.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", index.Len())
	}
}

func TestHashFileDistinguishesContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.js")
	writeFile(t, path, "one")
	first, err := HashFile(path)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	writeFile(t, path, "two")
	second, err := HashFile(path)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if first == second {
		t.Fatalf("expected different digests")
	}
	// md5("one")
	if first.String() != "f97c5d29941bfb1b2fdab0874906ab82" {
		t.Fatalf("unexpected digest %s", first)
	}
}

func TestIdentitySurvivesRename(t *testing.T) {
	dir := t.TempDir()
	before := filepath.Join(dir, "a.js")
	after := filepath.Join(dir, "renamed.js")
	writeFile(t, before, "content")

	original, err := IdentityOf(before)
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	if err := os.Rename(before, after); err != nil {
		t.Fatalf("rename: %v", err)
	}
	renamed, err := IdentityOf(after)
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	if original != renamed {
		t.Fatalf("expected identity %s to survive rename, got %s", original, renamed)
	}
}

func TestIdentityDiffersBetweenFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.js"), "same")
	writeFile(t, filepath.Join(dir, "b.js"), "same")

	a, err := IdentityOf(filepath.Join(dir, "a.js"))
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	b, err := IdentityOf(filepath.Join(dir, "b.js"))
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct identities")
	}
}

func TestIdentityOfMissingPath(t *testing.T) {
	if _, err := IdentityOf(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("expected error for missing path")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
