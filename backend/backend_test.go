package backend

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	root := t.TempDir()
	b, err := New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func TestCreateWriteReadRoundTrip(t *testing.T) {
	b := newTestBackend(t)

	h, err := b.Create("/foo.txt", 0o644)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	n, err := b.WriteAt(h, []byte("hello"), 0)
	if err != nil || n != 5 {
		t.Fatalf("WriteAt: n=%d err=%v", n, err)
	}

	buf := make([]byte, 5)
	n, err = b.ReadAt(h, buf, 0)
	if err != nil || n != 5 || string(buf) != "hello" {
		t.Fatalf("ReadAt: n=%d err=%v buf=%q", n, err, buf)
	}

	if err := b.Release(h); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestMkDirRmDir(t *testing.T) {
	b := newTestBackend(t)

	if err := b.MkDir("/sub", 0o755); err != nil {
		t.Fatalf("MkDir: %v", err)
	}
	fi, err := b.GetAttr("/sub")
	if err != nil || !fi.IsDir() {
		t.Fatalf("GetAttr: fi=%v err=%v", fi, err)
	}
	if err := b.RmDir("/sub"); err != nil {
		t.Fatalf("RmDir: %v", err)
	}
	if _, err := b.GetAttr("/sub"); err == nil {
		t.Fatal("expected error after RmDir")
	}
}

func TestRename(t *testing.T) {
	b := newTestBackend(t)
	h, err := b.Create("/a.txt", 0o644)
	if err != nil {
		t.Fatal(err)
	}
	b.Release(h)

	if err := b.Rename("/a.txt", "/b.txt"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if _, err := b.GetAttr("/b.txt"); err != nil {
		t.Fatalf("expected renamed file present: %v", err)
	}
	if _, err := b.GetAttr("/a.txt"); err == nil {
		t.Fatal("expected original path gone after rename")
	}
}

func TestResolveConfinesEscapeToRoot(t *testing.T) {
	b := newTestBackend(t)
	if _, err := b.resolve("../../etc/passwd"); err != nil {
		// filepath.Clean("/../../etc/passwd") collapses to "/etc/passwd",
		// which is still inside Root once joined -- confirm it stays
		// within Root rather than escaping to the real /etc.
		t.Fatalf("unexpected resolve error: %v", err)
	}
	real, _ := b.resolve("../../etc/passwd")
	if filepath.Dir(real) == "/etc" {
		t.Fatalf("resolve escaped the backend root: %s", real)
	}
}

func TestAccessHonorsOwnerBits(t *testing.T) {
	b := newTestBackend(t)
	h, err := b.Create("/ro.txt", 0o400)
	if err != nil {
		t.Fatal(err)
	}
	b.Release(h)

	if err := b.Access("/ro.txt", 0o4); err != nil { // read
		t.Fatalf("expected read access granted: %v", err)
	}
	if err := b.Access("/ro.txt", 0o2); err == nil { // write
		t.Fatal("expected write access denied on 0400 file")
	}
}

func TestTruncateAndUtimens(t *testing.T) {
	b := newTestBackend(t)
	h, err := b.Create("/t.txt", 0o644)
	if err != nil {
		t.Fatal(err)
	}
	b.WriteAt(h, []byte("0123456789"), 0)
	b.Release(h)

	if err := b.Truncate("/t.txt", 4); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	fi, err := b.GetAttr("/t.txt")
	if err != nil || fi.Size() != 4 {
		t.Fatalf("size after truncate = %d, err=%v", fi.Size(), err)
	}

	now := fi.ModTime()
	if err := b.Utimens("/t.txt", now, now); err != nil {
		t.Fatalf("Utimens: %v", err)
	}
}

func TestReadDirListsEntries(t *testing.T) {
	b := newTestBackend(t)
	os.WriteFile(filepath.Join(b.Root, "one.txt"), []byte("x"), 0o644)
	os.WriteFile(filepath.Join(b.Root, "two.txt"), []byte("y"), 0o644)

	entries, err := b.ReadDir("/")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
}
