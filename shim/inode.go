package shim

import (
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/faultfs/faultfs/fuseops"
)

// inodeTable maps inode IDs to mount-relative paths, generalizing
// samples/roloopbackfs's getOrCreateInode/sync.Map pattern from a
// read-only listing cache to a read-write path resolver that also
// records paths created through the mount.
type inodeTable struct {
	mu      sync.Mutex
	byID    map[fuseops.InodeID]string
	nextTmp uint64
}

func newInodeTable() *inodeTable {
	t := &inodeTable{byID: make(map[fuseops.InodeID]string)}
	t.byID[fuseops.RootInodeID] = "/"
	return t
}

// pathFor returns the mount-relative path for a known inode.
func (t *inodeTable) pathFor(id fuseops.InodeID) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.byID[id]
	return p, ok
}

// idForRealInode derives a stable InodeID from a real backing file's
// device inode number, matching roloopbackfs's use of syscall.Stat_t.Ino
// so that repeated LookUpInode calls for the same child return the same
// ID without a persistent table.
func idForRealInode(fi os.FileInfo) fuseops.InodeID {
	if st, ok := fi.Sys().(*syscall.Stat_t); ok && st != nil {
		return fuseops.InodeID(st.Ino)
	}
	return 0
}

// register records id -> path and returns id, allocating a synthetic ID
// when id is 0, i.e. when the stat result carried no *syscall.Stat_t to
// take a real inode number from.
func (t *inodeTable) register(id fuseops.InodeID, path string) fuseops.InodeID {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id == 0 {
		t.nextTmp++
		id = fuseops.InodeID(1<<63 | t.nextTmp)
	}
	t.byID[id] = path
	return id
}

func (t *inodeTable) forget(id fuseops.InodeID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byID, id)
}

func (t *inodeTable) rename(oldPath, newPath string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, p := range t.byID {
		if p == oldPath {
			t.byID[id] = newPath
		} else if rel, err := filepath.Rel(oldPath, p); err == nil && !isParentEscape(rel) {
			t.byID[id] = filepath.Join(newPath, rel)
		}
	}
}

func isParentEscape(rel string) bool {
	return rel == ".." || len(rel) >= 3 && rel[:3] == "../"
}
