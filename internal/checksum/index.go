package checksum

import (
	"encoding/hex"
	"strconv"
	"sync"
)

// Identity is a stable per-file key that survives renames: device and inode on
// Unix, volume serial and file index on Windows.
type Identity struct {
	Device uint64
	Inode  uint64
}

func (id Identity) String() string {
	return strconv.FormatUint(id.Device, 10) + ":" + strconv.FormatUint(id.Inode, 10)
}

// Digest is the 128-bit MD5 of a file's bytes.
type Digest [16]byte

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Index maps file identities to their most recently observed digest. Entries are
// never removed; a stale entry for a deleted file is harmless.
type Index struct {
	mu      sync.RWMutex
	entries map[Identity]Digest
}

func NewIndex() *Index {
	return &Index{
		entries: make(map[Identity]Digest),
	}
}

func (index *Index) Lookup(id Identity) (Digest, bool) {
	if index == nil {
		return Digest{}, false
	}
	index.mu.RLock()
	digest, ok := index.entries[id]
	index.mu.RUnlock()
	return digest, ok
}

func (index *Index) Record(id Identity, digest Digest) {
	if index == nil {
		return
	}
	index.mu.Lock()
	index.entries[id] = digest
	index.mu.Unlock()
}

func (index *Index) Len() int {
	if index == nil {
		return 0
	}
	index.mu.RLock()
	defer index.mu.RUnlock()
	return len(index.entries)
}
