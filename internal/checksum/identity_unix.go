//go:build !windows

package checksum

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// IdentityOf resolves path (following symlinks) to its device and inode.
func IdentityOf(path string) (Identity, error) {
	var stat unix.Stat_t
	if err := unix.Stat(path, &stat); err != nil {
		return Identity{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return Identity{
		Device: uint64(stat.Dev),
		Inode:  uint64(stat.Ino),
	}, nil
}
