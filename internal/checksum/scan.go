package checksum

import (
	"os"
	"path/filepath"
	"strconv"

	"assetwatch/internal/logging"
)

// ScanStats summarises a baseline scan.
type ScanStats struct {
	Files   int
	Skipped int
}

// Files lists every regular file under root as an absolute path, depth first
// and in lexical order within each directory. Symlinks are followed for files
// but never descended into as directories. Unreadable entries are reported to
// onError (when non-nil) and skipped; only a failure to read root itself is
// returned.
func Files(root string, onError func(path string, err error)) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	rootEntries, err := os.ReadDir(absRoot)
	if err != nil {
		return nil, err
	}

	report := func(path string, err error) {
		if onError != nil {
			onError(path, err)
		}
	}

	type frame struct {
		dir     string
		entries []os.DirEntry
	}
	stack := []frame{{dir: absRoot, entries: rootEntries}}
	files := []string{}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if len(top.entries) == 0 {
			stack = stack[:len(stack)-1]
			continue
		}
		entry := top.entries[0]
		top.entries = top.entries[1:]
		path := filepath.Join(top.dir, entry.Name())

		if entry.IsDir() {
			children, err := os.ReadDir(path)
			if err != nil {
				report(path, err)
				continue
			}
			stack = append(stack, frame{dir: path, entries: children})
			continue
		}

		info, err := os.Stat(path)
		if err != nil {
			report(path, err)
			continue
		}
		if info.Mode().IsRegular() {
			files = append(files, path)
		}
	}
	return files, nil
}

// Scan records the identity and digest of every regular file under root.
// It runs to completion before any watch is established so that the first
// event for a pre-existing file has a baseline to compare against.
func Scan(root string, index *Index, logger *logging.Logger) (ScanStats, error) {
	stats := ScanStats{}
	skip := func(path string, err error) {
		stats.Skipped++
		logger.Warn("baseline scan skipped path", map[string]string{
			"path":  path,
			"error": err.Error(),
		})
	}

	paths, err := Files(root, skip)
	if err != nil {
		return stats, err
	}
	for _, path := range paths {
		id, err := IdentityOf(path)
		if err != nil {
			skip(path, err)
			continue
		}
		digest, err := HashFile(path)
		if err != nil {
			skip(path, err)
			continue
		}
		index.Record(id, digest)
		stats.Files++
	}

	logger.Info("baseline scan complete", map[string]string{
		"root":    root,
		"files":   strconv.Itoa(stats.Files),
		"skipped": strconv.Itoa(stats.Skipped),
	})
	return stats, nil
}
