package watcher

import (
	"io/fs"
	"path/filepath"
	"strconv"
)

// CollectDirs lists every directory below root, excluding root itself.
// Unreadable directories are skipped.
func CollectDirs(root string) ([]string, error) {
	dirs := []string{}
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !entry.IsDir() || path == root {
			return nil
		}
		dirs = append(dirs, path)
		return nil
	})
	return dirs, err
}

func (o *Orchestrator) addTree(root string) {
	dirs, err := CollectDirs(root)
	if err != nil {
		o.logWatchFailure(root, err)
		return
	}
	for _, dir := range dirs {
		if err := o.addWatch(dir); err != nil {
			o.logWatchFailure(dir, err)
		}
	}
}

func (o *Orchestrator) addWatch(path string) error {
	o.mutex.Lock()
	if _, ok := o.watched[path]; ok {
		o.mutex.Unlock()
		return nil
	}
	if len(o.watched) >= o.maxWatches {
		o.mutex.Unlock()
		return ErrMaxWatchesExceeded
	}
	o.watched[path] = struct{}{}
	active := len(o.watched)
	o.mutex.Unlock()

	if err := o.watcher.Add(path); err != nil {
		o.mutex.Lock()
		delete(o.watched, path)
		o.mutex.Unlock()
		return err
	}
	o.logger.Debug("watch added", map[string]string{
		"path":           path,
		"active_watches": strconv.Itoa(active),
	})
	return nil
}

// forget drops bookkeeping for a removed directory; the kernel has already
// released the watch itself.
func (o *Orchestrator) forget(path string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	if path == o.root {
		return
	}
	delete(o.watched, path)
}

// logWatchFailure logs at error level since an unwatched subtree produces no
// notifications at all.
func (o *Orchestrator) logWatchFailure(path string, err error) {
	o.logger.Error("watch add failed; changes under this directory will not be reported", map[string]string{
		"path":  path,
		"error": err.Error(),
	})
}
