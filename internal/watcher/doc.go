// Package watcher establishes fsnotify subscriptions over a directory tree and
// forwards every notification as a classify.RawEvent.
//
// fsnotify watches exactly one directory level on every platform it supports,
// so NativeRecursive is false and Start enumerates the tree once, adding a
// watch per subdirectory. Directories created after Start are not watched
// unless Options.FollowNewDirectories is set; without it the documented remedy
// is to restart the process, and Start logs a notice saying so.
package watcher
