// Package checksum tracks the last known content digest of every file under the
// watched root, keyed by the file's on-disk identity rather than its path so that a
// rename without a content change is recognised as such.
//
// The index lives only for the lifetime of the process. It is rebuilt by Scan at
// startup and is never persisted.
package checksum
