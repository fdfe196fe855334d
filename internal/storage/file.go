// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/jeranaias/chatdesk/internal/util"
)

// =============================================================================
// FILE STORE
// =============================================================================

// File is a KV backed by a single JSON object on disk. Reads are served from
// a cached copy; every change re-reads the file and rewrites it atomically.
type File struct {
	path string

	mu      sync.RWMutex
	data    map[string]string
	drifted bool
	closed  bool
}

// OpenFile opens (or lazily creates) the JSON store at path.
func OpenFile(path string) (*File, error) {
	if path == "" {
		return nil, errors.New("storage: empty file path")
	}
	f := &File{path: path}
	data, err := f.readDisk()
	if err != nil {
		return nil, err
	}
	f.data = data
	return f, nil
}

// Path returns the backing file location.
func (f *File) Path() string {
	return f.path
}

func (f *File) Get(key string) (string, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return "", false, ErrClosed
	}
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *File) Set(key, value string) error {
	return f.update(func(m map[string]string) { m[key] = value })
}

func (f *File) Delete(key string) error {
	return f.update(func(m map[string]string) { delete(m, key) })
}

// update applies fn to what is on disk now rather than to the cached copy,
// so a value another process wrote since the last reload survives. If the
// file had drifted from the cache, the next Reload reports a change even
// though the cache already holds the new contents.
func (f *File) update(fn func(map[string]string)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}

	disk, err := f.readDisk()
	if err != nil {
		return err
	}
	if !equalMaps(f.data, disk) {
		f.drifted = true
	}

	next := cloneMap(disk)
	fn(next)
	if !equalMaps(next, disk) {
		if err := f.writeDisk(next); err != nil {
			f.data = disk
			return err
		}
	}
	f.data = next
	return nil
}

func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Reload re-reads the file, replacing the in-memory view. It reports whether
// any value changed.
func (f *File) Reload() (bool, error) {
	data, err := f.readDisk()
	if err != nil {
		return false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false, ErrClosed
	}
	changed := f.drifted || !equalMaps(f.data, data)
	f.data = data
	f.drifted = false
	return changed, nil
}

// Watch calls onChange whenever another process rewrites the store file,
// until ctx is done. The directory is watched rather than the file because
// atomic writes replace the inode.
func (f *File) Watch(ctx context.Context, onChange func()) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("storage: create watch dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("storage: create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("storage: watch %s: %w", dir, err)
	}

	target := filepath.Clean(f.path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
					!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}
				// Our own writes reload to identical content and are skipped.
				if changed, err := f.Reload(); err == nil && changed {
					onChange()
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}

func (f *File) readDisk() (map[string]string, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", f.path, err)
	}
	if len(raw) == 0 {
		return map[string]string{}, nil
	}

	data := map[string]string{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("storage: decode %s: %w", f.path, err)
	}
	return data, nil
}

func (f *File) writeDisk(data map[string]string) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode: %w", err)
	}
	// SECURITY: the store holds the session token.
	if err := util.AtomicWriteFile(f.path, raw, 0600); err != nil {
		return fmt.Errorf("storage: write %s: %w", f.path, err)
	}
	return nil
}

func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func equalMaps(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}
