package storage

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Adda-Baaj/cine-khobor/internal/logger"
)

type fileMode int

const (
	appendMode fileMode = iota
	snapshotMode
)

// fileStore keeps ids in memory and persists them to a plain-text file,
// one id per line.
type fileStore struct {
	mu    sync.Mutex
	path  string
	mode  fileMode
	seen  map[string]struct{}
	dirty bool

	// loadFailed keeps a snapshot Flush from replacing a file it could not read.
	loadFailed bool
	pending    []string
}

// openFile loads the id file into memory. Read failures are logged and treated
// as "no prior state" so startup never fails on a damaged file. The file
// itself is left in place; later writes only append to it.
func openFile(path string, mode fileMode, log logger.Logger) *fileStore {
	seen, err := loadSeenFile(path)
	if err != nil {
		log.WarnObj("seen file unreadable; starting empty", "storage_error", map[string]any{
			"path":  path,
			"error": err.Error(),
		})
		seen = make(map[string]struct{})
	}
	return &fileStore{path: path, mode: mode, seen: seen, loadFailed: err != nil}
}

// loadSeenFile reads ids from path. A missing file yields an empty set;
// duplicate and blank lines are ignored.
func loadSeenFile(path string) (map[string]struct{}, error) {
	seen := make(map[string]struct{})
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return seen, nil
		}
		return seen, fmt.Errorf("read seen file: %w", err)
	}

	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		if id := strings.TrimSpace(sc.Text()); id != "" {
			seen[id] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return seen, fmt.Errorf("scan seen file: %w", err)
	}
	return seen, nil
}

func (f *fileStore) SeenItem(id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.seen[id]
	return ok, nil
}

// MarkItem in append mode writes and fsyncs the id before it becomes visible
// in memory; in snapshot mode it only marks the set dirty.
func (f *fileStore) MarkItem(id string) error {
	if err := validID(id); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.seen[id]; ok {
		return nil
	}
	if f.mode == snapshotMode {
		f.seen[id] = struct{}{}
		f.pending = append(f.pending, id)
		f.dirty = true
		return nil
	}

	if err := appendLine(f.path, id); err != nil {
		return err
	}
	f.seen[id] = struct{}{}
	return nil
}

func appendLine(path, line string) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open seen file: %w", err)
	}
	if _, err := file.WriteString(line + "\n"); err != nil {
		file.Close()
		return fmt.Errorf("append seen id: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("sync seen file: %w", err)
	}
	return file.Close()
}

// Flush rewrites the whole file atomically when snapshot marks are pending.
// If the file could not be read at open, pending ids are appended instead.
func (f *fileStore) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.mode != snapshotMode || !f.dirty {
		return nil
	}

	if f.loadFailed {
		for len(f.pending) > 0 {
			if err := appendLine(f.path, f.pending[0]); err != nil {
				return err
			}
			f.pending = f.pending[1:]
		}
		f.dirty = false
		return nil
	}

	ids := make([]string, 0, len(f.seen))
	for id := range f.seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if err := writeAtomic(f.path, []byte(strings.Join(ids, "\n")+"\n")); err != nil {
		return err
	}
	f.pending = nil
	f.dirty = false
	return nil
}

func writeAtomic(path string, data []byte) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace seen file: %w", err)
	}
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create storage directory: %w", err)
	}
	return nil
}

func (f *fileStore) Count() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen), nil
}

// Close flushes pending snapshot marks.
func (f *fileStore) Close() error {
	return f.Flush()
}
