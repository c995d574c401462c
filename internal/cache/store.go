// Package cache persists market snapshots as a set of chunk files that are
// swapped in atomically.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"eve-hubcompare/internal/logger"
	"eve-hubcompare/internal/market"
	"eve-hubcompare/internal/metrics"
)

const (
	// TTL is the age after which a chunk is no longer fresh.
	TTL = 6 * time.Hour

	chunkPrefix = "market_cache_chunk_"
	chunkSuffix = ".json"
	tmpSuffix   = ".tmp"
	bakSuffix   = ".bak"
	lockName    = ".market_cache.lock"
)

// ErrChunkWrite is returned when a save is aborted before the swap.
var ErrChunkWrite = errors.New("cache: chunk write failed")

// Store reads and writes chunked snapshots under one directory.
// mu orders callers within the process; the file lock orders processes.
type Store struct {
	dir       string
	chunkSize int
	mu        sync.RWMutex
	saveMu    sync.Mutex

	now       func() time.Time
	writeFile func(name string, data []byte, perm os.FileMode) error
	rename    func(oldpath, newpath string) error
}

// New creates a store in dir with chunkSize commodities per chunk.
func New(dir string, chunkSize int) *Store {
	if chunkSize < 1 {
		chunkSize = 3
	}
	return &Store{
		dir:       dir,
		chunkSize: chunkSize,
		now:       time.Now,
		writeFile: os.WriteFile,
		rename:    os.Rename,
	}
}

// fileLock returns a lock on its own file handle. flock tracks state per
// handle, so sharing one between callers would let them release each other.
func (s *Store) fileLock() *flock.Flock {
	return flock.New(filepath.Join(s.dir, lockName))
}

// Dir returns the cache directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) chunkPath(n int) string {
	return filepath.Join(s.dir, chunkPrefix+strconv.Itoa(n)+chunkSuffix)
}

// chunkFiles lists the live chunk files ordered by chunk number.
func (s *Store) chunkFiles() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, chunkPrefix+"*"+chunkSuffix))
	if err != nil {
		return nil, err
	}
	sort.Slice(matches, func(i, j int) bool { return chunkNumber(matches[i]) < chunkNumber(matches[j]) })
	return matches, nil
}

func chunkNumber(path string) int {
	base := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), chunkPrefix), chunkSuffix)
	n, err := strconv.Atoi(base)
	if err != nil {
		return 1 << 30
	}
	return n
}

// partition splits the snapshot into chunks of chunkSize commodities in
// ascending id order.
func (s *Store) partition(snap market.Snapshot) []market.Snapshot {
	ids := make([]int32, 0, len(snap))
	for id := range snap {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var chunks []market.Snapshot
	for start := 0; start < len(ids); start += s.chunkSize {
		end := start + s.chunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := make(market.Snapshot, end-start)
		for _, id := range ids[start:end] {
			chunk[id] = snap[id]
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

// Save writes snap as a new chunk set. Every chunk is first written to a
// temporary file; if any of them fails the temporaries are removed and the
// live chunk set is left untouched. The swap itself runs under an exclusive
// file lock so readers never see a mix of old and new chunks.
func (s *Store) Save(snap market.Snapshot) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("%w: create dir: %v", ErrChunkWrite, err)
	}

	chunks := s.partition(snap)
	temps := make([]string, 0, len(chunks))
	abort := func(n int, err error) error {
		for _, tmp := range temps {
			os.Remove(tmp)
		}
		metrics.CacheWriteFailures.Inc()
		logger.Error("CACHE", fmt.Sprintf("Save aborted at chunk %d: %v", n, err))
		return fmt.Errorf("%w: chunk %d: %v", ErrChunkWrite, n, err)
	}

	for i, chunk := range chunks {
		n := i + 1
		data, err := json.Marshal(chunk)
		if err != nil {
			return abort(n, err)
		}
		tmp := s.chunkPath(n) + tmpSuffix
		temps = append(temps, tmp)
		if err := s.writeFile(tmp, data, 0o600); err != nil {
			return abort(n, err)
		}
		if _, err := os.Stat(tmp); err != nil {
			return abort(n, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	lock := s.fileLock()
	if err := lock.Lock(); err != nil {
		return abort(0, fmt.Errorf("lock: %w", err))
	}
	defer lock.Unlock()

	if err := s.swap(temps); err != nil {
		return abort(0, err)
	}
	logger.Info("CACHE", fmt.Sprintf("Saved %d commodities in %d chunks", len(snap), len(chunks)))
	return nil
}

// swap moves the live chunks aside, renames temps into place and only then
// drops the old set. Any rename failure restores the old set.
func (s *Store) swap(temps []string) error {
	old, err := s.chunkFiles()
	if err != nil {
		return err
	}
	var moved []string
	restore := func() {
		for _, f := range moved {
			if err := s.rename(f+bakSuffix, f); err != nil {
				logger.Error("CACHE", fmt.Sprintf("restore %s: %v", filepath.Base(f), err))
			}
		}
	}
	for _, f := range old {
		if err := s.rename(f, f+bakSuffix); err != nil {
			restore()
			return fmt.Errorf("back up %s: %w", filepath.Base(f), err)
		}
		moved = append(moved, f)
	}

	for i, tmp := range temps {
		if err := s.rename(tmp, s.chunkPath(i+1)); err != nil {
			for j := 0; j < i; j++ {
				os.Remove(s.chunkPath(j + 1))
			}
			restore()
			return fmt.Errorf("rename chunk %d: %w", i+1, err)
		}
	}
	for _, f := range moved {
		if err := os.Remove(f + bakSuffix); err != nil && !os.IsNotExist(err) {
			logger.Warn("CACHE", fmt.Sprintf("remove backup %s: %v", filepath.Base(f), err))
		}
	}
	return nil
}

// Load merges every chunk into one snapshot. With freshOnly, chunks older
// than TTL are skipped. Unreadable chunks are skipped with a warning; an empty
// directory yields an empty snapshot.
func (s *Store) Load(freshOnly bool) (market.Snapshot, error) {
	snap := make(market.Snapshot)
	if _, err := os.Stat(s.dir); os.IsNotExist(err) {
		return snap, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	lock := s.fileLock()
	if err := lock.RLock(); err != nil {
		return snap, fmt.Errorf("cache: shared lock: %w", err)
	}
	defer lock.Unlock()

	files, err := s.chunkFiles()
	if err != nil {
		return snap, fmt.Errorf("cache: list chunks: %w", err)
	}
	now := s.now()
	for _, f := range files {
		if freshOnly {
			info, err := os.Stat(f)
			if err != nil || now.Sub(info.ModTime()) > TTL {
				continue
			}
		}
		data, err := os.ReadFile(f)
		if err != nil {
			logger.Warn("CACHE", fmt.Sprintf("read %s: %v", filepath.Base(f), err))
			continue
		}
		var chunk market.Snapshot
		if err := json.Unmarshal(data, &chunk); err != nil {
			logger.Warn("CACHE", fmt.Sprintf("decode %s: %v", filepath.Base(f), err))
			continue
		}
		for id, c := range chunk {
			snap[id] = c
		}
	}
	return snap, nil
}

// Age returns the age of the first chunk, which stands for the whole cache.
func (s *Store) Age() (time.Duration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, err := os.Stat(s.chunkPath(1))
	if err != nil {
		return 0, false
	}
	age := s.now().Sub(info.ModTime())
	if age < 0 {
		age = 0
	}
	return age, true
}

// Fresh reports whether the cache exists and is younger than TTL.
func (s *Store) Fresh() bool {
	age, ok := s.Age()
	return ok && age <= TTL
}

// Clear removes all chunks and leftover temporaries.
func (s *Store) Clear() error {
	if _, err := os.Stat(s.dir); os.IsNotExist(err) {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lock := s.fileLock()
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("cache: lock: %w", err)
	}
	defer lock.Unlock()

	matches, err := filepath.Glob(filepath.Join(s.dir, chunkPrefix+"*"))
	if err != nil {
		return fmt.Errorf("cache: list chunks: %w", err)
	}
	for _, f := range matches {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("cache: remove %s: %w", filepath.Base(f), err)
		}
	}
	logger.Info("CACHE", fmt.Sprintf("Cleared %d files", len(matches)))
	return nil
}
