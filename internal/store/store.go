// Package store persists pipeline results to an append-only tabular file
// with at most one row per canonical molecule key, safe under concurrent
// writers in this process and in others.
package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/gofrs/flock"
)

// Sentinel errors for store operations. Use errors.Is to check them.
var (
	// ErrHeaderMismatch means the backing file's header row doesn't match
	// the schema; the store refuses to touch such a file.
	ErrHeaderMismatch = errors.New("store header mismatch")

	// ErrLockTimeout means the advisory lock could not be acquired in time.
	ErrLockTimeout = errors.New("store lock timeout")
)

// InsertStatus is the outcome of TryInsert.
type InsertStatus int

const (
	// Inserted means the row was appended.
	Inserted InsertStatus = iota
	// AlreadyExists means a row with the same key is present. This is an
	// expected outcome of duplicate submission, not an error.
	AlreadyExists
)

func (s InsertStatus) String() string {
	if s == Inserted {
		return "Inserted"
	}
	return "AlreadyExists"
}

const (
	defaultLockTimeout = 30 * time.Second
	lockRetryInterval  = 50 * time.Millisecond
)

// Store is a CSV-backed result table keyed by canonical SMILES.
type Store struct {
	path        string
	lockPath    string
	lockTimeout time.Duration
	log         *slog.Logger
}

// Open prepares a store over the given file. The file itself is created
// lazily on first insert.
func Open(path string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		path:        path,
		lockPath:    path + ".lock",
		lockTimeout: defaultLockTimeout,
		log:         log,
	}
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// TryInsert appends the row unless its key is already present. The
// advisory file lock is held for the whole read-check-append sequence:
// two concurrent callers with the same key must not both observe absence,
// or the store would end up with a duplicate row.
func (s *Store) TryInsert(ctx context.Context, row Row) (InsertStatus, error) {
	if row.Key() == "" {
		return 0, fmt.Errorf("row without canonical key for %q", row.Identifier)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return 0, fmt.Errorf("create store directory: %w", err)
	}

	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	lock := flock.New(s.lockPath)
	locked, err := lock.TryLockContext(lockCtx, lockRetryInterval)
	if err != nil || !locked {
		if err == nil || errors.Is(err, context.DeadlineExceeded) {
			return 0, fmt.Errorf("%w: %s not acquired within %s", ErrLockTimeout, s.lockPath, s.lockTimeout)
		}
		return 0, fmt.Errorf("acquire store lock: %w", err)
	}
	defer func() {
		if uerr := lock.Unlock(); uerr != nil {
			s.log.Warn("failed to release store lock", "path", s.lockPath, "error", uerr)
		}
	}()

	keys, err := s.readKeys()
	if err != nil {
		return 0, err
	}
	if _, ok := keys[row.Key()]; ok {
		s.log.Debug("duplicate key, row discarded", "key", row.Key())
		return AlreadyExists, nil
	}

	if err := s.append(row); err != nil {
		return 0, err
	}
	s.log.Info("stored result row", "key", row.Key(), "identifier", row.Identifier)
	return Inserted, nil
}

// Contains reports whether a row with the key exists. It reads without the
// insert lock: callers use it as a cheap pre-check, the authoritative
// decision stays inside TryInsert.
func (s *Store) Contains(key string) (bool, error) {
	keys, err := s.readKeys()
	if err != nil {
		return false, err
	}
	_, ok := keys[key]
	return ok, nil
}

// Keys returns the set of canonical keys currently stored.
func (s *Store) Keys() (map[string]struct{}, error) {
	return s.readKeys()
}

// Rows reads back every stored row in append order.
func (s *Store) Rows() ([]Row, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read store header: %w", err)
	}
	if !slices.Equal(header, headerV1) {
		return nil, fmt.Errorf("%w: %s has columns %v", ErrHeaderMismatch, s.path, header)
	}

	var rows []Row
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read store row: %w", err)
		}
		row, err := rowFromFields(record)
		if err != nil {
			return nil, fmt.Errorf("store row %d: %w", len(rows)+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// readKeys loads the key column, treating a missing or empty file as an
// empty store.
func (s *Store) readKeys() (map[string]struct{}, error) {
	keys := make(map[string]struct{})

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return keys, nil
		}
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	// Tolerate rows written by future schema revisions when only keys are
	// needed; the header check still gates everything.
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return keys, nil
		}
		return nil, fmt.Errorf("read store header: %w", err)
	}
	if !slices.Equal(header, headerV1) {
		return nil, fmt.Errorf("%w: %s has columns %v", ErrHeaderMismatch, s.path, header)
	}

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read store row: %w", err)
		}
		if len(record) > 0 && record[0] != "" {
			keys[record[0]] = struct{}{}
		}
	}
	return keys, nil
}

// append writes the row, creating the file with the canonical header first
// if needed. Callers must hold the store lock.
func (s *Store) append(row Row) error {
	writeHeader := false
	if info, err := os.Stat(s.path); os.IsNotExist(err) || (err == nil && info.Size() == 0) {
		writeHeader = true
	} else if err != nil {
		return fmt.Errorf("stat store: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open store for append: %w", err)
	}

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(headerV1); err != nil {
			f.Close()
			return fmt.Errorf("write store header: %w", err)
		}
	}
	if err := w.Write(row.fields()); err != nil {
		f.Close()
		return fmt.Errorf("write store row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush store: %w", err)
	}
	return f.Close()
}
