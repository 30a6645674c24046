// Package pkg provides reusable utilities for jarvis.
package pkg

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// maxFrameSize bounds a single record so a corrupt length prefix cannot
// trigger a huge allocation.
const maxFrameSize = 16 << 20

// Journal is a persistent, append-only sequence of items of type T.
type Journal[T any] interface {
	Len() uint64
	Path() string
	Append(item T) error
	Get(index uint64) (T, error)
	Range(f func(index uint64, item T) error) error
	Tail(n int) ([]T, error)
	Close() error
}

// Every record is stored as a 4-byte big-endian length followed by a
// self-contained gob stream, so files written by separate processes can be
// concatenated and read back with fresh decoders.
type journalImpl[T any] struct {
	path   string
	file   *os.File
	mu     sync.Mutex
	length uint64
}

// OpenJournal opens or creates the journal at path. A torn record left by a
// crash is truncated away.
func OpenJournal[T any](path string) (Journal[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		slog.Error("failed to create journal directory", "path", path, "error", err)
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	// #nosec G304 -- path is derived from the configured project root
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		slog.Error("failed to open journal", "path", path, "error", err)
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	count, good, err := scanFrames(file)
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	if err := file.Truncate(good); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to truncate journal: %w", err)
	}

	if _, err := file.Seek(good, io.SeekStart); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to seek journal: %w", err)
	}

	slog.Debug("opened journal", "path", path, "length", count)

	return &journalImpl[T]{path: path, file: file, length: count}, nil
}

func scanFrames(r io.ReadSeeker) (uint64, int64, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, 0, fmt.Errorf("failed to seek journal: %w", err)
	}

	br := bufio.NewReader(r)

	var (
		count  uint64
		offset int64
		header [4]byte
	)

	for {
		if _, err := io.ReadFull(br, header[:]); err != nil {
			return count, offset, nil
		}

		size := binary.BigEndian.Uint32(header[:])
		if size > maxFrameSize {
			slog.Warn("journal frame too large, truncating", "offset", offset, "size", size)
			return count, offset, nil
		}

		if _, err := br.Discard(int(size)); err != nil {
			return count, offset, nil
		}

		offset += int64(len(header)) + int64(size)
		count++
	}
}

// Append implements Journal.
func (j *journalImpl[T]) Append(item T) error {
	var body bytes.Buffer
	if err := gob.NewEncoder(&body).Encode(item); err != nil {
		slog.Error("failed to encode journal item", "path", j.path, "error", err)
		return fmt.Errorf("failed to encode item: %w", err)
	}

	frame := make([]byte, 4, 4+body.Len())
	binary.BigEndian.PutUint32(frame, uint32(body.Len()))
	frame = append(frame, body.Bytes()...)

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return errors.New("journal is closed")
	}

	if _, err := j.file.Write(frame); err != nil {
		slog.Error("failed to write journal item", "path", j.path, "index", j.length, "error", err)
		return fmt.Errorf("failed to write item: %w", err)
	}

	j.length++

	return nil
}

// Path implements Journal.
func (j *journalImpl[T]) Path() string {
	return j.path
}

// Len implements Journal.
func (j *journalImpl[T]) Len() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.length
}

// Close implements Journal.
func (j *journalImpl[T]) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return nil
	}

	err := j.file.Close()
	j.file = nil

	if err != nil {
		slog.Error("failed to close journal", "path", j.path, "error", err)
		return err
	}

	return nil
}

// Get implements Journal.
func (j *journalImpl[T]) Get(index uint64) (T, error) {
	var (
		found T
		ok    bool
	)

	err := j.Range(func(i uint64, item T) error {
		if i == index {
			found, ok = item, true
			return io.EOF
		}

		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return found, err
	}

	if !ok {
		var zero T
		return zero, fmt.Errorf("index %d out of bounds (length %d)", index, j.Len())
	}

	return found, nil
}

// Tail returns at most the last n items, oldest first.
func (j *journalImpl[T]) Tail(n int) ([]T, error) {
	total := j.Len()
	if n <= 0 || total == 0 {
		return []T{}, nil
	}

	skip := uint64(0)
	if total > uint64(n) {
		skip = total - uint64(n)
	}

	items := make([]T, 0, n)

	err := j.Range(func(i uint64, item T) error {
		if i >= skip {
			items = append(items, item)
		}

		return nil
	})

	return items, err
}

// Range implements Journal.
func (j *journalImpl[T]) Range(fn func(index uint64, item T) error) error {
	j.mu.Lock()
	length := j.length
	j.mu.Unlock()

	// #nosec G304
	file, err := os.Open(j.path)
	if err != nil {
		slog.Error("failed to open journal for range", "path", j.path, "error", err)
		return fmt.Errorf("failed to open journal: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	br := bufio.NewReader(file)

	var header [4]byte

	for i := range length {
		if _, err := io.ReadFull(br, header[:]); err != nil {
			return fmt.Errorf("failed to read item header %d: %w", i, err)
		}

		size := binary.BigEndian.Uint32(header[:])

		body := make([]byte, size)
		if _, err := io.ReadFull(br, body); err != nil {
			return fmt.Errorf("failed to read item %d: %w", i, err)
		}

		var item T
		if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&item); err != nil {
			slog.Error("failed to decode journal item", "path", j.path, "index", i, "error", err)
			return fmt.Errorf("failed to decode item at index %d: %w", i, err)
		}

		if err := fn(i, item); err != nil {
			return err
		}
	}

	return nil
}
