package adapter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
	m "github.com/livngcorpse/jarvis/internal/model"
)

// RestartMarkerStore persists why the process is about to replace itself.
type RestartMarkerStore interface {
	Write(ctx context.Context, marker m.RestartMarker) error
	// Check returns the marker when one exists and is younger than maxAge.
	// A stale marker is reported as absent.
	Check(ctx context.Context, maxAge time.Duration) (m.RestartMarker, bool, error)
	Clear(ctx context.Context) error
}

// CBORRestartMarkerStore keeps the marker in a single CBOR file.
type CBORRestartMarkerStore struct {
	path   m.Path
	writer AtomicFileWriter
	enc    cbor.EncMode
	dec    cbor.DecMode
	now    func() time.Time
}

// NewCBORRestartMarkerStore creates a store at path.
func NewCBORRestartMarkerStore(path m.Path, writer AtomicFileWriter) (*CBORRestartMarkerStore, error) {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("restart marker: encoder: %w", err)
	}

	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("restart marker: decoder: %w", err)
	}

	return &CBORRestartMarkerStore{path: path, writer: writer, enc: enc, dec: dec, now: time.Now}, nil
}

// Write encodes marker and stores it atomically.
func (s *CBORRestartMarkerStore) Write(ctx context.Context, marker m.RestartMarker) error {
	data, err := s.enc.Marshal(marker)
	if err != nil {
		return fmt.Errorf("restart marker: encode: %w", err)
	}

	if err := s.writer.Write(ctx, s.path, data); err != nil {
		return fmt.Errorf("restart marker: write: %w", err)
	}

	return nil
}

// Check reads the marker if present and fresh.
func (s *CBORRestartMarkerStore) Check(_ context.Context, maxAge time.Duration) (m.RestartMarker, bool, error) {
	data, err := os.ReadFile(string(s.path))
	if errors.Is(err, fs.ErrNotExist) {
		return m.RestartMarker{}, false, nil
	}

	if err != nil {
		return m.RestartMarker{}, false, fmt.Errorf("restart marker: read: %w", err)
	}

	var marker m.RestartMarker
	if err := s.dec.Unmarshal(data, &marker); err != nil {
		return m.RestartMarker{}, false, fmt.Errorf("restart marker: decode: %w", err)
	}

	if maxAge > 0 && s.now().Sub(time.Unix(0, marker.UnixNano)) > maxAge {
		return m.RestartMarker{}, false, nil
	}

	return marker, true, nil
}

// Clear removes the marker. Removing a missing marker is not an error.
func (s *CBORRestartMarkerStore) Clear(_ context.Context) error {
	err := os.Remove(string(s.path))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("restart marker: clear: %w", err)
	}

	return nil
}
