package adapter

import (
	"fmt"
	"sync"

	"github.com/livngcorpse/jarvis/internal/model"
	"github.com/livngcorpse/jarvis/pkg"
)

// ReportStore keeps the history of pipeline runs.
type ReportStore interface {
	SaveRecord(record model.RunRecord) error
	LoadRecords(limit int) ([]model.RunRecord, error)
	Close() error
}

// JournalReportStore persists records in an append-only journal file. The
// journal is opened lazily so read-only commands never create it.
type JournalReportStore struct {
	path    model.Path
	mu      sync.Mutex
	journal pkg.Journal[model.RunRecord]
}

// NewJournalReportStore returns a store backed by the journal at path.
func NewJournalReportStore(path model.Path) *JournalReportStore {
	return &JournalReportStore{path: path}
}

func (s *JournalReportStore) open() (pkg.Journal[model.RunRecord], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.journal != nil {
		return s.journal, nil
	}

	j, err := pkg.OpenJournal[model.RunRecord](string(s.path))
	if err != nil {
		return nil, fmt.Errorf("failed to open run journal: %w", err)
	}

	s.journal = j

	return j, nil
}

// SaveRecord appends record.
func (s *JournalReportStore) SaveRecord(record model.RunRecord) error {
	j, err := s.open()
	if err != nil {
		return err
	}

	return j.Append(record)
}

// LoadRecords returns at most limit records, newest last. A non-positive
// limit returns everything.
func (s *JournalReportStore) LoadRecords(limit int) ([]model.RunRecord, error) {
	j, err := s.open()
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = int(j.Len())
	}

	return j.Tail(limit)
}

// Close releases the journal file.
func (s *JournalReportStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.journal == nil {
		return nil
	}

	err := s.journal.Close()
	s.journal = nil

	return err
}
