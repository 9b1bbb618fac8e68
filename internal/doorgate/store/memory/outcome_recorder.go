package memory

import (
	"context"
	"sync"

	"github.com/BrandonDHaskell/doorgate/internal/doorgate/store"
)

// OutcomeRecorder keeps recorded outcomes in a slice. It is intended for
// tests and dev environments.
type OutcomeRecorder struct {
	mu      sync.Mutex
	records []store.OutcomeRecord
}

func NewOutcomeRecorder() *OutcomeRecorder {
	return &OutcomeRecorder{}
}

func (s *OutcomeRecorder) RecordOutcome(_ context.Context, rec store.OutcomeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// Records returns a copy of all recorded outcomes.  Test-only helper.
func (s *OutcomeRecorder) Records() []store.OutcomeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.OutcomeRecord, len(s.records))
	copy(out, s.records)
	return out
}
