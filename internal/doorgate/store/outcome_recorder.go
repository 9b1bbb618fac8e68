package store

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/doorgate/internal/doorgate/protocol"
)

// OutcomeRecord describes one finished lock request. It carries no
// credentials and no token.
type OutcomeRecord struct {
	Command   string
	Success   bool
	Kind      protocol.FailureKind
	Code      protocol.Code
	Answered  bool          // daemon produced a verdict; Code is valid
	Exchange  time.Duration // zero when the daemon was never contacted
	DecidedAt time.Time
}

// OutcomeRecorder receives every classified POST outcome.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, rec OutcomeRecord) error
}
