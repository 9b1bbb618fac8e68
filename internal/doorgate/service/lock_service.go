package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BrandonDHaskell/doorgate/internal/doorgate/protocol"
	"github.com/BrandonDHaskell/doorgate/internal/doorgate/store"
	"github.com/BrandonDHaskell/doorgate/internal/doorgate/types"
)

// Exchanger performs one request/response round trip with the lock daemon.
type Exchanger interface {
	Exchange(ctx context.Context, req protocol.LockRequest) (protocol.LockResponse, error)
}

type LockService struct {
	daemon   Exchanger
	recorder store.OutcomeRecorder
	now      func() time.Time
}

func NewLockService(d Exchanger, rec store.OutcomeRecorder) *LockService {
	return &LockService{daemon: d, recorder: rec, now: time.Now}
}

// Prepare handles the GET path: a valid token leads to the login form,
// anything else to a failure. With no token at all the interaction stays
// in AwaitingToken. The daemon is never contacted.
func (s *LockService) Prepare(rawToken string) (types.Outcome, error) {
	if rawToken == "" {
		return types.AwaitingToken(), fmt.Errorf("%w: no token given", protocol.ErrInvalidTokenFormat)
	}

	token, err := protocol.NormalizeToken(rawToken)
	if err != nil {
		return types.FromError(err), err
	}
	return types.LoginForm(token), nil
}

// Submit handles the POST path. The returned outcome is always populated.
// A non-nil error means the gateway failed before a daemon verdict existed
// (validation, transport or protocol); a daemon-reported failure is
// returned as a Failure outcome with a nil error.
func (s *LockService) Submit(ctx context.Context, form types.LockForm) (types.Outcome, error) {
	cmdPtr := form.EffectiveCommand()
	command := ""
	if cmdPtr != nil {
		command = *cmdPtr
	}

	if missing := form.Missing(); len(missing) > 0 {
		err := fmt.Errorf("%w: %s", protocol.ErrMissingField, strings.Join(missing, ", "))
		return s.finish(ctx, command, types.FromError(err), 0), err
	}

	token, err := protocol.NormalizeToken(*form.Token)
	if err != nil {
		return s.finish(ctx, command, types.FromError(err), 0), err
	}

	req := protocol.NewLockRequest(command, *form.User, *form.Password, token, form.CallerIP)

	start := s.now()
	resp, err := s.daemon.Exchange(ctx, req)
	elapsed := s.now().Sub(start)
	if err != nil {
		return s.finish(ctx, command, types.FromError(err), elapsed), err
	}

	return s.finish(ctx, command, types.FromResponse(resp), elapsed), nil
}

// finish reports the outcome to the recorder and hands it back. Recorder
// errors are dropped: metrics must not change what the caller sees.
func (s *LockService) finish(ctx context.Context, command string, o types.Outcome, exchange time.Duration) types.Outcome {
	if s.recorder == nil {
		return o
	}
	_ = s.recorder.RecordOutcome(ctx, store.OutcomeRecord{
		Command:   command,
		Success:   o.State == types.StateSuccess,
		Kind:      o.Kind,
		Code:      o.Code,
		Answered:  o.Answered,
		Exchange:  exchange,
		DecidedAt: s.now().UTC(),
	})
	return o
}
