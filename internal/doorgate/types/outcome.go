package types

import (
	"github.com/BrandonDHaskell/doorgate/internal/doorgate/protocol"
)

// State is a step of one caller interaction.
type State string

const (
	StateAwaitingToken State = "awaiting_token"
	StateShowLoginForm State = "show_login_form"
	StateSuccess       State = "success"
	StateFailure       State = "failure"
)

// Outcome is the classified result of one interaction. It drives the
// presenter and is never stored.
type Outcome struct {
	State State                `json:"outcome"`
	Kind  protocol.FailureKind `json:"kind,omitempty"`
	// Code is only meaningful when Answered is true.
	Code     protocol.Code `json:"code"`
	Answered bool          `json:"-"`
	Reason   string        `json:"message"`
	// Token is the normalized token for the login form.
	Token string `json:"-"`
}

// Terminal reports whether no further step follows.
func (o Outcome) Terminal() bool {
	return o.State == StateSuccess || o.State == StateFailure
}

// AwaitingToken is the outcome of a GET that carried no token at all. The
// interaction has not failed, but it cannot go on, so it carries the
// invalid-token kind and reason for the presenter.
func AwaitingToken() Outcome {
	return Outcome{
		State:  StateAwaitingToken,
		Kind:   protocol.KindInvalidTokenFormat,
		Reason: ReasonFor(protocol.KindInvalidTokenFormat),
	}
}

// LoginForm is the outcome of a valid token on the GET path.
func LoginForm(token string) Outcome {
	return Outcome{State: StateShowLoginForm, Token: token}
}

// FromResponse classifies a daemon verdict.
func FromResponse(resp protocol.LockResponse) Outcome {
	o := Outcome{
		Code:     resp.Code,
		Answered: true,
		Reason:   resp.Code.String(),
	}
	if resp.OK() {
		o.State = StateSuccess
		return o
	}
	o.State = StateFailure
	o.Kind = protocol.KindDaemon
	return o
}

// FromError classifies a gateway-side failure. The reason is derived from
// the error kind only, so nothing from the request leaks into it.
func FromError(err error) Outcome {
	kind := protocol.KindOf(err)
	return Outcome{
		State:  StateFailure,
		Kind:   kind,
		Reason: ReasonFor(kind),
	}
}

// ReasonFor returns the display text for a gateway-side failure kind.
func ReasonFor(kind protocol.FailureKind) string {
	switch kind {
	case protocol.KindInvalidTokenFormat:
		return "Please provide Token"
	case protocol.KindMissingField:
		return "Incomplete request"
	case protocol.KindTransportUnavailable:
		return "Lock daemon unavailable"
	case protocol.KindTransportWrite, protocol.KindTransportRead:
		return "Communication with lock daemon failed"
	case protocol.KindMalformedResponse:
		return "Invalid answer from lock daemon"
	case protocol.KindRequestEncoding:
		return "Request could not be sent"
	default:
		return protocol.UnknownCodeText
	}
}
