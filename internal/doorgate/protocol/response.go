package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// LockResponse is the daemon's verdict for one request.
type LockResponse struct {
	Code    Code
	Message string
}

// OK reports whether the daemon accepted the request.
func (r LockResponse) OK() bool { return r.Code.OK() }

// Variant is one version of the daemon wire protocol. Both versions share
// the transport and the gateway logic; only the encoding differs.
type Variant interface {
	// Name is the configuration name of the variant.
	Name() string
	// Encode serializes req as a single newline-terminated JSON object.
	Encode(req LockRequest) ([]byte, error)
	// Decode parses a complete response body.
	Decode(raw []byte) (LockResponse, error)
	// Complete reports whether buf already holds a full response, so the
	// transport can stop reading before EOF.
	Complete(buf []byte) bool
}

const (
	ModernName = "modern"
	LegacyName = "legacy"
)

// VariantByName returns the variant registered under name.
func VariantByName(name string) (Variant, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ModernName:
		return Modern{}, true
	case LegacyName:
		return Legacy{}, true
	default:
		return nil, false
	}
}

// Interpret decodes raw with v. It is pure, so repeating it on the same
// bytes yields the same result.
func Interpret(v Variant, raw []byte) (LockResponse, error) {
	return v.Decode(raw)
}

// ── Modern ───────────────────────────────────────────────────────────────────

// Modern speaks the "command" request key and answers with
// {"code":int,"message":string}.
type Modern struct{}

type modernRequest struct {
	User     string `json:"user"`
	Password string `json:"password"`
	Command  string `json:"command"`
	Token    string `json:"token"`
	IP       string `json:"ip"`
}

type modernResponse struct {
	Code    *int    `json:"code"`
	Message *string `json:"message"`
}

func (Modern) Name() string { return ModernName }

func (Modern) Encode(req LockRequest) ([]byte, error) {
	return encodeLine(modernRequest{
		User:     req.User,
		Password: req.Password,
		Command:  req.Command,
		Token:    req.Token,
		IP:       req.IP,
	})
}

func (Modern) Decode(raw []byte) (LockResponse, error) {
	var wire modernResponse
	if err := json.Unmarshal(bytes.TrimSpace(raw), &wire); err != nil {
		return LockResponse{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if wire.Code == nil {
		return LockResponse{}, fmt.Errorf("%w: missing code", ErrMalformedResponse)
	}
	if wire.Message == nil {
		return LockResponse{}, fmt.Errorf("%w: missing message", ErrMalformedResponse)
	}
	return LockResponse{Code: Code(*wire.Code), Message: *wire.Message}, nil
}

func (Modern) Complete(buf []byte) bool {
	trimmed := bytes.TrimSpace(buf)
	return len(trimmed) > 0 && json.Valid(trimmed)
}

// ── Legacy ───────────────────────────────────────────────────────────────────

// Legacy speaks the "action" request key with an explicit authenticate flag
// and answers with a bare integer line.
type Legacy struct{}

// LegacySuccessMarker is accepted in place of "0" by the legacy decoder.
const LegacySuccessMarker = "Success"

type legacyRequest struct {
	User         string `json:"user"`
	Password     string `json:"password"`
	Action       string `json:"action"`
	Token        string `json:"token"`
	IP           string `json:"ip"`
	Authenticate bool   `json:"authenticate"`
}

func (Legacy) Name() string { return LegacyName }

func (Legacy) Encode(req LockRequest) ([]byte, error) {
	return encodeLine(legacyRequest{
		User:         req.User,
		Password:     req.Password,
		Action:       req.Command,
		Token:        req.Token,
		IP:           req.IP,
		Authenticate: true,
	})
}

func (Legacy) Decode(raw []byte) (LockResponse, error) {
	body := strings.TrimSpace(string(raw))
	if strings.HasPrefix(body, LegacySuccessMarker) {
		return LockResponse{Code: CodeSuccess, Message: CodeSuccess.String()}, nil
	}

	n, err := strconv.Atoi(body)
	if err != nil {
		return LockResponse{}, fmt.Errorf("%w: %q is not a status code", ErrMalformedResponse, body)
	}
	code := Code(n)
	return LockResponse{Code: code, Message: code.String()}, nil
}

func (Legacy) Complete(buf []byte) bool {
	return bytes.IndexByte(buf, '\n') >= 0
}

func encodeLine(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
