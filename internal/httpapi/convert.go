package httpapi

import (
	"net/url"
	"strconv"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/doorgate/internal/doorgate/protocol"
	"github.com/BrandonDHaskell/doorgate/internal/doorgate/types"
)

// ── Inbound ──────────────────────────────────────────────────────────────────

// lockFormFromValues reads a submitted HTML or urlencoded form. Keys that
// are not present stay nil so the service can report them as missing.
func lockFormFromValues(v url.Values) types.LockForm {
	return types.LockForm{
		User:     lookup(v, "user"),
		Password: lookup(v, "pass"),
		Token:    lookup(v, "token"),
		Command:  lookup(v, "command"),
		Action:   lookup(v, "action"),
		API:      truthy(v.Get("api")),
	}
}

func lookup(v url.Values, key string) *string {
	vals, ok := v[key]
	if !ok || len(vals) == 0 {
		return nil
	}
	s := vals[0]
	return &s
}

// lockFormFromStruct reads a protobuf Struct carrying the same keys as the
// form. Scalars are accepted as strings; null counts as absent.
func lockFormFromStruct(s *structpb.Struct) types.LockForm {
	f := s.GetFields()
	return types.LockForm{
		User:     structString(f["user"]),
		Password: structString(f["pass"]),
		Token:    structString(f["token"]),
		Command:  structString(f["command"]),
		Action:   structString(f["action"]),
		API:      true,
	}
}

func structString(v *structpb.Value) *string {
	if v == nil {
		return nil
	}
	var s string
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		s = k.StringValue
	case *structpb.Value_NumberValue:
		s = strconv.FormatFloat(k.NumberValue, 'f', -1, 64)
	case *structpb.Value_BoolValue:
		s = strconv.FormatBool(k.BoolValue)
	default:
		return nil
	}
	return &s
}

// truthy reports whether a form flag is set. Empty, "0", "false", "no" and
// "off" are false; any other value is true.
func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "0", "false", "no", "off":
		return false
	default:
		return true
	}
}

// ── Outbound ─────────────────────────────────────────────────────────────────

// apiResponse is the JSON body of an API-mode reply. Code is null when the
// daemon never answered.
type apiResponse struct {
	Code    *int                 `json:"code"`
	Message string               `json:"message"`
	Outcome types.State          `json:"outcome"`
	Kind    protocol.FailureKind `json:"kind,omitempty"`
}

func apiResponseFrom(o types.Outcome) apiResponse {
	resp := apiResponse{
		Message: o.Reason,
		Outcome: o.State,
		Kind:    o.Kind,
	}
	if o.Answered {
		c := int(o.Code)
		resp.Code = &c
	}
	return resp
}

func outcomeToStruct(o types.Outcome) *structpb.Struct {
	code := structpb.NewNullValue()
	if o.Answered {
		code = structpb.NewNumberValue(float64(o.Code))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"code":    code,
		"message": structpb.NewStringValue(o.Reason),
		"outcome": structpb.NewStringValue(string(o.State)),
		"kind":    structpb.NewStringValue(string(o.Kind)),
	}}
}

// bareBody is the plain-text API reply: the daemon code when there is one,
// otherwise the failure kind label.
func bareBody(o types.Outcome) string {
	if o.Answered {
		return o.Code.Wire()
	}
	return string(o.Kind)
}
