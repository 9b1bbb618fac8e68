package httpapi

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"google.golang.org/protobuf/proto"
)

// maxRequestBody caps the request body size for form, JSON and protobuf
// payloads. A lock request is a handful of short strings, so 4 KiB is
// generous.
const maxRequestBody = 4096

var errBodyTooLarge = errors.New("request body too large")

const (
	contentTypeProtobuf = "application/x-protobuf"
	contentTypeJSON     = "application/json"
)

// isProtobuf returns true if the request's Content-Type indicates a
// protobuf payload.
func isProtobuf(r *http.Request) bool {
	ct := mediaType(r.Header.Get("Content-Type"))
	return ct == contentTypeProtobuf ||
		ct == "application/protobuf" ||
		ct == "application/octet-stream"
}

func isJSON(r *http.Request) bool {
	return mediaType(r.Header.Get("Content-Type")) == contentTypeJSON
}

// wantsProtobuf and wantsJSON inspect the Accept header for API responses.
func wantsProtobuf(r *http.Request) bool {
	return acceptIncludes(r, contentTypeProtobuf) || acceptIncludes(r, "application/protobuf")
}

func wantsJSON(r *http.Request) bool {
	return acceptIncludes(r, contentTypeJSON)
}

func acceptIncludes(r *http.Request, want string) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		if mediaType(part) == want {
			return true
		}
	}
	return false
}

func mediaType(v string) string {
	mt, _, err := mime.ParseMediaType(strings.TrimSpace(v))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(v))
	}
	return mt
}

// readProto decodes a protobuf body into msg. Bodies over maxRequestBody
// are rejected instead of being cut short.
func readProto(r *http.Request, msg proto.Message) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		return err
	}
	if len(body) > maxRequestBody {
		return errBodyTooLarge
	}
	return proto.Unmarshal(body, msg)
}

// writeProto sends msg as the reply body. A marshal failure turns the
// reply into a 500.
func writeProto(w http.ResponseWriter, status int, msg proto.Message) {
	data, err := proto.Marshal(msg)
	if err != nil {
		http.Error(w, "cannot encode reply", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeProtobuf)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
