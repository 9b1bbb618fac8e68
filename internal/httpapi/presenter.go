package httpapi

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/BrandonDHaskell/doorgate/internal/doorgate/protocol"
	"github.com/BrandonDHaskell/doorgate/internal/doorgate/types"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page holds the fixed strings shown on every rendered page.
type Page struct {
	Title   string
	Welcome string
}

type presenter struct {
	tmpl *template.Template
	page Page
}

func newPresenter(p Page) *presenter {
	return &presenter{
		tmpl: template.Must(template.ParseFS(templateFS, "templates/page.html")),
		page: p,
	}
}

type pageView struct {
	Page
	LoginForm bool
	Success   bool
	Token     string
	Reason    string
}

// render writes the HTML view for o. The page is rendered into a buffer
// first so a template error can still produce a clean 500.
func (p *presenter) render(w http.ResponseWriter, status int, o types.Outcome) {
	view := pageView{
		Page:      p.page,
		LoginForm: o.State == types.StateShowLoginForm,
		Success:   o.State == types.StateSuccess,
		Token:     o.Token,
		Reason:    o.Reason,
	}

	var buf bytes.Buffer
	if err := p.tmpl.ExecuteTemplate(&buf, "page.html", view); err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// statusFor maps an outcome to its HTTP status. A malformed token is "not
// found" on the GET path and a bad request on POST.
func statusFor(o types.Outcome, onGet bool) int {
	switch o.State {
	case types.StateSuccess, types.StateShowLoginForm:
		return http.StatusOK
	}

	switch o.Kind {
	case protocol.KindDaemon:
		return http.StatusUnauthorized
	case protocol.KindMissingField:
		return http.StatusBadRequest
	case protocol.KindInvalidTokenFormat:
		if onGet {
			return http.StatusNotFound
		}
		return http.StatusBadRequest
	case protocol.KindTransportUnavailable:
		return http.StatusServiceUnavailable
	case protocol.KindRequestEncoding:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}
