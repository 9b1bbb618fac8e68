package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/doorgate/internal/doorgate/protocol"
	"github.com/BrandonDHaskell/doorgate/internal/doorgate/service"
	"github.com/BrandonDHaskell/doorgate/internal/doorgate/types"
)

type Dependencies struct {
	Logger      *zap.Logger
	Addr        string
	LockService *service.LockService
	// Metrics is served on /metrics when set.
	Metrics http.Handler
	Page    Page
	// TrustProxy takes the caller IP from X-Forwarded-For / X-Real-IP.
	TrustProxy     bool
	AllowedOrigins []string
}

type Server struct {
	httpServer  *http.Server
	logger      *zap.Logger
	lockService *service.LockService
	pages       *presenter
}

func NewServer(d Dependencies) *Server {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		logger:      logger,
		lockService: d.LockService,
		pages:       newPresenter(d.Page),
	}

	r := chi.NewRouter()
	if d.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(loggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	if len(d.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: d.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			ExposedHeaders: []string{RequestIDHeader},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", s.handleHealthz)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}
	r.Get("/", s.handleTokenQuery)
	r.Get("/{token}", s.handleTokenPath)
	r.Post("/", s.handleSubmit)
	r.Post("/api", s.handleAPI)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTokenQuery(w http.ResponseWriter, r *http.Request) {
	s.prepare(w, r, r.URL.Query().Get("token"))
}

// handleTokenPath reads the token from the path. chi hands over the raw
// segment when the request path carried escapes, so it is decoded here the
// same way the query value is.
func (s *Server) handleTokenPath(w http.ResponseWriter, r *http.Request) {
	raw, err := url.PathUnescape(chi.URLParam(r, "token"))
	if err != nil {
		s.showToken(w, r, types.FromError(fmt.Errorf("%w: %v", protocol.ErrInvalidTokenFormat, err)), err)
		return
	}
	s.prepare(w, r, raw)
}

func (s *Server) prepare(w http.ResponseWriter, r *http.Request, raw string) {
	outcome, err := s.lockService.Prepare(raw)
	s.showToken(w, r, outcome, err)
}

func (s *Server) showToken(w http.ResponseWriter, r *http.Request, outcome types.Outcome, err error) {
	if err != nil {
		s.logger.Info("token rejected",
			zap.String("request_id", requestID(r.Context())),
			zap.String("outcome", string(outcome.State)),
			zap.String("kind", string(outcome.Kind)),
		)
	}
	s.pages.render(w, statusFor(outcome, true), outcome)
}

// handleSubmit serves the login form post. With a truthy "api" field the
// reply is the bare code instead of a page.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var err error
	if strings.HasPrefix(mediaType(r.Header.Get("Content-Type")), "multipart/") {
		err = r.ParseMultipartForm(maxRequestBody)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}

	form := lockFormFromValues(r.PostForm)
	outcome := s.submit(r, form)
	status := statusFor(outcome, false)

	if !form.API {
		s.pages.render(w, status, outcome)
		return
	}
	writeText(w, status, bareBody(outcome))
}

// handleAPI always answers in API mode. The request body may be a form,
// JSON or a protobuf Struct; the reply format follows Accept.
func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	form, err := readAPIForm(w, r)
	if err != nil {
		s.logger.Info("unreadable api request",
			zap.String("request_id", requestID(r.Context())),
			zap.Error(err),
		)
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}

	outcome := s.submit(r, form)
	status := statusFor(outcome, false)

	switch {
	case wantsProtobuf(r):
		writeProto(w, status, outcomeToStruct(outcome))
	case wantsJSON(r):
		writeJSON(w, status, apiResponseFrom(outcome))
	default:
		writeText(w, status, bareBody(outcome))
	}
}

func readAPIForm(w http.ResponseWriter, r *http.Request) (types.LockForm, error) {
	switch {
	case isProtobuf(r):
		var msg structpb.Struct
		if err := readProto(r, &msg); err != nil {
			return types.LockForm{}, err
		}
		return lockFormFromStruct(&msg), nil

	case isJSON(r):
		var form types.LockForm
		if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&form); err != nil {
			return types.LockForm{}, err
		}
		form.API = true
		return form, nil

	default:
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		if err := r.ParseForm(); err != nil {
			return types.LockForm{}, err
		}
		form := lockFormFromValues(r.PostForm)
		form.API = true
		return form, nil
	}
}

func (s *Server) submit(r *http.Request, form types.LockForm) types.Outcome {
	form.CallerIP = callerIP(r)

	outcome, err := s.lockService.Submit(r.Context(), form)

	fields := []zap.Field{
		zap.String("request_id", requestID(r.Context())),
		zap.String("user", deref(form.User)),
		zap.String("command", deref(form.EffectiveCommand())),
		zap.String("ip", form.CallerIP),
		zap.String("outcome", string(outcome.State)),
	}
	if outcome.Answered {
		fields = append(fields, zap.Int("code", int(outcome.Code)))
	}

	switch {
	case err == nil:
		s.logger.Info("lock request", fields...)
	case errors.Is(err, protocol.ErrMissingField), errors.Is(err, protocol.ErrInvalidTokenFormat):
		s.logger.Info("lock request rejected", append(fields, zap.String("kind", string(outcome.Kind)))...)
	default:
		s.logger.Warn("lock daemon exchange failed", append(fields, zap.String("kind", string(outcome.Kind)), zap.Error(err))...)
	}

	return outcome
}

func callerIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
