package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/pyromancer/verifikator/internal/verifier"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Dispatcher is what the HTTP API needs from the verifier.
type Dispatcher interface {
	ListTools() []string
	Verify(ctx context.Context, req verifier.Request) verifier.Result
}

type Server struct {
	Dispatcher Dispatcher
	APIKey     string
	Timeout    time.Duration

	log  zerolog.Logger
	http *http.Server
}

func NewServer(d Dispatcher, apiKey string, timeout time.Duration, log zerolog.Logger) *Server {
	return &Server{
		Dispatcher: d,
		APIKey:     apiKey,
		Timeout:    timeout,
		log:        log,
	}
}

func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.APIKey != "" {
			key := r.Header.Get("X-API-Key")
			if key != s.APIKey {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

// Handler returns the routed API wrapped in CORS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tools", s.auth(s.handleTools))
	mux.HandleFunc("POST /verify", s.auth(s.handleVerify))
	mux.HandleFunc("GET /status", s.auth(s.handleStatus))

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(mux)
}

func (s *Server) Start(addr string) error {
	return s.StartSecure(addr, "", "")
}

// StartSecure serves HTTPS when both cert and key are given, plain HTTP
// otherwise. It returns nil after Shutdown.
func (s *Server) StartSecure(addr, certFile, keyFile string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var err error
	if certFile != "" && keyFile != "" {
		s.log.Info().Str("addr", addr).Msg("http api starting (https)")
		err = s.http.ListenAndServeTLS(certFile, keyFile)
	} else {
		s.log.Info().Str("addr", addr).Msg("http api starting (http)")
		err = s.http.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// writeJSON encodes v before writing the status; an unencodable value is a 500.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to encode response")
		http.Error(w, "cannot encode response: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		s.log.Warn().Err(err).Msg("failed to write response")
	}
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"tools": s.Dispatcher.ListTools()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"tools":  len(s.Dispatcher.ListTools()),
	})
}

type verifyRequest struct {
	Tool  string  `json:"tool"`
	URL   string  `json:"url"`
	Proxy *string `json:"proxy,omitempty"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Tool) == "" || strings.TrimSpace(req.URL) == "" {
		http.Error(w, "tool and url are required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	s.log.Debug().Str("tool", req.Tool).Str("url", req.URL).Msg("verify requested over http")
	res := s.Dispatcher.Verify(ctx, verifier.Request{
		Tool:  req.Tool,
		URL:   strings.TrimSpace(req.URL),
		Proxy: req.Proxy,
	})
	s.writeJSON(w, http.StatusOK, res)
}
