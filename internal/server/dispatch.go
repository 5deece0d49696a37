package server

import (
	"errors"
	"net/http"

	"golang.org/x/net/http/httpguts"

	srverrors "github.com/conneroisu/hrserve/internal/errors"
	"github.com/conneroisu/hrserve/internal/files"
	"github.com/conneroisu/hrserve/internal/middleware"
)

// requestKind is the route a request takes, decided once per request.
type requestKind int

const (
	kindFile requestKind = iota
	kindUpgrade
	kindMethodNotAllowed
)

// classify routes r. Upgrades are recognised by their headers alone so the
// injected script works whatever path it is served under.
func classify(r *http.Request) requestKind {
	if isWebSocketUpgrade(r) {
		return kindUpgrade
	}
	if r.Method != http.MethodGet {
		return kindMethodNotAllowed
	}

	return kindFile
}

func isWebSocketUpgrade(r *http.Request) bool {
	return httpguts.HeaderValuesContainsToken(r.Header["Connection"], "upgrade") &&
		httpguts.HeaderValuesContainsToken(r.Header["Upgrade"], "websocket")
}

func (s *Server) buildHandler() http.Handler {
	fileHandler := middleware.Chain(http.HandlerFunc(s.serveFile),
		middleware.Recover(s.logger, s.handlePanic))

	dispatch := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch classify(r) {
		case kindUpgrade:
			s.reload.ServeHTTP(w, r)
		case kindMethodNotAllowed:
			s.writeError(w, r, srverrors.ErrMethodNotAllowed(r.Method).WithPath(r.URL.Path))
		default:
			fileHandler.ServeHTTP(w, r)
		}
	})

	return middleware.Chain(dispatch,
		middleware.RequestID(),
		middleware.Logging(s.logger),
	)
}

// serveFile answers a GET request from the served directory. It holds a
// permit for the whole response; the deferred release also runs when the
// handler panics.
func (s *Server) serveFile(w http.ResponseWriter, r *http.Request) {
	if err := s.permits.Acquire(r.Context(), 1); err != nil {
		s.writeError(w, r, srverrors.NewHandlerError(srverrors.ErrCodeUnavailable,
			"request abandoned while waiting for a free slot", err).WithPath(r.URL.Path))
		return
	}
	defer s.permits.Release(1)

	resolved, err := s.resolver.Resolve(r.URL.Path)
	if errors.Is(err, files.ErrNotFound) {
		s.writeError(w, r, srverrors.ErrFileNotFound(notFoundName(r)))
		return
	}
	if err != nil {
		s.writeError(w, r, srverrors.NewHandlerError(srverrors.ErrCodeInternalError,
			"failed to resolve file", err).WithPath(r.URL.Path))
		return
	}

	s.writeFile(w, r, resolved)
}
