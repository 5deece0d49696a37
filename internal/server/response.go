package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"

	srverrors "github.com/conneroisu/hrserve/internal/errors"
	"github.com/conneroisu/hrserve/internal/files"
	"github.com/conneroisu/hrserve/internal/logging"
)

// response is everything needed to emit one reply. Body yields Size bytes.
type response struct {
	Status   int
	MimeType string
	Charset  *files.Charset
	ModTime  time.Time
	Body     io.Reader
	Size     int64
}

// finalize is the single exit for every response. HTML bodies are read in
// full and passed through the injector first so Content-Length is the
// length of what is actually sent; other bodies are streamed as they are.
func (s *Server) finalize(w http.ResponseWriter, r *http.Request, resp *response) error {
	if files.IsHTML(resp.MimeType) {
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read document: %w", err)
		}

		injected, err := s.injector.Load().Inject(raw, resp.Charset)
		if err != nil {
			return err
		}

		resp.Body = bytes.NewReader(injected)
		resp.Size = int64(len(injected))
	}

	h := w.Header()
	h.Set("Content-Type", contentType(resp.MimeType, resp.Charset))
	h.Set("Content-Length", strconv.FormatInt(resp.Size, 10))
	if !resp.ModTime.IsZero() {
		h.Set("Last-Modified", resp.ModTime.UTC().Format(http.TimeFormat))
	}
	h.Set("Date", time.Now().UTC().Format(http.TimeFormat))

	w.WriteHeader(resp.Status)

	if _, err := io.CopyN(w, resp.Body, resp.Size); err != nil {
		// Headers are gone; all that is left is to report it.
		s.logger.Warn(r.Context(), err, "Response body truncated",
			"path", r.URL.Path,
			"expected_bytes", resp.Size)
	}

	return nil
}

// contentType adds the charset parameter when it was read from a byte order
// mark; the single-byte fallback is a guess and is not advertised.
func contentType(mimeType string, charset *files.Charset) string {
	if charset != nil && charset.Sniffed {
		return mimeType + "; charset=" + charset.Name
	}

	return mimeType
}

func (s *Server) writeFile(w http.ResponseWriter, r *http.Request, resolved *files.ResolvedFile) {
	perf := logging.StartOperation(s.logger, "serve_file")

	f, err := s.openFile(resolved.Path)
	if errors.Is(err, os.ErrNotExist) {
		// Removed between resolution and opening.
		s.writeError(w, r, srverrors.ErrFileNotFound(notFoundName(r)))
		return
	}
	if err != nil {
		s.writeError(w, r, srverrors.NewHandlerError(srverrors.ErrCodeInternalError,
			"failed to open file", err).WithPath(resolved.Path))
		return
	}
	defer f.Close()

	// The file may have changed since it was resolved; describe the handle
	// actually being sent.
	info, err := f.Stat()
	if err != nil {
		s.writeError(w, r, srverrors.NewHandlerError(srverrors.ErrCodeInternalError,
			"failed to stat file", err).WithPath(resolved.Path))
		return
	}

	err = s.finalize(w, r, &response{
		Status:   http.StatusOK,
		MimeType: resolved.MimeType,
		Charset:  resolved.Charset,
		ModTime:  info.ModTime(),
		Body:     f,
		Size:     info.Size(),
	})
	if err != nil {
		perf.EndWithError(r.Context(), err, "path", resolved.Path)
		s.writeError(w, r, srverrors.NewHandlerError(srverrors.ErrCodeInternalError,
			"failed to prepare response", err).WithPath(resolved.Path))
		return
	}

	perf.End(r.Context(), "path", resolved.Path, "bytes", w.Header().Get("Content-Length"))
}

// writeError logs err and answers with the matching HTML error page.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err *srverrors.ServerError) {
	s.errors.Handle(r.Context(), err)

	var page []byte
	status := statusFor(err)
	switch err.Code {
	case srverrors.ErrCodeFileNotFound:
		page = renderPage(r.Context(), notFoundPage(err.Path))
	case srverrors.ErrCodeMethodNotAllowed:
		page = renderPage(r.Context(), methodNotAllowedPage(r.Method))
	default:
		page = renderPage(r.Context(), serverErrorPage(err.Error(), string(err.Stack)))
	}

	s.writePage(w, r, status, page)
}

// handlePanic answers a request whose file handler panicked.
func (s *Server) handlePanic(w http.ResponseWriter, r *http.Request, err error, stack []byte) {
	s.writeError(w, r, srverrors.NewHandlerError(srverrors.ErrCodePanic, "handler panicked", err).
		WithPath(r.URL.Path).
		WithStack(stack))
}

func (s *Server) writePage(w http.ResponseWriter, r *http.Request, status int, page []byte) {
	err := s.finalize(w, r, &response{
		Status:   status,
		MimeType: "text/html",
		Charset:  files.UTF8,
		Body:     bytes.NewReader(page),
		Size:     int64(len(page)),
	})
	if err != nil {
		// Generated pages are well formed UTF-8; fall back to a bare reply.
		s.logger.Error(r.Context(), err, "Failed to write error page", "status", status)
		http.Error(w, http.StatusText(status), status)
	}
}

func statusFor(err *srverrors.ServerError) int {
	switch err.Code {
	case srverrors.ErrCodeFileNotFound:
		return http.StatusNotFound
	case srverrors.ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case srverrors.ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// notFoundName is the requested path as shown on the 404 page.
func notFoundName(r *http.Request) string {
	return strings.TrimPrefix(r.URL.Path, "/")
}

func renderPage(ctx context.Context, page templ.Component) []byte {
	var buf bytes.Buffer
	if err := page.Render(ctx, &buf); err != nil {
		return []byte("<h2>Server Error Occurred</h2>")
	}

	return buf.Bytes()
}
