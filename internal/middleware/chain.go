// Package middleware provides the HTTP middleware stack wrapped around the
// file server: request ids, request logging, panic recovery and a response
// recorder that the other layers share.
//
// Middleware Execution Order:
//   - Chain applies middlewares so the first one given is the outermost
//   - Request flows: Outer -> Inner -> Handler
//   - Response flows: Handler -> Inner -> Outer
package middleware

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/conneroisu/hrserve/internal/logging"
)

// Middleware represents a single middleware function
type Middleware func(http.Handler) http.Handler

// RequestIDHeader carries the request id back to the client.
const RequestIDHeader = "X-Request-Id"

type contextKey struct{}

// Chain wraps handler with middlewares, first given is outermost.
//
// Panics:
//   - If handler or any middleware is nil (programming error)
func Chain(handler http.Handler, middlewares ...Middleware) http.Handler {
	if handler == nil {
		panic("middleware.Chain: handler cannot be nil")
	}

	wrapped := handler
	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i] == nil {
			panic(fmt.Sprintf("middleware.Chain: middleware at index %d is nil", i))
		}
		wrapped = middlewares[i](wrapped)
	}

	return wrapped
}

// RequestID tags every request with a random id, stored in the request
// context and echoed in the X-Request-Id response header.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := uuid.NewString()
			w.Header().Set(RequestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, id)))
		})
	}
}

// RequestIDFrom returns the id set by RequestID, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// Logging records method, path, status and duration of every request.
func Logging(logger logging.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := NewRecorder(w)

			next.ServeHTTP(rec, r)

			logger.Info(r.Context(), "Request served",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.Status(),
				"bytes", rec.Written(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", RequestIDFrom(r.Context()))
		})
	}
}

// PanicFunc answers a request whose handler panicked. It is only called
// when no header has been written yet.
type PanicFunc func(w http.ResponseWriter, r *http.Request, err error, stack []byte)

// Recover turns handler panics into a response produced by onPanic. The
// connection is left alone when the handler already started its response.
func Recover(logger logging.Logger, onPanic PanicFunc) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := NewRecorder(w)
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}

				stack := debug.Stack()
				err, ok := v.(error)
				if !ok {
					err = fmt.Errorf("%v", v)
				}

				if rec.WroteHeader() {
					logger.Error(r.Context(), err, "Handler panicked after response started",
						"path", r.URL.Path,
						"request_id", RequestIDFrom(r.Context()))
					return
				}
				onPanic(rec, r, err, stack)
			}()

			next.ServeHTTP(rec, r)
		})
	}
}

// Recorder remembers the status and size of a response.
type Recorder struct {
	http.ResponseWriter
	status      int
	written     int64
	wroteHeader bool
}

// NewRecorder wraps w, reusing w when it already is a Recorder.
func NewRecorder(w http.ResponseWriter) *Recorder {
	if rec, ok := w.(*Recorder); ok {
		return rec
	}
	return &Recorder{ResponseWriter: w, status: http.StatusOK}
}

// WriteHeader records code and forwards it.
func (r *Recorder) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.status = code
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(code)
}

// Write forwards b, writing a 200 header first if needed.
func (r *Recorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	n, err := r.ResponseWriter.Write(b)
	r.written += int64(n)
	return n, err
}

// Status returns the response status, 200 when none was written.
func (r *Recorder) Status() int {
	return r.status
}

// Written returns the number of body bytes written.
func (r *Recorder) Written() int64 {
	return r.written
}

// WroteHeader reports whether the status line has been sent.
func (r *Recorder) WroteHeader() bool {
	return r.wroteHeader
}

// Flush implements http.Flusher when the wrapped writer does.
func (r *Recorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack hands the connection over, as a WebSocket upgrade needs.
func (r *Recorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("%T does not implement http.Hijacker", r.ResponseWriter)
	}
	if !r.wroteHeader {
		r.status = http.StatusSwitchingProtocols
		r.wroteHeader = true
	}
	return hj.Hijack()
}

// Unwrap exposes the wrapped writer to http.ResponseController.
func (r *Recorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
