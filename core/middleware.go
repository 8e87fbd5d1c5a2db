package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

var (
	ErrBodyTooLarge  = fmt.Errorf("request body exceeds %d bytes", MaxBodyBytes)
	ErrMalformedJSON = errors.New("malformed JSON body")
	ErrNoRoute       = errors.New("no route")
)

// Body is the request body as buffered by the body parser. Err is set when
// the body could not be read or does not match its content type; routes
// decide whether that matters.
type Body struct {
	Raw  []byte
	Form url.Values
	Err  error
}

type bodyKey struct{}

type failKey struct{}

// BodyFrom returns the body parsed for the request carrying ctx.
func BodyFrom(ctx context.Context) (*Body, bool) {
	b, ok := ctx.Value(bodyKey{}).(*Body)
	return b, ok
}

// Fail hands err to the terminal error handler, which answers with 500.
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	if fail, ok := r.Context().Value(failKey{}).(func(http.ResponseWriter, *http.Request, error)); ok {
		fail(w, r, err)
		return
	}
	writeError(w, r, err)
}

// recoverErrors is the terminal stage: it renders errors passed to Fail and
// panics raised by any later stage.
func (s *Server) recoverErrors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.metrics.observeRequest(r.Method, http.StatusInternalServerError)
				s.fail(w, r, panicError(rec))
			}
		}()
		ctx := context.WithValue(r.Context(), failKey{}, s.fail)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, r, err)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, ErrorResponse{Error: "Internal server error", Message: err.Error()})
}

// parseBody buffers the body, validates JSON and decodes URL-encoded forms.
// Nested form keys like a[b]=c are kept as-is.
func (s *Server) parseBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := readBody(r)
		r.Body = io.NopCloser(bytes.NewReader(body.Raw))
		ctx := context.WithValue(r.Context(), bodyKey{}, body)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func readBody(r *http.Request) *Body {
	body := &Body{}
	if r.Body == nil || r.Body == http.NoBody {
		return body
	}
	defer r.Body.Close()

	data, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil {
		body.Err = fmt.Errorf("read body: %w", err)
		return body
	}
	if len(data) > MaxBodyBytes {
		body.Err = ErrBodyTooLarge
		return body
	}
	body.Raw = data

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		if len(bytes.TrimSpace(data)) > 0 && !json.Valid(data) {
			body.Err = ErrMalformedJSON
		}
	case "application/x-www-form-urlencoded":
		form, err := url.ParseQuery(string(data))
		if err != nil {
			body.Err = fmt.Errorf("parse form: %w", err)
		}
		body.Form = form
	}
	return body
}

// logRequests logs every request before dispatch and counts the responses
// of requests that complete without panicking.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		s.logger.Info("request", "method", r.Method, "path", r.URL.Path, "request_id", id)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.observeRequest(r.Method, status)
	})
}

type panicValue struct {
	v any
}

func (p panicValue) Error() string { return fmt.Sprint(p.v) }

func panicError(rec any) error {
	if err, ok := rec.(error); ok {
		return err
	}
	return panicValue{v: rec}
}
