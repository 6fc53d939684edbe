// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package httpserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/gitbruv/gitbruv/modules/oss"
	"github.com/gitbruv/gitbruv/modules/plumbing"
	"github.com/gitbruv/gitbruv/pkg/serve"
	"github.com/gitbruv/gitbruv/pkg/serve/database"
	"github.com/gitbruv/gitbruv/pkg/serve/protocol"
	"github.com/gitbruv/gitbruv/pkg/serve/repo"
	"github.com/sirupsen/logrus"
)

const (
	ErrorMessageKey = "X-Gitbruv-Error-Message"
	JSON_MIME       = "application/json"
)

// ResponseWriter shadow ResponseWriter
type ResponseWriter struct {
	http.ResponseWriter
	written    int64
	statusCode int
	remoteAddr string
}

// NewResponseWriter bind ResponseWriter
func NewResponseWriter(w http.ResponseWriter, r *http.Request) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w, statusCode: http.StatusOK, remoteAddr: parseRemoteAddress(r)}
}

// Write data
func (w *ResponseWriter) Write(data []byte) (int, error) {
	written, err := w.ResponseWriter.Write(data)
	w.written += int64(written)
	return written, err
}

// WriteHeader write header statusCode
func (w *ResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// StatusCode return statusCode
func (w *ResponseWriter) StatusCode() int {
	return w.statusCode
}

// Written return body size
func (w *ResponseWriter) Written() int64 {
	return w.written
}

func (w *ResponseWriter) RemoteAddr() string {
	return w.remoteAddr
}

type trackedReader struct {
	rc       io.ReadCloser
	received int64
}

func newTrackedReader(rc io.ReadCloser) *trackedReader {
	return &trackedReader{rc: rc}
}

// Read reads up to len(data) bytes from the channel.
func (r *trackedReader) Read(data []byte) (int, error) {
	n, err := r.rc.Read(data)
	r.received += int64(n)
	return n, err
}

func (r *trackedReader) Close() error {
	return r.rc.Close()
}

func parseRemoteAddress(r *http.Request) string {
	xForwardedFor := r.Header.Get("X-Forwarded-For")
	if addr := strings.TrimSpace(strings.Split(xForwardedFor, ",")[0]); len(addr) != 0 {
		return addr
	}
	if addr := strings.TrimSpace(r.Header.Get("X-Real-Ip")); len(addr) != 0 {
		return addr
	}
	addr, _, _ := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	return addr
}

func renderFailureFormat(w http.ResponseWriter, r *http.Request, code int, format string, a ...any) {
	renderFailure(w, r, code, fmt.Sprintf(format, a...))
}

func renderFailure(w http.ResponseWriter, r *http.Request, code int, message string) {
	resp := &protocol.ErrorCode{
		Code:    code,
		Message: serve.W(r, message),
	}
	w.Header().Set("Content-Type", JSON_MIME)
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
	if code != 200 {
		r.Header.Set(ErrorMessageKey, message)
	}
}

type conflictResponse struct {
	Code             int      `json:"code"`
	Message          string   `json:"message"`
	ConflictingFiles []string `json:"conflictingFiles"`
}

// renderConflict reports a three way merge conflict, the client renders the
// conflicting paths.
func renderConflict(w http.ResponseWriter, r *http.Request, e *repo.ErrMergeConflict) {
	resp := &conflictResponse{
		Code:             http.StatusConflict,
		Message:          e.Error(),
		ConflictingFiles: e.Paths,
	}
	w.Header().Set("Content-Type", JSON_MIME)
	w.WriteHeader(http.StatusConflict)
	_ = json.NewEncoder(w).Encode(resp)
	r.Header.Set(ErrorMessageKey, e.Error())
}

func (s *Server) renderErrorRaw(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case plumbing.IsNoSuchObject(err), plumbing.IsErrRevNotFound(err):
		renderFailure(w, r, http.StatusNotFound, err.Error())
	case oss.IsNotExist(err), database.IsNotFound(err):
		renderFailureFormat(w, r, http.StatusNotFound, "resource not found: %v", err)
	case database.IsErrExist(err):
		renderFailure(w, r, http.StatusConflict, err.Error())
	case database.IsErrNamingRule(err):
		renderFailure(w, r, http.StatusBadRequest, err.Error())
	default:
		renderFailure(w, r, http.StatusInternalServerError, "internal server error")
		r.Header.Set(ErrorMessageKey, err.Error())
	}
}

func (s *Server) renderError(w http.ResponseWriter, r *Request, err error) {
	s.renderErrorRaw(w, r.Request, err)
}

func JsonEncode(w http.ResponseWriter, a any) {
	// The media type for JSON text is application/json, and RFC 8259
	// requires UTF-8 for text exchanged between open systems.
	w.Header().Set("Content-Type", JSON_MIME)
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(a); err != nil {
		logrus.Errorf("encode response error: %v", err)
	}
}
