// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package httpserver

import (
	"io"
	"net/http"

	"github.com/gitbruv/gitbruv/pkg/serve/protocol"
	"github.com/gitbruv/gitbruv/pkg/version"
	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"
)

// InfoRefs advertises refs for the requested smart service. Authentication
// runs here rather than through OnFunc because the required operation depends
// on the service query parameter.
func (s *Server) InfoRefs(w http.ResponseWriter, r *http.Request) {
	svc := r.URL.Query().Get("service")
	if !protocol.IsSmartService(svc) {
		renderFailureFormat(w, r, http.StatusBadRequest, "unsupported service '%s'", svc)
		return
	}
	operation := protocol.DOWNLOAD
	if svc == protocol.ReceivePack {
		operation = protocol.UPLOAD
	}
	req, err := s.doAuth(w, r, operation)
	if err != nil {
		return
	}
	rr, err := s.open(w, req)
	if err != nil {
		return
	}
	w.Header().Set("Content-Type", protocol.AdvertisementType(svc))
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if err := protocol.AdvertiseRefs(req.Context(), rr.ODB(), svc, version.GetUserAgent(), w); err != nil {
		logrus.Errorf("advertise refs for '%s' error: %v", req.RemoteURL(), err)
	}
}

// UploadPack answers every fetch negotiation with a bare NAK and no packfile.
// Clients treat the empty response as "nothing to receive"; full fetch
// support arrives with protocol v2.
func (s *Server) UploadPack(w http.ResponseWriter, r *Request) {
	w.Header().Set("Content-Type", protocol.ResultType(protocol.UploadPack))
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("0008NAK\n"))
}

func requestBody(r *http.Request) (io.ReadCloser, error) {
	if EqualFold(r.Header.Get("Content-Encoding"), "gzip") {
		return gzip.NewReader(r.Body)
	}
	return r.Body, nil
}

// ReceivePack handles a push. The status report is written in band, so once
// DoPush starts reporting any error is already on the wire.
func (s *Server) ReceivePack(w http.ResponseWriter, r *Request) {
	rr, err := s.open(w, r)
	if err != nil {
		return
	}
	reader, err := requestBody(r.Request)
	if err != nil {
		renderFailureFormat(w, r.Request, http.StatusBadRequest, "bad request body: %v", err)
		return
	}
	defer reader.Close() // nolint:errcheck
	body, err := io.ReadAll(reader)
	if err != nil {
		renderFailureFormat(w, r.Request, http.StatusBadRequest, "read request body: %v", err)
		return
	}
	w.Header().Set("Content-Type", protocol.ResultType(protocol.ReceivePack))
	w.Header().Set("Cache-Control", "no-cache")
	if err := rr.DoPush(r.Context(), r.U.ID, body, w); err != nil {
		s.renderError(w, r, err)
		return
	}
}
