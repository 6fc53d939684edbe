// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/gitbruv/gitbruv/pkg/serve"
	"github.com/gitbruv/gitbruv/pkg/serve/database"
	"github.com/gitbruv/gitbruv/pkg/serve/protocol"
	"github.com/gitbruv/gitbruv/pkg/serve/repo"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type HandlerFunc func(http.ResponseWriter, *Request)

type Server struct {
	*ServerConfig
	srv        *http.Server
	r          *mux.Router
	db         database.DB
	hub        repo.Repositories
	serverName string
}

// SmartHTTPRouter wires the three Git Smart HTTP endpoints. The trailing
// ".git" on the repository segment is optional and stripped in repoVars.
func (s *Server) SmartHTTPRouter(r *mux.Router) {
	r.HandleFunc("/{owner}/{repo}/info/refs", s.InfoRefs).Methods("GET")
	r.HandleFunc("/{owner}/{repo}/git-upload-pack", s.OnFunc(s.UploadPack, protocol.DOWNLOAD)).Methods("POST")
	r.HandleFunc("/{owner}/{repo}/git-receive-pack", s.OnFunc(s.ReceivePack, protocol.UPLOAD)).Methods("POST")
}

// ContentRouter serves the browse API consumed by the web UI.
func (s *Server) ContentRouter(r *mux.Router) {
	r.HandleFunc("/api/{owner}/{repo}/info", s.OnFunc(s.GetRepositoryInfo, protocol.DOWNLOAD)).Methods("GET")
	r.HandleFunc("/api/{owner}/{repo}/readme/{rev}", s.OnFunc(s.GetReadme, protocol.DOWNLOAD)).Methods("GET")
	r.HandleFunc("/api/{owner}/{repo}/branches", s.OnFunc(s.GetBranches, protocol.DOWNLOAD)).Methods("GET")
	r.HandleFunc("/api/{owner}/{repo}/commits/{branch}", s.OnFunc(s.GetCommits, protocol.DOWNLOAD)).Methods("GET")
	r.HandleFunc("/api/{owner}/{repo}/commit-count/{branch}", s.OnFunc(s.GetCommitCount, protocol.DOWNLOAD)).Methods("GET")
	r.HandleFunc("/api/{owner}/{repo}/tree/{rev}", s.OnFunc(s.GetTree, protocol.DOWNLOAD)).Methods("GET")
	r.HandleFunc("/api/{owner}/{repo}/tree/{rev}/{path:.*}", s.OnFunc(s.GetTree, protocol.DOWNLOAD)).Methods("GET")
	r.HandleFunc("/api/{owner}/{repo}/file/{rev}/{path:.*}", s.OnFunc(s.GetFile, protocol.DOWNLOAD)).Methods("GET")
	r.HandleFunc("/api/{owner}/{repo}/diff/{rev}", s.OnFunc(s.GetCommitDiff, protocol.DOWNLOAD)).Methods("GET")
	r.HandleFunc("/api/{owner}/{repo}/compare/{base}/{head}", s.OnFunc(s.GetCompare, protocol.DOWNLOAD)).Methods("GET")
	r.HandleFunc("/api/{owner}/{repo}/merge", s.OnFunc(s.MergePullRequest, protocol.UPLOAD)).Methods("POST")
	r.HandleFunc("/api/{owner}/{repo}/update-branch", s.OnFunc(s.UpdateBranch, protocol.UPLOAD)).Methods("POST")
	r.HandleFunc("/api/{owner}/{repo}/protection/{branch}", s.OnFunc(s.PutBranchProtection, protocol.UPLOAD)).Methods("PUT")
}

func (s *Server) initialize() error {
	if err := serve.RegisterLanguageMatcher(); err != nil {
		logrus.Warnf("register language matcher error: %v", err)
	}
	r := mux.NewRouter().UseEncodedPath()
	s.SmartHTTPRouter(r)
	s.ContentRouter(r)
	s.ManagementRouter(r)
	s.r = r
	s.srv.Handler = s
	return nil
}

func NewServer(sc *ServerConfig) (*Server, error) {
	if sc.DB == nil || sc.OSS == nil || sc.Redis == nil {
		fmt.Fprintf(os.Stderr, "database, oss or redis not configured\n")
		return nil, errors.New("missing config")
	}
	srv := &Server{
		ServerConfig: sc,
		srv: &http.Server{
			Addr:         sc.Listen,
			ReadTimeout:  sc.ReadTimeout.Duration,
			IdleTimeout:  sc.IdleTimeout.Duration,
			WriteTimeout: sc.WriteTimeout.Duration,
		},
		serverName: sc.BannerVersion,
	}
	if err := srv.initialize(); err != nil {
		return nil, err
	}
	cfg, err := sc.DB.MakeConfig()
	if err != nil {
		return nil, err
	}
	if srv.db, err = database.NewDB(cfg); err != nil {
		return nil, err
	}
	if srv.hub, err = repo.NewRepositories(context.Background(), sc.OSS, sc.Cache, sc.Redis, srv.db); err != nil {
		_ = srv.db.Close()
		return nil, err
	}
	return srv, nil
}

func (s *Server) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

func logResponse(hw *ResponseWriter, r *http.Request, tr *trackedReader, spent time.Duration) {
	message := r.Header.Get(ErrorMessageKey)
	statusCode := hw.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusBadRequest && len(message) == 0 {
		logrus.Infof("[%s] %s %s status: %d received: %d written: %d spent: %v", hw.RemoteAddr(), r.Method, r.RequestURI, statusCode, tr.received, hw.Written(), spent)
		return
	}
	logrus.Errorf("[%s] %s %s status: %d received: %d written: %d spent: %v message: %s", hw.RemoteAddr(), r.Method, r.RequestURI, statusCode, tr.received, hw.Written(), spent, message)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// remove multiple slash and ./..
	if r.URL != nil {
		r.URL.Path = path.Clean(r.URL.Path)
	}

	w.Header().Set("Server", s.serverName)
	tr := newTrackedReader(r.Body)
	r.Body = tr
	now := time.Now()
	hw := NewResponseWriter(w, r)
	s.r.ServeHTTP(hw, r)
	spent := time.Since(now)
	logResponse(hw, r, tr, spent)
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		logrus.Errorf("shutdown http server %v", err)
	}
	if s.hub != nil {
		_ = s.hub.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return nil
}

// repoVars pulls owner and repository out of the route, stripping the
// optional ".git" suffix Git clients append.
func repoVars(r *http.Request) (owner, repoName string) {
	mv := mux.Vars(r)
	owner = mv["owner"]
	repoName = strings.TrimSuffix(mv["repo"], ".git")
	return
}

func (s *Server) open(w http.ResponseWriter, r *Request) (repo.Repository, error) {
	rr, err := s.hub.Open(r.Context(), r.O, r.R)
	if err != nil {
		s.renderError(w, r, err)
		return nil, err
	}
	return rr, nil
}
