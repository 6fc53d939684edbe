// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package httpserver

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/gitbruv/gitbruv/pkg/serve/argon2id"
	"github.com/gitbruv/gitbruv/pkg/serve/database"
	"github.com/gitbruv/gitbruv/pkg/serve/protocol"
	"github.com/gorilla/mux"
)

// ManagementRouter registers the account and repository management
// endpoints. Every route requires an authenticated administrator.
func (s *Server) ManagementRouter(r *mux.Router) {
	r.HandleFunc("/api/management/users", s.OnAdmin(s.CreateUser)).Methods("POST")
	r.HandleFunc("/api/management/{owner}/repositories", s.OnAdmin(s.CreateRepository)).Methods("POST")
	r.HandleFunc("/api/management/{owner}/repositories", s.OnAdmin(s.ListRepositories)).Methods("GET")
	r.HandleFunc("/api/management/{owner}/{repo}", s.OnAdmin(s.DeleteRepository)).Methods("DELETE")
}

// OnAdmin guards the management surface. Bearer tokens need write scope,
// Basic credentials resolve as usual, and the resulting user must be an
// administrator.
func (s *Server) OnAdmin(fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := s.authenticate(w, r, protocol.UPLOAD)
		if err != nil {
			return
		}
		if u == nil {
			renderUnauthorized(w, r, "authentication required")
			return
		}
		if !u.Administrator {
			renderFailureFormat(w, r, http.StatusForbidden, "management access denied, current user: %s", u.UserName)
			return
		}
		fn(w, r)
	}
}

type newUserRequest struct {
	UserName      string `json:"userName"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Password      string `json:"password"`
	Administrator bool   `json:"administrator"`
}

func newSignatureToken() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

func (s *Server) CreateUser(w http.ResponseWriter, r *http.Request) {
	var payload newUserRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		renderFailureFormat(w, r, http.StatusBadRequest, "decode user request: %v", err)
		return
	}
	if len(payload.UserName) == 0 || len(payload.Password) == 0 {
		renderFailure(w, r, http.StatusBadRequest, "userName and password are required")
		return
	}
	hashed, err := argon2id.CreateHash(payload.Password, argon2id.DefaultParams)
	if err != nil {
		renderFailureFormat(w, r, http.StatusInternalServerError, "hash password: %v", err)
		return
	}
	token, err := newSignatureToken()
	if err != nil {
		renderFailureFormat(w, r, http.StatusInternalServerError, "generate signature token: %v", err)
		return
	}
	u := &database.User{
		UserName:       payload.UserName,
		Name:           payload.Name,
		Email:          payload.Email,
		Administrator:  payload.Administrator,
		Password:       hashed,
		SignatureToken: token,
	}
	newUser, err := s.db.NewUser(r.Context(), u)
	if err != nil {
		s.renderErrorRaw(w, r, err)
		return
	}
	newUser.Guard()
	JsonEncode(w, newUser)
}

type newRepositoryRequest struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	DefaultBranch string `json:"defaultBranch"`
	Public        bool   `json:"public"`
}

func (s *Server) CreateRepository(w http.ResponseWriter, r *http.Request) {
	var payload newRepositoryRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		renderFailureFormat(w, r, http.StatusBadRequest, "decode repository request: %v", err)
		return
	}
	owner, err := s.db.SearchUser(r.Context(), mux.Vars(r)["owner"])
	if err != nil {
		s.renderErrorRaw(w, r, err)
		return
	}
	visibleLevel := database.PrivateRepository
	if payload.Public {
		visibleLevel = database.PublicRepository
	}
	defaultBranch := payload.DefaultBranch
	if len(defaultBranch) == 0 {
		defaultBranch = database.DefaultBranch
	}
	repo := &database.Repository{
		OwnerID:       owner.ID,
		Name:          payload.Name,
		Description:   payload.Description,
		VisibleLevel:  visibleLevel,
		DefaultBranch: defaultBranch,
	}
	newRepo, err := s.hub.New(r.Context(), repo, owner)
	if err != nil {
		s.renderErrorRaw(w, r, err)
		return
	}
	JsonEncode(w, newRepo)
}

func (s *Server) ListRepositories(w http.ResponseWriter, r *http.Request) {
	owner, err := s.db.SearchUser(r.Context(), mux.Vars(r)["owner"])
	if err != nil {
		s.renderErrorRaw(w, r, err)
		return
	}
	repos, err := s.db.ListRepositories(r.Context(), owner.ID)
	if err != nil {
		s.renderErrorRaw(w, r, err)
		return
	}
	JsonEncode(w, repos)
}

func (s *Server) DeleteRepository(w http.ResponseWriter, r *http.Request) {
	ownerName, repoName := repoVars(r)
	if err := s.hub.Delete(r.Context(), ownerName, repoName); err != nil {
		s.renderErrorRaw(w, r, err)
		return
	}
	JsonEncode(w, map[string]string{"status": "deleted"})
}
