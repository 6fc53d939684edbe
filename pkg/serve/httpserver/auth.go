// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package httpserver

import (
	"database/sql"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/gitbruv/gitbruv/pkg/serve/argon2id"
	"github.com/gitbruv/gitbruv/pkg/serve/database"
	"github.com/gitbruv/gitbruv/pkg/serve/protocol"
	"github.com/sirupsen/logrus"
)

const (
	AUTHORIZATION = "Authorization"
	Realm         = "gitbruv"
)

var (
	ErrStop         = errors.New("stop")
	ErrAccessDenied = errors.New("access denied")
)

// EqualFold is strings.EqualFold, ASCII only. It reports whether s and t
// are equal, ASCII-case-insensitively.
func EqualFold(s, t string) bool {
	if len(s) != len(t) {
		return false
	}
	for i := 0; i < len(s); i++ {
		if lower(s[i]) != lower(t[i]) {
			return false
		}
	}
	return true
}

// lower returns the ASCII lowercase version of b.
func lower(b byte) byte {
	if 'A' <= b && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

// parseBasicAuth parses an HTTP Basic Authentication string.
// "Basic QWxhZGRpbjpvcGVuIHNlc2FtZQ==" returns ("Aladdin", "open sesame", true).
func parseBasicAuth(auth string) (username, password string, ok bool) {
	const prefix = "Basic "
	// Case insensitive prefix match. See Issue 22736.
	if len(auth) < len(prefix) || !EqualFold(auth[:len(prefix)], prefix) {
		return "", "", false
	}
	c, err := base64.StdEncoding.DecodeString(auth[len(prefix):])
	if err != nil {
		return "", "", false
	}
	cs := string(c)
	username, password, ok = strings.Cut(cs, ":")
	if !ok {
		return "", "", false
	}
	return username, password, true
}

func renderUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("WWW-Authenticate", `Basic realm="`+Realm+`"`)
	renderFailure(w, r, http.StatusUnauthorized, message)
}

// verifyBasic resolves the Basic credential to a user. The identifier is a
// login name or an email address.
func (s *Server) verifyBasic(w http.ResponseWriter, r *http.Request, cred string) (*database.User, error) {
	user, password, ok := parseBasicAuth(cred)
	if !ok {
		renderUnauthorized(w, r, "missing credential")
		return nil, ErrStop
	}
	u, err := s.db.SearchUser(r.Context(), user)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			renderUnauthorized(w, r, "user '"+user+"' not found")
			return nil, ErrStop
		}
		renderFailure(w, r, http.StatusInternalServerError, "internal server error")
		logrus.Errorf("find user '%s' error: %v", user, err)
		return nil, err
	}
	if ok, err = argon2id.ComparePasswordAndHash(password, u.Password); err != nil {
		renderFailure(w, r, http.StatusInternalServerError, "broken salted password")
		return nil, err
	}
	if !ok {
		renderUnauthorized(w, r, "password unmatched")
		return nil, ErrStop
	}
	if u.IsLocked() {
		renderFailureFormat(w, r, http.StatusForbidden, "user '%s' is locked at: %v", u.UserName, u.LockedAt)
		return nil, ErrStop
	}
	u.Guard()
	return u, nil
}

// findRepository resolves the routed owner/repo pair.
func (s *Server) findRepository(w http.ResponseWriter, r *http.Request) (*database.User, *database.Repository, error) {
	ownerName, repoName := repoVars(r)
	owner, repo, err := s.db.FindRepositoryByPath(r.Context(), ownerName, repoName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			renderFailureFormat(w, r, http.StatusNotFound, "repo '%s/%s' not found", ownerName, repoName)
			return nil, nil, ErrStop
		}
		renderFailureFormat(w, r, http.StatusInternalServerError, "search repo '%s/%s' error: %v", ownerName, repoName, err)
		return nil, nil, ErrStop
	}
	return owner, repo, nil
}

// authenticate resolves the request credential to a user: bearer tokens
// first, then Basic. A request without a credential yields a nil user.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request, operation protocol.Operation) (*database.User, error) {
	cred := r.Header.Get(AUTHORIZATION)
	if bearerToken, ok := parseBearerToken(cred); ok {
		u, m, err := s.ParseJWT(w, r, bearerToken)
		if err != nil {
			return nil, err
		}
		if !m.Match(operation) {
			renderFailureFormat(w, r, http.StatusForbidden, "access denied, bearer token operation '%s' not match request operation: '%s'", m.Operation, operation)
			return nil, ErrStop
		}
		return u, nil
	}
	if len(cred) != 0 {
		return s.verifyBasic(w, r, cred)
	}
	return nil, nil
}

// doAuth authenticates the request and enforces the access policy: pushes
// require the repository owner, private repositories gate reads to the
// owner. Anonymous reads of public repositories pass with a nil user.
func (s *Server) doAuth(w http.ResponseWriter, r *http.Request, operation protocol.Operation) (*Request, error) {
	u, err := s.authenticate(w, r, operation)
	if err != nil {
		return nil, err
	}
	owner, repo, err := s.findRepository(w, r)
	if err != nil {
		return nil, err
	}
	if err := s.checkAccess(w, r, operation, owner, repo, u); err != nil {
		return nil, err
	}
	return &Request{
		Request: r,
		U:       u,
		O:       owner,
		R:       repo,
	}, nil
}

func (s *Server) checkAccess(w http.ResponseWriter, r *http.Request, operation protocol.Operation, owner *database.User, repo *database.Repository, u *database.User) error {
	switch operation {
	case protocol.DOWNLOAD:
		if repo.IsPublic() {
			return nil
		}
		if u == nil {
			renderUnauthorized(w, r, "authentication required")
			return ErrStop
		}
		if u.Administrator || u.ID == owner.ID {
			return nil
		}
		renderFailureFormat(w, r, http.StatusForbidden, "[DOWNLOAD] access denied, current user: %s", u.UserName)
		return ErrAccessDenied
	case protocol.UPLOAD:
		if u == nil {
			renderUnauthorized(w, r, "authentication required")
			return ErrStop
		}
		if u.Administrator || u.ID == owner.ID {
			return nil
		}
		renderFailureFormat(w, r, http.StatusForbidden, "[UPLOAD] access denied, current user: %s", u.UserName)
		return ErrAccessDenied
	}
	renderFailureFormat(w, r, http.StatusBadRequest, "bad operation name '%s'", operation)
	return ErrStop
}

func (s *Server) OnFunc(fn HandlerFunc, operation protocol.Operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := s.doAuth(w, r, operation)
		if err != nil {
			return
		}
		fn(w, req)
	}
}
