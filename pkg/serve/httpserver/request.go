// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package httpserver

import (
	"fmt"
	"net/http"

	"github.com/gitbruv/gitbruv/pkg/serve/database"
)

// Request is an authenticated, repository scoped request. U is the acting
// user, nil for anonymous reads of public repositories. O is the repository
// owner.
type Request struct {
	*http.Request
	U *database.User
	O *database.User
	R *database.Repository
}

func resolveScheme(r *http.Request) string {
	if scheme := r.Header.Get("X-Forwarded-Proto"); len(scheme) != 0 {
		return scheme
	}
	if scheme := r.Header.Get("X-Real-Scheme"); len(scheme) != 0 {
		return scheme
	}
	return "http"
}

// RemoteURL is the clone URL of the repository as seen by the client, used
// in error hints and access log lines.
func (r *Request) RemoteURL() string {
	return fmt.Sprintf("%s://%s/%s/%s", resolveScheme(r.Request), r.Host, r.O.UserName, r.R.Name)
}
