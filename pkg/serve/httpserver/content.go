// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gitbruv/gitbruv/modules/git/object"
	"github.com/gitbruv/gitbruv/modules/plumbing"
	"github.com/gitbruv/gitbruv/pkg/serve/database"
	"github.com/gitbruv/gitbruv/pkg/serve/repo"
	"github.com/gorilla/mux"
)

const (
	defaultCommitsLimit = 20
	maxCommitsLimit     = 100
)

func (s *Server) GetBranches(w http.ResponseWriter, r *Request) {
	rr, err := s.open(w, r)
	if err != nil {
		return
	}
	branches, err := rr.Branches(r.Context())
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	JsonEncode(w, branches)
}

func parsePagination(r *http.Request) (limit, skip int) {
	limit = defaultCommitsLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = min(v, maxCommitsLimit)
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("skip")); err == nil && v > 0 {
		skip = v
	}
	return
}

type commitsResponse struct {
	Commits []*repo.CommitInfo `json:"commits"`
	HasMore bool               `json:"hasMore"`
}

func (s *Server) GetCommits(w http.ResponseWriter, r *Request) {
	rr, err := s.open(w, r)
	if err != nil {
		return
	}
	limit, skip := parsePagination(r.Request)
	commits, hasMore, err := rr.Commits(r.Context(), mux.Vars(r.Request)["branch"], limit, skip)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	JsonEncode(w, &commitsResponse{Commits: commits, HasMore: hasMore})
}

func (s *Server) GetCommitCount(w http.ResponseWriter, r *Request) {
	rr, err := s.open(w, r)
	if err != nil {
		return
	}
	count, err := rr.CommitCount(r.Context(), mux.Vars(r.Request)["branch"])
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	JsonEncode(w, map[string]int{"count": count})
}

func (s *Server) GetTree(w http.ResponseWriter, r *Request) {
	rr, err := s.open(w, r)
	if err != nil {
		return
	}
	mv := mux.Vars(r.Request)
	entries, err := rr.Tree(r.Context(), mv["rev"], mv["path"])
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	JsonEncode(w, entries)
}

func (s *Server) GetFile(w http.ResponseWriter, r *Request) {
	rr, err := s.open(w, r)
	if err != nil {
		return
	}
	mv := mux.Vars(r.Request)
	file, err := rr.File(r.Context(), mv["rev"], mv["path"])
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	JsonEncode(w, file)
}

func (s *Server) GetReadme(w http.ResponseWriter, r *Request) {
	rr, err := s.open(w, r)
	if err != nil {
		return
	}
	file, err := rr.Readme(r.Context(), mux.Vars(r.Request)["rev"])
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	JsonEncode(w, file)
}

type repositoryInfo struct {
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	DefaultBranch string    `json:"defaultBranch"`
	Public        bool      `json:"public"`
	Owner         string    `json:"owner"`
	OwnerName     string    `json:"ownerName"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// GetRepositoryInfo aggregates the repository row with its owner, the
// payload the web UI renders on the repository landing page.
func (s *Server) GetRepositoryInfo(w http.ResponseWriter, r *Request) {
	rr, err := s.open(w, r)
	if err != nil {
		return
	}
	JsonEncode(w, &repositoryInfo{
		Name:          r.R.Name,
		Description:   r.R.Description,
		DefaultBranch: rr.DefaultBranch(r.Context()),
		Public:        r.R.IsPublic(),
		Owner:         r.O.UserName,
		OwnerName:     r.O.Name,
		CreatedAt:     r.R.CreatedAt,
		UpdatedAt:     r.R.UpdatedAt,
	})
}

func (s *Server) GetCommitDiff(w http.ResponseWriter, r *Request) {
	rr, err := s.open(w, r)
	if err != nil {
		return
	}
	di, err := rr.CommitDiff(r.Context(), mux.Vars(r.Request)["rev"])
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	JsonEncode(w, di)
}

func (s *Server) GetCompare(w http.ResponseWriter, r *Request) {
	rr, err := s.open(w, r)
	if err != nil {
		return
	}
	mv := mux.Vars(r.Request)
	ci, err := rr.Compare(r.Context(), mv["base"], mv["head"])
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	JsonEncode(w, ci)
}

type mergeRequest struct {
	BaseBranch string `json:"baseBranch"`
	HeadOwner  string `json:"headOwner"`
	HeadRepo   string `json:"headRepo"`
	HeadBranch string `json:"headBranch"`
	Message    string `json:"message"`
}

func (s *Server) signatureOf(u *database.User) object.Signature {
	return object.Signature{
		Name:  u.Name,
		Email: u.Email,
		When:  time.Now(),
	}
}

// openHead resolves the merge source, which may live in a fork. An empty
// headOwner/headRepo pair means the source branch is in the base repository.
func (s *Server) openHead(w http.ResponseWriter, r *Request, base repo.Repository, headOwner, headRepo string) (repo.Repository, error) {
	if len(headOwner) == 0 || (headOwner == r.O.UserName && headRepo == r.R.Name) {
		return base, nil
	}
	head, err := s.hub.OpenByPath(r.Context(), headOwner, headRepo)
	if err != nil {
		s.renderError(w, r, err)
		return nil, err
	}
	return head, nil
}

// MergePullRequest merges a pull request: the head branch tree becomes the
// base branch tip via a two parent merge commit.
func (s *Server) MergePullRequest(w http.ResponseWriter, r *Request) {
	var payload mergeRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		renderFailureFormat(w, r.Request, http.StatusBadRequest, "decode merge request: %v", err)
		return
	}
	if len(payload.BaseBranch) == 0 || len(payload.HeadBranch) == 0 {
		renderFailure(w, r.Request, http.StatusBadRequest, "baseBranch and headBranch are required")
		return
	}
	rr, err := s.open(w, r)
	if err != nil {
		return
	}
	head, err := s.openHead(w, r, rr, payload.HeadOwner, payload.HeadRepo)
	if err != nil {
		return
	}
	oid, err := rr.Merge(r.Context(), head, payload.BaseBranch, payload.HeadBranch, s.signatureOf(r.U), payload.Message)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	JsonEncode(w, map[string]string{"oid": oid.String()})
}

type updateBranchRequest struct {
	BaseOwner  string `json:"baseOwner"`
	BaseRepo   string `json:"baseRepo"`
	BaseBranch string `json:"baseBranch"`
	HeadBranch string `json:"headBranch"`
}

// UpdateBranch folds the base branch into the pull request head with a three
// way merge, answering 409 with the conflicting paths when content collides.
func (s *Server) UpdateBranch(w http.ResponseWriter, r *Request) {
	var payload updateBranchRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		renderFailureFormat(w, r.Request, http.StatusBadRequest, "decode update-branch request: %v", err)
		return
	}
	if len(payload.BaseBranch) == 0 || len(payload.HeadBranch) == 0 {
		renderFailure(w, r.Request, http.StatusBadRequest, "baseBranch and headBranch are required")
		return
	}
	rr, err := s.open(w, r)
	if err != nil {
		return
	}
	base, err := s.openHead(w, r, rr, payload.BaseOwner, payload.BaseRepo)
	if err != nil {
		return
	}
	oid, err := rr.UpdateBranch(r.Context(), base, payload.HeadBranch, payload.BaseBranch, s.signatureOf(r.U))
	if err != nil {
		var conflict *repo.ErrMergeConflict
		if errors.As(err, &conflict) {
			renderConflict(w, r.Request, conflict)
			return
		}
		s.renderError(w, r, err)
		return
	}
	JsonEncode(w, map[string]string{"oid": oid.String()})
}

type protectionRequest struct {
	PreventDeletion   bool `json:"preventDeletion"`
	PreventDirectPush bool `json:"preventDirectPush"`
	PreventForcePush  bool `json:"preventForcePush"`
}

func (s *Server) PutBranchProtection(w http.ResponseWriter, r *Request) {
	var payload protectionRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		renderFailureFormat(w, r.Request, http.StatusBadRequest, "decode protection request: %v", err)
		return
	}
	branch := mux.Vars(r.Request)["branch"]
	if !plumbing.ValidateBranchName([]byte(branch)) {
		renderFailureFormat(w, r.Request, http.StatusBadRequest, "invalid branch name '%s'", branch)
		return
	}
	bp := &database.BranchProtection{
		RID:               r.R.ID,
		Branch:            branch,
		PreventDeletion:   payload.PreventDeletion,
		PreventDirectPush: payload.PreventDirectPush,
		PreventForcePush:  payload.PreventForcePush,
	}
	if err := s.db.UpsertBranchProtection(r.Context(), bp); err != nil {
		s.renderError(w, r, err)
		return
	}
	JsonEncode(w, bp)
}
