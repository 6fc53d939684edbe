// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package database

import (
	"regexp"
	"strings"
	"time"
)

const (
	DefaultBranch = "main"
	DeletedSuffix = ".deleted"
	Dot           = "."
	DotDot        = ".."
)

type User struct {
	ID             int64     `json:"id"`
	UserName       string    `json:"username"`
	Name           string    `json:"name"`
	Administrator  bool      `json:"administrator"`
	Email          string    `json:"email"`
	LockedAt       time.Time `json:"locked_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Password       string    `json:"-"`
	SignatureToken string    `json:"-"`
}

func (u *User) Guard() {
	u.Password = ""
}

func (u *User) IsLocked() bool {
	return !u.LockedAt.IsZero() && u.LockedAt.Unix() != 0
}

const (
	PrivateRepository = 0
	PublicRepository  = 20
)

type Repository struct {
	ID            int64     `json:"id"`
	OwnerID       int64     `json:"owner_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	VisibleLevel  int       `json:"visible_level"` // 0-private, 20-public
	DefaultBranch string    `json:"default_branch"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (r *Repository) IsPublic() bool {
	return r.VisibleLevel == PublicRepository
}

var (
	pathRegex = regexp.MustCompile(`^[a-zA-Z0-9\-_\.]*$`)
)

func validatePath(p string) bool {
	return len(p) != 0 && p != Dot && p != DotDot && !strings.HasSuffix(p, DeletedSuffix) && pathRegex.MatchString(p)
}

func (r *Repository) Validate() error {
	if !validatePath(r.Name) {
		return &ErrNamingRule{name: r.Name}
	}
	if len(r.DefaultBranch) == 0 {
		r.DefaultBranch = DefaultBranch
	}
	return nil
}

// Branch is denormalized branch metadata refreshed on every push, it backs
// the branch listing endpoints without a walk through the object store.
type Branch struct {
	ID              int64     `json:"id"`
	RID             int64     `json:"rid"`
	Name            string    `json:"name"`
	Hash            string    `json:"hash"`
	CommitCount     int64     `json:"commit_count"`
	LastSubject     string    `json:"last_subject"`
	LastAuthor      string    `json:"last_author"`
	LastCommittedAt time.Time `json:"last_committed_at"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// BranchProtection is the per-branch rule set consulted before any ref
// update on a receive-pack request.
type BranchProtection struct {
	ID                int64     `json:"id"`
	RID               int64     `json:"rid"`
	Branch            string    `json:"branch"`
	PreventDeletion   bool      `json:"prevent_deletion"`
	PreventDirectPush bool      `json:"prevent_direct_push"`
	PreventForcePush  bool      `json:"prevent_force_push"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
