// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositoryValidate(t *testing.T) {
	r := &Repository{Name: "my-repo_1.0"}
	require.NoError(t, r.Validate())
	assert.Equal(t, DefaultBranch, r.DefaultBranch)

	r = &Repository{Name: "demo", DefaultBranch: "trunk"}
	require.NoError(t, r.Validate())
	assert.Equal(t, "trunk", r.DefaultBranch)

	for _, name := range []string{"", ".", "..", "has space", "has/slash", "gone.deleted"} {
		err := (&Repository{Name: name}).Validate()
		assert.True(t, IsErrNamingRule(err), "name %q", name)
	}
}

func TestRepositoryVisibility(t *testing.T) {
	assert.False(t, (&Repository{VisibleLevel: PrivateRepository}).IsPublic())
	assert.True(t, (&Repository{VisibleLevel: PublicRepository}).IsPublic())
}

func TestUserGuard(t *testing.T) {
	u := &User{UserName: "alice", Password: "secret-hash"}
	u.Guard()
	assert.Empty(t, u.Password)
}

func TestUserIsLocked(t *testing.T) {
	assert.False(t, (&User{}).IsLocked())
	assert.False(t, (&User{LockedAt: time.Unix(0, 0)}).IsLocked())
	assert.True(t, (&User{LockedAt: time.Unix(1700000000, 0)}).IsLocked())
}

func TestErrorPredicates(t *testing.T) {
	assert.True(t, IsNotFound(&ErrRevisionNotFound{Revision: "main"}))
	assert.True(t, IsErrRevisionNotFound(&ErrRevisionNotFound{Revision: "main"}))
	assert.False(t, IsNotFound(nil))
	assert.False(t, IsErrExist(nil))
	assert.False(t, IsErrNamingRule(nil))
}
