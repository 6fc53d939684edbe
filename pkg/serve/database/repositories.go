// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package database

import (
	"context"
	"time"
)

const (
	sqlRepoFromID = `select
  r.name
, r.description
, r.visible_level
, r.default_branch
, r.created_at
, r.updated_at
, u.id
, u.username
, u.name
, u.admin
, u.email
, u.created_at
, u.updated_at
from
repositories as r inner join users as u on r.owner_id = u.id
where
r.id = ?`
	sqlRepoFromPath = `select
  r.id
, r.name
, r.description
, r.visible_level
, r.default_branch
, r.created_at
, r.updated_at
, u.id
, u.username
, u.name
, u.admin
, u.email
, u.created_at
, u.updated_at
from
repositories as r inner join users as u on r.owner_id = u.id
where
u.username = ?
and r.name = ?`
)

func (d *database) FindRepositoryByID(ctx context.Context, rid int64) (*User, *Repository, error) {
	var u User
	r := Repository{ID: rid}
	if err := d.QueryRowContext(ctx, sqlRepoFromID, rid).Scan(
		&r.Name, &r.Description, &r.VisibleLevel, &r.DefaultBranch, &r.CreatedAt, &r.UpdatedAt,
		&u.ID, &u.UserName, &u.Name, &u.Administrator, &u.Email, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, nil, err
	}
	r.OwnerID = u.ID
	return &u, &r, nil
}

func (d *database) FindRepositoryByPath(ctx context.Context, ownerName, repoName string) (*User, *Repository, error) {
	var u User
	var r Repository
	if err := d.QueryRowContext(ctx, sqlRepoFromPath, ownerName, repoName).Scan(
		&r.ID, &r.Name, &r.Description, &r.VisibleLevel, &r.DefaultBranch, &r.CreatedAt, &r.UpdatedAt,
		&u.ID, &u.UserName, &u.Name, &u.Administrator, &u.Email, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, nil, err
	}
	r.OwnerID = u.ID
	return &u, &r, nil
}

const (
	sqlNewRepository = `INSERT    INTO repositories (
          name,
          description,
          visible_level,
          default_branch,
          owner_id,
          created_at,
          updated_at
          )
VALUES    (?, ?, ?, ?, ?, ?, ?)`
)

func (d *database) NewRepository(ctx context.Context, r *Repository) (*Repository, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	now := time.Now()
	result, err := d.ExecContext(ctx, sqlNewRepository, r.Name, r.Description, r.VisibleLevel, r.DefaultBranch, r.OwnerID, now, now)
	if IsDupEntry(err) {
		return nil, &ErrExist{message: "repository already exists"}
	}
	if err != nil {
		return nil, err
	}
	rid, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Repository{
		ID:            rid,
		OwnerID:       r.OwnerID,
		Name:          r.Name,
		Description:   r.Description,
		VisibleLevel:  r.VisibleLevel,
		DefaultBranch: r.DefaultBranch,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// DeleteRepository removes the repository row and its branch metadata and
// protection rules. Object store keys are removed by the caller.
func (d *database) DeleteRepository(ctx context.Context, rid int64) error {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, q := range []string{
		"delete from branch_protections where rid = ?",
		"delete from branches where rid = ?",
		"delete from repositories where id = ?",
	} {
		if _, err := tx.ExecContext(ctx, q, rid); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (d *database) ListRepositories(ctx context.Context, ownerID int64) ([]*Repository, error) {
	rows, err := d.QueryContext(ctx,
		"select id, name, description, visible_level, default_branch, created_at, updated_at from repositories where owner_id = ? order by name", ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() // nolint
	repos := make([]*Repository, 0, 16)
	for rows.Next() {
		r := &Repository{OwnerID: ownerID}
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.VisibleLevel, &r.DefaultBranch, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}
