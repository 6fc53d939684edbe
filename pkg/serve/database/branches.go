// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

func (d *database) FindBranch(ctx context.Context, rid int64, branchName string) (*Branch, error) {
	row := d.QueryRowContext(ctx,
		"select id, hash, commit_count, last_subject, last_author, last_committed_at, created_at, updated_at from branches where rid = ? and name = ?",
		rid, branchName)
	b := Branch{RID: rid, Name: branchName}
	err := row.Scan(&b.ID, &b.Hash, &b.CommitCount, &b.LastSubject, &b.LastAuthor, &b.LastCommittedAt, &b.CreatedAt, &b.UpdatedAt)
	if err == nil {
		return &b, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ErrRevisionNotFound{Revision: branchName}
	}
	return nil, err
}

func (d *database) ListBranches(ctx context.Context, rid int64) ([]*Branch, error) {
	rows, err := d.QueryContext(ctx,
		"select id, name, hash, commit_count, last_subject, last_author, last_committed_at, created_at, updated_at from branches where rid = ? order by name", rid)
	if err != nil {
		return nil, err
	}
	defer rows.Close() // nolint
	branches := make([]*Branch, 0, 16)
	for rows.Next() {
		b := &Branch{RID: rid}
		if err := rows.Scan(&b.ID, &b.Name, &b.Hash, &b.CommitCount, &b.LastSubject, &b.LastAuthor, &b.LastCommittedAt, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		branches = append(branches, b)
	}
	return branches, rows.Err()
}

// UpsertBranch refreshes the denormalized branch row after a ref update.
func (d *database) UpsertBranch(ctx context.Context, b *Branch) error {
	now := time.Now()
	_, err := d.ExecContext(ctx,
		`insert into branches(rid, name, hash, commit_count, last_subject, last_author, last_committed_at, created_at, updated_at)
values(?,?,?,?,?,?,?,?,?)
on duplicate key update
hash = values(hash), commit_count = values(commit_count), last_subject = values(last_subject),
last_author = values(last_author), last_committed_at = values(last_committed_at), updated_at = values(updated_at)`,
		b.RID, b.Name, b.Hash, b.CommitCount, b.LastSubject, b.LastAuthor, b.LastCommittedAt, now, now)
	return err
}

func (d *database) RemoveBranch(ctx context.Context, rid int64, branchName string) error {
	_, err := d.ExecContext(ctx, "delete from branches where rid = ? and name = ?", rid, branchName)
	return err
}

// FindBranchProtection returns the protection rule for a branch, or nil when
// the branch carries no rule.
func (d *database) FindBranchProtection(ctx context.Context, rid int64, branchName string) (*BranchProtection, error) {
	row := d.QueryRowContext(ctx,
		"select id, prevent_deletion, prevent_direct_push, prevent_force_push, created_at, updated_at from branch_protections where rid = ? and branch = ?",
		rid, branchName)
	p := BranchProtection{RID: rid, Branch: branchName}
	err := row.Scan(&p.ID, &p.PreventDeletion, &p.PreventDirectPush, &p.PreventForcePush, &p.CreatedAt, &p.UpdatedAt)
	if err == nil {
		return &p, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return nil, err
}

func (d *database) UpsertBranchProtection(ctx context.Context, p *BranchProtection) error {
	now := time.Now()
	_, err := d.ExecContext(ctx,
		`insert into branch_protections(rid, branch, prevent_deletion, prevent_direct_push, prevent_force_push, created_at, updated_at)
values(?,?,?,?,?,?,?)
on duplicate key update
prevent_deletion = values(prevent_deletion), prevent_direct_push = values(prevent_direct_push),
prevent_force_push = values(prevent_force_push), updated_at = values(updated_at)`,
		p.RID, p.Branch, p.PreventDeletion, p.PreventDirectPush, p.PreventForcePush, now, now)
	return err
}
