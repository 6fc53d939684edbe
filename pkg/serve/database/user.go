// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const (
	sqlFindUser = `SELECT    username,
          name,
          admin,
          email,
          password,
          signature_token,
          locked_at,
          created_at,
          updated_at
FROM      users
WHERE     id = ?`
	sqlSearchUserByName = `SELECT    id,
          username,
          name,
          admin,
          email,
          password,
          signature_token,
          locked_at,
          created_at,
          updated_at
FROM      users
WHERE     username = ?`
	sqlSearchUserByEmail = `SELECT    id,
          username,
          name,
          admin,
          email,
          password,
          signature_token,
          locked_at,
          created_at,
          updated_at
FROM      users
WHERE     email = ?`
)

func (d *database) FindUser(ctx context.Context, uid int64) (*User, error) {
	u := &User{
		ID: uid,
	}
	var lockedAt sql.NullTime
	if err := d.QueryRowContext(ctx, sqlFindUser, uid).Scan(
		&u.UserName, &u.Name, &u.Administrator, &u.Email, &u.Password, &u.SignatureToken, &lockedAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.LockedAt = lockedAt.Time
	return u, nil
}

// SearchUser looks a user up by login name, or by email when the input
// contains an '@'.
func (d *database) SearchUser(ctx context.Context, emailOrName string) (*User, error) {
	query := sqlSearchUserByName
	if strings.Contains(emailOrName, "@") {
		query = sqlSearchUserByEmail
	}
	var u User
	var lockedAt sql.NullTime
	if err := d.QueryRowContext(ctx, query, emailOrName).Scan(
		&u.ID, &u.UserName, &u.Name, &u.Administrator, &u.Email, &u.Password, &u.SignatureToken, &lockedAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.LockedAt = lockedAt.Time
	return &u, nil
}

func (d *database) NewUser(ctx context.Context, u *User) (*User, error) {
	if !validatePath(u.UserName) {
		return nil, &ErrNamingRule{name: u.UserName}
	}
	now := time.Now()
	result, err := d.ExecContext(ctx, "insert into users(username,name,admin,email,password,signature_token,created_at,updated_at) values(?,?,?,?,?,?,?,?)",
		u.UserName, u.Name, u.Administrator, u.Email, u.Password, u.SignatureToken, now, now)
	if IsDupEntry(err) {
		return nil, &ErrExist{message: "user already exists"}
	}
	if err != nil {
		return nil, fmt.Errorf("new user error: %w", err)
	}
	uid, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return d.FindUser(ctx, uid)
}
