// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

type DB interface {
	Database() *sql.DB
	FindUser(ctx context.Context, uid int64) (*User, error)
	SearchUser(ctx context.Context, emailOrName string) (*User, error)
	NewUser(ctx context.Context, u *User) (*User, error)
	FindRepositoryByID(ctx context.Context, rid int64) (*User, *Repository, error)
	FindRepositoryByPath(ctx context.Context, ownerName, repoName string) (*User, *Repository, error)
	NewRepository(ctx context.Context, r *Repository) (*Repository, error)
	DeleteRepository(ctx context.Context, rid int64) error
	ListRepositories(ctx context.Context, ownerID int64) ([]*Repository, error)
	FindBranch(ctx context.Context, rid int64, branchName string) (*Branch, error)
	ListBranches(ctx context.Context, rid int64) ([]*Branch, error)
	UpsertBranch(ctx context.Context, b *Branch) error
	RemoveBranch(ctx context.Context, rid int64, branchName string) error
	FindBranchProtection(ctx context.Context, rid int64, branchName string) (*BranchProtection, error)
	UpsertBranchProtection(ctx context.Context, p *BranchProtection) error
	Close() error
}

type database struct {
	*sql.DB
}

func (d *database) Database() *sql.DB {
	return d.DB
}

func (d *database) Close() error {
	return d.DB.Close()
}

var (
	_ DB = &database{}
)

func NewDB(cfg *mysql.Config) (DB, error) {
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("new connector: %w", err)
	}

	db := sql.OpenDB(connector)
	db.SetMaxIdleConns(25)
	db.SetMaxOpenConns(50)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &database{DB: db}, nil
}
