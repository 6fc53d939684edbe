// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"context"
	"errors"
	"io"

	"github.com/gitbruv/gitbruv/modules/plumbing"
	"github.com/gitbruv/gitbruv/pkg/serve/database"
	"github.com/gitbruv/gitbruv/pkg/serve/protocol"
	"github.com/sirupsen/logrus"
)

const (
	reasonDeletionNotAllowed   = "protected branch - deletion not allowed"
	reasonDirectPushNotAllowed = "protected branch - direct push not allowed, use a pull request"
	reasonForcePushNotAllowed  = "protected branch - force push not allowed"
)

var (
	ErrReportStarted = errors.New("push: status report started")
)

type rejection struct {
	cmd    *protocol.Command
	reason string
}

// DoPush runs a git-receive-pack request body end to end: parse the command
// section, enforce branch protection, unpack the pack into loose objects,
// update refs and write the pkt-line status report. Content errors are
// reported in band, the returned error only signals transport failure.
func (r *repository) DoPush(ctx context.Context, uid int64, body []byte, w io.Writer) error {
	section, packData := protocol.SplitRequest(body)
	commands, _, err := protocol.ParseCommands(section)
	if err != nil {
		return err
	}
	ro := protocol.NewReporter(w)

	allowed := make([]*protocol.Command, 0, len(commands))
	rejected := make([]rejection, 0, 4)
	for _, cmd := range commands {
		rule, err := r.protectionRule(ctx, cmd.Ref)
		if err != nil {
			logrus.Errorf("load protection rule for %s error: %v", cmd.Ref, err)
			rejected = append(rejected, rejection{cmd: cmd, reason: "internal error"})
			continue
		}
		switch {
		case rule != nil && rule.PreventDeletion && cmd.IsDelete():
			rejected = append(rejected, rejection{cmd: cmd, reason: reasonDeletionNotAllowed})
		case rule != nil && rule.PreventDirectPush && !cmd.IsDelete():
			rejected = append(rejected, rejection{cmd: cmd, reason: reasonDirectPushNotAllowed})
		default:
			allowed = append(allowed, cmd)
		}
	}

	// Every update rejected: report without touching the pack, no object
	// reaches the store.
	if len(allowed) == 0 {
		_ = ro.UnpackOK()
		return r.finish(ctx, ro, nil, rejected)
	}

	if len(packData) != 0 {
		result, err := r.odb.Unpack(ctx, packData)
		if err != nil {
			_ = ro.UnpackError(err)
			_ = ro.Done()
			return nil
		}
		if result.Skipped > 0 {
			logrus.Warnf("unpack rid-%d: %d objects skipped", r.repo.ID, result.Skipped)
		}
	}
	_ = ro.UnpackOK()

	// The force push gate runs after unpack, the new tip may only exist in
	// the freshly stored objects.
	updates := allowed[:0]
	for _, cmd := range allowed {
		if cmd.IsDelete() || cmd.IsCreate() {
			updates = append(updates, cmd)
			continue
		}
		rule, err := r.protectionRule(ctx, cmd.Ref)
		if err == nil && rule != nil && rule.PreventForcePush {
			ff, err := r.odb.IsAncestor(ctx, cmd.Old, cmd.New)
			if err != nil {
				logrus.Errorf("ancestry test %s..%s error: %v", cmd.Old, cmd.New, err)
			}
			if !ff {
				rejected = append(rejected, rejection{cmd: cmd, reason: reasonForcePushNotAllowed})
				continue
			}
		}
		updates = append(updates, cmd)
	}
	return r.finish(ctx, ro, updates, rejected)
}

func (r *repository) protectionRule(ctx context.Context, ref plumbing.ReferenceName) (*database.BranchProtection, error) {
	if !ref.IsBranch() {
		return nil, nil
	}
	return r.mdb.FindBranchProtection(ctx, r.repo.ID, ref.BranchName())
}

func (r *repository) finish(ctx context.Context, ro *protocol.Reporter, updates []*protocol.Command, rejected []rejection) error {
	for _, cmd := range updates {
		if err := r.applyUpdate(ctx, cmd); err != nil {
			_ = ro.NG(cmd.Ref, "ref update failed")
			logrus.Errorf("update %s error: %v", cmd.Ref, err)
			continue
		}
		_ = ro.OK(cmd.Ref)
	}
	for _, rj := range rejected {
		_ = ro.NG(rj.cmd.Ref, rj.reason)
	}
	return ro.Done()
}

func (r *repository) applyUpdate(ctx context.Context, cmd *protocol.Command) error {
	if cmd.IsDelete() {
		if err := r.odb.DeleteRef(ctx, cmd.Ref); err != nil {
			return err
		}
		r.afterBranchRemove(ctx, cmd.Ref)
		return nil
	}
	if err := r.odb.WriteRef(ctx, cmd.Ref, cmd.New); err != nil {
		return err
	}
	r.afterBranchUpdate(ctx, cmd.Ref, cmd.New)
	return nil
}

// afterBranchUpdate refreshes the denormalized branch row and drops stale
// cache entries. Both are best effort, the ref itself already moved.
func (r *repository) afterBranchUpdate(ctx context.Context, ref plumbing.ReferenceName, newOID plumbing.Hash) {
	if !ref.IsBranch() {
		return
	}
	branchName := ref.BranchName()
	b := &database.Branch{
		RID:  r.repo.ID,
		Name: branchName,
		Hash: newOID.String(),
	}
	if cc, err := r.odb.Commit(ctx, newOID); err == nil {
		b.LastSubject = cc.Subject()
		b.LastAuthor = cc.Author.Name
		b.LastCommittedAt = cc.Committer.When
	}
	if count, err := r.odb.CountFirstParent(ctx, newOID); err == nil {
		b.CommitCount = int64(count)
	}
	if err := r.mdb.UpsertBranch(ctx, b); err != nil {
		logrus.Warnf("upsert branch %s error: %v", branchName, err)
	}
	r.rc.InvalidateBranch(ctx, r.owner.UserName, r.repo.Name, branchName)
}

func (r *repository) afterBranchRemove(ctx context.Context, ref plumbing.ReferenceName) {
	if !ref.IsBranch() {
		return
	}
	branchName := ref.BranchName()
	if err := r.mdb.RemoveBranch(ctx, r.repo.ID, branchName); err != nil {
		logrus.Warnf("remove branch %s error: %v", branchName, err)
	}
	r.rc.InvalidateBranch(ctx, r.owner.UserName, r.repo.Name, branchName)
}
