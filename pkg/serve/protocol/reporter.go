// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"io"

	"github.com/gitbruv/gitbruv/modules/plumbing"
	"github.com/gitbruv/gitbruv/modules/plumbing/format/pktline"
)

// Reporter emits the receive-pack status report: an unpack line, per-ref
// ok/ng lines, then a flush.
type Reporter struct {
	e       *pktline.Encoder
	started bool
}

func NewReporter(w io.Writer) *Reporter {
	return &Reporter{e: pktline.NewEncoder(w)}
}

// Started reports whether any status line was already written; once true the
// response can no longer switch to an HTTP error.
func (r *Reporter) Started() bool {
	return r.started
}

func (r *Reporter) UnpackOK() error {
	r.started = true
	return r.e.EncodeString("unpack ok\n")
}

func (r *Reporter) UnpackError(err error) error {
	r.started = true
	return r.e.Encodef("unpack %s\n", err.Error())
}

func (r *Reporter) OK(ref plumbing.ReferenceName) error {
	r.started = true
	return r.e.Encodef("ok %s\n", ref)
}

func (r *Reporter) NG(ref plumbing.ReferenceName, reason string) error {
	r.started = true
	return r.e.Encodef("ng %s %s\n", ref, reason)
}

func (r *Reporter) Done() error {
	return r.e.Flush()
}
