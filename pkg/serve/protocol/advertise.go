// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"context"
	"io"

	"github.com/gitbruv/gitbruv/modules/plumbing"
	"github.com/gitbruv/gitbruv/modules/plumbing/format/pktline"
	"github.com/gitbruv/gitbruv/pkg/serve/odb"
)

// AdvertiseRefs writes the info/refs advertisement: the sideband service
// header, a flush, the refs list with capabilities after a NUL on the first
// line, and a final flush. Repositories without refs advertise a synthetic
// capabilities^{} line with the zero OID.
func AdvertiseRefs(ctx context.Context, o *odb.ODB, svc, agent string, w io.Writer) error {
	e := pktline.NewEncoder(w)
	if err := e.Encodef("# service=%s\n", svc); err != nil {
		return err
	}
	if err := e.Flush(); err != nil {
		return err
	}
	refs, err := o.ListRefs(ctx)
	if err != nil {
		return err
	}
	caps := capabilities(svc, o.DefaultBranch(ctx).String(), agent)

	lines := make([]*plumbing.Reference, 0, len(refs)+1)
	if head, err := o.Resolve(ctx, plumbing.HEAD); err == nil && svc == UploadPack {
		lines = append(lines, plumbing.NewHashReference(plumbing.HEAD, head))
	}
	lines = append(lines, refs...)

	if len(lines) == 0 {
		if err := e.Encodef("%s capabilities^{}\x00%s\n", plumbing.ZERO_OID, caps); err != nil {
			return err
		}
		return e.Flush()
	}
	for i, ref := range lines {
		if i == 0 {
			if err := e.Encodef("%s %s\x00%s\n", ref.Hash(), ref.Name(), caps); err != nil {
				return err
			}
			continue
		}
		if err := e.Encodef("%s %s\n", ref.Hash(), ref.Name()); err != nil {
			return err
		}
	}
	return e.Flush()
}
