// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/gitbruv/gitbruv/modules/git/pack"
	"github.com/gitbruv/gitbruv/modules/plumbing"
	"github.com/gitbruv/gitbruv/modules/plumbing/format/pktline"
)

var (
	ErrNoCommands = errors.New("receive-pack request carries no commands")
)

// Command is a single requested ref update.
type Command struct {
	Old plumbing.Hash
	New plumbing.Hash
	Ref plumbing.ReferenceName
}

func (c *Command) IsDelete() bool {
	return c.New.IsZero()
}

func (c *Command) IsCreate() bool {
	return c.Old.IsZero()
}

// SplitRequest separates a receive-pack request body into its pkt-line
// command section and the raw packfile that follows. The pack is located by
// scanning for the literal signature; a request without a pack (pure
// deletion) returns nil pack bytes.
func SplitRequest(body []byte) (commands, packData []byte) {
	if pos := bytes.Index(body, pack.Signature); pos != -1 {
		return body[:pos], body[pos:]
	}
	return body, nil
}

// ParseCommands reads the command section: one pkt-line per update of the
// form "<old> <new> <ref>[\x00capabilities]".
func ParseCommands(section []byte) ([]*Command, []string, error) {
	var caps []string
	commands := make([]*Command, 0, 4)
	s := pktline.NewScanner(bytes.NewReader(section))
	for s.Scan() {
		line := string(s.Bytes())
		if rest, capString, ok := strings.Cut(line, "\x00"); ok {
			line = rest
			caps = strings.Fields(capString)
		}
		line = strings.TrimSuffix(line, "\n")
		if len(strings.TrimSpace(line)) == 0 {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, nil, fmt.Errorf("malformed update line %q", line)
		}
		oldOID, err := plumbing.NewHashEx(fields[0])
		if err != nil {
			return nil, nil, err
		}
		newOID, err := plumbing.NewHashEx(fields[1])
		if err != nil {
			return nil, nil, err
		}
		refname := plumbing.NewReferenceName(fields[2])
		if !plumbing.ValidateReferenceName([]byte(refname)) {
			return nil, nil, fmt.Errorf("invalid ref name %q", fields[2])
		}
		commands = append(commands, &Command{
			Old: oldOID,
			New: newOID,
			Ref: refname,
		})
	}
	if err := s.Err(); err != nil {
		return nil, nil, err
	}
	if len(commands) == 0 {
		return nil, nil, ErrNoCommands
	}
	return commands, caps, nil
}
