// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"bytes"
	"strings"

	"github.com/gitbruv/gitbruv/modules/plumbing"
)

// Tag is accepted in packs but otherwise not interpreted.
type Tag struct {
	Hash       plumbing.Hash `json:"hash"`
	Object     plumbing.Hash `json:"object"`
	ObjectType ObjectType    `json:"object_type"`
	Name       string        `json:"name"`
	Tagger     Signature     `json:"tagger"`
	Message    string        `json:"message"`
}

func (t *Tag) Decode(payload []byte) error {
	rest := payload
	for len(rest) > 0 {
		var text string
		if pos := bytes.IndexByte(rest, '\n'); pos != -1 {
			text, rest = string(rest[:pos]), rest[pos+1:]
		} else {
			text, rest = string(rest), nil
		}
		if len(text) == 0 {
			break
		}
		key, value, ok := strings.Cut(text, " ")
		if !ok {
			continue
		}
		switch key {
		case "object":
			t.Object = plumbing.NewHash(value)
		case "type":
			t.ObjectType, _ = ParseObjectType(value)
		case "tag":
			t.Name = value
		case "tagger":
			t.Tagger.Decode([]byte(value))
		}
	}
	t.Message = string(rest)
	return nil
}
