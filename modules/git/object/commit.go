// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gitbruv/gitbruv/modules/plumbing"
)

// DateFormat is the format being used in the original git implementation
const DateFormat = "Mon Jan 02 15:04:05 2006 -0700"

type Signature struct {
	Name  string    `json:"name"`
	Email string    `json:"email"`
	When  time.Time `json:"when"`
}

var timeZoneLength = 5

func (s *Signature) decodeTimeAndTimeZone(b []byte) {
	space := bytes.IndexByte(b, ' ')
	if space == -1 {
		space = len(b)
	}

	ts, err := strconv.ParseInt(string(b[:space]), 10, 64)
	if err != nil {
		return
	}

	s.When = time.Unix(ts, 0).In(time.UTC)
	var tzStart = space + 1
	if tzStart >= len(b) || tzStart+timeZoneLength > len(b) {
		return
	}

	timezone := string(b[tzStart : tzStart+timeZoneLength])
	tzhours, err1 := strconv.ParseInt(timezone[0:3], 10, 64)
	tzmins, err2 := strconv.ParseInt(timezone[3:], 10, 64)
	if err1 != nil || err2 != nil {
		return
	}
	if tzhours < 0 {
		tzmins *= -1
	}

	tz := time.FixedZone("", int(tzhours*60*60+tzmins*60))

	s.When = s.When.In(tz)
}

// Decode decodes a byte slice into a signature: "Name <email> <unix> <±HHMM>"
func (s *Signature) Decode(b []byte) {
	open := bytes.LastIndexByte(b, '<')
	close := bytes.LastIndexByte(b, '>')
	if open == -1 || close == -1 {
		return
	}

	if close < open {
		return
	}

	s.Name = string(bytes.Trim(b[:open], " "))
	s.Email = string(b[open+1 : close])

	hasTime := close+2 < len(b)
	if hasTime {
		s.decodeTimeAndTimeZone(b[close+2:])
	}
}

const (
	formatTimeZoneOnly = "-0700"
)

// String implements the fmt.Stringer interface and formats a Signature as
// expected in the git commit internal object format. For instance:
//
//	Taylor Blau <ttaylorr@github.com> 1494258422 -0600
func (s *Signature) String() string {
	at := s.When.Unix()
	zone := s.When.Format(formatTimeZoneOnly)

	return fmt.Sprintf("%s <%s> %d %s", s.Name, s.Email, at, zone)
}

type Commit struct {
	Hash plumbing.Hash `json:"hash"` // commit oid
	// Author is the original writer of the contents.
	Author Signature `json:"author"`
	// Committer is the individual or entity that added this commit to the
	// history.
	Committer Signature `json:"committer"`
	// Parents are the IDs of all parents, mainline first.
	Parents []plumbing.Hash `json:"parents"`
	// Tree is the root Tree associated with this commit.
	Tree plumbing.Hash `json:"tree"`
	// Message is the commit message.
	Message string `json:"message"`
}

// Encode writes the canonical commit record: header lines terminated by a
// blank line, then the message. A second Encode of a decoded commit is
// byte-identical.
func (c *Commit) Encode(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "tree %s\n", c.Tree.String()); err != nil {
		return err
	}

	for _, parent := range c.Parents {
		if _, err := fmt.Fprintf(w, "parent %s\n", parent.String()); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintf(w, "author %s\ncommitter %s\n", c.Author.String(), c.Committer.String()); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\n%s", c.Message)
	return err
}

// Payload returns the encoded commit record.
func (c *Commit) Payload() []byte {
	var b bytes.Buffer
	_ = c.Encode(&b)
	return b.Bytes()
}

// Decode parses a commit payload: header lines up to a blank line, then the
// message verbatim.
func (c *Commit) Decode(payload []byte) error {
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
		fields := strings.Split(text, " ")
		switch fields[0] {
		case "tree":
			if len(fields) != 2 {
				return fmt.Errorf("error parsing tree: %s", text)
			}
			c.Tree = plumbing.NewHash(fields[1])
		case "parent":
			if len(fields) != 2 {
				return fmt.Errorf("error parsing parent: %s", text)
			}
			c.Parents = append(c.Parents, plumbing.NewHash(fields[1]))
		case "author":
			c.Author.Decode([]byte(text[7:]))
		case "committer":
			c.Committer.Decode([]byte(text[10:]))
		default:
			// gpgsig and friends are accepted but not interpreted.
		}
	}
	c.Message = string(rest)
	return nil
}

func (c *Commit) Subject() string {
	if i := strings.IndexAny(c.Message, "\r\n"); i != -1 {
		return c.Message[0:i]
	}
	return c.Message
}

// NumParents returns the number of parents in a commit.
func (c *Commit) NumParents() int {
	return len(c.Parents)
}

func indent(t string) string {
	var output []string
	for _, line := range strings.Split(t, "\n") {
		if len(line) != 0 {
			line = "    " + line
		}

		output = append(output, line)
	}

	return strings.Join(output, "\n")
}

func (c *Commit) String() string {
	return fmt.Sprintf(
		"%s %s\nAuthor: %s\nDate:   %s\n\n%s\n",
		CommitObject, c.Hash, c.Author.String(),
		c.Author.When.Format(DateFormat), indent(c.Message),
	)
}
