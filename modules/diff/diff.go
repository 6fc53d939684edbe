// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package diff produces line-oriented diffs and unified hunks for the browse
// and compare endpoints. The walk is deterministic and attributes every line
// exactly once; it does not attempt LCS-optimal output.
package diff

import (
	"strings"
	"unicode/utf8"
)

const (
	// contextRadius is how many unchanged lines surround a change inside a
	// hunk; changes closer than this collapse into one hunk.
	contextRadius = 3
	// resyncWindow bounds the forward scan used to re-align after a
	// mismatch.
	resyncWindow = 64
)

type LineKind string

const (
	Context  LineKind = "context"
	Addition LineKind = "addition"
	Deletion LineKind = "deletion"
)

type Line struct {
	Kind    LineKind `json:"type"`
	Content string   `json:"content"`
	OldLine int      `json:"oldLine,omitempty"`
	NewLine int      `json:"newLine,omitempty"`
}

type Hunk struct {
	OldStart int    `json:"oldStart"`
	OldLines int    `json:"oldLines"`
	NewStart int    `json:"newStart"`
	NewLines int    `json:"newLines"`
	Lines    []Line `json:"lines"`
}

// Stats counts added and deleted lines over a set of hunks.
func Stats(hunks []Hunk) (additions, deletions int) {
	for _, h := range hunks {
		for _, l := range h.Lines {
			switch l.Kind {
			case Addition:
				additions++
			case Deletion:
				deletions++
			}
		}
	}
	return
}

// Text decodes blob bytes as UTF-8 with replacement for display and diffing.
func Text(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), string(utf8.RuneError))
}

func splitLines(text string) []string {
	if len(text) == 0 {
		return nil
	}
	lines := strings.Split(text, "\n")
	// a trailing newline does not introduce a phantom empty line
	if len(lines) > 0 && lines[len(lines)-1] == "" && strings.HasSuffix(text, "\n") {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Unified diffs two blobs into hunks.
func Unified(oldData, newData []byte) []Hunk {
	oldLines := splitLines(Text(oldData))
	newLines := splitLines(Text(newData))
	ops := walk(oldLines, newLines)
	return group(ops)
}

// walk is the sequential two-pointer pass. On a mismatch it scans forward a
// bounded distance for the nearest re-alignment, preferring deletions on a
// tie, and falls back to a paired delete+add when no alignment is found.
func walk(oldLines, newLines []string) []Line {
	ops := make([]Line, 0, len(oldLines)+len(newLines))
	i, j := 0, 0
	for i < len(oldLines) || j < len(newLines) {
		switch {
		case i >= len(oldLines):
			ops = append(ops, Line{Kind: Addition, Content: newLines[j], NewLine: j + 1})
			j++
		case j >= len(newLines):
			ops = append(ops, Line{Kind: Deletion, Content: oldLines[i], OldLine: i + 1})
			i++
		case oldLines[i] == newLines[j]:
			ops = append(ops, Line{Kind: Context, Content: oldLines[i], OldLine: i + 1, NewLine: j + 1})
			i++
			j++
		default:
			delDist := scanAhead(oldLines[i+1:], newLines[j])
			addDist := scanAhead(newLines[j+1:], oldLines[i])
			switch {
			case delDist != -1 && (addDist == -1 || delDist <= addDist):
				ops = append(ops, Line{Kind: Deletion, Content: oldLines[i], OldLine: i + 1})
				i++
			case addDist != -1:
				ops = append(ops, Line{Kind: Addition, Content: newLines[j], NewLine: j + 1})
				j++
			default:
				ops = append(ops, Line{Kind: Deletion, Content: oldLines[i], OldLine: i + 1})
				ops = append(ops, Line{Kind: Addition, Content: newLines[j], NewLine: j + 1})
				i++
				j++
			}
		}
	}
	return ops
}

func scanAhead(haystack []string, needle string) int {
	limit := min(len(haystack), resyncWindow)
	for k := 0; k < limit; k++ {
		if haystack[k] == needle {
			return k
		}
	}
	return -1
}

// group folds the op stream into hunks with contextRadius unchanged lines on
// each side; windows that touch merge into one hunk.
func group(ops []Line) []Hunk {
	type window struct{ lo, hi int }
	var windows []window
	for idx, op := range ops {
		if op.Kind == Context {
			continue
		}
		lo := max(idx-contextRadius, 0)
		hi := min(idx+contextRadius, len(ops)-1)
		if len(windows) != 0 && lo <= windows[len(windows)-1].hi+1 {
			windows[len(windows)-1].hi = hi
			continue
		}
		windows = append(windows, window{lo: lo, hi: hi})
	}
	hunks := make([]Hunk, 0, len(windows))
	for _, w := range windows {
		h := Hunk{Lines: ops[w.lo : w.hi+1]}
		for _, l := range h.Lines {
			switch l.Kind {
			case Context:
				h.OldLines++
				h.NewLines++
			case Addition:
				h.NewLines++
			case Deletion:
				h.OldLines++
			}
			if h.OldStart == 0 && l.OldLine != 0 {
				h.OldStart = l.OldLine
			}
			if h.NewStart == 0 && l.NewLine != 0 {
				h.NewStart = l.NewLine
			}
		}
		hunks = append(hunks, h)
	}
	return hunks
}
