package version

import (
	"github.com/sergi/go-diff/diffmatchpatch"
)

type Op string

const (
	OpEqual  Op = "equal"
	OpInsert Op = "insert"
	OpDelete Op = "delete"
)

// DiffOp is one line-level edit operation. Diffs are computed on
// demand, never stored.
type DiffOp struct {
	Op   Op     `json:"op"`
	Text string `json:"text"`
}

// Diff computes a deterministic line-level diff between two contents.
func Diff(a, b string) []DiffOp {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0 // no time-boxed shortcuts, keep output deterministic

	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffMain(ca, cb, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	ops := make([]DiffOp, 0, len(diffs))
	for _, d := range diffs {
		var op Op
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			op = OpEqual
		case diffmatchpatch.DiffInsert:
			op = OpInsert
		case diffmatchpatch.DiffDelete:
			op = OpDelete
		}
		ops = append(ops, DiffOp{Op: op, Text: d.Text})
	}
	return ops
}
