package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffDetectsLineEdits(t *testing.T) {
	a := "You are a helpful assistant.\nAnswer briefly.\n"
	b := "You are a helpful assistant.\nAnswer in detail.\n"

	ops := Diff(a, b)

	var inserted, deleted []string
	for _, op := range ops {
		switch op.Op {
		case OpInsert:
			inserted = append(inserted, op.Text)
		case OpDelete:
			deleted = append(deleted, op.Text)
		}
	}
	require.NotEmpty(t, inserted)
	require.NotEmpty(t, deleted)
	assert.Contains(t, deleted[0], "Answer briefly.")
	assert.Contains(t, inserted[0], "Answer in detail.")
}

func TestDiffIsDeterministic(t *testing.T) {
	a := "alpha\nbeta\ngamma\n"
	b := "alpha\ndelta\ngamma\nepsilon\n"

	first := Diff(a, b)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Diff(a, b))
	}
}

func TestDiffReassemblesBothSides(t *testing.T) {
	a := "one\ntwo\nthree\n"
	b := "one\nthree\nfour\n"

	ops := Diff(a, b)

	var left, right string
	for _, op := range ops {
		if op.Op != OpInsert {
			left += op.Text
		}
		if op.Op != OpDelete {
			right += op.Text
		}
	}
	assert.Equal(t, a, left)
	assert.Equal(t, b, right)
}
