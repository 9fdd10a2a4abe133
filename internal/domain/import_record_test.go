package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to ImportStatus
		want     bool
	}{
		{ImportPending, ImportProcessing, true},
		{ImportPending, ImportDeleting, true},
		{ImportPending, ImportCompleted, false},
		{ImportProcessing, ImportCompleted, true},
		{ImportProcessing, ImportFailed, true},
		{ImportProcessing, ImportDeleting, true},
		{ImportProcessing, ImportPending, false},
		{ImportCompleted, ImportProcessing, false},
		{ImportFailed, ImportProcessing, false},
		{ImportDeleting, ImportCompleted, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CanTransition(c.from, c.to), "CanTransition(%s, %s)", c.from, c.to)
	}
}

func TestNonTerminal(t *testing.T) {
	nonTerminal := []ImportStatus{ImportPending, ImportProcessing, ImportDeleting}
	for _, s := range nonTerminal {
		assert.True(t, s.NonTerminal(), "%s.NonTerminal()", s)
	}

	terminal := []ImportStatus{ImportCompleted, ImportFailed}
	for _, s := range terminal {
		assert.False(t, s.NonTerminal(), "%s.NonTerminal()", s)
	}
}
