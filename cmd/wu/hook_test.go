package main

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// The hook must never break a tool pipeline it cannot understand:
// every malformed-input path allows.
func TestRunHookFailsOpen(t *testing.T) {
	cases := []struct {
		name  string
		stdin string
	}{
		{"empty input", ""},
		{"not json", "this is not json"},
		{"wrong shape", `{"event": "PostToolUse"}`},
		{"missing tool name", `{"tool_input": {"file_path": "/tmp/x"}}`},
		{"missing file path", `{"tool_name": "Write", "tool_input": {}}`},
		{"null input", `null`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := runHook(context.Background(), strings.NewReader(tc.stdin))
			assert.True(t, d.Allow, "reason: %s", d.Reason)
		})
	}
}

func TestRunHookTruncatesHugeInput(t *testing.T) {
	// 2 MB of garbage: read is capped, parse fails, still allows.
	d := runHook(context.Background(), strings.NewReader(strings.Repeat("x", 2<<20)))
	assert.True(t, d.Allow)
}
