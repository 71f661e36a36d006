package markdown_test

import (
	"testing"

	"audittrail/internal/markdown"

	"github.com/stretchr/testify/assert"
)

func TestEscapeV2(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"v1.2 (beta)!", `v1\.2 \(beta\)\!`},
		{"+3 -1 words", `\+3 \-1 words`},
		{`a\b`, `a\\b`},
		{"ünïcode_ok", `ünïcode\_ok`},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, markdown.EscapeV2(tt.in))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", markdown.Truncate("short", 10))
	assert.Equal(t, "two lines", markdown.Truncate("two\n\n  lines", 10))
	assert.Equal(t, "abcd…", markdown.Truncate("abcdefgh", 5))
	assert.Equal(t, "приве…", markdown.Truncate("привет мир", 6))
	assert.Empty(t, markdown.Truncate("anything", 0))
}
