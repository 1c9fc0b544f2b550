package relay

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedAll(d *LineDecoder, parts ...[]byte) []string {
	var lines []string
	for _, p := range parts {
		lines = append(lines, d.Feed(p)...)
	}
	return append(lines, d.Flush()...)
}

func TestLineDecoder_SplitMultibyteRoundTrip(t *testing.T) {
	input := []byte("héllo wörld 世界 🎉\nsecond ☕ line\n")
	whole := feedAll(NewLineDecoder(), input)
	require.Equal(t, []string{"héllo wörld 世界 🎉", "second ☕ line"}, whole)

	for i := 1; i < len(input); i++ {
		got := feedAll(NewLineDecoder(), input[:i], input[i:])
		assert.Equal(t, whole, got, "split at byte %d", i)
	}
}

func TestLineDecoder_ByteByByte(t *testing.T) {
	input := []byte("🎉世\n")
	d := NewLineDecoder()
	var lines []string
	for i := range input {
		lines = append(lines, d.Feed(input[i:i+1])...)
		if i == 0 {
			assert.Equal(t, 1, d.Pending(), "first byte of a four-byte rune is held back")
		}
	}
	assert.Equal(t, []string{"🎉世"}, lines)
	assert.Equal(t, 0, d.Pending())
}

func TestLineDecoder_HoldsPartialLines(t *testing.T) {
	d := NewLineDecoder()
	assert.Empty(t, d.Feed([]byte("data: {\"a\":")))
	assert.Equal(t, []string{`data: {"a":1}`, ""}, d.Feed([]byte("1}\r\n\r\nnext")))
	assert.Equal(t, []string{"next"}, d.Flush())
	assert.Empty(t, d.Flush())
}

func TestLineDecoder_InvalidBytesAtEOF(t *testing.T) {
	d := NewLineDecoder()
	assert.Empty(t, d.Feed([]byte{'o', 'k', 0xE4, 0xB8}))
	lines := d.Flush()
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "ok"))
	assert.Contains(t, lines[0], "�")
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    string
	}{
		{
			name:    "delta",
			payload: map[string]any{"choices": []any{map[string]any{"delta": map[string]any{"content": "hi"}}}},
			want:    "hi",
		},
		{
			name:    "role-only delta",
			payload: map[string]any{"choices": []any{map[string]any{"delta": map[string]any{"role": "assistant"}}}},
			want:    "",
		},
		{
			name:    "legacy text",
			payload: map[string]any{"choices": []any{map[string]any{"text": "plain"}}},
			want:    "plain",
		},
		{
			name:    "choice message",
			payload: map[string]any{"choices": []any{map[string]any{"message": map[string]any{"content": "full"}}}},
			want:    "full",
		},
		{
			name:    "top-level message",
			payload: map[string]any{"message": map[string]any{"role": "assistant", "content": "ollama"}},
			want:    "ollama",
		},
		{
			name:    "unknown shape",
			payload: map[string]any{"usage": map[string]any{"total_tokens": float64(3)}},
			want:    "",
		},
		{
			name:    "empty choices",
			payload: map[string]any{"choices": []any{}},
			want:    "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractText(tt.payload))
		})
	}
}
