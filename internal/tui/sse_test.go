package tui

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/git6keen/Levelset-sub001/internal/relay"
)

func TestReadFrames(t *testing.T) {
	stream := ": ping\n\n" +
		"data: {\"type\":\"text\",\"text\":\"Hi \"}\n\n" +
		": ping\n\n" +
		"data: {\"type\":\"toolcall\",\"name\":\"stats.get\",\"preview\":true,\"args\":{}}\r\n\r\n" +
		"data: {\"type\":\"text\",\"text\":\"there\"}\n\n" +
		"data: [DONE]\n\n" +
		"data: {\"type\":\"text\",\"text\":\"ignored\"}\n\n"

	var frames []relay.Frame
	require.NoError(t, ReadFrames(strings.NewReader(stream), func(f relay.Frame) {
		frames = append(frames, f)
	}))

	require.Len(t, frames, 3)
	assert.Equal(t, "Hi ", frames[0].Text)
	assert.Equal(t, relay.FrameToolCall, frames[1].Type)
	assert.Equal(t, "stats.get", frames[1].Name)
	assert.True(t, frames[1].Preview)
	assert.Equal(t, "there", frames[2].Text)
}

func TestReadFrames_Truncated(t *testing.T) {
	err := ReadFrames(strings.NewReader("data: {\"type\":\"text\",\"text\":\"a\"}\n\n"), func(relay.Frame) {})
	assert.True(t, errors.Is(err, ErrStreamTruncated))
}

func TestReadFrames_BadFrame(t *testing.T) {
	err := ReadFrames(strings.NewReader("data: {oops\n\n"), func(relay.Frame) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode frame")
}
