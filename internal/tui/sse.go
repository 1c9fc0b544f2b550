package tui

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/git6keen/Levelset-sub001/internal/relay"
)

// ErrStreamTruncated is returned when the stream ends without [DONE].
var ErrStreamTruncated = errors.New("stream ended without terminal marker")

// ReadFrames parses a chat event stream and calls fn for every data frame
// until the terminal marker. Comment lines, heartbeats included, are
// ignored.
func ReadFrames(r io.Reader, fn func(relay.Frame)) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")

		if strings.HasPrefix(line, "data:") {
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "[DONE]" {
				return nil
			}
			var f relay.Frame
			if jerr := json.Unmarshal([]byte(payload), &f); jerr != nil {
				return fmt.Errorf("decode frame: %w", jerr)
			}
			fn(f)
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrStreamTruncated
			}
			return err
		}
	}
}
