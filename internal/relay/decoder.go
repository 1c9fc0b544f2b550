package relay

import (
	"errors"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// LineDecoder turns a byte stream into complete text lines. A multi-byte
// character split across reads is held back until its remaining bytes
// arrive, and a partial line is held until its newline arrives. Invalid
// bytes decode to U+FFFD. A LineDecoder is not safe for concurrent use.
type LineDecoder struct {
	decoder transform.Transformer
	pending []byte
	partial strings.Builder
}

// NewLineDecoder creates a UTF-8 line decoder.
func NewLineDecoder() *LineDecoder {
	return &LineDecoder{decoder: unicode.UTF8.NewDecoder()}
}

// Feed decodes p and returns the lines it completes, without their line
// terminators. A trailing carriage return is removed.
func (d *LineDecoder) Feed(p []byte) []string {
	d.partial.WriteString(d.decode(p, false))
	return d.completeLines()
}

// Flush decodes any held-back bytes and returns the final unterminated
// line, if any. The decoder is reset and may be reused.
func (d *LineDecoder) Flush() []string {
	d.partial.WriteString(d.decode(nil, true))
	lines := d.completeLines()
	if rest := strings.TrimSuffix(d.partial.String(), "\r"); rest != "" {
		lines = append(lines, rest)
	}
	d.partial.Reset()
	d.decoder.Reset()
	return lines
}

// Pending reports the number of undecoded bytes held back.
func (d *LineDecoder) Pending() int {
	return len(d.pending)
}

func (d *LineDecoder) decode(src []byte, atEOF bool) string {
	d.pending = append(d.pending, src...)
	var out []byte
	for len(d.pending) > 0 {
		dst := make([]byte, len(d.pending)*3+4)
		nDst, nSrc, err := d.decoder.Transform(dst, d.pending, atEOF)
		out = append(out, dst[:nDst]...)
		d.pending = d.pending[nSrc:]
		if errors.Is(err, transform.ErrShortDst) && nSrc > 0 {
			continue
		}
		// ErrShortSrc means an incomplete sequence waits for more input.
		break
	}
	if len(d.pending) == 0 {
		d.pending = nil
	}
	return string(out)
}

func (d *LineDecoder) completeLines() []string {
	buf := d.partial.String()
	idx := strings.LastIndexByte(buf, '\n')
	if idx < 0 {
		return nil
	}
	complete, rest := buf[:idx], buf[idx+1:]
	d.partial.Reset()
	d.partial.WriteString(rest)

	lines := strings.Split(complete, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
