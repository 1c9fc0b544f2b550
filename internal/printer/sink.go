package printer

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

// LastPrintFile is the file name FileSink writes to.
const LastPrintFile = "last_print.txt"

// Sink delivers rendered text to a printer.
type Sink interface {
	Send(text string) error
}

// FileSink stands in for a physical printer by replacing a file with the
// most recent print job.
type FileSink struct {
	fs   afero.Fs
	path string
	mu   sync.Mutex
}

// NewFileSink creates a sink writing to dir/last_print.txt on fs.
func NewFileSink(fs afero.Fs, dir string) *FileSink {
	return &FileSink{fs: fs, path: filepath.Join(dir, LastPrintFile)}
}

// Path returns the file the sink writes to.
func (s *FileSink) Path() string {
	return s.path
}

// Send replaces the print file with text.
func (s *FileSink) Send(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating print dir: %w", err)
	}
	if err := afero.WriteFile(s.fs, s.path, []byte(text), 0o600); err != nil {
		return fmt.Errorf("writing print file: %w", err)
	}
	return nil
}
