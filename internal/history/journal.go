package history

import (
	"os"
	"strings"
	"sync"

	apperrors "github.com/lingolens/platform/internal/errors"
)

// FileLog appends accepted translations to a text file, one per line.
type FileLog struct {
	path string
	mu   sync.Mutex
}

// NewFileLog returns a log writing to path. The file is created on first
// append.
func NewFileLog(path string) *FileLog {
	return &FileLog{path: path}
}

// Path returns the file path.
func (l *FileLog) Path() string { return l.path }

// Append writes text followed by a newline.
func (l *FileLog) Append(text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return apperrors.Wrap(err, apperrors.JournalWriteFailed, "open translation log").WithMetadata("path", l.path)
	}
	line := strings.TrimRight(text, "\n") + "\n"
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return apperrors.Wrap(err, apperrors.JournalWriteFailed, "write translation log").WithMetadata("path", l.path)
	}
	if err := f.Close(); err != nil {
		return apperrors.Wrap(err, apperrors.JournalWriteFailed, "close translation log").WithMetadata("path", l.path)
	}
	return nil
}
