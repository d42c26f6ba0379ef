// Package eventlog saves MAC-level association/authentication/data events to
// a CSV file, one file per day, the same daily-file approach as the
// teacher's log.go (g_daily_names) but built around Go's encoding/csv and a
// strftime-patterned filename instead of hand-rolled date formatting.
package eventlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lestrrat-go/strftime"
)

var filenamePattern = strftime.MustNew("aerowave-%Y%m%d.csv")

// Logger appends event rows to a daily CSV file under Dir. A zero value with
// an empty Dir is a valid no-op logger.
type Logger struct {
	Dir string

	mu       sync.Mutex
	openDate string
	file     *os.File
	writer   *csv.Writer
}

var header = []string{"timestamp", "role", "own_address", "peer_address", "event", "detail"}

// Record appends one event row, rolling over to a new file if the day has
// changed since the last write. A nil receiver or empty Dir silently drops
// the event.
func (l *Logger) Record(now time.Time, role, ownAddress, peerAddress, event, detail string) error {
	if l == nil || l.Dir == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	dateKey := now.Format("20060102")
	if l.file == nil || l.openDate != dateKey {
		if err := l.rollover(now, dateKey); err != nil {
			return err
		}
	}

	row := []string{
		now.Format(time.RFC3339),
		role, ownAddress, peerAddress, event, detail,
	}
	if err := l.writer.Write(row); err != nil {
		return fmt.Errorf("eventlog: write row: %w", err)
	}
	l.writer.Flush()
	return l.writer.Error()
}

func (l *Logger) rollover(now time.Time, dateKey string) error {
	if l.file != nil {
		l.writer.Flush()
		l.file.Close()
	}

	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return fmt.Errorf("eventlog: mkdir %s: %w", l.Dir, err)
	}

	name := filenamePattern.FormatString(now)
	path := filepath.Join(l.Dir, name)

	_, statErr := os.Stat(path)
	needsHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("eventlog: open %s: %w", path, err)
	}

	l.file = f
	l.writer = csv.NewWriter(f)
	l.openDate = dateKey

	if needsHeader {
		if err := l.writer.Write(header); err != nil {
			return fmt.Errorf("eventlog: write header: %w", err)
		}
		l.writer.Flush()
	}
	return nil
}

// Close flushes and closes the currently open file, if any.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	l.writer.Flush()
	err := l.file.Close()
	l.file = nil
	return err
}
