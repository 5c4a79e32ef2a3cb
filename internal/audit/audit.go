package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/PolarWolf314/forge/internal/kernel"
)

// Operation names.
const (
	OpUnlock = "unlock"
	OpLock   = "lock"
)

// TimestampLayout is the UTC layout of Entry.Timestamp.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// Entry represents a single audit log entry.
type Entry struct {
	Timestamp string `json:"ts"`               // RFC3339 with microseconds.
	Operation string `json:"op"`               // Operation name.
	Device    string `json:"device,omitempty"` // Hostname of the device.
}

// Log appends entries to a JSON Lines file.
type Log struct {
	path   string
	device string
	now    func() time.Time

	mu sync.Mutex
}

// New returns a log writing to path. An empty path disables logging.
func New(path, device string) *Log {
	return &Log{path: path, device: device, now: time.Now}
}

// Path returns the path to the audit log file.
func (l *Log) Path() string {
	return l.path
}

// Append writes entry to the log.
// If logging fails, it does not return an error.
// Operations should not fail just because audit logging failed.
func (l *Log) Append(entry Entry) {
	if l.path == "" {
		return
	}
	if entry.Timestamp == "" {
		entry.Timestamp = l.now().UTC().Format(TimestampLayout)
	}
	if entry.Device == "" {
		entry.Device = l.device
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return
	}
	defer f.Close()

	_, _ = f.Write(append(data, '\n'))
}

// Follow records lock and unlock events from k. Kernel and Duress are both
// recorded as unlock, and moves between them are not recorded at all, so
// the log reads the same for a decoy session as for a real one.
func (l *Log) Follow(k *kernel.Machine) (cancel func()) {
	return k.Subscribe(func(t kernel.Transition) {
		if t.From.Unlocked() == t.To.Unlocked() {
			return
		}
		op := OpLock
		if t.To.Unlocked() {
			op = OpUnlock
		}
		l.Append(Entry{
			Timestamp: t.At.UTC().Format(TimestampLayout),
			Operation: op,
		})
	})
}

// ReadEntries reads all entries from the audit log.
// Returns an empty slice if the log doesn't exist.
func (l *Log) ReadEntries() ([]Entry, error) {
	if l.path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ParseEntries(data)
}

// ParseEntries parses JSON Lines data into audit entries.
// Malformed lines are silently skipped.
func ParseEntries(data []byte) ([]Entry, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var entries []Entry
	start := 0

	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			line := data[start:i]
			start = i + 1

			if len(line) == 0 {
				continue
			}

			var entry Entry
			if err := json.Unmarshal(line, &entry); err != nil {
				// Skip malformed entries.
				continue
			}
			entries = append(entries, entry)
		}
	}

	return entries, nil
}
