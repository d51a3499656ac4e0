package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FileLogger appends audit events as JSON lines to <BasePath>/audit.log
type FileLogger struct {
	basePath string
	file     *os.File
	mu       sync.Mutex
	encoder  *json.Encoder
	rotate   bool
	maxSize  int64
	maxFiles int
}

// FileLoggerConfig configures the file logger
type FileLoggerConfig struct {
	BasePath string
	Rotate   bool
	MaxSize  int64 // bytes before rotation, default 100MB
	MaxFiles int   // rotated files kept, default 10
}

// NewFileLogger creates a new file-based audit logger
func NewFileLogger(config FileLoggerConfig) (*FileLogger, error) {
	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	l := &FileLogger{
		basePath: config.BasePath,
		rotate:   config.Rotate,
		maxSize:  config.MaxSize,
		maxFiles: config.MaxFiles,
	}
	if l.maxSize == 0 {
		l.maxSize = 100 * 1024 * 1024
	}
	if l.maxFiles == 0 {
		l.maxFiles = 10
	}

	if err := l.openLogFile(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *FileLogger) currentPath() string {
	return filepath.Join(l.basePath, "audit.log")
}

func (l *FileLogger) openLogFile() error {
	if l.rotate {
		if info, err := os.Stat(l.currentPath()); err == nil && info.Size() >= l.maxSize {
			if err := l.rotateFile(); err != nil {
				return fmt.Errorf("failed to rotate log file: %w", err)
			}
		}
	}

	file, err := os.OpenFile(l.currentPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log file: %w", err)
	}
	l.file = file
	l.encoder = json.NewEncoder(file)
	return nil
}

func (l *FileLogger) rotateFile() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	rotated := filepath.Join(l.basePath, fmt.Sprintf("audit-%s.log", time.Now().UTC().Format("2006-01-02-15-04-05.000")))
	if err := os.Rename(l.currentPath(), rotated); err != nil {
		return fmt.Errorf("failed to rename log file: %w", err)
	}
	return l.cleanupOldFiles()
}

// cleanupOldFiles keeps the newest maxFiles rotated files. Names sort by timestamp.
func (l *FileLogger) cleanupOldFiles() error {
	files, err := filepath.Glob(filepath.Join(l.basePath, "audit-*.log"))
	if err != nil {
		return err
	}
	if len(files) <= l.maxFiles {
		return nil
	}
	sort.Strings(files)
	for _, f := range files[:len(files)-l.maxFiles] {
		if err := os.Remove(f); err != nil {
			return fmt.Errorf("failed to remove old audit log %s: %w", f, err)
		}
	}
	return nil
}

// Log implements Logger
func (l *FileLogger) Log(ctx context.Context, event *AuditEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return fmt.Errorf("audit log file is closed")
	}

	if l.rotate {
		if info, err := l.file.Stat(); err == nil && info.Size() >= l.maxSize {
			if err := l.openLogFile(); err != nil {
				return err
			}
		}
	}

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// Close implements Logger
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// ReadLogs reads up to count events from the current file; count <= 0 reads all
func (l *FileLogger) ReadLogs(count int) ([]*AuditEvent, error) {
	file, err := os.Open(l.currentPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer file.Close()

	var events []*AuditEvent
	decoder := json.NewDecoder(file)
	for {
		var event AuditEvent
		if err := decoder.Decode(&event); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("failed to decode audit log entry: %w", err)
		}
		events = append(events, &event)
		if count > 0 && len(events) >= count {
			break
		}
	}
	return events, nil
}
