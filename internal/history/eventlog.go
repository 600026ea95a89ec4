package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

var errLogClosed = errors.New("event log is closed")

// EventLog appends JSON lines to a size-capped file without blocking the
// caller. Records are dropped when the buffer is full.
type EventLog struct {
	path    string
	writeCh chan any
	done    chan struct{}
	wg      sync.WaitGroup

	mu     sync.Mutex
	logger *lumberjack.Logger
	closed bool
}

// OpenEventLog starts a writer for path.
func OpenEventLog(path string, bufferSize, maxSizeMB int) (*EventLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("event log: mkdir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("event log: open: %w", err)
	}
	_ = f.Close()
	l := &EventLog{
		path:    path,
		writeCh: make(chan any, bufferSize),
		done:    make(chan struct{}),
		logger: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: 3,
			Compress:   false,
		},
	}
	l.wg.Add(1)
	go l.writeLoop()
	return l, nil
}

// Write queues a record.
func (l *EventLog) Write(record any) error {
	select {
	case <-l.done:
		return errLogClosed
	default:
	}
	select {
	case l.writeCh <- record:
		return nil
	default:
		slog.Warn("event log buffer full, dropping record", "path", l.path)
		return fmt.Errorf("event log: buffer full")
	}
}

// Close flushes queued records and closes the file. Safe to call twice.
func (l *EventLog) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	close(l.done)
	l.wg.Wait()

	timeout := time.After(5 * time.Second)
drain:
	for {
		select {
		case record := <-l.writeCh:
			l.writeRecord(record)
		case <-timeout:
			slog.Warn("event log close timeout, some records may be lost", "path", l.path)
			break drain
		default:
			break drain
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.logger.Close()
}

func (l *EventLog) writeLoop() {
	defer l.wg.Done()
	for {
		select {
		case record := <-l.writeCh:
			l.writeRecord(record)
		case <-l.done:
			return
		}
	}
}

func (l *EventLog) writeRecord(record any) {
	data, err := json.Marshal(record)
	if err != nil {
		slog.Error("event log: marshal record", "error", err, "path", l.path)
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.logger.Write(append(data, '\n')); err != nil {
		slog.Error("event log: write record", "error", err, "path", l.path)
	}
}
