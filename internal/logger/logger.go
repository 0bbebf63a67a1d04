// Package logger provides a thread-safe in-memory logger for node status
// messages. Every message is also written to the standard logger so the
// process log and the /api/logs view stay in step.
package logger

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// Level is the severity of a message.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Message represents a single log message
type Message struct {
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
	Level     Level     `json:"level"`
}

// Logger keeps the most recent maxSize messages.
type Logger struct {
	mu       sync.RWMutex
	messages []Message
	maxSize  int
	mirror   *log.Logger
}

// New creates a new logger with specified max message count. Messages are
// mirrored to the standard logger.
func New(maxSize int) *Logger {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Logger{
		messages: make([]Message, 0, maxSize),
		maxSize:  maxSize,
		mirror:   log.Default(),
	}
}

// SetMirror replaces the logger that receives a copy of every message.
// A nil mirror disables mirroring.
func (l *Logger) SetMirror(m *log.Logger) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mirror = m
}

// Log adds a new message to the logger
func (l *Logger) Log(level Level, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = append(l.messages, Message{
		Timestamp: time.Now(),
		Text:      text,
		Level:     level,
	})
	if len(l.messages) > l.maxSize {
		l.messages = l.messages[len(l.messages)-l.maxSize:]
	}
	if l.mirror != nil {
		l.mirror.Printf("%s: %s", level, text)
	}
}

func (l *Logger) Info(text string)    { l.Log(LevelInfo, text) }
func (l *Logger) Warning(text string) { l.Log(LevelWarning, text) }
func (l *Logger) Error(text string)   { l.Log(LevelError, text) }

func (l *Logger) Infof(format string, args ...any) {
	l.Log(LevelInfo, fmt.Sprintf(format, args...))
}

func (l *Logger) Warningf(format string, args ...any) {
	l.Log(LevelWarning, fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) {
	l.Log(LevelError, fmt.Sprintf(format, args...))
}

// GetRecent returns the most recent n messages (newest first)
func (l *Logger) GetRecent(n int) []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n > len(l.messages) || n < 0 {
		n = len(l.messages)
	}

	result := make([]Message, n)
	for i := 0; i < n; i++ {
		result[i] = l.messages[len(l.messages)-1-i]
	}
	return result
}

// GetAll returns all messages (newest first)
func (l *Logger) GetAll() []Message {
	return l.GetRecent(-1)
}
