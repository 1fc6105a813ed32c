package logging

import (
	"fmt"
	"io"
	"os"
	"time"
)

// EarlyLog writes plain lines to stderr before the structured logger exists.
type EarlyLog struct {
	out     io.Writer
	service string
}

func NewEarlyLog(service string) *EarlyLog {
	return &EarlyLog{out: os.Stderr, service: service}
}

func (l *EarlyLog) write(level, msg string, args ...interface{}) {
	fmt.Fprintf(l.out, "%s %s [%s] %s\n", time.Now().UTC().Format(time.RFC3339), level, l.service, fmt.Sprintf(msg, args...))
}

func (l *EarlyLog) Error(msg string, args ...interface{}) {
	l.write("ERROR", msg, args...)
}

func (l *EarlyLog) Info(msg string, args ...interface{}) {
	l.write("INFO", msg, args...)
}
