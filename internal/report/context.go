package report

import (
	"errors"
	"syscall"
	"time"
)

// ErrOutOfMemory marks a crash caused by memory exhaustion. Wrap it (or
// return it directly) to signal an out-of-memory condition to collectors.
var ErrOutOfMemory = errors.New("out of memory")

// CrashContext is the per-report record consulted by collectors. It is owned
// by the reporting pipeline for the lifetime of one report; collectors only
// read it.
type CrashContext struct {
	// Err is the triggering error. It may be nil for manually sent reports.
	Err error
	// Stack is the goroutine stack captured at the crash site, if any.
	Stack []byte
	// Time is when the crash was observed.
	Time time.Time
	// Custom carries application supplied key/value metadata.
	Custom map[string]string
}

// NewCrashContext creates a crash context stamped with the current UTC time.
func NewCrashContext(err error, stack []byte) *CrashContext {
	return &CrashContext{
		Err:    err,
		Stack:  stack,
		Time:   time.Now().UTC(),
		Custom: make(map[string]string),
	}
}

// IsOutOfMemory reports whether the crash was triggered by memory exhaustion.
// A nil context or nil error is never out of memory.
func (c *CrashContext) IsOutOfMemory() bool {
	if c == nil {
		return false
	}
	return IsOutOfMemory(c.Err)
}

// IsOutOfMemory reports whether err is, or wraps, an out-of-memory condition:
// either ErrOutOfMemory or the ENOMEM errno returned by the OS.
func IsOutOfMemory(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrOutOfMemory) || errors.Is(err, syscall.ENOMEM)
}
