// Package report defines the crash report data structures shared by the
// collectors, the store and the sender: report fields, the per-report crash
// context, and the collected field values.
package report

import (
	"fmt"
	"sort"
	"strings"
)

// Field identifies one category of diagnostic data a report may contain.
type Field int

const (
	ReportID Field = iota + 1
	UserCrashDate
	AppVersion
	StackTrace
	StackTraceHash
	CustomData
	OSVersion
	Uptime
	BootTime
	DumpsysMeminfo
	TotalMemSize
	AvailableMemSize
)

var fieldNames = map[Field]string{
	ReportID:         "REPORT_ID",
	UserCrashDate:    "USER_CRASH_DATE",
	AppVersion:       "APP_VERSION",
	StackTrace:       "STACK_TRACE",
	StackTraceHash:   "STACK_TRACE_HASH",
	CustomData:       "CUSTOM_DATA",
	OSVersion:        "OS_VERSION",
	Uptime:           "UPTIME",
	BootTime:         "BOOT_TIME",
	DumpsysMeminfo:   "DUMPSYS_MEMINFO",
	TotalMemSize:     "TOTAL_MEM_SIZE",
	AvailableMemSize: "AVAILABLE_MEM_SIZE",
}

// AllFields returns every known field in declaration order.
func AllFields() []Field {
	fields := make([]Field, 0, len(fieldNames))
	for f := ReportID; f <= AvailableMemSize; f++ {
		fields = append(fields, f)
	}
	return fields
}

// String returns the canonical upper-case name of the field.
func (f Field) String() string {
	if name, ok := fieldNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Field(%d)", int(f))
}

// ParseField converts a canonical field name (case-insensitive) to a Field.
func ParseField(s string) (Field, error) {
	key := strings.ToUpper(strings.TrimSpace(s))
	for f, name := range fieldNames {
		if name == key {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown report field %q", s)
}

// MarshalText implements encoding.TextMarshaler so fields can be used as
// JSON map keys and YAML scalars.
func (f Field) MarshalText() ([]byte, error) {
	if _, ok := fieldNames[f]; !ok {
		return nil, fmt.Errorf("unknown report field %d", int(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Field) UnmarshalText(text []byte) error {
	parsed, err := ParseField(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// FieldSet is an unordered set of report fields.
type FieldSet map[Field]struct{}

// NewFieldSet builds a set from the given fields.
func NewFieldSet(fields ...Field) FieldSet {
	s := make(FieldSet, len(fields))
	for _, f := range fields {
		s[f] = struct{}{}
	}
	return s
}

// Has reports whether f is in the set. A nil set contains nothing.
func (s FieldSet) Has(f Field) bool {
	_, ok := s[f]
	return ok
}

// Without returns a copy of the set with the given fields removed.
func (s FieldSet) Without(fields ...Field) FieldSet {
	out := make(FieldSet, len(s))
	for f := range s {
		out[f] = struct{}{}
	}
	for _, f := range fields {
		delete(out, f)
	}
	return out
}

// Sorted returns the members of the set in declaration order.
func (s FieldSet) Sorted() []Field {
	out := make([]Field, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
