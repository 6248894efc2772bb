// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package notes implements an append-only diagnostics log.
//
// Resolvers record what they found questionable while parsing damaged media;
// callers use the log to decide whether to trust a result.
package notes

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Severity of a note.
type Severity int

// Severities.
const (
	Info Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "I"
	case Warning:
		return "W"
	case Error:
		return "E"
	}

	return "?"
}

// Entry is a single note.
type Entry struct {
	Severity Severity
	Message  string
}

func (e Entry) String() string {
	return e.Severity.String() + " " + e.Message
}

// Notes is the ordered diagnostics log.
//
// The zero value is ready to use and discards log output.
type Notes struct {
	entries []Entry
	logger  *zap.Logger
}

// New creates a log which also mirrors every entry to the logger.
func New(logger *zap.Logger) *Notes {
	return &Notes{logger: logger}
}

// AddI appends an informational note.
func (n *Notes) AddI(format string, args ...any) {
	n.add(Info, format, args...)
}

// AddW appends a warning.
func (n *Notes) AddW(format string, args ...any) {
	n.add(Warning, format, args...)
}

// AddE appends an error.
func (n *Notes) AddE(format string, args ...any) {
	n.add(Error, format, args...)
}

func (n *Notes) add(sev Severity, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)

	n.entries = append(n.entries, Entry{Severity: sev, Message: msg})

	if n.logger == nil {
		return
	}

	switch sev {
	case Info:
		n.logger.Debug(msg)
	case Warning:
		n.logger.Warn(msg)
	case Error:
		n.logger.Error(msg)
	}
}

// Entries returns a copy of the log.
func (n *Notes) Entries() []Entry {
	return append([]Entry(nil), n.entries...)
}

// Count returns the number of entries with the severity.
func (n *Notes) Count(sev Severity) int {
	count := 0

	for _, e := range n.entries {
		if e.Severity == sev {
			count++
		}
	}

	return count
}

// HasErrors is true if at least one error was logged.
func (n *Notes) HasErrors() bool {
	return n.Count(Error) > 0
}

// Merge appends all entries of the other log.
func (n *Notes) Merge(other *Notes) {
	n.entries = append(n.entries, other.entries...)
}

func (n *Notes) String() string {
	var sb strings.Builder

	for _, e := range n.entries {
		sb.WriteString(e.String())
		sb.WriteByte('\n')
	}

	return sb.String()
}
