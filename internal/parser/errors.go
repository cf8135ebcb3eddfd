package parser

import "errors"

// Fatal pre-parse errors. Everything else encountered while streaming is
// non-fatal and accumulates as ParseError entries alongside the results.
var (
	// ErrLogNotFound indicates the log file is absent or unreadable.
	ErrLogNotFound = errors.New("log file not found")

	// ErrInvalidLogFormat indicates the file is empty or its first bytes
	// look like neither an Arena client header nor JSON.
	ErrInvalidLogFormat = errors.New("invalid log file format")
)

// ParseError describes one non-fatal problem encountered while processing
// the log. The full list is returned with the parse results so callers can
// surface or store it.
type ParseError struct {
	EventType  string `json:"event_type"`
	LineNumber int    `json:"line_number"`
	Message    string `json:"error_text"`
}
