package parser

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// headerSniffSize is how many leading bytes are inspected to decide the
	// file is an Arena client log before any event is emitted.
	headerSniffSize = 4096

	// maxJSONBlockLines bounds multi-line JSON accumulation. Blocks that
	// exceed it are discarded and extraction resumes at the next line.
	maxJSONBlockLines = 4096

	// maxLineBytes bounds a single log line; game-state snapshots can run
	// to several megabytes on one line.
	maxLineBytes = 16 * 1024 * 1024
)

var timestampLinePattern = regexp.MustCompile(
	`^\[UnityCrossThreadLogger\](\d+/\d+/\d+\s+\d+:\d+:\d+\s+[AP]M)`)

const timestampLineLayout = "1/2/2006 3:04:05 PM"

// Extractor streams an Arena Player.log file and emits typed RawEvents.
// Construction validates the file; each Extract call is a fresh single pass.
type Extractor struct {
	path   string
	logger *zap.Logger

	malformed []ParseError
}

// NewExtractor validates the log file and returns an extractor for it.
// A missing or unreadable path fails with ErrLogNotFound; an empty file or
// one whose first bytes resemble neither the Arena client header nor JSON
// fails with ErrInvalidLogFormat.
func NewExtractor(path string, logger *zap.Logger) (*Extractor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrLogNotFound, path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrLogNotFound, path)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrInvalidLogFormat)
	}

	header := make([]byte, headerSniffSize)
	n, err := f.Read(header)
	if n == 0 && err != nil {
		return nil, fmt.Errorf("%w: cannot read file header", ErrInvalidLogFormat)
	}
	head := string(header[:n])
	if !looksLikeArenaLog(head) {
		return nil, fmt.Errorf("%w: no Arena client header or JSON in first %d bytes",
			ErrInvalidLogFormat, headerSniffSize)
	}

	return &Extractor{path: path, logger: logger}, nil
}

func looksLikeArenaLog(head string) bool {
	if strings.Contains(head, "Unity") || strings.Contains(head, "MTGA") ||
		strings.Contains(head, "Wizards") {
		return true
	}
	return strings.HasPrefix(strings.TrimSpace(head), "{")
}

// Extract streams the file once and calls emit for every classified event,
// in log order. Unknown objects are dropped before emission. Per-line JSON
// failures are non-fatal; decode failures of recognized event types
// accumulate in MalformedEvents.
func (e *Extractor) Extract(emit func(RawEvent)) error {
	f, err := os.Open(e.path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrLogNotFound, e.path)
	}
	defer f.Close()

	e.malformed = nil

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var (
		lineNumber int
		blockLines []string
		inBlock    bool
		wallTime   time.Time
	)

	for scanner.Scan() {
		lineNumber++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if m := timestampLinePattern.FindStringSubmatch(line); m != nil {
			if ts, err := time.ParseInLocation(timestampLineLayout, m[1], time.UTC); err == nil {
				wallTime = ts
			}
		}

		if inBlock {
			blockLines = append(blockLines, trimmed)
			joined := strings.Join(blockLines, "\n")
			if ev, ok := e.tryParse(joined, lineNumber, wallTime); ok {
				inBlock = false
				blockLines = nil
				if ev.Type != EventUnknown {
					emit(ev)
				}
			} else if ev, ok := e.reclassifyBlockLine(trimmed, len(blockLines), lineNumber, wallTime); ok {
				// The open block was garbage that never completes; this
				// line is a whole recognizable object on its own.
				inBlock = false
				blockLines = nil
				emit(ev)
			} else if len(blockLines) > maxJSONBlockLines {
				e.recordMalformed("", lineNumber,
					fmt.Sprintf("discarded unterminated JSON block of %d lines", len(blockLines)))
				e.logger.Warn("discarding unterminated JSON block",
					zap.Int("line", lineNumber),
					zap.Int("block_lines", len(blockLines)),
				)
				inBlock = false
				blockLines = nil
			}
			continue
		}

		if strings.HasPrefix(trimmed, "{") {
			if ev, ok := e.tryParse(trimmed, lineNumber, wallTime); ok {
				if ev.Type != EventUnknown {
					emit(ev)
				}
			} else {
				// Incomplete on this line; start accumulating.
				inBlock = true
				blockLines = []string{trimmed}
			}
			continue
		}

		// Most lines carry no JSON at all; a trailing {...} span is the
		// only other shape worth attempting, and failures are silent.
		if span, ok := trailingJSONSpan(trimmed); ok {
			if ev, parsed := e.tryParse(span, lineNumber, wallTime); parsed && ev.Type != EventUnknown {
				emit(ev)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read log file: %w", err)
	}
	if inBlock {
		e.recordMalformed("", lineNumber, "file ended inside a JSON block")
	}
	return nil
}

// reclassifyBlockLine decides whether a line seen mid-block is actually a
// fresh top-level event, which means the accumulated block was an unparsable
// fragment. Only a line that parses standalone into a known event type
// abandons the block; that keeps pretty-printed inner lines accumulating.
func (e *Extractor) reclassifyBlockLine(trimmed string, blockLen, lineNumber int, wallTime time.Time) (RawEvent, bool) {
	if !strings.HasPrefix(trimmed, "{") {
		return RawEvent{}, false
	}
	ev, ok := e.tryParse(trimmed, lineNumber, wallTime)
	if !ok || ev.Type == EventUnknown {
		return RawEvent{}, false
	}
	e.recordMalformed("", lineNumber,
		fmt.Sprintf("discarded unparsable fragment of %d lines", blockLen-1))
	return ev, true
}

// MalformedEvents returns the non-fatal JSON and decode errors accumulated
// by the last Extract call.
func (e *Extractor) MalformedEvents() []ParseError {
	out := make([]ParseError, len(e.malformed))
	copy(out, e.malformed)
	return out
}

// tryParse attempts a full JSON parse of candidate. The second return is
// false only when the candidate is not valid JSON (the caller may keep
// accumulating); recognized events with undecodable payloads are counted
// as malformed and returned as EventUnknown with ok=true.
func (e *Extractor) tryParse(candidate string, lineNumber int, wallTime time.Time) (RawEvent, bool) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &keys); err != nil {
		return RawEvent{}, false
	}

	ev, err := classifyEvent([]byte(candidate), keys, lineNumber)
	ev.WallTime = wallTime
	if err != nil {
		e.recordMalformed(string(ev.Type), lineNumber, err.Error())
		e.logger.Warn("failed to decode event payload",
			zap.Int("line", lineNumber),
			zap.Error(err),
		)
		return RawEvent{Type: EventUnknown, LineNumber: lineNumber, WallTime: wallTime}, true
	}
	return ev, true
}

func (e *Extractor) recordMalformed(eventType string, lineNumber int, msg string) {
	e.malformed = append(e.malformed, ParseError{
		EventType:  eventType,
		LineNumber: lineNumber,
		Message:    msg,
	})
}

// trailingJSONSpan returns the {...} span running from the first opening
// brace to the closing brace at the end of the line, if the line ends with
// one. Greedy to the last brace, mirroring how the client appends JSON to
// prefixed log lines.
func trailingJSONSpan(line string) (string, bool) {
	end := strings.LastIndexByte(line, '}')
	if end != len(line)-1 || end < 1 {
		return "", false
	}
	start := strings.IndexByte(line, '{')
	if start < 0 || start >= end {
		return "", false
	}
	return line[start : end+1], true
}
