package logstream

import (
	"regexp"
	"strings"
	"time"

	"worldpanel/internal/models"
)

// UnknownSource labels lines that do not follow the server log format.
const UnknownSource = "Unknown"

// linePattern matches "[HH:mm:ss] [Source/LEVEL]: Message".
var linePattern = regexp.MustCompile(`^\[(\d{2}:\d{2}:\d{2})\] \[([^\]]+)/(INFO|WARN|ERROR)\]: (.*)$`)

// ParseLine converts a raw log line into a record. Lines that do not match the
// server log format still produce a record stamped with now.
func ParseLine(raw string, now time.Time) models.LogRecord {
	if m := linePattern.FindStringSubmatch(raw); m != nil {
		return models.LogRecord{
			Timestamp: m[1],
			Source:    m[2],
			Level:     m[3],
			Message:   m[4],
			Raw:       raw,
		}
	}
	return models.LogRecord{
		Timestamp: now.Format("15:04:05"),
		Source:    UnknownSource,
		Level:     models.LevelInfo,
		Message:   raw,
		Raw:       raw,
	}
}

// splitFrame breaks a text frame into lines. A frame normally carries one line.
func splitFrame(frame string) []string {
	frame = strings.TrimRight(frame, "\r\n")
	lines := strings.Split(frame, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
