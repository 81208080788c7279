package logger

import (
	"bufio"
	"io"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// LogEntry represents a parsed log entry
type LogEntry struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Message   string                 `json:"msg"`
	Category  string                 `json:"category"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// LogReader reads and tails category log files
type LogReader struct {
	logsDir      string
	pollInterval time.Duration
}

// NewLogReader creates a new log reader
func NewLogReader(logsDir string) *LogReader {
	return &LogReader{
		logsDir:      logsDir,
		pollInterval: 200 * time.Millisecond,
	}
}

// GetLogPath returns the path to a category log file for a specific date
func (lr *LogReader) GetLogPath(category LogCategory, date time.Time) string {
	return CategoryLogPath(lr.logsDir, category, date)
}

// ReadLogs returns the last limit entries of a category file (all when
// limit <= 0). A missing file yields no entries.
func (lr *LogReader) ReadLogs(category LogCategory, date time.Time, limit int) ([]LogEntry, error) {
	file, err := os.Open(lr.GetLogPath(category, date))
	if err != nil {
		if os.IsNotExist(err) {
			return []LogEntry{}, nil
		}
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}

	entries := make([]LogEntry, 0, len(lines))
	for _, line := range lines {
		entries = append(entries, parseLogLine(category, line))
	}
	return entries, nil
}

// ReadTodayLogs reads today's log entries for a category
func (lr *LogReader) ReadTodayLogs(category LogCategory, limit int) ([]LogEntry, error) {
	return lr.ReadLogs(category, time.Now(), limit)
}

// SearchLogs returns entries whose message or level contains query
func (lr *LogReader) SearchLogs(category LogCategory, date time.Time, query string, limit int) ([]LogEntry, error) {
	entries, err := lr.ReadLogs(category, date, 0)
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(query)
	var filtered []LogEntry
	for _, entry := range entries {
		if strings.Contains(strings.ToLower(entry.Message), query) ||
			strings.Contains(strings.ToLower(entry.Level), query) {
			filtered = append(filtered, entry)
		}
	}

	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	return filtered, nil
}

// TailLogs sends entries appended to today's file until stop is closed
func (lr *LogReader) TailLogs(category LogCategory, entries chan<- LogEntry, stop <-chan struct{}) error {
	path := lr.GetLogPath(category, time.Now())

	var file *os.File
	for file == nil {
		f, err := os.Open(path)
		switch {
		case err == nil:
			file = f
		case os.IsNotExist(err):
			select {
			case <-stop:
				return nil
			case <-time.After(lr.pollInterval):
			}
		default:
			return err
		}
	}
	defer file.Close()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return err
	}

	reader := bufio.NewReader(file)
	var partial string
	for {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			partial += line
			select {
			case <-stop:
				return nil
			case <-time.After(lr.pollInterval):
			}
			continue
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(partial + line)
		partial = ""
		if line == "" {
			continue
		}
		select {
		case entries <- parseLogLine(category, line):
		case <-stop:
			return nil
		}
	}
}

// parseLogLine decodes a JSON line; raw output lines become info entries
func parseLogLine(category LogCategory, line string) LogEntry {
	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		return LogEntry{Level: "info", Message: line, Category: string(category)}
	}

	entry := LogEntry{Category: string(category)}
	if v, ok := fields["ts"].(string); ok {
		entry.Timestamp = v
	}
	if v, ok := fields["level"].(string); ok {
		entry.Level = v
	}
	if v, ok := fields["msg"].(string); ok {
		entry.Message = v
	}
	for _, k := range []string{"ts", "level", "msg", "category"} {
		delete(fields, k)
	}
	if len(fields) > 0 {
		entry.Fields = fields
	}
	return entry
}
