// Package logtail reads the tail of the shopfront log file and filters
// entries by logrus level.
package logtail

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

const maxLineBytes = 1024 * 1024

// Read returns the last maxLines lines of the file at path, or every line
// when maxLines is zero or negative. A missing file yields no lines.
func Read(path string, maxLines int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if maxLines > 0 && len(lines) > maxLines {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	return lines, nil
}

// LineLevel extracts the logrus level from a text ("level=warning") or JSON
// ("level":"warning") entry.
func LineLevel(line string) (logrus.Level, bool) {
	for _, marker := range []string{`"level":"`, "level="} {
		idx := strings.Index(line, marker)
		if idx < 0 {
			continue
		}
		rest := line[idx+len(marker):]
		end := strings.IndexAny(rest, `" `)
		if end >= 0 {
			rest = rest[:end]
		}
		level, err := logrus.ParseLevel(rest)
		if err != nil {
			return 0, false
		}
		return level, true
	}
	return 0, false
}

// Filter keeps lines at threshold severity or above. Lines without a level are
// kept so wrapped output stays readable.
func Filter(lines []string, threshold logrus.Level) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		level, ok := LineLevel(line)
		if !ok || level <= threshold {
			out = append(out, line)
		}
	}
	return out
}
