package logtail

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Entry is one line of the tabby log with its parsed level. Lines without a
// recognizable level (wrapped values, stack traces) inherit the level of the
// line before them.
type Entry struct {
	Level log.Level
	Text  string
}

// Read returns at most maxLines from the end of the file at path, or every
// line when maxLines <= 0. A missing file yields no lines.
func Read(path string, maxLines int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if maxLines <= 0 {
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read log: %w", err)
		}
		return lines, nil
	}

	ring := make([]string, maxLines)
	count := 0
	idx := 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := make([]string, count)
	if count == maxLines {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// Tail reads the last maxLines of path and keeps the entries at or above minLevel.
func Tail(path string, maxLines int, minLevel log.Level) ([]Entry, error) {
	lines, err := Read(path, maxLines)
	if err != nil {
		return nil, err
	}
	entries := Parse(lines)
	out := entries[:0]
	for _, e := range entries {
		if e.Level >= minLevel {
			out = append(out, e)
		}
	}
	return out, nil
}

// Parse assigns a level to every line.
func Parse(lines []string) []Entry {
	entries := make([]Entry, 0, len(lines))
	current := log.InfoLevel
	for _, line := range lines {
		if lvl, ok := LevelOf(line); ok {
			current = lvl
		}
		entries = append(entries, Entry{Level: current, Text: line})
	}
	return entries
}

// levelTokens maps the level column written by charmbracelet/log's text
// formatter.
var levelTokens = map[string]log.Level{
	"DEBU": log.DebugLevel,
	"INFO": log.InfoLevel,
	"WARN": log.WarnLevel,
	"ERRO": log.ErrorLevel,
	"FATA": log.FatalLevel,
}

// LevelOf finds the level column in a formatted log line. The timestamp comes
// first, so only the first two fields are inspected.
func LevelOf(line string) (log.Level, bool) {
	fields := strings.Fields(line)
	for i := 0; i < len(fields) && i < 2; i++ {
		if lvl, ok := levelTokens[fields[i]]; ok {
			return lvl, true
		}
	}
	return 0, false
}
