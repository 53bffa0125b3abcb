// Package logtail reads the end of Tabby's log file for the in-app log view.
//
// # Reading
//
// Read keeps a ring buffer of the last maxLines lines, so a large log file is
// scanned once with O(maxLines) memory and the result comes back oldest first.
// A log file that does not exist yet reads as empty.
//
//	lines, err := logtail.Read(cfg.LogFile, 200)
//
// # Levels
//
// Lines are written by charmbracelet/log's text formatter:
//
//	2026-10-19T10:00:00Z WARN image fetch failed op=detail id=abys
//
// LevelOf recognizes the level column (DEBU, INFO, WARN, ERRO, FATA) in the
// first two fields. Parse carries the last seen level over to lines without
// one, so multi-line values stay with their record, and Tail filters by a
// minimum level.
package logtail
