// Package ui provides the Bubble Tea terminal interface for Tabby.
//
// # Views
//
// Two views share one Model:
//
//   - List: every cached breed, narrowed by the active search query
//   - Detail: one breed with its traits and reference image
//
// The list is backed by a view.ListScreen that stays open for the lifetime of
// the program. Opening a breed creates a view.DetailScreen; leaving the detail
// view closes it again, but the fetch it started still completes and lands in
// the shared cache.
//
// # Data Flow
//
// Screens publish frames on channels. The model turns each channel into a
// tea.Cmd that blocks for the next frame (waitForList, waitForDetail) and
// re-arms itself after every delivered message. Frames from a detail screen
// that has since been closed are discarded.
//
// # Key Bindings
//
// Bindings live in keys.go and are rendered by bubbles/help in the footer and
// the help overlay (h or ?). "/" opens the search input, enter submits it,
// x clears it. r refreshes the list or retries the open breed. T cycles the
// theme, and the theme plus the last query are saved to prefs.toml.
package ui
