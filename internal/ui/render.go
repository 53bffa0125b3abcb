package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/five82/tabby/internal/breed"
	"github.com/five82/tabby/internal/view"
)

const (
	chromeLines   = 3 // header, status line, footer
	summaryRunes  = 60
	ratingMaximum = 5
	logTailLines  = 500
)

// renderMain composes header, body and footer.
func (m Model) renderMain() string {
	var body string
	switch {
	case m.showLogs:
		body = m.logViewport.View()
	case m.detail != nil:
		body = m.detailViewport.View()
	default:
		body = m.renderList()
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.renderStatusLine(),
		lipgloss.NewStyle().Height(m.bodyHeight()).Render(body),
		m.renderFooter(),
	)
}

func (m Model) bodyHeight() int {
	h := m.height - chromeLines
	if h < 1 {
		return 1
	}
	return h
}

// renderHeader renders the logo, the phase badge and the breed count.
func (m Model) renderHeader() string {
	styles := m.theme.Styles()

	fetching := m.listView.Fetching
	var failed bool
	if m.detail != nil {
		fetching = m.detailView.Fetching
		failed = m.detailView.Error != nil
	} else {
		failed = m.listView.Error != nil
	}

	phase := "idle"
	switch {
	case fetching:
		phase = "loading"
	case failed:
		phase = "failed"
	case len(m.listView.Items) > 0:
		phase = "success"
	}

	parts := []string{
		styles.Logo.Render("tabby"),
		styles.StatusStyle(phase).Render(strings.ToUpper(phase)),
		styles.MutedText.Render(fmt.Sprintf("%d breeds", len(m.listView.Items))),
	}
	if q := m.listView.Query; q != "" {
		parts = append(parts, styles.InfoText.Render(fmt.Sprintf("search: %q", q)))
	}
	if fetching {
		parts = append(parts, m.spinner.View())
	}
	return styles.Header.Width(m.width).Render(strings.Join(parts, "  "))
}

// renderStatusLine shows the search input, or the latest error.
func (m Model) renderStatusLine() string {
	styles := m.theme.Styles()
	if m.searching {
		return m.input.View()
	}
	if m.showLogs {
		line := fmt.Sprintf("log %s  level >= %s", m.logPath, m.logMinLevel)
		if m.logErr != nil {
			return styles.DangerText.Render(truncate(m.logErr.Error(), m.width))
		}
		return styles.MutedText.Render(truncate(line, m.width))
	}
	var err *view.Error
	if m.detail != nil {
		err = m.detailView.Error
	} else {
		err = m.listView.Error
	}
	if err == nil {
		return ""
	}
	return styles.DangerText.Render(truncate(errorMessage(err), m.width))
}

func errorMessage(err *view.Error) string {
	if err.Cause == nil {
		return "Failed to load."
	}
	return fmt.Sprintf("Failed to load. Error message: %v", err.Cause)
}

// renderList renders one row per visible breed.
func (m Model) renderList() string {
	styles := m.theme.Styles()
	if len(m.listView.Items) == 0 {
		switch {
		case m.listView.Fetching:
			return styles.MutedText.Render(m.spinner.View() + " Loading breeds...")
		case m.listView.Query != "":
			return styles.MutedText.Render(fmt.Sprintf("No breeds match %q.", m.listView.Query))
		default:
			return styles.MutedText.Render("No breeds yet. Press r to refresh.")
		}
	}

	start, end := m.listWindow()
	rows := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		rows = append(rows, m.renderRow(m.listView.Items[i], i == m.selected))
	}
	return strings.Join(rows, "\n")
}

func (m Model) renderRow(b breed.Breed, selected bool) string {
	styles := m.theme.Styles()
	name := padRight(truncate(b.Name, 24), 24)
	origin := padRight(truncate(b.Origin, 16), 16)
	line := fmt.Sprintf("%s  %s  %s", name, origin, b.Summary(summaryRunes))
	if b.IsRare() {
		line += "  " + styles.StatusStyle("rare").Render("RARE")
	}
	if selected {
		return styles.Selected.Width(m.width).Render("> " + line)
	}
	return styles.Text.Render("  " + line)
}

// listWindow returns the range of rows that fit on screen and keep the
// selection visible.
func (m Model) listWindow() (int, int) {
	n := len(m.listView.Items)
	if m.height <= 0 {
		return 0, n
	}
	rows := m.bodyHeight()
	start := 0
	if m.selected >= rows {
		start = m.selected - rows + 1
	}
	end := start + rows
	if end > n {
		end = n
	}
	return start, end
}

// renderDetailBody renders the breed record, wrapped to width.
func (m Model) renderDetailBody(width int) string {
	styles := m.theme.Styles()
	d := m.detailView
	if d.Breed == nil {
		if d.Fetching {
			return styles.MutedText.Render(fmt.Sprintf("%s Loading %s...", m.spinner.View(), d.ID))
		}
		return styles.MutedText.Render(fmt.Sprintf("No data for %s. Press r to retry.", d.ID))
	}
	b := d.Breed
	wrap := lipgloss.NewStyle().Width(max(width-2, 20))

	var sb strings.Builder
	title := styles.AccentText.Render(b.Name)
	if b.IsRare() {
		title += "  " + styles.StatusStyle("rare").Render("RARE")
	}
	sb.WriteString(title + "\n")
	if b.AlternateNames != "" {
		sb.WriteString(styles.MutedText.Render("also known as "+b.AlternateNames) + "\n")
	}
	sb.WriteString("\n")

	field := func(label, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		sb.WriteString(styles.FaintText.Render(padRight(label, 12)))
		sb.WriteString(styles.Text.Render(value) + "\n")
	}
	field("Origin", b.Origin)
	field("Life span", suffix(b.LifeSpan, " years"))
	field("Weight", weightText(b.Weight))
	field("Temperament", strings.Join(b.Temperaments(), ", "))
	field("Wikipedia", b.WikipediaURL)
	sb.WriteString("\n")

	if desc := strings.TrimSpace(b.Description); desc != "" {
		sb.WriteString(wrap.Render(desc) + "\n\n")
	}

	for _, tr := range b.Ratings.Traits() {
		sb.WriteString(styles.FaintText.Render(padRight(tr.Name, 18)))
		sb.WriteString(styles.InfoText.Render(ratingBar(tr.Score)) + "\n")
	}
	sb.WriteString("\n")

	switch {
	case d.HasImage():
		sb.WriteString(styles.FaintText.Render("Image       "))
		sb.WriteString(styles.Text.Render(fmt.Sprintf("%s (%dx%d)", d.Image.URL, d.Image.Width, d.Image.Height)))
	case b.ReferenceImageID == "":
		sb.WriteString(styles.MutedText.Render("No reference image."))
	case d.Fetching:
		sb.WriteString(styles.MutedText.Render("Image loading..."))
	default:
		sb.WriteString(styles.MutedText.Render("Image unavailable."))
	}
	return sb.String()
}

// renderLogBody renders the log tail colored by level.
func (m Model) renderLogBody() string {
	styles := m.theme.Styles()
	if m.logPath == "" {
		return styles.MutedText.Render("No log file configured.")
	}
	if len(m.logEntries) == 0 {
		return styles.MutedText.Render("No log lines at this level.")
	}
	lines := make([]string, 0, len(m.logEntries))
	for _, e := range m.logEntries {
		style := styles.Text
		switch {
		case e.Level >= log.ErrorLevel:
			style = styles.DangerText
		case e.Level >= log.WarnLevel:
			style = styles.WarningText
		case e.Level < log.InfoLevel:
			style = styles.FaintText
		}
		lines = append(lines, style.Render(e.Text))
	}
	return strings.Join(lines, "\n")
}

// renderFooter renders the key help line.
func (m Model) renderFooter() string {
	styles := m.theme.Styles()
	return styles.Footer.Width(m.width).Render(m.help.View(m.keys))
}

// renderHelp renders the full key reference.
func (m Model) renderHelp() string {
	styles := m.theme.Styles()
	full := m.help
	full.ShowAll = true
	content := styles.Text.Bold(true).Render("Keyboard Shortcuts") + "\n\n" +
		full.View(m.keys) + "\n\n" +
		styles.FaintText.Render("Press any key to close")
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
		styles.Panel.Render(content))
}

func ratingBar(score int) string {
	filled := min(max(score, 0), ratingMaximum)
	bar := strings.Repeat("●", filled) + strings.Repeat("○", ratingMaximum-filled)
	if score > ratingMaximum {
		bar += fmt.Sprintf(" %d", score)
	}
	return bar
}

func weightText(w breed.Weight) string {
	switch {
	case w.Metric != "" && w.Imperial != "":
		return fmt.Sprintf("%s kg (%s lb)", w.Metric, w.Imperial)
	case w.Metric != "":
		return w.Metric + " kg"
	case w.Imperial != "":
		return w.Imperial + " lb"
	}
	return ""
}

func suffix(v, s string) string {
	if strings.TrimSpace(v) == "" {
		return ""
	}
	return v + s
}

func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 1 {
		return string(runes[:n])
	}
	return string(runes[:n-1]) + "…"
}

func padRight(s string, n int) string {
	w := lipgloss.Width(s)
	if w >= n {
		return s
	}
	return s + strings.Repeat(" ", n-w)
}
