package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"
)

func (m *model) View() string {
	var body string
	switch {
	case m.helpVisible:
		body = m.helpView()
	case m.stage == stageLoading:
		body = m.heroView(fmt.Sprintf("%s %s", m.spinner.View(), m.infoMessage))
	case m.stage == stageFailed:
		body = m.heroView(errorStyle.Render(m.errorMessage) + "\n" +
			helperStyle.Render("Check the document id or path and try again. Ctrl+C quits."))
	default:
		body = m.panesView()
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		body,
		m.statusView(),
		m.inputView(),
		m.legendView(),
	)
}

func (m *model) heroView(body string) string {
	return strings.Join([]string{
		heroTitleStyle.Render(answerLabel),
		taglineStyle.Render(heroTagline),
		"",
		body,
	}, "\n")
}

func (m *model) headerView() string {
	left := heroTitleStyle.Render(answerLabel)
	right := ""
	if m.doc != nil {
		page := m.tracker.Center()
		if page < 1 {
			page = m.nav.Page()
		}
		right = helperStyle.Render(fmt.Sprintf("page %d/%d", page, m.doc.PageCount()))
		room := m.layout.windowWidth - lipgloss.Width(left) - lipgloss.Width(right) - 4
		if room > 0 {
			left += "  " + runewidth.Truncate(m.doc.Title, room, "…")
		}
	}
	gap := m.layout.windowWidth - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m *model) panesView() string {
	docStyle, chatStyle := blurredBorderStyle, blurredBorderStyle
	if m.focus == focusDocument {
		docStyle = focusedBorderStyle
	} else {
		chatStyle = focusedBorderStyle
	}
	docPane := docStyle.Width(m.layout.docWidth).Height(m.layout.docHeight).Render(m.docView.View())
	chatPane := chatStyle.Width(m.layout.chatWidth).Height(m.layout.chatHeight).Render(m.chatView.View())
	if m.layout.split {
		return lipgloss.JoinHorizontal(lipgloss.Top, docPane, strings.Repeat(" ", paneGutter), chatPane)
	}
	return lipgloss.JoinVertical(lipgloss.Left, docPane, chatPane)
}

func (m *model) statusView() string {
	var stats []string
	if m.focus == focusDocument {
		stats = append(stats, "DOCUMENT")
	} else {
		stats = append(stats, "CHAT")
	}
	if m.streaming() {
		stats = append(stats, m.spinner.View()+" answering")
	}
	if q := m.search.Query(); q != "" {
		stats = append(stats, fmt.Sprintf("%q %d/%d", q, m.search.Position(), m.search.Count()))
	}
	if c, ok := m.nav.Active(); ok {
		stats = append(stats, fmt.Sprintf("[%d] p.%d", c.RefIndex, c.Page))
	}
	stats = append(stats, m.running.badges()...)
	line := statusBarStyle.Render(strings.Join(stats, "  •  "))
	switch {
	case m.errorMessage != "" && m.stage != stageFailed:
		line += " " + errorStyle.Render(m.errorMessage)
	case m.infoMessage != "" && m.stage != stageLoading:
		line += " " + helperStyle.Render(m.infoMessage)
	}
	if m.layout.windowWidth > 0 {
		line = truncate.String(line, uint(m.layout.windowWidth))
	}
	return line
}

func (m *model) inputView() string {
	if m.stage == stageSearch {
		return m.searchInput.View()
	}
	if m.cfg.Session == nil {
		return helperStyle.Render("Chat is disabled for this document.")
	}
	return m.composer.View()
}

type keyHint struct {
	Key         string
	Description string
}

func (m *model) hints() []keyHint {
	if m.stage == stageSearch {
		return []keyHint{{"enter", "Jump"}, {"esc", "Clear"}}
	}
	if m.focus == focusComposer {
		return []keyHint{{"enter", "Send"}, {"esc", "Stop"}, {"tab", "Document"}, {"pgup/pgdn", "Scroll chat"}}
	}
	return []keyHint{
		{"j/k", "Scroll"}, {"/", "Search"}, {"n/N", "Match"}, {"[/]", "Citation"},
		{"r", "Regenerate"}, {"c", "Continue"}, {"e", "Export"}, {"?", "Help"},
	}
}

func (m *model) legendView() string {
	cells := make([]string, 0, len(m.hints()))
	for _, hint := range m.hints() {
		cells = append(cells, keyStyle.Render(hint.Key)+keyDescStyle.Render(" "+hint.Description+" "))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

func (m *model) helpView() string {
	all := []keyHint{
		{"tab", "Switch between chat and document"},
		{"enter", "Send the question, or open the selected citation"},
		{"esc", "Stop the answer, or clear the highlight"},
		{"j/k pgup/pgdn", "Scroll the document"},
		{"g/G", "Top or bottom"},
		{"J/K", "Scroll the chat"},
		{"/", "Search the document"},
		{"n/N", "Next or previous match"},
		{"[/]", "Previous or next citation"},
		{"r", "Regenerate the last answer"},
		{"c", "Continue a cut-short answer"},
		{"e", "Export the chat to markdown"},
		{"q ctrl+c", "Quit"},
	}
	rows := []string{sectionHeaderStyle.Render("Navigation Cheatsheet")}
	for _, hint := range all {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top,
			keyStyle.Render(hint.Key), keyDescStyle.Render(" "+hint.Description)))
	}
	return legendBoxStyle.Render(strings.Join(rows, "\n"))
}
