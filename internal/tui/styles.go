package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/csheth/docscout/internal/highlight"
)

var (
	sectionHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helperStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	userLabelStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("147"))
	answerLabelStyle   = lipgloss.NewStyle().Bold(true).Foreground(heroAccentColor)
	markerStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffb347")).Bold(true)
	noticeStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffd166")).Italic(true)

	// Document highlights: citations amber, search hits yellow, the active
	// hit bright.
	citationStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#ffb347"))
	searchStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("190"))
	searchActiveStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("229"))
	overlayBarStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff8c00"))
	pageHeaderStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#56526e"))
	placeholderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))

	heroAccentColor        = lipgloss.Color("#ff8c00")
	heroSecondaryTextColor = lipgloss.Color("#ffb347")

	heroTitleStyle     = lipgloss.NewStyle().Bold(true).Foreground(heroAccentColor)
	taglineStyle       = lipgloss.NewStyle().Foreground(heroSecondaryTextColor).Italic(true)
	statusBarStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6")).Padding(0, 1)
	keyStyle           = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#ffd166")).Padding(0, 1)
	keyDescStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#e0def4"))
	legendBoxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#56526e")).Padding(0, 1)
	currentLineStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6"))
	focusedBorderStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(heroAccentColor)
	blurredBorderStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#56526e"))
)

func spanStyle(kind highlight.SpanKind) lipgloss.Style {
	switch kind {
	case highlight.SpanCitation:
		return citationStyle
	case highlight.SpanSearchActive:
		return searchActiveStyle
	default:
		return searchStyle
	}
}
