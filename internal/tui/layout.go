package tui

// pageLayout splits the window between the document pane and the chat
// pane. Wide terminals put them side by side; narrow ones stack them.
type pageLayout struct {
	windowWidth  int
	windowHeight int
	split        bool

	docWidth   int
	docHeight  int
	chatWidth  int
	chatHeight int
}

const (
	headerHeight = 1
	footerHeight = 3
	borderSize   = 2
)

func newPageLayout() pageLayout {
	l := pageLayout{}
	l.Update(100, 32)
	return l
}

func (l *pageLayout) Update(width, height int) {
	l.windowWidth = width
	l.windowHeight = height
	usable := height - headerHeight - footerHeight
	if usable < 10 {
		usable = 10
	}
	l.split = width >= splitMinWidth

	if l.split {
		inner := width - paneGutter - 2*borderSize
		l.docWidth = inner * 3 / 5
		l.chatWidth = inner - l.docWidth
		l.docHeight = usable - borderSize
		l.chatHeight = usable - borderSize
	} else {
		inner := width - borderSize
		l.docWidth = inner
		l.chatWidth = inner
		l.docHeight = usable*3/5 - borderSize
		l.chatHeight = usable - usable*3/5 - borderSize
	}
	if l.docWidth < minPaneWidth {
		l.docWidth = minPaneWidth
	}
	if l.chatWidth < minPaneWidth {
		l.chatWidth = minPaneWidth
	}
	if l.docHeight < 3 {
		l.docHeight = 3
	}
	if l.chatHeight < 3 {
		l.chatHeight = 3
	}
}
