package tui

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/docscout/internal/conversation"
	"github.com/csheth/docscout/internal/document"
	"github.com/csheth/docscout/internal/highlight"
	"github.com/csheth/docscout/internal/navigation"
	"github.com/csheth/docscout/internal/search"
	"github.com/csheth/docscout/internal/viewer"
)

var errNoLoader = errors.New("no document source configured")

// New returns a tea.Model ready to be mounted into a Program.
func New(cfg Config) tea.Model {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Load == nil {
		cfg.Load = func(context.Context) (*document.Document, error) { return nil, errNoLoader }
	}
	if cfg.Matcher == (highlight.Matcher{}) {
		cfg.Matcher = highlight.NewMatcher(0, 0)
	}
	if cfg.Snippet == (highlight.SnippetOptions{}) {
		cfg.Snippet = highlight.DefaultSnippetOptions()
	}

	composer := textinput.New()
	composer.Placeholder = "Ask a question about the document…"
	composer.CharLimit = 2000
	composer.Width = 70
	composer.Prompt = "› "
	composer.Focus()

	searchInput := textinput.New()
	searchInput.Placeholder = "Search the document…"
	searchInput.CharLimit = 120
	searchInput.Width = 60
	searchInput.Prompt = "/ "

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	docView := viewport.New(80, 20)
	docView.MouseWheelEnabled = true
	chatView := viewport.New(80, 10)
	chatView.MouseWheelEnabled = true

	ctx, cancel := context.WithCancel(context.Background())
	tracker := viewer.NewTracker(cfg.Viewer)
	index := search.NewIndex()

	m := &model{
		cfg:         cfg,
		stage:       stageLoading,
		focus:       focusComposer,
		layout:      newPageLayout(),
		composer:    composer,
		searchInput: searchInput,
		spinner:     spin,
		docView:     docView,
		chatView:    chatView,
		ctx:         ctx,
		cancel:      cancel,
		jobs:        newJobBus(ctx),
		running:     jobTable{},
		tracker:     tracker,
		nav:         navigation.New(tracker, navigation.Options{ScrollWindow: cfg.ScrollWindow, Now: cfg.Now}),
		index:       index,
		search:      search.NewState(index, cfg.SearchDebounce),
		selected:    -1,
		followChat:  true,
		infoMessage: "Loading document…",
	}
	m.docR = docRenderer{tracker: tracker, matcher: cfg.Matcher, snippet: cfg.Snippet}
	if cfg.Session != nil {
		m.storeCh = make(chan struct{}, 1)
		m.unsubscribe = cfg.Session.Store().Subscribe(func() {
			select {
			case m.storeCh <- struct{}{}:
			default:
			}
		})
	} else {
		composer.Blur()
		m.composer = composer
		m.focus = focusDocument
	}
	m.applyLayout()
	return m
}

type model struct {
	cfg    Config
	stage  stage
	focus  focus
	layout pageLayout

	composer    textinput.Model
	searchInput textinput.Model
	spinner     spinner.Model
	docView     viewport.Model
	chatView    viewport.Model

	ctx     context.Context
	cancel  context.CancelFunc
	jobs    *jobBus
	running jobTable

	doc     *document.Document
	tracker *viewer.Tracker
	nav     *navigation.Controller
	index   *search.Index
	search  *search.State
	docR    docRenderer
	chatR   chatRenderer

	storeCh     chan struct{}
	unsubscribe func()
	watcher     *document.Watcher
	changes     <-chan string

	refs        []citationRef
	selected    int
	followChat  bool
	scrollNonce uint64

	infoMessage  string
	errorMessage string
	helpVisible  bool
}

func (m *model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textinput.Blink,
		m.spinner.Tick,
		m.jobs.Start(jobKindLoad, loadDocumentJob(m.cfg.Load)),
	}
	if m.storeCh != nil {
		cmds = append(cmds, waitForStore(m.storeCh))
	}
	if m.cfg.WatchPath != "" {
		if cmd := m.startWatch(); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return tea.Batch(cmds...)
}

func (m *model) startWatch() tea.Cmd {
	w, err := document.NewWatcher(0)
	if err != nil {
		log.Printf("[watch] %v", err)
		return nil
	}
	ch, err := w.Watch(m.ctx, m.cfg.WatchPath)
	if err != nil {
		log.Printf("[watch] %v", err)
		_ = w.Stop()
		return nil
	}
	m.watcher = w
	m.changes = ch
	return waitForChange(ch)
}

func (m *model) shutdown() {
	if m.cfg.Session != nil {
		m.cfg.Session.StopStreaming()
	}
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	if m.watcher != nil {
		_ = m.watcher.Stop()
		m.watcher = nil
	}
	m.cancel()
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout.Update(msg.Width, msg.Height)
		m.applyLayout()
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.streaming() {
			m.refreshChat()
		}
		return m, cmd
	case jobSignalMsg:
		m.running.apply(msg.Snapshot)
		return m, nil
	case jobResultEnvelope:
		m.running.apply(msg.Snapshot)
		if msg.Payload == nil {
			return m, nil
		}
		return m.Update(msg.Payload)
	case docLoadedMsg:
		return m, m.handleLoaded(msg)
	case indexedMsg:
		if !msg.ok || msg.gen != m.index.Generation() {
			return m, nil
		}
		if m.search.Query() != "" {
			m.search.Refresh()
			m.renderDoc()
		}
		return m, nil
	case docChangedMsg:
		m.infoMessage = "Document changed on disk. Reloading…"
		return m, tea.Batch(
			m.jobs.Start(jobKindLoad, loadDocumentJob(m.cfg.Load)),
			waitForChange(m.changes),
		)
	case storeChangedMsg:
		m.refreshChat()
		return m, waitForStore(m.storeCh)
	case streamResultMsg:
		m.handleStreamResult(msg)
		return m, nil
	case exportResultMsg:
		if msg.err != nil {
			m.errorMessage = fmt.Sprintf("export failed: %v", msg.err)
			return m, nil
		}
		m.errorMessage = ""
		m.infoMessage = "Exported transcript to " + msg.path
		return m, nil
	case searchDebounceMsg:
		if m.search.Apply(msg.ticket) {
			return m, m.jumpToSearchMatch()
		}
		return m, nil
	case scrollTickMsg:
		if msg.nonce != m.scrollNonce {
			return m, nil
		}
		if m.nav.Tick() {
			return m, m.scheduleScrollTick()
		}
		m.syncWindow()
		return m, nil
	case tea.MouseMsg:
		if m.doc == nil {
			return m, nil
		}
		var cmd tea.Cmd
		if m.layout.split && msg.X >= m.layout.docWidth+borderSize || !m.layout.split && msg.Y > m.layout.docHeight+borderSize+headerHeight {
			m.chatView, cmd = m.chatView.Update(msg)
			m.followChat = m.chatView.AtBottom()
			return m, cmd
		}
		m.docView, cmd = m.docView.Update(msg)
		m.syncWindow()
		return m, cmd
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *model) handleLoaded(msg docLoadedMsg) tea.Cmd {
	if msg.err != nil {
		if m.doc == nil {
			m.stage = stageFailed
		}
		m.errorMessage = fmt.Sprintf("load failed: %v", msg.err)
		m.infoMessage = ""
		return nil
	}
	doc := msg.doc
	if m.tracker.SetDocument(doc.ID, doc.Sizes()) {
		m.nav.Reset()
		m.search.Clear()
		m.searchInput.SetValue("")
		m.docView.SetYOffset(0)
	}
	m.doc = doc
	if m.stage == stageLoading || m.stage == stageFailed {
		m.stage = stageDisplay
	}
	m.errorMessage = ""
	m.infoMessage = fmt.Sprintf("Loaded %s (%d pages).", doc.Title, doc.PageCount())
	m.tracker.Observe(m.docView.YOffset, m.docView.Height)
	m.renderDoc()
	gen := m.index.BeginLoad(doc.ID)
	return m.jobs.Start(jobKindIndex, indexJob(m.index, gen, doc, m.cfg.TextStore))
}

func (m *model) handleStreamResult(msg streamResultMsg) {
	m.refreshChat()
	switch {
	case msg.err == nil:
		m.errorMessage = ""
		if last, ok := m.cfg.Session.Store().Last(); ok && last.CanContinue {
			m.infoMessage = "Answer cut short. Press c to continue."
		} else {
			m.infoMessage = ""
		}
	case errors.Is(msg.err, context.Canceled):
		m.infoMessage = "Stopped."
	case errors.Is(msg.err, conversation.ErrStreaming),
		errors.Is(msg.err, conversation.ErrEmptyMessage),
		errors.Is(msg.err, conversation.ErrNothingToRegenerate),
		errors.Is(msg.err, conversation.ErrNothingToContinue):
		m.errorMessage = msg.err.Error()
	default:
		// The session already placed the failure in the transcript.
		m.infoMessage = "The answer failed. See the transcript."
	}
}

func (m *model) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Type == tea.KeyCtrlC {
		m.shutdown()
		return m, tea.Quit
	}
	if m.stage == stageSearch {
		return m.handleSearchKey(key)
	}
	if m.helpVisible && key.String() != "?" {
		m.helpVisible = false
		if key.Type == tea.KeyEsc {
			return m, nil
		}
	}
	if key.Type == tea.KeyTab || key.Type == tea.KeyShiftTab {
		m.toggleFocus()
		return m, nil
	}
	if m.focus == focusComposer {
		return m.handleComposerKey(key)
	}
	return m.handleDocumentKey(key)
}

func (m *model) toggleFocus() {
	if m.focus == focusComposer || m.cfg.Session == nil {
		m.focus = focusDocument
		m.composer.Blur()
		return
	}
	m.focus = focusComposer
	m.composer.Focus()
}

func (m *model) handleComposerKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyEnter:
		return m, m.sendComposer()
	case tea.KeyEsc:
		if m.streaming() {
			m.cfg.Session.StopStreaming()
			return m, nil
		}
		if m.composer.Value() != "" {
			m.composer.SetValue("")
			return m, nil
		}
		m.toggleFocus()
		return m, nil
	case tea.KeyPgUp:
		m.chatView.ViewUp()
		m.followChat = m.chatView.AtBottom()
		return m, nil
	case tea.KeyPgDown:
		m.chatView.ViewDown()
		m.followChat = m.chatView.AtBottom()
		return m, nil
	}
	var cmd tea.Cmd
	m.composer, cmd = m.composer.Update(key)
	return m, cmd
}

func (m *model) sendComposer() tea.Cmd {
	if m.cfg.Session == nil {
		return nil
	}
	text := strings.TrimSpace(m.composer.Value())
	if text == "" {
		return nil
	}
	if m.streaming() {
		m.infoMessage = "Wait for the current answer, or press Esc to stop it."
		return nil
	}
	m.composer.SetValue("")
	m.followChat = true
	m.errorMessage = ""
	m.infoMessage = ""
	return m.jobs.Start(jobKindSend, sendMessageJob(m.cfg.Session, text))
}

func (m *model) handleDocumentKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "q":
		m.shutdown()
		return m, tea.Quit
	case "?":
		m.helpVisible = !m.helpVisible
		return m, nil
	case "i":
		if m.cfg.Session != nil {
			m.toggleFocus()
		}
		return m, nil
	case "esc":
		if m.streaming() {
			m.cfg.Session.StopStreaming()
			return m, nil
		}
		m.nav.ClearHighlight()
		m.selected = -1
		m.refreshChat()
		m.renderDoc()
		return m, nil
	}
	if m.doc == nil {
		return m, m.chatKey(key)
	}
	switch key.String() {
	case "j", "down":
		m.docView.LineDown(1)
	case "k", "up":
		m.docView.LineUp(1)
	case "pgdown", " ", "f":
		m.docView.ViewDown()
	case "pgup", "b":
		m.docView.ViewUp()
	case "ctrl+d":
		m.docView.HalfViewDown()
	case "ctrl+u":
		m.docView.HalfViewUp()
	case "g", "home":
		m.docView.GotoTop()
	case "G", "end":
		m.docView.GotoBottom()
	case "/":
		m.stage = stageSearch
		m.searchInput.SetValue(m.search.Query())
		m.searchInput.CursorEnd()
		m.searchInput.Focus()
		return m, textinput.Blink
	case "n":
		if _, ok := m.search.Next(); ok {
			return m, m.jumpToSearchMatch()
		}
		m.infoMessage = "No search matches."
		return m, nil
	case "N":
		if _, ok := m.search.Prev(); ok {
			return m, m.jumpToSearchMatch()
		}
		m.infoMessage = "No search matches."
		return m, nil
	case "]":
		return m, m.cycleCitation(1)
	case "[":
		return m, m.cycleCitation(-1)
	case "enter":
		if m.selected >= 0 && m.selected < len(m.refs) {
			return m, m.navigateToCitation(m.refs[m.selected])
		}
		return m, nil
	default:
		return m, m.chatKey(key)
	}
	m.syncWindow()
	return m, nil
}

// chatKey handles the actions that work on the conversation.
func (m *model) chatKey(key tea.KeyMsg) tea.Cmd {
	switch key.String() {
	case "r":
		if m.cfg.Session == nil || m.streaming() {
			return nil
		}
		m.followChat = true
		return m.jobs.Start(jobKindRegenerate, regenerateJob(m.cfg.Session))
	case "c":
		if m.cfg.Session == nil || m.streaming() {
			return nil
		}
		m.followChat = true
		return m.jobs.Start(jobKindContinue, continueJob(m.cfg.Session))
	case "e":
		return m.startExport()
	case "K":
		m.chatView.LineUp(3)
		m.followChat = false
	case "J":
		m.chatView.LineDown(3)
		m.followChat = m.chatView.AtBottom()
	}
	return nil
}

func (m *model) startExport() tea.Cmd {
	if m.cfg.Session == nil || m.cfg.Session.Store().Len() == 0 {
		m.infoMessage = "Nothing to export yet."
		return nil
	}
	if m.running.running(jobKindExport) {
		return nil
	}
	req := exportRequest{
		dir:       m.cfg.ExportDir,
		sessionID: m.cfg.SessionID,
		messages:  m.cfg.Session.Store().Messages(),
		now:       m.cfg.Now(),
		title:     "Document",
	}
	if m.doc != nil {
		req.documentID = m.doc.ID
		req.title = m.doc.Title
	}
	return m.jobs.Start(jobKindExport, exportJob(req))
}

func (m *model) handleSearchKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyEsc:
		m.search.Clear()
		m.searchInput.SetValue("")
		m.searchInput.Blur()
		m.stage = stageDisplay
		m.infoMessage = ""
		m.renderDoc()
		return m, nil
	case tea.KeyEnter:
		m.search.SetQuery(m.searchInput.Value())
		m.search.Flush()
		m.searchInput.Blur()
		m.stage = stageDisplay
		if m.search.Count() == 0 && m.search.Query() != "" {
			m.infoMessage = fmt.Sprintf("No matches for %q.", m.search.Query())
			m.renderDoc()
			return m, nil
		}
		return m, m.jumpToSearchMatch()
	}
	before := m.searchInput.Value()
	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(key)
	if m.searchInput.Value() == before {
		return m, cmd
	}
	ticket := m.search.SetQuery(m.searchInput.Value())
	debounce := tea.Tick(m.search.Debounce(), func(time.Time) tea.Msg {
		return searchDebounceMsg{ticket: ticket}
	})
	return m, tea.Batch(cmd, debounce)
}

func (m *model) jumpToSearchMatch() tea.Cmd {
	match, ok := m.search.Active()
	if !ok {
		m.renderDoc()
		return nil
	}
	m.infoMessage = ""
	m.nav.ScrollTo(match.Page)
	return m.navigate()
}

func (m *model) cycleCitation(delta int) tea.Cmd {
	if len(m.refs) == 0 {
		m.infoMessage = "No citations yet."
		return nil
	}
	n := len(m.refs)
	if m.selected < 0 {
		if delta > 0 {
			m.selected = 0
		} else {
			m.selected = n - 1
		}
	} else {
		m.selected = ((m.selected+delta)%n + n) % n
	}
	return m.navigateToCitation(m.refs[m.selected])
}

func (m *model) navigateToCitation(ref citationRef) tea.Cmd {
	m.nav.NavigateTo(ref.citation)
	m.refreshChat()
	if m.doc == nil {
		return nil
	}
	return m.navigate()
}

// navigate scrolls the document to the controller's target. The target page
// is mounted and laid out first so its anchor is known.
func (m *model) navigate() tea.Cmd {
	if m.doc == nil {
		return nil
	}
	m.nav.Prepare()
	m.renderDocAt(-1)
	target := m.nav.Resolve(m.docView.Height)
	m.docView.SetYOffset(target.Offset)
	m.nav.BeginProgrammaticScroll()
	m.syncWindow()
	m.scrollNonce = m.nav.Nonce()
	return m.scheduleScrollTick()
}

func (m *model) scheduleScrollTick() tea.Cmd {
	nonce := m.scrollNonce
	return tea.Tick(m.nav.ScrollWindow(), func(time.Time) tea.Msg {
		return scrollTickMsg{nonce: nonce}
	})
}

// syncWindow feeds the scroll position to the tracker and re-renders when
// the mounted window moved.
func (m *model) syncWindow() {
	if m.doc == nil {
		return
	}
	before := m.tracker.Window()
	m.tracker.Observe(m.docView.YOffset, m.docView.Height)
	if m.tracker.Window() != before {
		m.renderDoc()
	}
}

func (m *model) renderDoc() {
	m.renderDocAt(m.docView.YOffset)
}

// renderDocAt lays out the document. With a non-negative row the view stays
// on the same content even if pages above it changed height.
func (m *model) renderDocAt(row int) {
	if m.doc == nil {
		return
	}
	page, delta := 0, 0
	if row >= 0 {
		page = m.tracker.PageAt(row)
		delta = row - m.tracker.PageTop(page)
	}
	m.docView.SetContent(m.docR.Render(m.doc, m.highlights()))
	if page > 0 {
		m.docView.SetYOffset(m.tracker.PageTop(page) + delta)
	}
}

func (m *model) highlights() highlightState {
	var hs highlightState
	if c, ok := m.nav.Active(); ok {
		hs.active = c
		hs.hasActive = true
		hs.boxes = m.nav.Boxes()
	}
	hs.query = m.search.Query()
	if match, ok := m.search.Active(); ok {
		hs.searchPage = match.Page
		hs.searchRank = match.Index
	}
	return hs
}

func (m *model) refreshChat() {
	if m.cfg.Session == nil {
		return
	}
	store := m.cfg.Session.Store()
	messages := store.Messages()
	m.refs = citationRefs(messages)
	if m.selected >= len(m.refs) {
		m.selected = len(m.refs) - 1
	}
	m.chatView.SetContent(m.chatR.Render(messages, store.IsStreaming(), m.selected, m.spinner.View()))
	if m.followChat {
		m.chatView.GotoBottom()
	}
}

func (m *model) streaming() bool {
	return m.cfg.Session != nil && m.cfg.Session.Store().IsStreaming()
}

func (m *model) applyLayout() {
	l := m.layout
	m.docView.Width = l.docWidth
	m.docView.Height = l.docHeight
	m.chatView.Width = l.chatWidth
	m.chatView.Height = l.chatHeight
	m.docR.width = l.docWidth
	m.chatR.width = l.chatWidth
	m.composer.Width = l.windowWidth - 6
	m.searchInput.Width = l.windowWidth - 6
	m.tracker.SetScale(float64(l.docWidth-docGutterWidth) / 2)
	if m.doc != nil {
		m.tracker.Observe(m.docView.YOffset, m.docView.Height)
		m.renderDoc()
	}
	m.refreshChat()
}
