package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/docscout/internal/api"
	"github.com/csheth/docscout/internal/citation"
	"github.com/csheth/docscout/internal/conversation"
	"github.com/csheth/docscout/internal/document"
	"github.com/csheth/docscout/internal/stream"
)

type fakeStreamer struct {
	events []stream.Event
	err    error
}

func (f *fakeStreamer) Chat(_ context.Context, _ api.ChatRequest, h stream.Handler) error {
	for _, e := range f.events {
		h.HandleEvent(e)
	}
	return f.err
}

func (f *fakeStreamer) Continue(ctx context.Context, _ api.ContinueRequest, h stream.Handler) error {
	return f.Chat(ctx, api.ChatRequest{}, h)
}

func fixtureDocument(t *testing.T) *document.Document {
	t.Helper()
	doc, err := document.ParseText("alpha one\fbeta gamma delta\fthird page")
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	doc.ID = "doc-1"
	return doc
}

func newTestModel(t *testing.T, s conversation.Streamer) *model {
	t.Helper()
	var session *conversation.Session
	if s != nil {
		session = conversation.NewSession(conversation.NewStore(), s, conversation.Options{
			Now: func() time.Time { return time.Unix(0, 0) },
		})
	}
	m := New(Config{
		Session:      session,
		ScrollWindow: time.Millisecond,
		ExportDir:    t.TempDir(),
	}).(*model)
	t.Cleanup(m.shutdown)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return m
}

func loadFixture(t *testing.T, m *model) *document.Document {
	t.Helper()
	doc := fixtureDocument(t)
	if _, cmd := m.Update(docLoadedMsg{doc: doc}); cmd == nil {
		t.Fatal("expected an index job after load")
	}
	m.index.Complete(m.index.Generation(), doc.PageTexts())
	return doc
}

func TestDocumentLoadRendersPages(t *testing.T) {
	m := newTestModel(t, nil)
	doc := loadFixture(t, m)

	if m.stage != stageDisplay {
		t.Fatalf("stage = %v, want display", m.stage)
	}
	content := m.docView.View()
	if !strings.Contains(content, "page 1/3") || !strings.Contains(content, "alpha one") {
		t.Fatalf("document pane missing first page:\n%s", content)
	}
	if header := m.headerView(); !strings.Contains(header, "/3") || !strings.Contains(header, doc.Title) {
		t.Fatalf("header should show the title and page indicator: %q", header)
	}
}

func TestDocumentLoadFailure(t *testing.T) {
	m := newTestModel(t, nil)
	m.Update(docLoadedMsg{err: errors.New("boom")})

	if m.stage != stageFailed {
		t.Fatalf("stage = %v, want failed", m.stage)
	}
	if !strings.Contains(m.View(), "load failed: boom") {
		t.Fatalf("view should show the load error:\n%s", m.View())
	}
}

func TestReloadFailureKeepsDocument(t *testing.T) {
	m := newTestModel(t, nil)
	loadFixture(t, m)
	m.Update(docLoadedMsg{err: errors.New("gone")})

	if m.stage != stageDisplay || m.doc == nil {
		t.Fatal("a failed reload should keep the current document")
	}
	if m.errorMessage == "" {
		t.Fatal("reload error not reported")
	}
}

func TestAnswerCitationNavigatesDocument(t *testing.T) {
	fake := &fakeStreamer{events: []stream.Event{
		{Kind: stream.KindToken, Text: "It rose"},
		{Kind: stream.KindCitation, Citation: citation.Citation{RefIndex: 4, Page: 2, Offset: 7, TextSnippet: "beta gamma"}},
		{Kind: stream.KindToken, Text: "."},
		{Kind: stream.KindDone},
	}}
	m := newTestModel(t, fake)
	loadFixture(t, m)

	m.composer.SetValue("what rose?")
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter}); cmd == nil {
		t.Fatal("enter should start a send job")
	}
	if m.composer.Value() != "" {
		t.Fatal("composer should clear after sending")
	}

	payload, err := sendMessageJob(m.cfg.Session, "what rose?")(context.Background())
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	m.Update(payload)

	chat := m.chatView.View()
	if !strings.Contains(chat, "It rose[1].") {
		t.Fatalf("chat should show the renumbered marker:\n%s", chat)
	}
	if len(m.refs) != 1 {
		t.Fatalf("refs = %d, want 1", len(m.refs))
	}

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if m.focus != focusDocument {
		t.Fatal("tab should focus the document")
	}
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("]")})
	if cmd == nil {
		t.Fatal("citation navigation should schedule the scroll tick")
	}
	active, ok := m.nav.Active()
	if !ok || active.Page != 2 || active.RefIndex != 1 {
		t.Fatalf("active citation = %+v (ok=%v)", active, ok)
	}
	if m.nav.Page() != 2 {
		t.Fatalf("page = %d, want 2", m.nav.Page())
	}
	if _, ok := m.tracker.Anchor(2, 1); !ok {
		t.Fatal("citation anchor not registered on page 2")
	}
	if !m.tracker.Programmatic() {
		t.Fatal("navigation should mark the scroll as programmatic")
	}

	time.Sleep(2 * time.Millisecond)
	m.Update(scrollTickMsg{nonce: m.scrollNonce})
	if m.tracker.Programmatic() {
		t.Fatal("scroll window should have ended")
	}

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if _, ok := m.nav.Active(); ok {
		t.Fatal("esc should clear the citation highlight")
	}
}

func TestSearchAppliesLatestTicket(t *testing.T) {
	m := newTestModel(t, nil)
	loadFixture(t, m)

	stale := m.search.SetQuery("alpha")
	latest := m.search.SetQuery("third")

	m.Update(searchDebounceMsg{ticket: stale})
	if m.search.Query() != "" {
		t.Fatalf("stale ticket applied query %q", m.search.Query())
	}
	_, cmd := m.Update(searchDebounceMsg{ticket: latest})
	if cmd == nil {
		t.Fatal("a match should navigate")
	}
	if m.search.Count() != 1 || m.nav.Page() != 3 {
		t.Fatalf("count=%d page=%d", m.search.Count(), m.nav.Page())
	}
}

func TestSearchInputFlowsThroughStage(t *testing.T) {
	m := newTestModel(t, nil)
	loadFixture(t, m)

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/")})
	if m.stage != stageSearch {
		t.Fatalf("stage = %v, want search", m.stage)
	}
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("gamma")}); cmd == nil {
		t.Fatal("typing should schedule a debounced scan")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.stage != stageDisplay {
		t.Fatal("enter should leave the search prompt")
	}
	if m.search.Query() != "gamma" || m.nav.Page() != 2 {
		t.Fatalf("query=%q page=%d", m.search.Query(), m.nav.Page())
	}

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/")})
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.search.Query() != "" || m.search.Count() != 0 {
		t.Fatal("esc should clear the search")
	}
}

func TestStreamResultSurfacesRejections(t *testing.T) {
	m := newTestModel(t, &fakeStreamer{})
	m.Update(streamResultMsg{kind: jobKindContinue, err: conversation.ErrNothingToContinue})
	if m.errorMessage != conversation.ErrNothingToContinue.Error() {
		t.Fatalf("error message = %q", m.errorMessage)
	}

	m.Update(streamResultMsg{kind: jobKindSend, err: context.Canceled})
	if m.infoMessage != "Stopped." {
		t.Fatalf("info message = %q", m.infoMessage)
	}
}

func TestJobEnvelopeTracksRunningJobs(t *testing.T) {
	m := newTestModel(t, nil)
	m.Update(jobSignalMsg{Snapshot: jobSnapshot{ID: "index-1", Kind: jobKindIndex, Status: jobStatusRunning}})
	if !m.running.running(jobKindIndex) {
		t.Fatal("running job not tracked")
	}
	if !strings.Contains(m.statusView(), "index…") {
		t.Fatalf("status bar missing badge: %q", m.statusView())
	}
	m.Update(jobResultEnvelope{Snapshot: jobSnapshot{ID: "index-1", Kind: jobKindIndex, Status: jobStatusSucceeded}})
	if m.running.running(jobKindIndex) {
		t.Fatal("finished job still tracked")
	}
}

func TestHelpToggle(t *testing.T) {
	m := newTestModel(t, nil)
	loadFixture(t, m)

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	if !strings.Contains(m.View(), "Navigation Cheatsheet") {
		t.Fatal("help should show the cheatsheet")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	if strings.Contains(m.View(), "Navigation Cheatsheet") {
		t.Fatal("second ? should hide the cheatsheet")
	}
}
