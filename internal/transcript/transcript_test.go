package transcript

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/csheth/docscout/internal/citation"
	"github.com/csheth/docscout/internal/conversation"
)

var exportTime = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

func sampleMessages() []conversation.Message {
	return []conversation.Message{
		{Role: conversation.RoleUser, Text: "What changed?"},
		{
			Role: conversation.RoleAssistant,
			Text: "Revenue grew. Costs fell.",
			Citations: []citation.Citation{
				{RefIndex: 9, Page: 4, Offset: 25, TextSnippet: "costs\n fell  sharply"},
				{RefIndex: 3, Page: 2, Offset: 13, TextSnippet: "revenue grew"},
			},
		},
		{Role: conversation.RoleAssistant, Text: ""},
	}
}

func TestWriteMarkdownFootnotes(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	if err := WriteMarkdown(&b, "Annual Report", sampleMessages(), exportTime); err != nil {
		t.Fatalf("WriteMarkdown: %v", err)
	}
	out := b.String()

	for _, want := range []string{
		"# Annual Report — Chat Export",
		"*Exported from DocScout on 2026-03-04*",
		"**You:**\n\nWhat changed?",
		"**DocScout:**\n\nRevenue grew.[^1] Costs fell.[^2]",
		"## References",
		`[^1]: Page 2 — "revenue grew"`,
		`[^2]: Page 4 — "costs fell sharply"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("export missing %q:\n%s", want, out)
		}
	}
}

func TestWriteMarkdownWithoutCitations(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	msgs := []conversation.Message{{Role: conversation.RoleUser, Text: "hi"}}
	if err := WriteMarkdown(&b, "", msgs, exportTime); err != nil {
		t.Fatalf("WriteMarkdown: %v", err)
	}
	if strings.Contains(b.String(), "References") {
		t.Fatalf("unexpected references section:\n%s", b.String())
	}
	if !strings.HasPrefix(b.String(), "# Document — Chat Export") {
		t.Fatalf("expected default title, got %q", b.String())
	}
}

func TestFilename(t *testing.T) {
	t.Parallel()

	if got := Filename("Q3 report.pdf", ".md"); got != "Q3_report_chat_export.md" {
		t.Fatalf("unexpected filename %q", got)
	}
	if got := Filename("", ".json"); got != "chat_chat_export.json" {
		t.Fatalf("unexpected filename %q", got)
	}
}

func TestSnapshotSaveReplacesPerDocument(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "exports", "transcripts.json")
	first := NewSnapshot("doc-1", "Report", "s-1", sampleMessages(), exportTime)
	if len(first.Messages) != 2 {
		t.Fatalf("expected empty assistant placeholder to be skipped, got %d", len(first.Messages))
	}
	if got := first.Messages[1].Citations[0].RefIndex; got != 2 {
		t.Fatalf("expected renumbered citations, got ref %d", got)
	}
	if err := Save(path, first); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if err := Save(path, NewSnapshot("doc-2", "Other", "s-1", nil, exportTime)); err != nil {
		t.Fatalf("save second: %v", err)
	}

	updated := NewSnapshot("doc-1", "Report", "s-1", sampleMessages()[:1], exportTime)
	if err := Save(path, updated); err != nil {
		t.Fatalf("save update: %v", err)
	}

	snaps, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected two snapshots, got %d", len(snaps))
	}
	got, ok, err := Find(path, "doc-1")
	if err != nil || !ok {
		t.Fatalf("find: ok=%v err=%v", ok, err)
	}
	if len(got.Messages) != 1 {
		t.Fatalf("expected replaced snapshot, got %d messages", len(got.Messages))
	}
}

func TestFindMissingFile(t *testing.T) {
	t.Parallel()

	_, ok, err := Find(filepath.Join(t.TempDir(), "none.json"), "doc")
	if err != nil || ok {
		t.Fatalf("expected clean miss, ok=%v err=%v", ok, err)
	}
}

func TestSnapshotConversationRoundTrip(t *testing.T) {
	snap := NewSnapshot("doc", "Report", "", sampleMessages(), exportTime)
	messages := snap.Conversation()
	if len(messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(messages))
	}
	if messages[1].Role != conversation.RoleAssistant || messages[1].IsError {
		t.Fatalf("unexpected answer %+v", messages[1])
	}
	var a, b strings.Builder
	if err := WriteMarkdown(&a, "Report", sampleMessages()[:2], exportTime); err != nil {
		t.Fatal(err)
	}
	if err := WriteMarkdown(&b, "Report", messages, exportTime); err != nil {
		t.Fatal(err)
	}
	if a.String() != b.String() {
		t.Fatalf("re-export differs:\n%s\n---\n%s", a.String(), b.String())
	}
}
