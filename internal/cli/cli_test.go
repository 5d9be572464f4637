package cli

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/csheth/docscout/internal/citation"
	"github.com/csheth/docscout/internal/conversation"
	"github.com/csheth/docscout/internal/transcript"
)

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("DOCSCOUT_TEXT_STORE", filepath.Join(t.TempDir(), "text.db"))
	t.Setenv("DOCSCOUT_CACHE_DIR", t.TempDir())
	color.NoColor = true

	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func chatServer(t *testing.T, handler func(w http.ResponseWriter)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sessions/s1/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		handler(w)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestAskStreamsAnswerAndSources(t *testing.T) {
	server := chatServer(t, func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: token\ndata: {\"text\":\"Costs fell\"}\n\n")
		fmt.Fprint(w, "event: citation\ndata: {\"ref_index\":5,\"page\":3,\"offset\":10,\"text_snippet\":\"operating costs\\ndeclined\"}\n\n")
		fmt.Fprint(w, "event: token\ndata: {\"text\":\".\"}\n\n")
		fmt.Fprint(w, "event: done\ndata: {\"message_id\":\"m1\"}\n\n")
	})

	out, _, err := runCLI(t, "ask", "--api-base", server.URL, "--session", "s1", "what", "fell?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	for _, want := range []string{"Costs fell.", "Sources", "[1] p.3 operating costs declined"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestAskShowsNoticeOnPaywall(t *testing.T) {
	server := chatServer(t, func(w http.ResponseWriter) {
		w.WriteHeader(http.StatusPaymentRequired)
	})

	_, errOut, err := runCLI(t, "ask", "--api-base", server.URL, "--session", "s1", "hello")
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(errOut, conversation.PaywallText) {
		t.Fatalf("stderr missing notice:\n%s", errOut)
	}
}

func TestAskRequiresSession(t *testing.T) {
	t.Setenv("DOCSCOUT_SESSION_ID", "")
	_, _, err := runCLI(t, "ask", "hello")
	if err != errNoSession {
		t.Fatalf("err = %v, want errNoSession", err)
	}
}

func TestRootRequiresDocument(t *testing.T) {
	_, _, err := runCLI(t)
	if err == nil || !strings.Contains(err.Error(), "--document or --file") {
		t.Fatalf("err = %v", err)
	}
}

func TestSearchLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("Alpha Beta\fGamma beta\ndelta"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, "search", "--file", path, "beta")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, want := range []string{"2 matches for \"beta\"", "p.1", "Alpha Beta", "p.2", "Gamma beta delta"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}

	out, _, err = runCLI(t, "search", "--file", path, "omega")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !strings.Contains(out, "No matches") {
		t.Fatalf("expected no matches:\n%s", out)
	}
}

func TestExportWritesStoredTranscript(t *testing.T) {
	dir := t.TempDir()
	snapshot := filepath.Join(dir, "snapshots.json")
	messages := []conversation.Message{
		{Role: conversation.RoleUser, Text: "Why?"},
		{Role: conversation.RoleAssistant, Text: "Because.", Citations: []citation.Citation{{RefIndex: 2, Page: 4, Offset: 7, TextSnippet: "the reason"}}},
	}
	snap := transcript.NewSnapshot("doc-1", "Report", "s1", messages, time.Now())
	if err := transcript.Save(snapshot, snap); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, "export", "--document", "doc-1", "--snapshot", snapshot, "--out", dir)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	path := filepath.Join(dir, "Report_chat_export.md")
	if !strings.Contains(out, path) {
		t.Fatalf("output should name the file:\n%s", out)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Because[^1].") || !strings.Contains(string(data), `[^1]: Page 4 — "the reason"`) {
		t.Fatalf("unexpected export:\n%s", data)
	}

	if _, _, err := runCLI(t, "export", "--document", "missing", "--snapshot", snapshot); err == nil {
		t.Fatal("expected an error for an unknown document")
	}
}

func TestExcerpt(t *testing.T) {
	if got := excerpt("hello\nworld", 6, 11); got != "hello world" {
		t.Fatalf("excerpt = %q", got)
	}
	long := strings.Repeat("a", 60) + "needle" + strings.Repeat("b", 60)
	got := excerpt(long, 60, 66)
	if !strings.HasPrefix(got, "…") || !strings.HasSuffix(got, "…") || !strings.Contains(got, "needle") {
		t.Fatalf("excerpt = %q", got)
	}
}
