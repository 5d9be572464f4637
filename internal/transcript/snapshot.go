package transcript

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/csheth/docscout/internal/citation"
	"github.com/csheth/docscout/internal/conversation"
)

// DefaultSnapshotFile is where exports keep their JSON snapshots, relative to
// the export directory.
const DefaultSnapshotFile = "docscout_transcripts.json"

// Snapshot captures one document's conversation.
type Snapshot struct {
	DocumentID    string    `json:"documentId"`
	DocumentTitle string    `json:"documentTitle"`
	SessionID     string    `json:"sessionId,omitempty"`
	CapturedAt    time.Time `json:"capturedAt"`
	Messages      []Entry   `json:"messages"`
}

// Entry is one exported message. Citations are renumbered for display.
type Entry struct {
	Role      string              `json:"role"`
	Text      string              `json:"text"`
	Notice    string              `json:"notice,omitempty"`
	Citations []citation.Citation `json:"citations,omitempty"`
	CreatedAt time.Time           `json:"createdAt"`
}

// NewSnapshot converts messages into a snapshot. Empty assistant
// placeholders are skipped.
func NewSnapshot(documentID, title, sessionID string, messages []conversation.Message, now time.Time) Snapshot {
	snap := Snapshot{
		DocumentID:    documentID,
		DocumentTitle: title,
		SessionID:     sessionID,
		CapturedAt:    now,
		Messages:      make([]Entry, 0, len(messages)),
	}
	for _, m := range messages {
		if m.Role == conversation.RoleAssistant && m.Text == "" && len(m.Citations) == 0 {
			continue
		}
		snap.Messages = append(snap.Messages, Entry{
			Role:      string(m.Role),
			Text:      m.Text,
			Notice:    string(m.Notice),
			Citations: citation.Renumber(m.Citations),
			CreatedAt: m.CreatedAt,
		})
	}
	return snap
}

// Save stores snap in the JSON array at path, replacing an earlier
// snapshot of the same document.
func Save(path string, snap Snapshot) error {
	if path == "" || snap.DocumentID == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	snaps, err := Load(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	replaced := false
	for i := range snaps {
		if snaps[i].DocumentID == snap.DocumentID {
			snaps[i] = snap
			replaced = true
			break
		}
	}
	if !replaced {
		snaps = append(snaps, snap)
	}
	data, err := json.MarshalIndent(snaps, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load returns every stored snapshot.
func Load(path string) ([]Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var snaps []Snapshot
	if err := json.Unmarshal(data, &snaps); err != nil {
		return nil, err
	}
	return snaps, nil
}

// Find returns the stored snapshot for documentID.
func Find(path, documentID string) (Snapshot, bool, error) {
	snaps, err := Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, err
	}
	for _, s := range snaps {
		if s.DocumentID == documentID {
			return s, true, nil
		}
	}
	return Snapshot{}, false, nil
}

// Conversation turns the snapshot back into messages, for re-exporting a
// stored transcript.
func (s Snapshot) Conversation() []conversation.Message {
	out := make([]conversation.Message, 0, len(s.Messages))
	for _, e := range s.Messages {
		m := conversation.Message{
			Role:      conversation.Role(e.Role),
			Text:      e.Text,
			Notice:    conversation.Notice(e.Notice),
			Citations: e.Citations,
			CreatedAt: e.CreatedAt,
		}
		m.IsError = m.Notice != conversation.NoticeNone
		out = append(out, m)
	}
	return out
}
