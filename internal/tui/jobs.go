package tui

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/docscout/internal/logging"
)

type jobKind string

type jobStatus string

const (
	jobKindLoad       jobKind = "load"
	jobKindIndex      jobKind = "index"
	jobKindSend       jobKind = "send"
	jobKindRegenerate jobKind = "regenerate"
	jobKindContinue   jobKind = "continue"
	jobKindExport     jobKind = "export"
)

const (
	jobStatusRunning   jobStatus = "running"
	jobStatusSucceeded jobStatus = "succeeded"
	jobStatusFailed    jobStatus = "failed"
)

// jobSnapshot is the state of one job as last reported to the model.
type jobSnapshot struct {
	ID       string
	Kind     jobKind
	Status   jobStatus
	Err      string
	Duration time.Duration
}

type jobSignalMsg struct {
	Snapshot jobSnapshot
}

// jobResultEnvelope carries a finished job's snapshot together with the
// message the job produced.
type jobResultEnvelope struct {
	Snapshot jobSnapshot
	Payload  tea.Msg
}

type jobRunner func(context.Context) (tea.Msg, error)

// jobBus runs work off the UI goroutine and reports start and finish as
// messages so the status bar can show what is in flight. Jobs share the
// bus context and stop with it.
type jobBus struct {
	ctx  context.Context
	next atomic.Uint64
}

func newJobBus(ctx context.Context) *jobBus {
	if ctx == nil {
		ctx = context.Background()
	}
	return &jobBus{ctx: ctx}
}

func (b *jobBus) Start(kind jobKind, runner jobRunner) tea.Cmd {
	id := fmt.Sprintf("%s-%d", kind, b.next.Add(1))
	started := time.Now()
	signal := func() tea.Msg {
		return jobSignalMsg{Snapshot: jobSnapshot{ID: id, Kind: kind, Status: jobStatusRunning}}
	}
	run := func() tea.Msg {
		payload, err := runner(b.ctx)
		snap := jobSnapshot{ID: id, Kind: kind, Status: jobStatusSucceeded, Duration: time.Since(started)}
		if err != nil {
			snap.Status = jobStatusFailed
			snap.Err = err.Error()
			logging.Warn("[jobs] %s failed after %s: %v", id, snap.Duration, err)
		} else {
			logging.Debug("[jobs] %s done in %s", id, snap.Duration)
		}
		return jobResultEnvelope{Snapshot: snap, Payload: payload}
	}
	return tea.Sequence(signal, run)
}

// jobTable tracks running jobs for the status bar.
type jobTable map[string]jobSnapshot

func (t jobTable) apply(s jobSnapshot) {
	if s.Status == jobStatusRunning {
		t[s.ID] = s
		return
	}
	delete(t, s.ID)
}

func (t jobTable) running(kind jobKind) bool {
	for _, s := range t {
		if s.Kind == kind {
			return true
		}
	}
	return false
}

func (t jobTable) badges() []string {
	counts := map[jobKind]int{}
	for _, s := range t {
		counts[s.Kind]++
	}
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		label := k + "…"
		if n := counts[jobKind(k)]; n > 1 {
			label = fmt.Sprintf("%s×%d…", k, n)
		}
		out = append(out, label)
	}
	return out
}
