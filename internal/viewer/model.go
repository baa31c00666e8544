package viewer

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/logscope/internal/logentry"
	"github.com/Iron-Ham/logscope/internal/storage"
)

// DefaultLimit caps the entries kept on screen when no limit is given.
const DefaultLimit = 500

// snapshotMsg carries the initial Query result and the live subscription
// opened just before it.
type snapshotMsg[E any] struct {
	entries []E
	live    <-chan E
	err     error
}

// entryMsg delivers one live entry.
type entryMsg[E any] struct {
	entry E
}

// liveClosedMsg is sent when the Observe channel closes.
type liveClosedMsg struct{}

// clearedMsg reports the outcome of a Clear.
type clearedMsg struct {
	err error
}

// Model is a bubbletea model over one store. It shows the newest entries
// first and follows new ones as they arrive. Entries are never modified.
type Model[E any, F storage.Matcher[E]] struct {
	ctx    context.Context
	cancel context.CancelFunc

	store  storage.Store[E, F]
	filter F
	limit  int
	title  string
	render func(E) string
	id     func(E) string

	entries   []E
	pending   map[string]struct{}
	live      <-chan E
	following bool

	viewport   viewport.Model
	ready      bool
	confirming bool
	status     string
	err        error
}

// New creates a viewer over store. render formats one entry; id identifies
// entries so that live deliveries already present in the snapshot are shown
// once.
func New[E any, F storage.Matcher[E]](
	ctx context.Context,
	store storage.Store[E, F],
	filter F,
	limit int,
	title string,
	render func(E) string,
	id func(E) string,
) Model[E, F] {
	if limit <= 0 {
		limit = DefaultLimit
	}
	ctx, cancel := context.WithCancel(ctx)
	return Model[E, F]{
		ctx:      ctx,
		cancel:   cancel,
		store:    store,
		filter:   filter,
		limit:    limit,
		title:    title,
		render:   render,
		id:       id,
		viewport: viewport.New(80, 20),
	}
}

// NewLogViewer creates a viewer for application logs.
func NewLogViewer(ctx context.Context, store storage.LogStorage, filter logentry.LogFilter, limit int) Model[logentry.LogEntry, logentry.LogFilter] {
	return New(ctx, store, filter, limit, "logs", RenderLog, logentry.LogCodec{}.EntryID)
}

// NewNetworkViewer creates a viewer for HTTP exchanges.
func NewNetworkViewer(ctx context.Context, store storage.NetworkLogStorage, filter logentry.NetworkLogFilter, limit int) Model[logentry.NetworkLogEntry, logentry.NetworkLogFilter] {
	return New(ctx, store, filter, limit, "network", RenderNetwork, logentry.NetworkCodec{}.EntryID)
}

// Entries returns the entries on screen, newest first.
func (m Model[E, F]) Entries() []E {
	return m.entries
}

// Following reports whether the live subscription is open.
func (m Model[E, F]) Following() bool {
	return m.following
}

// Err returns the last store error shown to the user.
func (m Model[E, F]) Err() error {
	return m.err
}

// Init subscribes, then takes the snapshot.
func (m Model[E, F]) Init() tea.Cmd {
	return m.snapshot
}

func (m Model[E, F]) snapshot() tea.Msg {
	// Observe before Query so nothing added in between is missed; the
	// duplicates this allows are filtered with pending.
	live := m.store.Observe(m.ctx, m.filter)
	entries, err := m.store.Query(m.ctx, m.filter, m.limit)
	return snapshotMsg[E]{entries: entries, live: live, err: err}
}

func waitForEntry[E any](ch <-chan E) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return liveClosedMsg{}
		}
		return entryMsg[E]{entry: e}
	}
}

func (m Model[E, F]) clear() tea.Msg {
	return clearedMsg{err: m.store.Clear(m.ctx)}
}

// Update implements tea.Model.
func (m Model[E, F]) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-2, 1)
		m.ready = true
		m.refresh()
		return m, nil

	case snapshotMsg[E]:
		if msg.err != nil {
			m.err = msg.err
		}
		m.entries = msg.entries
		m.pending = make(map[string]struct{}, len(msg.entries))
		for _, e := range msg.entries {
			m.pending[m.id(e)] = struct{}{}
		}
		m.live = msg.live
		m.following = true
		m.refresh()
		return m, waitForEntry(m.live)

	case entryMsg[E]:
		id := m.id(msg.entry)
		if _, dup := m.pending[id]; dup {
			delete(m.pending, id)
		} else {
			m.prepend(msg.entry)
			m.refresh()
		}
		return m, waitForEntry(m.live)

	case liveClosedMsg:
		m.following = false
		m.refresh()
		return m, nil

	case clearedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = ""
		} else {
			m.entries = nil
			m.pending = nil
			m.status = "cleared"
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model[E, F]) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirming {
		m.confirming = false
		if msg.String() == "y" || msg.String() == "Y" {
			m.status = "clearing..."
			return m, m.clear
		}
		m.status = ""
		return m, nil
	}

	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.cancel()
		return m, tea.Quit
	case "c":
		m.confirming = true
		return m, nil
	case "g", "home":
		m.viewport.GotoTop()
		return m, nil
	case "G", "end":
		m.viewport.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model[E, F]) prepend(e E) {
	m.entries = append(m.entries, e)
	copy(m.entries[1:], m.entries[:len(m.entries)-1])
	m.entries[0] = e
	if len(m.entries) > m.limit {
		clear(m.entries[m.limit:])
		m.entries = m.entries[:m.limit]
	}
}

func (m *Model[E, F]) refresh() {
	lines := make([]string, len(m.entries))
	for i, e := range m.entries {
		lines[i] = m.render(e)
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
}

// View implements tea.Model.
func (m Model[E, F]) View() string {
	var b strings.Builder

	state := "paused"
	if m.following {
		state = "live"
	}
	b.WriteString(Title.Render("logscope " + m.title))
	b.WriteString(Muted.Render(fmt.Sprintf("  %d entries, %s", len(m.entries), state)))
	b.WriteByte('\n')

	if len(m.entries) == 0 {
		b.WriteString(Muted.Render("no entries"))
	} else {
		b.WriteString(m.viewport.View())
	}
	b.WriteByte('\n')

	switch {
	case m.confirming:
		b.WriteString(Prompt.Render("Clear all entries? (y/n)"))
	case m.err != nil:
		b.WriteString(ErrorText.Render("error: " + m.err.Error()))
	case m.status != "":
		b.WriteString(Muted.Render(m.status))
	default:
		b.WriteString(Help.Render("c clear  g/G top/bottom  q quit"))
	}
	return b.String()
}
