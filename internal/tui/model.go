// Package tui renders live run progress from the event bus. It is a
// pure consumer: the scheduler publishes state transitions and never
// knows whether anything is watching.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/parexec/parexec/internal/events"
)

// row is one task line in the progress view.
type row struct {
	id          string
	description string
	state       string
	duration    time.Duration
	err         error
}

// Model is the Bubble Tea model for the run progress view.
type Model struct {
	spin     spinner.Model
	eventSub <-chan events.Event
	rows     []*row
	index    map[string]*row
	progress events.RunProgressEvent
	done     bool
}

// New creates a progress model subscribed to all topics on the bus.
func New(bus *events.Bus) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		spin:     sp,
		eventSub: bus.SubscribeAll(256),
		index:    make(map[string]*row),
	}
}

// eventMsg wraps a bus event for the Bubble Tea update loop.
type eventMsg struct {
	event events.Event
}

// busClosedMsg signals that the run finished and the bus was closed.
type busClosedMsg struct{}

func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return busClosedMsg{}
		}
		return eventMsg{event: event}
	}
}

// Init starts the spinner and the event pump.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, waitForEvent(m.eventSub))
}

// Update handles events, key presses, and spinner ticks.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
		return m, nil

	case busClosedMsg:
		m.done = true
		return m, tea.Quit

	case eventMsg:
		m.apply(msg.event)
		return m, waitForEvent(m.eventSub)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

// apply folds one bus event into the view state.
func (m *Model) apply(event events.Event) {
	switch e := event.(type) {
	case events.TaskScheduledEvent:
		m.upsert(e.ID, e.Description).state = "scheduled"
	case events.TaskStartedEvent:
		m.upsert(e.ID, e.Description).state = "running"
	case events.TaskSucceededEvent:
		r := m.upsert(e.ID, "")
		r.state = "succeeded"
		r.duration = e.Duration
	case events.TaskFailedEvent:
		r := m.upsert(e.ID, "")
		r.state = "failed"
		r.duration = e.Duration
		r.err = e.Err
	case events.TaskSkippedEvent:
		r := m.upsert(e.ID, "")
		r.state = "skipped"
		r.err = e.Reason
	case events.RunProgressEvent:
		m.progress = e
	}
}

func (m *Model) upsert(id, description string) *row {
	if r, ok := m.index[id]; ok {
		if description != "" && r.description == "" {
			r.description = description
		}
		return r
	}
	r := &row{id: id, description: description}
	m.index[id] = r
	m.rows = append(m.rows, r)
	return r
}

// View renders one line per task plus a run-wide tally.
func (m Model) View() string {
	out := styleTitle.Render("parexec") + "\n\n"

	for _, r := range m.rows {
		label := r.description
		if label == "" {
			label = r.id
		}

		var line string
		switch r.state {
		case "running":
			line = fmt.Sprintf("%s %s", m.spin.View(), styleRunning.Render(label))
		case "succeeded":
			line = styleSucceeded.Render(fmt.Sprintf("✓ %s (%.1fs)", label, r.duration.Seconds()))
		case "failed":
			line = styleFailed.Render(fmt.Sprintf("✗ %s: %v", label, r.err))
		case "skipped":
			line = styleSkipped.Render(fmt.Sprintf("- %s (skipped: %v)", label, r.err))
		default:
			line = styleScheduled.Render("· " + label)
		}
		out += line + "\n"
	}

	p := m.progress
	if p.Total > 0 {
		out += styleSummary.Render(fmt.Sprintf(
			"batch %d/%d · %d succeeded · %d failed · %d skipped · %d total",
			p.Batch+1, p.Batches, p.Succeeded, p.Failed, p.Skipped, p.Total,
		)) + "\n"
	}

	return out
}
