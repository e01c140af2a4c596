package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/powerroam/powerroam/internal/logging"
	"github.com/powerroam/powerroam/internal/protocol"
	"github.com/powerroam/powerroam/internal/ui"
)

// FlashlightFunc sends a flashlight mode request to the station.
type FlashlightFunc func(ctx context.Context, mode protocol.FlashlightMode) error

// Options configures the dashboard.
type Options struct {
	Source        string         // shown in the header, e.g. the device name
	Transport     string         // shown in the header
	SetFlashlight FlashlightFunc // nil disables the flashlight key
}

// Messages for the update feed
type updateMsg struct{ update protocol.Update }
type feedClosedMsg struct{}

type flashlightMsg struct {
	mode protocol.FlashlightMode
	err  error
}

// Model is the bubbletea model for the live dashboard.
type Model struct {
	ctx     context.Context
	opts    Options
	updates <-chan protocol.Update

	state      protocol.State
	count      int
	lastUpdate time.Time
	ended      bool
	notice     string

	spinner spinner.Model
	help    help.Model
	keys    keyMap

	width  int
	height int
	now    func() time.Time
}

// New creates a dashboard reading from updates until the channel closes.
func New(ctx context.Context, updates <-chan protocol.Update, opts Options) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = PendingStyle

	width, height := ui.GetTerminalSize()
	return Model{
		ctx:     ctx,
		opts:    opts,
		updates: updates,
		spinner: s,
		help:    help.New(),
		keys:    newKeyMap(opts.SetFlashlight != nil),
		width:   width,
		height:  height,
		now:     time.Now,
	}
}

// Run starts the dashboard program and blocks until it exits.
func Run(ctx context.Context, updates <-chan protocol.Update, opts Options) error {
	p := tea.NewProgram(New(ctx, updates, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// waitForUpdate blocks on the feed and turns the next update into a message.
func waitForUpdate(updates <-chan protocol.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return feedClosedMsg{}
		}
		return updateMsg{update: u}
	}
}

// Init starts the spinner and the first read from the feed.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForUpdate(m.updates))
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.Flashlight):
			return m, m.cycleFlashlight()
		}
		return m, nil

	case updateMsg:
		m.state.Apply(msg.update)
		m.count++
		m.lastUpdate = m.now()
		return m, waitForUpdate(m.updates)

	case feedClosedMsg:
		m.ended = true
		logging.Info("Update feed closed")
		return m, tea.Quit

	case flashlightMsg:
		if msg.err != nil {
			m.notice = fmt.Sprintf("Flashlight request failed: %v", msg.err)
		} else {
			m.notice = fmt.Sprintf("Flashlight set to %s", msg.mode)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// cycleFlashlight requests the mode after the last reported one. Off is
// followed by Low, SOS wraps to Off.
func (m Model) cycleFlashlight() tea.Cmd {
	if m.opts.SetFlashlight == nil {
		return nil
	}
	next := protocol.FlashlightLow
	if m.state.Flashlight != nil {
		next = protocol.FlashlightModes[(int(*m.state.Flashlight)+1)%len(protocol.FlashlightModes)]
	}
	set, ctx := m.opts.SetFlashlight, m.ctx
	return func() tea.Msg {
		return flashlightMsg{mode: next, err: set(ctx, next)}
	}
}

// State returns the values received so far.
func (m Model) State() protocol.State {
	return m.state
}

// Count returns the number of updates applied.
func (m Model) Count() int {
	return m.count
}

// Ended reports whether the feed has closed.
func (m Model) Ended() bool {
	return m.ended
}
