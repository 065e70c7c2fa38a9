package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/lox/redenvelope/internal/game"
)

// EventMsg carries a session event into the Bubble Tea loop.
type EventMsg struct {
	Event game.Event
}

// Model is the Bubble Tea model for one draw session. Card state is always
// read from the session; events only drive the log and re-renders.
type Model struct {
	session *game.Session
	logger  *log.Logger
	events  chan game.Event

	keys     keyMap
	help     help.Model
	viewport viewport.Model

	selected int // position under the cursor
	status   string
	gameLog  []string
	quitting bool

	width  int
	height int
}

// NewModel creates a model for session. The model subscribes to the
// session; call Close when done.
func NewModel(session *game.Session, logger *log.Logger) *Model {
	vp := viewport.New(40, 6)
	vp.SetContent("")

	m := &Model{
		session:  session,
		logger:   logger.WithPrefix("tui"),
		events:   make(chan game.Event, 256),
		keys:     defaultKeyMap(),
		help:     help.New(),
		viewport: vp,
		selected: session.Config().Leading(),
		status:   "Press space to draw the leading digit",
	}
	session.Subscribe(m)
	return m
}

// OnEvent queues a session event for the UI loop. It runs inside the
// session's serialized section, so it never blocks.
func (m *Model) OnEvent(event game.Event) {
	select {
	case m.events <- event:
	default:
		m.logger.Warn("Dropping event, UI is behind", "type", event.EventType())
	}
}

// Close detaches the model from its session.
func (m *Model) Close() {
	m.session.Unsubscribe(m)
}

// Init starts listening for session events.
func (m *Model) Init() tea.Cmd {
	return m.waitForEvent()
}

func (m *Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		return EventMsg{Event: <-m.events}
	}
}

// Update handles messages in the TUI
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case EventMsg:
		m.handleEvent(msg.Event)
		cmds = append(cmds, m.waitForEvent())

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Left):
			m.moveCursor(1)
		case key.Matches(msg, m.keys.Right):
			m.moveCursor(-1)
		case key.Matches(msg, m.keys.Draw):
			m.toggleDraw()
		case key.Matches(msg, m.keys.Flip):
			m.flip()
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, m.keys.ScrollUp):
			m.viewport.ScrollUp(1)
		case key.Matches(msg, m.keys.ScrollDown):
			m.viewport.ScrollDown(1)
		}
	}

	return m, tea.Batch(cmds...)
}

// moveCursor shifts the selection by delta places; positive is more
// significant.
func (m *Model) moveCursor(delta int) {
	next := m.selected + delta
	if next < 0 || next >= m.session.Config().DigitCount {
		return
	}
	m.selected = next
}

// toggleDraw starts a spin, or stops one on its current digit.
func (m *Model) toggleDraw() {
	p := m.selected
	name := game.PositionName(p)

	if m.cardState(p) == game.Spinning {
		if err := m.session.StopDraw(p); err != nil {
			m.fail(err)
			return
		}
		m.status = fmt.Sprintf("Drew %s for the %s, press enter to flip", m.cardValue(p), name)
		return
	}

	if err := m.session.StartDraw(p); err != nil {
		m.fail(err)
		return
	}
	m.status = fmt.Sprintf("Spinning the %s, press space to stop", name)
}

func (m *Model) flip() {
	p := m.selected
	if err := m.session.Flip(p); err != nil {
		m.fail(err)
		return
	}
	m.status = fmt.Sprintf("Locked the %s at %s", game.PositionName(p), m.cardValue(p))
	m.selectNextOpen()
}

// selectNextOpen moves the cursor to the most significant unlocked card.
func (m *Model) selectNextOpen() {
	for p := m.session.Config().Leading(); p >= 0; p-- {
		if m.cardState(p) != game.Locked {
			m.selected = p
			return
		}
	}
}

func (m *Model) fail(err error) {
	var exhausted *game.RangeExhaustedError
	switch {
	case errors.As(err, &exhausted):
		m.status = ErrorStyle.Render(fmt.Sprintf("No legal digit left for the %s", game.PositionName(exhausted.Position)))
	case errors.Is(err, game.ErrInfeasible):
		m.status = WarningStyle.Render("That digit no longer fits, draw again")
	case errors.Is(err, game.ErrNoValue):
		m.status = WarningStyle.Render("Draw this card before flipping it")
	case errors.Is(err, game.ErrInvalidTransition):
		m.status = WarningStyle.Render(err.Error())
	default:
		m.status = ErrorStyle.Render(err.Error())
	}
	if !game.IsUserCorrectable(err) {
		m.logger.Warn("Command failed", "position", m.selected, "error", err)
	}
}

func (m *Model) handleEvent(event game.Event) {
	switch e := event.(type) {
	case game.CardChangedEvent:
		if e.Card.State == game.Locked && e.Card.Value != nil {
			m.addLogEntry(fmt.Sprintf("%s locked at %d", e.Card.Label, *e.Card.Value))
		}
	case game.RangeExhaustedEvent:
		m.addLogEntry(ErrorStyle.Render(fmt.Sprintf("%s has no legal digit", game.PositionName(e.Position))))
	case game.ProgressEvent:
		m.addLogEntry(InfoStyle.Render(fmt.Sprintf("%d/%d cards locked", e.Locked, e.Count)))
	case game.FinalizedEvent:
		m.addLogEntry(SuccessStyle.Render(e.Result.ClaimMessage()))
		if mood := e.Result.Outcome.Mood(); mood != "" {
			m.addLogEntry(WarningStyle.Render(mood))
		}
		m.status = SuccessStyle.Render(fmt.Sprintf("All cards flipped, total %d", e.Result.Total))
	}
}

func (m *Model) addLogEntry(entry string) {
	m.gameLog = append(m.gameLog, entry)
	m.viewport.SetContent(strings.Join(m.gameLog, "\n"))
	m.viewport.GotoBottom()
}

// View renders the TUI
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	snap := m.session.Snapshot()

	var b strings.Builder
	b.WriteString(HeaderStyle.Render("Red Envelope Draw"))
	b.WriteString("  ")
	if snap.MaxPrice > 0 {
		b.WriteString(InfoStyle.Render(fmt.Sprintf("max %d", snap.MaxPrice)))
	} else {
		b.WriteString(InfoStyle.Render("no limit"))
	}
	b.WriteString("\n\n")

	cards := make([]string, 0, len(snap.Cards))
	for _, card := range snap.Cards {
		cards = append(cards, m.renderCard(card))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	b.WriteString("\n")

	b.WriteString(m.renderAllowed(snap))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Total so far: %d\n", snap.Total))
	if snap.Result != nil {
		b.WriteString(m.renderResult(*snap.Result))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.status)
	b.WriteString("\n")

	if len(m.gameLog) > 0 {
		if m.width > 4 {
			m.viewport.Width = m.width - 4
		}
		b.WriteString(logStyle.Render(m.viewport.View()))
		b.WriteString("\n")
	}

	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) renderCard(card game.CardView) string {
	value := "?"
	if card.Value != nil {
		value = strconv.Itoa(*card.Value)
	}

	var digit string
	switch card.State {
	case game.Locked:
		digit = LockedDigitStyle.Render(value)
	case game.Spinning:
		digit = SpinningDigitStyle.Render(value)
	default:
		digit = DigitStyle.Render(value)
	}

	style := cardStyle
	switch {
	case card.Position == m.selected:
		style = selectedCardStyle
	case card.State == game.Locked:
		style = lockedCardStyle
	}

	body := lipgloss.JoinVertical(lipgloss.Center,
		LabelStyle.Render(card.Label),
		digit,
		LabelStyle.Render(card.State.String()),
	)
	return style.Render(body)
}

func (m *Model) renderAllowed(snap game.Snapshot) string {
	for _, card := range snap.Cards {
		if card.Position != m.selected {
			continue
		}
		if card.State == game.Locked {
			return InfoStyle.Render(fmt.Sprintf("%s is locked", card.Label))
		}
		if len(card.Allowed) == 0 {
			return ErrorStyle.Render(fmt.Sprintf("%s: no legal digit", card.Label))
		}
		digits := make([]string, len(card.Allowed))
		for i, d := range card.Allowed {
			digits[i] = strconv.Itoa(d)
		}
		return InfoStyle.Render(fmt.Sprintf("%s may be %s", card.Label, strings.Join(digits, " ")))
	}
	return ""
}

func (m *Model) renderResult(res game.Result) string {
	line := SuccessStyle.Render(res.ClaimMessage())
	if mood := res.Outcome.Mood(); mood != "" {
		line += "  " + WarningStyle.Render(mood)
	}
	return line
}

// cardState reads the state of position p from a fresh snapshot.
func (m *Model) cardState(p int) game.CardState {
	for _, card := range m.session.Snapshot().Cards {
		if card.Position == p {
			return card.State
		}
	}
	return game.Idle
}

func (m *Model) cardValue(p int) string {
	for _, card := range m.session.Snapshot().Cards {
		if card.Position == p && card.Value != nil {
			return strconv.Itoa(*card.Value)
		}
	}
	return "?"
}

// Run plays session in the terminal until the player quits or ctx ends.
func Run(ctx context.Context, session *game.Session, logger *log.Logger, opts ...tea.ProgramOption) error {
	m := NewModel(session, logger)
	defer m.Close()

	opts = append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(m, opts...)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run terminal ui: %w", err)
	}
	return nil
}
