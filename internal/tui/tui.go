// Package tui implements the interactive study view.
package tui

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"ankitui/internal/media"
	"ankitui/internal/study"
)

const notifyAfter = 4 * time.Second

// Options wires the study view to its collaborators.
type Options struct {
	Machine  *study.Machine
	Resolver *media.Resolver
	Player   media.Player
	Log      *zap.Logger
	AutoPlay bool
}

type model struct {
	machine  *study.Machine
	resolver *media.Resolver
	player   media.Player
	log      *zap.Logger
	autoPlay bool

	listViewport viewport.Model
	faceViewport viewport.Model
	ready        bool
	width        int
	height       int

	busy     bool
	busyWhat string
	spinner  *Spinner

	cursor     int // card-list cursor; follows the session index until moved
	face       *media.Result
	notifyText string
	notifyID   int
}

func initialModel(opts Options) model {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	player := opts.Player
	if player == nil {
		player = media.NopPlayer{}
	}
	return model{
		machine:  opts.Machine,
		resolver: opts.Resolver,
		player:   player,
		log:      log,
		autoPlay: opts.AutoPlay,
		spinner:  NewSpinner(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tea.EnterAltScreen, m.resolveFaceCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		leftWidth := msg.Width / 3
		rightWidth := msg.Width - leftWidth - 1
		viewHeight := msg.Height - 4
		if !m.ready {
			m.listViewport = viewport.New(leftWidth, viewHeight)
			m.faceViewport = viewport.New(rightWidth, viewHeight)
			m.ready = true
		} else {
			m.listViewport.Width = leftWidth
			m.listViewport.Height = viewHeight
			m.faceViewport.Width = rightWidth
			m.faceViewport.Height = viewHeight
		}
		m.updateViewports()

	case tea.KeyMsg:
		newModel, cmd, handled := m.handleKey(msg)
		if handled {
			return newModel, cmd
		}
		m = newModel

	case opDoneMsg:
		m.busy = false
		m.busyWhat = ""
		if msg.Err != nil {
			return m.notify(operationError(msg.Op, msg.Err))
		}
		if session := m.machine.Session(); session != nil {
			m.cursor = session.Index
		}
		m.updateViewports()
		cmds = append(cmds, m.resolveFaceCmd())

	case faceResolvedMsg:
		// A pass that was overtaken by a newer one must not commit.
		if msg.Result == nil || msg.Result.Generation != m.resolver.Current() {
			break
		}
		m.face = msg.Result
		m.updateViewports()
		if msg.Result.AutoPlay && len(msg.Result.Playables) > 0 {
			cmds = append(cmds, m.playCmd(msg.Result.Playables))
		}

	case playbackDoneMsg:
		// Nothing to update; playback runs fire-and-forget.

	case notifyExpiredMsg:
		if msg.ID == m.notifyID {
			m.notifyText = ""
		}

	case spinnerTickMsg:
		if m.busy {
			m.spinner.Next()
			cmds = append(cmds, spinnerTick())
		}
	}

	var listCmd, faceCmd tea.Cmd
	m.listViewport, listCmd = m.listViewport.Update(msg)
	m.faceViewport, faceCmd = m.faceViewport.Update(msg)
	cmds = append(cmds, listCmd, faceCmd)

	return m, tea.Batch(cmds...)
}

// handleKey processes one key press. handled=true short-circuits the rest of
// Update (quit paths).
func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd, bool) {
	session := m.machine.Session()
	key := msg.String()

	switch key {
	case "ctrl+c", "q", "esc":
		m.machine.EndSession()
		return m, tea.Quit, true
	}

	if session == nil {
		return m, nil, false
	}

	// Grading accelerators: only while the answer face is shown and no
	// operation is in flight. The digits are consumed either way so they
	// never fall through to other handlers.
	if ease, ok := easeForKey(key); ok {
		if session.ShowAnswer && !m.busy && session.Current != nil {
			return m.startOp("answer", func(ctx context.Context) error {
				return m.machine.AnswerCard(ctx, ease)
			})
		}
		return m, nil, true
	}

	switch key {
	case " ":
		if session.Current != nil && !session.ShowAnswer {
			m.machine.RevealAnswer()
			m.updateViewports()
			newModel := m
			return newModel, newModel.resolveFaceCmd(), true
		}

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			m.updateViewports()
		}

	case "down", "j":
		if m.cursor < len(session.Queue)-1 {
			m.cursor++
			m.updateViewports()
		}

	case "enter":
		if m.busy {
			return m, nil, true
		}
		if m.cursor == session.Index {
			if session.Current != nil && !session.ShowAnswer {
				m.machine.RevealAnswer()
				m.updateViewports()
				newModel := m
				return newModel, newModel.resolveFaceCmd(), true
			}
			return m, nil, true
		}
		index := m.cursor
		return m.startOp("jump", func(ctx context.Context) error {
			return m.machine.JumpToCard(ctx, index)
		})

	case "f":
		if m.busy || session.Current == nil {
			return m, nil, true
		}
		next := (session.Current.Flags + 1) % 5
		return m.startOp("flag", func(ctx context.Context) error {
			return m.machine.ToggleFlag(ctx, next)
		})

	case "s":
		if m.busy || session.Current == nil {
			return m, nil, true
		}
		return m.startOp("suspend", func(ctx context.Context) error {
			return m.machine.SuspendCard(ctx)
		})

	case "b":
		if m.busy || session.Current == nil {
			return m, nil, true
		}
		return m.startOp("bury", func(ctx context.Context) error {
			return m.machine.BuryCard(ctx)
		})
	}

	return m, nil, false
}

// easeForKey maps accelerator keys to grades: plain or modified digits 1-4.
func easeForKey(key string) (int, bool) {
	digit := key
	if strings.HasPrefix(key, "alt+") {
		digit = strings.TrimPrefix(key, "alt+")
	}
	switch digit {
	case "1", "2", "3", "4":
		return int(digit[0] - '0'), true
	}
	return 0, false
}

// startOp launches a mutating session operation with the busy indicator set.
func (m model) startOp(op string, fn func(context.Context) error) (model, tea.Cmd, bool) {
	m.busy = true
	m.busyWhat = op
	cmd := func() tea.Msg {
		return opDoneMsg{Op: op, Err: fn(context.Background())}
	}
	return m, tea.Batch(cmd, spinnerTick()), true
}

// resolveFaceCmd resolves the media references of the currently shown face.
func (m model) resolveFaceCmd() tea.Cmd {
	session := m.machine.Session()
	if session == nil || session.Current == nil {
		return nil
	}
	card := *session.Current
	html := card.Question
	autoPlay := m.autoPlay
	if session.ShowAnswer {
		html = card.Answer
	}
	resolver := m.resolver
	return func() tea.Msg {
		result := resolver.Resolve(context.Background(), media.Input{
			HTML:     html,
			CSS:      card.CSS,
			AutoPlay: autoPlay,
			Card:     &card,
		})
		return faceResolvedMsg{Result: result}
	}
}

// playCmd drains the sequential playback queue in the background.
func (m model) playCmd(playables []media.Playable) tea.Cmd {
	player := m.player
	log := m.log
	return func() tea.Msg {
		media.PlayAll(context.Background(), player, playables, log)
		return playbackDoneMsg{}
	}
}

// notify shows a transient, auto-expiring notification.
func (m model) notify(text string) (model, tea.Cmd) {
	m.notifyID++
	m.notifyText = text
	id := m.notifyID
	return m, tea.Tick(notifyAfter, func(time.Time) tea.Msg {
		return notifyExpiredMsg{ID: id}
	})
}

// operationError renders a session operation failure for display.
func operationError(op string, err error) string {
	if errors.Is(err, study.ErrBusy) {
		return "Another operation is still running"
	}
	return fmt.Sprintf("%s failed: %v", op, err)
}

func spinnerTick() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(time.Time) tea.Msg {
		return spinnerTickMsg{}
	})
}

func (m *model) updateViewports() {
	if !m.ready {
		return
	}
	m.listViewport.SetContent(m.renderCardList())
	m.faceViewport.SetContent(m.renderFace())
}

func (m model) renderCardList() string {
	session := m.machine.Session()
	if session == nil {
		return ""
	}
	var s strings.Builder
	for i, entry := range session.CardList {
		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}
		mark := " "
		if _, answered := session.Answered[entry.CardID]; answered {
			mark = "✓"
		}
		style := lipgloss.NewStyle()
		switch {
		case i == session.Index:
			style = style.Foreground(lipgloss.Color("212")).Bold(true)
		case i == m.cursor:
			style = style.Foreground(lipgloss.Color("252"))
		default:
			style = style.Foreground(lipgloss.Color("245"))
		}
		preview := entry.Preview
		maxLen := m.listViewport.Width - 6
		if maxLen > 0 && len(preview) > maxLen {
			preview = preview[:maxLen] + "…"
		}
		s.WriteString(style.Render(fmt.Sprintf("%s%s %s", cursor, mark, preview)) + "\n")
	}
	return s.String()
}

var (
	replayAnchorRe = regexp.MustCompile(`<a class="replay-button"[^>]*>[^<]*</a>`)
	audioElemRe    = regexp.MustCompile(`(?i)<audio\b[^>]*>(?:</audio>)?`)
)

func (m model) renderFace() string {
	session := m.machine.Session()
	if session == nil {
		return ""
	}
	if session.Current == nil {
		return m.renderSummary(session)
	}

	var s strings.Builder
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229"))
	if session.ShowAnswer {
		s.WriteString(headerStyle.Render("Answer") + "\n")
	} else {
		s.WriteString(headerStyle.Render("Question") + "\n")
	}
	s.WriteString(strings.Repeat("─", maxInt(10, m.faceViewport.Width-2)) + "\n\n")

	html := ""
	if m.face != nil {
		html = m.face.HTML
	}
	if html == "" {
		if session.ShowAnswer {
			html = session.Current.Answer
		} else {
			html = session.Current.Question
		}
	}
	text := study.StripMarkup(audioElemRe.ReplaceAllString(replayAnchorRe.ReplaceAllString(html, ""), ""))
	s.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Render(text) + "\n")

	if m.face != nil && len(m.face.Playables) > 0 {
		s.WriteString("\n")
		audioStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("114"))
		for _, p := range m.face.Playables {
			s.WriteString(audioStyle.Render(fmt.Sprintf("[▶ %s]", p.Filename)) + "\n")
		}
	}

	if flag := session.Current.Flags; flag != 0 {
		s.WriteString("\n" + flagLabel(flag) + "\n")
	}
	return s.String()
}

func (m model) renderSummary(session *study.Session) string {
	stats := session.Stats
	var s strings.Builder
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229"))
	s.WriteString(headerStyle.Render("Session complete") + "\n\n")
	s.WriteString(fmt.Sprintf("Studied: %d/%d\n\n", stats.Studied, stats.Total))
	s.WriteString(fmt.Sprintf("  Again: %d\n", stats.Again))
	s.WriteString(fmt.Sprintf("  Hard:  %d\n", stats.Hard))
	s.WriteString(fmt.Sprintf("  Good:  %d\n", stats.Good))
	s.WriteString(fmt.Sprintf("  Easy:  %d\n", stats.Easy))
	s.WriteString("\nPress q to exit")
	return s.String()
}

var flagColors = map[int]string{
	1: "196", // red
	2: "208", // orange
	3: "40",  // green
	4: "33",  // blue
}

func flagLabel(flag int) string {
	color, ok := flagColors[flag]
	if !ok {
		return ""
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render("⚑ flagged")
}

func (m model) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	header := m.renderHeader()
	footer := m.renderFooter()
	body := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.listViewport.View(),
		lipgloss.NewStyle().Foreground(lipgloss.Color("238")).Render(verticalDivider(m.listViewport.Height)),
		m.faceViewport.View(),
	)

	status := ""
	switch {
	case m.busy:
		status = busyLine(m.spinner, m.busyWhat+"…")
	case m.notifyText != "":
		status = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Render(m.notifyText)
	}

	return fmt.Sprintf("%s\n%s\n%s\n%s", header, body, status, footer)
}

func (m model) renderHeader() string {
	session := m.machine.Session()
	title := "ankitui"
	if session != nil {
		title = fmt.Sprintf("ankitui · %s   %d/%d studied", session.Query, session.Stats.Studied, session.Stats.Total)
	}
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("63")).
		Render(title)
}

func (m model) renderFooter() string {
	session := m.machine.Session()
	info := "q: quit"
	if session != nil && session.Current != nil {
		if session.ShowAnswer {
			info = "1-4: grade • f: flag • s: suspend • b: bury • ↑/↓+enter: jump • q: quit"
		} else {
			info = "space: show answer • f: flag • s: suspend • b: bury • ↑/↓+enter: jump • q: quit"
		}
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render(info)
}

func verticalDivider(height int) string {
	var s strings.Builder
	for i := 0; i < height; i++ {
		s.WriteString("│")
		if i < height-1 {
			s.WriteString("\n")
		}
	}
	return s.String()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// ShowStudy runs the study view until the user ends the session.
func ShowStudy(opts Options) error {
	p := tea.NewProgram(
		initialModel(opts),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}
