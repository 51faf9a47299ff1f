// Package render draws the client's view on a terminal.
package render

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"avalon/internal/app"
	"avalon/internal/domain"
)

// Theme is the terminal color palette, in ANSI 256-color codes
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color
	Header     lipgloss.Color
	Good       lipgloss.Color
	Evil       lipgloss.Color
	Current    lipgloss.Color
	Selected   lipgloss.Color
	God        lipgloss.Color
	Alert      lipgloss.Color
}

// DefaultTheme suits dark terminals
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("243"),
	Header:     lipgloss.Color("39"),
	Good:       lipgloss.Color("42"),
	Evil:       lipgloss.Color("196"),
	Current:    lipgloss.Color("220"),
	Selected:   lipgloss.Color("81"),
	God:        lipgloss.Color("177"),
	Alert:      lipgloss.Color("203"),
}

// Terminal renders views as text blocks and chat as scrolling lines. It
// implements app.Renderer. Identical consecutive views are printed once.
type Terminal struct {
	mu       sync.Mutex
	out      io.Writer
	theme    Theme
	renderer *lipgloss.Renderer
	last     string
}

// NewTerminal creates a renderer writing to out. Colors are only emitted
// when out is a color-capable terminal.
func NewTerminal(out io.Writer, theme Theme) *Terminal {
	return &Terminal{
		out:      out,
		theme:    theme,
		renderer: lipgloss.NewRenderer(out),
	}
}

func (t *Terminal) style(color lipgloss.Color) lipgloss.Style {
	return t.renderer.NewStyle().Foreground(color)
}

// Render prints the panels for view
func (t *Terminal) Render(view app.View) {
	block := t.panel(view)

	t.mu.Lock()
	defer t.mu.Unlock()
	if block == t.last {
		return
	}
	t.last = block
	fmt.Fprintln(t.out, block)
}

// Chat prints one chat line
func (t *Terminal) Chat(entry domain.ChatEntry) {
	line := t.chatLine(entry)

	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, line)
}

// Alert prints a failure notice
func (t *Terminal) Alert(message string) {
	line := t.style(t.theme.Alert).Bold(true).Render("! " + message)

	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, line)
}

func (t *Terminal) panel(view app.View) string {
	lines := []string{t.header(view)}
	if view.GameActive && view.Snapshot != nil {
		lines = append(lines, t.missionTrack(view.Missions))
	}

	switch view.Phase {
	case domain.PhaseSetup:
		lines = append(lines, t.setupPanel(view)...)
	case domain.PhaseTeamSelection:
		lines = append(lines, fmt.Sprintf("Pick %d for the mission:", view.RequiredSize))
		lines = append(lines, t.choices(view.Options, view.Selection)...)
		lines = append(lines, t.confirmLine(view))
	case domain.PhaseTeamVoting:
		lines = append(lines, "Proposed team: "+t.names(view.ProposedTeam), "Approve or reject.")
	case domain.PhaseMissionVoting:
		lines = append(lines, "On the mission: "+t.names(view.ProposedTeam), "Play success or fail.")
	case domain.PhaseAssassination:
		lines = append(lines, "Name Merlin:")
		lines = append(lines, t.choices(view.Options, view.Selection)...)
		lines = append(lines, t.confirmLine(view))
	case domain.PhaseResult:
		lines = append(lines, t.outcome(view.Outcome))
	}

	if view.ActingPlayer != "" {
		lines = append(lines, t.style(t.theme.FaintText).Render("Acting as "+view.ActingPlayer))
	}
	return strings.Join(lines, "\n")
}

func (t *Terminal) header(view app.View) string {
	title := t.style(t.theme.Header).Bold(true).Render(strings.ReplaceAll(view.Phase.String(), "_", " "))
	snap := view.Snapshot
	if !view.GameActive || snap == nil {
		return title
	}

	parts := []string{title, fmt.Sprintf("Mission %d", snap.CurrentMission)}
	if snap.CurrentLeader != "" {
		parts = append(parts, "Leader "+snap.CurrentLeader)
	}
	if snap.FailedTeamVotes > 0 {
		parts = append(parts, fmt.Sprintf("Rejected teams %d", snap.FailedTeamVotes))
	}
	return strings.Join(parts, "  ")
}

func (t *Terminal) missionTrack(slots []domain.MissionSlot) string {
	cells := make([]string, 0, len(slots))
	for _, slot := range slots {
		var cell string
		switch slot.State {
		case domain.MissionSuccess:
			cell = t.style(t.theme.Good).Render(fmt.Sprintf("[%d ✓ %d/%d]", slot.Mission, slot.SuccessCount, slot.FailCount))
		case domain.MissionFailed:
			cell = t.style(t.theme.Evil).Render(fmt.Sprintf("[%d ✗ %d/%d]", slot.Mission, slot.SuccessCount, slot.FailCount))
		case domain.MissionCurrent:
			cell = t.style(t.theme.Current).Bold(true).Render(fmt.Sprintf("[%d ●]", slot.Mission))
		default:
			cell = t.style(t.theme.FaintText).Render(fmt.Sprintf("[%d ·]", slot.Mission))
		}
		cells = append(cells, cell)
	}
	return "Missions " + strings.Join(cells, " ")
}

func (t *Terminal) setupPanel(view app.View) []string {
	lines := make([]string, 0, len(view.Roster)+2)
	lines = append(lines, fmt.Sprintf("Roster %d/%d:", len(view.Roster), domain.MaxPlayers))
	for i, p := range view.Roster {
		line := fmt.Sprintf("  %d. %s", i+1, p.Name)
		if p.IsAI {
			line += t.style(t.theme.FaintText).Render(fmt.Sprintf(" (AI, %s)", p.AIEngine))
		}
		lines = append(lines, line)
	}

	if view.CanStart {
		lines = append(lines, t.style(t.theme.Good).Render("Ready to start."))
	} else {
		lines = append(lines, t.style(t.theme.FaintText).Render(fmt.Sprintf("Need %d to %d players.", domain.MinPlayers, domain.MaxPlayers)))
	}
	return lines
}

func (t *Terminal) choices(options, selection []string) []string {
	selected := make(map[string]bool, len(selection))
	for _, name := range selection {
		selected[name] = true
	}

	lines := make([]string, 0, len(options))
	for _, name := range options {
		if selected[name] {
			lines = append(lines, t.style(t.theme.Selected).Bold(true).Render("  [x] "+name))
		} else {
			lines = append(lines, "  [ ] "+name)
		}
	}
	return lines
}

func (t *Terminal) confirmLine(view app.View) string {
	counter := fmt.Sprintf("%d/%d selected", len(view.Selection), view.RequiredSize)
	if view.CanConfirm {
		return t.style(t.theme.Good).Render(counter + ", ready to confirm.")
	}
	return t.style(t.theme.FaintText).Render(counter)
}

func (t *Terminal) outcome(o *domain.Outcome) string {
	if o == nil {
		return "Game over."
	}

	var text string
	var color lipgloss.Color
	switch o.Winner {
	case domain.SideGood:
		text, color = "Good wins", t.theme.Good
	case domain.SideEvil:
		text, color = "Evil wins", t.theme.Evil
	default:
		text, color = "Game over", t.theme.NormalText
	}
	if o.Reason != "" {
		text += ": " + o.Reason
	}
	return t.style(color).Bold(true).Render(text)
}

func (t *Terminal) names(names []string) string {
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}

func (t *Terminal) chatLine(entry domain.ChatEntry) string {
	stamp := t.style(t.theme.FaintText).Render(entry.Timestamp.Format("15:04:05"))

	var sender lipgloss.Style
	switch entry.Channel {
	case domain.ChannelGod:
		sender = t.style(t.theme.God).Bold(true)
	case domain.ChannelSystem:
		sender = t.style(t.theme.FaintText)
	default:
		sender = t.style(t.theme.NormalText).Bold(true)
	}

	name := entry.Sender
	if entry.IsAI {
		name += " (AI)"
	}
	return fmt.Sprintf("%s %s: %s", stamp, sender.Render(name), entry.Message)
}
