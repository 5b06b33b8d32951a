package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/roach88/turingloom/internal/machine"
)

// TapeView is the output form of one tape.
type TapeView struct {
	Name    string `json:"name"`
	Content string `json:"content"`
	Head    int    `json:"head"`
}

// MachineView is the output form of a machine configuration.
type MachineView struct {
	State     string     `json:"state"`
	Halted    bool       `json:"halted"`
	Steps     int        `json:"steps"`
	ErrorCode string     `json:"error_code,omitempty"`
	Tapes     []TapeView `json:"tapes"`
}

// StepView is the output form of one applied transition.
type StepView struct {
	Seq        int64  `json:"seq"`
	Rule       string `json:"rule"`
	RuleID     string `json:"rule_id"`
	From       string `json:"from"`
	To         string `json:"to"`
	Tape       int    `json:"tape"`
	HeadBefore int    `json:"head_before"`
	HeadAfter  int    `json:"head_after"`
	Written    string `json:"written"`
	Grew       bool   `json:"grew,omitempty"`
	Halted     bool   `json:"halted,omitempty"`
}

func newMachineView(snap machine.Snapshot, code machine.ErrorCode) MachineView {
	v := MachineView{
		State:     snap.State.Current,
		Halted:    snap.State.Halted,
		Steps:     snap.Steps,
		ErrorCode: string(code),
		Tapes:     make([]TapeView, len(snap.Tapes)),
	}
	for i, t := range snap.Tapes {
		v.Tapes[i] = TapeView{Name: t.Name, Content: t.String(), Head: t.Head}
	}
	return v
}

func newStepView(res machine.StepResult) StepView {
	name := res.Rule.Name
	if name == "" {
		name = res.Rule.ID
	}
	return StepView{
		Seq:        res.Seq,
		Rule:       name,
		RuleID:     res.Rule.ID,
		From:       res.FromState,
		To:         res.ToState,
		Tape:       res.TapeIndex,
		HeadBefore: res.HeadBefore,
		HeadAfter:  res.HeadAfter,
		Written:    res.Rule.WriteSymbol,
		Grew:       res.Grew,
		Halted:     res.Halted,
	}
}

func (s StepView) String() string {
	line := fmt.Sprintf("[%d] %s  %s -> %s  tape %d  head %d -> %d  wrote %q",
		s.Seq, s.Rule, s.From, s.To, s.Tape+1, s.HeadBefore, s.HeadAfter, s.Written)
	if s.Halted {
		line += "  (halt)"
	}
	return line
}

// Styles for the tape view.
type viewStyles struct {
	label lipgloss.Style
	cell  lipgloss.Style
	head  lipgloss.Style
	state lipgloss.Style
	err   lipgloss.Style
}

func newViewStyles(color bool) viewStyles {
	s := viewStyles{
		label: lipgloss.NewStyle().Width(8),
		cell:  lipgloss.NewStyle(),
		head:  lipgloss.NewStyle(),
		state: lipgloss.NewStyle(),
		err:   lipgloss.NewStyle(),
	}
	if color {
		s.label = s.label.Faint(true)
		s.head = s.head.Reverse(true).Bold(true)
		s.state = s.state.Bold(true).Foreground(lipgloss.Color("12"))
		s.err = s.err.Foreground(lipgloss.Color("9"))
	}
	return s
}

// renderCells draws the cells of a tape with the head cell in brackets.
func (s viewStyles) renderCells(t TapeView) string {
	var b strings.Builder
	i := 0
	for _, r := range t.Content {
		cell := string(r)
		if i == t.Head {
			b.WriteString(s.head.Render("[" + cell + "]"))
		} else {
			b.WriteString(s.cell.Render(cell))
		}
		i++
	}
	return b.String()
}

// RenderMachine draws every tape followed by the state line.
func RenderMachine(v MachineView, color bool) string {
	s := newViewStyles(color)

	lines := make([]string, 0, len(v.Tapes)+1)
	for i, t := range v.Tapes {
		name := t.Name
		if name == "" {
			name = fmt.Sprintf("Tape %d", i+1)
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, s.label.Render(name), s.renderCells(t)))
	}

	status := "stopped"
	if v.Halted {
		status = "halted"
	}
	state := fmt.Sprintf("State: %s (%s)  Steps: %d", s.state.Render(v.State), status, v.Steps)
	if v.ErrorCode != "" {
		state += "  " + s.err.Render("Error: "+v.ErrorCode)
	}
	lines = append(lines, state)
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
