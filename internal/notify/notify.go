// Package notify delivers short user-facing notifications.
//
// The engine never prints. Sessions report what happened through a
// Notifier, and the caller decides whether that becomes a log line, a
// styled terminal message or a recorded entry in a test.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Kind is the severity of a notification.
type Kind string

const (
	Info    Kind = "info"
	Success Kind = "success"
	Error   Kind = "error"
)

// Notifier receives notifications.
type Notifier interface {
	Report(kind Kind, message string)
}

// Func adapts a function to Notifier.
type Func func(kind Kind, message string)

func (f Func) Report(kind Kind, message string) { f(kind, message) }

// Discard drops every notification.
var Discard Notifier = Func(func(Kind, string) {})

// SlogNotifier writes notifications as structured log records.
// Errors are logged at warn level; they are user mistakes, not faults.
type SlogNotifier struct {
	Logger *slog.Logger
}

// NewSlogNotifier creates a notifier logging to l (slog.Default() if nil).
func NewSlogNotifier(l *slog.Logger) SlogNotifier {
	if l == nil {
		l = slog.Default()
	}
	return SlogNotifier{Logger: l}
}

func (n SlogNotifier) Report(kind Kind, message string) {
	level := slog.LevelInfo
	if kind == Error {
		level = slog.LevelWarn
	}
	n.Logger.Log(context.Background(), level, message, "kind", string(kind))
}

// Note is one recorded notification.
type Note struct {
	Kind    Kind
	Message string
}

// Recorder keeps every notification in memory.
//
// Thread-safety: safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	notes []Note
}

func (r *Recorder) Report(kind Kind, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, Note{Kind: kind, Message: message})
}

// Notes returns a copy of everything reported so far.
func (r *Recorder) Notes() []Note {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Note(nil), r.notes...)
}

// Last returns the most recent note, or false if there is none.
func (r *Recorder) Last() (Note, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notes) == 0 {
		return Note{}, false
	}
	return r.notes[len(r.notes)-1], true
}

// Reset forgets all notes.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = nil
}

// WriterNotifier prints one styled line per notification.
//
// Thread-safety: safe for concurrent use; lines are never interleaved.
type WriterNotifier struct {
	mu     sync.Mutex
	w      io.Writer
	styles map[Kind]lipgloss.Style
}

// NewWriterNotifier creates a notifier printing to w. With color false
// the lines are plain text.
func NewWriterNotifier(w io.Writer, color bool) *WriterNotifier {
	styles := map[Kind]lipgloss.Style{
		Info:    lipgloss.NewStyle(),
		Success: lipgloss.NewStyle(),
		Error:   lipgloss.NewStyle(),
	}
	if color {
		styles[Info] = styles[Info].Foreground(lipgloss.Color("12"))
		styles[Success] = styles[Success].Foreground(lipgloss.Color("10"))
		styles[Error] = styles[Error].Bold(true).Foreground(lipgloss.Color("9"))
	}
	return &WriterNotifier{w: w, styles: styles}
}

var icons = map[Kind]string{
	Info:    "i",
	Success: "✓",
	Error:   "✗",
}

func (n *WriterNotifier) Report(kind Kind, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	style, ok := n.styles[kind]
	if !ok {
		style = n.styles[Info]
	}
	fmt.Fprintln(n.w, style.Render(icons[kind]+" "+message))
}
