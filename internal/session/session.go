// Package session is the interactive surface over one machine.
//
// A Session combines a machine, its runner, a notifier and the language
// preference. Every operation a user can trigger goes through here: the
// session calls the engine, then reports the outcome as a localized
// notification. Rejected operations both return the error and report it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/roach88/turingloom/internal/document"
	"github.com/roach88/turingloom/internal/machine"
	"github.com/roach88/turingloom/internal/notify"
	"github.com/roach88/turingloom/internal/prefs"
	"github.com/roach88/turingloom/internal/runner"
)

// MaxInitialContent is the longest initial content the editor accepts,
// counted in characters.
const MaxInitialContent = 50

// ErrNothingToExport is returned by Export when the machine has no rules.
var ErrNothingToExport = errors.New("no rules to export")

// Session is a machine plus everything needed to drive it interactively.
//
// Thread-safety: all methods are safe for concurrent use. Engine calls
// are serialized by the machine itself; the session lock only guards the
// language.
type Session struct {
	mu   sync.Mutex
	msgs notify.Messages

	m        *machine.Machine
	r        *runner.Runner
	notifier notify.Notifier
	prefs    prefs.Store
	now      func() time.Time
	logger   *slog.Logger

	hook       runner.StepHook
	runnerOpts []runner.Option
}

// Option configures a Session.
type Option func(*Session)

// WithMachine sets the machine (default: machine.New()).
func WithMachine(m *machine.Machine) Option {
	return func(s *Session) {
		s.m = m
	}
}

// WithNotifier sets where notifications go (default: notify.Discard).
func WithNotifier(n notify.Notifier) Option {
	return func(s *Session) {
		s.notifier = n
	}
}

// WithPreferences sets the preference store (default: an in-memory store).
func WithPreferences(p prefs.Store) Option {
	return func(s *Session) {
		s.prefs = p
	}
}

// WithNow sets the wall clock used for export filenames (default: time.Now).
func WithNow(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithStepHook registers a function called after every automatic step,
// after the session has reported its outcome.
func WithStepHook(h runner.StepHook) Option {
	return func(s *Session) {
		s.hook = h
	}
}

// WithRunnerOptions passes options through to the runner.
func WithRunnerOptions(opts ...runner.Option) Option {
	return func(s *Session) {
		s.runnerOpts = append(s.runnerOpts, opts...)
	}
}

// New creates a session. The interface language is loaded from the
// preference store; a store error is logged and the default language used.
func New(ctx context.Context, opts ...Option) *Session {
	s := &Session{
		notifier: notify.Discard,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.m == nil {
		s.m = machine.New(machine.WithLogger(s.logger))
	}
	if s.prefs == nil {
		s.prefs = prefs.NewMemoryStore()
	}

	lang, err := prefs.LoadLanguage(ctx, s.prefs)
	if err != nil {
		s.logger.Warn("using default language", "error", err)
	}
	s.msgs = notify.Catalog(lang)

	ropts := append([]runner.Option{
		runner.WithLogger(s.logger),
		runner.WithStepHook(s.afterAutoStep),
	}, s.runnerOpts...)
	s.r = runner.New(s.m, ropts...)
	return s
}

// Machine returns the underlying machine.
func (s *Session) Machine() *machine.Machine {
	return s.m
}

// Snapshot returns a copy of the machine's rules, tapes and state.
func (s *Session) Snapshot() machine.Snapshot {
	return s.m.Snapshot()
}

// Messages returns the catalog for the current language.
func (s *Session) Messages() notify.Messages {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.msgs
}

func (s *Session) report(kind notify.Kind, key string, args ...any) {
	s.notifier.Report(kind, s.Messages().Text(key, args...))
}

func (s *Session) reportError(err error) {
	s.notifier.Report(notify.Error, s.Messages().Error(err))
}

// AddRule appends a rule. A rule with an invalid write symbol is rejected.
func (s *Session) AddRule(r machine.Rule) (machine.Rule, error) {
	added, err := s.m.AddRule(r)
	if err != nil {
		s.reportError(err)
		return machine.Rule{}, err
	}
	return added, nil
}

// UpdateRule replaces the rule with the same id.
func (s *Session) UpdateRule(r machine.Rule) error {
	if err := s.m.UpdateRule(r); err != nil {
		s.reportError(err)
		return err
	}
	return nil
}

// RemoveRule deletes the rule with the given id.
func (s *Session) RemoveRule(id string) error {
	if err := s.m.RemoveRule(id); err != nil {
		s.reportError(err)
		return err
	}
	return nil
}

// AddTape appends a tape holding the initial content.
func (s *Session) AddTape() machine.Tape {
	t := s.m.AddTape()
	s.report(notify.Success, notify.KeyTapeAdded)
	return t
}

// DeleteTape removes a tape. The last tape cannot be deleted.
func (s *Session) DeleteTape(id string) error {
	if err := s.m.DeleteTape(id); err != nil {
		s.reportError(err)
		return err
	}
	s.report(notify.Success, notify.KeyTapeDeleted)
	return nil
}

// SetInitialContent stores content and rewrites every tape from it.
// Content longer than MaxInitialContent characters is rejected.
func (s *Session) SetInitialContent(content string) error {
	if err := checkContentLength(content); err != nil {
		s.reportError(err)
		return err
	}
	s.m.ApplyInitialContent(content)
	s.report(notify.Info, notify.KeyContentSet)
	return nil
}

func checkContentLength(content string) error {
	if n := utf8.RuneCountInString(content); n > MaxInitialContent {
		return machine.NewError(machine.ErrCodeContentTooLong,
			fmt.Sprintf("initial content has %d characters", n),
			"max", strconv.Itoa(MaxInitialContent))
	}
	return nil
}

// Step performs one manual step.
func (s *Session) Step() (machine.StepResult, error) {
	res, err := s.m.Step()
	s.reportStep(res, err)
	return res, err
}

func (s *Session) reportStep(res machine.StepResult, err error) {
	switch {
	case err != nil:
		s.reportError(err)
	case res.Halted:
		s.report(notify.Success, notify.KeyHalted)
	}
}

// afterAutoStep is the runner's step hook.
func (s *Session) afterAutoStep(res machine.StepResult, err error) {
	s.reportStep(res, err)
	if s.hook != nil {
		s.hook(res, err)
	}
}

// Start begins auto-running. A halted machine is reset first. Returns
// false if a run was already in progress.
func (s *Session) Start() bool {
	return s.r.Start()
}

// Stop ends auto-running.
func (s *Session) Stop() {
	s.r.Stop()
}

// ToggleRun starts or stops auto-running and returns whether it is
// running afterwards.
func (s *Session) ToggleRun() bool {
	return s.r.Toggle()
}

// Running reports whether a run is in progress.
func (s *Session) Running() bool {
	return s.r.Running()
}

// SetSpeed changes the auto-run speed, also while running.
func (s *Session) SetSpeed(sp runner.Speed) {
	s.r.SetSpeed(sp)
}

// Speed returns the auto-run speed.
func (s *Session) Speed() runner.Speed {
	return s.r.Speed()
}

// Wait blocks until the current run stops or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	return s.r.Wait(ctx)
}

// Reset stops any run and restores every tape from the stored initial
// content.
func (s *Session) Reset() {
	s.r.Stop()
	s.m.Reset(s.m.InitialContent())
	s.report(notify.Info, notify.KeyReset)
}

// Import replaces the rules with those of a parsed document.
//
// Records the parser dropped count towards the reported skip count. If the
// document carries initial content it is applied after a successful import,
// unless it is longer than MaxInitialContent, which is reported as info.
func (s *Session) Import(p *document.Parsed) (machine.ImportResult, error) {
	res, err := s.m.Import(p.Rules)
	if err != nil {
		s.reportError(err)
		return res, err
	}

	if res.TapesAdded > 0 {
		s.report(notify.Info, notify.KeyTapesExtended, res.TapeCount)
	}
	s.report(notify.Success, notify.KeyImported, res.Imported)
	if skipped := res.Dropped + p.Dropped; skipped > 0 {
		s.report(notify.Info, notify.KeyDropped, skipped)
	}

	if p.InitialContent != "" {
		if err := checkContentLength(p.InitialContent); err != nil {
			// The rules stay imported; only the content is left out.
			s.notifier.Report(notify.Info, s.Messages().Error(err))
		} else {
			s.m.ApplyInitialContent(p.InitialContent)
		}
	}

	s.logger.Debug("document imported",
		"imported", res.Imported,
		"dropped", res.Dropped+p.Dropped,
		"tapes", res.TapeCount,
	)
	res.Dropped += p.Dropped
	return res, nil
}

// ExampleRule is the rule LoadExample installs, named in lang.
func ExampleRule(lang prefs.Language) machine.Rule {
	name := "Convert 0 to 1"
	if lang == prefs.Chinese {
		name = "转换0为1"
	}
	return machine.Rule{
		Name:         name,
		TapeIndex:    0,
		CurrentState: machine.InitialState,
		ReadSymbol:   "0",
		WriteSymbol:  "1",
		Move:         machine.Right,
		NewState:     machine.InitialState,
	}
}

// LoadExample replaces the rules with the built-in example.
func (s *Session) LoadExample() error {
	rule := ExampleRule(s.Language())
	if _, err := s.m.Import([]machine.Rule{rule}); err != nil {
		s.reportError(err)
		return err
	}
	s.report(notify.Success, notify.KeyExampleLoaded)
	return nil
}

// Export builds the document for the current rules and its dated filename.
func (s *Session) Export() (document.Document, string, error) {
	doc := document.ExportMachine(s.m)
	if len(doc.Rules) == 0 {
		s.report(notify.Info, notify.KeyNothingToExport)
		return document.Document{}, "", ErrNothingToExport
	}
	name := document.Filename(s.now())
	s.report(notify.Success, notify.KeyExported, name)
	return doc, name, nil
}

// Language returns the interface language.
func (s *Session) Language() prefs.Language {
	return s.Messages().Language()
}

// SetLanguage stores and switches to lang.
func (s *Session) SetLanguage(ctx context.Context, lang prefs.Language) error {
	if err := prefs.SaveLanguage(ctx, s.prefs, lang); err != nil {
		s.reportError(err)
		return err
	}
	s.mu.Lock()
	s.msgs = notify.Catalog(lang)
	s.mu.Unlock()
	s.report(notify.Info, notify.KeyLanguage)
	return nil
}

// ToggleLanguage switches between Chinese and English and returns the new
// language.
func (s *Session) ToggleLanguage(ctx context.Context) (prefs.Language, error) {
	next := s.Language().Toggle()
	if err := s.SetLanguage(ctx, next); err != nil {
		return s.Language(), err
	}
	return next, nil
}
