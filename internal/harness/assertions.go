package harness

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"regexp"
	"slices"
	"strings"

	"github.com/roach88/turingloom/internal/store"
)

// columnName guards identifiers that end up inside stored_row SQL.
var columnName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// rowTables maps the tables stored_row may read to the column holding the
// run id.
var rowTables = map[string]string{
	"runs":  "id",
	"steps": "run_id",
}

// Failure describes an assertion that did not hold.
type Failure struct {
	Kind  string
	Want  string
	Got   string
	Trace []TraceEvent
}

func (f *Failure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: want %s, got %s", f.Kind, f.Want, f.Got)
	if len(f.Trace) > 0 {
		b.WriteString("\ntrace:")
		for _, ev := range f.Trace {
			fmt.Fprintf(&b, "\n  #%d %s %s->%s tape %d head %d->%d",
				ev.Seq, ev.Rule, ev.From, ev.To, ev.Tape, ev.HeadBefore, ev.HeadAfter)
		}
	}
	return b.String()
}

// Env gives assertions access to the store the run was recorded in.
type Env struct {
	Store *store.Store
	RunID string
}

type checker func(ctx context.Context, r *Result, a Assertion, env *Env) error

var checkers = map[string]checker{
	AssertFinalState: func(_ context.Context, r *Result, a Assertion, _ *Env) error {
		return checkFinalState(r, a)
	},
	AssertHalted: func(_ context.Context, r *Result, a Assertion, _ *Env) error {
		if a.Halted == nil {
			return fmt.Errorf("halted requires a value")
		}
		return checkHalted(r, a)
	},
	AssertTape: func(_ context.Context, r *Result, a Assertion, _ *Env) error {
		return checkTape(r, a)
	},
	AssertStepCount: func(_ context.Context, r *Result, a Assertion, _ *Env) error {
		return checkStepCount(r, a)
	},
	AssertErrorCode: func(_ context.Context, r *Result, a Assertion, _ *Env) error {
		return checkErrorCode(r, a)
	},
	AssertTraceContains: func(_ context.Context, r *Result, a Assertion, _ *Env) error {
		return checkTraceContains(r.Trace, a)
	},
	AssertTraceOrder: func(_ context.Context, r *Result, a Assertion, _ *Env) error {
		return checkTraceOrder(r.Trace, a)
	},
	AssertTraceCount: func(_ context.Context, r *Result, a Assertion, _ *Env) error {
		return checkTraceCount(r.Trace, a)
	},
	AssertStoredRow: func(ctx context.Context, _ *Result, a Assertion, env *Env) error {
		if env == nil || env.Store == nil {
			return fmt.Errorf("stored_row needs a recorded run")
		}
		return checkStoredRow(ctx, env.Store, env.RunID, a)
	},
}

// Evaluate checks every assertion against the result and returns one
// message per assertion that failed. env may be nil when no assertion
// reads the store.
func Evaluate(ctx context.Context, r *Result, assertions []Assertion, env *Env) []string {
	var msgs []string
	for i, a := range assertions {
		check, ok := checkers[a.Type]
		if !ok {
			msgs = append(msgs, fmt.Sprintf("assertion %d: unknown type %q", i, a.Type))
			continue
		}
		if err := check(ctx, r, a, env); err != nil {
			msgs = append(msgs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return msgs
}

func checkFinalState(r *Result, a Assertion) error {
	got := r.Final.State.Current
	if got == a.State {
		return nil
	}
	return &Failure{Kind: AssertFinalState, Want: "state " + a.State, Got: "state " + got, Trace: r.Trace}
}

func checkHalted(r *Result, a Assertion) error {
	got := r.Final.State.Halted
	if got == *a.Halted {
		return nil
	}
	return &Failure{
		Kind:  AssertHalted,
		Want:  fmt.Sprintf("halted=%t", *a.Halted),
		Got:   fmt.Sprintf("halted=%t", got),
		Trace: r.Trace,
	}
}

// checkTape compares whichever of content, prefix and head the assertion sets.
func checkTape(r *Result, a Assertion) error {
	if a.Tape < 0 || a.Tape >= len(r.Final.Tapes) {
		return &Failure{
			Kind: AssertTape,
			Want: fmt.Sprintf("tape %d", a.Tape),
			Got:  fmt.Sprintf("%d tape(s)", len(r.Final.Tapes)),
		}
	}
	tape := r.Final.Tapes[a.Tape]
	content := tape.String()

	fail := func(want, got string) error {
		return &Failure{Kind: AssertTape, Want: fmt.Sprintf("tape %d %s", a.Tape, want), Got: got, Trace: r.Trace}
	}
	switch {
	case a.Content != nil && content != *a.Content:
		return fail(fmt.Sprintf("content %q", *a.Content), fmt.Sprintf("%q", content))
	case a.Prefix != "" && !strings.HasPrefix(content, a.Prefix):
		return fail(fmt.Sprintf("prefix %q", a.Prefix), fmt.Sprintf("%q", content))
	case a.Head != nil && tape.Head != *a.Head:
		return fail(fmt.Sprintf("head at %d", *a.Head), fmt.Sprintf("head at %d", tape.Head))
	}
	return nil
}

func checkStepCount(r *Result, a Assertion) error {
	if len(r.Trace) == a.Count {
		return nil
	}
	return &Failure{
		Kind:  AssertStepCount,
		Want:  fmt.Sprintf("%d step(s)", a.Count),
		Got:   fmt.Sprintf("%d step(s)", len(r.Trace)),
		Trace: r.Trace,
	}
}

func checkErrorCode(r *Result, a Assertion) error {
	got := string(r.ErrorCode)
	if got == a.Code {
		return nil
	}
	if got == "" {
		got = "no error"
	}
	want := a.Code
	if want == "" {
		want = "no error"
	}
	return &Failure{Kind: AssertErrorCode, Want: want, Got: got, Trace: r.Trace}
}

// checkTraceContains passes if any step applied the rule, optionally with
// the given from and to states.
func checkTraceContains(trace []TraceEvent, a Assertion) error {
	matches := func(ev TraceEvent) bool {
		return ev.Rule == a.Rule &&
			(a.From == "" || ev.From == a.From) &&
			(a.To == "" || ev.To == a.To)
	}
	if slices.ContainsFunc(trace, matches) {
		return nil
	}

	want := "rule " + a.Rule
	if a.From != "" {
		want += " from " + a.From
	}
	if a.To != "" {
		want += " to " + a.To
	}
	return &Failure{Kind: AssertTraceContains, Want: want, Got: "no such step", Trace: trace}
}

// checkTraceOrder compares the first application of each listed rule.
// Other steps may appear in between.
func checkTraceOrder(trace []TraceEvent, a Assertion) error {
	first := make(map[string]int, len(a.Rules))
	for i := len(trace) - 1; i >= 0; i-- {
		first[trace[i].Rule] = i + 1
	}

	prev := ""
	for _, rule := range a.Rules {
		pos, ok := first[rule]
		if !ok {
			return &Failure{
				Kind:  AssertTraceOrder,
				Want:  strings.Join(a.Rules, " < "),
				Got:   rule + " never applied",
				Trace: trace,
			}
		}
		if prev != "" && first[prev] >= pos {
			return &Failure{
				Kind:  AssertTraceOrder,
				Want:  strings.Join(a.Rules, " < "),
				Got:   fmt.Sprintf("%s first at step %d, %s first at step %d", prev, first[prev], rule, pos),
				Trace: trace,
			}
		}
		prev = rule
	}
	return nil
}

func checkTraceCount(trace []TraceEvent, a Assertion) error {
	n := 0
	for _, ev := range trace {
		if ev.Rule == a.Rule {
			n++
		}
	}
	if n == a.Count {
		return nil
	}
	return &Failure{
		Kind:  AssertTraceCount,
		Want:  fmt.Sprintf("%s applied %d time(s)", a.Rule, a.Count),
		Got:   fmt.Sprintf("%d time(s)", n),
		Trace: trace,
	}
}

// checkStoredRow reads the single row of the recorded run selected by
// a.Where and compares the columns named in a.Expect.
func checkStoredRow(ctx context.Context, st *store.Store, runID string, a Assertion) error {
	runCol, ok := rowTables[a.Table]
	if !ok {
		return fmt.Errorf("stored_row: table %q is not one of runs, steps", a.Table)
	}

	filter := maps.Clone(a.Where)
	if filter == nil {
		filter = make(map[string]any, 1)
	}
	filter[runCol] = runID

	row, err := selectOne(ctx, st, a.Table, filter)
	if err != nil {
		return err
	}

	for _, col := range slices.Sorted(maps.Keys(a.Expect)) {
		want := a.Expect[col]
		got, ok := row[col]
		if !ok {
			return &Failure{
				Kind: AssertStoredRow,
				Want: fmt.Sprintf("column %s in %s", col, a.Table),
				Got:  "no such column",
			}
		}
		if !sameValue(want, got) {
			return &Failure{
				Kind: AssertStoredRow,
				Want: fmt.Sprintf("%s.%s = %v", a.Table, col, want),
				Got:  fmt.Sprintf("%v", display(got)),
			}
		}
	}
	return nil
}

// selectOne returns the only row of table matching filter, keyed by column.
func selectOne(ctx context.Context, st *store.Store, table string, filter map[string]any) (map[string]any, error) {
	where, args, err := whereClause(filter)
	if err != nil {
		return nil, err
	}
	rows, err := st.Query(ctx, fmt.Sprintf("SELECT * FROM %s WHERE %s", table, where), args...)
	if err != nil {
		return nil, fmt.Errorf("stored_row: query %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("stored_row: columns: %w", err)
	}

	var out map[string]any
	for rows.Next() {
		if out != nil {
			return nil, &Failure{
				Kind: AssertStoredRow,
				Want: fmt.Sprintf("one row in %s where %s", table, describeFilter(filter)),
				Got:  "several rows",
			}
		}
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("stored_row: scan: %w", err)
		}
		out = make(map[string]any, len(cols))
		for i, c := range cols {
			out[c] = vals[i]
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stored_row: %w", err)
	}
	if out == nil {
		return nil, &Failure{
			Kind: AssertStoredRow,
			Want: fmt.Sprintf("a row in %s where %s", table, describeFilter(filter)),
			Got:  "none",
		}
	}
	return out, nil
}

// whereClause renders filter as "a = ? AND b = ?" with columns in sorted
// order. Values are always bound, never inlined.
func whereClause(filter map[string]any) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}
	cols := slices.Sorted(maps.Keys(filter))
	terms := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		if !columnName.MatchString(c) {
			return "", nil, fmt.Errorf("stored_row: bad column name %q", c)
		}
		terms[i] = c + " = ?"
		args[i] = bindValue(filter[c])
	}
	return strings.Join(terms, " AND "), args, nil
}

// bindValue maps a YAML value onto something the sqlite driver accepts.
// Booleans are stored as 0 or 1.
func bindValue(v any) any {
	switch v := v.(type) {
	case bool:
		if v {
			return int64(1)
		}
		return int64(0)
	case string, int, int64:
		return v
	}
	return fmt.Sprint(v)
}

func describeFilter(filter map[string]any) string {
	if len(filter) == 0 {
		return "true"
	}
	parts := make([]string, 0, len(filter))
	for _, c := range slices.Sorted(maps.Keys(filter)) {
		parts = append(parts, fmt.Sprintf("%s=%v", c, filter[c]))
	}
	return strings.Join(parts, " AND ")
}

// sameValue compares a YAML value with a column value read back from sqlite,
// which returns integers as int64 and text as string or []byte.
func sameValue(want, got any) bool {
	if b, ok := got.([]byte); ok {
		got = string(b)
	}
	switch w := want.(type) {
	case nil:
		return got == nil
	case string:
		g, ok := got.(string)
		return ok && g == w
	case int:
		g, ok := got.(int64)
		return ok && g == int64(w)
	case int64:
		g, ok := got.(int64)
		return ok && g == w
	case bool:
		switch g := got.(type) {
		case bool:
			return g == w
		case int64:
			return (g != 0) == w
		}
		return false
	}
	return reflect.DeepEqual(want, got)
}

func display(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
