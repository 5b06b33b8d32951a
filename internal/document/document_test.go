package document

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/turingloom/internal/machine"
)

func TestExport(t *testing.T) {
	tapes := []machine.Tape{
		{ID: "tape-1", Name: "Tape 1", Cells: []string{"0"}},
		{ID: "tape-3", Name: "Tape 2", Cells: []string{"1"}},
	}

	doc := Export(wantRules(), tapes, "0011")

	assert.Equal(t, Version, doc.Version)
	assert.Equal(t, "0011", doc.InitialContent)
	assert.Equal(t, wantRules(), doc.Rules)
	assert.Equal(t, []TapeType{
		{ID: "tape-1", Name: "Tape 1", Type: "1d"},
		{ID: "tape-3", Name: "Tape 2", Type: "1d"},
	}, doc.TapeTypes)
}

func TestExport_EmptyRulesEncodeAsArray(t *testing.T) {
	out, err := Encode(Export(nil, nil, ""), FormatJSON)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(out, &raw))
	assert.Equal(t, []any{}, raw["rules"])
	assert.NotContains(t, raw, "initialContent")
}

func TestExportMachine(t *testing.T) {
	m := machine.New(machine.WithTapes(2), machine.WithInitialContent("01"))
	_, err := m.AddRule(machine.Rule{CurrentState: "q0", WriteSymbol: "1", Move: machine.Right, NewState: "q0"})
	require.NoError(t, err)

	doc := ExportMachine(m)

	assert.Len(t, doc.Rules, 1)
	assert.Len(t, doc.TapeTypes, 2)
	assert.Equal(t, "01", doc.InitialContent)
}

func TestFilename(t *testing.T) {
	ts := time.Date(2024, time.March, 9, 23, 59, 0, 0, time.UTC)

	assert.Equal(t, "turing-machine-rules-2024-03-09.json", Filename(ts))
}

func TestEncode_JSONShape(t *testing.T) {
	doc := Export(wantRules()[:1], []machine.Tape{{ID: "tape-1", Name: "Tape 1"}}, "")

	out, err := Encode(doc, FormatJSON)
	require.NoError(t, err)

	want := `{
  "version": 1,
  "rules": [
    {
      "id": "r1",
      "name": "mark",
      "tapeIndex": 0,
      "currentState": "q0",
      "readSymbol": "0",
      "writeSymbol": "1",
      "moveDirection": "right",
      "newState": "q1",
      "shouldHalt": false,
      "nextRuleId": "r2"
    }
  ],
  "tapeTypes": [
    {
      "id": "tape-1",
      "name": "Tape 1",
      "type": "1d"
    }
  ]
}
`
	assert.Equal(t, want, string(out))
}

func TestEncode_RoundTrip(t *testing.T) {
	doc := Export(wantRules(), []machine.Tape{{ID: "tape-1", Name: "Tape 1"}}, "0011")

	for _, format := range []Format{FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			out, err := Encode(doc, format)
			require.NoError(t, err)

			p, err := Parse(out, format, "")
			require.NoError(t, err)
			assert.Equal(t, doc, p.Document)
			assert.Equal(t, 0, p.Dropped)
		})
	}
}

func TestEncode_UnsupportedFormat(t *testing.T) {
	_, err := Encode(Document{}, FormatCUE)
	assert.Error(t, err)
}

func TestHash_IgnoresIDs(t *testing.T) {
	a := wantRules()
	b := wantRules()
	b[0].ID, b[1].ID = "x", "y"
	b[0].NextRuleID = "y"

	assert.Equal(t, MustHash(a), MustHash(b))
}

func TestHash_SensitiveToContentAndOrder(t *testing.T) {
	base := MustHash(wantRules())

	changed := wantRules()
	changed[0].WriteSymbol = "x"
	assert.NotEqual(t, base, MustHash(changed))

	swapped := wantRules()
	swapped[0], swapped[1] = swapped[1], swapped[0]
	assert.NotEqual(t, base, MustHash(swapped))

	unlinked := wantRules()
	unlinked[0].NextRuleID = ""
	assert.NotEqual(t, base, MustHash(unlinked))
}

func TestHash_StableThroughImport(t *testing.T) {
	m := machine.New()
	_, err := m.Import(wantRules())
	require.NoError(t, err)

	assert.Equal(t, MustHash(wantRules()), MustHash(m.Rules()))
}

func TestHash_Format(t *testing.T) {
	h, err := Hash(nil)
	require.NoError(t, err)

	assert.Len(t, h, 64)
	assert.Equal(t, hashWithDomain(DomainRules, []byte("[]")), h)
}

func TestHash_NFCEquivalentNames(t *testing.T) {
	composed := wantRules()
	composed[0].Name = "caf\u00e9"
	decomposed := wantRules()
	decomposed[0].Name = "cafe\u0301"

	assert.Equal(t, MustHash(composed), MustHash(decomposed))
}
