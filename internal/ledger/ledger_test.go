package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flagsearch/internal/ir"
)

func rec(id int64, kind ir.RunKind, score ir.Score, flags string) ir.RunRecord {
	return ir.RunRecord{RunID: id, Kind: kind, Flags: flags, ConfigHash: ir.ConfigHash(flags), Score: score}
}

func sampleLedger() *Ledger {
	l := New()
	l.Record(rec(0, ir.RunKindO3, 100, "-O3"))
	l.Record(rec(1, ir.RunKindOs, 80, "-Os"))
	l.Record(rec(2, ir.RunKindBase, 125, "-fa -fb"))
	l.Record(rec(3, ir.RunKindTest, 50, "-fno-a -fb"))
	failed := rec(4, ir.RunKindTest, ir.FailedScore, "-fa -fno-b")
	failed.Failure = "test-4: build failed"
	l.Record(failed)
	l.Record(rec(5, ir.RunKindBase, 100, "-fno-a -fb"))
	return l
}

func TestLedger_RecordsAreCopies(t *testing.T) {
	l := sampleLedger()
	records := l.Records()
	require.Len(t, records, 6)
	records[0].Score = 1

	assert.Equal(t, ir.Score(100), l.Records()[0].Score)
	assert.Equal(t, 6, l.Len())
}

func TestFromRecords(t *testing.T) {
	src := sampleLedger().Records()
	l := FromRecords(src)
	src[0].Flags = "mutated"

	assert.Equal(t, "-O3", l.Records()[0].Flags)
	assert.Equal(t, 6, l.Len())
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 2.0, Ratio(100, 50))
	assert.Equal(t, 0.5, Ratio(50, 100))
	assert.Zero(t, Ratio(100, ir.FailedScore))
	assert.Zero(t, Ratio(100, -3))
}

func TestReport_BaseRatioIsExact(t *testing.T) {
	l := New()
	l.Record(rec(0, ir.RunKindO3, 80, "-O3"))
	l.Record(rec(1, ir.RunKindOs, 90, "-Os"))
	l.Record(rec(2, ir.RunKindBase, 100, "-fa"))
	l.Record(rec(3, ir.RunKindTest, 50, "-fno-a"))

	rep, err := l.Report()
	require.NoError(t, err)
	assert.Equal(t, 2.0, rep.Lines[3].BaseRatio)
	assert.Equal(t, 1.6, rep.Lines[3].O3Ratio)
	assert.Equal(t, 1.8, rep.Lines[3].OsRatio)
}

func TestReport_UsesInitialBase(t *testing.T) {
	rep, err := sampleLedger().Report()
	require.NoError(t, err)

	assert.Equal(t, ir.Score(125), rep.InitialBase)
	last := rep.Lines[len(rep.Lines)-1]
	assert.Equal(t, "base-5", last.Label)
	assert.Equal(t, 1.25, last.BaseRatio)
}

func TestReport_MissingReferences(t *testing.T) {
	tests := []struct {
		name    string
		records []ir.RunRecord
		want    string
	}{
		{"empty", nil, "no O3"},
		{"no os", []ir.RunRecord{rec(0, ir.RunKindO3, 1, "-O3")}, "no Os"},
		{"no base", []ir.RunRecord{rec(0, ir.RunKindO3, 1, "-O3"), rec(1, ir.RunKindOs, 1, "-Os")}, "no base"},
		{"failed base", []ir.RunRecord{
			rec(0, ir.RunKindO3, 1, "-O3"),
			rec(1, ir.RunKindOs, 1, "-Os"),
			rec(2, ir.RunKindBase, ir.FailedScore, "-fa"),
		}, "no base"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromRecords(tt.records).Report()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrIncomplete))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReport_WriteCSV(t *testing.T) {
	rep, err := sampleLedger().Report()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, rep.WriteCSV(&buf))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "report_csv", buf.Bytes())
}

func TestReport_WriteJSON(t *testing.T) {
	rep, err := sampleLedger().Report()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, rep.WriteJSON(&buf))

	var decoded Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, *rep, decoded)
}
