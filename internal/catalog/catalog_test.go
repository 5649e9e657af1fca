package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefault_GCC45(t *testing.T) {
	cat, err := LoadDefault("gcc", "4.5")
	require.NoError(t, err)

	assert.Equal(t, "gcc", cat.Toolchain())
	assert.Equal(t, "4.5", cat.Version())
	assert.Equal(t, 111, cat.Len())

	// Declared in 4.6, filtered for 4.5
	assert.False(t, cat.Contains("-faggressive-loop-optimizations"))
	// Excluded everywhere
	assert.False(t, cat.Contains("-fcommon"))
	assert.False(t, cat.Contains("-fstrict-aliasing"))
	// Ordinary flags keep their declaration order
	assert.Equal(t, "-falign-functions", cat.Flag(0).ID)
	assert.Equal(t, "-fweb", cat.Flag(cat.Len()-1).ID)
}

func TestLoadDefault_GCC10(t *testing.T) {
	cat, err := LoadDefault("gcc", "10")
	require.NoError(t, err)

	assert.True(t, cat.Contains("-faggressive-loop-optimizations"))
	assert.False(t, cat.Contains("-fregmove"), "removed in 5")
	assert.False(t, cat.Contains("-fbranch-target-load-optimize"), "removed in 10")
	assert.Equal(t, 123, cat.Len())
}

func TestLoadDefault_UnknownToolchain(t *testing.T) {
	_, err := LoadDefault("msvc", "19")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no builtin catalog")
}

func TestLoadDefault_InvalidVersion(t *testing.T) {
	_, err := LoadDefault("gcc", "four")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid toolchain version")
}

func TestBuiltin(t *testing.T) {
	assert.Contains(t, Builtin(), "gcc")
}

func TestFlagSpellings(t *testing.T) {
	cat, err := LoadDefault("gcc", "4.5")
	require.NoError(t, err)

	f := cat.Flag(cat.Index("-fgcse"))
	assert.Equal(t, "-fgcse", f.Enabled)
	assert.Equal(t, "-fno-gcse", f.Disabled)
}

func TestEntries_ReportUnsupportedReasons(t *testing.T) {
	cat, err := LoadDefault("gcc", "4.5")
	require.NoError(t, err)

	reasons := map[string]string{}
	for _, e := range cat.Entries() {
		if !e.Supported {
			reasons[e.ID] = e.Reason
		}
	}
	assert.Equal(t, "requires version 4.6", reasons["-fcompare-elim"])
	assert.Contains(t, reasons["-fsection-anchors"], "excluded")
	assert.Len(t, cat.Entries(), 133)
}

func TestParse_ExplicitSpellings(t *testing.T) {
	src := `
toolchain: "clang"
flags: [
	{id: "-fvectorize"},
	{id: "-funroll", enabled: "-funroll-loops", disabled: "-fno-unroll-loops"},
	{id: "-mllvm-inline", enabled: "-mllvm=-inline-threshold=225", disabled: "-mllvm=-inline-threshold=0"},
]
`
	cat, err := Parse([]byte(src), "clang.cue", "15")
	require.NoError(t, err)
	require.Equal(t, 3, cat.Len())

	assert.Equal(t, Flag{ID: "-fvectorize", Enabled: "-fvectorize", Disabled: "-fno-vectorize"}, cat.Flag(0))
	assert.Equal(t, "-funroll-loops", cat.Flag(1).Enabled)
	assert.Equal(t, "-mllvm=-inline-threshold=0", cat.Flag(2).Disabled)
}

func TestParse_RejectsUnknownField(t *testing.T) {
	src := `
toolchain: "gcc"
flags: [{id: "-fgcse", sinse: "4.5"}]
`
	_, err := Parse([]byte(src), "typo.cue", "4.5")
	require.Error(t, err)
}

func TestParse_RejectsDuplicate(t *testing.T) {
	src := `
toolchain: "gcc"
flags: [{id: "-fgcse"}, {id: "-fdce"}, {id: "-fgcse"}]
`
	_, err := Parse([]byte(src), "dup.cue", "4.5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate flag")
}

func TestParse_RejectsUnderivableDisabled(t *testing.T) {
	src := `
toolchain: "gcc"
flags: [{id: "-O2"}]
`
	_, err := Parse([]byte(src), "bad.cue", "4.5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no derivable disabled spelling")
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mini.cue")
	src := `
toolchain: "gcc"
flags: [
	{id: "-fgcse"},
	{id: "-fipa-pta", since: "4.7"},
]
`
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))

	cat, err := Load(path, "4.5")
	require.NoError(t, err)
	assert.Equal(t, []string{"-fgcse"}, cat.IDs())

	_, err = Load(filepath.Join(t.TempDir(), "missing.cue"), "4.5")
	assert.Error(t, err)
}

func TestHash_DependsOnSupportedFlags(t *testing.T) {
	a, err := LoadDefault("gcc", "4.5")
	require.NoError(t, err)
	b, err := LoadDefault("gcc", "4.5")
	require.NoError(t, err)
	c, err := LoadDefault("gcc", "4.8")
	require.NoError(t, err)

	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), c.Hash())
}

func TestNew(t *testing.T) {
	cat, err := New("test", "1", []Flag{{ID: "-fa"}, {ID: "-fb"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"-fa", "-fb"}, cat.IDs())
	assert.Equal(t, "-fno-b", cat.Flag(1).Disabled)
	assert.Equal(t, -1, cat.Index("-fz"))
}

func TestCompareVersions(t *testing.T) {
	assert.Equal(t, -1, compareVersions("4.5", "4.6"))
	assert.Equal(t, 1, compareVersions("10", "4.8"))
	assert.Equal(t, 0, compareVersions("5", "5.0"))
}
