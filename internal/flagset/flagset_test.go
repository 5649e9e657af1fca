package flagset

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flagsearch/internal/catalog"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New("gcc", "4.5", []catalog.Flag{
		{ID: "-fgcse"},
		{ID: "-fdce"},
		{ID: "-fweb"},
	})
	require.NoError(t, err)
	return cat
}

func TestAllEnabled(t *testing.T) {
	fs := AllEnabled(testCatalog(t))
	assert.Equal(t, "-fgcse -fdce -fweb", fs.Render())
	assert.Equal(t, 3, fs.EnabledCount())
	assert.Empty(t, fs.Disabled())
}

func TestBuild_SubsetRendersEveryFlag(t *testing.T) {
	fs := Build(testCatalog(t), []string{"-fweb", "-fgcse"})
	assert.Equal(t, "-fgcse -fno-dce -fweb", fs.Render())
	assert.Equal(t, []string{"-fgcse", "-fweb"}, fs.Enabled())
	assert.Equal(t, []string{"-fdce"}, fs.Disabled())
}

func TestBuild_Empty(t *testing.T) {
	fs := Build(testCatalog(t), nil)
	assert.Equal(t, "-fno-gcse -fno-dce -fno-web", fs.Render())
	assert.Equal(t, 0, fs.EnabledCount())
}

func TestBuild_NonMemberPanics(t *testing.T) {
	cat := testCatalog(t)
	assert.Panics(t, func() { Build(cat, []string{"-fbogus"}) })
}

func TestWithout_DoesNotMutateReceiver(t *testing.T) {
	base := AllEnabled(testCatalog(t))
	cand := base.Without("-fdce")

	assert.True(t, base.IsEnabled("-fdce"))
	assert.False(t, cand.IsEnabled("-fdce"))
	assert.Equal(t, "-fgcse -fno-dce -fweb", cand.Render())
	assert.Panics(t, func() { base.Without("-fbogus") })
}

func TestRender_OneSpellingPerFlag(t *testing.T) {
	cat, err := catalog.LoadDefault("gcc", "4.5")
	require.NoError(t, err)

	subsets := [][]string{
		nil,
		cat.IDs(),
		cat.IDs()[:10],
		{cat.Flag(3).ID, cat.Flag(50).ID},
	}
	for _, subset := range subsets {
		fs := Build(cat, subset)
		args := fs.Args()
		require.Len(t, args, cat.Len())
		for i, arg := range args {
			f := cat.Flag(i)
			assert.True(t, arg == f.Enabled || arg == f.Disabled, "position %d: %q", i, arg)
		}
		assert.Len(t, strings.Fields(fs.Render()), cat.Len())
	}
}

func TestRender_Idempotent(t *testing.T) {
	cat := testCatalog(t)
	before := cat.IDs()

	a := Build(cat, []string{"-fdce"})
	b := Build(cat, []string{"-fdce"})
	assert.Equal(t, a.Render(), a.Render())
	assert.Equal(t, a.Render(), b.Render())
	assert.True(t, a.Equal(b))

	if diff := cmp.Diff(before, cat.IDs()); diff != "" {
		t.Errorf("catalog changed by rendering (-before +after):\n%s", diff)
	}
}

func TestEqual(t *testing.T) {
	cat := testCatalog(t)
	assert.False(t, AllEnabled(cat).Equal(AllEnabled(cat).Without("-fweb")))
	assert.False(t, AllEnabled(cat).Equal(AllEnabled(testCatalog(t))), "different catalogs")
}

func TestCompose(t *testing.T) {
	assert.Equal(t, "-g -O3", Compose(" -g ", "-O3"))
	assert.Equal(t, "-fgcse -fno-dce", Compose("", "-fgcse -fno-dce"))
	assert.Equal(t, "-g", Compose("-g", ""))
}
