// Package flagset turns a chosen subset of enabled flags into a complete,
// unambiguous compiler configuration.
//
// Every catalog flag appears exactly once in a FlagSet, either enabled or
// disabled. Omitting a flag would leave the compiler default in charge, so
// the renderer always spells out both states.
package flagset

import (
	"fmt"
	"strings"

	"github.com/roach88/flagsearch/internal/catalog"
)

// FlagSet is an enabled/disabled assignment over a whole catalog.
// The zero value is not usable; construct with Build or AllEnabled.
//
// FlagSet is a value type: Without returns a modified copy and never
// touches the receiver.
type FlagSet struct {
	cat     *catalog.Catalog
	enabled []bool // indexed by catalog position
}

// Build returns the FlagSet in which exactly the given flags are enabled.
//
// Every element of enabled must be a catalog member. A non-member is a
// programming error and panics.
func Build(cat *catalog.Catalog, enabled []string) FlagSet {
	fs := FlagSet{cat: cat, enabled: make([]bool, cat.Len())}
	for _, id := range enabled {
		i := cat.Index(id)
		if i < 0 {
			panic(fmt.Sprintf("flagset: %q is not in the %s catalog", id, cat.Toolchain()))
		}
		fs.enabled[i] = true
	}
	return fs
}

// AllEnabled returns the FlagSet with every catalog flag enabled.
func AllEnabled(cat *catalog.Catalog) FlagSet {
	fs := FlagSet{cat: cat, enabled: make([]bool, cat.Len())}
	for i := range fs.enabled {
		fs.enabled[i] = true
	}
	return fs
}

// Without returns a copy of fs with id disabled. Panics if id is not a
// catalog member.
func (fs FlagSet) Without(id string) FlagSet {
	i := fs.cat.Index(id)
	if i < 0 {
		panic(fmt.Sprintf("flagset: %q is not in the %s catalog", id, fs.cat.Toolchain()))
	}
	out := FlagSet{cat: fs.cat, enabled: make([]bool, len(fs.enabled))}
	copy(out.enabled, fs.enabled)
	out.enabled[i] = false
	return out
}

// Catalog returns the catalog fs is defined over.
func (fs FlagSet) Catalog() *catalog.Catalog {
	return fs.cat
}

// IsEnabled reports whether id is enabled. Non-members report false.
func (fs FlagSet) IsEnabled(id string) bool {
	i := fs.cat.Index(id)
	return i >= 0 && fs.enabled[i]
}

// Enabled returns the enabled flag IDs in catalog order.
func (fs FlagSet) Enabled() []string {
	return fs.collect(true)
}

// Disabled returns the disabled flag IDs in catalog order.
func (fs FlagSet) Disabled() []string {
	return fs.collect(false)
}

func (fs FlagSet) collect(state bool) []string {
	ids := []string{}
	for i, on := range fs.enabled {
		if on == state {
			ids = append(ids, fs.cat.Flag(i).ID)
		}
	}
	return ids
}

// EnabledCount returns the number of enabled flags.
func (fs FlagSet) EnabledCount() int {
	n := 0
	for _, on := range fs.enabled {
		if on {
			n++
		}
	}
	return n
}

// Args returns one spelling per catalog flag, in catalog order.
func (fs FlagSet) Args() []string {
	args := make([]string, len(fs.enabled))
	for i, on := range fs.enabled {
		f := fs.cat.Flag(i)
		if on {
			args[i] = f.Enabled
		} else {
			args[i] = f.Disabled
		}
	}
	return args
}

// Render returns Args joined by single spaces.
func (fs FlagSet) Render() string {
	return strings.Join(fs.Args(), " ")
}

// String implements fmt.Stringer.
func (fs FlagSet) String() string {
	return fs.Render()
}

// Equal reports whether fs and other assign the same state to every flag
// of the same catalog.
func (fs FlagSet) Equal(other FlagSet) bool {
	if fs.cat != other.cat || len(fs.enabled) != len(other.enabled) {
		return false
	}
	for i := range fs.enabled {
		if fs.enabled[i] != other.enabled[i] {
			return false
		}
	}
	return true
}

// Compose prefixes a rendered configuration with the common flags shared
// by every build of a session. Empty parts are skipped.
func Compose(common string, parts ...string) string {
	all := strings.Fields(common)
	for _, p := range parts {
		all = append(all, strings.Fields(p)...)
	}
	return strings.Join(all, " ")
}
