package catalog

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"golang.org/x/mod/semver"

	"github.com/roach88/flagsearch/internal/ir"
)

//go:embed schema.cue
var schemaCUE string

//go:embed catalogs/*.cue
var builtin embed.FS

// Flag is a single toggleable compiler switch.
type Flag struct {
	ID       string `json:"id"`
	Enabled  string `json:"enabled"`
	Disabled string `json:"disabled"`
}

// Entry is one row of a catalog declaration together with its support
// status for the version the catalog was loaded for.
type Entry struct {
	Flag
	Since     string `json:"since,omitempty"`
	Removed   string `json:"removed,omitempty"`
	Exclude   string `json:"exclude,omitempty"`
	Supported bool   `json:"supported"`
	// Reason explains why an entry is unsupported; empty when supported.
	Reason string `json:"reason,omitempty"`
}

// Catalog is the ordered set of supported flags for one toolchain version.
//
// INVARIANTS:
//   - Flag IDs are unique
//   - Order never changes after load
type Catalog struct {
	toolchain string
	version   string
	flags     []Flag
	index     map[string]int
	entries   []Entry
	hash      string
}

// declaration mirrors #Catalog for decoding.
type declaration struct {
	Toolchain string            `json:"toolchain"`
	Flags     []flagDeclaration `json:"flags"`
}

type flagDeclaration struct {
	ID       string `json:"id"`
	Enabled  string `json:"enabled"`
	Disabled string `json:"disabled"`
	Since    string `json:"since"`
	Removed  string `json:"removed"`
	Exclude  string `json:"exclude"`
}

// Builtin returns the names of the catalogs shipped with the binary.
func Builtin() []string {
	entries, err := builtin.ReadDir("catalogs")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".cue"))
	}
	return names
}

// LoadDefault loads the builtin catalog for toolchain at version.
func LoadDefault(toolchain, version string) (*Catalog, error) {
	name := "catalogs/" + toolchain + ".cue"
	data, err := builtin.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("no builtin catalog for toolchain %q (have %v)", toolchain, Builtin())
	}
	return Parse(data, name, version)
}

// Load reads a catalog declaration from a CUE file.
func Load(path, version string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data, path, version)
}

// Parse validates a CUE catalog declaration and filters it for version.
// filename is only used in error positions.
func Parse(data []byte, filename, version string) (*Catalog, error) {
	if !validVersion(version) {
		return nil, fmt.Errorf("invalid toolchain version %q", version)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile catalog schema: %w", err)
	}

	value := ctx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("compile catalog %s: %w", filename, err)
	}

	value = schema.LookupPath(cue.ParsePath("#Catalog")).Unify(value)
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validate catalog %s: %w", filename, err)
	}

	var decl declaration
	if err := value.Decode(&decl); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", filename, err)
	}

	return build(decl, version)
}

func build(decl declaration, version string) (*Catalog, error) {
	c := &Catalog{
		toolchain: decl.Toolchain,
		version:   version,
		index:     make(map[string]int),
	}

	seen := make(map[string]bool, len(decl.Flags))
	var spellings [][2]string
	for i, d := range decl.Flags {
		if seen[d.ID] {
			return nil, fmt.Errorf("flags[%d]: duplicate flag %q", i, d.ID)
		}
		seen[d.ID] = true

		entry := Entry{
			Flag: Flag{
				ID:       d.ID,
				Enabled:  d.Enabled,
				Disabled: d.Disabled,
			},
			Since:   d.Since,
			Removed: d.Removed,
			Exclude: d.Exclude,
		}
		if entry.Enabled == "" {
			entry.Enabled = d.ID
		}
		if entry.Disabled == "" {
			disabled, err := DisabledSpelling(d.ID)
			if err != nil {
				return nil, fmt.Errorf("flags[%d]: %w", i, err)
			}
			entry.Disabled = disabled
		}
		entry.Supported, entry.Reason = supported(d, version)
		c.entries = append(c.entries, entry)

		if entry.Supported {
			c.index[entry.ID] = len(c.flags)
			c.flags = append(c.flags, entry.Flag)
			spellings = append(spellings, [2]string{entry.Enabled, entry.Disabled})
		}
	}

	hash, err := ir.CatalogHash(c.toolchain, c.version, spellings)
	if err != nil {
		return nil, err
	}
	c.hash = hash
	return c, nil
}

// DisabledSpelling derives the canonical disabled form of a -f flag:
// -fgcse becomes -fno-gcse.
func DisabledSpelling(id string) (string, error) {
	if !strings.HasPrefix(id, "-f") || len(id) == 2 {
		return "", fmt.Errorf("flag %q has no derivable disabled spelling", id)
	}
	return "-fno-" + id[2:], nil
}

func supported(d flagDeclaration, version string) (bool, string) {
	if d.Exclude != "" {
		return false, "excluded: " + d.Exclude
	}
	if d.Since != "" && compareVersions(version, d.Since) < 0 {
		return false, fmt.Sprintf("requires version %s", d.Since)
	}
	if d.Removed != "" && compareVersions(version, d.Removed) >= 0 {
		return false, fmt.Sprintf("removed in version %s", d.Removed)
	}
	return true, ""
}

func validVersion(v string) bool {
	return v != "" && semver.IsValid("v"+v)
}

// compareVersions compares dotted toolchain versions such as "4.5" and "10".
func compareVersions(a, b string) int {
	return semver.Compare("v"+a, "v"+b)
}

// Toolchain returns the toolchain the catalog was declared for.
func (c *Catalog) Toolchain() string { return c.toolchain }

// Version returns the toolchain version the catalog was filtered for.
func (c *Catalog) Version() string { return c.version }

// Hash returns the content hash of the supported flags.
func (c *Catalog) Hash() string { return c.hash }

// Len returns the number of supported flags.
func (c *Catalog) Len() int { return len(c.flags) }

// Flags returns a copy of the supported flags in catalog order.
func (c *Catalog) Flags() []Flag {
	out := make([]Flag, len(c.flags))
	copy(out, c.flags)
	return out
}

// Flag returns the flag at position i.
func (c *Catalog) Flag(i int) Flag { return c.flags[i] }

// IDs returns the supported flag IDs in catalog order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.flags))
	for i, f := range c.flags {
		ids[i] = f.ID
	}
	return ids
}

// Contains reports whether id is a supported flag.
func (c *Catalog) Contains(id string) bool {
	_, ok := c.index[id]
	return ok
}

// Index returns the catalog position of id, or -1.
func (c *Catalog) Index(id string) int {
	i, ok := c.index[id]
	if !ok {
		return -1
	}
	return i
}

// Entries returns every declared entry, supported or not, in declaration order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// New builds a catalog directly from flags, all of them supported.
// Disabled spellings are derived where not given. Used by scenarios and tests.
func New(toolchain, version string, flags []Flag) (*Catalog, error) {
	decl := declaration{Toolchain: toolchain}
	for _, f := range flags {
		decl.Flags = append(decl.Flags, flagDeclaration{
			ID:       f.ID,
			Enabled:  f.Enabled,
			Disabled: f.Disabled,
		})
	}
	return build(decl, version)
}
