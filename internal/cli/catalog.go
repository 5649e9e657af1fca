package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/flagsearch/internal/catalog"
)

// CatalogOptions holds flags for the catalog command.
type CatalogOptions struct {
	*RootOptions
	Catalog          string
	Toolchain        string
	ToolchainVersion string
	All              bool
}

// NewCatalogCommand creates the catalog command.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CatalogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the flags a search toggles",
		Long: `List the catalog flags supported by a toolchain version, in search order.

With --all, unsupported entries are listed too, with the reason they are
left out.

Examples:
  flagsearch catalog --toolchain-version 9.3
  flagsearch catalog --catalog ./clang.cue --toolchain-version 15 --all`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalog(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "CUE flag catalog (default: builtin catalog of --toolchain)")
	cmd.Flags().StringVar(&opts.Toolchain, "toolchain", "gcc", "builtin catalog to list")
	cmd.Flags().StringVar(&opts.ToolchainVersion, "toolchain-version", "", "toolchain version (required)")
	cmd.Flags().BoolVar(&opts.All, "all", false, "include unsupported entries")
	_ = cmd.MarkFlagRequired("toolchain-version")

	return cmd
}

func runCatalog(opts *CatalogOptions, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)

	var (
		cat *catalog.Catalog
		err error
	)
	if opts.Catalog != "" {
		cat, err = catalog.Load(opts.Catalog, opts.ToolchainVersion)
	} else {
		cat, err = catalog.LoadDefault(opts.Toolchain, opts.ToolchainVersion)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load catalog", err)
	}

	entries := cat.Entries()
	if !opts.All {
		supported := entries[:0]
		for _, e := range entries {
			if e.Supported {
				supported = append(supported, e)
			}
		}
		entries = supported
	}

	if out.Format == "json" {
		return out.Success(map[string]any{
			"toolchain": cat.Toolchain(),
			"version":   cat.Version(),
			"hash":      cat.Hash(),
			"flags":     entries,
		})
	}

	out.VerboseLog("%s %s: %d supported flags, hash %s", cat.Toolchain(), cat.Version(), cat.Len(), cat.Hash())
	for _, e := range entries {
		if e.Supported {
			fmt.Fprintf(out.Writer, "%s\t%s\n", e.Enabled, e.Disabled)
		} else {
			fmt.Fprintf(out.Writer, "# %s\t%s\n", e.ID, e.Reason)
		}
	}
	return nil
}
