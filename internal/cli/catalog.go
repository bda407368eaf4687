package cli

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/objgraph/internal/catalog"
)

// ImportResult is the JSON payload of catalog import.
type ImportResult struct {
	Modules   int `json:"modules"`
	Redirects int `json:"redirects"`
}

// NewCatalogCommand creates the catalog command group.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage SQLite module catalogs",
		Long: `Manage SQLite module catalogs. A catalog stores serialization documents
and JSON or YAML modules so that deserialize and preload can load them
with --catalog instead of reading a module directory.`,
	}

	cmd.AddCommand(newCatalogImportCommand(rootOpts))
	cmd.AddCommand(newCatalogListCommand(rootOpts))
	return cmd
}

func newCatalogImportCommand(rootOpts *RootOptions) *cobra.Command {
	var redirects []string

	cmd := &cobra.Command{
		Use:   "import <db> <dir>",
		Short: "Import every module file under a directory",
		Long: `Import every .json, .mjson, .meta, .yaml and .yml file under dir into
the catalog db, keyed by its path relative to dir. Redirects from the
configuration file and from --redirect are stored as well.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogImport(cmd, rootOpts, args[0], args[1], redirects)
		},
	}

	cmd.Flags().StringArrayVar(&redirects, "redirect", nil, "redirect a module id, as id=target (repeatable)")
	return cmd
}

func runCatalogImport(cmd *cobra.Command, rootOpts *RootOptions, db, dir string, flagRedirects []string) error {
	formatter := newFormatter(cmd, rootOpts)

	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return failCommand(formatter, newCommandError(ErrCodeNotFound, fmt.Errorf("module directory not found: %s", dir)))
	}
	if err == nil && !info.IsDir() {
		return failCommand(formatter, newCommandError(ErrCodeNotFound, fmt.Errorf("not a directory: %s", dir)))
	}

	redirects, err := importRedirects(rootOpts, flagRedirects)
	if err != nil {
		return failCommand(formatter, err)
	}

	c, err := catalog.Open(db)
	if err != nil {
		return failCommand(formatter, newCommandError(ErrCodeCatalog, err))
	}
	defer c.Close()

	n, err := c.Import(cmd.Context(), dir)
	if err != nil {
		return failCommand(formatter, newCommandError(ErrCodeCatalog, err))
	}

	ids := make([]string, 0, len(redirects))
	for id := range redirects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := c.PutRedirect(cmd.Context(), id, redirects[id]); err != nil {
			return failCommand(formatter, newCommandError(ErrCodeCatalog, err))
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(ImportResult{Modules: n, Redirects: len(ids)})
	}
	return formatter.Success(fmt.Sprintf("Imported %d module(s) and %d redirect(s) into %s", n, len(ids), db))
}

// importRedirects merges the configured redirects with id=target flags.
func importRedirects(rootOpts *RootOptions, flags []string) (map[string]string, error) {
	cfg, _, err := loadConfig(rootOpts)
	if err != nil {
		return nil, err
	}

	redirects := make(map[string]string, len(cfg.Modules.Redirects)+len(flags))
	for id, target := range cfg.Modules.Redirects {
		redirects[id] = target
	}
	for _, f := range flags {
		id, target, ok := strings.Cut(f, "=")
		if !ok || id == "" || target == "" {
			return nil, newCommandError(ErrCodeGeneric, fmt.Errorf("invalid redirect %q: want id=target", f))
		}
		redirects[id] = target
	}
	return redirects, nil
}

func newCatalogListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "ls <db>",
		Short:         "List the modules of a catalog",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogList(cmd, rootOpts, args[0])
		},
	}
}

func runCatalogList(cmd *cobra.Command, rootOpts *RootOptions, db string) error {
	formatter := newFormatter(cmd, rootOpts)

	if _, err := os.Stat(db); errors.Is(err, os.ErrNotExist) {
		return failCommand(formatter, newCommandError(ErrCodeNotFound, fmt.Errorf("catalog not found: %s", db)))
	}

	c, err := catalog.Open(db)
	if err != nil {
		return failCommand(formatter, newCommandError(ErrCodeCatalog, err))
	}
	defer c.Close()

	entries, err := c.List(cmd.Context())
	if err != nil {
		return failCommand(formatter, newCommandError(ErrCodeCatalog, err))
	}
	redirects, err := c.Redirects(cmd.Context())
	if err != nil {
		return failCommand(formatter, newCommandError(ErrCodeCatalog, err))
	}

	if formatter.Format == "json" {
		if entries == nil {
			entries = []catalog.Entry{}
		}
		return formatter.Success(map[string]any{"modules": entries, "redirects": redirects})
	}

	w := tabwriter.NewWriter(formatter.Writer, 0, 0, 2, ' ', 0)
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%d\t%s\n", e.ID, e.Size, e.Hash[:12])
	}
	ids := make([]string, 0, len(redirects))
	for id := range redirects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(w, "%s\t->\t%s\n", id, redirects[id])
	}
	return w.Flush()
}
