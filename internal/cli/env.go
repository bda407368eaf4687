package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/objgraph/internal/catalog"
	"github.com/roach88/objgraph/internal/config"
	"github.com/roach88/objgraph/internal/deserializer"
	"github.com/roach88/objgraph/internal/element"
	"github.com/roach88/objgraph/internal/module"
	"github.com/roach88/objgraph/internal/revive"
)

// SourceFlags select where modules and elements come from. They override
// the configuration file.
type SourceFlags struct {
	Modules string
	Catalog string
	HTML    string
}

func (s *SourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.Modules, "modules", "", "module root directory (default: the document's directory)")
	cmd.Flags().StringVar(&s.Catalog, "catalog", "", "SQLite module catalog to load modules from")
	cmd.Flags().StringVar(&s.HTML, "html", "", "HTML template resolving element references")
}

// commandError carries the CLI code of a failure that happened before
// deserialization started.
type commandError struct {
	code string
	err  error
}

func (e *commandError) Error() string { return e.err.Error() }
func (e *commandError) Unwrap() error { return e.err }

func newCommandError(code string, err error) error {
	return &commandError{code: code, err: err}
}

// failCommand outputs a setup failure with exit code ExitCommandError.
func failCommand(f *OutputFormatter, err error) error {
	code := ErrCodeGeneric
	var ce *commandError
	if errors.As(err, &ce) {
		code = ce.code
	}
	return f.Fail(ExitCommandError, code, err)
}

// environment is everything a command needs to deserialize a document.
type environment struct {
	registry *module.Registry
	labels   map[string]module.Resolver
	elements revive.ElementScope
	logger   *slog.Logger
	catalog  *catalog.Catalog
}

func newFormatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// loadConfig reads the configuration named by --config, or objgraph.yaml
// in the working directory when it exists.
func loadConfig(opts *RootOptions) (*config.Config, string, error) {
	if opts.Config == "" {
		cfg, err := config.LoadOptional(config.DefaultFilename)
		if err != nil {
			return nil, "", newCommandError(ErrCodeConfig, err)
		}
		return cfg, ".", nil
	}

	cfg, err := config.Load(opts.Config)
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", newCommandError(ErrCodeNotFound, err)
	}
	if err != nil {
		return nil, "", newCommandError(ErrCodeConfig, err)
	}
	return cfg, filepath.Dir(opts.Config), nil
}

// readDocument reads the serialization at path.
func readDocument(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, newCommandError(ErrCodeNotFound, fmt.Errorf("document not found: %s", path))
	}
	if err != nil {
		return nil, newCommandError(ErrCodeReadFailed, err)
	}
	return data, nil
}

// openEnvironment resolves configuration and flags for the document at
// file. The caller closes the environment.
func openEnvironment(ctx context.Context, opts *RootOptions, flags SourceFlags, file string, logOut io.Writer) (*environment, error) {
	cfg, dir, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	modulesFromFile := cfg.Modules.Root != ""
	resolved, err := cfg.Resolve(dir)
	if err != nil {
		return nil, newCommandError(ErrCodeConfig, err)
	}

	root := resolved.ModuleRoot
	switch {
	case flags.Modules != "":
		root = flags.Modules
	case !modulesFromFile:
		root = filepath.Dir(file)
	}
	if root, err = filepath.Abs(root); err != nil {
		return nil, newCommandError(ErrCodeGeneric, err)
	}
	location := resolved.Location
	if cfg.Modules.Location == "" {
		location = "file://" + filepath.ToSlash(root) + "/"
	}

	level := resolved.LogLevel
	if opts.Verbose {
		level = slog.LevelDebug
	}
	env := &environment{
		logger: slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level})),
		labels: make(map[string]module.Resolver, len(resolved.LabelRoots)),
	}

	var src module.Source = module.DirSource{Root: root}
	catalogPath := resolved.Catalog
	if flags.Catalog != "" {
		catalogPath = flags.Catalog
	}
	if catalogPath != "" {
		c, err := catalog.Open(catalogPath)
		if err != nil {
			return nil, newCommandError(ErrCodeCatalog, err)
		}
		env.catalog = c
		src = c
		location = "catalog://" + filepath.ToSlash(catalogPath) + "/"
	}

	env.registry = module.NewRegistry(location).WithSource(src)
	for id, target := range resolved.Redirects {
		env.registry.DefineRedirect(id, target)
	}
	if env.catalog != nil {
		if err := env.catalog.ApplyRedirects(ctx, env.registry); err != nil {
			env.Close()
			return nil, newCommandError(ErrCodeCatalog, err)
		}
	}

	for label, labelRoot := range resolved.LabelRoots {
		env.labels[label] = module.NewRegistry("file://" + filepath.ToSlash(labelRoot) + "/").
			WithSource(module.DirSource{Root: labelRoot})
	}

	htmlPath := resolved.HTML
	if flags.HTML != "" {
		htmlPath = flags.HTML
	}
	if htmlPath != "" {
		doc, err := parseHTML(htmlPath)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.elements = doc
	}

	env.logger.Debug("environment ready", "location", location, "labels", len(env.labels))
	return env, nil
}

func parseHTML(path string) (*element.Document, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, newCommandError(ErrCodeNotFound, fmt.Errorf("html template not found: %s", path))
	}
	if err != nil {
		return nil, newCommandError(ErrCodeReadFailed, err)
	}
	defer f.Close()

	doc, err := element.Parse(f)
	if err != nil {
		return nil, newCommandError(ErrCodeHTML, err)
	}
	return doc, nil
}

// newDeserializer creates a deserializer for the document read from file.
func (e *environment) newDeserializer(data []byte, file string) (*deserializer.Deserializer, error) {
	return deserializer.New(data, e.registry,
		deserializer.WithLogger(e.logger),
		deserializer.WithOrigin(file),
		deserializer.WithObjectResolvers(e.labels),
	)
}

// Close releases the catalog, if one was opened.
func (e *environment) Close() error {
	if e.catalog == nil {
		return nil
	}
	return e.catalog.Close()
}
