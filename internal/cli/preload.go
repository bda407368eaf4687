package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/objgraph/internal/revive"
)

// PreloadResult is the JSON payload of the preload command.
type PreloadResult struct {
	Modules []string `json:"modules"`
}

// NewPreloadCommand creates the preload command.
func NewPreloadCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &SourceFlags{}

	cmd := &cobra.Command{
		Use:   "preload <file>",
		Short: "Load every module a serialization refers to",
		Long: `Load, concurrently, every module named by a "prototype" or "object"
location of the document without reviving it, and list the module ids.
Fails when a module cannot be loaded.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreload(cmd, rootOpts, *flags, args[0])
		},
	}

	flags.register(cmd)
	return cmd
}

func runPreload(cmd *cobra.Command, rootOpts *RootOptions, flags SourceFlags, file string) error {
	formatter := newFormatter(cmd, rootOpts)

	data, err := readDocument(file)
	if err != nil {
		return failCommand(formatter, err)
	}

	env, err := openEnvironment(cmd.Context(), rootOpts, flags, file, cmd.ErrOrStderr())
	if err != nil {
		return failCommand(formatter, err)
	}
	defer env.Close()

	d, err := env.newDeserializer(data, file)
	if err != nil {
		return failCommand(formatter, err)
	}

	ids, err := d.ModuleIDs()
	if err != nil {
		return formatter.Fail(ExitFailure, codeFor(err), err)
	}

	res, err := d.PreloadModules(cmd.Context())
	if err != nil {
		return formatter.Fail(ExitFailure, codeFor(err), err)
	}
	loaded, err := res.Await(cmd.Context())
	if err != nil {
		code := codeFor(err)
		if code == ErrCodeGeneric {
			code = reviveCodes[revive.ErrCodeModuleLoadFailed]
		}
		return formatter.Fail(ExitFailure, code, err)
	}
	formatter.VerboseLog("Loaded %d module(s)", len(loaded))

	if formatter.Format == "json" {
		if ids == nil {
			ids = []string{}
		}
		return formatter.Success(PreloadResult{Modules: ids})
	}
	return formatter.Lines(ids)
}
