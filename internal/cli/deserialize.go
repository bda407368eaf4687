package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/objgraph/internal/deserializer"
	"github.com/roach88/objgraph/internal/snapshot"
)

// DeserializeOptions holds flags for the deserialize command.
type DeserializeOptions struct {
	SourceFlags
	Root bool
}

// NewDeserializeCommand creates the deserialize command.
func NewDeserializeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeserializeOptions{}

	cmd := &cobra.Command{
		Use:   "deserialize <file>",
		Short: "Revive a serialization and print the object graph",
		Long: `Revive every label of a serialization document and print the
resulting object graph as canonical JSON.

Values bound to a label are printed once under that label; every other
occurrence is printed as {"@": label}. With --root only the value of the
"root" label is printed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeserialize(cmd, rootOpts, opts, args[0])
		},
	}

	opts.SourceFlags.register(cmd)
	cmd.Flags().BoolVar(&opts.Root, "root", false, "print only the root object")

	return cmd
}

func runDeserialize(cmd *cobra.Command, rootOpts *RootOptions, opts *DeserializeOptions, file string) error {
	formatter := newFormatter(cmd, rootOpts)

	data, err := readDocument(file)
	if err != nil {
		return failCommand(formatter, err)
	}

	env, err := openEnvironment(cmd.Context(), rootOpts, opts.SourceFlags, file, cmd.ErrOrStderr())
	if err != nil {
		return failCommand(formatter, err)
	}
	defer env.Close()

	d, err := env.newDeserializer(data, file)
	if err != nil {
		return failCommand(formatter, err)
	}

	objects, err := d.Deserialize(cmd.Context(), nil, env.elements)
	if err != nil {
		return formatter.Fail(ExitFailure, codeFor(err), err)
	}
	formatter.VerboseLog("Revived %d label(s) in run %s", len(objects), d.Run().ID())

	var out []byte
	if opts.Root {
		if _, ok := objects[deserializer.RootLabel]; !ok {
			return formatter.Fail(ExitFailure, ErrCodeNoRoot,
				fmt.Errorf("%s has no %q label", file, deserializer.RootLabel))
		}
		out, err = snapshot.MarshalLabel(objects, deserializer.RootLabel)
	} else {
		out, err = snapshot.Marshal(objects)
	}
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, err)
	}

	return writeSnapshot(formatter, out)
}

// writeSnapshot outputs canonical JSON: embedded as is in a JSON
// response, indented for text.
func writeSnapshot(f *OutputFormatter, canonical []byte) error {
	if f.Format == "json" {
		return f.Success(json.RawMessage(canonical))
	}
	indented, err := snapshot.Indent(canonical)
	if err != nil {
		return err
	}
	return f.Success(string(indented))
}
