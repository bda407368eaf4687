package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/objgraph/internal/deserializer"
	"github.com/roach88/objgraph/internal/module"
)

// NewLabelsCommand creates the labels command.
func NewLabelsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "labels <file>",
		Short: "List the external objects a serialization expects",
		Long: `List the labels whose descriptor is empty. These objects are not
described by the document and must be supplied by the caller.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLabels(cmd, rootOpts, args[0])
		},
	}
}

func runLabels(cmd *cobra.Command, rootOpts *RootOptions, file string) error {
	formatter := newFormatter(cmd, rootOpts)

	data, err := readDocument(file)
	if err != nil {
		return failCommand(formatter, err)
	}

	// No module is loaded, so an empty registry is enough.
	d, err := deserializer.New(data, module.NewRegistry("file://"+file))
	if err != nil {
		return failCommand(formatter, err)
	}

	labels, err := d.ExternalObjectLabels()
	if err != nil {
		return formatter.Fail(ExitFailure, codeFor(err), err)
	}
	return formatter.Lines(labels)
}
