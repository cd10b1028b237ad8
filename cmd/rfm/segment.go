package main

import (
	"io"

	"customer-segments/internal/dataset"

	"github.com/spf13/cobra"
)

func newSegmentCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "segment",
		Short: "Write the segment and churn label of every customer",
		Example: `  rfm segment -i online_retail.csv -s rules --rules rules.yaml
  rfm segment -i online_retail.csv -s kmeans -k 4 --seed 42 -f json -o segments.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.validateFormat(); err != nil {
				return err
			}
			segments, err := flags.segments()
			if err != nil {
				return err
			}

			return flags.withOutput(cmd.OutOrStdout(), func(w io.Writer) error {
				if flags.format == formatJSON {
					return writeJSON(w, segments)
				}
				return dataset.WriteSegments(w, segments)
			})
		},
	}
}
