package main

import (
	"encoding/json"
	"fmt"
	"io"

	"customer-segments/internal/dataset"
	"customer-segments/internal/rfm"

	"github.com/spf13/cobra"
)

func newFeaturesCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "features",
		Short: "Write one RFM feature row per customer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.validateFormat(); err != nil {
				return err
			}
			asOf, err := flags.analytics().AsOf()
			if err != nil {
				return err
			}
			txns, err := flags.readTransactions()
			if err != nil {
				return err
			}
			features, err := rfm.BuildFeatures(txns, asOf)
			if err != nil {
				return fmt.Errorf("failed to build features: %w", err)
			}

			return flags.withOutput(cmd.OutOrStdout(), func(w io.Writer) error {
				if flags.format == formatJSON {
					return writeJSON(w, features)
				}
				return dataset.WriteFeatures(w, features)
			})
		},
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
