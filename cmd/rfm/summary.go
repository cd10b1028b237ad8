package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"customer-segments/internal/dataset"
	"customer-segments/internal/models"
	"customer-segments/internal/rfm"
	"customer-segments/internal/util"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type summaryReport struct {
	Summary models.Summary           `json:"summary"`
	AtRisk  []models.CustomerSegment `json:"at_risk"`
}

func newSummaryCmd(flags *cliFlags) *cobra.Command {
	var top int
	var exportDir string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print churn and revenue figures per segment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.validateFormat(); err != nil {
				return err
			}
			segments, err := flags.segments()
			if err != nil {
				return err
			}
			report := summaryReport{
				Summary: rfm.Summarize(segments),
				AtRisk:  rfm.AtRisk(segments, top),
			}

			if exportDir != "" {
				filename := dataset.TimestampedFilename(exportDir, "summary", formatJSON, time.Now())
				if err := dataset.ExportJSON(filename, report); err != nil {
					return err
				}
				util.GetLogger().Info("Summary exported", zap.String("file", filepath.Clean(filename)))
			}

			return flags.withOutput(cmd.OutOrStdout(), func(w io.Writer) error {
				if flags.format == formatJSON {
					return writeJSON(w, report)
				}
				renderSummary(w, report)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&top, "top", 20, "Number of at-risk customers to list")
	cmd.Flags().StringVar(&exportDir, "export-dir", "", "Also write a timestamped JSON report into this folder")
	return cmd
}

func percent(v float64) string {
	return strconv.FormatFloat(v*100, 'f', 1, 64) + "%"
}

func renderSummary(w io.Writer, r summaryReport) {
	s := r.Summary
	fmt.Fprintf(w, "Customers:          %d\n", s.TotalCustomers)
	fmt.Fprintf(w, "Churned:            %d (%s)\n", s.ChurnedCustomers, percent(s.ChurnRate))
	fmt.Fprintf(w, "Total revenue:      %s\n", s.TotalRevenue.StringFixed(2))
	fmt.Fprintf(w, "Avg customer value: %s\n\n", s.AvgCustomerValue.StringFixed(2))

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Segment", "Customers", "Revenue", "Churn rate", "Recency", "Frequency", "Monetary"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, st := range s.Segments {
		table.Append([]string{
			st.Segment,
			strconv.Itoa(st.Customers),
			st.Revenue.StringFixed(2),
			percent(st.ChurnRate),
			strconv.FormatFloat(st.MeanRecency, 'f', 1, 64),
			strconv.FormatFloat(st.MeanFrequency, 'f', 1, 64),
			st.MeanMonetary.StringFixed(2),
		})
	}
	table.Render()

	if len(r.AtRisk) == 0 {
		return
	}
	fmt.Fprintf(w, "\nTop %d at-risk customers\n", len(r.AtRisk))
	atRisk := tablewriter.NewWriter(w)
	atRisk.SetHeader([]string{"Customer", "Segment", "Recency", "Frequency", "Monetary"})
	atRisk.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, c := range r.AtRisk {
		atRisk.Append([]string{
			c.CustomerID,
			c.Segment,
			strconv.Itoa(c.RecencyDays),
			strconv.Itoa(c.Frequency),
			c.Monetary.StringFixed(2),
		})
	}
	atRisk.Render()
}
