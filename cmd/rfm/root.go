package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"customer-segments/config"
	"customer-segments/internal/dataset"
	"customer-segments/internal/models"
	"customer-segments/internal/rfm"
	"customer-segments/internal/service"
	"customer-segments/internal/util"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	formatCSV  = "csv"
	formatJSON = "json"
)

// cliFlags holds the flags shared by every subcommand. Defaults come from
// the environment so the CLI and the server agree.
type cliFlags struct {
	input         string
	output        string
	format        string
	referenceDate string
	churnCutoff   int
	strategy      string
	rulesFile     string
	clusters      int
	seed          int64
	labels        []string
	columns       config.ColumnConfig
	invalid       []string
}

// envFlags names the flag that overrides each numeric environment setting
var envFlags = map[string]string{
	"CHURN_CUTOFF_DAYS": "churn-cutoff",
	"CLUSTER_COUNT":     "clusters",
	"CLUSTER_SEED":      "seed",
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	flags := &cliFlags{columns: cfg.Columns}

	root := &cobra.Command{
		Use:   "rfm",
		Short: "Build RFM features and customer segments from a transaction table",
		Long: `rfm reads a CSV transaction table and derives one recency, frequency and
monetary vector per customer, then labels every customer with a segment and
a churn flag.

Commands:
  features  - write the per-customer feature table
  segment   - write the labelled segment table
  summary   - print churn and revenue figures per segment`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			flags.invalid = unresolvedSettings(cmd, cfg.Analytics.Invalid)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.input, "input", "i", cfg.Analytics.InputFile, "Transaction CSV file")
	pf.StringVarP(&flags.output, "output", "o", "", "Output file (defaults to stdout)")
	pf.StringVarP(&flags.format, "format", "f", formatCSV, "Output format: csv or json")
	pf.StringVar(&flags.referenceDate, "reference-date", cfg.Analytics.ReferenceDate, "Snapshot date (YYYY-MM-DD); defaults to the latest transaction")
	pf.IntVar(&flags.churnCutoff, "churn-cutoff", cfg.Analytics.ChurnCutoffDays, "Days without a purchase after which a customer is churned")
	pf.StringVarP(&flags.strategy, "strategy", "s", cfg.Analytics.Strategy, "Segmentation strategy: rules or kmeans")
	pf.StringVar(&flags.rulesFile, "rules", cfg.Analytics.RulesFile, "YAML rule table for the rules strategy")
	pf.IntVarP(&flags.clusters, "clusters", "k", cfg.Analytics.ClusterCount, "Number of clusters for the kmeans strategy")
	pf.Int64Var(&flags.seed, "seed", cfg.Analytics.ClusterSeed, "Random seed for the kmeans strategy")
	pf.StringSliceVar(&flags.labels, "labels", cfg.Analytics.SegmentLabels, "Cluster labels, highest spenders first")

	root.AddCommand(
		newFeaturesCmd(flags),
		newSegmentCmd(flags),
		newSummaryCmd(flags),
	)
	return root
}

func (f *cliFlags) analytics() config.AnalyticsConfig {
	return config.AnalyticsConfig{
		InputFile:       f.input,
		ReferenceDate:   f.referenceDate,
		ChurnCutoffDays: f.churnCutoff,
		Strategy:        f.strategy,
		ClusterCount:    f.clusters,
		ClusterSeed:     f.seed,
		SegmentLabels:   f.labels,
		RulesFile:       f.rulesFile,
		Invalid:         f.invalid,
	}
}

// unresolvedSettings drops invalid environment settings whose flag was given
// explicitly on the command line
func unresolvedSettings(cmd *cobra.Command, invalid []string) []string {
	var out []string
	for _, msg := range invalid {
		key, _, _ := strings.Cut(msg, ":")
		if name, ok := envFlags[key]; ok && cmd.Flags().Changed(name) {
			continue
		}
		out = append(out, msg)
	}
	return out
}

func (f *cliFlags) validateFormat() error {
	f.format = strings.ToLower(f.format)
	switch f.format {
	case formatCSV, formatJSON:
		return nil
	}
	return fmt.Errorf("unknown output format %q", f.format)
}

func (f *cliFlags) readTransactions() ([]models.Transaction, error) {
	file, err := os.Open(f.input)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer file.Close()

	txns, err := dataset.ReadTransactions(file, dataset.FieldMapping(f.columns))
	if err != nil {
		return nil, err
	}
	qualifying := len(rfm.FilterQualifying(txns))
	util.GetLogger().Info("Transactions loaded",
		zap.String("input", f.input),
		zap.Int("rows", len(txns)),
		zap.Int("excluded", len(txns)-qualifying))
	return txns, nil
}

// segments runs the configured strategy over the input file
func (f *cliFlags) segments() ([]models.CustomerSegment, error) {
	opts, err := service.OptionsFromConfig(f.analytics(), 0)
	if err != nil {
		return nil, err
	}
	txns, err := f.readTransactions()
	if err != nil {
		return nil, err
	}
	features, err := rfm.BuildFeatures(txns, opts.ReferenceDate)
	if err != nil {
		return nil, fmt.Errorf("failed to build features: %w", err)
	}

	switch opts.Strategy {
	case models.StrategyRules:
		return rfm.SegmentByRules(features, opts.Rules, opts.ChurnCutoffDays)
	default:
		return rfm.SegmentByClusters(features, opts.Cluster, opts.ChurnCutoffDays)
	}
}

// withOutput calls write with the output file, or with stdout when none is set
func (f *cliFlags) withOutput(stdout io.Writer, write func(w io.Writer) error) error {
	if f.output == "" {
		return write(stdout)
	}
	file, err := dataset.CreateFile(f.output)
	if err != nil {
		return err
	}
	defer file.Close()
	if err := write(file); err != nil {
		return err
	}
	return file.Close()
}
