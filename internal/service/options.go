package service

import (
	"fmt"
	"strings"
	"time"

	"customer-segments/config"
	"customer-segments/internal/models"
	"customer-segments/internal/rfm"
)

// OptionsFromConfig builds run options from the analytics configuration,
// loading the rule table from RulesFile when one is set
func OptionsFromConfig(cfg config.AnalyticsConfig, cacheTTL time.Duration) (Options, error) {
	opts := DefaultOptions()
	if len(cfg.Invalid) > 0 {
		return opts, &rfm.ConfigError{Reason: strings.Join(cfg.Invalid, "; ")}
	}
	opts.Strategy = cfg.Strategy
	opts.ChurnCutoffDays = cfg.ChurnCutoffDays
	opts.CacheTTL = cacheTTL

	asOf, err := cfg.AsOf()
	if err != nil {
		return opts, &rfm.ConfigError{Reason: err.Error()}
	}
	opts.ReferenceDate = asOf

	if cfg.RulesFile != "" {
		table, err := rfm.LoadRuleTable(cfg.RulesFile)
		if err != nil {
			return opts, fmt.Errorf("failed to load rules: %w", err)
		}
		opts.Rules = table
	}

	opts.Cluster.K = cfg.ClusterCount
	opts.Cluster.Seed = cfg.ClusterSeed
	switch {
	case len(cfg.SegmentLabels) > 0:
		opts.Cluster.Labels = cfg.SegmentLabels
	case cfg.ClusterCount != len(models.DefaultSegmentLabels):
		return opts, &rfm.ConfigError{Reason: fmt.Sprintf("SEGMENT_LABELS must name %d clusters", cfg.ClusterCount)}
	}

	if opts.Strategy != models.StrategyRules && opts.Strategy != models.StrategyKMeans {
		return opts, &rfm.ConfigError{Reason: fmt.Sprintf("unknown segmentation strategy %q", opts.Strategy)}
	}
	return opts, nil
}
