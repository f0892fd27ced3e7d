package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/st3v3nmw/beacon-dns-lists/internal/config"
	"github.com/st3v3nmw/beacon-dns-lists/internal/pipeline"
	"github.com/st3v3nmw/beacon-dns-lists/internal/types"
)

var (
	noValidate      bool
	keepUnparseable bool
	policy          string
	format          string
	allowInputs     []string

	runCmd = &cobra.Command{
		Use:   "run [input...]",
		Short: "Build the block & allow lists",
		Long: `Reads every input (globs allowed), classifies each rule, validates blocked
domains and atomically writes the block and allow outputs. Inputs given on
the command line replace those in the config file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyRunFlags(cmd, args); err != nil {
				return err
			}

			v, err := openValidator(cfg)
			if err != nil {
				return err
			}
			defer v.Close()

			res, err := pipeline.Run(cmd.Context(), cfg, v)
			if err != nil {
				return err
			}

			printSummary(cmd.OutOrStdout(), res)
			return nil
		},
	}
)

func init() {
	runCmd.Flags().BoolVar(&noValidate, "no-validate", false, "Skip DNS validation")
	runCmd.Flags().BoolVar(&keepUnparseable, "keep-unparseable", false, "Keep cosmetic & other non-DNS rules verbatim")
	runCmd.Flags().StringVar(&policy, "policy", "", "Conflict policy: whitelist or blacklist")
	runCmd.Flags().StringVar(&format, "format", "", "Output format: domains or adblock")
	runCmd.Flags().StringSliceVar(&allowInputs, "allow", nil, "Extra inputs whose rules are all exceptions")
}

func applyRunFlags(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		cfg.Inputs = cfg.Inputs[:0]
		for _, arg := range args {
			cfg.Inputs = append(cfg.Inputs, config.InputConfig{Name: arg, Path: arg, Action: types.ActionBlock})
		}
	}
	for _, path := range allowInputs {
		cfg.Inputs = append(cfg.Inputs, config.InputConfig{Name: path, Path: path, Action: types.ActionAllow})
	}

	if cmd.Flags().Changed("no-validate") {
		cfg.Validation.Enabled = !noValidate
	}
	if cmd.Flags().Changed("keep-unparseable") {
		cfg.Rules.KeepUnparseable = keepUnparseable
	}
	if policy != "" {
		if err := cfg.Classify.Policy.UnmarshalText([]byte(policy)); err != nil {
			return err
		}
	}
	if format != "" {
		cfg.Output.Format = types.OutputFormat(format)
	}

	return cfg.Validate()
}

func printSummary(w io.Writer, res *pipeline.Result) {
	for _, f := range res.Files {
		status := "ok"
		if !f.OK() {
			status = "error: " + f.Err.Error()
		}
		fmt.Fprintf(w, "%-40s %8d lines %8d kept  %s\n", f.Name, f.Lines, f.Kept, status)
	}

	s := res.Stats
	fmt.Fprintf(w, "\nblock: %d  allow: %d  duplicates: %d  conflicts: %d  invalid: %d  excluded: %d  unparseable: %d  (%s)\n",
		s.Block, s.Allow, s.Duplicates, s.Conflicts, s.Invalid, s.Excluded, s.Unparseable, res.Elapsed.Round(time.Millisecond))
}
