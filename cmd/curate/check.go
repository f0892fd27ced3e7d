package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check domain...",
	Short: "Validate domains against the configured upstreams",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// a one-off check always queries, whatever the config says
		cfg.Validation.Enabled = true

		v, err := openValidator(cfg)
		if err != nil {
			return err
		}
		defer v.Close()

		w := cmd.OutOrStdout()
		for _, domain := range args {
			r := v.Check(cmd.Context(), domain)

			servers := make([]string, 0, len(r.PerServer))
			for id, ok := range r.PerServer {
				mark := "-"
				if ok {
					mark = "+"
				}
				servers = append(servers, mark+id)
			}
			slices.Sort(servers)

			fmt.Fprintf(w, "%s\t%s\t%s\n", r.Domain, r.Verdict, strings.Join(servers, " "))
		}

		return nil
	},
}
