package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/zx197009220/findApi/internal/rules"
)

func newRulesCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Load a rule file and report its compiled and skipped rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			set, err := rules.LoadFile(path)
			if err != nil {
				return err
			}
			printRules(cmd.OutOrStdout(), set)
			if n := len(set.Skipped()); n > 0 {
				return fmt.Errorf("%d rule(s) failed to compile", n)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "configs/rules.yml", "Rule file to check")
	return cmd
}

func printRules(w io.Writer, set *rules.Set) {
	fmt.Fprintf(w, "%s (%d)\n", rules.GroupFind, len(set.FindRules()))
	for _, r := range set.FindRules() {
		fmt.Fprintf(w, "  %-24s %s\n", r.Name, r.Pattern)
	}
	fmt.Fprintf(w, "%s (%d)\n", rules.GroupExclude, len(set.ExcludeRules()))
	for _, r := range set.ExcludeRules() {
		fmt.Fprintf(w, "  %-24s %s\n", r.Name, r.Pattern)
	}
	for _, skipped := range set.Skipped() {
		fmt.Fprintf(w, "skipped %s\n", skipped)
	}
}
