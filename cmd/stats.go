package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	statsProfile string
	statsLimit   int
	statsReset   bool
	statsAll     bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the most pressed keys",
	Long: `Shows key press counts recorded by 'keysound run' when stats.enabled is
set in the config file.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().StringVarP(&statsProfile, "profile", "p", "", "only count presses under this profile")
	statsCmd.Flags().IntVarP(&statsLimit, "limit", "n", 10, "number of keys to show")
	statsCmd.Flags().BoolVar(&statsReset, "reset", false, "delete the recorded presses")
	statsCmd.Flags().BoolVar(&statsAll, "profiles", false, "show totals per profile")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	db, err := openStats()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	repo := db.Presses()
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if statsReset {
		n, err := repo.Reset(ctx, statsProfile)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted %d presses\n", n)
		return nil
	}

	if statsAll {
		counts, err := repo.Profiles(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PROFILE\tPRESSES\tLAST")
		for _, c := range counts {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", c.Profile, c.Count, c.Last.Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	}

	total, err := repo.Total(ctx, statsProfile)
	if err != nil {
		return err
	}
	if total == 0 {
		fmt.Fprintln(out, "No key presses recorded. Set stats.enabled: true and use 'keysound run'.")
		return nil
	}
	top, err := repo.TopKeys(ctx, statsProfile, statsLimit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tPRESSES\tSHARE")
	for _, kc := range top {
		fmt.Fprintf(tw, "%s\t%d\t%.1f%%\n", kc.Key, kc.Count, 100*float64(kc.Count)/float64(total))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d presses in total\n", total)
	return nil
}
