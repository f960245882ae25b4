package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zjrosen/keysound/internal/keys"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List key names accepted by assign and play",
	Args:  cobra.NoArgs,
	RunE:  runKeys,
}

func init() {
	rootCmd.AddCommand(keysCmd)
}

func runKeys(cmd *cobra.Command, args []string) error {
	aliases := make(map[keys.Key][]string)
	for _, a := range keys.Aliases() {
		aliases[a.Key] = append(aliases[a.Key], a.Name)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tALSO ACCEPTED")
	for _, k := range keys.All() {
		fmt.Fprintf(tw, "%s\t%s\n", k, strings.Join(aliases[k], ", "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "\nNames are case-insensitive. Digits may be written as 5 or D5.")
	return nil
}
