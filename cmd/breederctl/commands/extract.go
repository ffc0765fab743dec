package commands

import (
	"fmt"
	"os"

	"breederchat/internal/core/extract"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(extractCmd)
}

var extractCmd = &cobra.Command{
	Use:   "extract <file.html>",
	Short: "Runs the table extractor over a saved page.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		res, err := extract.NewTableExtractor().Extract(string(b))
		if err != nil {
			return err
		}
		renderRecords(cmd.OutOrStdout(), res.Records)
		if res.TotalEntries != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "site reports %d entries\n", *res.TotalEntries)
		}
		return nil
	},
}
