package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"breederchat/internal/core/record"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "breederctl",
	Short: "breederctl scrapes and inspects breeder directory pages from the command line.",
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	return t
}

func renderRecords(out io.Writer, recs []record.Record) {
	t := newTable(out)
	t.AppendHeader(table.Row{"#", "Name", "Phone", "Location"})
	for i, r := range recs {
		t.AppendRow(table.Row{i + 1, r.Name, r.Phone, r.Location})
	}
	t.AppendFooter(table.Row{"", "", "Total", len(recs)})
	t.Render()
}
