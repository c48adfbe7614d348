package commands

import (
	"io"
	"os"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/hirevox/hirevox/dial"
	"github.com/hirevox/hirevox/errors"
	"github.com/hirevox/hirevox/export"
	"github.com/hirevox/hirevox/roster"
)

// ExportCmd writes batch call outcomes to CSV or JSON
var ExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export call outcomes to CSV or JSON",
	Long: `Export the outcome of a call batch from the ledger. Without --batch,
recent batches are listed so an id can be picked.

CSV output carries a UTF-8 byte order mark so Excel opens it correctly.

Examples:
  hirevox export
  hirevox export --batch 6f3a... -o results.csv
  hirevox export --batch 6f3a... --format json`,
	RunE: runExport,
}

var (
	exportBatch  string
	exportFormat string
	exportOutput string
)

func init() {
	ExportCmd.Flags().StringVar(&exportBatch, "batch", "", "Batch id to export")
	ExportCmd.Flags().StringVar(&exportFormat, "format", "csv", "Output format: csv or json")
	ExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output path (default: stdout)")
}

func runExport(cmd *cobra.Command, args []string) error {
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()
	ledger := dial.NewLedger(database)

	if exportBatch == "" {
		return listBatches(ledger)
	}

	snap, err := export.Build(roster.NewStore(), ledger, export.Options{BatchID: exportBatch})
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return errors.Wrapf(err, "create %s", exportOutput)
		}
		defer f.Close()
		out = f
	}

	switch exportFormat {
	case "csv":
		err = export.WriteCSV(out, snap)
	case "json":
		err = export.WriteJSON(out, snap)
	default:
		return errors.NewValidationError("unknown format %q (want csv or json)", exportFormat)
	}
	if err != nil {
		return err
	}

	if exportOutput != "" {
		pterm.Success.Printfln("✓ 已导出 %d 条记录到 %s", len(snap.Rows), exportOutput)
	}
	return nil
}

func listBatches(ledger *dial.Ledger) error {
	batches, err := ledger.ListBatches(20)
	if err != nil {
		return err
	}
	if len(batches) == 0 {
		pterm.Info.Println("No call batches recorded yet")
		return nil
	}

	table := pterm.TableData{{"Batch", "Template", "Interval", "Created", "Completed"}}
	for _, b := range batches {
		completed := ""
		if b.CompletedAt != nil {
			completed = b.CompletedAt.Format(time.RFC3339)
		}
		table = append(table, []string{
			b.ID,
			b.TemplateName,
			strconv.Itoa(int(b.Interval / time.Second)),
			b.CreatedAt.Format(time.RFC3339),
			completed,
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
}
