package commands

import (
	"context"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/hirevox/hirevox/am"
	"github.com/hirevox/hirevox/enrich"
	"github.com/hirevox/hirevox/errors"
	"github.com/hirevox/hirevox/export"
	"github.com/hirevox/hirevox/roster"
)

// PhoneCmd groups offline phone locality lookups
var PhoneCmd = &cobra.Command{
	Use:   "phone",
	Short: "Phone number locality lookup (offline)",
	Long: `Look up the locality of phone numbers against the offline prefix
table. No network access is involved.

Examples:
  hirevox phone lookup 13800138000
  hirevox phone batch numbers.txt
  hirevox phone csv candidates.csv --col 电话 -o enriched.csv`,
}

var phoneLookupCmd = &cobra.Command{
	Use:   "lookup <number>",
	Short: "Look up a single number",
	Args:  cobra.ExactArgs(1),
	RunE:  runPhoneLookup,
}

var phoneBatchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Look up numbers from a file, one per line",
	Args:  cobra.ExactArgs(1),
	RunE:  runPhoneBatch,
}

var phoneCSVCmd = &cobra.Command{
	Use:   "csv <file>",
	Short: "Enrich a CSV file with a locality column",
	Long: `Read a CSV file, look up the locality for the given phone column,
and write the file back with a 归属地 column inserted directly after it.
Column order is otherwise preserved.`,
	Args: cobra.ExactArgs(1),
	RunE: runPhoneCSV,
}

var (
	phoneCSVColumn string
	phoneCSVOutput string
)

func init() {
	phoneCSVCmd.Flags().StringVarP(&phoneCSVColumn, "col", "c", "", "Phone column name (required)")
	phoneCSVCmd.Flags().StringVarP(&phoneCSVOutput, "output", "o", "", "Output path (default: overwrite input)")
	phoneCSVCmd.MarkFlagRequired("col")

	PhoneCmd.AddCommand(phoneLookupCmd)
	PhoneCmd.AddCommand(phoneBatchCmd)
	PhoneCmd.AddCommand(phoneCSVCmd)
}

// newLookup builds the offline lookup, merging the configured external
// prefix table when one is set.
func newLookup() (*enrich.OfflineLookup, error) {
	lookup := enrich.NewOfflineLookup()
	cfg, err := am.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	if cfg.Enrich.TablePath != "" {
		if err := lookup.LoadTable(cfg.Enrich.TablePath); err != nil {
			return nil, err
		}
	}
	return lookup, nil
}

func localityOrUnknown(ctx context.Context, lookup enrich.Lookup, raw string) (string, string) {
	normalized, err := roster.NormalizePhone(raw)
	if err != nil {
		return "", "无效号码"
	}
	locality, err := lookup.Locality(ctx, normalized)
	if err != nil {
		return normalized, "未知"
	}
	return normalized, locality
}

func runPhoneLookup(cmd *cobra.Command, args []string) error {
	lookup, err := newLookup()
	if err != nil {
		return err
	}

	normalized, locality := localityOrUnknown(cmd.Context(), lookup, args[0])
	table := pterm.TableData{
		{"属性", "值"},
		{"号码", args[0]},
	}
	if normalized != "" {
		table = append(table, []string{"标准格式", normalized})
	}
	table = append(table, []string{"归属地", locality})
	return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
}

func runPhoneBatch(cmd *cobra.Command, args []string) error {
	lookup, err := newLookup()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return errors.Wrapf(err, "read %s", args[0])
	}

	table := pterm.TableData{{"号码", "归属地"}}
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		number := strings.TrimSpace(line)
		if number == "" {
			continue
		}
		_, locality := localityOrUnknown(cmd.Context(), lookup, number)
		table = append(table, []string{number, locality})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
}

func runPhoneCSV(cmd *cobra.Command, args []string) error {
	lookup, err := newLookup()
	if err != nil {
		return err
	}

	output := phoneCSVOutput
	if output == "" {
		output = args[0]
	}

	n, err := export.EnrichCSV(cmd.Context(), lookup, args[0], output, phoneCSVColumn)
	if err != nil {
		return err
	}
	pterm.Success.Printfln("✓ 已保存到 %s（%d 条记录）", output, n)
	return nil
}
