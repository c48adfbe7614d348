package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hirevox/hirevox/cmd/hirevox/commands"
	"github.com/hirevox/hirevox/logger"
)

var rootCmd = &cobra.Command{
	Use:   "hirevox",
	Short: "hirevox - Candidate ingestion and outbound call orchestration",
	Long: `hirevox - Candidate ingestion and outbound engagement orchestration.

Collects candidate profiles pushed by the browser extension, enriches
them with phone locality data, and drives paced outbound voice calls
through the provider.

Available commands:
  serve   - Run the local ingestion endpoint
  phone   - Phone locality lookup (offline)
  call    - Place single or batched outbound calls
  tts     - Render call scripts to speech
  export  - Export candidates and call outcomes to CSV/JSON
  am      - Manage hirevox configuration ("I am")

Examples:
  hirevox serve                        # Start the ingestion endpoint
  hirevox phone lookup 13800138000     # Locality of one number
  hirevox call batch numbers.txt       # Paced batch calling
  hirevox export --format csv -o out.csv
  hirevox am show                      # Show current configuration`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Keep 'am show' output clean of log lines
		if cmd.Name() != "show" {
			if err := logger.Initialize(false); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.PhoneCmd)
	rootCmd.AddCommand(commands.CallCmd)
	rootCmd.AddCommand(commands.TTSCmd)
	rootCmd.AddCommand(commands.ExportCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
