package commands

import (
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/hirevox/hirevox/am"
	"github.com/hirevox/hirevox/dial"
	"github.com/hirevox/hirevox/errors"
	"github.com/hirevox/hirevox/roster"
	"github.com/hirevox/hirevox/voice"
)

// CallCmd places outbound voice calls
var CallCmd = &cobra.Command{
	Use:   "call <number>",
	Short: "Place a single outbound call",
	Long: `Place outbound voice calls through the provider.

A single call dials immediately. Batch calling paces the numbers with a
configurable interval and retries transient provider failures with
exponential backoff; Ctrl-C lets the in-flight call finish and skips
the rest.

Without --template or --text the provider speaks its own configured
script (provider.tts_code), expanded with any --param values.

Examples:
  hirevox call 13800138000 --template intention_survey --param company=星辰科技
  hirevox call 13800138000 --text "您好，这里是星辰科技的招聘团队。"
  hirevox call batch numbers.txt --interval 5 --template initial_contact`,
	Args: cobra.ExactArgs(1),
	RunE: runCallSingle,
}

var callBatchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Call numbers from a file, one per line, paced",
	Args:  cobra.ExactArgs(1),
	RunE:  runCallBatch,
}

var (
	callInterval int
	callTemplate string
	callText     string
	callParams   []string
)

func init() {
	for _, c := range []*cobra.Command{CallCmd, callBatchCmd} {
		c.Flags().StringVar(&callTemplate, "template", "", "Call-script template name")
		c.Flags().StringVar(&callText, "text", "", "Literal call-script text (instead of a template)")
		c.Flags().StringArrayVar(&callParams, "param", nil, "Template parameter key=value (repeatable)")
	}
	callBatchCmd.Flags().IntVar(&callInterval, "interval", 0, "Seconds between dial starts (default from config)")

	CallCmd.AddCommand(callBatchCmd)
}

func parseParams(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, errors.NewValidationError("parameter %q is not key=value", pair)
		}
		params[key] = value
	}
	return params, nil
}

// newCallStack wires renderer, caller, ledger, and scheduler from config.
func newCallStack(cfg *am.Config) (*dial.Scheduler, func(), error) {
	library := voice.NewLibrary()
	if cfg.TTS.TemplatesPath != "" {
		if err := library.LoadFile(cfg.TTS.TemplatesPath); err != nil {
			return nil, nil, err
		}
	}

	caller, err := voice.NewAliyunCaller(cfg.Provider)
	if err != nil {
		return nil, nil, err
	}

	database, err := openDatabase("")
	if err != nil {
		return nil, nil, err
	}

	scheduler := dial.NewScheduler(
		dial.NewLedger(database),
		voice.NewTemplateRenderer(library),
		caller,
		cfg.Dialer,
	)
	return scheduler, func() { database.Close() }, nil
}

func normalizePhones(raw []string) ([]string, error) {
	phones := make([]string, 0, len(raw))
	for _, r := range raw {
		normalized, err := roster.NormalizePhone(r)
		if err != nil {
			return nil, err
		}
		phones = append(phones, normalized)
	}
	return phones, nil
}

func runCallSingle(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	params, err := parseParams(callParams)
	if err != nil {
		return err
	}
	phones, err := normalizePhones(args)
	if err != nil {
		return err
	}

	scheduler, cleanup, err := newCallStack(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	// A single call is a batch of one with no pacing.
	batch, err := dial.NewBatch(phones, 0, callTemplate, callText, params)
	if err != nil {
		return err
	}

	sum, err := scheduler.Run(cmd.Context(), batch)
	if err != nil {
		return err
	}
	if sum.Succeeded == 1 {
		pterm.Success.Printfln("✓ 呼叫已发起: %s", phones[0])
		return nil
	}
	return errors.Newf("呼叫失败: %s", batch.Jobs[0].LastError)
}

func runCallBatch(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	params, err := parseParams(callParams)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return errors.Wrapf(err, "read %s", args[0])
	}
	var numbers []string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if n := strings.TrimSpace(line); n != "" {
			numbers = append(numbers, n)
		}
	}
	phones, err := normalizePhones(numbers)
	if err != nil {
		return err
	}

	interval := time.Duration(cfg.Dialer.IntervalSeconds) * time.Second
	if callInterval > 0 {
		interval = time.Duration(callInterval) * time.Second
	}

	scheduler, cleanup, err := newCallStack(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	batch, err := dial.NewBatch(phones, interval, callTemplate, callText, params)
	if err != nil {
		return err
	}

	pterm.DefaultSection.Printfln("开始批量呼叫，共 %d 个号码", len(phones))
	pterm.Info.Printfln("Batch %s, interval %s", batch.ID, interval)
	pterm.Println(pterm.Gray("Ctrl-C finishes the current call and skips the rest"))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sum, err := scheduler.Run(ctx, batch)
	if err != nil {
		return err
	}

	pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
		{"结果", "数量"},
		{"成功", strconv.Itoa(sum.Succeeded)},
		{"失败", strconv.Itoa(sum.Failed)},
		{"跳过", strconv.Itoa(sum.Skipped)},
	}).Render()

	if sum.Failed > 0 {
		pterm.Warning.Printfln("%d 个呼叫失败，详情: hirevox export --batch %s", sum.Failed, batch.ID)
	} else {
		pterm.Success.Println("批量呼叫完成")
	}
	return nil
}
