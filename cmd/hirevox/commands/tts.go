package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/hirevox/hirevox/am"
	"github.com/hirevox/hirevox/errors"
	"github.com/hirevox/hirevox/voice"
)

// TTSCmd renders call scripts to speech
var TTSCmd = &cobra.Command{
	Use:   "tts",
	Short: "Render call scripts to speech",
	Long: `Render literal text or a call-script template to an audio file
through the configured TTS service.

Examples:
  hirevox tts generate "您好，这是一条测试语音"
  hirevox tts template interview_invite --param company=星辰科技 --param time=周三下午
  hirevox tts templates`,
}

var ttsGenerateCmd = &cobra.Command{
	Use:   "generate <text>",
	Short: "Convert literal text to speech",
	Args:  cobra.ExactArgs(1),
	RunE:  runTTSGenerate,
}

var ttsTemplateCmd = &cobra.Command{
	Use:   "template <name>",
	Short: "Render a call-script template to speech",
	Args:  cobra.ExactArgs(1),
	RunE:  runTTSTemplate,
}

var ttsTemplatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List available call-script templates",
	RunE:  runTTSTemplates,
}

var ttsParams []string

func init() {
	ttsTemplateCmd.Flags().StringArrayVar(&ttsParams, "param", nil, "Template parameter key=value (repeatable)")

	TTSCmd.AddCommand(ttsGenerateCmd)
	TTSCmd.AddCommand(ttsTemplateCmd)
	TTSCmd.AddCommand(ttsTemplatesCmd)
}

func newRenderer() (*voice.HTTPRenderer, *voice.Library, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to load config")
	}

	library := voice.NewLibrary()
	if cfg.TTS.TemplatesPath != "" {
		if err := library.LoadFile(cfg.TTS.TemplatesPath); err != nil {
			return nil, nil, err
		}
	}

	renderer, err := voice.NewHTTPRenderer(library, cfg.TTS)
	if err != nil {
		return nil, nil, err
	}
	return renderer, library, nil
}

func runTTSGenerate(cmd *cobra.Command, args []string) error {
	renderer, _, err := newRenderer()
	if err != nil {
		return err
	}

	audio, err := renderer.Render(cmd.Context(), voice.RenderRequest{Text: args[0]})
	if err != nil {
		return err
	}
	pterm.Success.Printfln("✓ 语音已生成: %s", audio.Handle)
	return nil
}

func runTTSTemplate(cmd *cobra.Command, args []string) error {
	params, err := parseParams(ttsParams)
	if err != nil {
		return err
	}

	renderer, _, err := newRenderer()
	if err != nil {
		return err
	}

	audio, err := renderer.Render(cmd.Context(), voice.RenderRequest{
		Template: args[0],
		Params:   params,
	})
	if err != nil {
		return err
	}
	pterm.Println(pterm.Gray("生成内容: " + audio.Text))
	pterm.Success.Printfln("✓ 语音已生成: %s", audio.Handle)
	return nil
}

func runTTSTemplates(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	library := voice.NewLibrary()
	if cfg.TTS.TemplatesPath != "" {
		if err := library.LoadFile(cfg.TTS.TemplatesPath); err != nil {
			return err
		}
	}

	table := pterm.TableData{{"名称", "说明"}}
	for _, name := range library.Names() {
		t, err := library.Get(name)
		if err != nil {
			return err
		}
		table = append(table, []string{t.Name, t.Description})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
}
