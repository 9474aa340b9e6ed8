package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-views/pkg/orchestrator"
	pkgviews "github.com/goliatone/go-views/pkg/views"
)

var errAborted = errors.New("viewsctl: aborted")

// inlineView names the template compiled from --inline.
const inlineView = "_inline"

var renderCmd = &cobra.Command{
	Use:   "render [view]",
	Short: "Render a view to stdout",
	Long: `Render streams a view to stdout chunk by chunk. Without a view name and
with a terminal attached, the view is picked interactively. --inline renders
a template source given on the command line; it may include or extend the
templates of the configured directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRender,
}

func init() {
	renderCmd.Flags().String("data", "", "YAML file with the template model")
	renderCmd.Flags().StringArray("set", nil, "Model value as key=value, applied over --data (repeatable)")
	renderCmd.Flags().String("locale", "", "Locale for translations")
	renderCmd.Flags().String("theme", "", "Theme name")
	renderCmd.Flags().String("variant", "", "Theme variant")
	renderCmd.Flags().String("inline", "", "Render this template source instead of a named view")
	renderCmd.Flags().StringP("output", "o", "", "Write to file instead of stdout")
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	_, logger, engine, err := setup(cmd)
	if err != nil {
		return err
	}

	var view string
	if src, _ := cmd.Flags().GetString("inline"); src != "" {
		if len(args) == 1 {
			return errors.New("render: --inline and a view name are exclusive")
		}
		view = inlineView
		if err := engine.AddTemplate(view, src); err != nil {
			return err
		}
	} else if len(args) == 1 {
		view = args[0]
	} else {
		if !interactive(cmd) {
			return errors.New("render: a view name is required")
		}
		if view, err = pickView(engine.Views()); err != nil {
			return err
		}
	}

	vc, err := requestContext(cmd)
	if err != nil {
		return err
	}
	theme, _ := cmd.Flags().GetString("theme")
	variant, _ := cmd.Flags().GetString("variant")

	var w io.Writer = cmd.OutOrStdout()
	if out, _ := cmd.Flags().GetString("output"); out != "" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	ctx := cmd.Context()
	s := engine.Orchestrator().RenderStream(ctx, orchestrator.Request{
		View:         view,
		Context:      vc,
		ThemeName:    theme,
		ThemeVariant: variant,
	})
	defer s.Close()

	n, err := s.WriteTo(w)
	if err != nil {
		return fmt.Errorf("render %s: %w", view, err)
	}
	logger.Debug("rendered view", "view", view, "bytes", n)
	return nil
}

// requestContext builds the render input from --data, --set and --locale.
func requestContext(cmd *cobra.Command) (*pkgviews.Context, error) {
	model := map[string]any{}
	if file, _ := cmd.Flags().GetString("data"); file != "" {
		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("render: read data: %w", err)
		}
		if err := yaml.Unmarshal(raw, &model); err != nil {
			return nil, fmt.Errorf("render: parse data: %w", err)
		}
		if model == nil {
			model = map[string]any{}
		}
	}
	pairs, _ := cmd.Flags().GetStringArray("set")
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("render: --set %q must be key=value", pair)
		}
		model[key] = value
	}

	vc := pkgviews.New(model)
	if locale, _ := cmd.Flags().GetString("locale"); locale != "" {
		vc.I18n = &pkgviews.I18n{Locale: locale}
	}
	return vc, nil
}

func interactive(cmd *cobra.Command) bool {
	in, ok := cmd.InOrStdin().(*os.File)
	return ok && term.IsTerminal(int(in.Fd()))
}

func pickView(names []string) (string, error) {
	if len(names) == 0 {
		return "", errors.New("render: no views found")
	}
	var out string
	prompt := &survey.Select{
		Message:  "View:",
		Options:  names,
		PageSize: 15,
	}
	if err := survey.AskOne(prompt, &out); err != nil {
		if errors.Is(err, terminal.InterruptErr) {
			return "", errAborted
		}
		return "", err
	}
	return out, nil
}
