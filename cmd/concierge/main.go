package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"concierge-gateway/client/concierge"
	"concierge-gateway/client/cooldown"
	"concierge-gateway/client/toast"
	"concierge-gateway/client/tui"
	"concierge-gateway/client/widget"
	"concierge-gateway/contract"
	"concierge-gateway/logging"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd(os.Stdout).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "concierge:", err)
		os.Exit(1)
	}
}

type options struct {
	url     string
	token   string
	prompt  string
	verbose bool
}

func readOptions(v *viper.Viper, args []string) (options, error) {
	o := options{
		url:     strings.TrimSpace(v.GetString("url")),
		token:   strings.TrimSpace(v.GetString("token")),
		prompt:  strings.TrimSpace(strings.Join(args, " ")),
		verbose: v.GetBool("verbose"),
	}
	if o.prompt == "" {
		o.prompt = strings.TrimSpace(v.GetString("prompt"))
	}
	if o.url == "" {
		return options{}, errors.New("CONCIERGE_URL is required")
	}
	if o.prompt == "" {
		return options{}, errors.New("a prompt is required")
	}
	return o, nil
}

func newRootCmd(out io.Writer) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("CONCIERGE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:          "concierge [prompt]",
		Short:        "Ask the AI concierge from the terminal",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := readOptions(v, args)
			if err != nil {
				return err
			}
			return runTUI(cmd.Context(), o)
		},
	}

	pf := root.PersistentFlags()
	pf.String("url", "http://localhost:8080", "gateway base URL")
	pf.String("token", "", "bearer token")
	pf.String("prompt", "", "prompt to send")
	pf.BoolP("verbose", "v", false, "debug logging")
	for _, name := range []string{"url", "token", "prompt", "verbose"} {
		_ = v.BindPFlag(name, pf.Lookup(name))
	}

	root.AddCommand(newAskCmd(v, out))
	return root
}

func newAskCmd(v *viper.Viper, out io.Writer) *cobra.Command {
	var html bool
	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Send one request and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := readOptions(v, args)
			if err != nil {
				return err
			}
			return runAsk(cmd.Context(), o, html, out)
		},
	}
	cmd.Flags().BoolVar(&html, "html", false, "print the widget markup instead of plain text")
	return cmd
}

func newController(o options) (*cooldown.Controller, *zap.Logger, error) {
	logger, err := logging.NewCLI("concierge", o.verbose)
	if err != nil {
		return nil, nil, err
	}
	reg := cooldown.NewRegistry(cooldown.WithLogger(logger))
	return reg.For(contract.FamilyConcierge), logger, nil
}

func runTUI(ctx context.Context, o options) error {
	ctrl, logger, err := newController(o)
	if err != nil {
		return err
	}
	defer ctrl.Close()
	defer func() { _ = logger.Sync() }()

	stack := toast.NewStack()
	binding := toast.Bind(ctx, stack, ctrl)
	defer binding.Close()

	client := concierge.New(o.url, o.token)
	m := tui.New(ctx, ctrl, stack, o.prompt, client.Ask(o.prompt))
	defer m.Close()

	_, err = tea.NewProgram(m).Run()
	return err
}

func runAsk(ctx context.Context, o options, html bool, out io.Writer) error {
	ctrl, logger, err := newController(o)
	if err != nil {
		return err
	}
	defer ctrl.Close()
	defer func() { _ = logger.Sync() }()

	stack := toast.NewStack()
	binding := toast.Bind(ctx, stack, ctrl)
	defer binding.Close()

	client := concierge.New(o.url, o.token)
	res, err := ctrl.Trigger(ctx, client.Ask(o.prompt))
	if err != nil {
		return err
	}

	if html {
		markup, err := widget.Render(ctrl.Snapshot(), stack.Visible())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, markup)
		return err
	}

	switch res.Kind {
	case cooldown.OutcomeSuccess:
		_, err = fmt.Fprintln(out, res.Answer)
		return err
	case cooldown.OutcomeRateLimited:
		return errors.New(cooldown.CooldownMessage(contract.CeilSeconds(res.RetryAfter)))
	default:
		return errors.New(ctrl.Snapshot().State.Message)
	}
}
