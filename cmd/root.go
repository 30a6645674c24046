// Package cmd provides the root command and CLI setup for jarvis.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/livngcorpse/jarvis/internal/controller"
	"github.com/livngcorpse/jarvis/internal/domain"
	m "github.com/livngcorpse/jarvis/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var selfModifier domain.SelfModifier
var ui controller.UI

// closers are released after a command finishes.
var closers []func() error

// projectRootFlag is a root-level flag naming the project that is modified.
var projectRootFlag string

// verboseFlag forces debug logging.
var verboseFlag bool

// restartAnnotation lets a command pick how a full restart is carried out
// when restart.mode is not configured.
const restartAnnotation = "jarvis/restart-mode"

const rootLongDescription = `Jarvis applies generated code changes to a running project safely.

Every change is checked against the project sandbox, backed up, staged,
syntax-checked, linted and tested before it touches the live tree. After
committing, jarvis decides whether the change can be picked up by reloading
or needs a full process restart (exit code 42 for critical files, 43 for
dependency changes).`

// rootCmd represents the base command when called without any subcommands.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "jarvis",
		Short:         "Self-modification pipeline for running projects",
		Long:          rootLongDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setup(cmd)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return teardown()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	configureRootFlags(cmd)

	return cmd
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().
		StringVarP(
			&projectRootFlag, projectRootFlagName, "C",
			viper.GetString(projectRootKey),
			"project root that changes are applied to",
		)
	bindFlagToConfig(cmd.PersistentFlags().Lookup(projectRootFlagName), projectRootKey)

	cmd.PersistentFlags().BoolVarP(&verboseFlag, verboseFlagName, "v", false, "log at debug level")
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// setup builds the shared dependencies unless a test already injected them.
func setup(cmd *cobra.Command) error {
	if ui == nil {
		ui = controller.NewUI(cmd.OutOrStdout(), controller.IsTTY(os.Stdout))
	}

	if selfModifier != nil || !needsPipeline(cmd) {
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	built, err := buildSelfModifier(ctx, restartModeFor(cmd))
	if err != nil {
		return err
	}

	selfModifier = built

	return nil
}

func teardown() error {
	var errs []error
	for _, closeFn := range closers {
		errs = append(errs, closeFn())
	}

	closers = nil

	return errors.Join(errs...)
}

func needsPipeline(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "init", "version", "help", "log":
		return false
	}

	return cmd.HasParent()
}

func restartModeFor(cmd *cobra.Command) domain.RestartMode {
	mode := viper.GetString(restartModeKey)
	if mode == "" {
		mode = cmd.Annotations[restartAnnotation]
	}

	if domain.RestartMode(mode) == domain.RestartExec {
		return domain.RestartExec
	}

	return domain.RestartExit
}

// finishOutcome shows an outcome, carries out a requested restart, and turns
// failed runs into a non-zero exit status.
func finishOutcome(cmd *cobra.Command, outcome m.RequestOutcome) error {
	ctx := cmd.Context()

	if err := ui.DisplayOutcome(ctx, outcome); err != nil {
		return err
	}

	if outcome.RestartRequired {
		if err := teardown(); err != nil {
			return err
		}

		return selfModifier.Restart(ctx, outcome)
	}

	switch outcome.Status {
	case m.StatusError, m.StatusDegraded:
		return fmt.Errorf("run %s finished with status %s", outcome.RunID, outcome.Status)
	default:
		return nil
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)

	stop()

	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
