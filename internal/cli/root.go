package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/antihoax/internal/config"
)

// Version is overridden at build time via -ldflags
var Version = "v0.1.0"

var (
	cfgFile string
	verbose bool

	cfg     *config.Config
	cfgUsed string
	logger  *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "antihoax",
	Short: "Antihoax - misinformation triage for news text",
	Long: `Antihoax classifies short news texts as likely hoax, likely fact,
or needing human review.

It asks an AI provider for a structured judgement and falls back to a
keyword heuristic when the provider is disabled, unconfigured or failing.
Every answer is a preliminary signal for triage, not a fact check.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, used, err := config.Load(cfgFile)
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		if verbose {
			c.Log.Level = "debug"
			c.Log.Format = "console"
		}
		if err := c.Validate(); err != nil {
			return err
		}

		l, err := config.NewLogger(c.Log)
		if err != nil {
			return eris.Wrap(err, "init logger")
		}
		zap.ReplaceGlobals(l)

		cfg, cfgUsed, logger = c, used, l
		if used != "" {
			logger.Debug("using config file", zap.String("path", used))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// contextWithTimeout derives a context from the command, bounded by d when d > 0
func contextWithTimeout(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "antihoax %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml or $HOME/.antihoax/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose console logging")

	rootCmd.AddCommand(versionCmd)
}
