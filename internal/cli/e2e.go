package cli

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/antihoax/internal/client"
	"github.com/ppiankov/antihoax/internal/ratelimit"
	"github.com/ppiankov/antihoax/internal/worker"
)

var (
	e2eRemote      bool
	e2eAPIURL      string
	e2eDataset     string
	e2eConcurrency int
	e2eMinAccuracy float64
	e2eRPS         float64
	e2eDelay       time.Duration
	e2eMaxErrors   int
	e2eTimeout     time.Duration
)

// e2eCmd runs every dataset sample and checks the verdicts against their labels
var e2eCmd = &cobra.Command{
	Use:   "e2e",
	Short: "Run the labeled dataset and report accuracy",
	Long: `E2e classifies every sample of the dataset and compares the verdict
with the expected label. A case passes when the request succeeds and the
label is acceptable: "hoax" and "fact" must match exactly, "needs_review"
samples accept any label.

The run fails when the pass rate is below --min-accuracy.

Example:
  antihoax e2e
  antihoax e2e --remote --api-url http://localhost:3001 --rps 0.5 --delay 2s --max-errors 3
  antihoax e2e --dataset ./samples.yaml --min-accuracy 0.8`,
	Args: cobra.NoArgs,
	RunE: runE2E,
}

func init() {
	rootCmd.AddCommand(e2eCmd)

	e2eCmd.Flags().BoolVar(&e2eRemote, "remote", false, "post cases to a running server")
	e2eCmd.Flags().StringVar(&e2eAPIURL, "api-url", "", "server base URL (default: dataset.api_url)")
	e2eCmd.Flags().StringVar(&e2eDataset, "dataset", "", "dataset file, JSON or YAML (default: dataset.path or built-in samples)")
	e2eCmd.Flags().IntVar(&e2eConcurrency, "concurrency", 0, "parallel cases (default: dataset.concurrency)")
	e2eCmd.Flags().Float64Var(&e2eMinAccuracy, "min-accuracy", 0, "required pass rate (default: dataset.min_accuracy)")
	e2eCmd.Flags().Float64Var(&e2eRPS, "rps", 1, "remote requests per second")
	e2eCmd.Flags().DurationVar(&e2eDelay, "delay", 0, "extra pause after each remote request slot")
	e2eCmd.Flags().IntVar(&e2eMaxErrors, "max-errors", 0, "abort after this many failed requests (0: never)")
	e2eCmd.Flags().DurationVar(&e2eTimeout, "timeout", 10*time.Minute, "overall run timeout")
}

func runE2E(cmd *cobra.Command, args []string) error {
	if e2eDataset != "" {
		cfg.Dataset.Path = e2eDataset
	}
	ds, err := loadDataset()
	if err != nil {
		return err
	}

	concurrency := cfg.Dataset.Concurrency
	if e2eConcurrency > 0 {
		concurrency = e2eConcurrency
	}
	minAccuracy := cfg.Dataset.MinAccuracy
	if e2eMinAccuracy > 0 {
		minAccuracy = e2eMinAccuracy
	}
	if minAccuracy <= 0 {
		minAccuracy = worker.DefaultMinAccuracy
	}

	ctx, cancel := contextWithTimeout(cmd, e2eTimeout)
	defer cancel()

	var verifier worker.Verifier
	target := "in-process service"
	if e2eRemote {
		base := apiURL(e2eAPIURL)
		c, err := client.New(base,
			client.WithLimiter(ratelimit.NewLimiter(e2eRPS, 1)),
			client.WithDelay(e2eDelay),
		)
		if err != nil {
			return err
		}
		if _, err := c.Health(ctx); err != nil {
			return eris.Wrapf(err, "server at %s is not reachable", base)
		}
		verifier = &worker.RemoteVerifier{Client: c}
		target = base
	} else {
		svc, err := buildService(ctx, cfg, logger)
		if err != nil {
			return err
		}
		verifier = &worker.LocalVerifier{Service: svc}
	}

	cases := ds.Cases()
	errOut := cmd.ErrOrStderr()
	fmt.Fprintf(errOut, "Running %d cases against %s (concurrency %d)\n\n", len(cases), target, concurrency)

	start := time.Now()
	summary := worker.NewBatchRunner(verifier, concurrency, logger).WithMaxErrors(e2eMaxErrors).Run(ctx, cases)

	out := cmd.OutOrStdout()
	for _, r := range summary.Results {
		switch {
		case r.Error != nil:
			fmt.Fprintf(out, "ERROR  [%s] %s: %v\n", r.Case.Group, r.Case.ID, r.Error)
		case r.Passed:
			fmt.Fprintf(out, "PASSED [%s] %s: expected %s, got %s\n", r.Case.Group, r.Case.ID, r.Expected, r.Got)
		default:
			fmt.Fprintf(out, "FAILED [%s] %s: expected %s, got %s\n", r.Case.Group, r.Case.ID, r.Expected, r.Got)
			if r.Envelope != nil && !r.Envelope.Success {
				fmt.Fprintf(out, "         %s\n", r.Envelope.Data.ErrorMessage)
			}
		}
	}

	fmt.Fprintf(out, "\nResults: %d passed, %d failed out of %d\n", summary.Passed, summary.Failed, summary.Total)
	fmt.Fprintf(out, "Success rate: %.1f%% (required %.1f%%), took %s\n",
		summary.Accuracy()*100, minAccuracy*100, time.Since(start).Round(time.Millisecond))

	logger.Info("e2e run finished",
		zap.Int("total", summary.Total),
		zap.Int("passed", summary.Passed),
		zap.Int("errors", summary.Errors),
		zap.Float64("accuracy", summary.Accuracy()),
	)

	if !summary.Succeeded(minAccuracy) {
		return eris.Errorf("accuracy %.2f below required %.2f", summary.Accuracy(), minAccuracy)
	}
	return nil
}
