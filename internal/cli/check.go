package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ppiankov/antihoax/internal/dataset"
	"github.com/ppiankov/antihoax/internal/model"
	"github.com/ppiankov/antihoax/internal/verify"
)

var (
	checkFile    string
	checkURL     string
	checkSource  string
	checkJSON    bool
	checkSimilar bool
	checkTimeout time.Duration
)

// checkCmd classifies one text without starting the server
var checkCmd = &cobra.Command{
	Use:   "check [text]",
	Short: "Classify a single text or URL",
	Long: `Check runs one classification in-process and prints the verdict.

Example:
  antihoax check "BREAKING!!! Vaksin mengandung chip 5G, share sebelum dihapus!"
  antihoax check --file article.txt --json
  antihoax check --url https://example.com/news/123 --similar`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&checkFile, "file", "", "read text from file")
	checkCmd.Flags().StringVar(&checkURL, "url", "", "fetch and classify a web page")
	checkCmd.Flags().StringVar(&checkSource, "source", "", "optional source label")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "print the response envelope as JSON")
	checkCmd.Flags().BoolVar(&checkSimilar, "similar", false, "show the closest sample from the dataset")
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", time.Minute, "overall check timeout")
}

func runCheck(cmd *cobra.Command, args []string) error {
	req, err := checkRequest(args)
	if err != nil {
		return err
	}

	svc, err := buildService(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := contextWithTimeout(cmd, checkTimeout)
	defer cancel()

	env := svc.Evaluate(ctx, req)

	out := cmd.OutOrStdout()
	if checkJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(env); err != nil {
			return eris.Wrap(err, "encode result")
		}
	} else {
		printVerdict(cmd, env)
	}

	if checkSimilar && req.Type == verify.TypeText {
		if err := printSimilar(cmd, req.Text); err != nil {
			return err
		}
	}

	if !env.Success {
		return eris.Errorf("classification failed: %s", env.Data.ErrorMessage)
	}
	return nil
}

func checkRequest(args []string) (verify.Request, error) {
	req := verify.Request{Type: verify.TypeText, Source: checkSource}

	switch {
	case checkURL != "":
		req.Type = verify.TypeURL
		req.Text = checkURL
	case checkFile != "":
		data, err := os.ReadFile(checkFile)
		if err != nil {
			return req, eris.Wrapf(err, "read %s", checkFile)
		}
		req.Text = string(data)
		if req.Source == "" {
			req.Source = checkFile
		}
	case len(args) == 1:
		req.Text = args[0]
	default:
		return req, eris.New("provide text as an argument, or use --file or --url")
	}
	return req, nil
}

func printVerdict(cmd *cobra.Command, env model.Envelope) {
	out := cmd.OutOrStdout()
	v := env.Data

	fmt.Fprintf(out, "Status:     %s\n", v.Status())
	fmt.Fprintf(out, "Confidence: %.2f\n", v.Confidence)
	fmt.Fprintf(out, "Category:   %s\n", v.Category)
	fmt.Fprintf(out, "Analyzed by %s (%s)\n", v.Provider, v.Kind)
	if v.Summary != "" {
		fmt.Fprintf(out, "\n%s\n", v.Summary)
	}
	if len(v.Indicators) > 0 {
		fmt.Fprintln(out, "\nIndicators:")
		for _, ind := range v.Indicators {
			fmt.Fprintf(out, "  - %s\n", ind)
		}
	}
	if v.Reasoning != "" {
		fmt.Fprintf(out, "\nReasoning: %s\n", v.Reasoning)
	}
	if v.FallbackReason != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "\nNote: heuristic fallback used. %s\n", v.FallbackReason)
	}
	if v.ErrorMessage != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "\nError: %s\n", v.ErrorMessage)
	}
}

func printSimilar(cmd *cobra.Command, text string) error {
	ds, err := loadDataset()
	if err != nil {
		return err
	}
	m := ds.FindSimilar(text)
	out := cmd.OutOrStdout()
	if m == nil {
		fmt.Fprintln(out, "\nNo similar sample in the dataset.")
		return nil
	}
	fmt.Fprintf(out, "\nClosest sample: %s [%s] score %.2f\n", m.ID, m.Group, m.Score)
	fmt.Fprintf(out, "  %s\n", truncate(m.Text, 120))
	if len(m.MatchedWords) > 0 {
		fmt.Fprintf(out, "  shared words: %s\n", strings.Join(m.MatchedWords, ", "))
	}
	return nil
}

func loadDataset() (*dataset.Dataset, error) {
	if cfg.Dataset.Path == "" {
		return dataset.Default(), nil
	}
	return dataset.Load(cfg.Dataset.Path)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
