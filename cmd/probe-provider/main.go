// Probe the configured AI provider with a few labeled samples.
// Shows the health check and the raw verdict for one sample of each group.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/antihoax/internal/config"
	"github.com/ppiankov/antihoax/internal/dataset"
	"github.com/ppiankov/antihoax/internal/llm"
)

func main() {
	fmt.Println("=== AI Provider Probe ===")
	fmt.Println()

	cfg, used, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if used != "" {
		fmt.Printf("Config: %s\n", used)
	}

	llmCfg := cfg.AI.LLMConfig()
	provider, err := llm.NewProvider(llmCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create provider: %v\n", err)
		os.Exit(1)
	}
	analyzer := llm.NewAnalyzer(provider, llmCfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	modelName := llmCfg.Model
	if modelName == "" {
		modelName = "provider default"
	}
	fmt.Printf("Provider: %s (model %s)\n", analyzer.Name(), modelName)
	fmt.Println(strings.Repeat("-", 60))

	health := analyzer.HealthCheck(ctx)
	if health.Status != llm.HealthOK {
		fmt.Printf("  ✗ Health check failed: %s\n", health.Message)
		os.Exit(1)
	}
	fmt.Printf("  ✓ %s\n", health.Message)
	if health.Reply != "" {
		fmt.Printf("    reply: %q\n", health.Reply)
	}
	fmt.Println()

	picked := map[string]bool{}
	for _, c := range dataset.Default().Cases() {
		if picked[c.Group] {
			continue
		}
		picked[c.Group] = true

		fmt.Printf("Sample %s [%s], expected %s\n", c.ID, c.Group, c.ExpectedStatus)
		start := time.Now()
		v, err := analyzer.Analyze(ctx, c.Text, "text")
		if err != nil {
			fmt.Printf("  ✗ %v\n\n", err)
			continue
		}
		if v.Failed() {
			fmt.Printf("  ✗ %s: %s\n\n", v.Category, v.ErrorMessage)
			continue
		}
		fmt.Printf("  → %s (confidence %.2f, %s) in %s\n", v.Status(), v.Confidence, v.Category, time.Since(start).Round(time.Millisecond))
		for _, ind := range v.Indicators {
			fmt.Printf("     - %s\n", ind)
		}
		fmt.Println()
	}

	fmt.Println("=== Probe Complete ===")
	fmt.Println("\nNote: a single verdict is a preliminary signal, not a fact check.")
}
