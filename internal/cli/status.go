package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ppiankov/antihoax/internal/client"
	"github.com/ppiankov/antihoax/internal/model"
)

var (
	statusRemote  bool
	statusAPIURL  string
	statusJSON    bool
	statusTimeout time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report the state of the AI provider and cache",
	Long: `Status probes the configured dependencies in-process, or asks a
running server with --remote.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := contextWithTimeout(cmd, statusTimeout)
		defer cancel()

		var st *model.ServiceStatus
		if statusRemote {
			c, err := client.New(apiURL(statusAPIURL))
			if err != nil {
				return err
			}
			if st, err = c.Status(ctx); err != nil {
				return eris.Wrap(err, "fetch status")
			}
		} else {
			svc, err := buildService(ctx, cfg, logger)
			if err != nil {
				return err
			}
			local := svc.Status(ctx)
			st = &local
		}

		out := cmd.OutOrStdout()
		if statusJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		}

		fmt.Fprintf(out, "Overall: %s (%s)\n", st.OverallStatus, st.Timestamp.Format(time.RFC3339))
		for _, d := range st.Dependencies {
			fmt.Fprintf(out, "  %-16s %-6s %s\n", d.Name, d.Status, d.Message)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusRemote, "remote", false, "query a running server instead of probing locally")
	statusCmd.Flags().StringVar(&statusAPIURL, "api-url", "", "server base URL (default: dataset.api_url)")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the report as JSON")
	statusCmd.Flags().DurationVar(&statusTimeout, "timeout", 30*time.Second, "probe timeout")
	rootCmd.AddCommand(statusCmd)
}

// apiURL picks the flag value, falling back to configuration
func apiURL(flag string) string {
	if flag != "" {
		return flag
	}
	return cfg.Dataset.APIURL
}
