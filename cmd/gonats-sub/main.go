package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nats-lite/gonats-core/internal/app"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	natsURL     string
	configPath  string
	queue       string
	metricsAddr string
)

var rootCmd = &cobra.Command{
	Use:   "gonats-sub SUBJECT",
	Short: "Subscribe to a NATS subject and watch messages arrive",
	Long:  `A terminal monitor for a single NATS subject: subscribes, decodes frames off the wire, and renders message throughput and previews live.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.Run(app.Options{
			ServerURL:   natsURL,
			ConfigPath:  configPath,
			Subject:     args[0],
			Queue:       queue,
			MetricsAddr: metricsAddr,
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gonats-sub version %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&natsURL, "server", "s", "", "NATS server URL (overrides config file)")
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path")
	rootCmd.Flags().StringVarP(&queue, "queue", "q", "", "Queue group name (empty for a non-queue subscription)")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Address to serve Prometheus metrics on, e.g. :9090 (disabled if empty)")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
