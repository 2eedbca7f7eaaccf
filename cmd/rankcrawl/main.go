package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/amosWeiskopf/rankcrawl/internal/app"
	"github.com/amosWeiskopf/rankcrawl/internal/config"
	"github.com/amosWeiskopf/rankcrawl/internal/logging"
	"github.com/amosWeiskopf/rankcrawl/pkg/reporter"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// exitInterrupted is the conventional status for a run stopped by SIGINT
const exitInterrupted = 130

var rootCmd = &cobra.Command{
	Use:   "rankcrawl",
	Short: "rankcrawl - breadth-first crawler with PageRank",
	Long: `rankcrawl crawls the web breadth-first from a seed URL, honours robots.txt,
and prints either the visited URLs or their PageRank over the discovered link graph.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var crawlCmd = &cobra.Command{
	Use:   "crawl [URL]",
	Short: "Crawl from a seed URL and print visited or ranked URLs",
	Args:  cobra.ExactArgs(1),
	RunE:  runCrawl,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), rootCmd.Version)
	},
}

// flagKeys maps crawl flags to configuration keys
var flagKeys = map[string]string{
	"target":         "crawler.target",
	"workers":        "crawler.workers",
	"mode":           "crawler.mode",
	"scope":          "crawler.scope",
	"user-agent":     "crawler.user_agent",
	"rps":            "crawler.requests_per_second",
	"titles":         "crawler.extract_titles",
	"ignore-robots":  "robots.respect",
	"fail-closed":    "robots.fail_closed",
	"damping":        "rank.damping",
	"max-iterations": "rank.max_iterations",
	"tolerance":      "rank.tolerance",
	"rank-scope":     "rank.scope",
	"format":         "output.format",
	"top":            "output.top",
	"exclude-seed":   "output.exclude_seed",
	"export-db":      "storage.export_path",
	"metrics-file":   "metrics.textfile_path",
	"log-level":      "logging.level",
	"log-format":     "logging.format",
}

func runCrawl(cmd *cobra.Command, args []string) error {
	v := viper.New()
	if err := bindFlags(v, cmd.Flags()); err != nil {
		return err
	}
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(v, configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := app.New(cfg, logger, app.WithOutput(cmd.OutOrStdout(), cmd.ErrOrStderr()))
	_, err = a.Crawl(ctx, args[0])
	return err
}

// bindFlags binds every crawl flag to its configuration key. --ignore-robots
// is inverted into robots.respect.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		if name == "ignore-robots" {
			continue
		}
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	if ignore, _ := flags.GetBool("ignore-robots"); ignore {
		v.Set("robots.respect", false)
	}
	return nil
}

func init() {
	f := crawlCmd.Flags()
	f.Int("target", 100, "Number of unique URLs to visit")
	f.Int("workers", 5, "Number of concurrent workers")
	f.String("mode", "basic", "Output mode (basic, pagerank)")
	f.String("scope", "any", "Links to follow (any, host, site)")
	f.String("user-agent", "rankcrawl/1.0", "User agent sent with every request")
	f.Float64("rps", 0, "Global request rate limit per second (0 = unlimited)")
	f.Bool("titles", false, "Extract page titles with trafilatura for the graph export")
	f.Bool("ignore-robots", false, "Do not fetch or honour robots.txt")
	f.Bool("fail-closed", false, "Deny a host whose robots.txt cannot be fetched")
	f.Float64("damping", 0.85, "PageRank damping factor")
	f.Int("max-iterations", 200, "PageRank iteration cap")
	f.Float64("tolerance", 0.001, "PageRank L1 convergence tolerance")
	f.String("rank-scope", "all", "Nodes to rank (all, visited)")
	f.String("format", "text", "Report format ("+strings.Join(reporter.Formats, ", ")+")")
	f.Int("top", 0, "Only print the top N ranked URLs (0 = all)")
	f.Bool("exclude-seed", false, "Leave the seed URL out of the ranked listing")
	f.String("export-db", "", "Write the link graph to this SQLite file")
	f.String("metrics-file", "", "Write Prometheus metrics to this file when the run ends")

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Config file path")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.String("log-format", "console", "Log format (console, json)")

	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if app.IsInterrupted(err) {
			os.Exit(exitInterrupted)
		}
		if errors.Is(err, config.ErrInvalidConfig) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
