// Command riskengine is the CLI front end for the wallet risk
// intelligence pipeline: a one-shot analyze command, a batch command,
// and a cron-scheduled watch command, adapted from the teacher's
// long-running tracker daemon (cmd/tracker/main.go) into the one-shot
// and periodic-batch shapes spec.md §6 calls for.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonez/tablewriter"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/riskengine/walletrisk/pkg/bridge"
	"github.com/riskengine/walletrisk/pkg/chain"
	"github.com/riskengine/walletrisk/pkg/community"
	"github.com/riskengine/walletrisk/pkg/config"
	"github.com/riskengine/walletrisk/pkg/fetchadapter"
	"github.com/riskengine/walletrisk/pkg/labels"
	"github.com/riskengine/walletrisk/pkg/orchestrator"
	"github.com/riskengine/walletrisk/pkg/riskreport"
	"github.com/riskengine/walletrisk/pkg/sanctions"
)

var watchInterval string

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()

	root := &cobra.Command{
		Use:   "riskengine",
		Short: "wallet risk intelligence engine",
	}
	root.AddCommand(analyzeCmd(), batchCmd(), watchCmd())

	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

func analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <address>",
		Short: "score a single wallet and print its risk report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, cfg, err := buildOrchestrator()
			if err != nil {
				return err
			}
			target, err := chain.ParseAddress(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := withSignals(context.Background())
			defer cancel()

			report, err := o.AnalyzeWallet(ctx, target, cfg.ChainID)
			if err != nil {
				return err
			}
			printReport(report)
			return nil
		},
	}
}

func batchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batch <address> [address...]",
		Short: "score a list of wallets concurrently",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, cfg, err := buildOrchestrator()
			if err != nil {
				return err
			}
			addresses := make([]chain.Address, 0, len(args))
			for _, raw := range args {
				a, err := chain.ParseAddress(raw)
				if err != nil {
					return err
				}
				addresses = append(addresses, a)
			}

			ctx, cancel := withSignals(context.Background())
			defer cancel()

			results := o.AnalyzeBatch(ctx, addresses, cfg.ChainID)
			printBatchSummary(results)
			return nil
		},
	}
}

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <address> [address...]",
		Short: "re-score a watchlist on a cron schedule until interrupted",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, cfg, err := buildOrchestrator()
			if err != nil {
				return err
			}
			addresses := make([]chain.Address, 0, len(args))
			for _, raw := range args {
				a, err := chain.ParseAddress(raw)
				if err != nil {
					return err
				}
				addresses = append(addresses, a)
			}

			ctx, cancel := withSignals(context.Background())
			defer cancel()

			run := func() {
				results := o.AnalyzeBatch(ctx, addresses, cfg.ChainID)
				printBatchSummary(results)
			}

			c := cron.New()
			if _, err := c.AddFunc(watchInterval, run); err != nil {
				return fmt.Errorf("invalid --interval cron spec: %w", err)
			}
			log.Info().Str("interval", watchInterval).Int("addresses", len(addresses)).Msg("watch started")
			run()
			c.Start()
			<-ctx.Done()
			c.Stop()
			log.Info().Msg("watch stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&watchInterval, "interval", "@every 15m", "cron schedule for re-scoring the watchlist")
	return cmd
}

// withSignals mirrors the teacher's SIGINT/SIGTERM cancellation idiom
// from cmd/tracker/main.go, scoped to a single command invocation.
func withSignals(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			log.Info().Msg("shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func buildOrchestrator() (*orchestrator.Orchestrator, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config load failed: %w", err)
	}

	remote := fetchadapter.NewEtherscanClient(cfg.ExplorerBase, cfg.APIKey, cfg.RemoteCallTO)
	rateInterval := time.Duration(cfg.RateLimitSeconds * float64(time.Second))
	fetcher := fetchadapter.New(remote, cfg.CacheDir, rateInterval, time.Duration(cfg.CacheTTLSeconds)*time.Second)

	labelRegistry := labels.New()
	sanctionsEngine := sanctions.New(labelRegistry)
	bridgeRegistry := bridge.New()

	journal, err := community.Open(cfg.CommunityDir)
	if err != nil {
		log.Warn().Err(err).Msg("community journal unavailable, continuing without it")
		journal = nil
	}

	o := orchestrator.New(cfg, fetcher, labelRegistry, sanctionsEngine, bridgeRegistry, journal)
	return o, cfg, nil
}

func labelColor(label riskreport.Label) *color.Color {
	switch label {
	case riskreport.LabelCritical:
		return color.New(color.FgRed, color.Bold)
	case riskreport.LabelHigh:
		return color.New(color.FgRed)
	case riskreport.LabelMedium:
		return color.New(color.FgYellow)
	case riskreport.LabelLow:
		return color.New(color.FgGreen)
	default:
		return color.New(color.FgWhite)
	}
}

func printReport(r riskreport.RiskReport) {
	c := labelColor(r.RiskLabel)
	fmt.Println(strings.Repeat("─", 60))
	fmt.Printf("  %s   %s\n", r.Address, c.Sprintf("%s (%d/100)", r.RiskLabel, r.RiskScore))
	fmt.Println(strings.Repeat("─", 60))
	fmt.Printf("  ml_raw_score: %d   heuristic_score: %d   balance: %.4f ETH\n", r.MLRawScore, r.HeuristicScore, r.Balance)
	fmt.Printf("  tx_count: %d   neighbors_analyzed: %d\n", r.TxCount, r.NeighborsAnalyzed)

	if len(r.Flags) > 0 {
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Flag"})
		for _, f := range r.Flags {
			table.Append([]string{f})
		}
		table.Render()
	}

	if len(r.Counterparties) > 0 {
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Counterparty", "Label", "Total (ETH)", "Txs"})
		for _, cp := range r.Counterparties {
			label := cp.Label
			if label == "" {
				label = "-"
			}
			table.Append([]string{string(cp.Address), label, fmt.Sprintf("%.4f", cp.TotalValue), fmt.Sprintf("%d", cp.TxCount)})
		}
		table.Render()
	}
}

func printBatchSummary(results []orchestrator.BatchResult) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Address", "Label", "Score", "Error"})
	for _, r := range results {
		if r.Err != nil {
			table.Append([]string{string(r.Address), "-", "-", r.Err.Error()})
			continue
		}
		c := labelColor(r.Report.RiskLabel)
		table.Append([]string{string(r.Address), c.Sprint(string(r.Report.RiskLabel)), fmt.Sprintf("%d", r.Report.RiskScore), ""})
	}
	table.Render()
}
