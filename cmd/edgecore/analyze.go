package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quantmesh/edgecore/internal/application"
	"github.com/quantmesh/edgecore/internal/conviction"
	"github.com/quantmesh/edgecore/internal/execution"
	"github.com/quantmesh/edgecore/internal/market"
	"github.com/quantmesh/edgecore/internal/risk"
	"github.com/quantmesh/edgecore/internal/signals/footprint"
	"github.com/quantmesh/edgecore/internal/signals/liquidation"
	"github.com/quantmesh/edgecore/internal/signals/regime"
	"github.com/quantmesh/edgecore/internal/signals/volatility"
)

func analyzeCmd() *cobra.Command {
	var statePath string
	var equity float64

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the decision pipeline once against a state snapshot",
		Long: `Reads a market state snapshot from a JSON file, runs conviction,
sizing and execution planning, and prints the decision.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := application.Load(configPath)
			if err != nil {
				return err
			}
			setupLogging(cfg.Logging)
			return analyze(cmd, cfg, statePath, equity)
		},
	}
	cmd.Flags().StringVar(&statePath, "state", "", "path to market state JSON (required)")
	cmd.Flags().Float64Var(&equity, "equity", 10000, "account equity in USD")
	cmd.MarkFlagRequired("state")
	return cmd
}

func analyze(cmd *cobra.Command, cfg application.Config, statePath string, equity float64) error {
	data, err := os.ReadFile(statePath)
	if err != nil {
		return fmt.Errorf("read state: %w", err)
	}
	var state market.State
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("parse state: %w", err)
	}
	if state.Symbol == "" {
		return fmt.Errorf("state snapshot has no symbol")
	}

	store := market.NewStore()
	store.Update(state.Symbol, stateToUpdates(state))

	engine, err := conviction.NewEngine(cfg.Weights)
	if err != nil {
		return err
	}
	pipeline := application.NewPipeline(
		store,
		conviction.NewService(
			store,
			regime.NewClassifier(cfg.Signals.Regime),
			volatility.NewDetector(cfg.Signals.Volatility),
			footprint.NewDetector(cfg.Signals.Footprint),
			liquidation.NewProjector(cfg.Signals.Liquidation, nil),
			engine,
			nil,
		),
		risk.NewService(cfg.Risk),
		execution.NewPlanner(cfg.Execution, nil, nil),
		nil,
	)

	decision, err := pipeline.Decide(cmd.Context(), application.DecideRequest{
		Symbol: state.Symbol,
		Equity: equity,
	})
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(decision, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

// stateToUpdates rebuilds the field set from a full snapshot.
func stateToUpdates(s market.State) market.FieldUpdates {
	u := market.FieldUpdates{
		Price:         &s.Price,
		MarkPrice:     &s.MarkPrice,
		FundingRate:   &s.FundingRate,
		OpenInterest:  &s.OpenInterest,
		OIDelta1m:     &s.OIDelta1m,
		OIDelta5m:     &s.OIDelta5m,
		PriceDelta1m:  &s.PriceDelta1m,
		CVDFutures:    &s.CVDFutures,
		CVDSpot:       &s.CVDSpot,
		CVDDelta1m:    &s.CVDDelta1m,
		AggBuyVol1m:   &s.AggBuyVol1m,
		AggSellVol1m:  &s.AggSellVol1m,
		Bids:          s.Bids,
		Asks:          s.Asks,
		RecentTrades:  s.RecentTrades,
		LiqLevels:     s.LiqLevels,
		BookImbalance: &s.BookImbalance,
	}
	if s.TimestampMs > 0 {
		u.TimestampMs = &s.TimestampMs
	}
	return u
}
