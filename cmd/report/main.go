package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/vitos/crypto_trade_engine/internal/infrastructure/storage"
)

// report prints the recorded trade history and aggregate statistics from the
// ledger database.
func main() {
	dbPath := flag.String("db", "trades.db", "path to the trade ledger database")
	limit := flag.Int("limit", 50, "number of most recent trades to print")
	flag.Parse()

	ledger, err := storage.NewSQLiteLedger(*dbPath)
	if err != nil {
		fmt.Printf("Failed to open ledger: %v\n", err)
		os.Exit(1)
	}
	defer ledger.Close()

	ctx := context.Background()

	trades, err := ledger.ListTradeRecords(ctx, *limit)
	if err != nil {
		fmt.Printf("Failed to list trades: %v\n", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSYMBOL\tSIDE\tENTRY\tEXIT\tQTY\tPNL\tPNL%\tFEES\tREASON\tFORCED")
	for _, t := range trades {
		forced := ""
		if t.ForcedLocal {
			forced = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.4f\t%.4f\t%.6f\t%.4f\t%.2f\t%.4f\t%s\t%s\n",
			t.ExitTime.Format("2006-01-02 15:04:05"),
			t.Symbol, t.Side, t.EntryPrice, t.ExitPrice, t.Quantity,
			t.RealizedPnL, t.PnLPercent, t.TotalFees, t.Reason, forced)
	}
	w.Flush()

	sum, err := ledger.Summarize(ctx)
	if err != nil {
		fmt.Printf("Failed to summarize: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Printf("Trades: %d  Wins: %d  Losses: %d\n", sum.Trades, sum.Wins, sum.Losses)
	if sum.Trades > 0 {
		fmt.Printf("Win rate: %.1f%%\n", float64(sum.Wins)/float64(sum.Trades)*100)
	}
	fmt.Printf("Total PnL: %.4f  Total fees: %.4f\n", sum.TotalPnL, sum.TotalFees)
	if sum.ForcedLocal > 0 {
		fmt.Printf("Forced local closes: %d (check exchange state)\n", sum.ForcedLocal)
	}
}
