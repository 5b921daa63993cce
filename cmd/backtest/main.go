// cmd/backtest replays historical klines through the signal engine and
// ledger to evaluate strategy parameters without live market data.
//
// Usage:
//
//	go run ./cmd/backtest --symbol=btcusdt --period=1min --size=600
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quantenginev1/config"
	"quantenginev1/internal/engine"
	"quantenginev1/internal/indicator"
	"quantenginev1/internal/ledger"
	"quantenginev1/internal/venue/huobi"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	symbol := flag.String("symbol", "btcusdt", "Symbol to replay")
	period := flag.String("period", "1min", "Kline period")
	size := flag.Int("size", 600, "Number of historical bars to fetch")
	base := flag.String("base", "", "REST base URL (default: production)")
	strategyPath := flag.String("strategy", "strategy.yaml", "Strategy parameter file")
	verbose := flag.Bool("v", false, "Print every emitted signal")
	flag.Parse()

	strat, err := config.LoadStrategy(*strategyPath)
	if err != nil {
		log.Fatalf("[backtest] strategy config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	fetchCtx, fetchCancel := context.WithTimeout(ctx, 30*time.Second)
	defer fetchCancel()
	bars, err := huobi.NewHistoryClient(*base).Klines(fetchCtx, *symbol, *period, *size)
	if err != nil {
		log.Fatalf("[backtest] history fetch failed: %v", err)
	}
	if len(bars) == 0 {
		log.Fatal("[backtest] no bars returned")
	}

	ind := indicator.NewMACD(strat.MACD.Fast, strat.MACD.Slow, strat.MACD.Signal)
	eng := engine.New(engine.Config{
		Symbol:     *symbol,
		Upper:      strat.Upper,
		Lower:      strat.Lower,
		LockWindow: strat.LockWindow,
	}, ind, nil)
	book := ledger.NewBook(*symbol, strat.MaxOpen, strat.PnLWindow)

	var signals, wins, losses int
	for _, bar := range bars {
		for _, sig := range eng.OnBar(bar) {
			signals++
			if *verbose {
				fmt.Printf("  [%d] %-11s price=%-12s delta=%s\n", sig.BarID, sig.Kind, sig.Price, sig.Delta)
			}
			if res, realized := book.Apply(sig, strat.OrderQty); realized {
				if res.LastDelta.Sign() >= 0 {
					wins++
				} else {
					losses++
				}
			}
		}
	}

	first := time.Unix(bars[0].ID, 0).UTC()
	last := time.Unix(bars[len(bars)-1].ID, 0).UTC()

	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════╗")
	fmt.Println("║           BACKTEST COMPLETE              ║")
	fmt.Println("╠══════════════════════════════════════════╣")
	fmt.Printf("║  Symbol:          %-22s ║\n", *symbol)
	fmt.Printf("║  Bars replayed:   %-22d ║\n", len(bars))
	fmt.Printf("║  Range:           %-22s ║\n", first.Format("2006-01-02 15:04"))
	fmt.Printf("║             ..to  %-22s ║\n", last.Format("2006-01-02 15:04"))
	fmt.Printf("║  Signals:         %-22d ║\n", signals)
	fmt.Printf("║  Closes won/lost: %-22s ║\n", fmt.Sprintf("%d/%d", wins, losses))
	fmt.Printf("║  Realized P&L:    %-22s ║\n", book.RealizedSum())
	fmt.Println("╚══════════════════════════════════════════╝")
}
