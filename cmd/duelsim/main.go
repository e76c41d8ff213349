package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/duelist/internal/simulate"
)

const defaultRunTimeout = 10 * time.Minute

func main() {
	def := simulate.DefaultConfig()
	var (
		participants = flag.Int("participants", def.Participants, "Size of the participant pool")
		duels        = flag.Int("duels", def.Duels, "Number of duels to attempt")
		workers      = flag.Int("workers", def.Workers, "Concurrent duel drivers; 1 enables exact replay")
		racers       = flag.Int("racers", def.Racers, "Concurrent events per duel")
		refuse       = flag.Float64("refuse", def.RefuseRatio, "Share of refusal events")
		cancelRatio  = flag.Float64("cancel", def.CancelRatio, "Share of cancel events")
		seed         = flag.Uint64("seed", def.Seed, "Random seed")
		outputFile   = flag.String("output", "", "Write the history log as JSON to this file")
		logFile      = flag.String("log", "", "Also write logs to this file")
		verbose      = flag.Bool("verbose", false, "Log every resolution")
		help         = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return
	}

	if err := simulate.SetupLogging(*logFile, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	cfg := &simulate.Config{
		Participants: *participants,
		Duels:        *duels,
		Workers:      *workers,
		Racers:       *racers,
		RefuseRatio:  *refuse,
		CancelRatio:  *cancelRatio,
		Seed:         *seed,
		OutputFile:   *outputFile,
		Verbose:      *verbose,
	}

	if _, err := simulate.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
