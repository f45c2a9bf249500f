// cmd/driver-agent/main.go
//
// driver-agent replays a recorded route and reports it to the API server the
// same way a driver's phone does: one fix on start, then every position
// change plus a fixed-interval resample, until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"waste-tracking-api-server/config"
	"waste-tracking-api-server/internal/logger"
	"waste-tracking-api-server/internal/tracking"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("could not read .env", "err", err)
	}
	logger.SetLogger(logger.New(os.Stdout, "driver-agent"))

	configDir := flag.String("config", "./config", "directory containing config.yaml")
	step := flag.Duration("step", 10*time.Second, "time between replayed position changes")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		logger.Fatal("could not load config", "err", err)
	}
	agent := cfg.Agent
	if agent.DriverID == "" || agent.Token == "" || agent.ReplayFile == "" {
		logger.Fatal("AGENT_DRIVER_ID, AGENT_TOKEN and AGENT_REPLAY_FILE are required")
	}
	interval, err := config.Duration("tracking.reportInterval", cfg.Tracking.ReportInterval)
	if err != nil {
		logger.Fatal("invalid config", "err", err)
	}

	source, err := tracking.LoadReplayFile(agent.ReplayFile, *step)
	if err != nil {
		logger.Fatal("could not load route", "err", err)
	}

	reporter := tracking.NewReporter(tracking.ReporterConfig{
		DriverID:   agent.DriverID,
		ShipmentID: agent.ShipmentID,
		Interval:   interval,
		Source:     source,
		Uploader:   tracking.NewHTTPUploader(agent.APIBaseURL, agent.Token),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := reporter.Start(ctx); err != nil {
		logger.Fatal("could not start tracking", "err", err)
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := reporter.Stop(stopCtx); err != nil {
		logger.Error("could not flag tracking stopped", "err", err)
	}
}
