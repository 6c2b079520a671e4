package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"elevator-status-monitor/config"
	"elevator-status-monitor/internal/logger"
	"elevator-status-monitor/internal/scraper"
)

const usage = `Usage: elstatusd [flags] <command>

Commands:
  check     resolve all stations and print the result as JSON
  email     send the status email and, if needed, the errors email
  display   render the e-paper image and upload it to the access point
  serve     run periodic checks and serve the status API

Flags:
`

func main() {
	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = "./config/config.yaml"
	}

	flags := pflag.NewFlagSet("elstatusd", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", defaultConfig, "path to the YAML configuration (env CONFIG_PATH)")
	equipmentFile := flags.String("equipment-file", "", "replay equipment records from a JSON file instead of querying the API")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}
	_ = flags.Parse(os.Args[1:])

	if flags.NArg() != 1 {
		flags.Usage()
		os.Exit(2)
	}
	command := flags.Arg(0)

	bootLog := logger.Must("info", "console")
	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog.Fatal("failed to load configuration", zap.String("path", *configPath), zap.Error(err))
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		bootLog.Fatal("failed to build logger", zap.Error(err))
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)
	log.Info("configuration loaded", zap.String("path", *configPath), zap.String("command", command))
	for _, warning := range cfg.Warnings() {
		log.Warn(warning)
	}

	var source scraper.Source
	if *equipmentFile != "" {
		fileSource, err := scraper.LoadFileSource(*equipmentFile)
		if err != nil {
			log.Fatal("failed to load equipment file", zap.String("path", *equipmentFile), zap.Error(err))
		}
		log.Info("replaying equipment records", zap.String("path", *equipmentFile))
		source = fileSource
	} else {
		if err := cfg.Validate(); err != nil {
			log.Fatal("invalid configuration", zap.Error(err))
		}
		source = scraper.NewResolver(cfg.API, cfg.Matcher, log)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cli := &app{cfg: cfg, source: source, log: log}
	switch command {
	case "check":
		err = cli.check(ctx, os.Stdout)
	case "email":
		err = cli.email(ctx)
	case "display":
		err = cli.display(ctx)
	case "serve":
		err = cli.serve(ctx)
	default:
		flags.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal("command failed", zap.String("command", command), zap.Error(err))
	}
}
