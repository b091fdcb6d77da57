package main

import (
	"flag"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"cartage/internal/api"
	"cartage/internal/buildinfo"
	"cartage/internal/config"
	"cartage/internal/logx"
	"cartage/internal/metrics"
)

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logx.Init(logx.Config{})
		log.Fatal().Err(err).Msg("load config")
	}
	logx.Init(logx.Config{Debug: cfg.Debug, Pretty: cfg.PrettyLogs})
	metrics.RegisterDefault()

	srv, err := api.NewServer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init server")
	}

	worker := srv.NewSolveWorker()
	worker.Start()

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	info := buildinfo.Info()
	log.Info().
		Str("addr", cfg.Addr).
		Str("version", info["version"]).
		Str("commit", info["commit"]).
		Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server error")
	}
}
