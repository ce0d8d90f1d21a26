// Package main is the entry point for the chirper server.
//
// main stays minimal: load configuration, build the logger, make sure the
// database directory exists, then hand everything to internal/server.
package main

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/sakif/chirper/internal/config"
	"github.com/sakif/chirper/internal/server"
)

func main() {
	// Config is loaded with a bootstrap logger; its warnings about bad
	// values go to stderr before the real logger exists.
	cfg, err := config.Load(logrus.StandardLogger())
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	logger := config.NewLogger(cfg.AppName, cfg.Env)

	if cfg.IsProduction() && cfg.JWTSecret == config.DevJWTSecret {
		logger.Fatal("JWT_SECRET must be set in production")
	}
	if cfg.GitHubClientID == "" || cfg.GitHubClientSecret == "" {
		logger.Warn("GITHUB_CLIENT_ID/GITHUB_CLIENT_SECRET not set; GitHub login will fail")
	}

	if cfg.DBPath != ":memory:" {
		dbDir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			logger.WithError(err).WithField("dir", dbDir).Fatal("failed to create database directory")
		}
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to create server")
	}

	// Start blocks until SIGINT/SIGTERM.
	if err := srv.Start(); err != nil {
		logger.WithError(err).Fatal("server error")
	}
}
