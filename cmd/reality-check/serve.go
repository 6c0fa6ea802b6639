// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/reality-check/internal/keepalive"
	"github.com/pdiddy/reality-check/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket API",
	Long: `Serve starts the API server. Conversations are kept in Redis when the
cache is reachable and in memory otherwise. With keepalive enabled the
server pings its own health endpoint on a schedule and evicts idle
conversations.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().Bool("keepalive", false, "enable the keepalive jobs (overrides keepalive.enabled)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, appOptions{redisSessions: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		a.cfg.Server.Addr = addr
	}
	if on, _ := cmd.Flags().GetBool("keepalive"); on {
		a.cfg.Keepalive.Enabled = true
	}

	if !logger.Core().Enabled(zap.DebugLevel) {
		gin.SetMode(gin.ReleaseMode)
	}

	deps := server.Deps{
		Conversations: a.orch,
		Search:        a.search,
		Analyst:       a.analyzer,
		Models:        a.chain,
		Metrics:       a.metrics,
	}
	if a.cache != nil {
		deps.Cache = a.cache
	}
	if a.index != nil {
		deps.Index = a.index
	}

	var ka *keepalive.Service
	if a.cfg.Keepalive.Enabled {
		ka = keepalive.New(a.cfg.Keepalive, a.sessions, a.cfg.Pipeline.SessionIdleTTL, logger)
		if err := ka.Start(); err != nil {
			return err
		}
		defer ka.Stop()
		deps.Keepalive = ka
	}

	logger.Info("starting reality-check",
		zap.String("version", version),
		zap.String("addr", a.cfg.Server.Addr),
		zap.Strings("models", a.chain.Models()),
		zap.Bool("cache", a.cache != nil),
		zap.Bool("index", a.index != nil),
		zap.Bool("keepalive", ka != nil))

	return server.New(a.cfg.Server, deps, logger).Run(ctx)
}
