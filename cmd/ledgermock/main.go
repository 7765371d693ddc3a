package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jask/ledgerview/internal/config"
	"github.com/jask/ledgerview/internal/mock"
)

func main() {
	addr := flag.String("addr", "", "listen address (overrides config)")
	variant := flag.String("variant", "", "wire contract to serve: a or b (overrides config)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *addr != "" {
		cfg.Mock.Addr = *addr
	}
	if *variant != "" {
		cfg.Mock.Variant = *variant
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	gin.SetMode(gin.ReleaseMode)

	srv := mock.NewServer(mock.NewSeeded(nil), mock.NewTokens(cfg.Mock.JWTSecret, cfg.Mock.TokenTTL), mock.Options{
		Variant:    cfg.Mock.Variant,
		LatencyMin: cfg.Mock.LatencyMin,
		LatencyMax: cfg.Mock.LatencyMax,
		Logger:     logger,
	})
	httpSrv := &http.Server{
		Addr:              cfg.Mock.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(ctx); err != nil {
			logger.Error("shutdown", "err", err)
		}
	}()

	logger.Info("mock backend listening", "addr", cfg.Mock.Addr, "variant", srv.Variant(), "prefix", mock.DefaultPrefix)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("serve: %v", err)
	}
}
