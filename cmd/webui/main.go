// Command webui serves a small web form over the same realtime exchange the
// speak command runs: type a prompt, watch the transcript stream in, play or
// download the spoken reply.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/skaldy/rtspeak/internal/config"
	"github.com/skaldy/rtspeak/internal/logging"
)

func main() {
	addr := flag.String("addr", ":8080", "Listen address")
	configPath := flag.String("config", "", "Optional JSON settings file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := logging.Init(logging.Config(cfg.Logging)); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	if len(cfg.Models) == 0 {
		logging.Fatalf("no models configured, set the AZURE_OPENAI_* variables or a model group in .env")
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	srv := newServer(cfg)
	srv.register(e)

	go func() {
		if err := e.Start(*addr); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server stopped: %v", err)
		}
	}()
	logging.Infof("web UI listening on %s with %d model(s)", *addr, len(cfg.Models))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logging.Infof("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logging.Errorf("forced shutdown: %v", err)
	}
}
