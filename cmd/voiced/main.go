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

	"github.com/rs/zerolog"

	"github.com/hexwarrior6/ginseng-menu-ai/internal/config"
	"github.com/hexwarrior6/ginseng-menu-ai/internal/recommend"
	"github.com/hexwarrior6/ginseng-menu-ai/internal/server"
	"github.com/hexwarrior6/ginseng-menu-ai/internal/speech"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	mockMode := flag.Bool("mock", false, "Canned transcriber and recommender (no external services)")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log = log.Level(level)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	transcriber, recommender := buildPipeline(cfg, *mockMode, log)

	srv := server.New(cfg, log, transcriber, recommender)
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: mux,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(ctx)
	}()

	log.Info().Str("addr", httpServer.Addr).Int("dishes", len(cfg.Menu)).Msg("voice service listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server error")
	}
}

// buildPipeline wires the transcriber and recommender from config. Mock
// mode, or an endpoint left unconfigured, falls back to the canned
// implementations so the service runs standalone.
func buildPipeline(cfg *config.Config, mock bool, log zerolog.Logger) (speech.Transcriber, recommend.Recommender) {
	var transcriber speech.Transcriber = speech.Static{Text: "我想要一份招牌菜"}
	var recommender recommend.Recommender = recommend.FromMenu(cfg.Menu, cfg.Recommend.MaxItems)

	if mock {
		log.Info().Msg("mock mode: canned transcriber and recommender")
		return transcriber, recommender
	}

	if cfg.Speech.BaseURL != "" {
		transcriber = speech.NewHTTPTranscriber(cfg.Speech.BaseURL, cfg.Speech.APIKey, cfg.Speech.Model, cfg.Speech.Language)
		log.Info().Str("url", cfg.Speech.BaseURL).Str("model", cfg.Speech.Model).Msg("using remote transcriber")
	} else {
		log.Warn().Msg("speech.base_url not set, using canned transcriber")
	}

	if cfg.Recommend.BaseURL != "" {
		recommender = recommend.NewLLMRecommender(cfg.Recommend, cfg.Menu)
		log.Info().Str("url", cfg.Recommend.BaseURL).Str("model", cfg.Recommend.Model).Msg("using LLM recommender")
	} else {
		log.Warn().Msg("recommend.base_url not set, recommending straight from the menu")
	}

	return transcriber, recommender
}
