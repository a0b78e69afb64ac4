package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/grabtube/grabtube/internal/config"
	"github.com/grabtube/grabtube/internal/download"
	"github.com/grabtube/grabtube/internal/extract"
	"github.com/grabtube/grabtube/internal/mux"
	"github.com/grabtube/grabtube/internal/platform"
	"github.com/grabtube/grabtube/internal/server"
	"github.com/grabtube/grabtube/internal/store"
)

// nativeClientTimeout bounds individual HTTP calls made by the fallback
// extractor. Stream bodies are read past this via the response body, so it
// only guards the handshake-ish calls.
const nativeClientTimeout = 30 * time.Second

// installTimeout bounds the startup yt-dlp provisioning attempt.
const installTimeout = 2 * time.Minute

func main() {
	settings, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := platform.EnsureDir(settings.OutputDir); err != nil {
		log.Fatalf("Failed to prepare output directory: %v", err)
	}

	// Best effort: a failed install is survivable because the native
	// fallback strategy needs no binary.
	installCtx, cancel := context.WithTimeout(context.Background(), installTimeout)
	if _, err := ytdlp.Install(installCtx, nil); err != nil {
		log.Printf("yt-dlp provisioning failed, relying on native fallback: %v", err)
	}
	cancel()

	chain := extract.NewChain(
		extract.NewYtdlpExtractor(),
		extract.NewNativeExtractor(nativeClientTimeout),
	)

	tracker := store.NewTracker()
	hub := server.NewHub()
	tracker.SetUpdateCallback(hub.Broadcast)
	defer hub.Close()

	engine := download.NewService(chain, mux.NewFFmpegCombiner(), tracker, settings.OutputDir, settings.StreamTimeout)
	defer engine.Close()

	stop := make(chan struct{})
	defer close(stop)
	tracker.StartJanitor(settings.JobTTL, settings.CleanupInterval, stop)
	platform.StartCleanupJanitor(settings.OutputDir, settings.StaleFileAge, settings.CleanupInterval, stop)

	srv := server.New(chain, engine, tracker, hub, settings.OutputDir, settings.AllowedOrigins)

	log.Printf("grabtube listening on %s, downloads in %s", settings.Addr, settings.OutputDir)
	if err := srv.Router().Run(settings.Addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
