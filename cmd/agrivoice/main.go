// agrivoice serves the multilingual farming voice assistant: the HTTP API,
// the event stream and the browser bridge.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/agrivoice/internal/app"
	"github.com/teslashibe/agrivoice/internal/config"
	"github.com/teslashibe/agrivoice/internal/log"
)

func main() {
	envFile := flag.String("env", ".env", "dotenv file to load")
	level := flag.String("log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	addr := flag.String("addr", "", "listen address (overrides LISTEN_ADDR)")
	static := flag.String("static", "./web", "directory of static files, empty to disable")
	lang := flag.String("lang", "", "starting language code")
	sttEngine := flag.String("stt", "", "speech recognizer: relay, google or mock")
	ttsEngine := flag.String("tts", "", "speech synthesizer: relay, google, chain or mock")
	auto := flag.Bool("auto-language", false, "switch language after consecutive answers in another one")
	quiet := flag.Bool("no-voice", false, "answer in text only")
	flag.Parse()

	if err := config.Load(*envFile); err != nil {
		log.Init("info")
		log.Error("load env file", "file", *envFile, "error", err)
		os.Exit(1)
	}
	if *level == "" {
		*level = config.String(config.EnvLogLevel, "info")
	}
	log.Init(*level)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	secrets, err := config.SecretsFromEnv(ctx)
	if err != nil {
		log.Error("secrets", "error", err)
		os.Exit(1)
	}

	cfg := app.DefaultConfig()
	cfg.StaticDir = *static
	cfg.LoadEnvConfig(ctx, secrets)
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *lang != "" {
		cfg.Language = *lang
	}
	if *sttEngine != "" {
		cfg.STTEngine = *sttEngine
	}
	if *ttsEngine != "" {
		cfg.TTSEngine = *ttsEngine
	}
	cfg.AutoLanguage = cfg.AutoLanguage || *auto
	cfg.VoiceOutput = !*quiet

	a, err := app.New(cfg, log.L())
	if err != nil {
		log.Error("configuration", "error", err)
		os.Exit(1)
	}
	if err := a.Init(ctx); err != nil {
		log.Error("initialization failed", "error", err)
		os.Exit(1)
	}
	defer a.Shutdown()

	if err := a.Run(ctx); err != nil {
		log.Error("server stopped", "error", err)
		return
	}
	log.Info("goodbye")
}
