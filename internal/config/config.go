// Package config provides configuration helpers for agrivoice commands.
//
// Values are read from the process environment, optionally seeded from a
// .env file. Provider credentials can additionally be resolved from AWS SSM
// Parameter Store through Secrets.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names shared by the commands.
const (
	EnvGeminiKey      = "GEMINI_API_KEY"
	EnvDeepSeekKey    = "DEEPSEEK_API_KEY"
	EnvWeatherKey     = "WEATHER_API_KEY"
	EnvGoogleCreds    = "GOOGLE_APPLICATION_CREDENTIALS"
	EnvGoogleAPIKey   = "GOOGLE_API_KEY"
	EnvParamPrefix    = "AGRIVOICE_PARAM_PREFIX"
	EnvDataDir        = "AGRIVOICE_DATA_DIR"
	EnvTranscriptDrv  = "TRANSCRIPT_STORE"
	EnvRedisURL       = "REDIS_URL"
	EnvDynamoTable    = "TRANSCRIPT_TABLE"
	EnvSupabaseURL    = "SUPABASE_URL"
	EnvSupabaseKey    = "SUPABASE_KEY"
	EnvSTTEngine      = "STT_ENGINE"
	EnvTTSEngine      = "TTS_ENGINE"
	EnvListenAddr     = "LISTEN_ADDR"
	EnvLogLevel       = "LOG_LEVEL"
	DefaultListenAddr = ":8080"
)

// Load reads the given .env files (".env" when none are named) into the
// environment. Variables already set are not overridden and a missing
// file is not an error.
func Load(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// String returns the env var or def when unset.
func String(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// Int returns the env var parsed as an int, or def.
func Int(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return n
}

// Float returns the env var parsed as a float64, or def.
func Float(key string, def float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return def
	}
	return f
}

// Bool returns the env var parsed as a bool, or def.
func Bool(key string, def bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return b
}

// Duration returns the env var parsed with time.ParseDuration, or def.
func Duration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return def
	}
	return d
}

// DataDir returns the directory used for file-backed stores.
// Defaults to ~/.agrivoice.
func DataDir() string {
	if dir := String(EnvDataDir, ""); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agrivoice"
	}
	return home + string(os.PathSeparator) + ".agrivoice"
}
