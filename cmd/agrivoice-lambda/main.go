// agrivoice-lambda answers text queries behind API Gateway. Provider keys
// come from SSM Parameter Store; exchanges are archived to DynamoDB when
// TRANSCRIPT_TABLE is set.
package main

import (
	"context"
	"os"
	"strconv"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/teslashibe/agrivoice/internal/app"
	"github.com/teslashibe/agrivoice/internal/config"
	"github.com/teslashibe/agrivoice/internal/log"
	"github.com/teslashibe/agrivoice/pkg/transcript"
)

func main() {
	ctx := context.Background()
	log.Init(config.String(config.EnvLogLevel, "info"))

	// ---- Configuration (read only here) ----
	mustEnv(config.EnvParamPrefix)
	table := config.String(config.EnvDynamoTable, "")
	maxPerDay := envInt("MAX_SESSIONS_PER_DAY", transcript.DefaultMaxPerDay)

	secrets, err := config.SecretsFromEnv(ctx)
	if err != nil {
		log.Error("failed to create secrets resolver", "err", err)
		os.Exit(1)
	}

	cfg := app.DefaultConfig()
	cfg.LoadEnvConfig(ctx, secrets)
	gateway := app.BuildGateway(cfg, log.L())

	var recorder Recorder
	if table != "" {
		store, err := transcript.OpenStore(ctx, transcript.StoreConfig{Type: transcript.StoreDynamo, Table: table})
		if err != nil {
			log.Error("failed to open transcript store", "err", err)
			os.Exit(1)
		}
		recorder = transcript.New(store, transcript.WithMaxPerDay(maxPerDay), transcript.WithLogger(log.L()))
	}

	h, err := NewHandler(gateway, recorder, cfg.Location, log.L())
	if err != nil {
		log.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
