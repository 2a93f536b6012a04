// ebsreaper-lambda runs one EBS cleanup pass per scheduled invocation.
package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/yairfalse/ebsreaper/internal/app"
	"github.com/yairfalse/ebsreaper/internal/config"
	"github.com/yairfalse/ebsreaper/pkg/resource"
)

// Runner executes one cleanup pass.
type Runner interface {
	Run(ctx context.Context) (*resource.RunResult, error)
}

// Handler adapts a Runner to the Lambda invocation model.
type Handler struct {
	runner Runner
	flush  func(context.Context) error
}

// Handle runs the pipeline. The payload is only inspected for logging; any
// event shape triggers the same run.
func (h *Handler) Handle(ctx context.Context, payload json.RawMessage) (*resource.RunResult, error) {
	var evt events.CloudWatchEvent
	if len(payload) > 0 && json.Unmarshal(payload, &evt) == nil && evt.ID != "" {
		log.Info().
			Str("event_id", evt.ID).
			Str("source", evt.Source).
			Str("detail_type", evt.DetailType).
			Msg("invoked by scheduled event")
	}

	res, err := h.runner.Run(ctx)

	if h.flush != nil {
		if ferr := h.flush(ctx); ferr != nil {
			log.Warn().Err(ferr).Msg("telemetry flush failed")
		}
	}

	return res, err
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load(os.Getenv("EBSREAPER_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	app.ConfigureLogging(cfg, os.Stdout)

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize")
	}

	h := &Handler{runner: a, flush: a.Flush}
	lambda.Start(h.Handle)
}
