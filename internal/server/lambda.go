package server

import (
	"context"
	"fmt"

	"github.com/lewisedginton/chat_relay/internal/api"
	"github.com/lewisedginton/chat_relay/internal/completion"
	appconfig "github.com/lewisedginton/chat_relay/internal/config"
	"github.com/lewisedginton/chat_relay/internal/lambdahandler"
	"github.com/lewisedginton/chat_relay/internal/relay"
	"github.com/lewisedginton/chat_relay/internal/transport"
	"github.com/lewisedginton/chat_relay/pkg/logger"
)

// NewLambdaHandler builds the Lambda handler named in cfg.Lambda.Handler.
// Clients are created once per cold start and reused by warm invocations.
func NewLambdaHandler(ctx context.Context, cfg *appconfig.AppConfig, log logger.Logger) (any, error) {
	if cfg.Lambda.Handler == "" {
		return nil, fmt.Errorf("LAMBDA_HANDLER is required")
	}
	if lambdahandler.NeedsEndpoint(cfg.Lambda.Handler) && cfg.Transport.APIGatewayEndpoint == "" {
		return nil, fmt.Errorf("WEBSOCKET_API_URL is required for the %s handler", cfg.Lambda.Handler)
	}

	awsCfg, err := LoadAWSConfig(ctx, cfg.AWS)
	if err != nil {
		return nil, err
	}

	store, _, err := NewStore(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create session store: %w", err)
	}

	completer, err := completion.NewFromConfig(ctx, cfg.Completion, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create completion client: %w", err)
	}

	handlers, err := lambdahandler.New(lambdahandler.Config{
		Endpoint: cfg.Transport.APIGatewayEndpoint,
		Logger:   log,
		Factory: func(endpoint string) (api.RelayService, error) {
			pusher := transport.NewAPIGatewayPusher(transport.NewManagementClient(awsCfg, endpoint), log)
			return relay.NewService(relay.Config{
				Store:     store,
				Completer: completer,
				Pusher:    pusher,
				Logger:    log,
				Sentinel:  cfg.Relay.Sentinel,
			})
		},
	})
	if err != nil {
		return nil, err
	}

	log.Info("Lambda handler configured", logger.StringField("handler", cfg.Lambda.Handler))
	return handlers.Lookup(cfg.Lambda.Handler)
}
