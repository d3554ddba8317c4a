// Command relay-lambda is the bootstrap for Lambda deployments. LAMBDA_HANDLER
// selects which relay handler the function serves.
package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"

	appconfig "github.com/lewisedginton/chat_relay/internal/config"
	"github.com/lewisedginton/chat_relay/internal/server"
	"github.com/lewisedginton/chat_relay/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := appconfig.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logger.NewLogger(logger.Config{Level: logger.ErrorLevel, Service: "chat-relay"}).
			Error("Failed to load config", logger.ErrorField(err))
		os.Exit(1)
	}
	log := logger.NewLogger(cfg.LoggerConfig())

	handler, err := server.NewLambdaHandler(context.Background(), cfg, log)
	if err != nil {
		log.Error("Failed to create lambda handler", logger.ErrorField(err))
		os.Exit(1)
	}

	lambda.Start(handler)
}
