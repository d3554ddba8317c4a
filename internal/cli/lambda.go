package cli

import (
	"fmt"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/chat_relay/internal/lambdahandler"
	"github.com/lewisedginton/chat_relay/internal/server"
	"github.com/lewisedginton/chat_relay/pkg/logger"
)

// LambdaCommand returns the command that runs one Lambda handler inside the
// Lambda runtime. The handler comes from --handler or LAMBDA_HANDLER.
func LambdaCommand() *cli.Command {
	return &cli.Command{
		Name:  "lambda",
		Usage: "Serve a Lambda handler in the AWS Lambda runtime",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "handler",
				Usage: fmt.Sprintf("Handler to run, one of %v", lambdahandler.Names()),
			},
		},
		Action: lambdaAction,
	}
}

func lambdaAction(ctx *cli.Context) error {
	cfg, log, err := configuredLogger(ctx)
	if err != nil {
		return err
	}
	if name := ctx.String("handler"); name != "" {
		cfg.Lambda.Handler = name
	}

	handler, err := server.NewLambdaHandler(ctx.Context, cfg, log)
	if err != nil {
		log.Error("Failed to create lambda handler", logger.ErrorField(err))
		return fmt.Errorf("failed to create lambda handler: %w", err)
	}

	lambda.StartWithOptions(handler, lambda.WithContext(ctx.Context))
	return nil
}
