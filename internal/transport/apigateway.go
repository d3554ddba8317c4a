package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
	"github.com/aws/smithy-go"

	"github.com/lewisedginton/chat_relay/pkg/logger"
)

// ManagementAPI is the subset of the API Gateway Management API client used here.
type ManagementAPI interface {
	PostToConnection(ctx context.Context, params *apigatewaymanagementapi.PostToConnectionInput, optFns ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error)
}

// APIGatewayPusher posts payloads to WebSocket API connections.
type APIGatewayPusher struct {
	client ManagementAPI
	logger logger.Logger
}

// NewManagementClient creates a management API client for a WebSocket API stage endpoint.
func NewManagementClient(cfg aws.Config, endpoint string) *apigatewaymanagementapi.Client {
	return apigatewaymanagementapi.NewFromConfig(cfg, func(o *apigatewaymanagementapi.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
}

// NewAPIGatewayPusher creates an APIGatewayPusher.
func NewAPIGatewayPusher(client ManagementAPI, log logger.Logger) *APIGatewayPusher {
	return &APIGatewayPusher{client: client, logger: log}
}

func (p *APIGatewayPusher) Push(ctx context.Context, token string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	_, err = p.client.PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(token),
		Data:         data,
	})
	if err == nil {
		return nil
	}

	if isGone(err) {
		return fmt.Errorf("post to connection %s: %w", token, ErrGone)
	}
	return fmt.Errorf("post to connection %s: %w", token, err)
}

func isGone(err error) bool {
	var gone *types.GoneException
	if errors.As(err, &gone) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "GoneException"
}
