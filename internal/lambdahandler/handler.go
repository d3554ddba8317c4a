// Package lambdahandler adapts the relay to AWS Lambda behind API Gateway.
// WebSocket routes receive APIGatewayWebsocketProxyRequest events; the relay
// and history routes receive REST proxy events.
package lambdahandler

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"

	"github.com/lewisedginton/chat_relay/internal/api"
	"github.com/lewisedginton/chat_relay/internal/relay"
	"github.com/lewisedginton/chat_relay/pkg/logger"
)

// Handler names accepted by Lookup.
const (
	NameConnect          = "connect"
	NameDisconnect       = "disconnect"
	NameSendMessage      = "send_message"
	NameMercurioData     = "mercurio_data"
	NameMercurioChat     = "mercurio_chat"
	NameMercurioAnalyzer = "mercurio_analyzer"
	NameQueryChatHistory = "query_chat_history"
)

// WebSocketFunc handles a WebSocket API route event.
type WebSocketFunc func(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error)

// ProxyFunc handles a REST API proxy event.
type ProxyFunc func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// ServiceFactory builds a relay service whose pushes go to the WebSocket API
// management endpoint given.
type ServiceFactory func(endpoint string) (api.RelayService, error)

// Config wires Handlers.
type Config struct {
	// Endpoint is the management endpoint used for every push. When empty,
	// WebSocket events derive it from their request context.
	Endpoint string
	Factory  ServiceFactory
	Logger   logger.Logger
}

// Handlers holds one relay service per management endpoint, reused across
// invocations of a warm Lambda.
type Handlers struct {
	endpoint string
	factory  ServiceFactory
	logger   logger.Logger

	mu       sync.Mutex
	services map[string]api.RelayService
}

// New creates Handlers.
func New(cfg Config) (*Handlers, error) {
	if cfg.Factory == nil {
		return nil, fmt.Errorf("lambdahandler: service factory is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}
	return &Handlers{
		endpoint: cfg.Endpoint,
		factory:  cfg.Factory,
		logger:   cfg.Logger,
		services: make(map[string]api.RelayService),
	}, nil
}

// Names returns every handler name Lookup accepts.
func Names() []string {
	names := []string{
		NameConnect, NameDisconnect, NameSendMessage, NameMercurioData,
		NameMercurioChat, NameMercurioAnalyzer, NameQueryChatHistory,
	}
	sort.Strings(names)
	return names
}

// Lookup returns the handler registered under name, suitable for lambda.Start.
func (h *Handlers) Lookup(name string) (any, error) {
	switch name {
	case NameConnect:
		return WebSocketFunc(h.Connect), nil
	case NameDisconnect:
		return WebSocketFunc(h.Disconnect), nil
	case NameSendMessage, NameMercurioData:
		return WebSocketFunc(h.SendMessage), nil
	case NameMercurioChat:
		return ProxyFunc(h.RelayHandler(relay.RouteChat)), nil
	case NameMercurioAnalyzer:
		return ProxyFunc(h.RelayHandler(relay.RouteAnalyzer)), nil
	case NameQueryChatHistory:
		return ProxyFunc(h.QueryChatHistory), nil
	default:
		return nil, fmt.Errorf("unknown lambda handler %q, expected one of [%s]", name, strings.Join(Names(), ", "))
	}
}

// NeedsEndpoint reports whether the named handler receives REST events and so
// cannot derive the management endpoint from its request.
func NeedsEndpoint(name string) bool {
	return name == NameMercurioChat || name == NameMercurioAnalyzer
}

// EndpointFor returns the management endpoint of the API that delivered rc.
func EndpointFor(rc events.APIGatewayWebsocketProxyRequestContext) string {
	if rc.DomainName == "" {
		return ""
	}
	if rc.Stage == "" {
		return "https://" + rc.DomainName
	}
	return "https://" + rc.DomainName + "/" + rc.Stage
}

func (h *Handlers) service(endpoint string) (api.RelayService, error) {
	if h.endpoint != "" {
		endpoint = h.endpoint
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if svc, ok := h.services[endpoint]; ok {
		return svc, nil
	}
	svc, err := h.factory(endpoint)
	if err != nil {
		return nil, fmt.Errorf("building relay service for %q: %w", endpoint, err)
	}
	h.services[endpoint] = svc
	return svc, nil
}

// invocation attaches a correlation id and returns the request logger.
func (h *Handlers) invocation(ctx context.Context, requestID string) (context.Context, logger.Logger) {
	if lc, ok := lambdacontext.FromContext(ctx); ok && requestID == "" {
		requestID = lc.AwsRequestID
	}
	ctx, _ = logger.EnsureCorrelationID(ctx, requestID)
	return ctx, logger.GetLoggerFromContext(ctx, h.logger)
}

// Connect records a new WebSocket connection.
func (h *Handlers) Connect(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	return h.lifecycle(ctx, req, true)
}

// Disconnect removes a WebSocket connection's row.
func (h *Handlers) Disconnect(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	return h.lifecycle(ctx, req, false)
}

func (h *Handlers) lifecycle(ctx context.Context, req events.APIGatewayWebsocketProxyRequest, open bool) (events.APIGatewayProxyResponse, error) {
	ctx, log := h.invocation(ctx, req.RequestContext.RequestID)
	token := req.RequestContext.ConnectionID

	failBody := api.BodyDisconnectFailed
	if open {
		failBody = api.BodyConnectFailed
	}

	svc, err := h.service(EndpointFor(req.RequestContext))
	if err == nil {
		if open {
			err = svc.Open(ctx, token)
		} else {
			err = svc.Close(ctx, token)
		}
	}
	if err != nil {
		log.Error("connection lifecycle failed", logger.ConnectionTokenField(token), logger.ErrorField(err))
	}
	return proxyResponse(api.LifecycleOutcome(err, failBody)), nil
}

// SendMessage answers a frame on the connection it arrived on.
func (h *Handlers) SendMessage(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	ctx, log := h.invocation(ctx, req.RequestContext.RequestID)
	token := req.RequestContext.ConnectionID

	frame, err := api.DecodeInboundFrame([]byte(req.Body))
	if err == nil {
		var svc api.RelayService
		svc, err = h.service(EndpointFor(req.RequestContext))
		if err == nil {
			_, err = svc.Reply(ctx, token, relay.ReplyRequest{UserIdentity: frame.UserID, Message: frame.Message})
		}
	}
	if err != nil {
		log.Warn("send message failed", logger.ConnectionTokenField(token), logger.ErrorField(err),
			logger.HTTPStatusField(relay.StatusCode(err)))
	}
	return proxyResponse(api.ReplyOutcome(err)), nil
}

// RelayHandler returns the handler for a relay route.
func (h *Handlers) RelayHandler(route string) func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		if req.HTTPMethod == http.MethodOptions {
			return proxyResponse(api.Preflight(api.MethodsRelay)), nil
		}
		ctx, log := h.invocation(ctx, req.RequestContext.RequestID)
		log = log.WithFields(logger.RouteField(route))

		var res relay.RelayResult
		in, err := api.DecodeRelayInput([]byte(req.Body))
		if err == nil {
			var svc api.RelayService
			svc, err = h.service("")
			if err == nil {
				res, err = svc.Relay(ctx, relay.RelayRequest{UserIdentity: in.Identifier, Message: in.Message, Route: route})
			}
		}
		if err != nil {
			log.Warn("relay request rejected", logger.ErrorField(err), logger.HTTPStatusField(relay.StatusCode(err)))
		}
		return proxyResponse(api.RelayOutcome(res, err)), nil
	}
}

// QueryChatHistory returns every recorded exchange for the userId query parameter.
func (h *Handlers) QueryChatHistory(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if req.HTTPMethod == http.MethodOptions {
		return proxyResponse(api.Preflight(api.MethodsHistory)), nil
	}
	ctx, log := h.invocation(ctx, req.RequestContext.RequestID)

	svc, err := h.service("")
	if err != nil {
		log.Error("history request failed", logger.ErrorField(err))
		return proxyResponse(api.HistoryOutcome(nil, err)), nil
	}

	entries, err := svc.History(ctx, req.QueryStringParameters["userId"])
	if err != nil {
		log.Warn("history request failed", logger.ErrorField(err), logger.HTTPStatusField(relay.StatusCode(err)))
	}
	return proxyResponse(api.HistoryOutcome(entries, err)), nil
}

func proxyResponse(resp api.Response) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: resp.Status,
		Headers:    resp.Headers,
		Body:       resp.Body,
	}
}
