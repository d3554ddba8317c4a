package transport

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/chat_relay/pkg/logger"
)

type fakeManagementAPI struct {
	inputs []*apigatewaymanagementapi.PostToConnectionInput
	err    error
}

func (f *fakeManagementAPI) PostToConnection(_ context.Context, in *apigatewaymanagementapi.PostToConnectionInput, _ ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &apigatewaymanagementapi.PostToConnectionOutput{}, nil
}

func TestAPIGatewayPusherPush(t *testing.T) {
	fake := &fakeManagementAPI{}
	p := NewAPIGatewayPusher(fake, logger.NewNopLogger())

	err := p.Push(context.Background(), "abc=", map[string]string{"message": "hi"})
	require.NoError(t, err)

	require.Len(t, fake.inputs, 1)
	assert.Equal(t, "abc=", aws.ToString(fake.inputs[0].ConnectionId))

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(fake.inputs[0].Data, &decoded))
	assert.Equal(t, "hi", decoded["message"])
}

func TestAPIGatewayPusherErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantGone bool
	}{
		{"typed gone exception", &types.GoneException{Message: aws.String("gone")}, true},
		{"generic api error with gone code", &smithy.GenericAPIError{Code: "GoneException", Message: "gone"}, true},
		{"forbidden", &types.ForbiddenException{Message: aws.String("nope")}, false},
		{"network", errors.New("dial tcp: timeout"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewAPIGatewayPusher(&fakeManagementAPI{err: tt.err}, logger.NewNopLogger())
			err := p.Push(context.Background(), "abc=", "payload")
			require.Error(t, err)
			assert.Equal(t, tt.wantGone, errors.Is(err, ErrGone))
		})
	}
}

func TestAPIGatewayPusherRejectsUnencodablePayload(t *testing.T) {
	fake := &fakeManagementAPI{}
	p := NewAPIGatewayPusher(fake, logger.NewNopLogger())

	err := p.Push(context.Background(), "abc=", make(chan int))
	assert.Error(t, err)
	assert.Empty(t, fake.inputs)
}
