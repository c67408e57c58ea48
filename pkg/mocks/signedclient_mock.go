package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/campushive/flowkit/pkg/strategies"
)

// MockSignedClient is a mock implementation of strategies.SignedClient.
type MockSignedClient struct {
	mock.Mock
}

func (m *MockSignedClient) MakeSignedRequest(ctx context.Context, clientName, method, url string, body any, headers map[string]string) (*strategies.SignedResponse, error) {
	args := m.Called(ctx, clientName, method, url, body, headers)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*strategies.SignedResponse), args.Error(1)
}
