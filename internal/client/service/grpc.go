package service

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const defaultCallTimeout = 5 * time.Second

type HealthClientService struct {
	endpointURL string
	callTimeout time.Duration
	conn        *grpc.ClientConn
	client      healthpb.HealthClient
}

// deadlineInterceptor bounds calls whose context carries no deadline.
func (s *HealthClientService) deadlineInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.callTimeout)
		defer cancel()
	}

	return invoker(ctx, method, req, reply, cc, opts...)
}

func NewHealthClientService(endpointURL string) (*HealthClientService, error) {
	s := &HealthClientService{endpointURL: endpointURL, callTimeout: defaultCallTimeout}
	if err := s.InitGRPCClient(); err != nil {
		return nil, err
	}
	return s, nil
}

// InitGRPCClient creates the connection lazily; nothing is dialed until the
// first call.
func (s *HealthClientService) InitGRPCClient() error {
	conn, err := grpc.NewClient(s.endpointURL, grpc.WithTransportCredentials(insecure.NewCredentials()), grpc.WithUnaryInterceptor(s.deadlineInterceptor))
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = healthpb.NewHealthClient(conn)
	return nil
}

func (s *HealthClientService) Check(ctx context.Context) (string, error) {
	resp, err := s.client.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return "", err
	}
	return resp.GetStatus().String(), nil
}

func (s *HealthClientService) Close() error {
	return s.conn.Close()
}
