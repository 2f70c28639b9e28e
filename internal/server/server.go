package server

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"ketama/internal/ring"
)

// Service implements RingServer on top of a ring.Ring.
type Service struct {
	ring   *ring.Ring
	logger zerolog.Logger
}

// NewService creates a ring service.
func NewService(r *ring.Ring, logger zerolog.Logger) *Service {
	return &Service{
		ring:   r,
		logger: logger.With().Str("layer", "service").Logger(),
	}
}

// GetNode handles GetNode requests.
func (s *Service) GetNode(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	node, err := s.ring.GetNode(req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	s.logger.Debug().Str("key", req.GetValue()).Str("node", node).Msg("Resolved key")
	return wrapperspb.String(node), nil
}

// GetNodes handles preference list requests.
func (s *Service) GetNodes(ctx context.Context, req *structpb.Struct) (*structpb.ListValue, error) {
	fields := req.GetFields()
	key := fields["key"].GetStringValue()
	count := 1
	if v, ok := fields["count"]; ok {
		n, err := integral(v)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "count: %v", err)
		}
		count = n
	}

	nodes, err := s.ring.PreferenceList(key, count)
	if err != nil {
		return nil, toStatus(err)
	}
	values := make([]*structpb.Value, 0, len(nodes))
	for _, n := range nodes {
		values = append(values, structpb.NewStringValue(n))
	}
	return &structpb.ListValue{Values: values}, nil
}

// AddNodes handles AddNodes requests.
func (s *Service) AddNodes(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	nodes := make(map[string]int, len(req.GetFields()))
	for id, v := range req.GetFields() {
		w, err := integral(v)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "%v: weight of %s: %v", ring.ErrInvalidWeight, id, err)
		}
		nodes[id] = w
	}

	if err := s.ring.AddNodes(nodes); err != nil {
		s.logger.Warn().Err(err).Int("count", len(nodes)).Msg("Rejected node addition")
		return nil, toStatus(err)
	}
	s.logger.Info().Interface("nodes", nodes).Int("points", s.ring.Len()).Msg("Added nodes")
	return &emptypb.Empty{}, nil
}

// RemoveNodes handles RemoveNodes requests.
func (s *Service) RemoveNodes(ctx context.Context, req *structpb.ListValue) (*emptypb.Empty, error) {
	ids := make([]string, 0, len(req.GetValues()))
	for i, v := range req.GetValues() {
		id, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "node id at %d is not a string", i)
		}
		ids = append(ids, id.StringValue)
	}

	s.ring.RemoveNodes(ids...)
	s.logger.Info().Strs("nodes", ids).Int("points", s.ring.Len()).Msg("Removed nodes")
	return &emptypb.Empty{}, nil
}

// ListNodes handles ListNodes requests.
func (s *Service) ListNodes(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	fields := make(map[string]*structpb.Value)
	for id, w := range s.ring.Weights() {
		fields[id] = structpb.NewNumberValue(float64(w))
	}
	return &structpb.Struct{Fields: fields}, nil
}

// integral extracts a whole number from a struct value.
func integral(v *structpb.Value) (int, error) {
	num, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, errors.New("expected a number")
	}
	f := num.NumberValue
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, fmt.Errorf("expected an integer, got %v", f)
	}
	return int(f), nil
}

// toStatus maps ring errors to gRPC status errors.
func toStatus(err error) error {
	switch {
	case errors.Is(err, ring.ErrEmptyRing):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ring.ErrInvalidWeight), errors.Is(err, ring.ErrInvalidNode):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ring.ErrDuplicateNode), errors.Is(err, ring.ErrNodeAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// Server serves a ring over gRPC.
type Server struct {
	listenAddr string
	grpcServer *grpc.Server
	logger     zerolog.Logger
}

// NewServer creates a server for r listening on listenAddr.
func NewServer(listenAddr string, r *ring.Ring, logger zerolog.Logger) *Server {
	logger = logger.With().Str("layer", "server").Logger()
	s := &Server{
		listenAddr: listenAddr,
		logger:     logger,
	}

	s.grpcServer = grpc.NewServer(grpc.UnaryInterceptor(s.logUnary))
	RegisterRingServer(s.grpcServer, NewService(r, logger))

	// Enable gRPC reflection for grpcurl
	reflection.Register(s.grpcServer)
	return s
}

// Start listens on the configured address and serves until Stop is called.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.listenAddr, err)
	}
	return s.Serve(lis)
}

// Serve serves on an existing listener.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info().Str("addr", lis.Addr().String()).Msg("Starting ring server")
	if err := s.grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop() {
	s.logger.Info().Msg("Stopping ring server")
	s.grpcServer.GracefulStop()
}

func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Debug().
		Str("method", info.FullMethod).
		Str("code", status.Code(err).String()).
		Dur("elapsed", time.Since(start)).
		Msg("Handled request")
	return resp, err
}
