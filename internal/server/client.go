package server

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"ketama/internal/ring"
)

// Client is a typed client of the ring service.
type Client struct {
	cc   grpc.ClientConnInterface
	conn *grpc.ClientConn
}

// Dial connects to a ring server at addr.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	return &Client{cc: conn, conn: conn}, nil
}

// NewClient wraps an existing connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Close closes the connection if the client owns it.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// GetNode resolves key to its node.
func (c *Client) GetNode(ctx context.Context, key string) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, GetNodeMethod, wrapperspb.String(key), out); err != nil {
		return "", fromStatus(err)
	}
	return out.GetValue(), nil
}

// GetNodes returns up to count distinct nodes for key.
func (c *Client) GetNodes(ctx context.Context, key string, count int) ([]string, error) {
	in := &structpb.Struct{Fields: map[string]*structpb.Value{
		"key":   structpb.NewStringValue(key),
		"count": structpb.NewNumberValue(float64(count)),
	}}
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, GetNodesMethod, in, out); err != nil {
		return nil, fromStatus(err)
	}
	nodes := make([]string, 0, len(out.GetValues()))
	for _, v := range out.GetValues() {
		nodes = append(nodes, v.GetStringValue())
	}
	return nodes, nil
}

// AddNodes registers nodes with their weights.
func (c *Client) AddNodes(ctx context.Context, nodes map[string]int) error {
	fields := make(map[string]*structpb.Value, len(nodes))
	for id, w := range nodes {
		fields[id] = structpb.NewNumberValue(float64(w))
	}
	if err := c.cc.Invoke(ctx, AddNodesMethod, &structpb.Struct{Fields: fields}, new(emptypb.Empty)); err != nil {
		return fromStatus(err)
	}
	return nil
}

// RemoveNodes drops nodes from the ring.
func (c *Client) RemoveNodes(ctx context.Context, ids ...string) error {
	values := make([]*structpb.Value, 0, len(ids))
	for _, id := range ids {
		values = append(values, structpb.NewStringValue(id))
	}
	if err := c.cc.Invoke(ctx, RemoveNodesMethod, &structpb.ListValue{Values: values}, new(emptypb.Empty)); err != nil {
		return fromStatus(err)
	}
	return nil
}

// ListNodes returns the current id -> weight membership.
func (c *Client) ListNodes(ctx context.Context) (map[string]int, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ListNodesMethod, &emptypb.Empty{}, out); err != nil {
		return nil, fromStatus(err)
	}
	nodes := make(map[string]int, len(out.GetFields()))
	for id, v := range out.GetFields() {
		nodes[id] = int(v.GetNumberValue())
	}
	return nodes, nil
}

// fromStatus turns service errors back into ring errors where possible.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	var sentinel error
	switch st.Code() {
	case codes.FailedPrecondition:
		sentinel = ring.ErrEmptyRing
	case codes.AlreadyExists:
		sentinel = ring.ErrNodeAlreadyExists
		if strings.Contains(st.Message(), ring.ErrDuplicateNode.Error()) {
			sentinel = ring.ErrDuplicateNode
		}
	case codes.InvalidArgument:
		switch {
		case strings.Contains(st.Message(), ring.ErrInvalidWeight.Error()):
			sentinel = ring.ErrInvalidWeight
		case strings.Contains(st.Message(), ring.ErrInvalidNode.Error()):
			sentinel = ring.ErrInvalidNode
		}
	}
	if sentinel == nil {
		return err
	}
	return fmt.Errorf("%w: %s", sentinel, st.Message())
}
