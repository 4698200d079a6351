package catalogrpc

import (
	"context"

	"google.golang.org/grpc"

	"streamhub/internal/discovery"
	"streamhub/pkg/models"
)

// Client calls the catalog service with the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, req any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, fullMethod(method), req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Discover(ctx context.Context, req *DiscoverRequest, opts ...grpc.CallOption) (*discovery.Feed, error) {
	return invoke[discovery.Feed](ctx, c.cc, "Discover", req, opts)
}

func (c *Client) GetContent(ctx context.Context, req *GetContentRequest, opts ...grpc.CallOption) (*models.Content, error) {
	return invoke[models.Content](ctx, c.cc, "GetContent", req, opts)
}

func (c *Client) ListContent(ctx context.Context, req *ListContentRequest, opts ...grpc.CallOption) (*ListContentResponse, error) {
	return invoke[ListContentResponse](ctx, c.cc, "ListContent", req, opts)
}
