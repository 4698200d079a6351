// Package catalogrpc serves discovery and catalog lookups over gRPC. Messages
// are plain Go structs carried by a JSON codec, described by a hand-written
// service descriptor.
package catalogrpc

import (
	"context"

	"google.golang.org/grpc"

	"streamhub/internal/discovery"
	"streamhub/pkg/models"
)

const ServiceName = "streamhub.catalog.v1.Catalog"

type DiscoverRequest struct {
	Pages     []int    `json:"pages"`
	ProfileID int64    `json:"profileId"`
	Saved     []string `json:"saved"`
}

type GetContentRequest struct {
	ID     int64 `json:"id"`
	Expand bool  `json:"expand"`
}

type ListContentRequest struct {
	Q        string `json:"q"`
	Category string `json:"category"`
	Genre    string `json:"genre"`
	Expand   bool   `json:"expand"`
	Limit    int    `json:"limit"`
	Offset   int    `json:"offset"`
}

type ListContentResponse struct {
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
	Items  []models.Content `json:"items"`
}

type CatalogServer interface {
	Discover(ctx context.Context, req *DiscoverRequest) (*discovery.Feed, error)
	GetContent(ctx context.Context, req *GetContentRequest) (*models.Content, error)
	ListContent(ctx context.Context, req *ListContentRequest) (*ListContentResponse, error)
}

func RegisterCatalogServer(s grpc.ServiceRegistrar, srv CatalogServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CatalogServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Discover", Handler: unary("Discover", CatalogServer.Discover)},
		{MethodName: "GetContent", Handler: unary("GetContent", CatalogServer.GetContent)},
		{MethodName: "ListContent", Handler: unary("ListContent", CatalogServer.ListContent)},
	},
	Streams: []grpc.StreamDesc{},
}

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

// unary adapts a typed CatalogServer method to grpc's untyped handler,
// running it through the server's interceptor chain.
func unary[Req, Resp any](name string, call func(CatalogServer, context.Context, *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		handler := func(ctx context.Context, req any) (any, error) {
			out, err := call(srv.(CatalogServer), ctx, req.(*Req))
			if err != nil {
				return nil, err
			}
			return out, nil
		}
		if interceptor == nil {
			return handler(ctx, in)
		}
		return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}, handler)
	}
}
