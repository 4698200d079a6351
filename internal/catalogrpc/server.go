package catalogrpc

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"streamhub/internal/apperr"
	"streamhub/internal/content"
	"streamhub/internal/discovery"
	"streamhub/internal/metrics"
	"streamhub/pkg/logger"
	"streamhub/pkg/models"
)

// Catalog implements CatalogServer on top of the discovery service and the
// content repository.
type Catalog struct {
	Discovery     *discovery.Service
	Contents      *content.Repo
	Profiles      discovery.ProfileFinder
	Subscriptions discovery.SubscriptionFinder
	DefaultPages  []int
}

func (c *Catalog) Discover(ctx context.Context, req *DiscoverRequest) (*discovery.Feed, error) {
	pages := req.Pages
	if len(pages) == 0 {
		pages = c.DefaultPages
	}
	viewer, err := discovery.ResolveViewer(ctx, c.Profiles, c.Subscriptions, req.ProfileID, req.Saved)
	if err != nil {
		return nil, toStatus(err)
	}
	feed := c.Discovery.Discover(ctx, pages, viewer)
	return &feed, nil
}

func (c *Catalog) GetContent(ctx context.Context, req *GetContentRequest) (*models.Content, error) {
	if req.ID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "id must be positive")
	}
	item, err := c.Contents.FindOne(ctx, req.ID, req.Expand)
	if err != nil {
		return nil, toStatus(err)
	}
	return item, nil
}

func (c *Catalog) ListContent(ctx context.Context, req *ListContentRequest) (*ListContentResponse, error) {
	q := content.ListQuery{
		Q:        req.Q,
		Category: req.Category,
		Genre:    req.Genre,
		Expand:   req.Expand,
		Limit:    req.Limit,
		Offset:   req.Offset,
	}
	total, err := c.Contents.Count(ctx, q)
	if err != nil {
		return nil, toStatus(err)
	}
	items, err := c.Contents.FindAll(ctx, q)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ListContentResponse{Total: total, Limit: q.Limit, Offset: q.Offset, Items: items}, nil
}

// toStatus maps domain errors onto gRPC codes.
func toStatus(err error) error {
	var code codes.Code
	switch {
	case errors.Is(err, apperr.ErrValidation):
		code = codes.InvalidArgument
	case errors.Is(err, apperr.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, apperr.ErrConflict):
		code = codes.FailedPrecondition
	case errors.Is(err, apperr.ErrUpstreamUnavailable):
		code = codes.Unavailable
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	default:
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, err.Error())
}

// NewServer registers cat and the standard health service on a new grpc
// server. The health server reports SERVING until Shutdown.
func NewServer(cat CatalogServer, log *logger.Logger) (*grpc.Server, *health.Server) {
	log = logger.OrNop(log).With("component", "grpc")
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(recoverer(log), observer(log)))
	RegisterCatalogServer(gs, cat)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return gs, hs
}

func recoverer(log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic in rpc", "method", info.FullMethod, "panic", r)
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

func observer(log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		metrics.GRPCRequests.WithLabelValues(info.FullMethod, code.String()).Inc()
		log.Info("rpc", "method", info.FullMethod, "code", code.String(), "duration", time.Since(start))
		return resp, err
	}
}
