package catalogrpc

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"streamhub/internal/content"
	"streamhub/internal/discovery"
	"streamhub/internal/profile"
	"streamhub/internal/subscription"
	"streamhub/internal/testutil"
	"streamhub/internal/user"
	"streamhub/pkg/models"
)

type fixture struct {
	client   *Client
	conn     *grpc.ClientConn
	contents *content.Repo
	profiles *profile.Repo
	users    *user.Repo
}

func setup(t *testing.T) fixture {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "1":
			_, _ = w.Write([]byte(`[
				{"id":"u1","title":"Open Water","category":"movie","maturityRating":"PG","imdbRating":8.1},
				{"id":"u2","title":"Night Shift","category":"series","maturityRating":"R"}
			]`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	t.Cleanup(upstream.Close)

	db := testutil.DB(t)
	log := testutil.Logger(t)
	contents := content.NewRepo(db)
	fetcher := discovery.NewHTTPFetcher(discovery.FetcherConfig{
		Name:       "upstream",
		BaseURL:    upstream.URL,
		Path:       "/titles",
		RetryDelay: time.Millisecond,
	}, log)
	agg := discovery.NewAggregator(fetcher, discovery.NewAdapter(), 2, log)

	cat := &Catalog{
		Discovery:     discovery.NewService(agg, contents, log),
		Contents:      contents,
		Profiles:      profile.NewRepo(db),
		Subscriptions: subscription.NewRepo(db),
		DefaultPages:  []int{1},
	}
	gs, hs := NewServer(cat, log)
	lis := bufconn.Listen(1 << 20)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(func() {
		hs.Shutdown()
		gs.Stop()
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return fixture{
		client:   NewClient(conn),
		conn:     conn,
		contents: contents,
		profiles: cat.Profiles.(*profile.Repo),
		users:    user.NewRepo(db),
	}
}

func TestHealthReportsServing(t *testing.T) {
	f := setup(t)
	resp, err := healthpb.NewHealthClient(f.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestDiscoverOverGRPC(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	feed, err := f.client.Discover(ctx, &DiscoverRequest{Pages: []int{1, 2}, Saved: []string{"u2"}})
	require.NoError(t, err)
	assert.Equal(t, "upstream", feed.Source)
	assert.Equal(t, 2, feed.Total)
	assert.Equal(t, []int{2}, feed.FailedPages)
	require.Len(t, feed.Buckets["myList"], 1)
	assert.Equal(t, "u2", feed.Buckets["myList"][0].ID)
	require.Len(t, feed.Buckets["highRated"], 1)
	assert.Equal(t, "u1", feed.Buckets["highRated"][0].ID)

	owner, err := f.users.Create(ctx, user.NewUser{Email: "kid@example.com", Username: "kidowner", Password: "password1"})
	require.NoError(t, err)
	kid, err := f.profiles.Create(ctx, models.Profile{UserID: owner.ID, Name: "Kid", IsKids: true})
	require.NoError(t, err)

	feed, err = f.client.Discover(ctx, &DiscoverRequest{ProfileID: kid.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, feed.Total)
	assert.Equal(t, 1, feed.Hidden)

	_, err = f.client.Discover(ctx, &DiscoverRequest{ProfileID: 999})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestContentLookupsOverGRPC(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	created, err := f.contents.Create(ctx, models.Content{Title: "Harbor", Category: models.CategoryMovie})
	require.NoError(t, err)
	_, err = f.contents.Create(ctx, models.Content{Title: "Drift", Category: models.CategorySeries})
	require.NoError(t, err)

	got, err := f.client.GetContent(ctx, &GetContentRequest{ID: created.ID})
	require.NoError(t, err)
	assert.Equal(t, "Harbor", got.Title)
	assert.Equal(t, models.CategoryMovie, got.Category)

	_, err = f.client.GetContent(ctx, &GetContentRequest{ID: created.ID + 100})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = f.client.GetContent(ctx, &GetContentRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	list, err := f.client.ListContent(ctx, &ListContentRequest{Category: "series"})
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "Drift", list.Items[0].Title)
}
