package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/JakeFAU/realtime-news-collector/internal/news"
)

func newTestClient(t *testing.T) (*pstest.Server, *pubsub.Client) {
	t.Helper()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	client, err := pubsub.NewClient(context.Background(), "test-project", option.WithGRPCConn(conn))
	require.NoError(t, err)
	return srv, client
}

func TestPublishCollectionEvent(t *testing.T) {
	t.Parallel()

	srv, client := newTestClient(t)
	ctx := context.Background()
	_, err := client.CreateTopic(ctx, "news-collected")
	require.NoError(t, err)

	pub := New(client)
	t.Cleanup(func() { _ = pub.Close() })

	ev := news.CollectionEvent{
		EventID:     "0191d5a2-7c3e-7a4b-9f00-1b2c3d4e5f60",
		Query:       "AI",
		Fetched:     10,
		New:         3,
		Saved:       3,
		RecordIDs:   []string{"a", "b", "c"},
		CollectedAt: time.Date(2024, 9, 9, 5, 30, 0, 0, time.UTC),
	}
	id, err := pub.Publish(ctx, "news-collected", ev)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, news.EventTypeCollectionCompleted, msgs[0].Attributes["event_type"])
	assert.Equal(t, "AI", msgs[0].Attributes["query"])
	assert.Equal(t, ev.EventID, msgs[0].Attributes["event_id"])

	var decoded news.CollectionEvent
	require.NoError(t, json.Unmarshal(msgs[0].Data, &decoded))
	assert.Equal(t, ev, decoded)
}

func TestPublishPlainPayload(t *testing.T) {
	t.Parallel()

	srv, client := newTestClient(t)
	ctx := context.Background()
	_, err := client.CreateTopic(ctx, "misc")
	require.NoError(t, err)

	pub := New(client)
	t.Cleanup(func() { _ = pub.Close() })

	_, err = pub.Publish(ctx, "misc", map[string]int{"n": 1})
	require.NoError(t, err)
	_, err = pub.Publish(ctx, "misc", map[string]int{"n": 2})
	require.NoError(t, err)

	msgs := srv.Messages()
	require.Len(t, msgs, 2)
	assert.JSONEq(t, `{"n":1}`, string(msgs[0].Data))
	assert.Empty(t, msgs[0].Attributes)
}

func TestPublishErrors(t *testing.T) {
	t.Parallel()

	_, err := (&Publisher{}).Publish(context.Background(), "t", "x")
	require.Error(t, err)

	_, client := newTestClient(t)
	pub := New(client)
	t.Cleanup(func() { _ = pub.Close() })

	_, err = pub.Publish(context.Background(), "", "x")
	require.Error(t, err)
	_, err = pub.Publish(context.Background(), "t", func() {})
	require.Error(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = pub.Publish(ctx, "missing-topic", "x")
	require.Error(t, err)
}
