// Package mongostore provides a MongoDB-backed news.RecordStore.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/JakeFAU/realtime-news-collector/internal/news"
)

const (
	defaultDatabase   = "news"
	defaultCollection = "news_articles"
	defaultTimeout    = 10 * time.Second
	defaultPageLimit  = 10
)

// Config holds connection parameters.
type Config struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// NewsStore keeps one document per record, keyed by record id.
type NewsStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ news.RecordStore = (*NewsStore)(nil)

// New connects, pings, and ensures the listing index exists.
func New(ctx context.Context, cfg Config) (*NewsStore, error) {
	if cfg.URI == "" {
		return nil, errors.New("store.mongo.uri is required")
	}
	if cfg.Database == "" {
		cfg.Database = defaultDatabase
	}
	if cfg.Collection == "" {
		cfg.Collection = defaultCollection
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := &NewsStore{client: client, coll: client.Database(cfg.Database).Collection(cfg.Collection)}
	if err := s.EnsureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// NewWithCollection wraps an existing collection (primarily for testing).
func NewWithCollection(coll *mongo.Collection) (*NewsStore, error) {
	if coll == nil {
		return nil, errors.New("collection is required")
	}
	return &NewsStore{coll: coll}, nil
}

// EnsureIndexes creates the (content_type, collected_at, _id) listing index.
func (s *NewsStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "content_type", Value: 1},
			{Key: "collected_at", Value: -1},
			{Key: "_id", Value: -1},
		},
		Options: options.Index().SetName(news.IndexContentTypeCollectedAt),
	})
	if err != nil {
		return fmt.Errorf("create index %s: %w", news.IndexContentTypeCollectedAt, err)
	}
	return nil
}

// Close disconnects the client when the store owns it.
func (s *NewsStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongo: %w", err)
	}
	return nil
}

// PutRecord inserts rec. An existing document with the same id is left untouched.
func (s *NewsStore) PutRecord(ctx context.Context, rec news.Record) error {
	if rec.ID == "" {
		return errors.New("record id is required")
	}
	if _, err := s.coll.InsertOne(ctx, rec); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("insert news %s: %w", rec.ID, err)
	}
	return nil
}

// ScanByField returns every document projected to _id and the requested field.
func (s *NewsStore) ScanByField(ctx context.Context, field string) ([]news.Record, error) {
	if field != news.FieldPublishedAt {
		return nil, fmt.Errorf("%w: %s", news.ErrUnsupportedField, field)
	}
	cur, err := s.coll.Find(ctx,
		bson.M{field: bson.M{"$nin": bson.A{"", nil}}},
		options.Find().SetProjection(bson.M{field: 1}),
	)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", field, err)
	}
	var out []news.Record
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", field, err)
	}
	return out, nil
}

// QueryByIndex pages through one content type using a (collected_at, _id) keyset.
func (s *NewsStore) QueryByIndex(ctx context.Context, q news.IndexQuery) (news.Page, error) {
	if q.Index != news.IndexContentTypeCollectedAt {
		return news.Page{}, fmt.Errorf("%w: %s", news.ErrUnsupportedIndex, q.Index)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}

	filter, err := indexFilter(q)
	if err != nil {
		return news.Page{}, err
	}
	dir := 1
	if q.Descending {
		dir = -1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "collected_at", Value: dir}, {Key: "_id", Value: dir}}).
		SetLimit(int64(limit + 1))

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return news.Page{}, fmt.Errorf("query %s: %w", q.Index, err)
	}
	items := make([]news.Record, 0, limit+1)
	if err := cur.All(ctx, &items); err != nil {
		return news.Page{}, fmt.Errorf("decode %s: %w", q.Index, err)
	}

	page := news.Page{Items: items}
	if len(items) > limit {
		page.Items = items[:limit]
		page.NextCursor = news.EncodeCursor(page.Items[limit-1])
	}
	return page, nil
}

func indexFilter(q news.IndexQuery) (bson.D, error) {
	clauses := bson.A{bson.D{{Key: "content_type", Value: q.Partition}}}
	if q.Cursor != "" {
		at, id, err := news.DecodeCursor(q.Cursor)
		if err != nil {
			return nil, err
		}
		op := "$gt"
		if q.Descending {
			op = "$lt"
		}
		clauses = append(clauses, bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "collected_at", Value: bson.D{{Key: op, Value: at}}}},
			bson.D{{Key: "collected_at", Value: at}, {Key: "_id", Value: bson.D{{Key: op, Value: id}}}},
		}}})
	}
	if kw := strings.TrimSpace(q.Keyword); kw != "" {
		pattern := bson.D{{Key: "$regex", Value: regexp.QuoteMeta(kw)}, {Key: "$options", Value: "i"}}
		clauses = append(clauses, bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "keyword", Value: pattern}},
			bson.D{{Key: "title", Value: pattern}},
			bson.D{{Key: "description", Value: pattern}},
		}}})
	}
	if len(clauses) == 1 {
		return clauses[0].(bson.D), nil
	}
	return bson.D{{Key: "$and", Value: clauses}}, nil
}

// Count returns the number of stored documents.
func (s *NewsStore) Count(ctx context.Context) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count news: %w", err)
	}
	return n, nil
}
