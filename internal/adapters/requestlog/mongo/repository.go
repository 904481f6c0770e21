package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"3tcapital/ms_ecommerce_audit/internal/core/requestlog"
	"3tcapital/ms_ecommerce_audit/internal/infrastructure/database"
)

// document is the stored shape of a request log.
type document struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	TimestampUTC    time.Time          `bson:"timestampUtc"`
	TraceID         string             `bson:"traceId"`
	Method          string             `bson:"method"`
	Path            string             `bson:"path"`
	StatusCode      int                `bson:"statusCode"`
	RequestBody     string             `bson:"requestBody"`
	ResponseBody    string             `bson:"responseBody"`
	RequestHeaders  map[string]string  `bson:"requestHeaders"`
	ResponseHeaders map[string]string  `bson:"responseHeaders"`
}

func toDocument(rec requestlog.Record) document {
	return document{
		TimestampUTC:    rec.TimestampUTC.UTC(),
		TraceID:         rec.TraceID,
		Method:          rec.Method,
		Path:            rec.Path,
		StatusCode:      rec.StatusCode,
		RequestBody:     rec.RequestBody,
		ResponseBody:    rec.ResponseBody,
		RequestHeaders:  rec.RequestHeaders,
		ResponseHeaders: rec.ResponseHeaders,
	}
}

func (d document) toRecord() requestlog.Record {
	return requestlog.Record{
		ID:              d.ID.Hex(),
		TimestampUTC:    d.TimestampUTC.UTC(),
		TraceID:         d.TraceID,
		Method:          d.Method,
		Path:            d.Path,
		StatusCode:      d.StatusCode,
		RequestBody:     d.RequestBody,
		ResponseBody:    d.ResponseBody,
		RequestHeaders:  d.RequestHeaders,
		ResponseHeaders: d.ResponseHeaders,
	}
}

// Repository implements the requestlog.Repository interface using MongoDB.
type Repository struct {
	collection *mongo.Collection
	log        *slog.Logger
}

// NewRepository creates a new MongoDB request log repository.
func NewRepository(db *mongo.Database, log *slog.Logger) *Repository {
	return &Repository{
		collection: db.Collection(database.LogsCollection),
		log:        log,
	}
}

// Insert stores the record and returns the generated ObjectID in hex form.
func (r *Repository) Insert(ctx context.Context, rec requestlog.Record) (string, error) {
	doc := toDocument(rec)
	doc.ID = primitive.NewObjectID()

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("insert request log: %w", err)
	}

	r.log.Debug("request log stored",
		"id", doc.ID.Hex(),
		"collection", r.collection.Name(),
		"trace_id", doc.TraceID,
	)
	return doc.ID.Hex(), nil
}

// Find returns the requested page, newest first.
func (r *Repository) Find(ctx context.Context, filter requestlog.Filter) ([]requestlog.Record, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestampUtc", Value: -1}}).
		SetSkip(int64(filter.Skip())).
		SetLimit(int64(filter.PageSize))

	cursor, err := r.collection.Find(ctx, buildFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("find request logs: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode request logs: %w", err)
	}

	records := make([]requestlog.Record, 0, len(docs))
	for _, doc := range docs {
		records = append(records, doc.toRecord())
	}
	return records, nil
}

// Count returns how many records match the filter.
func (r *Repository) Count(ctx context.Context, filter requestlog.Filter) (int64, error) {
	total, err := r.collection.CountDocuments(ctx, buildFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("count request logs: %w", err)
	}
	return total, nil
}

func buildFilter(filter requestlog.Filter) bson.M {
	query := bson.M{}

	if filter.Method != "" {
		query["method"] = primitive.Regex{Pattern: filter.Method, Options: "i"}
	}
	if filter.Path != "" {
		query["path"] = primitive.Regex{Pattern: filter.Path, Options: "i"}
	}
	if filter.TraceID != "" {
		query["traceId"] = primitive.Regex{Pattern: filter.TraceID, Options: "i"}
	}
	if filter.StatusCode != nil {
		query["statusCode"] = *filter.StatusCode
	}

	if filter.From != nil || filter.To != nil {
		window := bson.M{}
		if filter.From != nil {
			window["$gte"] = filter.From.UTC()
		}
		if filter.To != nil {
			window["$lte"] = filter.To.UTC()
		}
		query["timestampUtc"] = window
	}

	return query
}
