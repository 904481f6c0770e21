package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"3tcapital/ms_ecommerce_audit/internal/core/product"
	"3tcapital/ms_ecommerce_audit/internal/infrastructure/database"
)

type document struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	Name          string             `bson:"name"`
	Description   string             `bson:"description"`
	Price         float64            `bson:"price"`
	StockQuantity int                `bson:"stockQuantity"`
}

func toDocument(p product.Product) document {
	return document{
		Name:          p.Name,
		Description:   p.Description,
		Price:         p.Price,
		StockQuantity: p.StockQuantity,
	}
}

func (d document) toProduct() product.Product {
	return product.Product{
		ID:            d.ID.Hex(),
		Name:          d.Name,
		Description:   d.Description,
		Price:         d.Price,
		StockQuantity: d.StockQuantity,
	}
}

// Repository implements the product.Repository interface using MongoDB.
type Repository struct {
	collection *mongo.Collection
}

// NewRepository creates a new MongoDB product repository.
func NewRepository(db *mongo.Database) *Repository {
	return &Repository{collection: db.Collection(database.ProductsCollection)}
}

func (r *Repository) Create(ctx context.Context, p product.Product) (product.Product, error) {
	doc := toDocument(p)
	doc.ID = primitive.NewObjectID()

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return product.Product{}, fmt.Errorf("insert product: %w", err)
	}
	return doc.toProduct(), nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (product.Product, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return product.Product{}, product.ErrNotFound
	}

	var doc document
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return product.Product{}, product.ErrNotFound
	}
	if err != nil {
		return product.Product{}, fmt.Errorf("find product %s: %w", id, err)
	}
	return doc.toProduct(), nil
}

func (r *Repository) List(ctx context.Context) ([]product.Product, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}

	products := make([]product.Product, 0, len(docs))
	for _, doc := range docs {
		products = append(products, doc.toProduct())
	}
	return products, nil
}

func (r *Repository) Update(ctx context.Context, p product.Product) (product.Product, error) {
	oid, err := primitive.ObjectIDFromHex(p.ID)
	if err != nil {
		return product.Product{}, product.ErrNotFound
	}

	doc := toDocument(p)
	doc.ID = oid
	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": oid}, doc)
	if err != nil {
		return product.Product{}, fmt.Errorf("replace product %s: %w", p.ID, err)
	}
	if result.MatchedCount == 0 {
		return product.Product{}, product.ErrNotFound
	}
	return doc.toProduct(), nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return product.ErrNotFound
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	if result.DeletedCount == 0 {
		return product.ErrNotFound
	}
	return nil
}
