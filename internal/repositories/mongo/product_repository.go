package mongo

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

	"github.com/Roohan-gm/shopblizz-backend/internal/domain"
	"github.com/Roohan-gm/shopblizz-backend/internal/repositories"
)

const (
	productsCollection = "products"
	productNameIndex   = "name_unique_active"
)

// ProductRepository stores catalog products. Name uniqueness among non-deleted products is a
// partial unique index.
type ProductRepository struct {
	collection *mongo.Collection
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)

// NewProductRepository binds the repository to the products collection of db.
func NewProductRepository(db *mongo.Database) *ProductRepository {
	return &ProductRepository{collection: db.Collection(productsCollection)}
}

// CreateIndexes installs the name uniqueness, listing and retention indexes.
func (r *ProductRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "name", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName(productNameIndex).
				SetPartialFilterExpression(bson.M{"isDeleted": false}),
		},
		{Keys: bson.D{{Key: "isDeleted", Value: 1}, {Key: "isAvailable", Value: 1}, {Key: "category", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "isDeleted", Value: 1}, {Key: "deletedAt", Value: 1}}},
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("mongo: create product indexes: %w", err)
	}
	return nil
}

func (r *ProductRepository) Insert(ctx context.Context, product domain.Product) error {
	if strings.TrimSpace(product.ID) == "" {
		return errors.New("product repository: product id is required")
	}
	_, err := r.collection.InsertOne(ctx, newProductRecord(product))
	if isDuplicateKeyOn(err, productNameIndex) {
		return conflict("products.insert", fmt.Errorf("%w: %q", repositories.ErrProductNameTaken, product.Name))
	}
	return wrap("products.insert", err)
}

func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	record, err := r.findRecord(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return record.toDomain(), nil
}

func (r *ProductRepository) FindByIDs(ctx context.Context, productIDs []string) ([]domain.Product, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": productIDs}})
	if err != nil {
		return nil, wrap("products.find_many", err)
	}
	var records []productRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, wrap("products.find_many", err)
	}
	out := make([]domain.Product, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (r *ProductRepository) List(ctx context.Context, filter repositories.ProductListFilter) (domain.Page[domain.Product], error) {
	page := filter.Page.Normalize()
	query := bson.M{}
	if !filter.IncludeDeleted {
		query["isDeleted"] = false
	}
	if !filter.IncludeUnavailable {
		query["isAvailable"] = true
	}
	if filter.Category != "" {
		query["category"] = string(filter.Category)
	}
	if text := strings.TrimSpace(filter.Query); text != "" {
		pattern := bson.M{"$regex": regexp.QuoteMeta(text), "$options": "i"}
		query["$or"] = bson.A{bson.M{"name": pattern}, bson.M{"description": pattern}}
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return domain.Page[domain.Product]{}, wrap("products.count", err)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.Limit))
	products, err := r.find(ctx, "products.list", query, opts)
	if err != nil {
		return domain.Page[domain.Product]{}, err
	}
	return domain.Page[domain.Product]{Items: products, Info: domain.NewPageInfo(page, total)}, nil
}

// Mutate performs an optimistic read-modify-write guarded by the record version. A rename or
// restore onto a name held by another active product is a conflict.
func (r *ProductRepository) Mutate(ctx context.Context, productID string, mutate repositories.ProductMutation) (domain.Product, error) {
	if mutate == nil {
		return domain.Product{}, errors.New("product repository: mutation is required")
	}
	for attempt := 0; attempt < maxMutateRetries; attempt++ {
		record, err := r.findRecord(ctx, productID)
		if err != nil {
			return domain.Product{}, err
		}

		product := record.toDomain()
		if err := mutate(&product); err != nil {
			return domain.Product{}, err
		}
		product.ID = record.ID
		product.CreatedAt = record.CreatedAt

		next := newProductRecord(product)
		next.Version = record.Version + 1
		result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": productID, "version": record.Version}, next)
		if isDuplicateKeyOn(err, productNameIndex) {
			return domain.Product{}, conflict("products.mutate", fmt.Errorf("%w: %q", repositories.ErrProductNameTaken, product.Name))
		}
		if err != nil {
			return domain.Product{}, wrap("products.mutate", err)
		}
		if result.MatchedCount == 1 {
			return product, nil
		}
	}
	return domain.Product{}, conflict("products.mutate", errConcurrentUpdate)
}

func (r *ProductRepository) ListPurgeable(ctx context.Context, deletedBefore time.Time, limit int) ([]domain.Product, error) {
	if limit <= 0 {
		limit = domain.MaxPageLimit
	}
	query := bson.M{"isDeleted": true, "deletedAt": bson.M{"$lt": deletedBefore.UTC()}}
	opts := options.Find().SetSort(bson.D{{Key: "deletedAt", Value: 1}}).SetLimit(int64(limit))
	return r.find(ctx, "products.purgeable", query, opts)
}

// Delete removes a product only while it is still soft-deleted and past deletedBefore.
func (r *ProductRepository) Delete(ctx context.Context, productID string, deletedBefore time.Time) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{
		"_id":       productID,
		"isDeleted": true,
		"deletedAt": bson.M{"$lt": deletedBefore.UTC()},
	})
	if err != nil {
		return wrap("products.delete", err)
	}
	if result.DeletedCount == 0 {
		return notFound("products.delete", fmt.Errorf("product %s is not eligible for purge", productID))
	}
	return nil
}

func (r *ProductRepository) findRecord(ctx context.Context, productID string) (productRecord, error) {
	var record productRecord
	err := r.collection.FindOne(ctx, bson.M{"_id": productID}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return productRecord{}, notFound("products.find", fmt.Errorf("product %s not found", productID))
	}
	if err != nil {
		return productRecord{}, wrap("products.find", err)
	}
	return record, nil
}

func (r *ProductRepository) find(ctx context.Context, op string, query bson.M, opts *options.FindOptions) ([]domain.Product, error) {
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, wrap(op, err)
	}
	var records []productRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, wrap(op, err)
	}
	out := make([]domain.Product, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

type productRecord struct {
	ID            string     `bson:"_id"`
	Name          string     `bson:"name"`
	Description   string     `bson:"description"`
	Category      string     `bson:"category"`
	Price         int64      `bson:"price"`
	StockQuantity int        `bson:"stockQuantity"`
	ImageURL      string     `bson:"imageUrl"`
	ImageAssetID  string     `bson:"imageAssetId"`
	IsAvailable   bool       `bson:"isAvailable"`
	IsDeleted     bool       `bson:"isDeleted"`
	DeletedAt     *time.Time `bson:"deletedAt"`
	CreatedAt     time.Time  `bson:"createdAt"`
	UpdatedAt     time.Time  `bson:"updatedAt"`
	Version       int64      `bson:"version"`
}

func newProductRecord(p domain.Product) productRecord {
	return productRecord{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Category:      string(p.Category),
		Price:         p.Price,
		StockQuantity: p.StockQuantity,
		ImageURL:      p.Image.URL,
		ImageAssetID:  p.Image.AssetID,
		IsAvailable:   p.IsAvailable,
		IsDeleted:     p.IsDeleted,
		DeletedAt:     utcPtr(p.DeletedAt),
		CreatedAt:     p.CreatedAt.UTC(),
		UpdatedAt:     p.UpdatedAt.UTC(),
	}
}

func (r productRecord) toDomain() domain.Product {
	return domain.Product{
		ID:            r.ID,
		Name:          r.Name,
		Description:   r.Description,
		Category:      domain.Category(r.Category),
		Price:         r.Price,
		StockQuantity: r.StockQuantity,
		Image:         domain.MediaAsset{URL: r.ImageURL, AssetID: r.ImageAssetID},
		IsAvailable:   r.IsAvailable,
		IsDeleted:     r.IsDeleted,
		DeletedAt:     utcPtr(r.DeletedAt),
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}
