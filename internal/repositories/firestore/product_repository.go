package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/Roohan-gm/shopblizz-backend/internal/domain"
	pfirestore "github.com/Roohan-gm/shopblizz-backend/internal/platform/firestore"
	"github.com/Roohan-gm/shopblizz-backend/internal/repositories"
)

const (
	productsCollection     = "products"
	productNamesCollection = "productNames"

	// A purge losing a contention race is retried by the next sweep.
	purgeTxAttempts = 1
)

// ProductRepository stores catalog products. Every non-deleted product holds a reservation
// document in productNames keyed by its encoded name. Soft delete releases the reservation
// and restore reclaims it.
type ProductRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.BaseRepository[productDocument]
	names    *pfirestore.BaseRepository[productNameDocument]
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)

// NewProductRepository constructs a Firestore backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{
		provider: provider,
		products: pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil),
		names:    pfirestore.NewBaseRepository[productNameDocument](provider, productNamesCollection, nil),
	}, nil
}

func (r *ProductRepository) Insert(ctx context.Context, product domain.Product) error {
	if strings.TrimSpace(product.ID) == "" {
		return errors.New("product repository: product id is required")
	}
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		productRef, err := r.products.DocumentRef(ctx, product.ID)
		if err != nil {
			return err
		}
		var nameRef *firestore.DocumentRef
		if !product.IsDeleted {
			if nameRef, err = r.claimName(ctx, tx, product.Name, product.ID); err != nil {
				return err
			}
		}
		if err := tx.Create(productRef, newProductDocument(product)); err != nil {
			return err
		}
		if nameRef != nil {
			return tx.Set(nameRef, productNameDocument{ProductID: product.ID})
		}
		return nil
	})
	return pfirestore.WrapError("products.insert", err)
}

func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	doc, err := r.products.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindByIDs returns the products that exist among productIDs from a single consistent
// snapshot. Missing ids are skipped.
func (r *ProductRepository) FindByIDs(ctx context.Context, productIDs []string) ([]domain.Product, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	var out []domain.Product
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		refs := make([]*firestore.DocumentRef, 0, len(productIDs))
		for _, id := range productIDs {
			if strings.TrimSpace(id) == "" {
				continue
			}
			ref, err := r.products.DocumentRef(ctx, id)
			if err != nil {
				return err
			}
			refs = append(refs, ref)
		}
		snaps, err := tx.GetAll(refs)
		if err != nil {
			return err
		}
		out = make([]domain.Product, 0, len(snaps))
		for _, snap := range snaps {
			if !snap.Exists() {
				continue
			}
			doc, err := r.products.Decode(snap)
			if err != nil {
				return err
			}
			out = append(out, doc.Data.toDomain(doc.ID))
		}
		return nil
	}, pfirestore.ReadOnlyTx())
	if err != nil {
		return nil, pfirestore.WrapError("products.find_many", err)
	}
	return out, nil
}

// List returns products newest first. The free text query matches name or description as a
// case-insensitive substring and is evaluated in memory over the Firestore filtered set.
func (r *ProductRepository) List(ctx context.Context, filter repositories.ProductListFilter) (domain.Page[domain.Product], error) {
	page := filter.Page.Normalize()
	build := func(q firestore.Query) firestore.Query {
		if !filter.IncludeDeleted {
			q = q.Where("isDeleted", "==", false)
		}
		if !filter.IncludeUnavailable {
			q = q.Where("isAvailable", "==", true)
		}
		if filter.Category != "" {
			q = q.Where("category", "==", string(filter.Category))
		}
		return q.OrderBy("createdAt", firestore.Desc)
	}

	needle := strings.ToLower(strings.TrimSpace(filter.Query))
	if needle == "" {
		docs, total, err := r.products.Page(ctx, build, page.Offset(), page.Limit)
		if err != nil {
			return domain.Page[domain.Product]{}, err
		}
		return domain.Page[domain.Product]{Items: productsFromDocs(docs), Info: domain.NewPageInfo(page, total)}, nil
	}

	docs, err := r.products.Query(ctx, build)
	if err != nil {
		return domain.Page[domain.Product]{}, err
	}
	matched := make([]pfirestore.Document[productDocument], 0, len(docs))
	for _, doc := range docs {
		if strings.Contains(doc.Data.Name, needle) || strings.Contains(strings.ToLower(doc.Data.Description), needle) {
			matched = append(matched, doc)
		}
	}
	return domain.Page[domain.Product]{
		Items: productsFromDocs(sliceWindow(matched, page)),
		Info:  domain.NewPageInfo(page, int64(len(matched))),
	}, nil
}

// Mutate applies mutate inside a transaction and keeps the name reservation in step with
// renames, soft deletes and restores.
func (r *ProductRepository) Mutate(ctx context.Context, productID string, mutate repositories.ProductMutation) (domain.Product, error) {
	if mutate == nil {
		return domain.Product{}, errors.New("product repository: mutation is required")
	}
	var (
		updated   domain.Product
		mutateErr error
	)
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.products.DocumentRef(ctx, productID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		doc, err := r.products.Decode(snap)
		if err != nil {
			return err
		}

		before := doc.Data.toDomain(doc.ID)
		after := before
		if mutateErr = mutate(&after); mutateErr != nil {
			return mutateErr
		}
		after.ID = before.ID
		after.CreatedAt = before.CreatedAt

		wasActive, isActive := !before.IsDeleted, !after.IsDeleted
		renamed := before.Name != after.Name

		var claimRef *firestore.DocumentRef
		if isActive && (!wasActive || renamed) {
			if claimRef, err = r.claimName(ctx, tx, after.Name, after.ID); err != nil {
				return err
			}
		}
		if wasActive && (!isActive || renamed) {
			oldRef, err := r.names.DocumentRef(ctx, reservationKey(before.Name))
			if err != nil {
				return err
			}
			if err := tx.Delete(oldRef); err != nil {
				return err
			}
		}
		if claimRef != nil {
			if err := tx.Set(claimRef, productNameDocument{ProductID: after.ID}); err != nil {
				return err
			}
		}

		updated = after
		return tx.Set(ref, newProductDocument(after))
	})
	if mutateErr != nil {
		return domain.Product{}, mutateErr
	}
	if err != nil {
		return domain.Product{}, pfirestore.WrapError("products.mutate", err)
	}
	return updated, nil
}

// ListPurgeable returns soft-deleted products whose deletion predates deletedBefore, oldest first.
func (r *ProductRepository) ListPurgeable(ctx context.Context, deletedBefore time.Time, limit int) ([]domain.Product, error) {
	if limit <= 0 {
		limit = domain.MaxPageLimit
	}
	docs, err := r.products.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("isDeleted", "==", true).
			Where("deletedAt", "<", deletedBefore.UTC()).
			OrderBy("deletedAt", firestore.Asc).
			Limit(limit)
	})
	if err != nil {
		return nil, err
	}
	return productsFromDocs(docs), nil
}

// Delete removes a product that is still soft-deleted and past deletedBefore. Soft-deleted
// products hold no name reservation.
func (r *ProductRepository) Delete(ctx context.Context, productID string, deletedBefore time.Time) error {
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.products.DocumentRef(ctx, productID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		doc, err := r.products.Decode(snap)
		if err != nil {
			return err
		}
		deletedAt := doc.Data.DeletedAt
		if !doc.Data.IsDeleted || deletedAt == nil || !deletedAt.Before(deletedBefore) {
			return pfirestore.NotFound("products.delete", fmt.Errorf("product %s is not eligible for purge", productID))
		}
		return tx.Delete(ref)
	}, pfirestore.WithTxAttempts(purgeTxAttempts))
	return pfirestore.WrapError("products.delete", err)
}

// claimName reads the reservation for name inside tx. A reservation held by another product
// is a conflict wrapping repositories.ErrProductNameTaken.
func (r *ProductRepository) claimName(ctx context.Context, tx *firestore.Transaction, name, productID string) (*firestore.DocumentRef, error) {
	ref, err := r.names.DocumentRef(ctx, reservationKey(name))
	if err != nil {
		return nil, err
	}
	snap, err := tx.Get(ref)
	if err != nil {
		if pfirestore.IsNotFoundStatus(err) {
			return ref, nil
		}
		return nil, err
	}
	holder, err := r.names.Decode(snap)
	if err != nil {
		return nil, err
	}
	if holder.Data.ProductID != productID {
		return nil, pfirestore.Conflict("products.name", fmt.Errorf("%w: %q", repositories.ErrProductNameTaken, name))
	}
	return ref, nil
}

type productNameDocument struct {
	ProductID string `firestore:"productId"`
}

type productDocument struct {
	Name          string     `firestore:"name"`
	Description   string     `firestore:"description"`
	Category      string     `firestore:"category"`
	Price         int64      `firestore:"price"`
	StockQuantity int        `firestore:"stockQuantity"`
	ImageURL      string     `firestore:"imageUrl"`
	ImageAssetID  string     `firestore:"imageAssetId"`
	IsAvailable   bool       `firestore:"isAvailable"`
	IsDeleted     bool       `firestore:"isDeleted"`
	DeletedAt     *time.Time `firestore:"deletedAt"`
	CreatedAt     time.Time  `firestore:"createdAt"`
	UpdatedAt     time.Time  `firestore:"updatedAt"`
}

func newProductDocument(p domain.Product) productDocument {
	return productDocument{
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

func (d productDocument) toDomain(id string) domain.Product {
	return domain.Product{
		ID:            id,
		Name:          d.Name,
		Description:   d.Description,
		Category:      domain.Category(d.Category),
		Price:         d.Price,
		StockQuantity: d.StockQuantity,
		Image:         domain.MediaAsset{URL: d.ImageURL, AssetID: d.ImageAssetID},
		IsAvailable:   d.IsAvailable,
		IsDeleted:     d.IsDeleted,
		DeletedAt:     utcPtr(d.DeletedAt),
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}
}

func productsFromDocs(docs []pfirestore.Document[productDocument]) []domain.Product {
	out := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.Data.toDomain(doc.ID))
	}
	return out
}
