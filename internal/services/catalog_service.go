package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Roohan-gm/shopblizz-backend/internal/domain"
	"github.com/Roohan-gm/shopblizz-backend/internal/repositories"
)

const (
	maxProductNameLength        = 120
	minProductDescriptionLength = 10
	maxProductDescriptionLength = 2000
)

// CatalogServiceDeps bundles the collaborators of the catalog service.
type CatalogServiceDeps struct {
	Products   repositories.ProductRepository
	Media      MediaStore
	Cache      ProductSnapshotCache
	Categories []domain.Category
	Clock      func() time.Time
	IDGen      func() string
	Logger     func(context.Context, string, map[string]any)
}

type catalogService struct {
	products   repositories.ProductRepository
	media      MediaStore
	cache      ProductSnapshotCache
	categories []domain.Category
	now        func() time.Time
	newID      func() string
	logger     func(context.Context, string, map[string]any)
	policy     *bluemonday.Policy
}

var _ CatalogService = (*catalogService)(nil)

// NewCatalogService wires the catalog service.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Products == nil {
		return nil, errors.New("catalog service: product repository is required")
	}
	if deps.Media == nil {
		return nil, errors.New("catalog service: media store is required")
	}
	categories := slices.Clone(deps.Categories)
	if len(categories) == 0 {
		categories = slices.Clone(domain.DefaultCategories)
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGen
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &catalogService{
		products:   deps.Products,
		media:      deps.Media,
		cache:      deps.Cache,
		categories: categories,
		now: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
		policy: bluemonday.StrictPolicy(),
	}, nil
}

func (s *catalogService) Create(ctx context.Context, cmd CreateProductCommand) (domain.Product, error) {
	name, err := s.normalizeName(cmd.Name)
	if err != nil {
		return domain.Product{}, err
	}
	description, err := s.normalizeDescription(cmd.Description)
	if err != nil {
		return domain.Product{}, err
	}
	category, err := s.parseCategory(cmd.Category)
	if err != nil {
		return domain.Product{}, err
	}
	if cmd.Price < 0 {
		return domain.Product{}, invalid("price", "price must not be negative")
	}
	if cmd.StockQuantity < 0 {
		return domain.Product{}, invalid("stockQuantity", "stock quantity must not be negative")
	}
	if cmd.Image.Body == nil {
		return domain.Product{}, invalid("image", "product image is required")
	}

	asset, err := s.media.Store(ctx, cmd.Image)
	if err != nil {
		return domain.Product{}, mediaError(err)
	}

	now := s.now()
	product := domain.Product{
		ID:            s.newID(),
		Name:          name,
		Description:   description,
		Category:      category,
		Price:         cmd.Price,
		StockQuantity: cmd.StockQuantity,
		Image:         asset,
		IsAvailable:   true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.products.Insert(ctx, product); err != nil {
		s.releaseAsset(ctx, asset.AssetID)
		return domain.Product{}, mapRepositoryError(err)
	}
	s.logger(ctx, "product.created", map[string]any{"productId": product.ID, "name": product.Name})
	return product, nil
}

func (s *catalogService) Get(ctx context.Context, productID string) (domain.Product, error) {
	productID, err := parseEntityID(productID, "product")
	if err != nil {
		return domain.Product{}, err
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return domain.Product{}, mapRepositoryError(err)
	}
	if product.IsDeleted {
		return domain.Product{}, errProductNotFound(productID)
	}
	return product, nil
}

func (s *catalogService) Search(ctx context.Context, filter ProductFilter) (domain.Page[domain.Product], error) {
	category, err := s.optionalCategory(filter.Category)
	if err != nil {
		return domain.Page[domain.Product]{}, err
	}
	return s.list(ctx, repositories.ProductListFilter{
		Query:              strings.TrimSpace(filter.Query),
		Category:           category,
		IncludeUnavailable: true,
		Page:               filter.Page,
	})
}

func (s *catalogService) ListAvailable(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Product], error) {
	return s.list(ctx, repositories.ProductListFilter{Page: page})
}

func (s *catalogService) ListByCategory(ctx context.Context, raw string, page domain.PageRequest) (domain.Page[domain.Product], error) {
	category, err := s.parseCategory(raw)
	if err != nil {
		return domain.Page[domain.Product]{}, err
	}
	return s.list(ctx, repositories.ProductListFilter{Category: category, Page: page})
}

func (s *catalogService) AdminList(ctx context.Context, filter AdminProductFilter) (domain.Page[domain.Product], error) {
	category, err := s.optionalCategory(filter.Category)
	if err != nil {
		return domain.Page[domain.Product]{}, err
	}
	return s.list(ctx, repositories.ProductListFilter{
		Query:              strings.TrimSpace(filter.Query),
		Category:           category,
		IncludeDeleted:     filter.ShowDeleted,
		IncludeUnavailable: filter.ShowUnavailable,
		Page:               filter.Page,
	})
}

func (s *catalogService) Categories() []domain.Category {
	return slices.Clone(s.categories)
}

func (s *catalogService) Update(ctx context.Context, productID string, patch ProductPatch) (domain.Product, error) {
	var (
		name, description string
		category          domain.Category
		err               error
	)
	if patch.Name != nil {
		if name, err = s.normalizeName(*patch.Name); err != nil {
			return domain.Product{}, err
		}
	}
	if patch.Description != nil {
		if description, err = s.normalizeDescription(*patch.Description); err != nil {
			return domain.Product{}, err
		}
	}
	if patch.Category != nil {
		if category, err = s.parseCategory(*patch.Category); err != nil {
			return domain.Product{}, err
		}
	}
	if patch.Price != nil && *patch.Price < 0 {
		return domain.Product{}, invalid("price", "price must not be negative")
	}
	if patch.StockQuantity != nil && *patch.StockQuantity < 0 {
		return domain.Product{}, invalid("stockQuantity", "stock quantity must not be negative")
	}

	return s.mutateLive(ctx, productID, "product.updated", func(product *domain.Product) error {
		if patch.Name != nil {
			product.Name = name
		}
		if patch.Description != nil {
			product.Description = description
		}
		if patch.Category != nil {
			product.Category = category
		}
		if patch.Price != nil {
			product.Price = *patch.Price
		}
		if patch.StockQuantity != nil {
			product.StockQuantity = *patch.StockQuantity
		}
		if patch.IsAvailable != nil {
			product.IsAvailable = *patch.IsAvailable
		}
		return nil
	})
}

func (s *catalogService) ReplaceImage(ctx context.Context, productID string, upload MediaUpload) (domain.Product, error) {
	if upload.Body == nil {
		return domain.Product{}, invalid("image", "product image is required")
	}
	if _, err := s.Get(ctx, productID); err != nil {
		return domain.Product{}, err
	}
	asset, err := s.media.Store(ctx, upload)
	if err != nil {
		return domain.Product{}, mediaError(err)
	}

	var previous domain.MediaAsset
	product, err := s.mutateLive(ctx, productID, "product.image_replaced", func(product *domain.Product) error {
		previous = product.Image
		product.Image = asset
		return nil
	})
	if err != nil {
		s.releaseAsset(ctx, asset.AssetID)
		return domain.Product{}, err
	}
	if previous.AssetID != "" && previous.AssetID != asset.AssetID {
		s.releaseAsset(ctx, previous.AssetID)
	}
	return product, nil
}

func (s *catalogService) ToggleAvailability(ctx context.Context, productID string) (domain.Product, error) {
	return s.mutateLive(ctx, productID, "product.availability_toggled", func(product *domain.Product) error {
		product.IsAvailable = !product.IsAvailable
		return nil
	})
}

func (s *catalogService) UpdateStock(ctx context.Context, productID string, quantity int) (domain.Product, error) {
	if quantity < 0 {
		return domain.Product{}, invalid("stockQuantity", "stock quantity must not be negative")
	}
	return s.mutateLive(ctx, productID, "product.stock_updated", func(product *domain.Product) error {
		product.StockQuantity = quantity
		return nil
	})
}

func (s *catalogService) SoftDelete(ctx context.Context, productID string) (domain.Product, error) {
	return s.mutateLive(ctx, productID, "product.soft_deleted", func(product *domain.Product) error {
		deletedAt := s.now()
		product.IsDeleted = true
		product.DeletedAt = &deletedAt
		return nil
	})
}

func (s *catalogService) Restore(ctx context.Context, productID string) (domain.Product, error) {
	productID, err := parseEntityID(productID, "product")
	if err != nil {
		return domain.Product{}, err
	}
	product, err := s.products.Mutate(ctx, productID, func(product *domain.Product) error {
		if !product.IsDeleted {
			return invalid("product", "product is not deleted")
		}
		product.IsDeleted = false
		product.DeletedAt = nil
		product.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return domain.Product{}, mapRepositoryError(err)
	}
	s.afterMutation(ctx, "product.restored", product)
	return product, nil
}

// mutateLive applies mutate to a product that is not soft-deleted.
func (s *catalogService) mutateLive(ctx context.Context, productID, event string, mutate repositories.ProductMutation) (domain.Product, error) {
	productID, err := parseEntityID(productID, "product")
	if err != nil {
		return domain.Product{}, err
	}
	product, err := s.products.Mutate(ctx, productID, func(product *domain.Product) error {
		if product.IsDeleted {
			return errProductNotFound(productID)
		}
		if err := mutate(product); err != nil {
			return err
		}
		product.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return domain.Product{}, mapRepositoryError(err)
	}
	s.afterMutation(ctx, event, product)
	return product, nil
}

func (s *catalogService) afterMutation(ctx context.Context, event string, product domain.Product) {
	s.logger(ctx, event, map[string]any{"productId": product.ID})
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, product.ID); err != nil {
		s.logger(ctx, "product.cache.invalidate_failed", map[string]any{"productId": product.ID, "error": err})
	}
}

func (s *catalogService) list(ctx context.Context, filter repositories.ProductListFilter) (domain.Page[domain.Product], error) {
	filter.Page = filter.Page.Normalize()
	page, err := s.products.List(ctx, filter)
	if err != nil {
		return domain.Page[domain.Product]{}, mapRepositoryError(err)
	}
	return page, nil
}

func (s *catalogService) releaseAsset(ctx context.Context, assetID string) {
	if assetID == "" {
		return
	}
	if err := s.media.Release(ctx, assetID); err != nil {
		s.logger(ctx, "product.media.release_failed", map[string]any{"assetId": assetID, "error": err})
	}
}

func (s *catalogService) normalizeName(raw string) (string, error) {
	name := foldCase(plainText(s.policy, raw))
	switch n := utf8.RuneCountInString(name); {
	case n == 0:
		return "", invalid("name", "product name is required")
	case n > maxProductNameLength:
		return "", invalid("name", "must be at most %d characters", maxProductNameLength)
	}
	return name, nil
}

func (s *catalogService) normalizeDescription(raw string) (string, error) {
	description := plainText(s.policy, raw)
	n := utf8.RuneCountInString(description)
	if n < minProductDescriptionLength || n > maxProductDescriptionLength {
		return "", invalid("description", "must be between %d and %d characters", minProductDescriptionLength, maxProductDescriptionLength)
	}
	return description, nil
}

func (s *catalogService) parseCategory(raw string) (domain.Category, error) {
	category := domain.Category(foldCase(strings.TrimSpace(raw)))
	if !slices.Contains(s.categories, category) {
		return "", invalid("category", "%q is not a supported category", raw)
	}
	return category, nil
}

func (s *catalogService) optionalCategory(raw string) (domain.Category, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	return s.parseCategory(raw)
}

func errProductNotFound(productID string) error {
	return fmt.Errorf("%w: product %s", ErrNotFound, productID)
}

// mediaError keeps upload validation failures and reports everything else as a dependency failure.
func mediaError(err error) error {
	if errors.Is(err, ErrValidation) {
		return err
	}
	return fmt.Errorf("%w: store product image: %w", ErrDependencyFailure, err)
}

// foldCase lower-cases text. Casers hold state, so one is built per call.
func foldCase(value string) string {
	return cases.Lower(language.Und).String(value)
}
