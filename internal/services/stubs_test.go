package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/Roohan-gm/shopblizz-backend/internal/domain"
	"github.com/Roohan-gm/shopblizz-backend/internal/repositories"
)

type stubRepoError struct {
	err         error
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *stubRepoError) Error() string       { return e.err.Error() }
func (e *stubRepoError) Unwrap() error       { return e.err }
func (e *stubRepoError) IsNotFound() bool    { return e.notFound }
func (e *stubRepoError) IsConflict() bool    { return e.conflict }
func (e *stubRepoError) IsUnavailable() bool { return e.unavailable }

func numberTakenError(orderNo string) error {
	return &stubRepoError{err: fmt.Errorf("%w: %s", repositories.ErrOrderNumberTaken, orderNo), conflict: true}
}

func notFoundError(id string) error {
	return &stubRepoError{err: fmt.Errorf("%s missing", id), notFound: true}
}

type stubOrderRepo struct {
	insertFn   func(context.Context, domain.Order) error
	findFn     func(context.Context, string) (domain.Order, error)
	listFn     func(context.Context, repositories.OrderListFilter) (domain.Page[domain.Order], error)
	mutateFn   func(context.Context, string, repositories.OrderMutation) (domain.Order, error)
	insertions []domain.Order
}

func (s *stubOrderRepo) Insert(ctx context.Context, order domain.Order) error {
	s.insertions = append(s.insertions, order)
	if s.insertFn != nil {
		return s.insertFn(ctx, order)
	}
	return nil
}

func (s *stubOrderRepo) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if s.findFn != nil {
		return s.findFn(ctx, orderID)
	}
	return domain.Order{}, notFoundError(orderID)
}

func (s *stubOrderRepo) List(ctx context.Context, filter repositories.OrderListFilter) (domain.Page[domain.Order], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.Page[domain.Order]{}, nil
}

func (s *stubOrderRepo) Mutate(ctx context.Context, orderID string, mutate repositories.OrderMutation) (domain.Order, error) {
	if s.mutateFn != nil {
		return s.mutateFn(ctx, orderID, mutate)
	}
	return domain.Order{}, errors.New("not implemented")
}

// memoryOrderMutate runs the mutation against a copy of order, mimicking repository semantics.
func memoryOrderMutate(order *domain.Order) func(context.Context, string, repositories.OrderMutation) (domain.Order, error) {
	return func(_ context.Context, orderID string, mutate repositories.OrderMutation) (domain.Order, error) {
		if order == nil || order.ID != orderID {
			return domain.Order{}, notFoundError(orderID)
		}
		working := *order
		if err := mutate(&working); err != nil {
			return domain.Order{}, err
		}
		*order = working
		return working, nil
	}
}

type stubProductRepo struct {
	insertFn    func(context.Context, domain.Product) error
	findFn      func(context.Context, string) (domain.Product, error)
	findManyFn  func(context.Context, []string) ([]domain.Product, error)
	listFn      func(context.Context, repositories.ProductListFilter) (domain.Page[domain.Product], error)
	mutateFn    func(context.Context, string, repositories.ProductMutation) (domain.Product, error)
	purgeableFn func(context.Context, time.Time, int) ([]domain.Product, error)
	deleteFn    func(context.Context, string, time.Time) error
}

func (s *stubProductRepo) Insert(ctx context.Context, product domain.Product) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, product)
	}
	return nil
}

func (s *stubProductRepo) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if s.findFn != nil {
		return s.findFn(ctx, productID)
	}
	return domain.Product{}, notFoundError(productID)
}

func (s *stubProductRepo) FindByIDs(ctx context.Context, productIDs []string) ([]domain.Product, error) {
	if s.findManyFn != nil {
		return s.findManyFn(ctx, productIDs)
	}
	return nil, nil
}

func (s *stubProductRepo) List(ctx context.Context, filter repositories.ProductListFilter) (domain.Page[domain.Product], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.Page[domain.Product]{}, nil
}

func (s *stubProductRepo) Mutate(ctx context.Context, productID string, mutate repositories.ProductMutation) (domain.Product, error) {
	if s.mutateFn != nil {
		return s.mutateFn(ctx, productID, mutate)
	}
	return domain.Product{}, errors.New("not implemented")
}

func (s *stubProductRepo) ListPurgeable(ctx context.Context, deletedBefore time.Time, limit int) ([]domain.Product, error) {
	if s.purgeableFn != nil {
		return s.purgeableFn(ctx, deletedBefore, limit)
	}
	return nil, nil
}

func (s *stubProductRepo) Delete(ctx context.Context, productID string, deletedBefore time.Time) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, productID, deletedBefore)
	}
	return nil
}

func memoryProductMutate(product *domain.Product) func(context.Context, string, repositories.ProductMutation) (domain.Product, error) {
	return func(_ context.Context, productID string, mutate repositories.ProductMutation) (domain.Product, error) {
		if product == nil || product.ID != productID {
			return domain.Product{}, notFoundError(productID)
		}
		working := *product
		if err := mutate(&working); err != nil {
			return domain.Product{}, err
		}
		*product = working
		return working, nil
	}
}

type stubUserRepo struct {
	insertFn func(context.Context, domain.UserProfile) error
	findFn   func(context.Context, string) (domain.UserProfile, error)
	mutateFn func(context.Context, string, repositories.UserMutation) (domain.UserProfile, error)
	inserted []domain.UserProfile
}

func (s *stubUserRepo) Insert(ctx context.Context, profile domain.UserProfile) error {
	s.inserted = append(s.inserted, profile)
	if s.insertFn != nil {
		return s.insertFn(ctx, profile)
	}
	return nil
}

func (s *stubUserRepo) FindByUID(ctx context.Context, uid string) (domain.UserProfile, error) {
	if s.findFn != nil {
		return s.findFn(ctx, uid)
	}
	return domain.UserProfile{}, notFoundError(uid)
}

func (s *stubUserRepo) Mutate(ctx context.Context, uid string, mutate repositories.UserMutation) (domain.UserProfile, error) {
	if s.mutateFn != nil {
		return s.mutateFn(ctx, uid, mutate)
	}
	return domain.UserProfile{}, notFoundError(uid)
}

type stubMediaStore struct {
	storeFn   func(context.Context, MediaUpload) (domain.MediaAsset, error)
	releaseFn func(context.Context, string) error
	released  []string
}

func (s *stubMediaStore) Store(ctx context.Context, upload MediaUpload) (domain.MediaAsset, error) {
	if s.storeFn != nil {
		return s.storeFn(ctx, upload)
	}
	return domain.MediaAsset{URL: "https://cdn.example/" + upload.Filename, AssetID: "asset-" + upload.Filename}, nil
}

func (s *stubMediaStore) Release(ctx context.Context, assetID string) error {
	s.released = append(s.released, assetID)
	if s.releaseFn != nil {
		return s.releaseFn(ctx, assetID)
	}
	return nil
}

type recordingNotifier struct {
	mu         sync.Mutex
	customer   []OrderNotice
	operations []OrderNotice
	err        error
}

func (n *recordingNotifier) NotifyCustomer(_ context.Context, notice OrderNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.customer = append(n.customer, notice)
	return n.err
}

func (n *recordingNotifier) NotifyOperations(_ context.Context, notice OrderNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.operations = append(n.operations, notice)
	return n.err
}

func (n *recordingNotifier) counts() (int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.customer), len(n.operations)
}

type stubSnapshotCache struct {
	entries     map[string]domain.ProductSnapshot
	getErr      error
	invalidated []string
}

func (c *stubSnapshotCache) GetMany(_ context.Context, ids []string) (map[string]domain.ProductSnapshot, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	out := map[string]domain.ProductSnapshot{}
	for _, id := range ids {
		if snapshot, ok := c.entries[id]; ok {
			out[id] = snapshot
		}
	}
	return out, nil
}

func (c *stubSnapshotCache) SetMany(_ context.Context, snapshots []domain.ProductSnapshot) error {
	if c.entries == nil {
		c.entries = map[string]domain.ProductSnapshot{}
	}
	for _, snapshot := range snapshots {
		c.entries[snapshot.ID] = snapshot
	}
	return nil
}

func (c *stubSnapshotCache) Invalidate(_ context.Context, ids ...string) error {
	c.invalidated = append(c.invalidated, ids...)
	for _, id := range ids {
		delete(c.entries, id)
	}
	return nil
}

type fixedReader struct {
	chunks [][]byte
	calls  int
}

func (r *fixedReader) Read(p []byte) (int, error) {
	if r.calls >= len(r.chunks) {
		return 0, io.ErrUnexpectedEOF
	}
	n := copy(p, r.chunks[r.calls])
	r.calls++
	return n, nil
}

func fixedClock() func() time.Time {
	at := time.Date(2024, 5, 15, 9, 30, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func upload(name string) MediaUpload {
	return MediaUpload{Filename: name, ContentType: "image/png", Size: 4, Body: strings.NewReader("data")}
}
