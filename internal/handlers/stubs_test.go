package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/Roohan-gm/shopblizz-backend/internal/domain"
	"github.com/Roohan-gm/shopblizz-backend/internal/services"
)

const (
	testOrderID   = "01HZX3K6Y4M3W7T2Q9B8C5D1E0"
	testProductID = "01HZX3K6Y4M3W7T2Q9B8C5D1P1"
)

type stubOrderService struct {
	createFn         func(ctx context.Context, cmd services.CreateOrderCommand) (domain.Order, error)
	getFn            func(ctx context.Context, orderID string) (domain.OrderView, error)
	findByCustomerFn func(ctx context.Context, query services.CustomerQuery, page domain.PageRequest) (domain.Page[domain.Order], error)
	findByStatusFn   func(ctx context.Context, status string, page domain.PageRequest) (domain.Page[domain.Order], error)
	listFn           func(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Order], error)
	updateStatusFn   func(ctx context.Context, orderID, status string) (domain.Order, error)
	cancelFn         func(ctx context.Context, orderID string) (domain.Order, error)
	updateFn         func(ctx context.Context, orderID string, patch services.OrderPatch) (domain.Order, error)
}

func (s *stubOrderService) Create(ctx context.Context, cmd services.CreateOrderCommand) (domain.Order, error) {
	if s.createFn == nil {
		return domain.Order{}, nil
	}
	return s.createFn(ctx, cmd)
}

func (s *stubOrderService) Get(ctx context.Context, orderID string) (domain.OrderView, error) {
	if s.getFn == nil {
		return domain.OrderView{}, services.ErrNotFound
	}
	return s.getFn(ctx, orderID)
}

func (s *stubOrderService) FindByCustomer(ctx context.Context, query services.CustomerQuery, page domain.PageRequest) (domain.Page[domain.Order], error) {
	if s.findByCustomerFn == nil {
		return domain.Page[domain.Order]{}, nil
	}
	return s.findByCustomerFn(ctx, query, page)
}

func (s *stubOrderService) FindByStatus(ctx context.Context, status string, page domain.PageRequest) (domain.Page[domain.Order], error) {
	if s.findByStatusFn == nil {
		return domain.Page[domain.Order]{}, nil
	}
	return s.findByStatusFn(ctx, status, page)
}

func (s *stubOrderService) List(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Order], error) {
	if s.listFn == nil {
		return domain.Page[domain.Order]{}, nil
	}
	return s.listFn(ctx, page)
}

func (s *stubOrderService) UpdateStatus(ctx context.Context, orderID, status string) (domain.Order, error) {
	if s.updateStatusFn == nil {
		return domain.Order{}, nil
	}
	return s.updateStatusFn(ctx, orderID, status)
}

func (s *stubOrderService) Cancel(ctx context.Context, orderID string) (domain.Order, error) {
	if s.cancelFn == nil {
		return domain.Order{}, nil
	}
	return s.cancelFn(ctx, orderID)
}

func (s *stubOrderService) Update(ctx context.Context, orderID string, patch services.OrderPatch) (domain.Order, error) {
	if s.updateFn == nil {
		return domain.Order{}, nil
	}
	return s.updateFn(ctx, orderID, patch)
}

type stubCatalogService struct {
	createFn         func(ctx context.Context, cmd services.CreateProductCommand) (domain.Product, error)
	getFn            func(ctx context.Context, productID string) (domain.Product, error)
	searchFn         func(ctx context.Context, filter services.ProductFilter) (domain.Page[domain.Product], error)
	listAvailableFn  func(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Product], error)
	listByCategoryFn func(ctx context.Context, category string, page domain.PageRequest) (domain.Page[domain.Product], error)
	adminListFn      func(ctx context.Context, filter services.AdminProductFilter) (domain.Page[domain.Product], error)
	categories       []domain.Category
	updateFn         func(ctx context.Context, productID string, patch services.ProductPatch) (domain.Product, error)
	replaceImageFn   func(ctx context.Context, productID string, upload services.MediaUpload) (domain.Product, error)
	toggleFn         func(ctx context.Context, productID string) (domain.Product, error)
	updateStockFn    func(ctx context.Context, productID string, quantity int) (domain.Product, error)
	softDeleteFn     func(ctx context.Context, productID string) (domain.Product, error)
	restoreFn        func(ctx context.Context, productID string) (domain.Product, error)
}

func (s *stubCatalogService) Create(ctx context.Context, cmd services.CreateProductCommand) (domain.Product, error) {
	if s.createFn == nil {
		return domain.Product{}, nil
	}
	return s.createFn(ctx, cmd)
}

func (s *stubCatalogService) Get(ctx context.Context, productID string) (domain.Product, error) {
	if s.getFn == nil {
		return domain.Product{}, services.ErrNotFound
	}
	return s.getFn(ctx, productID)
}

func (s *stubCatalogService) Search(ctx context.Context, filter services.ProductFilter) (domain.Page[domain.Product], error) {
	if s.searchFn == nil {
		return domain.Page[domain.Product]{}, nil
	}
	return s.searchFn(ctx, filter)
}

func (s *stubCatalogService) ListAvailable(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Product], error) {
	if s.listAvailableFn == nil {
		return domain.Page[domain.Product]{}, nil
	}
	return s.listAvailableFn(ctx, page)
}

func (s *stubCatalogService) ListByCategory(ctx context.Context, category string, page domain.PageRequest) (domain.Page[domain.Product], error) {
	if s.listByCategoryFn == nil {
		return domain.Page[domain.Product]{}, nil
	}
	return s.listByCategoryFn(ctx, category, page)
}

func (s *stubCatalogService) AdminList(ctx context.Context, filter services.AdminProductFilter) (domain.Page[domain.Product], error) {
	if s.adminListFn == nil {
		return domain.Page[domain.Product]{}, nil
	}
	return s.adminListFn(ctx, filter)
}

func (s *stubCatalogService) Categories() []domain.Category {
	return s.categories
}

func (s *stubCatalogService) Update(ctx context.Context, productID string, patch services.ProductPatch) (domain.Product, error) {
	if s.updateFn == nil {
		return domain.Product{}, nil
	}
	return s.updateFn(ctx, productID, patch)
}

func (s *stubCatalogService) ReplaceImage(ctx context.Context, productID string, upload services.MediaUpload) (domain.Product, error) {
	if s.replaceImageFn == nil {
		return domain.Product{}, nil
	}
	return s.replaceImageFn(ctx, productID, upload)
}

func (s *stubCatalogService) ToggleAvailability(ctx context.Context, productID string) (domain.Product, error) {
	if s.toggleFn == nil {
		return domain.Product{}, nil
	}
	return s.toggleFn(ctx, productID)
}

func (s *stubCatalogService) UpdateStock(ctx context.Context, productID string, quantity int) (domain.Product, error) {
	if s.updateStockFn == nil {
		return domain.Product{}, nil
	}
	return s.updateStockFn(ctx, productID, quantity)
}

func (s *stubCatalogService) SoftDelete(ctx context.Context, productID string) (domain.Product, error) {
	if s.softDeleteFn == nil {
		return domain.Product{}, nil
	}
	return s.softDeleteFn(ctx, productID)
}

func (s *stubCatalogService) Restore(ctx context.Context, productID string) (domain.Product, error) {
	if s.restoreFn == nil {
		return domain.Product{}, nil
	}
	return s.restoreFn(ctx, productID)
}

type stubUserService struct {
	registerFn      func(context.Context, services.RegisterUserCommand) (domain.UserProfile, error)
	currentFn       func(context.Context, string) (domain.UserProfile, error)
	updateAccountFn func(context.Context, string, services.AccountPatch) (domain.UserProfile, error)
	updateAvatarFn  func(context.Context, string, services.MediaUpload) (domain.UserProfile, error)
}

func (s *stubUserService) Register(ctx context.Context, cmd services.RegisterUserCommand) (domain.UserProfile, error) {
	if s.registerFn == nil {
		return domain.UserProfile{}, nil
	}
	return s.registerFn(ctx, cmd)
}

func (s *stubUserService) Current(ctx context.Context, uid string) (domain.UserProfile, error) {
	if s.currentFn == nil {
		return domain.UserProfile{}, nil
	}
	return s.currentFn(ctx, uid)
}

func (s *stubUserService) UpdateAccount(ctx context.Context, uid string, patch services.AccountPatch) (domain.UserProfile, error) {
	if s.updateAccountFn == nil {
		return domain.UserProfile{}, nil
	}
	return s.updateAccountFn(ctx, uid, patch)
}

func (s *stubUserService) UpdateAvatar(ctx context.Context, uid string, upload services.MediaUpload) (domain.UserProfile, error) {
	if s.updateAvatarFn == nil {
		return domain.UserProfile{}, nil
	}
	return s.updateAvatarFn(ctx, uid, upload)
}

type stubSystemService struct {
	report domain.HealthReport
	err    error
}

func (s *stubSystemService) HealthReport(context.Context) (domain.HealthReport, error) {
	return s.report, s.err
}

type stubTokenVerifier struct {
	tokens map[string]*firebaseauth.Token
}

func (s *stubTokenVerifier) VerifyIDToken(_ context.Context, idToken string) (*firebaseauth.Token, error) {
	token, ok := s.tokens[idToken]
	if !ok {
		return nil, errors.New("token rejected")
	}
	return token, nil
}

func newTestVerifier() *stubTokenVerifier {
	return &stubTokenVerifier{tokens: map[string]*firebaseauth.Token{
		"admin-token":    {UID: "ops-1", Claims: map[string]any{"role": []any{"admin"}}},
		"customer-token": {UID: "cust-1", Claims: map[string]any{"email": "cust@example.com"}},
	}}
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return body
}
