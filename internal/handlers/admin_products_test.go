package handlers

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Roohan-gm/shopblizz-backend/internal/domain"
	"github.com/Roohan-gm/shopblizz-backend/internal/services"
)

func multipartProductRequest(t *testing.T, method, target string, fields map[string]string, image []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if image != nil {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="images"; filename="bank.png"`)
		header.Set("Content-Type", "image/png")
		part, err := writer.CreatePart(header)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write(image); err != nil {
			t.Fatalf("write image: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func newAdminProductRouter(svc services.CatalogService, maxUpload int64) chi.Router {
	router := chi.NewRouter()
	router.Route("/admin/products", NewAdminProductHandlers(nil, svc, "", maxUpload).Routes)
	return router
}

func TestAdminProductHandlers_CreateProduct(t *testing.T) {
	var cmd services.CreateProductCommand
	var uploaded []byte
	svc := &stubCatalogService{createFn: func(_ context.Context, c services.CreateProductCommand) (domain.Product, error) {
		cmd = c
		data, err := io.ReadAll(c.Image.Body)
		if err != nil {
			return domain.Product{}, err
		}
		uploaded = data
		return sampleProduct(), nil
	}}
	router := newAdminProductRouter(svc, 0)

	req := multipartProductRequest(t, http.MethodPost, "/admin/products", map[string]string{
		"productName":   "Power Bank 10000mAh",
		"description":   "Slim power bank with fast charging",
		"category":      "mobile batteries",
		"price":         "550",
		"stockQuantity": "12",
	}, []byte("\x89PNG fake"))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if cmd.Name != "Power Bank 10000mAh" || cmd.Price != 550 || cmd.StockQuantity != 12 || cmd.Category != "mobile batteries" {
		t.Fatalf("unexpected command %+v", cmd)
	}
	if cmd.Image.Filename != "bank.png" || cmd.Image.ContentType != "image/png" || cmd.Image.Size != int64(len("\x89PNG fake")) {
		t.Fatalf("unexpected upload %+v", cmd.Image)
	}
	if string(uploaded) != "\x89PNG fake" {
		t.Fatalf("unexpected upload body %q", uploaded)
	}
}

func TestAdminProductHandlers_CreateProductRejectsBadForms(t *testing.T) {
	svc := &stubCatalogService{createFn: func(_ context.Context, c services.CreateProductCommand) (domain.Product, error) {
		if c.Image.Body == nil {
			return domain.Product{}, &services.ValidationError{Field: "image", Message: "product image is required"}
		}
		return sampleProduct(), nil
	}}
	router := newAdminProductRouter(svc, 16)

	base := map[string]string{
		"productName": "Power Bank", "description": "Slim power bank with fast charging",
		"category": "mobile batteries", "price": "550", "stockQuantity": "12",
	}
	withField := func(name, value string) map[string]string {
		fields := make(map[string]string, len(base))
		for k, v := range base {
			fields[k] = v
		}
		if value == "" {
			delete(fields, name)
		} else {
			fields[name] = value
		}
		return fields
	}

	cases := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"missing price", multipartProductRequest(t, http.MethodPost, "/admin/products", withField("price", ""), []byte("img")), http.StatusBadRequest},
		{"non integer stock", multipartProductRequest(t, http.MethodPost, "/admin/products", withField("stockQuantity", "many"), []byte("img")), http.StatusBadRequest},
		{"missing image", multipartProductRequest(t, http.MethodPost, "/admin/products", base, nil), http.StatusBadRequest},
		{"image too large", multipartProductRequest(t, http.MethodPost, "/admin/products", base, bytes.Repeat([]byte("x"), 128<<10)), http.StatusRequestEntityTooLarge},
		{"not multipart", httptest.NewRequest(http.MethodPost, "/admin/products", strings.NewReader(`{"productName":"x"}`)), http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, tc.req)
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestAdminProductHandlers_ReplaceImage(t *testing.T) {
	var gotID string
	svc := &stubCatalogService{replaceImageFn: func(_ context.Context, id string, upload services.MediaUpload) (domain.Product, error) {
		gotID = id
		if upload.Body == nil {
			t.Fatal("expected upload body")
		}
		return sampleProduct(), nil
	}}
	router := newAdminProductRouter(svc, 0)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, multipartProductRequest(t, http.MethodPatch, "/admin/products/"+testProductID+"/image", nil, []byte("img")))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if gotID != testProductID {
		t.Fatalf("unexpected id %s", gotID)
	}
}

func TestAdminProductHandlers_UpdateProduct(t *testing.T) {
	var patch services.ProductPatch
	svc := &stubCatalogService{updateFn: func(_ context.Context, _ string, p services.ProductPatch) (domain.Product, error) {
		patch = p
		return sampleProduct(), nil
	}}
	router := newAdminProductRouter(svc, 0)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPatch, "/admin/products/"+testProductID, strings.NewReader(`{"price":600,"isAvailable":false}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if patch.Price == nil || *patch.Price != 600 || patch.IsAvailable == nil || *patch.IsAvailable {
		t.Fatalf("unexpected patch %+v", patch)
	}
	if patch.Name != nil || patch.StockQuantity != nil {
		t.Fatalf("omitted fields must stay nil: %+v", patch)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPatch, "/admin/products/"+testProductID, strings.NewReader(`{}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty patch, got %d", rr.Code)
	}
}

func TestAdminProductHandlers_Lifecycle(t *testing.T) {
	deletedAt := time.Date(2024, 5, 15, 9, 30, 0, 0, time.UTC)
	var stock int
	svc := &stubCatalogService{
		toggleFn: func(context.Context, string) (domain.Product, error) {
			product := sampleProduct()
			product.IsAvailable = false
			return product, nil
		},
		updateStockFn: func(_ context.Context, _ string, quantity int) (domain.Product, error) {
			stock = quantity
			return sampleProduct(), nil
		},
		softDeleteFn: func(context.Context, string) (domain.Product, error) {
			product := sampleProduct()
			product.IsDeleted = true
			product.DeletedAt = &deletedAt
			return product, nil
		},
		restoreFn: func(context.Context, string) (domain.Product, error) {
			return domain.Product{}, &services.ValidationError{Field: "id", Message: "product is not deleted"}
		},
	}
	router := newAdminProductRouter(svc, 0)
	base := "/admin/products/" + testProductID

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPatch, base+"/toggle-availability", nil))
	if rr.Code != http.StatusOK || decodeBody(t, rr)["isAvailable"] != false {
		t.Fatalf("expected toggled product, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPatch, base+"/stock", strings.NewReader(`{"stockQuantity":0}`)))
	if rr.Code != http.StatusOK || stock != 0 {
		t.Fatalf("expected stock update to 0, got %d %d", rr.Code, stock)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPatch, base+"/stock", strings.NewReader(`{}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without stockQuantity, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, base, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["isDeleted"] != true || body["deletedAt"] != "2024-05-15T09:30:00Z" {
		t.Fatalf("expected soft-deleted payload, got %v", body)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPatch, base+"/restore", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 restoring a live product, got %d", rr.Code)
	}
}

func TestAdminProductHandlers_ListFlags(t *testing.T) {
	var filter services.AdminProductFilter
	svc := &stubCatalogService{adminListFn: func(_ context.Context, f services.AdminProductFilter) (domain.Page[domain.Product], error) {
		filter = f
		return domain.Page[domain.Product]{Info: domain.NewPageInfo(f.Page, 0)}, nil
	}}
	router := newAdminProductRouter(svc, 0)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/products?showDeleted=true&showUnavailable=1&search=bank", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !filter.ShowDeleted || !filter.ShowUnavailable || filter.Query != "bank" {
		t.Fatalf("unexpected filter %+v", filter)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/products?showDeleted=maybe", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}
