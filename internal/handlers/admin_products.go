package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Roohan-gm/shopblizz-backend/internal/platform/auth"
	"github.com/Roohan-gm/shopblizz-backend/internal/platform/httpx"
	"github.com/Roohan-gm/shopblizz-backend/internal/services"
)

const (
	defaultMaxUploadBytes = 5 << 20
	multipartOverhead     = 64 << 10
	multipartMemory       = 8 << 20
)

// image uploads are accepted under either field name
var imageFormFields = []string{"images", "image"}

var errUploadTooLarge = errors.New("upload exceeds the size limit")

type productPatchRequest struct {
	Name          *string `json:"productName"`
	Description   *string `json:"description"`
	Category      *string `json:"category"`
	Price         *int64  `json:"price"`
	StockQuantity *int    `json:"stockQuantity"`
	IsAvailable   *bool   `json:"isAvailable"`
}

func (req productPatchRequest) empty() bool {
	return req.Name == nil && req.Description == nil && req.Category == nil &&
		req.Price == nil && req.StockQuantity == nil && req.IsAvailable == nil
}

type updateStockRequest struct {
	StockQuantity *int `json:"stockQuantity"`
}

// AdminProductHandlers exposes catalog management for operators.
type AdminProductHandlers struct {
	authn     *auth.Authenticator
	catalog   services.CatalogService
	role      string
	maxUpload int64
}

// NewAdminProductHandlers constructs admin product handlers. maxUploadBytes bounds image
// uploads; non-positive values use 5 MiB.
func NewAdminProductHandlers(authn *auth.Authenticator, catalog services.CatalogService, role string, maxUploadBytes int64) *AdminProductHandlers {
	if strings.TrimSpace(role) == "" {
		role = auth.RoleAdmin
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &AdminProductHandlers{authn: authn, catalog: catalog, role: role, maxUpload: maxUploadBytes}
}

// Routes registers the /admin/products endpoints.
func (h *AdminProductHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(h.role))
	}
	r.Get("/", h.listProducts)
	r.Post("/", h.createProduct)
	r.Patch("/{productID}", h.updateProduct)
	r.Patch("/{productID}/image", h.replaceImage)
	r.Patch("/{productID}/toggle-availability", h.toggleAvailability)
	r.Patch("/{productID}/stock", h.updateStock)
	r.Patch("/{productID}/restore", h.restoreProduct)
	r.Delete("/{productID}", h.deleteProduct)
}

func (h *AdminProductHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeServiceUnavailable(ctx, w, "catalog")
		return
	}
	query := r.URL.Query()
	page, err := parsePageRequest(query)
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	showDeleted, err := parseBoolParam(query, "showDeleted")
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	showUnavailable, err := parseBoolParam(query, "showUnavailable")
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	result, err := h.catalog.AdminList(ctx, services.AdminProductFilter{
		Query:           strings.TrimSpace(query.Get("search")),
		Category:        strings.TrimSpace(query.Get("category")),
		ShowDeleted:     showDeleted,
		ShowUnavailable: showUnavailable,
		Page:            page,
	})
	if err != nil {
		writeServiceError(ctx, w, err, "product")
		return
	}
	writeJSON(w, http.StatusOK, newProductPagePayload(result))
}

func (h *AdminProductHandlers) createProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeServiceUnavailable(ctx, w, "catalog")
		return
	}
	if err := parseMultipart(w, r, h.maxUpload); err != nil {
		writeUploadError(w, r, err, h.maxUpload)
		return
	}
	defer r.MultipartForm.RemoveAll()

	price, err := requiredFormInt(r, "price", 64)
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	stock, err := requiredFormInt(r, "stockQuantity", strconv.IntSize)
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	image, closeImage, err := formImage(r, imageFormFields...)
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	defer closeImage()

	product, err := h.catalog.Create(ctx, services.CreateProductCommand{
		Name:          r.FormValue("productName"),
		Description:   r.FormValue("description"),
		Category:      r.FormValue("category"),
		Price:         price,
		StockQuantity: int(stock),
		Image:         image,
	})
	if err != nil {
		writeServiceError(ctx, w, err, "product")
		return
	}
	writeJSON(w, http.StatusCreated, newProductPayload(product))
}

func (h *AdminProductHandlers) replaceImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeServiceUnavailable(ctx, w, "catalog")
		return
	}
	if err := parseMultipart(w, r, h.maxUpload); err != nil {
		writeUploadError(w, r, err, h.maxUpload)
		return
	}
	defer r.MultipartForm.RemoveAll()

	image, closeImage, err := formImage(r, imageFormFields...)
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	defer closeImage()

	product, err := h.catalog.ReplaceImage(ctx, pathParam(r, "productID"), image)
	if err != nil {
		writeServiceError(ctx, w, err, "product")
		return
	}
	writeJSON(w, http.StatusOK, newProductPayload(product))
}

func (h *AdminProductHandlers) updateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeServiceUnavailable(ctx, w, "catalog")
		return
	}
	var req productPatchRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	if req.empty() {
		writeBadRequest(ctx, w, "at least one field must be provided")
		return
	}
	product, err := h.catalog.Update(ctx, pathParam(r, "productID"), services.ProductPatch{
		Name:          req.Name,
		Description:   req.Description,
		Category:      req.Category,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
		IsAvailable:   req.IsAvailable,
	})
	if err != nil {
		writeServiceError(ctx, w, err, "product")
		return
	}
	writeJSON(w, http.StatusOK, newProductPayload(product))
}

func (h *AdminProductHandlers) toggleAvailability(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeServiceUnavailable(ctx, w, "catalog")
		return
	}
	product, err := h.catalog.ToggleAvailability(ctx, pathParam(r, "productID"))
	if err != nil {
		writeServiceError(ctx, w, err, "product")
		return
	}
	writeJSON(w, http.StatusOK, newProductPayload(product))
}

func (h *AdminProductHandlers) updateStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeServiceUnavailable(ctx, w, "catalog")
		return
	}
	var req updateStockRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	if req.StockQuantity == nil {
		writeBadRequest(ctx, w, "stockQuantity is required")
		return
	}
	product, err := h.catalog.UpdateStock(ctx, pathParam(r, "productID"), *req.StockQuantity)
	if err != nil {
		writeServiceError(ctx, w, err, "product")
		return
	}
	writeJSON(w, http.StatusOK, newProductPayload(product))
}

func (h *AdminProductHandlers) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeServiceUnavailable(ctx, w, "catalog")
		return
	}
	product, err := h.catalog.SoftDelete(ctx, pathParam(r, "productID"))
	if err != nil {
		writeServiceError(ctx, w, err, "product")
		return
	}
	writeJSON(w, http.StatusOK, newProductPayload(product))
}

func (h *AdminProductHandlers) restoreProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeServiceUnavailable(ctx, w, "catalog")
		return
	}
	product, err := h.catalog.Restore(ctx, pathParam(r, "productID"))
	if err != nil {
		writeServiceError(ctx, w, err, "product")
		return
	}
	writeJSON(w, http.StatusOK, newProductPayload(product))
}

func parseMultipart(w http.ResponseWriter, r *http.Request, maxUpload int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errUploadTooLarge
		}
		return fmt.Errorf("invalid multipart form: %w", err)
	}
	return nil
}

func writeUploadError(w http.ResponseWriter, r *http.Request, err error, maxUpload int64) {
	if errors.Is(err, errUploadTooLarge) {
		httpx.WriteError(r.Context(), w, httpx.NewError("request_too_large",
			fmt.Sprintf("image must not exceed %d bytes", maxUpload), http.StatusRequestEntityTooLarge))
		return
	}
	writeBadRequest(r.Context(), w, err.Error())
}

// formImage returns the first file sent under one of fields, or an empty upload when none was
// sent so that the service reports the missing image as a field error.
func formImage(r *http.Request, fields ...string) (services.MediaUpload, func(), error) {
	for _, field := range fields {
		file, header, err := r.FormFile(field)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			return services.MediaUpload{}, func() {}, fmt.Errorf("invalid %s upload: %w", field, err)
		}
		return services.MediaUpload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        file,
		}, func() { _ = file.Close() }, nil
	}
	return services.MediaUpload{}, func() {}, nil
}

func requiredFormInt(r *http.Request, field string, bitSize int) (int64, error) {
	raw := strings.TrimSpace(r.FormValue(field))
	if raw == "" {
		return 0, fmt.Errorf("%s is required", field)
	}
	value, err := strconv.ParseInt(raw, 10, bitSize)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", field)
	}
	return value, nil
}
