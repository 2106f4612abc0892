package handlers

import (
	"time"

	"github.com/Roohan-gm/shopblizz-backend/internal/domain"
)

type mediaPayload struct {
	URL     string `json:"url"`
	AssetID string `json:"assetId"`
}

type productPayload struct {
	ID            string       `json:"id"`
	Name          string       `json:"productName"`
	Description   string       `json:"description"`
	Category      string       `json:"category"`
	Price         int64        `json:"price"`
	StockQuantity int          `json:"stockQuantity"`
	Image         mediaPayload `json:"image"`
	IsAvailable   bool         `json:"isAvailable"`
	IsDeleted     bool         `json:"isDeleted"`
	DeletedAt     *time.Time   `json:"deletedAt,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

func newProductPayload(product domain.Product) productPayload {
	return productPayload{
		ID:            product.ID,
		Name:          product.Name,
		Description:   product.Description,
		Category:      string(product.Category),
		Price:         product.Price,
		StockQuantity: product.StockQuantity,
		Image:         mediaPayload{URL: product.Image.URL, AssetID: product.Image.AssetID},
		IsAvailable:   product.IsAvailable,
		IsDeleted:     product.IsDeleted,
		DeletedAt:     product.DeletedAt,
		CreatedAt:     product.CreatedAt,
		UpdatedAt:     product.UpdatedAt,
	}
}

type productSnapshotPayload struct {
	ID          string `json:"id"`
	Name        string `json:"productName"`
	Price       int64  `json:"price"`
	ImageURL    string `json:"imageUrl,omitempty"`
	Category    string `json:"category"`
	IsAvailable bool   `json:"isAvailable"`
}

type customerPayload struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

type orderItemPayload struct {
	Product   string                  `json:"product"`
	Quantity  int                     `json:"quantity"`
	UnitPrice int64                   `json:"unitPrice"`
	Details   *productSnapshotPayload `json:"productDetails,omitempty"`
}

type orderPayload struct {
	ID             string             `json:"id"`
	OrderNo        string             `json:"orderNo"`
	Status         string             `json:"status"`
	Customer       customerPayload    `json:"customer"`
	PaymentMethod  string             `json:"paymentMethod"`
	ShippingMethod string             `json:"shippingMethod"`
	ShippingCost   int64              `json:"shippingCost"`
	TotalAmount    int64              `json:"totalAmount"`
	Items          []orderItemPayload `json:"orderItems"`
	TrackingCode   string             `json:"trackingCode,omitempty"`
	DeliveredAt    *time.Time         `json:"deliveredAt,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

func newOrderPayload(order domain.Order) orderPayload {
	items := make([]orderItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemPayload{
			Product:   item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return orderPayload{
		ID:      order.ID,
		OrderNo: order.OrderNo,
		Status:  string(order.Status),
		Customer: customerPayload{
			FullName: order.Customer.FullName,
			Email:    order.Customer.Email,
			Phone:    order.Customer.Phone,
			Address:  order.Customer.Address,
		},
		PaymentMethod:  string(order.PaymentMethod),
		ShippingMethod: string(order.ShippingMethod),
		ShippingCost:   order.ShippingCost,
		TotalAmount:    order.TotalAmount,
		Items:          items,
		TrackingCode:   order.TrackingCode,
		DeliveredAt:    order.DeliveredAt,
		CreatedAt:      order.CreatedAt,
		UpdatedAt:      order.UpdatedAt,
	}
}

// newOrderViewPayload attaches product details to each line. Lines whose product is gone keep
// the bare id.
func newOrderViewPayload(view domain.OrderView) orderPayload {
	payload := newOrderPayload(view.Order)
	for i := range payload.Items {
		snapshot, ok := view.Products[payload.Items[i].Product]
		if !ok {
			continue
		}
		payload.Items[i].Details = &productSnapshotPayload{
			ID:          snapshot.ID,
			Name:        snapshot.Name,
			Price:       snapshot.Price,
			ImageURL:    snapshot.Image.URL,
			Category:    string(snapshot.Category),
			IsAvailable: snapshot.IsAvailable,
		}
	}
	return payload
}

type userPayload struct {
	UID       string       `json:"uid"`
	Username  string       `json:"username"`
	Email     string       `json:"email"`
	Role      string       `json:"role"`
	Avatar    mediaPayload `json:"avatar"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

func newUserPayload(profile domain.UserProfile) userPayload {
	return userPayload{
		UID:       profile.UID,
		Username:  profile.Username,
		Email:     profile.Email,
		Role:      string(profile.Role),
		Avatar:    mediaPayload{URL: profile.Avatar.URL, AssetID: profile.Avatar.AssetID},
		CreatedAt: profile.CreatedAt,
		UpdatedAt: profile.UpdatedAt,
	}
}

type orderPaginationPayload struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalOrders int64 `json:"totalOrders"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

type orderPagePayload struct {
	Orders     []orderPayload         `json:"orders"`
	Pagination orderPaginationPayload `json:"pagination"`
}

func newOrderPagePayload(page domain.Page[domain.Order]) orderPagePayload {
	orders := make([]orderPayload, 0, len(page.Items))
	for _, order := range page.Items {
		orders = append(orders, newOrderPayload(order))
	}
	return orderPagePayload{
		Orders: orders,
		Pagination: orderPaginationPayload{
			CurrentPage: page.Info.CurrentPage,
			TotalPages:  page.Info.TotalPages,
			TotalOrders: page.Info.TotalItems,
			HasNextPage: page.Info.HasNextPage,
			HasPrevPage: page.Info.HasPrevPage,
		},
	}
}

type productPaginationPayload struct {
	Page          int   `json:"page"`
	Limit         int   `json:"limit"`
	TotalPages    int   `json:"totalPages"`
	TotalProducts int64 `json:"totalProducts"`
	HasNext       bool  `json:"hasNext"`
	HasPrev       bool  `json:"hasPrev"`
}

type productPagePayload struct {
	Products   []productPayload         `json:"products"`
	Pagination productPaginationPayload `json:"pagination"`
}

func newProductPagePayload(page domain.Page[domain.Product]) productPagePayload {
	products := make([]productPayload, 0, len(page.Items))
	for _, product := range page.Items {
		products = append(products, newProductPayload(product))
	}
	return productPagePayload{
		Products: products,
		Pagination: productPaginationPayload{
			Page:          page.Info.CurrentPage,
			Limit:         page.Info.Limit,
			TotalPages:    page.Info.TotalPages,
			TotalProducts: page.Info.TotalItems,
			HasNext:       page.Info.HasNextPage,
			HasPrev:       page.Info.HasPrevPage,
		},
	}
}
