package handlers

import (
	"time"

	"github.com/trendora/api/internal/services"
)

type shippingAddressPayload struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

func (p shippingAddressPayload) toDomain() services.ShippingAddress {
	return services.ShippingAddress{
		Address:    p.Address,
		City:       p.City,
		PostalCode: p.PostalCode,
		Country:    p.Country,
	}
}

func buildAddressPayload(addr services.ShippingAddress) shippingAddressPayload {
	return shippingAddressPayload{
		Address:    addr.Address,
		City:       addr.City,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
	}
}

type productPayload struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Price    int64    `json:"price"`
	ImageURL string   `json:"image_url,omitempty"`
	Category string   `json:"category,omitempty"`
	Sizes    []string `json:"sizes,omitempty"`
}

type cartLinePayload struct {
	ProductID    string          `json:"product_id"`
	Quantity     int             `json:"quantity"`
	SelectedSize string          `json:"selected_size,omitempty"`
	Product      *productPayload `json:"product"`
}

type cartPayload struct {
	UserID    string            `json:"user_id"`
	Items     []cartLinePayload `json:"items"`
	Subtotal  int64             `json:"subtotal"`
	UpdatedAt *time.Time        `json:"updated_at,omitempty"`
}

func buildCartPayload(view services.CartView) cartPayload {
	payload := cartPayload{
		UserID:   view.UserID,
		Items:    make([]cartLinePayload, 0, len(view.Lines)),
		Subtotal: view.Subtotal,
	}
	if !view.UpdatedAt.IsZero() {
		updated := view.UpdatedAt.UTC()
		payload.UpdatedAt = &updated
	}
	for _, line := range view.Lines {
		item := cartLinePayload{
			ProductID:    line.Item.ProductID,
			Quantity:     line.Item.Quantity,
			SelectedSize: line.Item.SelectedSize,
		}
		if p := line.Product; p != nil {
			item.Product = &productPayload{
				ID:       p.ID,
				Name:     p.Name,
				Price:    p.Price,
				ImageURL: p.ImageURL,
				Category: p.Category,
				Sizes:    p.Sizes,
			}
		}
		payload.Items = append(payload.Items, item)
	}
	return payload
}

type orderItemPayload struct {
	ProductID    string `json:"product_id"`
	Name         string `json:"name"`
	Quantity     int    `json:"quantity"`
	UnitPrice    int64  `json:"unit_price"`
	Subtotal     int64  `json:"subtotal"`
	ImageURL     string `json:"image_url,omitempty"`
	SelectedSize string `json:"selected_size,omitempty"`
	Category     string `json:"category,omitempty"`
}

type orderPaymentPayload struct {
	Provider   string     `json:"provider"`
	Reference  string     `json:"reference,omitempty"`
	ExternalID string     `json:"external_id,omitempty"`
	Status     string     `json:"status"`
	PaidAt     *time.Time `json:"paid_at,omitempty"`
}

type ownerPayload struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
}

type orderPayload struct {
	ID              string                 `json:"id"`
	OrderNumber     string                 `json:"order_number"`
	UserID          string                 `json:"user_id"`
	Status          string                 `json:"status"`
	Items           []orderItemPayload     `json:"items"`
	ShippingAddress shippingAddressPayload `json:"shipping_address"`
	TotalAmount     int64                  `json:"total_amount"`
	OrderDate       time.Time              `json:"order_date"`
	Payment         *orderPaymentPayload   `json:"payment,omitempty"`
	Owner           *ownerPayload          `json:"owner,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		UserID:          order.UserID,
		Status:          string(order.Status),
		Items:           make([]orderItemPayload, 0, len(order.Items)),
		ShippingAddress: buildAddressPayload(order.ShippingAddress),
		TotalAmount:     order.TotalAmount,
		OrderDate:       order.OrderDate.UTC(),
		CreatedAt:       order.CreatedAt.UTC(),
		UpdatedAt:       order.UpdatedAt.UTC(),
	}
	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderItemPayload{
			ProductID:    item.ProductID,
			Name:         item.Name,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			Subtotal:     item.Subtotal(),
			ImageURL:     item.ImageURL,
			SelectedSize: item.SelectedSize,
			Category:     item.Category,
		})
	}
	if p := order.Payment; p != nil {
		payload.Payment = &orderPaymentPayload{
			Provider:   p.Provider,
			Reference:  p.Reference,
			ExternalID: p.ExternalID,
			Status:     string(p.Status),
		}
		if p.PaidAt != nil {
			paidAt := p.PaidAt.UTC()
			payload.Payment.PaidAt = &paidAt
		}
	}
	return payload
}

func buildOrderWithOwnerPayload(order services.OrderWithOwner) orderPayload {
	payload := buildOrderPayload(order.Order)
	payload.Owner = &ownerPayload{
		ID:          order.Owner.ID,
		DisplayName: order.Owner.DisplayName,
		Email:       order.Owner.Email,
	}
	return payload
}

type orderListResponse struct {
	Items []orderPayload `json:"items"`
}

type dailySalesPayload struct {
	Date        string `json:"date"`
	TotalSales  int64  `json:"total_sales"`
	TotalOrders int    `json:"total_orders"`
}

type categorySalesPayload struct {
	Category       string `json:"category"`
	TotalRevenue   int64  `json:"total_revenue"`
	TotalItemsSold int    `json:"total_items_sold"`
}

type salesSummaryPayload struct {
	TotalRevenue int64 `json:"total_revenue"`
	TotalOrders  int   `json:"total_orders"`
}

type orderStatsPayload struct {
	DailySeries       []dailySalesPayload    `json:"daily_series"`
	Summary           salesSummaryPayload    `json:"summary"`
	CategoryBreakdown []categorySalesPayload `json:"category_breakdown"`
}

func buildOrderStatsPayload(stats services.OrderStats) orderStatsPayload {
	payload := orderStatsPayload{
		DailySeries:       make([]dailySalesPayload, 0, len(stats.DailySeries)),
		Summary:           salesSummaryPayload{TotalRevenue: stats.Summary.TotalRevenue, TotalOrders: stats.Summary.TotalOrders},
		CategoryBreakdown: make([]categorySalesPayload, 0, len(stats.CategoryBreakdown)),
	}
	for _, day := range stats.DailySeries {
		payload.DailySeries = append(payload.DailySeries, dailySalesPayload{
			Date:        day.Date,
			TotalSales:  day.TotalSales,
			TotalOrders: day.TotalOrders,
		})
	}
	for _, category := range stats.CategoryBreakdown {
		payload.CategoryBreakdown = append(payload.CategoryBreakdown, categorySalesPayload{
			Category:       category.Category,
			TotalRevenue:   category.TotalRevenue,
			TotalItemsSold: category.TotalItemsSold,
		})
	}
	return payload
}
