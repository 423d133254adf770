package firestore

import (
	"time"

	domain "github.com/trendora/api/internal/domain"
)

type orderItemDocument struct {
	ProductID    string `firestore:"productId"`
	Name         string `firestore:"name"`
	Quantity     int    `firestore:"quantity"`
	Price        int64  `firestore:"price"`
	Image        string `firestore:"image"`
	SelectedSize string `firestore:"selectedSize"`
	Category     string `firestore:"category,omitempty"`
}

type addressDocument struct {
	Address    string `firestore:"address"`
	City       string `firestore:"city"`
	PostalCode string `firestore:"postalCode"`
	Country    string `firestore:"country"`
}

type paymentDocument struct {
	Provider   string     `firestore:"provider"`
	Reference  string     `firestore:"reference"`
	ExternalID string     `firestore:"externalId,omitempty"`
	Status     string     `firestore:"status"`
	PaidAt     *time.Time `firestore:"paidAt,omitempty"`
}

type orderDocument struct {
	OrderNumber     string              `firestore:"orderNumber"`
	UserID          string              `firestore:"userId"`
	Items           []orderItemDocument `firestore:"items"`
	ShippingAddress addressDocument     `firestore:"shippingAddress"`
	TotalAmount     int64               `firestore:"totalAmount"`
	OrderDate       time.Time           `firestore:"orderDate"`
	Status          string              `firestore:"status"`
	Payment         *paymentDocument    `firestore:"payment,omitempty"`
	CreatedAt       time.Time           `firestore:"createdAt"`
	UpdatedAt       time.Time           `firestore:"updatedAt"`
}

type cartItemDocument struct {
	ProductID    string `firestore:"productId"`
	Quantity     int    `firestore:"quantity"`
	SelectedSize string `firestore:"selectedSize"`
}

type cartDocument struct {
	Items     []cartItemDocument `firestore:"items"`
	UpdatedAt time.Time          `firestore:"updatedAt"`
}

type productDocument struct {
	Name      string   `firestore:"name"`
	Price     int64    `firestore:"price"`
	MainImage string   `firestore:"mainImage"`
	Category  string   `firestore:"category"`
	Sizes     []string `firestore:"sizes"`
	Stock     int      `firestore:"stock"`
}

type userDocument struct {
	DisplayName string `firestore:"displayName"`
	Email       string `firestore:"email"`
	IsAdmin     bool   `firestore:"isAdmin"`
}

func encodeOrder(order domain.Order) orderDocument {
	doc := orderDocument{
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Items:       make([]orderItemDocument, 0, len(order.Items)),
		ShippingAddress: addressDocument{
			Address:    order.ShippingAddress.Address,
			City:       order.ShippingAddress.City,
			PostalCode: order.ShippingAddress.PostalCode,
			Country:    order.ShippingAddress.Country,
		},
		TotalAmount: order.TotalAmount,
		OrderDate:   order.OrderDate.UTC(),
		Status:      string(order.Status),
		CreatedAt:   order.CreatedAt.UTC(),
		UpdatedAt:   order.UpdatedAt.UTC(),
	}
	for _, item := range order.Items {
		doc.Items = append(doc.Items, orderItemDocument{
			ProductID:    item.ProductID,
			Name:         item.Name,
			Quantity:     item.Quantity,
			Price:        item.UnitPrice,
			Image:        item.ImageURL,
			SelectedSize: item.SelectedSize,
			Category:     item.Category,
		})
	}
	if p := order.Payment; p != nil {
		doc.Payment = &paymentDocument{
			Provider:   p.Provider,
			Reference:  p.Reference,
			ExternalID: p.ExternalID,
			Status:     string(p.Status),
			PaidAt:     p.PaidAt,
		}
	}
	return doc
}

func decodeOrder(id string, doc orderDocument) domain.Order {
	order := domain.Order{
		ID:          id,
		OrderNumber: doc.OrderNumber,
		UserID:      doc.UserID,
		Items:       make([]domain.OrderLineItem, 0, len(doc.Items)),
		ShippingAddress: domain.ShippingAddress{
			Address:    doc.ShippingAddress.Address,
			City:       doc.ShippingAddress.City,
			PostalCode: doc.ShippingAddress.PostalCode,
			Country:    doc.ShippingAddress.Country,
		},
		TotalAmount: doc.TotalAmount,
		OrderDate:   doc.OrderDate.UTC(),
		Status:      domain.OrderStatus(doc.Status),
		CreatedAt:   doc.CreatedAt.UTC(),
		UpdatedAt:   doc.UpdatedAt.UTC(),
	}
	for _, item := range doc.Items {
		order.Items = append(order.Items, domain.OrderLineItem{
			ProductID:    item.ProductID,
			Name:         item.Name,
			Quantity:     item.Quantity,
			UnitPrice:    item.Price,
			ImageURL:     item.Image,
			SelectedSize: item.SelectedSize,
			Category:     item.Category,
		})
	}
	if p := doc.Payment; p != nil {
		order.Payment = &domain.OrderPayment{
			Provider:   p.Provider,
			Reference:  p.Reference,
			ExternalID: p.ExternalID,
			Status:     domain.PaymentStatus(p.Status),
			PaidAt:     p.PaidAt,
		}
	}
	return order
}

func encodeCart(cart domain.Cart) cartDocument {
	doc := cartDocument{Items: make([]cartItemDocument, 0, len(cart.Items)), UpdatedAt: cart.UpdatedAt.UTC()}
	for _, item := range cart.Items {
		doc.Items = append(doc.Items, cartItemDocument(item))
	}
	return doc
}

func decodeCart(userID string, doc cartDocument) domain.Cart {
	cart := domain.Cart{UserID: userID, Items: make([]domain.CartItem, 0, len(doc.Items)), UpdatedAt: doc.UpdatedAt.UTC()}
	for _, item := range doc.Items {
		cart.Items = append(cart.Items, domain.CartItem(item))
	}
	return cart
}

func decodeProduct(id string, doc productDocument) domain.Product {
	return domain.Product{
		ID:       id,
		Name:     doc.Name,
		Price:    doc.Price,
		ImageURL: doc.MainImage,
		Category: doc.Category,
		Sizes:    append([]string(nil), doc.Sizes...),
		Stock:    doc.Stock,
	}
}

func decodeUser(id string, doc userDocument) domain.UserSummary {
	return domain.UserSummary{ID: id, DisplayName: doc.DisplayName, Email: doc.Email, IsAdmin: doc.IsAdmin}
}
