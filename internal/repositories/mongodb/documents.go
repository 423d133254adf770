package mongodb

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	domain "github.com/trendora/api/internal/domain"
)

type orderItemDocument struct {
	ProductID    string `bson:"productId"`
	Name         string `bson:"name"`
	Quantity     int    `bson:"quantity"`
	Price        int64  `bson:"price"`
	Image        string `bson:"image"`
	SelectedSize string `bson:"selectedSize"`
	Category     string `bson:"category,omitempty"`
}

type addressDocument struct {
	Address    string `bson:"address"`
	City       string `bson:"city"`
	PostalCode string `bson:"postalCode"`
	Country    string `bson:"country"`
}

type paymentDocument struct {
	Provider   string     `bson:"provider"`
	Reference  string     `bson:"reference"`
	ExternalID string     `bson:"externalId,omitempty"`
	Status     string     `bson:"status"`
	PaidAt     *time.Time `bson:"paidAt,omitempty"`
}

type orderDocument struct {
	ID              string              `bson:"_id"`
	OrderNumber     string              `bson:"orderNumber"`
	UserID          string              `bson:"userId"`
	Items           []orderItemDocument `bson:"items"`
	ShippingAddress addressDocument     `bson:"shippingAddress"`
	TotalAmount     int64               `bson:"totalAmount"`
	OrderDate       time.Time           `bson:"orderDate"`
	Status          string              `bson:"status"`
	Payment         *paymentDocument    `bson:"payment,omitempty"`
	CreatedAt       time.Time           `bson:"createdAt"`
	UpdatedAt       time.Time           `bson:"updatedAt"`
}

type cartItemDocument struct {
	ProductID    string `bson:"productId"`
	Quantity     int    `bson:"quantity"`
	SelectedSize string `bson:"selectedSize"`
}

// Carts use the owner's user ID as _id so each user has at most one document.
type cartDocument struct {
	ID        string             `bson:"_id"`
	UserID    string             `bson:"userId"`
	Items     []cartItemDocument `bson:"items"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

// Catalog documents may carry ObjectID or string identifiers.
type productDocument struct {
	ID        any      `bson:"_id"`
	Name      string   `bson:"name"`
	Price     int64    `bson:"price"`
	MainImage string   `bson:"mainImage"`
	Category  string   `bson:"category"`
	Sizes     []string `bson:"sizes"`
	Stock     int      `bson:"stock"`
}

type userDocument struct {
	ID          any    `bson:"_id"`
	DisplayName string `bson:"displayName"`
	Email       string `bson:"email"`
	IsAdmin     bool   `bson:"isAdmin"`
}

func encodeOrder(order domain.Order) orderDocument {
	doc := orderDocument{
		ID:          order.ID,
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
		doc.Payment = &paymentDocument{Provider: p.Provider, Reference: p.Reference, ExternalID: p.ExternalID, Status: string(p.Status), PaidAt: p.PaidAt}
	}
	return doc
}

func (doc orderDocument) toDomain() domain.Order {
	order := domain.Order{
		ID:          doc.ID,
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
		order.Payment = &domain.OrderPayment{Provider: p.Provider, Reference: p.Reference, ExternalID: p.ExternalID, Status: domain.PaymentStatus(p.Status), PaidAt: p.PaidAt}
	}
	return order
}

func (doc productDocument) toDomain() domain.Product {
	return domain.Product{
		ID:       idString(doc.ID),
		Name:     doc.Name,
		Price:    doc.Price,
		ImageURL: doc.MainImage,
		Category: doc.Category,
		Sizes:    append([]string(nil), doc.Sizes...),
		Stock:    doc.Stock,
	}
}

func (doc userDocument) toDomain() domain.UserSummary {
	return domain.UserSummary{ID: idString(doc.ID), DisplayName: doc.DisplayName, Email: doc.Email, IsAdmin: doc.IsAdmin}
}

// idCandidates returns the identifier in both string and ObjectID form when it parses as hex.
func idCandidates(id string) []any {
	out := []any{id}
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		out = append(out, oid)
	}
	return out
}

func idsFilter(ids []string) bson.M {
	candidates := make([]any, 0, len(ids)*2)
	for _, id := range ids {
		candidates = append(candidates, idCandidates(id)...)
	}
	return bson.M{"_id": bson.M{"$in": candidates}}
}

func idString(raw any) string {
	switch v := raw.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case string:
		return v
	default:
		return ""
	}
}
