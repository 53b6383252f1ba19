package integration

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntityType identifies a synchronizable ERP entity
type EntityType string

const (
	// EntityProduct is a catalog product / material
	EntityProduct EntityType = "PRODUCT"
	// EntityCustomer is a customer / business partner
	EntityCustomer EntityType = "CUSTOMER"
	// EntityOrder is a sales order
	EntityOrder EntityType = "ORDER"
)

// IsValid returns true if the entity type is valid
func (e EntityType) IsValid() bool {
	switch e {
	case EntityProduct, EntityCustomer, EntityOrder:
		return true
	default:
		return false
	}
}

// String returns the string representation of EntityType
func (e EntityType) String() string {
	return string(e)
}

// Product is a catalog item read from the ERP
type Product struct {
	ID          string          `json:"id"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	Active      bool            `json:"active"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Customer is a business partner read from the ERP
type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Active    bool      `json:"active"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrderStatus is the ERP-side status of a created order
type OrderStatus string

const (
	// OrderStatusCreated indicates the ERP accepted the order
	OrderStatusCreated OrderStatus = "CREATED"
	// OrderStatusOnHold indicates the ERP accepted the order but blocked it (credit, stock)
	OrderStatusOnHold OrderStatus = "ON_HOLD"
)

// OrderLine is a line of an order creation request
type OrderLine struct {
	ProductID string          `json:"product_id" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Amount returns quantity * unit price
func (l OrderLine) Amount() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

// OrderRequest asks the ERP to create a sales order
type OrderRequest struct {
	// ExternalRef is the platform's order reference; used as batch item ID
	ExternalRef string      `json:"external_ref" validate:"required,max=64"`
	CustomerID  string      `json:"customer_id" validate:"required"`
	Currency    string      `json:"currency" validate:"required,len=3"`
	Lines       []OrderLine `json:"lines" validate:"required,min=1,dive"`
}

// Total returns the sum of all line amounts
func (r OrderRequest) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range r.Lines {
		total = total.Add(l.Amount())
	}
	return total
}

// Order is a sales order created in the ERP
type Order struct {
	ID          string          `json:"id"`
	ExternalRef string          `json:"external_ref"`
	CustomerID  string          `json:"customer_id"`
	Status      OrderStatus     `json:"status"`
	Total       decimal.Decimal `json:"total"`
	Currency    string          `json:"currency"`
	CreatedAt   time.Time       `json:"created_at"`
}
