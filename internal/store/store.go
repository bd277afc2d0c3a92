// Package store provides read access to the shop's orders, products and
// company information, and persists chatbot conversations.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a single-record lookup matches nothing.
var ErrNotFound = errors.New("not found")

// Table names in the hosted database.
const (
	TableOrders        = "Pedidos"
	TableProducts      = "Productos"
	TableCompanyInfo   = "Info_empresa"
	TableConversations = "Conversaciones"
)

// DefaultProductNameColumns are the columns product searches match against.
var DefaultProductNameColumns = []string{"product_name", "nombre_producto", "nombre"}

// Availability values used in the Productos table.
const (
	AvailabilityInStock    = "En stock"
	AvailabilityOutOfStock = "Sin stock"
)

// unknownValue is used when an order lacks a status or customer.
const unknownValue = "Desconocido"

// Conversation is one saved chatbot exchange.
type Conversation struct {
	ID          string    `json:"id"`
	UserMessage string    `json:"mensaje_usuario"`
	BotResponse string    `json:"respuesta_bot"`
	Intent      string    `json:"intencion,omitempty"`
	Timestamp   time.Time `json:"marca_tiempo"`
}

// Store is the data-query collaborator used by the database tool and the assistant.
// Records are plain maps keyed by column name.
type Store interface {
	// GetOrderByID returns the order with the given id (case-insensitive) or ErrNotFound.
	GetOrderByID(ctx context.Context, orderID string) (map[string]any, error)
	// SearchProducts matches each keyword against the product name columns and
	// returns at most five deduplicated products.
	SearchProducts(ctx context.Context, keywords []string) ([]map[string]any, error)
	// GetAllCustomers returns one {customer_name} record per distinct customer, sorted.
	GetAllCustomers(ctx context.Context) ([]map[string]any, error)
	GetAllOrders(ctx context.Context) ([]map[string]any, error)
	GetOrderStatistics(ctx context.Context) (map[string]any, error)
	GetAllProductsDetailed(ctx context.Context) ([]map[string]any, error)
	GetProductStatistics(ctx context.Context) (map[string]any, error)
	GetBusinessSummary(ctx context.Context) (map[string]any, error)
	GetAllCompanyInfo(ctx context.Context) ([]map[string]any, error)
	// SaveConversation stores c, assigning an id and timestamp when empty.
	SaveConversation(ctx context.Context, c Conversation) (Conversation, error)
	// RecentConversations returns up to limit conversations, newest first.
	RecentConversations(ctx context.Context, limit int) ([]Conversation, error)
	Close() error
}
