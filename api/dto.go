/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Domain types that
  already carry JSON tags (Quote, Order, StockOrder, FinancialReport,
  workflow.Result) are returned as-is; everything else goes through a DTO.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Request types carry go-playground/validator tags. Handlers call
  h.decode, which rejects unknown JSON and runs the validator; failures
  come back as 400 with a field -> tag map.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/warp/paper-supply/generic"
	"github.com/warp/paper-supply/inventory"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// ProcessRequest is a free-text customer request.
type ProcessRequest struct {
	Text      string `json:"text" validate:"required"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	JobType   string `json:"job_type"`
	EventType string `json:"event_type"`
}

type ItemRequest struct {
	ItemName string `json:"item_name" validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=0,lte=2147483647"`
}

// ItemsRequest carries structured items for quoting or ordering.
type ItemsRequest struct {
	Date  string        `json:"date" validate:"required,datetime=2006-01-02"`
	Items []ItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (r ItemsRequest) requested() []inventory.RequestedItem {
	out := make([]inventory.RequestedItem, len(r.Items))
	for i, it := range r.Items {
		out[i] = inventory.RequestedItem{ItemName: it.ItemName, Quantity: it.Quantity}
	}
	return out
}

type StockOrderRequest struct {
	ItemName string `json:"item_name" validate:"required"`
	Quantity int    `json:"quantity" validate:"gt=0,lte=2147483647"`
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// TransactionDTO is a ledger row. Price is the unsigned amount.
type TransactionDTO struct {
	ID              int64  `json:"id"`
	ItemName        string `json:"item_name,omitempty"`
	TransactionType string `json:"transaction_type"`
	Units           *int   `json:"units,omitempty"`
	Price           string `json:"price"`
	TransactionDate string `json:"transaction_date"`
	Reference       string `json:"reference,omitempty"`
}

func toTransactionDTO(tx generic.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:              int64(tx.ID),
		ItemName:        tx.ItemName,
		TransactionType: string(tx.Kind),
		Units:           tx.Units,
		Price:           tx.Amount.StringFixed(2),
		TransactionDate: tx.OccurredOn.String(),
		Reference:       tx.Reference,
	}
}

type InventoryDTO struct {
	Date  string         `json:"date"`
	Stock map[string]int `json:"stock"`
}

// StockLevelDTO reports one item. Stock is signed; Available is floored at zero.
type StockLevelDTO struct {
	ItemName      string `json:"item_name"`
	Date          string `json:"date"`
	Stock         int    `json:"stock"`
	Available     int    `json:"available"`
	MinStockLevel *int   `json:"min_stock_level,omitempty"`
}

type OrderResponse struct {
	Quote *inventory.Quote `json:"quote"`
	Order *inventory.Order `json:"order"`
}

type CatalogItemDTO struct {
	ItemName      string `json:"item_name"`
	Category      string `json:"category"`
	UnitPrice     string `json:"unit_price"`
	Tracked       bool   `json:"tracked"`
	MinStockLevel *int   `json:"min_stock_level,omitempty"`
}

type QuoteRecordDTO struct {
	ID          int64  `json:"id"`
	Request     string `json:"request"`
	TotalAmount string `json:"total_amount"`
	Explanation string `json:"explanation"`
	JobType     string `json:"job_type,omitempty"`
	OrderSize   string `json:"order_size,omitempty"`
	EventType   string `json:"event_type,omitempty"`
	OrderDate   string `json:"order_date"`
}

func toQuoteRecordDTO(rec inventory.QuoteRecord) QuoteRecordDTO {
	return QuoteRecordDTO{
		ID:          rec.ID,
		Request:     rec.Request,
		TotalAmount: rec.TotalAmount.StringFixed(2),
		Explanation: rec.Explanation,
		JobType:     rec.JobType,
		OrderSize:   rec.OrderSize,
		EventType:   rec.EventType,
		OrderDate:   generic.FromTime(rec.OrderDate).String(),
	}
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}
