package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/paper-supply/generic"
	"go.uber.org/zap"
)

// =============================================================================
// ORDER FULFILLMENT
// =============================================================================

type OrderStatus string

const (
	OrderCompleted OrderStatus = "completed"
	OrderRejected  OrderStatus = "rejected"
	OrderFailed    OrderStatus = "failed"
)

type OrderLine struct {
	ItemName      string                `json:"item_name"`
	Quantity      int                   `json:"quantity"`
	Amount        decimal.Decimal       `json:"amount"`
	TransactionID generic.TransactionID `json:"transaction_id"`
}

// Order is what fulfilling a quote produced.
type Order struct {
	QuoteID        string                  `json:"quote_id"`
	Status         OrderStatus             `json:"status"`
	Date           generic.TimePoint       `json:"date"`
	Lines          []OrderLine             `json:"lines"`
	TotalAmount    decimal.Decimal         `json:"total_amount"`
	TransactionIDs []generic.TransactionID `json:"transaction_ids"`
	Reason         string                  `json:"reason,omitempty"`
}

type Fulfiller struct {
	Ledger generic.Ledger
	Logger *zap.Logger
}

func NewFulfiller(ledger generic.Ledger, logger *zap.Logger) *Fulfiller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fulfiller{Ledger: ledger, Logger: logger}
}

// Fulfill writes one Sale per quote line with its discounted total.
//
// A quote with any unavailable line is rejected with ErrOrderRejected and
// nothing is written. The sales go through a single AppendBatch, so either
// every line lands or none do. Zero-quantity lines are not written.
//
// The returned Order is non-nil even on error, carrying the final status.
func (f *Fulfiller) Fulfill(ctx context.Context, quote *Quote, date generic.TimePoint) (*Order, error) {
	if quote == nil {
		return &Order{Status: OrderFailed, Date: date, TotalAmount: decimal.Zero},
			&generic.ValidationError{Field: "quote", Message: "quote is required"}
	}
	order := &Order{
		QuoteID:     quote.ID,
		Date:        date,
		TotalAmount: decimal.Zero,
	}
	if date.IsZero() {
		order.Status = OrderFailed
		return order, &generic.ValidationError{Field: "date", Message: "date is required"}
	}
	if !quote.AllItemsAvailable {
		order.Status = OrderRejected
		order.Reason = "unavailable items"
		return order, generic.ErrOrderRejected
	}

	var txs []generic.Transaction
	for _, line := range quote.Lines {
		if line.Quantity == 0 {
			continue
		}
		txs = append(txs, generic.Transaction{
			ItemName:   line.ItemName,
			Kind:       generic.KindSale,
			Units:      generic.UnitsPtr(line.Quantity),
			Amount:     line.DiscountedTotal,
			OccurredOn: date,
			Reference:  "quote:" + quote.ID,
		})
		order.Lines = append(order.Lines, OrderLine{
			ItemName: line.ItemName,
			Quantity: line.Quantity,
			Amount:   line.DiscountedTotal,
		})
		order.TotalAmount = order.TotalAmount.Add(line.DiscountedTotal)
	}

	ids, err := f.Ledger.AppendBatch(ctx, txs)
	if err != nil {
		order.Status = OrderFailed
		order.Reason = err.Error()
		f.Logger.Error("fulfillment failed",
			zap.String("quote_id", quote.ID),
			zap.Error(err))
		if errors.Is(err, generic.ErrValidation) {
			return order, err
		}
		return order, fmt.Errorf("%w: %w", generic.ErrTransactionFailed, err)
	}
	for i := range order.Lines {
		order.Lines[i].TransactionID = ids[i]
	}
	order.TransactionIDs = ids
	order.Status = OrderCompleted

	f.Logger.Info("order fulfilled",
		zap.String("quote_id", quote.ID),
		zap.String("date", date.String()),
		zap.Int("lines", len(order.Lines)),
		zap.String("total", order.TotalAmount.StringFixed(2)))
	return order, nil
}
