// Package execution translates trade signals into venue order
// placements through an injected OrderPlacer collaborator.
//
// Placement failures are terminal for the signal that caused them:
// the error is logged and recorded in the result, never propagated
// upstream, so a rejected order can not stall the signal pipeline.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log"

	"quantenginev1/internal/model"

	"github.com/shopspring/decimal"
)

// Order is one placement request derived from a signal.
type Order struct {
	Symbol   string          `json:"symbol"`
	Side     string          `json:"side"`   // buy or sell
	Offset   string          `json:"offset"` // open or close
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// OrderPlacer is the venue order API boundary. Implementations place
// the order and return its venue identifier.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, order Order) (string, error)
}

// OrderExecutionError marks a placement the venue rejected.
type OrderExecutionError struct {
	Order  Order
	Reason string
}

func (e *OrderExecutionError) Error() string {
	return fmt.Sprintf("order rejected for %s %s/%s: %s", e.Order.Symbol, e.Order.Side, e.Order.Offset, e.Reason)
}

// Result is the outcome of executing one signal.
type Result struct {
	OrderID string       `json:"order_id"`
	Status  string       `json:"status"` // PLACED or ERROR
	Message string       `json:"message"`
	Signal  model.Signal `json:"signal"`
}

// Executor converts signals into orders with a fixed per-trade
// quantity and forwards them to the placer.
type Executor struct {
	placer   OrderPlacer
	quantity decimal.Decimal
	resultCh chan Result
}

// New creates an executor. quantity applies to every order.
func New(placer OrderPlacer, quantity decimal.Decimal, resultBufferSize int) *Executor {
	return &Executor{
		placer:   placer,
		quantity: quantity,
		resultCh: make(chan Result, resultBufferSize),
	}
}

// Results returns the channel of placement outcomes.
func (e *Executor) Results() <-chan Result {
	return e.resultCh
}

// orderFor maps a signal kind onto venue side/offset vocabulary.
func (e *Executor) orderFor(sig model.Signal) Order {
	o := Order{Symbol: sig.Symbol, Quantity: e.quantity, Price: sig.Price}
	switch sig.Kind {
	case model.OpenLong:
		o.Side, o.Offset = "buy", "open"
	case model.CloseLong:
		o.Side, o.Offset = "sell", "close"
	case model.OpenShort:
		o.Side, o.Offset = "sell", "open"
	case model.CloseShort:
		o.Side, o.Offset = "buy", "close"
	}
	return o
}

// Execute places the order for one signal. Rejections and transport
// errors are absorbed into an ERROR result.
func (e *Executor) Execute(ctx context.Context, sig model.Signal) Result {
	order := e.orderFor(sig)

	id, err := e.placer.PlaceOrder(ctx, order)
	if err != nil {
		var rejected *OrderExecutionError
		if errors.As(err, &rejected) {
			log.Printf("[executor] %s %s/%s rejected: %s", order.Symbol, order.Side, order.Offset, rejected.Reason)
		} else {
			log.Printf("[executor] %s %s/%s failed: %v", order.Symbol, order.Side, order.Offset, err)
		}
		return Result{Status: "ERROR", Message: err.Error(), Signal: sig}
	}

	log.Printf("[executor] placed %s %s/%s qty=%s id=%s", order.Symbol, order.Side, order.Offset, order.Quantity, id)
	return Result{OrderID: id, Status: "PLACED", Signal: sig}
}

// Run consumes signals until ctx is cancelled or the channel closes.
// Results that nobody drains are dropped rather than blocking.
func (e *Executor) Run(ctx context.Context, signals <-chan model.Signal) {
	defer close(e.resultCh)
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			res := e.Execute(ctx, sig)
			select {
			case e.resultCh <- res:
			default:
				log.Printf("[executor] result channel full, dropping result for %s", sig.Symbol)
			}
		}
	}
}
