package engine

type OrderStatus string

const (
	StatusFilled      OrderStatus = "FILLED"
	StatusPartialFill OrderStatus = "PARTIAL_FILL"
	StatusDropped     OrderStatus = "DROPPED"
	StatusRejected    OrderStatus = "REJECTED"
)

// Order is one trading intent for a single timestep. Quantity is signed:
// positive buys, negative sells. Orders are never carried across timesteps.
type Order struct {
	Symbol   string
	Price    int64 // price in ticks, must be positive
	Quantity int64
}

func NewOrder(symbol string, price, quantity int64) (Order, error) {
	if symbol == "" {
		return Order{}, &ValidationError{Message: "Invalid order: symbol is required"}
	}
	if price <= 0 {
		return Order{}, &ValidationError{Message: "Invalid order: price must be positive"}
	}
	return Order{Symbol: symbol, Price: price, Quantity: quantity}, nil
}

func (o Order) IsBuy() bool {
	return o.Quantity > 0
}

// Size returns the order magnitude regardless of side.
func (o Order) Size() int64 {
	if o.Quantity < 0 {
		return -o.Quantity
	}
	return o.Quantity
}

// Trade is a confirmed execution against the book or against a market trade.
// Quantity keeps the order's sign convention: positive for buys, negative for
// sells. Immutable once created; appended to the run's execution log.
type Trade struct {
	TradeID   string
	Timestamp int64
	Symbol    string
	Price     int64
	Quantity  int64
}

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
