package risk

// Sizer turns an entry and a stop-loss into an order quantity
type Sizer interface {
	Quantity(entry, stopLoss float64) (float64, error)
}
