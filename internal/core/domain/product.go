package domain

// LineItem is one product/quantity pair inside a cart or an order.
// Prices are in minor currency units.
type LineItem struct {
	Article   string
	Title     string
	UnitPrice int64
	Quantity  int
}

func (li LineItem) LineTotal() int64 {
	return li.UnitPrice * int64(li.Quantity)
}

// StockRecord is the catalog's view of a product: what is left on the
// shelf and how many units have been sold so far.
type StockRecord struct {
	Article    string
	Title      string
	UnitPrice  int64
	Available  int
	SalesCount int64
}
