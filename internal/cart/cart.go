// Package cart holds the lines a customer is building at the kiosk before the
// order is submitted.
package cart

import (
	"sync"

	"kioskpos/internal/models"
	"kioskpos/internal/store"

	"github.com/google/uuid"
)

type Line struct {
	Product  models.Product `json:"product"`
	Quantity int            `json:"quantity"`
}

func (l Line) Subtotal() int64 {
	return l.Product.Price * int64(l.Quantity)
}

// Snapshot is what subscribers receive after every change.
type Snapshot struct {
	Lines []Line `json:"lines"`
	Total int64  `json:"total"`
}

// Cart keeps at most one line per product id, in the order products were
// first added. The total is always derived from the lines.
type Cart struct {
	mu          sync.Mutex
	lines       []Line
	requestID   string
	subscribers map[int]func(Snapshot)
	nextID      int
}

func New() *Cart {
	return &Cart{subscribers: make(map[int]func(Snapshot))}
}

// AddProduct adds one unit of product, creating its line if needed.
func (c *Cart) AddProduct(product models.Product) {
	c.Add(product, 1)
}

// Add puts quantity more units of product on its line. Quantities below 1
// are ignored.
func (c *Cart) Add(product models.Product, quantity int) {
	if quantity < 1 {
		return
	}
	c.mutate(func() bool {
		for i := range c.lines {
			if c.lines[i].Product.ProductID == product.ProductID {
				c.lines[i].Quantity += quantity
				return true
			}
		}
		c.lines = append(c.lines, Line{Product: product, Quantity: quantity})
		return true
	})
}

// SetQuantity replaces a line's quantity. Anything below 1 removes the line;
// an id not in the cart is ignored.
func (c *Cart) SetQuantity(productID string, quantity int) {
	if quantity < 1 {
		c.RemoveProduct(productID)
		return
	}
	c.mutate(func() bool {
		for i := range c.lines {
			if c.lines[i].Product.ProductID == productID {
				c.lines[i].Quantity = quantity
				return true
			}
		}
		return false
	})
}

func (c *Cart) RemoveProduct(productID string) {
	c.mutate(func() bool {
		for i := range c.lines {
			if c.lines[i].Product.ProductID == productID {
				c.lines = append(c.lines[:i], c.lines[i+1:]...)
				return true
			}
		}
		return false
	})
}

func (c *Cart) Clear() {
	c.mutate(func() bool {
		if len(c.lines) == 0 {
			return false
		}
		c.lines = nil
		return true
	})
}

func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyLinesLocked()
}

func (c *Cart) Total() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return totalOf(c.lines)
}

// RequestID is the idempotency key for submitting the cart as it is now. It
// stays the same across retries and changes once the lines change or the
// cart is cleared.
func (c *Cart) RequestID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requestIDLocked()
}

// Submission returns the order lines together with the request id that
// belongs to exactly those lines.
func (c *Cart) Submission() ([]store.OrderLineInput, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.itemsLocked(), c.requestIDLocked()
}

func (c *Cart) requestIDLocked() string {
	if c.requestID == "" {
		c.requestID = uuid.NewString()
	}
	return c.requestID
}

// Len is the number of distinct products.
func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines)
}

// Items converts the cart into order request lines.
func (c *Cart) Items() []store.OrderLineInput {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.itemsLocked()
}

func (c *Cart) itemsLocked() []store.OrderLineInput {
	items := make([]store.OrderLineInput, 0, len(c.lines))
	for _, line := range c.lines {
		items = append(items, store.OrderLineInput{ProductID: line.Product.ProductID, Quantity: line.Quantity})
	}
	return items
}

func (c *Cart) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers fn for change notifications. The returned func removes
// it again.
func (c *Cart) Subscribe(fn func(Snapshot)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.subscribers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subscribers, id)
	}
}

// mutate runs change under the lock and notifies subscribers afterwards,
// outside it, when change reports that something moved.
func (c *Cart) mutate(change func() bool) {
	c.mu.Lock()
	if !change() {
		c.mu.Unlock()
		return
	}
	c.requestID = ""
	snap := c.snapshotLocked()
	subscribers := make([]func(Snapshot), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subscribers = append(subscribers, fn)
	}
	c.mu.Unlock()

	for _, fn := range subscribers {
		fn(snap)
	}
}

func (c *Cart) snapshotLocked() Snapshot {
	return Snapshot{Lines: c.copyLinesLocked(), Total: totalOf(c.lines)}
}

func (c *Cart) copyLinesLocked() []Line {
	lines := make([]Line, len(c.lines))
	copy(lines, c.lines)
	return lines
}

func totalOf(lines []Line) int64 {
	var total int64
	for _, line := range lines {
		total += line.Subtotal()
	}
	return total
}
