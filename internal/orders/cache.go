package orders

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/mecsis-mcp/pkg/types"
)

// DefaultCacheSize is used when the configured size is not positive
const DefaultCacheSize = 256

// orderCache holds recently read full orders by id.
//
// A read-through fill races with writes: a reader may load an order, a
// writer may commit and invalidate, and only then the reader stores what it
// loaded. Readers take a ticket before going to the store and putIfCurrent
// drops the fill when any invalidation happened since the ticket.
type orderCache struct {
	mu         sync.Mutex
	generation uint64
	entries    *lru.Cache[int64, *types.Order]
}

func newOrderCache(size int) *orderCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[int64, *types.Order](size)
	if err != nil {
		entries, _ = lru.New[int64, *types.Order](DefaultCacheSize)
	}
	return &orderCache{entries: entries}
}

// get returns a copy so callers cannot mutate the cached order
func (c *orderCache) get(id int64) (*types.Order, bool) {
	order, ok := c.entries.Get(id)
	if !ok {
		return nil, false
	}
	return cloneOrder(order), true
}

// ticket returns the current invalidation generation
func (c *orderCache) ticket() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// putIfCurrent stores order unless an invalidation happened after ticket
// was taken. It reports whether the order was stored.
func (c *orderCache) putIfCurrent(order *types.Order, ticket uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != ticket {
		return false
	}
	c.entries.Add(order.ID, cloneOrder(order))
	return true
}

func (c *orderCache) invalidate(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.entries.Remove(id)
}

func (c *orderCache) len() int {
	return c.entries.Len()
}

func cloneOrder(o *types.Order) *types.Order {
	out := *o
	if o.ResponsibleID != nil {
		id := *o.ResponsibleID
		out.ResponsibleID = &id
	}
	if o.ExpectedDelivery != nil {
		delivery := *o.ExpectedDelivery
		out.ExpectedDelivery = &delivery
	}
	out.Items = make([]types.OrderItem, len(o.Items))
	copy(out.Items, o.Items)
	out.Collaborators = make([]types.OrderCollaborator, len(o.Collaborators))
	copy(out.Collaborators, o.Collaborators)
	return &out
}
