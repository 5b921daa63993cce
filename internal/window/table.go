package window

// SymbolTable maps instrument symbols to bounded queues, creating a
// queue lazily on first upsert. Lookups of unknown symbols return an
// empty sequence rather than an error.
//
// The table is owned by a single engine/adapter instance and accessed
// only from that instance's goroutine (single writer per symbol), so it
// carries no lock of its own.
type SymbolTable[T any] struct {
	capacity int
	queues   map[string]*Queue[T]
}

// NewSymbolTable creates a table whose per-symbol queues hold at most
// capacity elements.
func NewSymbolTable[T any](capacity int) *SymbolTable[T] {
	return &SymbolTable[T]{
		capacity: capacity,
		queues:   make(map[string]*Queue[T]),
	}
}

// Upsert appends items to the symbol's queue, creating it on first use,
// and returns the queue.
func (t *SymbolTable[T]) Upsert(symbol string, items ...T) *Queue[T] {
	q, ok := t.queues[symbol]
	if !ok {
		q = NewQueue[T](t.capacity)
		t.queues[symbol] = q
	}
	for _, item := range items {
		q.Push(item)
	}
	return q
}

// Find returns the most recent min(limit, Len) elements for the symbol
// in chronological order. Unknown symbols yield an empty slice.
func (t *SymbolTable[T]) Find(symbol string, limit int) []T {
	q, ok := t.queues[symbol]
	if !ok {
		return []T{}
	}
	return q.Items(limit)
}

// Queue returns the symbol's queue, or nil if the symbol is unknown.
func (t *SymbolTable[T]) Queue(symbol string) *Queue[T] {
	return t.queues[symbol]
}

// Remove drops the symbol's queue entirely.
func (t *SymbolTable[T]) Remove(symbol string) {
	delete(t.queues, symbol)
}

// Symbols returns the number of tracked symbols.
func (t *SymbolTable[T]) Symbols() int { return len(t.queues) }
