package market

import (
	"sync"
	"time"
)

// Quote is the last price seen for a symbol.
type Quote struct {
	Price  float64   `json:"price"`
	Source string    `json:"source"`
	At     time.Time `json:"at"`
}

// Book caches the most recent price per symbol.
type Book struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

func NewBook() *Book {
	return &Book{quotes: make(map[string]Quote)}
}

func (b *Book) Set(symbol string, price float64, source string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.quotes[symbol] = Quote{Price: price, Source: source, At: time.Now().UTC()}
}

func (b *Book) Get(symbol string) (Quote, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	q, ok := b.quotes[symbol]
	return q, ok
}

