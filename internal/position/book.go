package position

import (
	"errors"
	"sort"
	"sync"

	"tier_bot/internal/models"
)

var (
	ErrPositionActive = errors.New("position already active for key")
	ErrNotFound       = errors.New("no active position for key")
)

// Book активные позиции по ключу (symbol, tier). Наружу только копии.
type Book struct {
	mu     sync.Mutex
	active map[models.Key]*Position
}

func NewBook() *Book {
	return &Book{active: map[models.Key]*Position{}}
}

// Open добавляет позицию, если по ключу нет незакрытой.
func (b *Book) Open(p *Position) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cur, ok := b.active[p.Key]; ok && !cur.Closed() {
		return ErrPositionActive
	}
	b.active[p.Key] = p
	return nil
}

func (b *Book) Has(key models.Key) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.active[key]
	return ok && !p.Closed()
}

// Do выполняет fn над позицией под блокировкой. Закрытая позиция удаляется из книги после fn.
func (b *Book) Do(key models.Key, fn func(p *Position) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.active[key]
	if !ok {
		return ErrNotFound
	}
	err := fn(p)
	if p.Closed() {
		delete(b.active, key)
	}
	return err
}

// Get копия позиции.
func (b *Book) Get(key models.Key) (Position, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.active[key]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Snapshot копии активных позиций, отсортированы по symbol, tier.
func (b *Book) Snapshot() []Position {
	b.mu.Lock()
	out := make([]Position, 0, len(b.active))
	for _, p := range b.active {
		out = append(out, *p)
	}
	b.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Symbol != out[j].Key.Symbol {
			return out[i].Key.Symbol < out[j].Key.Symbol
		}
		return out[i].Key.Tier < out[j].Key.Tier
	})
	return out
}

func (b *Book) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.active)
}
