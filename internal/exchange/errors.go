package exchange

import "fmt"

// FeedError ошибка получения цены по символу. Символ пропускается до следующего тика.
type FeedError struct {
	Symbol string
	Op     string
	Err    error
}

func (e *FeedError) Error() string {
	return fmt.Sprintf("feed %s %s: %v", e.Op, e.Symbol, e.Err)
}

func (e *FeedError) Unwrap() error { return e.Err }

var errEmpty = fmt.Errorf("empty response")
