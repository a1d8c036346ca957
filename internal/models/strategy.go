package models

// Side направление позиции.
type Side string

const (
	SideNone  Side = ""
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Sign +1 для long, -1 для short.
func (s Side) Sign() float64 {
	if s == SideShort {
		return -1
	}
	return 1
}

// OrderSide сторона рыночного ордера на открытие.
func (s Side) OrderSide() string {
	if s == SideShort {
		return "sell"
	}
	return "buy"
}

// CloseSide сторона reduce-only ордера на закрытие.
func (s Side) CloseSide() string {
	if s == SideShort {
		return "buy"
	}
	return "sell"
}

func (s Side) Valid() bool { return s == SideLong || s == SideShort }

type Signal struct {
	Symbol    string
	Timeframe string
	Side      Side
	Price     float64
	RSI       float64
	Reason    string
}
