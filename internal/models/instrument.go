package models

// Instrument ограничения инструмента в базовой валюте.
// Для SWAP контрактов QtyStep и MinQty уже умножены на CtVal.
type Instrument struct {
	Symbol      string
	QtyStep     float64 `yaml:"qty_step"`
	MinQty      float64 `yaml:"min_qty"`
	MinNotional float64 `yaml:"min_notional"`
	TickSize    float64 `yaml:"tick_size"`
	CtVal       float64 `yaml:"ct_val"`
}

// Fill результат исполнения ордера.
type Fill struct {
	OrderID string
	Symbol  string
	Side    Side
	Qty     float64
	Price   float64
}
