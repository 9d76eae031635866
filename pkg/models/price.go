package models

// Price is a quote as displayed. Numbers are printed the way a browser
// prints a parsed JSON number, so 150 stays "150" and 150.50 becomes "150.5".
type Price string

func (p Price) String() string { return string(p) }

// PriceMap is an immutable symbol -> Price mapping. Every write returns a new
// map, so holders of an older value never observe later updates.
type PriceMap struct {
	symbols []string
	prices  map[string]Price
}

// With returns a copy of m with symbol set to price. A known symbol keeps
// its position; a new one is appended.
func (m PriceMap) With(symbol string, price Price) PriceMap {
	next := PriceMap{
		symbols: m.symbols,
		prices:  make(map[string]Price, len(m.prices)+1),
	}
	for k, v := range m.prices {
		next.prices[k] = v
	}

	if _, ok := m.prices[symbol]; !ok {
		next.symbols = make([]string, len(m.symbols), len(m.symbols)+1)
		copy(next.symbols, m.symbols)
		next.symbols = append(next.symbols, symbol)
	}
	next.prices[symbol] = price
	return next
}

func (m PriceMap) Get(symbol string) (Price, bool) {
	p, ok := m.prices[symbol]
	return p, ok
}

func (m PriceMap) Len() int { return len(m.symbols) }

// Symbols lists symbols in first-seen order.
func (m PriceMap) Symbols() []string {
	out := make([]string, len(m.symbols))
	copy(out, m.symbols)
	return out
}

// Range calls fn for each entry in first-seen order until fn returns false.
func (m PriceMap) Range(fn func(symbol string, price Price) bool) {
	for _, s := range m.symbols {
		if !fn(s, m.prices[s]) {
			return
		}
	}
}
