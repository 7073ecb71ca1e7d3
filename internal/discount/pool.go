package discount

import "github.com/shopspring/decimal"

// Pool is the ordered set of discountable amounts the allocator splits a
// discount across. Iteration order is insertion order, which makes the
// remainder-cent tie-break deterministic: leftover cents from floor division
// go to still-eligible entries in the order they were added.
type Pool struct {
	ids    []string
	prices map[string]decimal.Decimal
}

// NewPool returns an empty allocation pool.
func NewPool() *Pool {
	return &Pool{prices: make(map[string]decimal.Decimal)}
}

// Add registers an amount under id. Re-adding an id replaces the amount but
// keeps its original position.
func (p *Pool) Add(id string, price decimal.Decimal) {
	if _, ok := p.prices[id]; !ok {
		p.ids = append(p.ids, id)
	}
	p.prices[id] = price
}

// Remove drops id from the pool.
func (p *Pool) Remove(id string) {
	if _, ok := p.prices[id]; !ok {
		return
	}
	delete(p.prices, id)
	for i, existing := range p.ids {
		if existing == id {
			p.ids = append(p.ids[:i], p.ids[i+1:]...)
			break
		}
	}
}

// Len is the number of entries.
func (p *Pool) Len() int {
	return len(p.ids)
}

// IDs returns the entry ids in insertion order.
func (p *Pool) IDs() []string {
	out := make([]string, len(p.ids))
	copy(out, p.ids)
	return out
}

// Price returns the amount stored under id.
func (p *Pool) Price(id string) decimal.Decimal {
	return p.prices[id]
}

// Total sums every amount in the pool.
func (p *Pool) Total() decimal.Decimal {
	total := decimal.Zero
	for _, id := range p.ids {
		total = total.Add(p.prices[id])
	}
	return total
}
