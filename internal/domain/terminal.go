package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ============================================================
// Terminal configuration & cash inventory
// ============================================================

// Denomination is the face value of a note held by the terminal.
type Denomination int64

// Breakdown maps a denomination to a note count.
type Breakdown map[Denomination]int64

// Total returns the weighted sum of the breakdown.
func (b Breakdown) Total() int64 {
	var total int64
	for d, n := range b {
		total += int64(d) * n
	}
	return total
}

// Notes returns the number of notes in the breakdown.
func (b Breakdown) Notes() int64 {
	var n int64
	for _, c := range b {
		n += c
	}
	return n
}

// Clone returns an independent copy.
func (b Breakdown) Clone() Breakdown {
	if b == nil {
		return nil
	}
	out := make(Breakdown, len(b))
	for d, n := range b {
		out[d] = n
	}
	return out
}

// Inventory is the number of notes available per denomination.
type Inventory map[Denomination]int64

// Clone returns an independent copy.
func (inv Inventory) Clone() Inventory {
	out := make(Inventory, len(inv))
	for d, n := range inv {
		out[d] = n
	}
	return out
}

// Denominations returns the stocked denominations, highest first.
func (inv Inventory) Denominations() []Denomination {
	out := make([]Denomination, 0, len(inv))
	for d := range inv {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] > out[j] })
	return out
}

// Smallest returns the lowest denomination, or 0 for an empty inventory.
func (inv Inventory) Smallest() Denomination {
	ds := inv.Denominations()
	if len(ds) == 0 {
		return 0
	}
	return ds[len(ds)-1]
}

// Value returns the total cash value held.
func (inv Inventory) Value() int64 {
	return Breakdown(inv).Total()
}

// ParseInventory parses "100:500,200:300,500:200" into an Inventory.
func ParseInventory(s string) (Inventory, error) {
	inv := make(Inventory)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		pair := strings.SplitN(part, ":", 2)
		if len(pair) != 2 {
			return nil, fmt.Errorf("inventory entry %q: want denomination:count", part)
		}
		d, err := strconv.ParseInt(strings.TrimSpace(pair[0]), 10, 64)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("inventory entry %q: invalid denomination", part)
		}
		n, err := strconv.ParseInt(strings.TrimSpace(pair[1]), 10, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("inventory entry %q: invalid count", part)
		}
		inv[Denomination(d)] = n
	}
	if len(inv) == 0 {
		return nil, fmt.Errorf("inventory is empty")
	}
	return inv, nil
}

// TerminalConfig is the process-wide terminal state. The denomination set is
// fixed at startup; only counts change.
type TerminalConfig struct {
	Location            string    `json:"location"`
	Inventory           Inventory `json:"inventory"`
	DailyLimit          int64     `json:"daily_limit"`
	PerTransactionLimit int64     `json:"transaction_limit"`
}

// Clone returns a copy with an independent inventory map.
func (t *TerminalConfig) Clone() TerminalConfig {
	cp := *t
	cp.Inventory = t.Inventory.Clone()
	return cp
}
