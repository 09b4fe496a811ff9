package reconcile

import (
	"sort"

	"ligvideo-bridge/internal/model"
)

// LineDiff describes how a cart differs from the lines it was rebuilt from.
// Entries are keyed by wire id (variant id for variations, product id otherwise).
type LineDiff struct {
	Missing    []ItemQuantity // requested but absent from the cart
	Unexpected []ItemQuantity // in the cart but never requested
	Changed    []ItemChange   // present in both with a different quantity
}

// ItemQuantity is a wire id and a quantity.
type ItemQuantity struct {
	ItemID   int64
	Quantity int
}

// ItemChange is a quantity mismatch for one wire id.
type ItemChange struct {
	ItemID    int64
	Requested int
	InCart    int
}

// IsEmpty returns true if the cart matches the requested lines.
func (d *LineDiff) IsEmpty() bool {
	return len(d.Missing) == 0 && len(d.Unexpected) == 0 && len(d.Changed) == 0
}

// DiffLines compares the live cart, as wire lines, with the requested lines.
// Quantities for repeated ids are summed on both sides, matching one cart add per line.
// Lines with quantity <= 0 are ignored. Results are sorted by item id.
func DiffLines(current, desired []model.CartLine) *LineDiff {
	diff := &LineDiff{}

	inCart := make(map[int64]int)
	for _, line := range current {
		inCart[line.ItemID] += line.Quantity
	}

	requested := make(map[int64]int)
	for _, line := range desired {
		if line.Quantity <= 0 || line.ItemID <= 0 {
			continue
		}
		requested[line.ItemID] += line.Quantity
	}

	for id, want := range requested {
		have, exists := inCart[id]
		switch {
		case !exists:
			diff.Missing = append(diff.Missing, ItemQuantity{ItemID: id, Quantity: want})
		case have != want:
			diff.Changed = append(diff.Changed, ItemChange{ItemID: id, Requested: want, InCart: have})
		}
	}

	for id, have := range inCart {
		if _, exists := requested[id]; !exists {
			diff.Unexpected = append(diff.Unexpected, ItemQuantity{ItemID: id, Quantity: have})
		}
	}

	sort.Slice(diff.Missing, func(i, j int) bool { return diff.Missing[i].ItemID < diff.Missing[j].ItemID })
	sort.Slice(diff.Unexpected, func(i, j int) bool { return diff.Unexpected[i].ItemID < diff.Unexpected[j].ItemID })
	sort.Slice(diff.Changed, func(i, j int) bool { return diff.Changed[i].ItemID < diff.Changed[j].ItemID })

	return diff
}
