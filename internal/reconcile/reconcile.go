// Package reconcile computes the mutations that turn a cart's current lines
// into a desired set of lines. It enables PUT semantics on the cart: the
// handler reads current state, diffs, and applies only the necessary
// operations through the cart's normal rule checks.
package reconcile

// LineDiff describes the mutations needed to reconcile cart lines.
// Operations should be applied in order: Remove → Update → Add
// so that limit headroom freed by removals is available to adds.
type LineDiff struct {
	ToAdd    []LineToAdd    // Lines in desired but not current
	ToRemove []string       // Keys in current but not desired
	ToUpdate []LineToUpdate // Lines in both with different quantities
}

// LineToAdd is a new line. Index points back into the desired slice so the
// caller can recover product details.
type LineToAdd struct {
	Key      string
	Index    int
	Quantity int
}

// LineToUpdate is a quantity change for an existing line.
type LineToUpdate struct {
	Key         string
	OldQuantity int // informational
	NewQuantity int
}

// IsEmpty returns true if no line changes are needed.
func (d *LineDiff) IsEmpty() bool {
	return len(d.ToAdd) == 0 && len(d.ToRemove) == 0 && len(d.ToUpdate) == 0
}

// Line is a cart line reduced to what the diff needs.
type Line struct {
	Key      string
	Quantity int
}

// DiffLines computes the delta between current and desired lines, matched
// by line key. Desired lines with the same key are merged by summing their
// quantities; a desired quantity of zero or less means the line should not
// exist. Output follows input order.
func DiffLines(current, desired []Line) *LineDiff {
	diff := &LineDiff{}

	currentQty := make(map[string]int, len(current))
	for _, l := range current {
		currentQty[l.Key] = l.Quantity
	}

	wanted := make(map[string]int, len(desired))
	first := make(map[string]int, len(desired))
	var order []string
	for i, l := range desired {
		if _, seen := first[l.Key]; !seen {
			first[l.Key] = i
			order = append(order, l.Key)
		}
		wanted[l.Key] += l.Quantity
	}

	for _, l := range current {
		if wanted[l.Key] <= 0 {
			diff.ToRemove = append(diff.ToRemove, l.Key)
		}
	}

	for _, key := range order {
		qty := wanted[key]
		if qty <= 0 {
			continue
		}
		old, exists := currentQty[key]
		switch {
		case !exists:
			diff.ToAdd = append(diff.ToAdd, LineToAdd{Key: key, Index: first[key], Quantity: qty})
		case old != qty:
			diff.ToUpdate = append(diff.ToUpdate, LineToUpdate{Key: key, OldQuantity: old, NewQuantity: qty})
		}
	}

	return diff
}
