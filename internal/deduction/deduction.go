// Package deduction maps late minutes onto configured penalty tiers
package deduction

import (
	"fmt"
	"sort"

	"attendance-guard/internal/models"
)

// Table is an immutable, min-ordered set of non-overlapping tiers
type Table struct {
	tiers   []models.DeductionTier
	highest int // index of the tier with the greatest MaxMinutes
}

// NewTable sorts and validates tiers. Gaps between tiers are allowed;
// overlapping or inverted ranges are not.
func NewTable(tiers []models.DeductionTier) (*Table, error) {
	sorted := make([]models.DeductionTier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinMinutes < sorted[j].MinMinutes
	})

	highest := -1
	for i, tier := range sorted {
		if tier.MinMinutes < 0 || tier.MaxMinutes < tier.MinMinutes {
			return nil, fmt.Errorf("%w: tier %q has range [%d, %d]",
				models.ErrInvalidInput, tier.Name, tier.MinMinutes, tier.MaxMinutes)
		}
		if i > 0 && tier.MinMinutes <= sorted[i-1].MaxMinutes {
			return nil, fmt.Errorf("%w: tier %q overlaps %q",
				models.ErrInvalidInput, tier.Name, sorted[i-1].Name)
		}
		if highest < 0 || tier.MaxMinutes > sorted[highest].MaxMinutes {
			highest = i
		}
	}

	return &Table{tiers: sorted, highest: highest}, nil
}

// Tiers returns a copy of the ordered tiers
func (t *Table) Tiers() []models.DeductionTier {
	out := make([]models.DeductionTier, len(t.tiers))
	copy(out, t.tiers)
	return out
}

// Calculate returns the deduction for lateMinutes. No lateness, or
// lateness below the first tier, costs nothing. A value past every tier
// (or inside a gap) saturates at the tier with the greatest MaxMinutes.
func (t *Table) Calculate(lateMinutes int) models.Deduction {
	if lateMinutes <= 0 || len(t.tiers) == 0 || lateMinutes < t.tiers[0].MinMinutes {
		return models.Deduction{LateMinutes: max(lateMinutes, 0)}
	}

	// last tier whose lower bound is <= lateMinutes
	i := sort.Search(len(t.tiers), func(i int) bool {
		return t.tiers[i].MinMinutes > lateMinutes
	}) - 1

	tier := t.tiers[t.highest]
	if i >= 0 && lateMinutes <= t.tiers[i].MaxMinutes {
		tier = t.tiers[i]
	}

	return models.Deduction{
		TierID:      tier.ID,
		TierName:    tier.Name,
		Points:      tier.Points,
		Percentage:  tier.Percentage,
		LateMinutes: lateMinutes,
	}
}
