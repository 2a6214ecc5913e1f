// Package workzone tracks which configured zone inside a branch an
// employee is standing in.
package workzone

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"attendance-guard/internal/geo"
	"attendance-guard/internal/models"
)

// Lister returns the zones configured for a branch
type Lister interface {
	ListZones(ctx context.Context, branchID string) ([]models.WorkZone, error)
}

// IsPointInZone uses the polygon when present, otherwise the circle. A
// zone with neither is never entered.
func IsPointInZone(z *models.WorkZone, lat, lon float64) bool {
	if len(z.Polygon) > 0 {
		return geo.InPolygon(lat, lon, z.Polygon)
	}
	if z.Center == nil || z.RadiusMeters <= 0 {
		return false
	}
	fence, err := geo.NewFence(z.Center.Latitude, z.Center.Longitude, z.RadiusMeters)
	if err != nil {
		return false
	}
	inside, _ := fence.Contains(lat, lon)
	return inside
}

// IsEmployeeAllowed reports whether emp may work in the zone. A zone with
// no allow-lists is open to everyone.
func IsEmployeeAllowed(z *models.WorkZone, emp *models.Employee) bool {
	if len(z.AllowedEmployeeIDs) == 0 && len(z.AllowedDepartmentIDs) == 0 && len(z.AllowedDesignationIDs) == 0 {
		return true
	}
	return slices.Contains(z.AllowedEmployeeIDs, emp.ID) ||
		(emp.DepartmentID != "" && slices.Contains(z.AllowedDepartmentIDs, emp.DepartmentID)) ||
		(emp.DesignationID != "" && slices.Contains(z.AllowedDesignationIDs, emp.DesignationID))
}

// Locate returns the first active zone containing the point, walking zones
// in display order. Overlapping zones resolve to the lowest display order.
func Locate(zones []models.WorkZone, lat, lon float64) *models.WorkZone {
	ordered := make([]models.WorkZone, 0, len(zones))
	for _, z := range zones {
		if z.IsActive {
			ordered = append(ordered, z)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].DisplayOrder < ordered[j].DisplayOrder
	})

	for i := range ordered {
		if IsPointInZone(&ordered[i], lat, lon) {
			return &ordered[i]
		}
	}
	return nil
}

// Tracker resolves an employee's current zone from the zone store
type Tracker struct {
	zones Lister
}

// NewTracker creates a zone tracker
func NewTracker(zones Lister) *Tracker {
	return &Tracker{zones: zones}
}

// CurrentZone returns the zone the employee is in, or nil when the point
// lies outside every active zone of the branch
func (t *Tracker) CurrentZone(ctx context.Context, branchID string, lat, lon float64, emp *models.Employee) (*models.ZoneMatch, error) {
	zones, err := t.zones.ListZones(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list work zones: %w", err)
	}

	z := Locate(zones, lat, lon)
	if z == nil {
		return nil, nil
	}
	return &models.ZoneMatch{
		ZoneID:     z.ID,
		ZoneName:   z.Name,
		Authorized: IsEmployeeAllowed(z, emp),
	}, nil
}
