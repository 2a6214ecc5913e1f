package repository

import (
	"context"
	"fmt"

	"attendance-guard/internal/models"
)

func (r *PocketBase) GetEmployee(ctx context.Context, id string) (*models.Employee, error) {
	return getRecord[models.Employee](ctx, r, "employees", id)
}

func (r *PocketBase) GetBranch(ctx context.Context, id string) (*models.Branch, error) {
	return getRecord[models.Branch](ctx, r, "branches", id)
}

func (r *PocketBase) ListNetworks(ctx context.Context, branchID string) ([]models.Network, error) {
	filter := fmt.Sprintf("branch_id=%s", quote(branchID))
	return listRecords[models.Network](ctx, r, "branch_networks", filter, "-is_primary,created", maxPerPage)
}

func (r *PocketBase) ListWindows(ctx context.Context, kind models.AttendanceKind) ([]models.TimeWindow, error) {
	filter := fmt.Sprintf("is_active=true && type=%s", quote(string(kind)))
	return listRecords[models.TimeWindow](ctx, r, "time_windows", filter, "created", maxPerPage)
}

func (r *PocketBase) ListTiers(ctx context.Context) ([]models.DeductionTier, error) {
	return listRecords[models.DeductionTier](ctx, r, "deduction_tiers", "is_active=true", "min_minutes", maxPerPage)
}

func (r *PocketBase) ListZones(ctx context.Context, branchID string) ([]models.WorkZone, error) {
	filter := fmt.Sprintf("branch_id=%s && is_active=true", quote(branchID))
	return listRecords[models.WorkZone](ctx, r, "work_zones", filter, "display_order", maxPerPage)
}

// OwnerOf returns the employee a device is bound to
func (r *PocketBase) OwnerOf(ctx context.Context, deviceID string) (string, error) {
	filter := fmt.Sprintf("device_id=%s", quote(deviceID))
	items, err := listRecords[struct {
		EmployeeID string `json:"employee_id"`
	}](ctx, r, "device_bindings", filter, "", 1)
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "", models.ErrNotFound
	}
	return items[0].EmployeeID, nil
}

// BindDevice registers deviceID to employeeID. Binding a device that is
// already bound returns models.ErrAlreadyRecorded.
func (r *PocketBase) BindDevice(ctx context.Context, deviceID, employeeID string) error {
	_, err := r.create(ctx, "device_bindings", map[string]any{
		"device_id":   deviceID,
		"employee_id": employeeID,
	})
	if isNotUnique(err) {
		return fmt.Errorf("device %s: %w", deviceID, models.ErrAlreadyRecorded)
	}
	if err != nil {
		return fmt.Errorf("failed to bind device: %w", err)
	}
	return nil
}
