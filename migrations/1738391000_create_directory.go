package migrations

import (
	"github.com/pocketbase/pocketbase/core"

	"attendance-guard/internal/models"
)

var directoryCollections = []string{
	"employees",
	"branches",
	"branch_networks",
	"time_windows",
	"deduction_tiers",
	"work_zones",
	"device_bindings",
}

func init() {
	core.AppMigrations.Register(func(app core.App) error {
		employees := newCollection("employees")
		employees.Fields.Add(
			text("name", true),
			text("branch_id", true),
			text("department_id", false),
			text("designation_id", false),
			&core.TextField{Name: "face_reference", Max: 2048},
			number("telegram_chat_id", true),
		)
		employees.AddIndex("idx_employees_branch", false, "branch_id", "")

		branches := newCollection("branches")
		branches.Fields.Add(
			text("name", true),
			number("latitude", false),
			number("longitude", false),
			number("geofence_radius", false),
			text("timezone", false),
		)

		networks := newCollection("branch_networks")
		networks.Fields.Add(
			text("branch_id", true),
			text("ssid", false),
			text("bssid", false),
			flag("is_primary"),
			flag("is_active"),
		)
		networks.AddIndex("idx_branch_networks_branch", false, "branch_id", "")

		windows := newCollection("time_windows")
		windows.Fields.Add(
			text("name", true),
			choice("type", true, models.KindCheckin, models.KindCheckout),
			text("start_time", true),
			text("end_time", true),
			number("grace_period_minutes", true),
			text("branch_id", false),
			text("shift_id", false),
			flag("is_active"),
		)

		tiers := newCollection("deduction_tiers")
		tiers.Fields.Add(
			text("name", true),
			number("min_minutes", true),
			number("max_minutes", true),
			number("points", true),
			number("percentage", false),
			flag("is_active"),
		)

		zones := newCollection("work_zones")
		zones.Fields.Add(
			text("branch_id", true),
			text("name", true),
			list("center"),
			number("radius_meters", false),
			list("polygon_coordinates"),
			list("allowed_employee_ids"),
			list("allowed_department_ids"),
			list("allowed_designation_ids"),
			number("display_order", true),
			flag("is_active"),
		)
		zones.AddIndex("idx_work_zones_branch", false, "branch_id, display_order", "")

		bindings := newCollection("device_bindings")
		bindings.Fields.Add(
			text("device_id", true),
			text("employee_id", true),
		)
		bindings.AddIndex("idx_device_bindings_device", true, "device_id", "")

		return saveAll(app, employees, branches, networks, windows, tiers, zones, bindings)
	}, func(app core.App) error {
		return dropAll(app, directoryCollections...)
	})
}
