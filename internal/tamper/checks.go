package tamper

import (
	"context"
	"time"

	"attendance-guard/internal/models"
)

// Input carries whatever signals the caller has for one attempt. Checks
// whose inputs are missing are skipped.
type Input struct {
	Subject         Subject
	Reported        *models.Coordinate
	Expected        *models.Coordinate
	Device          models.DeviceInfo
	ClientTimestamp *time.Time
	ServerTime      time.Time
}

// Report aggregates the checks that ran. Unknown names checks that could
// not reach a verdict; a report with unknown checks is never clean.
type Report struct {
	IsClean bool
	Issues  []models.TamperKind
	Records []models.TamperRecord
	Unknown []string
}

// Blocked reports whether any record carries the blocked action
func (r Report) Blocked() bool {
	for _, rec := range r.Records {
		if rec.ActionTaken == models.ActionBlocked {
			return true
		}
	}
	return false
}

func (r *Report) add(rec *models.TamperRecord) {
	if rec == nil {
		return
	}
	r.Records = append(r.Records, *rec)
	for _, k := range r.Issues {
		if k == rec.Kind {
			return
		}
	}
	r.Issues = append(r.Issues, rec.Kind)
}

// RunAllChecks runs every check with sufficient input
func (d *Detector) RunAllChecks(ctx context.Context, in Input) Report {
	var report Report
	s := in.Subject

	if in.Reported != nil && in.Expected != nil {
		report.add(d.CheckGPSSpoof(s, *in.Reported, *in.Expected))
	}

	report.add(d.CheckRootedDevice(s, in.Device.Integrity))
	report.add(d.CheckEmulator(s, in.Device.UserAgent))
	report.add(d.CheckAutomation(s, in.Device.UserAgent))

	if in.Device.IP != "" && d.reputation != nil {
		rec, err := d.CheckProxyVPN(ctx, s, in.Device.IP)
		if err != nil {
			report.Unknown = append(report.Unknown, string(models.TamperProxyVPN))
		}
		report.add(rec)
	}

	if in.Device.DeviceID != "" && d.bindings != nil {
		rec, err := d.CheckDeviceClone(ctx, s, in.Device.DeviceID)
		if err != nil {
			report.Unknown = append(report.Unknown, string(models.TamperDeviceClone))
		}
		report.add(rec)
	}

	if in.ClientTimestamp != nil {
		server := in.ServerTime
		if server.IsZero() {
			server = d.now()
		}
		report.add(d.CheckTimeManipulation(s, *in.ClientTimestamp, server))
	}

	report.IsClean = len(report.Records) == 0 && len(report.Unknown) == 0
	return report
}

// TrustDevice is the pre-check used before identity checks: rooted,
// emulated or masked devices are untrusted. An unknown reputation verdict
// does not fail the pre-check.
func (d *Detector) TrustDevice(ctx context.Context, s Subject, device models.DeviceInfo) (bool, []models.TamperRecord) {
	var report Report
	report.add(d.CheckRootedDevice(s, device.Integrity))
	report.add(d.CheckEmulator(s, device.UserAgent))
	if device.IP != "" && d.reputation != nil {
		rec, _ := d.CheckProxyVPN(ctx, s, device.IP)
		report.add(rec)
	}
	return len(report.Records) == 0, report.Records
}
