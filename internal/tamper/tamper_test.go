package tamper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"attendance-guard/internal/geo"
	"attendance-guard/internal/models"
)

type stubReputation struct {
	rep *IPReputation
	err error
}

func (s *stubReputation) CheckIP(ctx context.Context, ip string) (*IPReputation, error) {
	return s.rep, s.err
}

type stubBindings map[string]string

func (s stubBindings) OwnerOf(ctx context.Context, deviceID string) (string, error) {
	if owner, ok := s[deviceID]; ok {
		return owner, nil
	}
	return "", models.ErrNotFound
}

var fixedNow = time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

func newTestDetector(opts ...Option) *Detector {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewDetector(DefaultPolicy(), zap.NewNop(), opts...)
}

var subject = Subject{EmployeeID: "e1", BranchID: "b1", Kind: models.KindCheckin}

func TestSeverityFor(t *testing.T) {
	tests := []struct {
		kind   models.TamperKind
		repeat bool
		want   models.Severity
	}{
		{models.TamperAutomation, false, models.SeverityCritical},
		{models.TamperDeepfake, false, models.SeverityCritical},
		{models.TamperGPSSpoof, false, models.SeverityHigh},
		{models.TamperPhotoSpoof, false, models.SeverityHigh},
		{models.TamperDeviceClone, false, models.SeverityHigh},
		{models.TamperProxyVPN, false, models.SeverityMedium},
		{models.TamperEmulator, false, models.SeverityMedium},
		{models.TamperRootedDevice, false, models.SeverityMedium},
		{models.TamperTimeManipulation, false, models.SeverityLow},
		{models.TamperOther, false, models.SeverityLow},
		{models.TamperOther, true, models.SeverityHigh},
		{models.TamperEmulator, true, models.SeverityHigh},
		{models.TamperAutomation, true, models.SeverityCritical},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			for i := 0; i < 3; i++ {
				assert.Equal(t, tt.want, SeverityFor(tt.kind, tt.repeat))
			}
		})
	}
}

func TestCheckGPSSpoof(t *testing.T) {
	d := newTestDetector()
	branch := models.Coordinate{Latitude: 13.7563, Longitude: 100.5018}

	at := func(meters float64) models.Coordinate {
		lat, lon := geo.Destination(branch.Latitude, branch.Longitude, 90, meters)
		return models.Coordinate{Latitude: lat, Longitude: lon}
	}

	assert.Nil(t, d.CheckGPSSpoof(subject, at(80), branch))

	rec := d.CheckGPSSpoof(subject, at(500), branch)
	require.NotNil(t, rec)
	assert.Equal(t, models.ActionAlerted, rec.ActionTaken)
	assert.InDelta(t, 90, rec.ConfidenceScore, 0.1)

	rec = d.CheckGPSSpoof(subject, at(1500), branch)
	require.NotNil(t, rec)
	assert.Equal(t, models.TamperGPSSpoof, rec.Kind)
	assert.Equal(t, models.ActionBlocked, rec.ActionTaken)
	assert.Equal(t, models.SeverityHigh, rec.Severity)
	assert.Equal(t, 95.0, rec.ConfidenceScore)
	assert.Equal(t, models.ReviewPending, rec.ReviewStatus)
	assert.Equal(t, fixedNow, rec.DetectedAt)
}

func TestCheckRootedDevice(t *testing.T) {
	d := newTestDetector()
	assert.Nil(t, d.CheckRootedDevice(subject, models.DeviceIntegrity{}))

	for _, integrity := range []models.DeviceIntegrity{
		{HasSuBinary: true},
		{HasRootManagerApp: true},
		{TestKeysBuild: true},
	} {
		rec := d.CheckRootedDevice(subject, integrity)
		require.NotNil(t, rec)
		assert.Equal(t, models.TamperRootedDevice, rec.Kind)
		assert.Equal(t, models.SeverityMedium, rec.Severity)
	}
}

func TestCheckEmulator(t *testing.T) {
	d := newTestDetector()
	tests := []struct {
		ua   string
		want bool
	}{
		{"Mozilla/5.0 (Linux; Android 14; Pixel 8)", false},
		{"Mozilla/5.0 (Linux; Android 13; sdk_gphone64_x86_64)", true},
		{"Dalvik/2.1.0 (Linux; U; Android SDK built for x86)", true},
		{"iPhone Simulator", true},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.ua, func(t *testing.T) {
			assert.Equal(t, tt.want, d.CheckEmulator(subject, tt.ua) != nil)
		})
	}
}

func TestCheckAutomation(t *testing.T) {
	d := newTestDetector()
	rec := d.CheckAutomation(subject, "Mozilla/5.0 HeadlessChrome/120.0")
	require.NotNil(t, rec)
	assert.Equal(t, models.SeverityCritical, rec.Severity)
	assert.Equal(t, models.ActionBlocked, rec.ActionTaken)
}

func TestCheckTimeManipulation(t *testing.T) {
	d := newTestDetector()
	server := fixedNow

	tests := []struct {
		name           string
		skew           time.Duration
		wantFlag       bool
		wantAction     models.TamperAction
		wantConfidence float64
	}{
		{"Within tolerance", 5 * time.Minute, false, "", 0},
		{"Just over tolerance", 6 * time.Minute, true, models.ActionAlerted, 66},
		{"Client behind", -20 * time.Minute, true, models.ActionAlerted, 80},
		{"Blocked skew", 31 * time.Minute, true, models.ActionBlocked, 91},
		{"Confidence capped", 3 * time.Hour, true, models.ActionBlocked, 95},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := d.CheckTimeManipulation(subject, server.Add(tt.skew), server)
			if !tt.wantFlag {
				assert.Nil(t, rec)
				return
			}
			require.NotNil(t, rec)
			assert.Equal(t, tt.wantAction, rec.ActionTaken)
			assert.Equal(t, tt.wantConfidence, rec.ConfidenceScore)
		})
	}
}

func TestCheckProxyVPN(t *testing.T) {
	ctx := context.Background()

	clean := newTestDetector(WithReputation(&stubReputation{rep: &IPReputation{Country: "TH"}}, time.Second))
	rec, err := clean.CheckProxyVPN(ctx, subject, "203.0.113.7")
	require.NoError(t, err)
	assert.Nil(t, rec)

	masked := newTestDetector(WithReputation(&stubReputation{rep: &IPReputation{IsTor: true, Country: "DE", City: "Berlin"}}, time.Second))
	rec, err = masked.CheckProxyVPN(ctx, subject, "203.0.113.7")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, true, rec.Details["is_tor"])
	assert.Equal(t, "Berlin", rec.Details["city"])

	down := newTestDetector(WithReputation(&stubReputation{err: errors.New("timeout")}, time.Second))
	_, err = down.CheckProxyVPN(ctx, subject, "203.0.113.7")
	assert.Error(t, err)
}

func TestCheckDeviceClone(t *testing.T) {
	d := newTestDetector(WithDeviceBindings(stubBindings{"dev-1": "e1", "dev-2": "e9"}))
	ctx := context.Background()

	rec, err := d.CheckDeviceClone(ctx, subject, "dev-1")
	require.NoError(t, err)
	assert.Nil(t, rec)

	rec, err = d.CheckDeviceClone(ctx, subject, "dev-unknown")
	require.NoError(t, err)
	assert.Nil(t, rec)

	rec, err = d.CheckDeviceClone(ctx, subject, "dev-2")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "e9", rec.Details["bound_employee"])
}

func TestRunAllChecks(t *testing.T) {
	ctx := context.Background()

	t.Run("Clean with no signals", func(t *testing.T) {
		report := newTestDetector().RunAllChecks(ctx, Input{Subject: subject})
		assert.True(t, report.IsClean)
		assert.Empty(t, report.Issues)
	})

	t.Run("Unknown reputation is not clean", func(t *testing.T) {
		d := newTestDetector(WithReputation(&stubReputation{err: errors.New("down")}, time.Second))
		report := d.RunAllChecks(ctx, Input{Subject: subject, Device: models.DeviceInfo{IP: "198.51.100.1"}})
		assert.False(t, report.IsClean)
		assert.Empty(t, report.Records)
		assert.Equal(t, []string{"proxy_vpn"}, report.Unknown)
	})

	t.Run("Aggregates issues", func(t *testing.T) {
		client := fixedNow.Add(45 * time.Minute)
		report := newTestDetector().RunAllChecks(ctx, Input{
			Subject: subject,
			Device: models.DeviceInfo{
				UserAgent: "generic emulator build",
				Integrity: models.DeviceIntegrity{HasSuBinary: true},
			},
			ClientTimestamp: &client,
			ServerTime:      fixedNow,
		})
		assert.False(t, report.IsClean)
		assert.ElementsMatch(t, []models.TamperKind{
			models.TamperRootedDevice, models.TamperEmulator, models.TamperTimeManipulation,
		}, report.Issues)
		assert.True(t, report.Blocked())
	})
}

func TestReview(t *testing.T) {
	rec := newTestDetector().NewRecord(subject, models.TamperOther, 10, models.ActionLogged, nil)

	err := Review(&rec, models.ReviewPending, "admin", fixedNow)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	require.NoError(t, Review(&rec, models.ReviewConfirmed, "admin", fixedNow))
	assert.Equal(t, models.ReviewConfirmed, rec.ReviewStatus)
	assert.Equal(t, "admin", rec.ReviewedBy)

	err = Review(&rec, models.ReviewDismissed, "admin", fixedNow)
	assert.ErrorIs(t, err, models.ErrIllegalTransition)
}
