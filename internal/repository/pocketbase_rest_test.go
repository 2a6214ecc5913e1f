package repository

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"attendance-guard/internal/models"
)

func newTestStore(t *testing.T, handler http.HandlerFunc) *PocketBase {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewPocketBase(server.URL+"/", "token", time.Second, zap.NewNop())
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `'abc'`, quote("abc"))
	assert.Equal(t, `'x\' || 1=1 || \'y'`, quote("x' || 1=1 || 'y"))
	assert.Equal(t, `'a\\b'`, quote(`a\b`))
}

func TestDateTime(t *testing.T) {
	var v struct {
		Empty DateTime `json:"empty"`
		PB    DateTime `json:"pb"`
		RFC   DateTime `json:"rfc"`
	}
	err := json.Unmarshal([]byte(`{"empty":"","pb":"2026-03-10 09:15:00.000Z","rfc":"2026-03-10T09:15:00Z"}`), &v)
	require.NoError(t, err)

	want := time.Date(2026, 3, 10, 9, 15, 0, 0, time.UTC)
	assert.Nil(t, v.Empty.Ptr())
	assert.True(t, v.PB.Equal(want))
	assert.True(t, v.RFC.Equal(want))

	assert.Error(t, json.Unmarshal([]byte(`{"pb":"yesterday"}`), &v))
}

func TestListNetworks(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/collections/branch_networks/records" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("filter"); got != "branch_id='b1'" {
			t.Errorf("unexpected filter %q", got)
		}
		if r.Header.Get("Authorization") != "token" {
			t.Errorf("missing auth header")
		}
		json.NewEncoder(w).Encode(map[string]any{"items": []map[string]any{
			{"id": "n1", "branch_id": "b1", "ssid": "HQ", "bssid": "", "is_primary": true, "is_active": true},
		}})
	})

	networks, err := store.ListNetworks(context.Background(), "b1")
	require.NoError(t, err)
	require.Len(t, networks, 1)
	assert.Equal(t, "HQ", networks[0].SSID)
	assert.True(t, networks[0].IsActive)
}

func TestGetEmployeeNotFound(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"status":404,"message":"The requested resource wasn't found."}`))
	})

	_, err := store.GetEmployee(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSaveAttendanceDuplicate(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":400,"message":"Failed to create record.","data":{"date":{"code":"validation_not_unique","message":"Value must be unique."}}}`))
	})

	rec := &models.AttendanceRecord{Date: "2026-03-10", Result: models.VerificationResult{EmployeeID: "e1", Kind: models.KindCheckin}}
	err := store.SaveAttendance(context.Background(), rec)
	assert.ErrorIs(t, err, models.ErrAlreadyRecorded)
}

func TestSaveAttendance(t *testing.T) {
	var body map[string]any
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&body)
		json.NewEncoder(w).Encode(map[string]any{"id": "att1"})
	})

	dist := 42.5
	rec := &models.AttendanceRecord{Date: "2026-03-10", Result: models.VerificationResult{
		EmployeeID: "e1", Kind: models.KindCheckin, Method: models.MethodGPS, IsVerified: true,
		DistanceMeters: &dist, Zone: &models.ZoneMatch{ZoneID: "z1", Authorized: true},
		Deduction: models.Deduction{Points: 5},
	}}
	require.NoError(t, store.SaveAttendance(context.Background(), rec))

	assert.Equal(t, "att1", rec.ID)
	assert.Equal(t, "gps", body["verification_method"])
	assert.Equal(t, 42.5, body["distance_meters"])
	assert.Equal(t, "z1", body["zone_id"])
	assert.Equal(t, float64(5), body["deduction_points"])
}

func TestOwnerOf(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		items := []map[string]any{}
		if r.URL.Query().Get("filter") == "device_id='dev-1'" {
			items = append(items, map[string]any{"employee_id": "e7"})
		}
		json.NewEncoder(w).Encode(map[string]any{"items": items})
	})

	owner, err := store.OwnerOf(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.Equal(t, "e7", owner)

	_, err = store.OwnerOf(context.Background(), "dev-2")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestListActiveLockdowns(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		want := "status='active' && (branch_id='b1' || branch_id='')"
		if got := r.URL.Query().Get("filter"); got != want {
			t.Errorf("filter = %q, want %q", got, want)
		}
		json.NewEncoder(w).Encode(map[string]any{"items": []map[string]any{{
			"id": "l1", "branch_id": "", "lockdown_type": "full", "status": "active",
			"start_time": "2026-03-10 08:00:00.000Z", "end_time": "",
			"exempt_employee_ids": []string{"e9"}, "activated_at": "2026-03-10 08:00:00.000Z",
		}}})
	})

	events, err := store.ListActive(context.Background(), "b1")
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, models.LockdownFull, ev.Type)
	assert.Equal(t, models.LockdownActive, ev.Status)
	assert.Nil(t, ev.EndTime)
	require.NotNil(t, ev.ActivatedAt)
	assert.Equal(t, []string{"e9"}, ev.ExemptEmployeeIDs)
}

func TestTamperRecordRoundTrip(t *testing.T) {
	var saved map[string]any
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			json.NewDecoder(r.Body).Decode(&saved)
			json.NewEncoder(w).Encode(map[string]any{"id": saved["id"]})
		case http.MethodGet:
			saved["reviewed_at"] = ""
			json.NewEncoder(w).Encode(saved)
		}
	})

	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	rec := &models.TamperRecord{
		ID: "t-1", EmployeeID: "e1", Kind: models.TamperGPSSpoof, Severity: models.SeverityHigh,
		ActionTaken: models.ActionBlocked, ReviewStatus: models.ReviewPending, DetectedAt: at,
		ConfidenceScore: 95,
	}
	require.NoError(t, store.SaveTamperRecord(context.Background(), rec))

	got, err := store.GetTamperRecord(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, models.TamperGPSSpoof, got.Kind)
	assert.Equal(t, models.ActionBlocked, got.ActionTaken)
	assert.True(t, got.DetectedAt.Equal(at))
	assert.Nil(t, got.ReviewedAt)
}

func TestHealth(t *testing.T) {
	healthy := true
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"code":200,"message":"API is healthy."}`))
	})

	assert.NoError(t, store.Health(context.Background()))

	healthy = false
	var apiErr *APIError
	require.ErrorAs(t, store.Health(context.Background()), &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
}

func TestTransitionLockdown(t *testing.T) {
	tests := []struct {
		name      string
		stored    string
		wantErr   error
		wantPatch bool
	}{
		{name: "status unchanged", stored: "scheduled", wantPatch: true},
		{name: "cancelled meanwhile", stored: "cancelled", wantErr: models.ErrIllegalTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var patch map[string]any
			store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
				switch r.Method {
				case http.MethodGet:
					json.NewEncoder(w).Encode(map[string]any{
						"id": "l1", "status": tt.stored, "lockdown_type": "full",
						"start_time": "2026-03-10 08:00:00.000Z",
					})
				case http.MethodPatch:
					json.NewDecoder(r.Body).Decode(&patch)
					w.Write([]byte(`{"id":"l1"}`))
				default:
					t.Errorf("unexpected method %s", r.Method)
				}
			})

			activated := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
			ev := &models.LockdownEvent{ID: "l1", Title: "Storm", Status: models.LockdownActive, ActivatedAt: &activated}
			err := store.TransitionLockdown(context.Background(), ev, models.LockdownScheduled)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, patch)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "active", patch["status"])
			assert.Equal(t, "2026-03-10 08:00:00.000Z", patch["activated_at"])
			assert.NotContains(t, patch, "title")
			assert.NotContains(t, patch, "exempt_employee_ids")
		})
	}
}
