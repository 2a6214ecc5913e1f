// Package network verifies a claimed Wi-Fi network against a branch allow-list
package network

import (
	"context"
	"fmt"
	"strings"

	"attendance-guard/internal/models"
)

// Lister lists registered networks for a branch
type Lister interface {
	ListNetworks(ctx context.Context, branchID string) ([]models.Network, error)
}

// Verifier matches claimed SSID/BSSID pairs
type Verifier struct {
	networks Lister
}

// NewVerifier creates a network verifier
func NewVerifier(networks Lister) *Verifier {
	return &Verifier{networks: networks}
}

// Verify returns the first active network matching ssid and, when given,
// bssid. A registered network without a BSSID accepts any BSSID.
func (v *Verifier) Verify(ctx context.Context, branchID, ssid, bssid string) (*models.Network, error) {
	if strings.TrimSpace(ssid) == "" {
		return nil, nil
	}

	networks, err := v.networks.ListNetworks(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list networks: %w", err)
	}

	if n, ok := Match(networks, ssid, bssid); ok {
		return &n, nil
	}
	return nil, nil
}

// Match is the pure lookup behind Verify
func Match(networks []models.Network, ssid, bssid string) (models.Network, bool) {
	ssid = strings.TrimSpace(ssid)
	claimed := NormalizeBSSID(bssid)

	for _, n := range networks {
		if !n.IsActive || n.SSID != ssid {
			continue
		}
		registered := NormalizeBSSID(n.BSSID)
		if claimed == "" || registered == "" || registered == claimed {
			return n, true
		}
	}
	return models.Network{}, false
}

// NormalizeBSSID lower-cases a MAC and unifies separators to ':'
func NormalizeBSSID(bssid string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(bssid)), "-", ":")
}
