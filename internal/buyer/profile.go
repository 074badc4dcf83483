package buyer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Profile is the slice of a viewer's account the purchase pipeline needs.
type Profile struct {
	ViewerID           string `json:"viewer_id"`
	DisplayName        string `json:"display_name"`
	HasShippingAddress bool   `json:"has_shipping_address"`
	HasPaymentMethod   bool   `json:"has_payment_method"`
}

// Ready reports whether the viewer can check out.
func (p Profile) Ready() bool {
	return p.HasShippingAddress && p.HasPaymentMethod
}

// ProfileChecker resolves viewer checkout readiness. Checked before any
// stock is reserved so inventory is never locked for a buyer who cannot
// complete the purchase.
type ProfileChecker interface {
	Profile(ctx context.Context, viewerID string) (Profile, error)
}

// HTTPChecker fetches profiles from the account service.
type HTTPChecker struct {
	baseURL string
	client  *http.Client
}

// NewHTTPChecker creates a profile checker client.
func NewHTTPChecker(baseURL string, timeout time.Duration) *HTTPChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPChecker{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPChecker) Profile(ctx context.Context, viewerID string) (Profile, error) {
	url := fmt.Sprintf("%s/v1/profiles/%s", c.baseURL, viewerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Profile{}, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to fetch buyer profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Profile{ViewerID: viewerID}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("profile service returned %d", resp.StatusCode)
	}

	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return Profile{}, fmt.Errorf("failed to decode buyer profile: %w", err)
	}
	return p, nil
}

// StaticChecker serves fixed profiles, used in tests and local runs.
type StaticChecker struct {
	profiles map[string]Profile
}

// NewStaticChecker builds a checker over a fixed profile set.
func NewStaticChecker(profiles ...Profile) *StaticChecker {
	m := make(map[string]Profile, len(profiles))
	for _, p := range profiles {
		m[p.ViewerID] = p
	}
	return &StaticChecker{profiles: m}
}

func (c *StaticChecker) Profile(_ context.Context, viewerID string) (Profile, error) {
	if p, ok := c.profiles[viewerID]; ok {
		return p, nil
	}
	return Profile{ViewerID: viewerID}, nil
}
