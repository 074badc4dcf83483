package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ChrisIntorcia/roundtwo-live-engine/pkg/log"
)

// HTTPClient talks to the payment service over its REST API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a processor client. timeout bounds each call; a
// capture that overruns it is reported as OutcomeUnknown.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type captureResponse struct {
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
}

func (c *HTTPClient) Capture(ctx context.Context, req CaptureRequest) (Outcome, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return OutcomeUnknown, fmt.Errorf("failed to marshal capture request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/captures", bytes.NewReader(body))
	if err != nil {
		return OutcomeUnknown, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		// Network failures and timeouts are indistinguishable from a
		// capture that went through; report unknown, not declined.
		log.Ctx(ctx).Warn().Err(err).Str(log.FieldOrderID, req.OrderID).Msg("capture call failed")
		return OutcomeUnknown, nil
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var out captureResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return OutcomeUnknown, nil
		}
		return out.Outcome, nil
	case http.StatusPaymentRequired, http.StatusUnprocessableEntity:
		return OutcomeDeclined, nil
	default:
		return OutcomeUnknown, nil
	}
}

func (c *HTTPClient) QueryStatus(ctx context.Context, orderID string) (Outcome, error) {
	url := fmt.Sprintf("%s/v1/captures/%s", c.baseURL, orderID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return OutcomeUnknown, err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return OutcomeUnknown, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// The processor never saw the capture; it cannot have charged.
		return OutcomeDeclined, nil
	}
	if resp.StatusCode != http.StatusOK {
		return OutcomeUnknown, nil
	}

	var out captureResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return OutcomeUnknown, nil
	}
	return out.Outcome, nil
}
