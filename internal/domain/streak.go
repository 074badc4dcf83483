package domain

import "time"

// StreakState counts a viewer's captured purchases within one session,
// driving escalating discounts. Incremented only on captured orders;
// dropped when the session ends.
type StreakState struct {
	SessionID      string    `json:"session_id"`
	ViewerID       string    `json:"viewer_id"`
	PurchaseCount  int       `json:"purchase_count"`
	LastPurchaseAt time.Time `json:"last_purchase_at"`
}
