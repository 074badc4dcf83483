package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor (matches pkg/middleware/auth.go keys)
	FieldUserID   = "user_id"
	FieldUsername = "username"

	// Commerce domain
	FieldSessionID = "session_id"
	FieldViewerID  = "viewer_id"
	FieldProductID = "product_id"
	FieldOrderID   = "order_id"
	FieldVersion   = "version"
	FieldSequence  = "sequence"

	// Service
	FieldService = "service"
)
