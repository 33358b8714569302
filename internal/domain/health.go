package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
	Error       string `json:"error,omitempty"`
}

// ChatMetrics is returned by GET /v1/metrics/chat.
type ChatMetrics struct {
	CustomerMessages   int64   `json:"customerMessages"`
	OwnerMessages      int64   `json:"ownerMessages"`
	AIReplies          int64   `json:"aiReplies"`
	AIReplyErrors      int64   `json:"aiReplyErrors"`
	AIRepliesDropped   int64   `json:"aiRepliesDropped"`
	MessagesMarkedRead int64   `json:"messagesMarkedRead"`
	Signups            int64   `json:"signups"`
	SlugRetries        int64   `json:"slugRetries"`
	ProfileCacheHit    float64 `json:"profileCacheHitRate"`
	Period             string  `json:"period"`
}
