package models

// HealthResponse is the response for GET /healthz.
type HealthResponse struct {
	Status   string        `json:"status"` // "healthy" or "degraded"
	Uptime   string        `json:"uptime"`
	Version  string        `json:"version"`
	Upstream UpstreamStats `json:"upstream"`
}

// UpstreamStats reports the shared upstream connection.
type UpstreamStats struct {
	// State is "unconnected", "connecting" or "connected".
	State  string `json:"state"`
	Dials  int64  `json:"dials"`
	Resets int64  `json:"resets"`
}
