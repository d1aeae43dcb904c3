package api

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status          string `json:"status"`
	ActiveDownloads int    `json:"activeDownloads"`
}

// DownloadRequest is the body for POST /download.
type DownloadRequest struct {
	URL        string `json:"url"`
	Quality    string `json:"quality"`
	Format     string `json:"format"`
	DownloadID string `json:"downloadId"`
}

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// connectedEvent is the first SSE message on a progress stream.
type connectedEvent struct {
	Type       string `json:"type"`
	DownloadID string `json:"downloadId"`
}
