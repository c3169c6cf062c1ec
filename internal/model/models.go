package model

import "time"

// DownloadRequest represents a user's download request
type DownloadRequest struct {
	URL string `json:"url"`
}

// DownloadResponse is the response contract of the download endpoint.
// Error is set on failure, Message and DownloadLink on success.
type DownloadResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message,omitempty"`
	Error        string `json:"error,omitempty"`
	DownloadLink string `json:"downloadLink,omitempty"`
}

// ResolvedMedia is the direct media link extracted from the upstream response
type ResolvedMedia struct {
	DownloadLink string
}

// RateLimitEntry tracks request count for a client in the current window
type RateLimitEntry struct {
	ClientKey string
	Count     int
	ResetAt   time.Time
}
