package service

import (
	"errors"
	"fmt"
)

// ErrMalformedResponse is returned when the upstream body does not carry a
// media url at data.medias[0].url
var ErrMalformedResponse = errors.New("upstream response does not contain a media url")

// UpstreamStatusError is returned when the media resolution API answers with
// a non-success status
type UpstreamStatusError struct {
	StatusCode int
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}
