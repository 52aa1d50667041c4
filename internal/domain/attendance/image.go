package attendance

import "time"

// CapturedImage is one face photo instance. A pre-check result belongs to
// exactly one ID and cannot be reused for another capture.
type CapturedImage struct {
	// ID uniquely identifies this capture.
	ID string
	// Encoded is the opaque payload sent to the portal (a JPEG data URL).
	Encoded string
	// Width of the frame in pixels.
	Width int
	// Height of the frame in pixels.
	Height int
	// CapturedAt is when the frame was sampled.
	CapturedAt time.Time
}
