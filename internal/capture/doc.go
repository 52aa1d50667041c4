// Package capture owns the camera device lifecycle and turns device frames
// into still images for attendance.
//
// A Controller wraps one Device. Open is idempotent, Capture samples the
// current frame and Close releases the device; Session scopes the three so
// the device is released on every exit path. Frames are decoded, scaled to
// the configured geometry and re-encoded as JPEG data URLs.
package capture
