// Package attendance contains the core domain types of the attendance portal.
//
// It defines Identity (who is logged in), CapturedImage (one face photo
// instance), Record (a day's attendance entry), Result (the outcome of one
// submission attempt) and the roster types used by administrators. Clone
// helpers keep callers from sharing internal references.
package attendance
