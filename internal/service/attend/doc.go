// Package attend implements the attend command: one run of the attendance
// workflow for the logged-in student, from the today check through capture,
// face pre-check and submission to a rendered result.
package attend
