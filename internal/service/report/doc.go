// Package report implements the history and stats commands. Administrators
// may query any student; students only see their own attendance.
package report
