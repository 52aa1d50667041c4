// Package admin implements the administrator commands: roster management
// (students list, add, show, delete) and attendance record corrections
// (records set-status, delete).
package admin
