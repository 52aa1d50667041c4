// Package auth implements the login, logout, whoami and register commands.
package auth
