package portaltest

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// getProfile calls GET /profile with token and returns the status and message.
func getProfile(t *testing.T, s *Server, token string) (int, string) {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, s.URL()+"/profile", nil)
	require.NoError(t, err)

	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
	}()

	var envelope struct {
		Message string `json:"message"`
	}

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))

	return resp.StatusCode, envelope.Message
}

// TestAuthenticate_ExpiryFollowsStubClock accepts tokens issued under a pinned
// past clock and expires them when that clock moves on.
func TestAuthenticate_ExpiryFollowsStubClock(t *testing.T) {
	t.Parallel()

	pinned := time.Date(2024, 5, 1, 8, 5, 0, 0, time.UTC)

	s := New(t)
	s.SetNow(func() time.Time { return pinned })

	id := s.AddStudent("2101001", "Ani", "Informatika")
	token := s.IssueToken(id, time.Hour)

	status, _ := getProfile(t, s, token)
	require.Equal(t, http.StatusOK, status)

	s.SetNow(func() time.Time { return pinned.Add(2 * time.Hour) })

	status, message := getProfile(t, s, token)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "Token has expired", message)
}

// TestAuthenticate_RejectsForeignTokens refuses missing and unknown tokens.
func TestAuthenticate_RejectsForeignTokens(t *testing.T) {
	t.Parallel()

	s := New(t)

	status, _ := getProfile(t, s, "")
	require.Equal(t, http.StatusUnauthorized, status)

	status, _ = getProfile(t, s, "not-a-jwt")
	require.Equal(t, http.StatusUnauthorized, status)
}
