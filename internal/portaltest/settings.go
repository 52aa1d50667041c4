package portaltest

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteSettings writes a settings file pointing at the stub, with the
// credential and lock files in a temp directory. extra is appended verbatim.
func (s *Server) WriteSettings(t testing.TB, extra string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "face-attendance-settings.yaml")

	settings := "server_url: " + s.URL() + "\n" +
		"timeout: 2s\n" +
		"credential_file: " + filepath.Join(dir, "credential.json") + "\n" +
		"lock_file: " + filepath.Join(dir, "face-attendance.lock") + "\n" +
		extra

	if err := os.WriteFile(path, []byte(settings), 0o600); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	return path
}
