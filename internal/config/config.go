package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by all face-attendance commands.
type Config struct {
	// ServerURL is the base URL of the attendance portal API, e.g. http://localhost:5000/api.
	ServerURL string `yaml:"server_url"`
	// Timeout bounds every portal call, including face pre-check and submission.
	Timeout time.Duration `yaml:"timeout"`
	// CredentialFile is where the bearer token survives between runs.
	CredentialFile string `yaml:"credential_file"`
	// LockFile marks an attendance workflow in progress on this machine.
	LockFile string `yaml:"lock_file"`
	// LogLevel is the minimum level of log messages (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
	// Camera describes the frame source used to capture the face photo.
	Camera Camera `yaml:"camera"`
}

// Camera configures the capture device.
type Camera struct {
	// Source selects the device kind: "file" or "command".
	Source string `yaml:"source"`
	// Path is the frame file read by the file source.
	Path string `yaml:"path"`
	// Command is the grabber command line run by the command source; it must print one image to stdout.
	Command []string `yaml:"command"`
	// Width of captured frames in pixels.
	Width int `yaml:"width"`
	// Height of captured frames in pixels.
	Height int `yaml:"height"`
	// JPEGQuality used when encoding captured frames.
	JPEGQuality int `yaml:"jpeg_quality"`
	// FrameWait is how long the file source waits for the first frame after opening.
	FrameWait time.Duration `yaml:"frame_wait"`
}

const (
	// DefaultConfigFilename is the default filename for client settings.
	DefaultConfigFilename = "face-attendance-settings.yaml"

	// DefaultEnvFilename is the optional dotenv file with overrides.
	DefaultEnvFilename = ".env"

	// DefaultCredentialFilename is the default filename for the persisted token.
	DefaultCredentialFilename = "face-attendance-credential.json"

	// DefaultLockFilename is the default filename of the workflow marker.
	DefaultLockFilename = "face-attendance.lock"

	// DefaultTimeout bounds a single portal call.
	DefaultTimeout = 15 * time.Second

	// DefaultFilePermissions is the permission for settings and credential files.
	DefaultFilePermissions = 0o600

	// SourceFile reads frames from an image file.
	SourceFile = "file"
	// SourceCommand reads frames from the stdout of an external grabber.
	SourceCommand = "command"

	// DefaultFrameWidth and DefaultFrameHeight match the portal's webcam constraints.
	DefaultFrameWidth  = 640
	DefaultFrameHeight = 480

	// DefaultJPEGQuality is used when camera.jpeg_quality is not set.
	DefaultJPEGQuality = 92

	// DefaultFrameWait is how long the file source waits for a frame to appear.
	DefaultFrameWait = 3 * time.Second

	// envPrefix prefixes every environment override.
	envPrefix = "FACE_ATTENDANCE_"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errServerURLRequired is returned when the portal URL is missing.
	errServerURLRequired = errors.New("server URL must be provided")
	// errServerURLScheme is returned for URLs that are not http or https.
	errServerURLScheme = errors.New("server URL must use http or https")
	// errUnknownCameraSource is returned for an unsupported camera.source.
	errUnknownCameraSource = errors.New("unknown camera source")
	// errCameraCommandRequired is returned when the command source has no command.
	errCameraCommandRequired = errors.New("camera command must be provided for the command source")
	// errInvalidGeometry is returned for non-positive frame dimensions.
	errInvalidGeometry = errors.New("camera width and height must be positive")
	// errInvalidQuality is returned for JPEG quality outside 1..100.
	errInvalidQuality = errors.New("camera jpeg_quality must be between 1 and 100")
)

// LoadOption adjusts the configuration after environment overrides and
// before validation.
type LoadOption func(*Config)

// WithServerURL overrides the portal URL when serverURL is not empty.
func WithServerURL(serverURL string) LoadOption {
	return func(cfg *Config) {
		if serverURL != "" {
			cfg.ServerURL = serverURL
		}
	}
}

// Load reads configuration from the provided path, applies environment
// overrides and options and validates the result. A missing settings file
// is not an error when the environment or an option supplies the server URL.
func Load(path string, opts ...LoadOption) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	var cfg Config

	contents, err := os.ReadFile(filepath.Clean(path))

	switch {
	case err == nil:
		if err = yaml.Unmarshal(contents, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// Environment only.
	default:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err = loadDotEnv(filepath.Join(filepath.Dir(path), DefaultEnvFilename)); err != nil {
		return nil, err
	}

	if err = applyEnv(&cfg); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes cfg to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills defaults.
//
//nolint:cyclop // A flat list of field checks reads better than helpers.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	cfg.ServerURL = strings.TrimRight(strings.TrimSpace(cfg.ServerURL), "/")
	if cfg.ServerURL == "" {
		return errServerURLRequired
	}

	u, err := url.ParseRequestURI(cfg.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %q", errServerURLScheme, cfg.ServerURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.CredentialFile == "" {
		cfg.CredentialFile = DefaultCredentialFilename
	}

	if cfg.LockFile == "" {
		cfg.LockFile = DefaultLockFilename
	}

	return validateCamera(&cfg.Camera)
}

// validateCamera fills camera defaults and checks the source settings.
func validateCamera(c *Camera) error {
	if c.Source == "" {
		c.Source = SourceFile
	}

	if c.Width == 0 && c.Height == 0 {
		c.Width, c.Height = DefaultFrameWidth, DefaultFrameHeight
	}

	if c.Width <= 0 || c.Height <= 0 {
		return errInvalidGeometry
	}

	if c.JPEGQuality == 0 {
		c.JPEGQuality = DefaultJPEGQuality
	}

	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return errInvalidQuality
	}

	if c.FrameWait <= 0 {
		c.FrameWait = DefaultFrameWait
	}

	switch c.Source {
	case SourceFile:
		return nil
	case SourceCommand:
		if len(c.Command) == 0 {
			return errCameraCommandRequired
		}

		return nil
	default:
		return fmt.Errorf("%w: %q", errUnknownCameraSource, c.Source)
	}
}

// loadDotEnv loads a dotenv file if it exists. Variables already set in the
// process environment win.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("stat %s: %w", path, err)
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}

	return nil
}

// applyEnv overrides settings from FACE_ATTENDANCE_* variables.
func applyEnv(cfg *Config) error {
	if v, ok := lookupEnv("SERVER_URL"); ok {
		cfg.ServerURL = v
	}

	if v, ok := lookupEnv("TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %sTIMEOUT: %w", envPrefix, err)
		}

		cfg.Timeout = d
	}

	if v, ok := lookupEnv("CREDENTIAL_FILE"); ok {
		cfg.CredentialFile = v
	}

	if v, ok := lookupEnv("LOCK_FILE"); ok {
		cfg.LockFile = v
	}

	if v, ok := lookupEnv("LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}

	if v, ok := lookupEnv("CAMERA_SOURCE"); ok {
		cfg.Camera.Source = v
	}

	if v, ok := lookupEnv("CAMERA_PATH"); ok {
		cfg.Camera.Path = v
	}

	if v, ok := lookupEnv("CAMERA_COMMAND"); ok {
		cfg.Camera.Command = strings.Fields(v)
	}

	if v, ok := lookupEnv("CAMERA_JPEG_QUALITY"); ok {
		q, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %sCAMERA_JPEG_QUALITY: %w", envPrefix, err)
		}

		cfg.Camera.JPEGQuality = q
	}

	return nil
}

// lookupEnv reads a prefixed variable, ignoring empty values.
func lookupEnv(name string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}

	return strings.TrimSpace(v), true
}
