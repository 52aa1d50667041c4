package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/oshokin/face-attendance/internal/config"
	domain "github.com/oshokin/face-attendance/internal/domain/attendance"
	"github.com/oshokin/face-attendance/internal/version"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 4 << 20

// TokenSource provides the bearer credential attached to every request.
type TokenSource interface {
	Token() string
}

// Client wraps the portal HTTP API with convenience helpers.
type Client struct {
	// baseURL is the API root, e.g. http://localhost:5000/api.
	baseURL *url.URL
	// httpClient performs the requests.
	httpClient *http.Client
	// tokens supplies the bearer token; nil sends anonymous requests.
	tokens TokenSource

	// callTimeout is the default timeout for individual calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for portal calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithTokenSource attaches a bearer credential provider.
func WithTokenSource(tokens TokenSource) Option {
	return func(c *Client) {
		c.tokens = tokens
	}
}

// New creates a client for the portal rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse portal base URL: %w", err)
	}

	client := &Client{
		baseURL:     u,
		httpClient:  &http.Client{},
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Login exchanges credentials for a bearer token and the identity it belongs to.
// Students log in with their student number.
func (c *Client) Login(
	ctx context.Context,
	username, password string,
	role domain.Role,
) (string, *domain.Identity, error) {
	userType, err := toWireRole(role)
	if err != nil {
		return "", nil, err
	}

	req := &loginRequest{
		Username: strings.TrimSpace(username),
		Password: password,
		UserType: userType,
	}
	if err = validateRequest(req); err != nil {
		return "", nil, err
	}

	env, err := c.doJSON(ctx, http.MethodPost, "/login", nil, req)
	if err != nil {
		return "", nil, fmt.Errorf("login: %w", err)
	}

	var user userDTO
	if err = decodeRaw(env.User, &user); err != nil {
		return "", nil, fmt.Errorf("login: %w", err)
	}

	if env.Token == "" {
		return "", nil, fmt.Errorf("login: %w: token missing", ErrUnexpectedResponse)
	}

	return env.Token, toDomainIdentity(&user), nil
}

// Profile returns the identity behind the current token.
func (c *Client) Profile(ctx context.Context) (*domain.Identity, error) {
	env, err := c.doJSON(ctx, http.MethodGet, "/profile", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	var user userDTO
	if err = decodeRaw(env.Data, &user); err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	return toDomainIdentity(&user), nil
}

// Register self-registers a student and returns the portal's message.
func (c *Client) Register(ctx context.Context, student domain.NewStudent) (string, error) {
	req := newStudentRequest(student)
	if err := validateRequest(req); err != nil {
		return "", err
	}

	env, err := c.doJSON(ctx, http.MethodPost, "/register", nil, req)
	if err != nil {
		return "", fmt.Errorf("register: %w", err)
	}

	return env.Message, nil
}

// AttendanceFilter narrows GET /absensi.
type AttendanceFilter struct {
	// Date restricts to one calendar day (YYYY-MM-DD).
	Date string
	// StudentID restricts to one student; zero lets the portal decide by role.
	StudentID int
	// Status restricts to one status.
	Status domain.Status
}

// ListAttendance returns attendance records, newest first.
func (c *Client) ListAttendance(ctx context.Context, filter AttendanceFilter) ([]domain.Record, error) {
	if err := validateRequest(&periodQuery{Date: filter.Date}); err != nil {
		return nil, err
	}

	query := url.Values{}

	if filter.Date != "" {
		query.Set("tanggal", filter.Date)
	}

	if filter.StudentID > 0 {
		query.Set("mahasiswa_id", strconv.Itoa(filter.StudentID))
	}

	if filter.Status != "" {
		status, err := toWireStatus(filter.Status)
		if err != nil {
			return nil, err
		}

		query.Set("status", status)
	}

	env, err := c.doJSON(ctx, http.MethodGet, "/absensi", query, nil)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}

	var items []recordDTO
	if err = decodeRaw(env.Data, &items); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}

	records := make([]domain.Record, 0, len(items))
	for i := range items {
		records = append(records, *toDomainRecord(&items[i]))
	}

	return records, nil
}

// FaceCheck is the answer of the face-presence pre-check.
type FaceCheck struct {
	// FaceDetected is true when at least one face was found.
	FaceDetected bool
	// FaceCount is the number of faces found.
	FaceCount int
}

// VerifyFace asks the portal how many faces the image contains.
func (c *Client) VerifyFace(ctx context.Context, image string) (*FaceCheck, error) {
	req := &imageRequest{Image: image}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	env, err := c.doJSON(ctx, http.MethodPost, "/absensi/verify-face", nil, req)
	if err != nil {
		return nil, fmt.Errorf("verify face: %w", err)
	}

	var check faceCheckDTO
	if err = decodeRaw(env.Data, &check); err != nil {
		return nil, fmt.Errorf("verify face: %w", err)
	}

	return &FaceCheck{
		FaceDetected: check.FaceDetected,
		FaceCount:    check.FaceCount,
	}, nil
}

// SubmitAttendance records attendance for the authenticated student.
func (c *Client) SubmitAttendance(ctx context.Context, image string) (*domain.Record, error) {
	req := &imageRequest{Image: image}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	env, err := c.doJSON(ctx, http.MethodPost, "/absensi", nil, req)
	if err != nil {
		return nil, fmt.Errorf("submit attendance: %w", err)
	}

	var record recordDTO
	if err = decodeRaw(env.Data, &record); err != nil {
		return nil, fmt.Errorf("submit attendance: %w", err)
	}

	return toDomainRecord(&record), nil
}

// StatisticsFilter narrows GET /absensi/statistics.
type StatisticsFilter struct {
	// StudentID restricts to one student; zero lets the portal decide by role.
	StudentID int
	// From is the first day included (YYYY-MM-DD).
	From string
	// To is the last day included (YYYY-MM-DD).
	To string
}

// AttendanceStatistics returns attendance totals and percentages.
func (c *Client) AttendanceStatistics(ctx context.Context, filter StatisticsFilter) (*domain.Statistics, error) {
	if err := validateRequest(&periodQuery{From: filter.From, To: filter.To}); err != nil {
		return nil, err
	}

	query := url.Values{}

	if filter.StudentID > 0 {
		query.Set("mahasiswa_id", strconv.Itoa(filter.StudentID))
	}

	if filter.From != "" {
		query.Set("start_date", filter.From)
	}

	if filter.To != "" {
		query.Set("end_date", filter.To)
	}

	env, err := c.doJSON(ctx, http.MethodGet, "/absensi/statistics", query, nil)
	if err != nil {
		return nil, fmt.Errorf("attendance statistics: %w", err)
	}

	var stats statisticsDTO
	if err = decodeRaw(env.Data, &stats); err != nil {
		return nil, fmt.Errorf("attendance statistics: %w", err)
	}

	return toDomainStatistics(&stats), nil
}

// UpdateAttendanceStatus changes the status of a record (admin only).
func (c *Client) UpdateAttendanceStatus(ctx context.Context, id int, status domain.Status) (*domain.Record, error) {
	wireStatus, err := toWireStatus(status)
	if err != nil {
		return nil, err
	}

	req := &statusRequest{Status: wireStatus}
	if err = validateRequest(req); err != nil {
		return nil, err
	}

	env, err := c.doJSON(ctx, http.MethodPut, "/absensi/"+strconv.Itoa(id), nil, req)
	if err != nil {
		return nil, fmt.Errorf("update attendance %d: %w", id, err)
	}

	var record recordDTO
	if err = decodeRaw(env.Data, &record); err != nil {
		return nil, fmt.Errorf("update attendance %d: %w", id, err)
	}

	return toDomainRecord(&record), nil
}

// DeleteAttendance removes a record (admin only).
func (c *Client) DeleteAttendance(ctx context.Context, id int) error {
	if _, err := c.doJSON(ctx, http.MethodDelete, "/absensi/"+strconv.Itoa(id), nil, nil); err != nil {
		return fmt.Errorf("delete attendance %d: %w", id, err)
	}

	return nil
}

// ListStudents returns the roster (admin only).
func (c *Client) ListStudents(ctx context.Context) ([]domain.Student, error) {
	env, err := c.doJSON(ctx, http.MethodGet, "/mahasiswa", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}

	var items []studentDTO
	if err = decodeRaw(env.Data, &items); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}

	students := make([]domain.Student, 0, len(items))
	for i := range items {
		students = append(students, *toDomainStudent(&items[i]))
	}

	return students, nil
}

// GetStudent returns one roster entry.
func (c *Client) GetStudent(ctx context.Context, id int) (*domain.Student, error) {
	env, err := c.doJSON(ctx, http.MethodGet, "/mahasiswa/"+strconv.Itoa(id), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get student %d: %w", id, err)
	}

	var student studentDTO
	if err = decodeRaw(env.Data, &student); err != nil {
		return nil, fmt.Errorf("get student %d: %w", id, err)
	}

	return toDomainStudent(&student), nil
}

// CreateStudent enrols a student together with the face photo used for recognition.
func (c *Client) CreateStudent(
	ctx context.Context,
	student domain.NewStudent,
	photoName string,
	photo io.Reader,
) (*domain.Student, error) {
	req := newStudentRequest(student)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	if photo == nil || photoName == "" {
		return nil, fmt.Errorf("%w: foto_wajah is required", ErrInvalidRequest)
	}

	var (
		body   bytes.Buffer
		writer = multipart.NewWriter(&body)
	)

	fields := [][2]string{
		{"nim", req.NIM},
		{"nama", req.Name},
		{"jurusan", req.Department},
	}

	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return nil, fmt.Errorf("create student: write %s: %w", field[0], err)
		}
	}

	part, err := writer.CreateFormFile("foto_wajah", filepath.Base(photoName))
	if err != nil {
		return nil, fmt.Errorf("create student: %w", err)
	}

	if _, err = io.Copy(part, photo); err != nil {
		return nil, fmt.Errorf("create student: copy photo: %w", err)
	}

	if err = writer.Close(); err != nil {
		return nil, fmt.Errorf("create student: %w", err)
	}

	env, err := c.do(ctx, http.MethodPost, "/mahasiswa", nil, &body, writer.FormDataContentType())
	if err != nil {
		return nil, fmt.Errorf("create student: %w", err)
	}

	var created studentDTO
	if err = decodeRaw(env.Data, &created); err != nil {
		return nil, fmt.Errorf("create student: %w", err)
	}

	return toDomainStudent(&created), nil
}

// DeleteStudent removes a roster entry (admin only).
func (c *Client) DeleteStudent(ctx context.Context, id int) error {
	if _, err := c.doJSON(ctx, http.MethodDelete, "/mahasiswa/"+strconv.Itoa(id), nil, nil); err != nil {
		return fmt.Errorf("delete student %d: %w", id, err)
	}

	return nil
}

// newStudentRequest trims the user input into a request.
func newStudentRequest(student domain.NewStudent) *studentRequest {
	return &studentRequest{
		NIM:        strings.TrimSpace(student.StudentNumber),
		Name:       strings.TrimSpace(student.Name),
		Department: strings.TrimSpace(student.Department),
	}
}

// doJSON sends an optional JSON body and decodes the envelope.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, payload any) (*envelope, error) {
	if payload == nil {
		return c.do(ctx, method, path, query, nil, "")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	return c.do(ctx, method, path, query, bytes.NewReader(data), "application/json")
}

// do performs one bounded request and converts the envelope.
// Declined requests come back as *APIError; everything else that goes
// wrong is a transport error.
func (c *Client) do(
	ctx context.Context,
	method, path string,
	query url.Values,
	body io.Reader,
	contentType string,
) (*envelope, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, method, c.endpoint(path, query), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s %s response: %w", method, path, err)
	}

	var env envelope
	if err = json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, &APIError{StatusCode: resp.StatusCode}
		}

		return nil, fmt.Errorf("%w: %s %s: %w", ErrUnexpectedResponse, method, path, err)
	}

	if resp.StatusCode >= http.StatusBadRequest || !env.Success {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    env.Message,
		}
	}

	return &env, nil
}

// endpoint joins the base URL, path and query.
func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path

	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	return u.String()
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}

// decodeRaw decodes a payload part of the envelope.
func decodeRaw(raw json.RawMessage, target any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("%w: payload missing", ErrUnexpectedResponse)
	}

	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
	}

	return nil
}
