// Package portaltest runs an in-memory attendance portal for tests.
//
// The stub speaks the same envelope and field names as the real portal,
// issues HS256 JWTs, and lets tests script face counts, rejections and
// latency while counting calls per endpoint.
package portaltest

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
)

const (
	// AdminUsername and AdminPassword log in as the built-in administrator.
	AdminUsername = "admin"
	AdminPassword = "admin123"

	// Endpoint names accepted by Calls.
	EndpointLogin      = "login"
	EndpointProfile    = "profile"
	EndpointRegister   = "register"
	EndpointList       = "absensi.list"
	EndpointVerifyFace = "absensi.verify"
	EndpointSubmit     = "absensi.submit"
	EndpointStatistics = "absensi.statistics"

	// AlreadyRecordedMessage is returned for a second submission on the same day.
	AlreadyRecordedMessage = "Anda sudah melakukan absensi hari ini"

	// contextIdentity is the echo context key of the authenticated user.
	contextIdentity = "identity"

	// defaultConfidence is the recognition confidence reported on success.
	defaultConfidence = 97.4
)

// signingKey signs the stub's tokens.
//
//nolint:gochecknoglobals // Test fixture.
var signingKey = []byte("portaltest-signing-key")

// Student is a roster entry of the stub.
type Student struct {
	ID         int    `json:"id"`
	NIM        string `json:"nim"`
	Name       string `json:"nama"`
	Department string `json:"jurusan"`
	Photo      string `json:"foto_wajah"`
	CreatedAt  string `json:"created_at"`
}

// Record is an attendance entry of the stub.
type Record struct {
	ID          int    `json:"id"`
	StudentID   int    `json:"id_mahasiswa"`
	StudentName string `json:"nama_mahasiswa"`
	NIM         string `json:"nim"`
	Date        string `json:"tanggal"`
	Time        string `json:"jam"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

// user is an authenticated principal.
type user struct {
	ID       int
	Username string
	Type     string
}

// Server is the stub portal.
type Server struct {
	srv *httptest.Server

	mu         sync.Mutex
	now        func() time.Time
	students   map[int]*Student
	records    []*Record
	tokens     map[string]user
	calls      map[string]int
	nextID     int
	faceCount  int
	confidence float64
	rejection  string
	precheck   string
	latency    time.Duration
	images     []string
}

// New starts a stub portal that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		now:        time.Now,
		students:   make(map[int]*Student),
		tokens:     make(map[string]user),
		calls:      make(map[string]int),
		nextID:     1,
		faceCount:  1,
		confidence: defaultConfidence,
	}

	s.srv = httptest.NewServer(s.routes())
	t.Cleanup(s.srv.Close)

	return s
}

// URL returns the API base URL.
func (s *Server) URL() string {
	return s.srv.URL + "/api"
}

// Close stops the stub; later calls fail at the transport level.
func (s *Server) Close() {
	s.srv.Close()
}

// SetNow fixes the stub's clock.
func (s *Server) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.now = now
}

// SetFaceCount scripts the number of faces the pre-check reports.
func (s *Server) SetFaceCount(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.faceCount = n
}

// SetConfidence scripts the recognition confidence of successful submissions.
func (s *Server) SetConfidence(c float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.confidence = c
}

// RejectSubmissions makes every submission fail with message; empty restores normal behaviour.
func (s *Server) RejectSubmissions(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rejection = message
}

// RejectPrechecks makes every face pre-check fail with message; empty restores normal behaviour.
func (s *Server) RejectPrechecks(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.precheck = message
}

// SetLatency delays every response.
func (s *Server) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latency = d
}

// AddStudent enrols a student directly and returns its id.
func (s *Server) AddStudent(nim, name, department string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.addStudentLocked(nim, name, department, "static/uploads/"+nim+".jpg").ID
}

// AddRecord stores an attendance record directly.
func (s *Server) AddRecord(studentID int, date, clock, status string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.addRecordLocked(studentID, date, clock, status).ID
}

// Records returns a copy of all stored records.
func (s *Server) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, *r)
	}

	return out
}

// Calls returns how many times an endpoint was hit.
func (s *Server) Calls(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls[endpoint]
}

// Images returns the image payloads received by the face endpoints, in order.
func (s *Server) Images() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.images...)
}

// IssueToken signs a token for a student (or the admin when studentID is zero) valid for ttl.
func (s *Server) IssueToken(studentID int, ttl time.Duration) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := user{ID: 1, Username: AdminUsername, Type: "admin"}

	if st, ok := s.students[studentID]; ok {
		u = user{ID: st.ID, Username: st.NIM, Type: "mahasiswa"}
	}

	return s.issueLocked(u, ttl)
}

func (s *Server) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	api := e.Group("/api", s.delay)
	api.POST("/login", s.login)
	api.POST("/register", s.register)

	auth := api.Group("", s.authenticate)
	auth.GET("/profile", s.profile)
	auth.GET("/absensi", s.listRecords)
	auth.POST("/absensi", s.submit)
	auth.POST("/absensi/verify-face", s.verifyFace)
	auth.GET("/absensi/statistics", s.statistics)
	auth.PUT("/absensi/:id", s.updateRecord, adminOnly)
	auth.DELETE("/absensi/:id", s.deleteRecord, adminOnly)
	auth.GET("/mahasiswa", s.listStudents, adminOnly)
	auth.POST("/mahasiswa", s.createStudent, adminOnly)
	auth.GET("/mahasiswa/:id", s.getStudent)
	auth.DELETE("/mahasiswa/:id", s.deleteStudent, adminOnly)

	return e
}

// errorHandler renders echo errors in the portal envelope.
func errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	message := err.Error()

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		code = httpErr.Code
		message = fmt.Sprint(httpErr.Message)
	}

	_ = fail(c, code, message)
}

func fail(c echo.Context, code int, message string) error {
	return c.JSON(code, echo.Map{"success": false, "message": message})
}

func ok(c echo.Context, code int, data any) error {
	return c.JSON(code, echo.Map{"success": true, "data": data})
}

func (s *Server) delay(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.mu.Lock()
		latency := s.latency
		s.mu.Unlock()

		if latency > 0 {
			select {
			case <-time.After(latency):
			case <-c.Request().Context().Done():
				return c.Request().Context().Err()
			}
		}

		return next(c)
	}
}

func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)

		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found || raw == "" {
			return fail(c, http.StatusUnauthorized, "Missing Authorization Header")
		}

		// Expiry is checked against the stub clock, not the wall clock.
		var (
			claims jwt.StandardClaims
			parser = jwt.Parser{SkipClaimsValidation: true}
		)

		token, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) { return signingKey, nil })
		if err != nil || !token.Valid {
			return fail(c, http.StatusUnauthorized, "Signature verification failed")
		}

		s.mu.Lock()
		expired := !claims.VerifyExpiresAt(s.now().Unix(), true)
		u, known := s.tokens[raw]
		s.mu.Unlock()

		if expired {
			return fail(c, http.StatusUnauthorized, "Token has expired")
		}

		if !known {
			return fail(c, http.StatusUnprocessableEntity, "Signature verification failed")
		}

		c.Set(contextIdentity, u)

		return next(c)
	}
}

func adminOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if current(c).Type != "admin" {
			return fail(c, http.StatusForbidden, "Akses ditolak")
		}

		return next(c)
	}
}

func current(c echo.Context) user {
	u, _ := c.Get(contextIdentity).(user)

	return u
}

func (s *Server) login(c echo.Context) error {
	s.count(EndpointLogin)

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		UserType string `json:"user_type"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Username dan password diperlukan")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch req.UserType {
	case "admin":
		if req.Username != AdminUsername || req.Password != AdminPassword {
			return fail(c, http.StatusUnauthorized, "Username atau password salah")
		}

		u := user{ID: 1, Username: AdminUsername, Type: "admin"}

		return c.JSON(http.StatusOK, echo.Map{
			"success": true,
			"message": "Login berhasil",
			"token":   s.issueLocked(u, 24*time.Hour),
			"user":    echo.Map{"id": 1, "username": AdminUsername, "nama": "Administrator", "type": "admin"},
		})
	case "mahasiswa":
		st := s.findByNIMLocked(req.Username)
		if st == nil {
			return fail(c, http.StatusUnauthorized, "NIM tidak ditemukan")
		}

		if req.Password != st.NIM {
			return fail(c, http.StatusUnauthorized, "Password salah")
		}

		u := user{ID: st.ID, Username: st.NIM, Type: "mahasiswa"}

		return c.JSON(http.StatusOK, echo.Map{
			"success": true,
			"message": "Login berhasil",
			"token":   s.issueLocked(u, 24*time.Hour),
			"user":    studentUser(st),
		})
	default:
		return fail(c, http.StatusBadRequest, "Tipe user tidak valid")
	}
}

func (s *Server) profile(c echo.Context) error {
	s.count(EndpointProfile)

	u := current(c)

	s.mu.Lock()
	defer s.mu.Unlock()

	if u.Type == "admin" {
		return ok(c, http.StatusOK, echo.Map{"id": u.ID, "username": u.Username, "nama": "Administrator", "type": "admin"})
	}

	st, found := s.students[u.ID]
	if !found {
		return fail(c, http.StatusNotFound, "User tidak ditemukan")
	}

	return ok(c, http.StatusOK, studentUser(st))
}

func (s *Server) register(c echo.Context) error {
	s.count(EndpointRegister)

	var req struct {
		NIM        string `json:"nim"`
		Name       string `json:"nama"`
		Department string `json:"jurusan"`
	}
	if err := c.Bind(&req); err != nil || req.NIM == "" || req.Name == "" || req.Department == "" {
		return fail(c, http.StatusBadRequest, "NIM, nama, dan jurusan diperlukan")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findByNIMLocked(req.NIM) != nil {
		return fail(c, http.StatusBadRequest, "NIM sudah terdaftar")
	}

	s.addStudentLocked(req.NIM, req.Name, req.Department, "")

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "message": "Registrasi berhasil"})
}

func (s *Server) listRecords(c echo.Context) error {
	s.count(EndpointList)

	u := current(c)

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		studentID, _ = strconv.Atoi(c.QueryParam("mahasiswa_id"))
		date         = c.QueryParam("tanggal")
		status       = c.QueryParam("status")
	)

	if studentID == 0 && u.Type == "mahasiswa" {
		studentID = u.ID
	}

	out := make([]Record, 0, len(s.records))

	for _, r := range s.records {
		if studentID != 0 && r.StudentID != studentID {
			continue
		}

		if date != "" && r.Date != date {
			continue
		}

		if status != "" && r.Status != status {
			continue
		}

		out = append(out, *r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}

		return out[i].Time > out[j].Time
	})

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": out, "total": len(out)})
}

func (s *Server) verifyFace(c echo.Context) error {
	s.count(EndpointVerifyFace)

	image, err := bindImage(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.images = append(s.images, image)

	if s.precheck != "" {
		return fail(c, http.StatusBadRequest, s.precheck)
	}

	return ok(c, http.StatusOK, echo.Map{
		"face_detected": s.faceCount > 0,
		"face_count":    s.faceCount,
	})
}

func (s *Server) submit(c echo.Context) error {
	s.count(EndpointSubmit)

	image, err := bindImage(c)
	if err != nil {
		return err
	}

	u := current(c)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.images = append(s.images, image)

	if s.rejection != "" {
		return fail(c, http.StatusBadRequest, s.rejection)
	}

	st, found := s.students[u.ID]
	if u.Type != "mahasiswa" || !found {
		return fail(c, http.StatusBadRequest, "Wajah tidak dikenali")
	}

	now := s.now()
	today := now.Format("2006-01-02")

	for _, r := range s.records {
		if r.StudentID == st.ID && r.Date == today {
			return fail(c, http.StatusBadRequest, AlreadyRecordedMessage)
		}
	}

	r := s.addRecordLocked(st.ID, today, now.Format("15:04:05"), "hadir")

	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"message": "Absensi berhasil",
		"data": echo.Map{
			"nama":       st.Name,
			"tanggal":    r.Date,
			"jam":        r.Time,
			"status":     r.Status,
			"confidence": s.confidence,
		},
	})
}

func (s *Server) statistics(c echo.Context) error {
	s.count(EndpointStatistics)

	u := current(c)

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		studentID, _ = strconv.Atoi(c.QueryParam("mahasiswa_id"))
		from         = c.QueryParam("start_date")
		to           = c.QueryParam("end_date")
		counts       = map[string]int{}
		total        int
	)

	if studentID == 0 && u.Type == "mahasiswa" {
		studentID = u.ID
	}

	for _, r := range s.records {
		if studentID != 0 && r.StudentID != studentID {
			continue
		}

		if (from != "" && r.Date < from) || (to != "" && r.Date > to) {
			continue
		}

		counts[r.Status]++
		total++
	}

	pct := func(n int) float64 {
		if total == 0 {
			return 0
		}

		return float64(int(float64(n)/float64(total)*10000+0.5)) / 100
	}

	return ok(c, http.StatusOK, echo.Map{
		"total":            total,
		"hadir":            counts["hadir"],
		"izin":             counts["izin"],
		"alpa":             counts["alpa"],
		"hadir_percentage": pct(counts["hadir"]),
		"izin_percentage":  pct(counts["izin"]),
		"alpa_percentage":  pct(counts["alpa"]),
	})
}

func (s *Server) updateRecord(c echo.Context) error {
	id, _ := strconv.Atoi(c.Param("id"))

	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Status tidak valid (hadir/izin/alpa)")
	}

	if req.Status != "hadir" && req.Status != "izin" && req.Status != "alpa" {
		return fail(c, http.StatusBadRequest, "Status tidak valid (hadir/izin/alpa)")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.records {
		if r.ID == id {
			r.Status = req.Status

			return ok(c, http.StatusOK, *r)
		}
	}

	return fail(c, http.StatusNotFound, "Absensi tidak ditemukan")
}

func (s *Server) deleteRecord(c echo.Context) error {
	id, _ := strconv.Atoi(c.Param("id"))

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.records {
		if r.ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)

			return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Absensi berhasil dihapus"})
		}
	}

	return fail(c, http.StatusNotFound, "Absensi tidak ditemukan")
}

func (s *Server) listStudents(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Student, 0, len(s.students))
	for _, st := range s.students {
		out = append(out, *st)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": out, "total": len(out)})
}

func (s *Server) getStudent(c echo.Context) error {
	id, _ := strconv.Atoi(c.Param("id"))
	u := current(c)

	if u.Type == "mahasiswa" && u.ID != id {
		return fail(c, http.StatusForbidden, "Akses ditolak")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, found := s.students[id]
	if !found {
		return fail(c, http.StatusNotFound, "Mahasiswa tidak ditemukan")
	}

	return ok(c, http.StatusOK, *st)
}

func (s *Server) createStudent(c echo.Context) error {
	nim, name, department := c.FormValue("nim"), c.FormValue("nama"), c.FormValue("jurusan")
	if nim == "" || name == "" || department == "" {
		return fail(c, http.StatusBadRequest, "NIM, nama, dan jurusan diperlukan")
	}

	header, err := c.FormFile("foto_wajah")
	if err != nil {
		return fail(c, http.StatusBadRequest, "Foto wajah diperlukan dan harus dalam format PNG, JPG, JPEG, atau GIF")
	}

	file, err := header.Open()
	if err != nil {
		return err
	}

	defer func() {
		_ = file.Close()
	}()

	if _, err = io.Copy(io.Discard, file); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findByNIMLocked(nim) != nil {
		return fail(c, http.StatusBadRequest, "NIM sudah terdaftar")
	}

	st := s.addStudentLocked(nim, name, department, "static/uploads/"+header.Filename)

	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"message": "Mahasiswa berhasil ditambahkan",
		"data":    *st,
	})
}

func (s *Server) deleteStudent(c echo.Context) error {
	id, _ := strconv.Atoi(c.Param("id"))

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, found := s.students[id]; !found {
		return fail(c, http.StatusNotFound, "Mahasiswa tidak ditemukan")
	}

	delete(s.students, id)

	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Mahasiswa berhasil dihapus"})
}

func bindImage(c echo.Context) (string, error) {
	var req struct {
		Image string `json:"image"`
	}
	if err := c.Bind(&req); err != nil || req.Image == "" {
		return "", fail(c, http.StatusBadRequest, "Foto wajah diperlukan")
	}

	return req.Image, nil
}

func studentUser(st *Student) echo.Map {
	return echo.Map{
		"id":      st.ID,
		"nim":     st.NIM,
		"nama":    st.Name,
		"jurusan": st.Department,
		"type":    "mahasiswa",
	}
}

func (s *Server) count(endpoint string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[endpoint]++
}

func (s *Server) issueLocked(u user, ttl time.Duration) string {
	now := s.now()

	claims := jwt.StandardClaims{
		Subject:   strconv.Itoa(u.ID),
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
		Id:        strconv.Itoa(len(s.tokens) + 1),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		panic(err)
	}

	s.tokens[token] = u

	return token
}

func (s *Server) findByNIMLocked(nim string) *Student {
	for _, st := range s.students {
		if st.NIM == nim {
			return st
		}
	}

	return nil
}

func (s *Server) addStudentLocked(nim, name, department, photo string) *Student {
	st := &Student{
		ID:         s.nextID,
		NIM:        nim,
		Name:       name,
		Department: department,
		Photo:      photo,
		CreatedAt:  s.now().Format("2006-01-02 15:04:05"),
	}

	s.nextID++
	s.students[st.ID] = st

	return st
}

func (s *Server) addRecordLocked(studentID int, date, clock, status string) *Record {
	r := &Record{
		ID:        s.nextID,
		StudentID: studentID,
		Date:      date,
		Time:      clock,
		Status:    status,
		CreatedAt: s.now().Format("2006-01-02 15:04:05"),
	}

	if st, found := s.students[studentID]; found {
		r.StudentName = st.Name
		r.NIM = st.NIM
	}

	s.nextID++
	s.records = append(s.records, r)

	return r
}
