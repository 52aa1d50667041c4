package portal

import "encoding/json"

// envelope is the response wrapper shared by every portal endpoint.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Token   string          `json:"token"`
	User    json.RawMessage `json:"user"`
}

// loginRequest is the body of POST /login.
type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	UserType string `json:"user_type" validate:"required,oneof=admin mahasiswa"`
}

// studentRequest is the body of POST /register and the form of POST /mahasiswa.
type studentRequest struct {
	NIM        string `json:"nim" validate:"required,max=20,alphanum"`
	Name       string `json:"nama" validate:"required,max=100"`
	Department string `json:"jurusan" validate:"required,max=50"`
}

// imageRequest is the body of the face endpoints.
type imageRequest struct {
	Image string `json:"image" validate:"required,startswith=data:image/"`
}

// statusRequest is the body of PUT /absensi/:id.
type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=hadir izin alpa"`
}

// periodQuery holds the date parameters of the attendance queries.
type periodQuery struct {
	Date string `json:"tanggal" validate:"omitempty,datetime=2006-01-02"`
	From string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	To   string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

// userDTO is the identity returned by /login and /profile.
type userDTO struct {
	ID         int    `json:"id"`
	Username   string `json:"username"`
	NIM        string `json:"nim"`
	Name       string `json:"nama"`
	Department string `json:"jurusan"`
	Type       string `json:"type"`
}

// recordDTO covers both the list items of GET /absensi and the data of POST /absensi.
type recordDTO struct {
	ID          int      `json:"id"`
	StudentID   int      `json:"id_mahasiswa"`
	StudentName string   `json:"nama_mahasiswa"`
	Name        string   `json:"nama"`
	NIM         string   `json:"nim"`
	Date        string   `json:"tanggal"`
	Time        string   `json:"jam"`
	Status      string   `json:"status"`
	Confidence  *float64 `json:"confidence"`
}

// faceCheckDTO is the data of POST /absensi/verify-face.
type faceCheckDTO struct {
	FaceDetected bool `json:"face_detected"`
	FaceCount    int  `json:"face_count"`
}

// studentDTO is a roster entry.
type studentDTO struct {
	ID         int    `json:"id"`
	NIM        string `json:"nim"`
	Name       string `json:"nama"`
	Department string `json:"jurusan"`
	Photo      string `json:"foto_wajah"`
	CreatedAt  string `json:"created_at"`
}

// statisticsDTO is the data of GET /absensi/statistics.
type statisticsDTO struct {
	Total             int     `json:"total"`
	Present           int     `json:"hadir"`
	Excused           int     `json:"izin"`
	Absent            int     `json:"alpa"`
	PresentPercentage float64 `json:"hadir_percentage"`
	ExcusedPercentage float64 `json:"izin_percentage"`
	AbsentPercentage  float64 `json:"alpa_percentage"`
}
