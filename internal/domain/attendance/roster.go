package attendance

// Student is a roster entry managed by administrators.
type Student struct {
	// ID is the server identifier.
	ID int
	// StudentNumber is the NIM, also used as login.
	StudentNumber string
	// Name is the student's full name.
	Name string
	// Department is the study program.
	Department string
	// PhotoPath is where the portal stored the enrolment photo.
	PhotoPath string
	// CreatedAt is the server's creation timestamp as sent.
	CreatedAt string
}

// NewStudent is the input for registering or enrolling a student.
type NewStudent struct {
	// StudentNumber is the NIM.
	StudentNumber string
	// Name is the student's full name.
	Name string
	// Department is the study program.
	Department string
}

// Statistics summarizes attendance over a period.
type Statistics struct {
	Total   int
	Present int
	Excused int
	Absent  int

	PresentPercentage float64
	ExcusedPercentage float64
	AbsentPercentage  float64
}
