package attendance

// Outcome classifies how a submission attempt ended.
type Outcome string

const (
	// OutcomeSuccess means the attendance was recorded.
	OutcomeSuccess Outcome = "success"
	// OutcomeFaceNotDetected means the pre-check found no face.
	OutcomeFaceNotDetected Outcome = "faceNotDetected"
	// OutcomeMultipleFaces means the pre-check found more than one face.
	OutcomeMultipleFaces Outcome = "multipleFacesDetected"
	// OutcomeDomainRejected means the portal was reachable but declined the request.
	OutcomeDomainRejected Outcome = "domainRejected"
	// OutcomeTransportError means the portal could not be reached or answered garbage.
	OutcomeTransportError Outcome = "transportError"
	// OutcomeDeviceUnavailable means the camera could not be opened or read.
	OutcomeDeviceUnavailable Outcome = "deviceUnavailable"
)

// Result is produced once per submission attempt.
type Result struct {
	// Outcome classifies the attempt.
	Outcome Outcome
	// Message is shown to the user; domain rejections carry the portal's text verbatim.
	Message string
	// Record is set on success.
	Record *Record
}

// Succeeded reports whether the attempt recorded attendance.
func (r *Result) Succeeded() bool {
	return r != nil && r.Outcome == OutcomeSuccess
}

// Clone returns a deep copy of the result.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}

	return &Result{
		Outcome: r.Outcome,
		Message: r.Message,
		Record:  r.Record.Clone(),
	}
}

// Instruction returns the corrective hint shown for an outcome.
func (o Outcome) Instruction() string {
	switch o {
	case OutcomeSuccess:
		return "Attendance recorded."
	case OutcomeFaceNotDetected:
		return "No face was detected in the photo. Check the lighting and take a new photo."
	case OutcomeMultipleFaces:
		return "Only one face is allowed in the photo. Make sure you are alone in the frame and take a new photo."
	case OutcomeDomainRejected:
		return "The portal declined the attendance."
	case OutcomeTransportError:
		return "The attendance portal could not be reached. Try again."
	case OutcomeDeviceUnavailable:
		return "The camera is not available. Check that it is connected and allowed, then try again."
	default:
		return ""
	}
}
