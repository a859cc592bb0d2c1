package models

import "time"

// OverallStatus is the request-level workflow state.
type OverallStatus string

const (
	StatusNew       OverallStatus = "NEW"
	StatusPending   OverallStatus = "PENDING"
	StatusInReview  OverallStatus = "IN_REVIEW"
	StatusApproved  OverallStatus = "APPROVED"
	StatusRejected  OverallStatus = "REJECTED"
	StatusCompleted OverallStatus = "COMPLETED"
	StatusCancelled OverallStatus = "CANCELLED"
)

// Valid reports whether s belongs to the overall vocabulary.
func (s OverallStatus) Valid() bool {
	switch s {
	case StatusNew, StatusPending, StatusInReview, StatusApproved, StatusRejected, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is expected from s.
func (s OverallStatus) Terminal() bool {
	return s == StatusRejected || s == StatusCancelled || s == StatusCompleted
}

// TrackPending is the initial value shared by every department track.
const TrackPending = "PENDING"

// LibraryStatus is the Library track vocabulary.
type LibraryStatus string

const (
	LibraryPending LibraryStatus = TrackPending
	LibraryClear   LibraryStatus = "Clear"
	LibraryHold    LibraryStatus = "Hold"
	LibraryIssue   LibraryStatus = "Issue"
)

// BursarStatus is the Bursar track vocabulary.
type BursarStatus string

const (
	BursarPending BursarStatus = TrackPending
	BursarPaid    BursarStatus = "Paid"
	BursarWaived  BursarStatus = "Waived"
	BursarOwing   BursarStatus = "Owing"
	BursarHold    BursarStatus = "Hold"
)

// AcademicStatus is the Academic track vocabulary.
type AcademicStatus string

const (
	AcademicPending             AcademicStatus = TrackPending
	AcademicGoodStanding        AcademicStatus = "Good Standing"
	AcademicOutstanding         AcademicStatus = "Outstanding"
	AcademicHold                AcademicStatus = "Hold"
	AcademicCompleted           AcademicStatus = "COMPLETED"
	AcademicCorrectionsRequired AcademicStatus = "CORRECTIONS_REQUIRED"
)

// Department identifies one of the three review tracks.
type Department string

const (
	DepartmentLibrary  Department = "LIBRARY"
	DepartmentBursar   Department = "BURSAR"
	DepartmentAcademic Department = "ACADEMIC"
)

// Departments lists the tracks in evaluation order.
var Departments = []Department{DepartmentLibrary, DepartmentBursar, DepartmentAcademic}

type trackVocabulary struct {
	values   map[string]struct{}
	blocking map[string]struct{}
}

func vocabulary(values []string, blocking []string) trackVocabulary {
	v := trackVocabulary{values: make(map[string]struct{}), blocking: make(map[string]struct{})}
	for _, value := range values {
		v.values[value] = struct{}{}
	}
	for _, value := range blocking {
		v.values[value] = struct{}{}
		v.blocking[value] = struct{}{}
	}
	return v
}

var trackVocabularies = map[Department]trackVocabulary{
	DepartmentLibrary: vocabulary(
		[]string{TrackPending, string(LibraryClear)},
		[]string{string(LibraryHold), string(LibraryIssue)},
	),
	DepartmentBursar: vocabulary(
		[]string{TrackPending, string(BursarPaid), string(BursarWaived)},
		[]string{string(BursarOwing), string(BursarHold)},
	),
	DepartmentAcademic: vocabulary(
		[]string{TrackPending, string(AcademicGoodStanding), string(AcademicCompleted), string(AcademicCorrectionsRequired)},
		[]string{string(AcademicOutstanding), string(AcademicHold)},
	),
}

// ValidTrackStatus reports whether value belongs to the department's vocabulary.
func ValidTrackStatus(dept Department, value string) bool {
	_, ok := trackVocabularies[dept].values[value]
	return ok
}

// IsBlocking reports whether value keeps the request from reaching APPROVED.
func IsBlocking(dept Department, value string) bool {
	_, ok := trackVocabularies[dept].blocking[value]
	return ok
}

// Request is a document request moving through the clearance tracks.
type Request struct {
	ID             string         `db:"id" json:"id"`
	RequestCode    string         `db:"request_code" json:"requestCode"`
	StudentID      string         `db:"student_id" json:"studentId"`
	StudentEmail   string         `db:"student_email" json:"studentEmail"`
	Program        string         `db:"program" json:"program"`
	SubmissionDate time.Time      `db:"submission_date" json:"submissionDate"`
	Status         OverallStatus  `db:"status" json:"status"`
	LibraryStatus  LibraryStatus  `db:"library_status" json:"libraryStatus"`
	LibraryNote    string         `db:"library_note" json:"libraryNote"`
	BursarStatus   BursarStatus   `db:"bursar_status" json:"bursarStatus"`
	BursarNote     string         `db:"bursar_note" json:"bursarNote"`
	AcademicStatus AcademicStatus `db:"academic_status" json:"academicStatus"`
	AcademicNote   string         `db:"academic_note" json:"academicNote"`
	VerifierNotes  string         `db:"verifier_notes" json:"verifierNotes"`
	ProcessorNotes string         `db:"processor_notes" json:"processorNotes"`
	CreatedBy      *string        `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updatedAt"`
}

// TrackStatus returns the raw status value of a department track.
func (r *Request) TrackStatus(dept Department) string {
	switch dept {
	case DepartmentLibrary:
		return string(r.LibraryStatus)
	case DepartmentBursar:
		return string(r.BursarStatus)
	case DepartmentAcademic:
		return string(r.AcademicStatus)
	}
	return ""
}

// BlockingTracks lists departments currently holding a blocking value.
func (r *Request) BlockingTracks() []Department {
	var blocked []Department
	for _, dept := range Departments {
		if IsBlocking(dept, r.TrackStatus(dept)) {
			blocked = append(blocked, dept)
		}
	}
	return blocked
}

// RequestFilter constrains listing queries.
type RequestFilter struct {
	Status    []OverallStatus
	StudentID string
	Program   string
	Limit     int
	Offset    int
}
