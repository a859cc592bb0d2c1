package models

import (
	"fmt"
	"strings"
	"time"
)

// Field identifies a mutable Request attribute.
type Field string

const (
	FieldStatus         Field = "status"
	FieldLibraryStatus  Field = "library_status"
	FieldLibraryNote    Field = "library_note"
	FieldBursarStatus   Field = "bursar_status"
	FieldBursarNote     Field = "bursar_note"
	FieldAcademicStatus Field = "academic_status"
	FieldAcademicNote   Field = "academic_note"
	FieldVerifierNotes  Field = "verifier_notes"
	FieldProcessorNotes Field = "processor_notes"
	FieldStudentID      Field = "student_id"
	FieldStudentEmail   Field = "student_email"
	FieldProgram        Field = "program"
	FieldSubmissionDate Field = "submission_date"
)

// AuditedFields is the fixed, ordered field list used for audit diffs.
var AuditedFields = []Field{
	FieldStatus,
	FieldLibraryStatus,
	FieldLibraryNote,
	FieldBursarStatus,
	FieldBursarNote,
	FieldAcademicStatus,
	FieldAcademicNote,
	FieldVerifierNotes,
	FieldProcessorNotes,
	FieldStudentID,
	FieldStudentEmail,
	FieldProgram,
	FieldSubmissionDate,
}

// SubmissionDateLayout is the wire format for submission dates.
const SubmissionDateLayout = "2006-01-02"

var statusFields = map[Field]Department{
	FieldLibraryStatus:  DepartmentLibrary,
	FieldBursarStatus:   DepartmentBursar,
	FieldAcademicStatus: DepartmentAcademic,
}

var noteFields = map[Department]Field{
	DepartmentLibrary:  FieldLibraryNote,
	DepartmentBursar:   FieldBursarNote,
	DepartmentAcademic: FieldAcademicNote,
}

// Known reports whether f is a mutable field.
func (f Field) Known() bool {
	for _, known := range AuditedFields {
		if f == known {
			return true
		}
	}
	return false
}

// TrackDepartment returns the department whose status f holds.
func (f Field) TrackDepartment() (Department, bool) {
	dept, ok := statusFields[f]
	return dept, ok
}

// StatusField returns the status field of a department track.
func StatusField(dept Department) Field {
	for f, d := range statusFields {
		if d == dept {
			return f
		}
	}
	return ""
}

// NoteField returns the note field paired with a department track.
func NoteField(dept Department) Field {
	return noteFields[dept]
}

// Value returns the field's current value in its wire representation.
func (r *Request) Value(f Field) string {
	switch f {
	case FieldStatus:
		return string(r.Status)
	case FieldLibraryStatus:
		return string(r.LibraryStatus)
	case FieldLibraryNote:
		return r.LibraryNote
	case FieldBursarStatus:
		return string(r.BursarStatus)
	case FieldBursarNote:
		return r.BursarNote
	case FieldAcademicStatus:
		return string(r.AcademicStatus)
	case FieldAcademicNote:
		return r.AcademicNote
	case FieldVerifierNotes:
		return r.VerifierNotes
	case FieldProcessorNotes:
		return r.ProcessorNotes
	case FieldStudentID:
		return r.StudentID
	case FieldStudentEmail:
		return r.StudentEmail
	case FieldProgram:
		return r.Program
	case FieldSubmissionDate:
		if r.SubmissionDate.IsZero() {
			return ""
		}
		return r.SubmissionDate.UTC().Format(SubmissionDateLayout)
	}
	return ""
}

// Set assigns a wire value to f. Vocabulary membership is checked for status fields; identity
// fields are only trimmed and are validated by the caller.
func (r *Request) Set(f Field, value string) error {
	switch f {
	case FieldStatus:
		status := OverallStatus(strings.ToUpper(strings.TrimSpace(value)))
		if !status.Valid() {
			return fmt.Errorf("unknown status %q", value)
		}
		r.Status = status
	case FieldLibraryStatus, FieldBursarStatus, FieldAcademicStatus:
		dept, _ := f.TrackDepartment()
		value = strings.TrimSpace(value)
		if !ValidTrackStatus(dept, value) {
			return fmt.Errorf("unknown %s status %q", strings.ToLower(string(dept)), value)
		}
		switch dept {
		case DepartmentLibrary:
			r.LibraryStatus = LibraryStatus(value)
		case DepartmentBursar:
			r.BursarStatus = BursarStatus(value)
		case DepartmentAcademic:
			r.AcademicStatus = AcademicStatus(value)
		}
	case FieldLibraryNote:
		r.LibraryNote = value
	case FieldBursarNote:
		r.BursarNote = value
	case FieldAcademicNote:
		r.AcademicNote = value
	case FieldVerifierNotes:
		r.VerifierNotes = value
	case FieldProcessorNotes:
		r.ProcessorNotes = value
	case FieldStudentID:
		r.StudentID = strings.TrimSpace(value)
	case FieldStudentEmail:
		r.StudentEmail = strings.TrimSpace(value)
	case FieldProgram:
		r.Program = strings.TrimSpace(value)
	case FieldSubmissionDate:
		ts, err := time.Parse(SubmissionDateLayout, strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("submission_date must be YYYY-MM-DD")
		}
		r.SubmissionDate = ts
	default:
		return fmt.Errorf("unknown field %q", f)
	}
	return nil
}

// AuditFields snapshots the audited fields of r for diffing. A nil request yields an empty map.
func AuditFields(r *Request) map[string]interface{} {
	out := make(map[string]interface{}, len(AuditedFields))
	if r == nil {
		return out
	}
	for _, f := range AuditedFields {
		out[string(f)] = r.Value(f)
	}
	return out
}
