package dto

// CreateRequestInput is the payload for opening a document request.
type CreateRequestInput struct {
	StudentID      string `json:"studentId" validate:"required,max=64"`
	StudentEmail   string `json:"studentEmail" validate:"required,email"`
	Program        string `json:"program" validate:"required,max=128"`
	SubmissionDate string `json:"submissionDate" validate:"omitempty,datetime=2006-01-02"`
}

// WorkflowMutationRequest carries proposed field changes keyed by field name. An empty set is
// rejected by WorkflowService.Apply.
type WorkflowMutationRequest struct {
	Changes map[string]string `json:"changes"`
}

// RequestQuery mirrors supported listing filters.
type RequestQuery struct {
	Status    []string
	StudentID string
	Program   string
	Page      int
	PageSize  int
}

// AuditQuery mirrors supported audit filters.
type AuditQuery struct {
	RequestID string
	UserID    string
	Action    string
	From      string
	To        string
	Page      int
	PageSize  int
}

// SweepResponse reports the outcome of a manual SLA sweep.
type SweepResponse struct {
	Checked int `json:"checked"`
	Updated int `json:"updated"`
}
