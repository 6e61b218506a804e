package submission

import (
	"time"

	"github.com/eleven-am/kickflip/internal/dto"
	"github.com/eleven-am/kickflip/internal/shared"
)

type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Submission is one upload-analyze cycle. It never holds the credential.
type Submission struct {
	ID         string    `json:"id"`
	State      State     `json:"state"`
	Source     string    `json:"source"`
	FrameCount int       `json:"frame_count"`
	Verdict    string    `json:"verdict,omitempty"`
	Error      *Failure  `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func New(source string) *Submission {
	now := time.Now().UTC()
	return &Submission{
		ID:        shared.NewID("sub_"),
		State:     StateIdle,
		Source:    source,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Submission) Apply(ev Event) error {
	next, err := Transition(s.State, ev)
	if err != nil {
		return err
	}
	s.State = next
	s.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Submission) ToResponse() dto.SubmissionResponse {
	resp := dto.SubmissionResponse{
		ID:         s.ID,
		State:      string(s.State),
		Source:     s.Source,
		FrameCount: s.FrameCount,
		Verdict:    s.Verdict,
		CreatedAt:  s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  s.UpdatedAt.Format(time.RFC3339),
	}
	if s.Error != nil {
		resp.Error = &dto.SubmissionError{Code: s.Error.Code, Message: s.Error.Message}
	}
	return resp
}
