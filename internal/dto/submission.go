package dto

type SubmissionError struct {
	Code    string `json:"code" example:"upstream_error"`
	Message string `json:"message" example:"vision API returned status 401"`
}

type SubmissionResponse struct {
	ID         string           `json:"id" example:"sub_5f0c8a7e2b3d4c1a9e8f7d6c5b4a3210"`
	State      string           `json:"state" example:"done" enums:"idle,extracting,submitting,done,failed"`
	Source     string           `json:"source" example:"preset:win"`
	FrameCount int              `json:"frame_count" example:"11"`
	Verdict    string           `json:"verdict,omitempty" example:"Nice kickflip!"`
	Error      *SubmissionError `json:"error,omitempty"`
	CreatedAt  string           `json:"created_at" example:"2026-01-15T10:30:00Z"`
	UpdatedAt  string           `json:"updated_at" example:"2026-01-15T10:30:12Z"`
}
