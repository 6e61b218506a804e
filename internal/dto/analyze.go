package dto

import "encoding/json"

type AnalyzeRequest struct {
	Frames    []string `json:"frames" example:"data:image/png;base64,iVBORw0KGgo="`
	OpenAIKey string   `json:"openAiKey" example:"sk-..."`
}

type AnalyzeResponse struct {
	Success bool            `json:"success" example:"true"`
	Result  json.RawMessage `json:"result,omitempty" swaggertype:"object"`
	Error   *ErrorResponse  `json:"error,omitempty"`
}
