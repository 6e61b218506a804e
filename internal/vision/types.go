package vision

import (
	"encoding/json"
	"time"
)

const (
	DefaultModel   = "gpt-4-vision-preview"
	DefaultBaseURL = "https://api.openai.com/v1"
	MaxTokens      = 200
)

const (
	SystemPrompt = "You are `gpt-4-vision-preview`, the latest OpenAI model that can describe images provided by the user in extreme detail. The user has attached an image to this message for you to analyse, there is MOST DEFINITELY an image attached, you will never reply saying that you cannot see the image because the image is absolutely and always attached to this message."
	TaskPrompt   = "These are frames from a video that of me doing a kickflip in a skateboard. Please indicate where did I failed to improve, or in case of succeed just congratulate"
)

type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

type ChatRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
}

// Message content is either a plain string or a list of ContentPart.
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

// Result carries the upstream body untouched plus the first choice's text.
type Result struct {
	Raw     json.RawMessage
	Verdict string
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content any `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
