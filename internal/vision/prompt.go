package vision

// BuildChatRequest lays out the fixed instruction, the task text and one
// image part per frame, in frame order.
func BuildChatRequest(model string, frames []string) ChatRequest {
	if model == "" {
		model = DefaultModel
	}

	parts := make([]ContentPart, 0, len(frames)+1)
	parts = append(parts, ContentPart{Type: "text", Text: TaskPrompt})
	for _, f := range frames {
		parts = append(parts, ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: f}})
	}

	return ChatRequest{
		Model: model,
		Messages: []Message{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: parts},
		},
		MaxTokens: MaxTokens,
	}
}

// ImageURLs returns the image list of the user message.
func (r ChatRequest) ImageURLs() []string {
	var urls []string
	for _, m := range r.Messages {
		parts, ok := m.Content.([]ContentPart)
		if m.Role != "user" || !ok {
			continue
		}
		for _, p := range parts {
			if p.Type == "image_url" && p.ImageURL != nil {
				urls = append(urls, p.ImageURL.URL)
			}
		}
	}
	return urls
}
