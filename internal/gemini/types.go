package gemini

// GenerateContentRequest is the request body of models/{model}:generateContent.
type GenerateContentRequest struct {
	Contents []Content `json:"contents"`
}

// GenerateContentResponse is the subset of the generateContent response the proxy reads.
// Every level is optional on the wire and checked explicitly by FirstText.
type GenerateContentResponse struct {
	Candidates []Candidate `json:"candidates"`
}

// Candidate is a single generated answer.
type Candidate struct {
	Content      *Content `json:"content"`
	FinishReason string   `json:"finishReason,omitempty"`
}

// Content is an ordered list of parts, optionally attributed to a role.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part holds one piece of text. Text is a pointer so a missing field can be told
// apart from an empty string.
type Part struct {
	Text *string `json:"text,omitempty"`
}

// newTextRequest builds a single-turn request carrying prompt as its only part.
func newTextRequest(prompt string) GenerateContentRequest {
	return GenerateContentRequest{
		Contents: []Content{{
			Parts: []Part{{Text: &prompt}},
		}},
	}
}

// FirstText returns candidates[0].content.parts[0].text.
// The boolean is false when any level of that path is absent.
func (r *GenerateContentResponse) FirstText() (string, bool) {
	if r == nil || len(r.Candidates) == 0 {
		return "", false
	}
	content := r.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return "", false
	}
	text := content.Parts[0].Text
	if text == nil {
		return "", false
	}
	return *text, true
}
