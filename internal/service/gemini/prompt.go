package gemini

import "strings"

const outlinePrompt = `You are a presentation designer. The attached file is a PDF document.
Read it and turn its key ideas into a slide deck outline.

Return a JSON array. Each element is one slide with these fields:
- "title": short slide heading (required)
- "content": 3 to 6 concise bullet points as an array of strings (required, never empty)
- "speakerNotes": what the presenter should say for this slide (optional)
- "imageDescription": a description of an illustration for this slide, no text or letters in the image (optional)

Keep the slides in the order the ideas appear in the document.
Return only the JSON array.`

func buildPrompt(instruction string) string {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return outlinePrompt
	}
	return outlinePrompt + "\n\nAdditional instructions from the user:\n" + instruction
}

// responseSchema is the structured-output contract sent with REST requests.
// It mirrors slideSchemaJSON in the API's OpenAPI subset.
var responseSchema = map[string]interface{}{
	"type": "ARRAY",
	"items": map[string]interface{}{
		"type": "OBJECT",
		"properties": map[string]interface{}{
			"title": map[string]string{"type": "STRING"},
			"content": map[string]interface{}{
				"type":  "ARRAY",
				"items": map[string]string{"type": "STRING"},
			},
			"speakerNotes":     map[string]string{"type": "STRING"},
			"imageDescription": map[string]string{"type": "STRING"},
		},
		"required": []string{"title", "content"},
	},
}
