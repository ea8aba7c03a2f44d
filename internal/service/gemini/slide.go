package gemini

import (
	"encoding/json"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/ChaseRain/pdf2deck/pkg/errors"
)

// Slide is one outline entry. ImageURL is filled in later by the image stage
// and stays empty when no image was obtained.
type Slide struct {
	Title            string   `json:"title"`
	Content          []string `json:"content"`
	SpeakerNotes     string   `json:"speakerNotes,omitempty"`
	ImageDescription string   `json:"imageDescription,omitempty"`
	ImageURL         string   `json:"imageUrl,omitempty"`
}

const slideSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "minItems": 1,
  "items": {
    "type": "object",
    "required": ["title", "content"],
    "properties": {
      "title": {"type": "string", "minLength": 1},
      "content": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
      "speakerNotes": {"type": "string"},
      "imageDescription": {"type": "string"}
    }
  }
}`

var slideSchema = mustCompileSchema(slideSchemaJSON)

func mustCompileSchema(src string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
	if err != nil {
		panic(err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("slides.json", doc); err != nil {
		panic(err)
	}
	return c.MustCompile("slides.json")
}

// ParseSlides validates raw model output against the slide schema and decodes
// it. Markdown code fences around the JSON are tolerated.
func ParseSlides(text string) ([]Slide, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if text == "" {
		return nil, errors.New(errors.ErrCodeSchema, "empty response from gemini")
	}

	inst, err := jsonschema.UnmarshalJSON(strings.NewReader(text))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSchema, "response is not valid JSON")
	}
	if err := slideSchema.Validate(inst); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSchema, "response does not match slide schema")
	}

	var slides []Slide
	if err := json.Unmarshal([]byte(text), &slides); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSchema, "failed to decode slides")
	}
	return slides, nil
}
