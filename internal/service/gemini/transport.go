package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/ChaseRain/pdf2deck/internal/infra/httpclient"
	"github.com/ChaseRain/pdf2deck/internal/infra/logger"
	"github.com/ChaseRain/pdf2deck/internal/service/document"
	"github.com/ChaseRain/pdf2deck/pkg/errors"
)

// Transport sends one outline request to one model and returns the raw text
// of the first candidate. Failures come back as coded AppErrors.
type Transport interface {
	GenerateOutline(ctx context.Context, model string, doc *document.Document, prompt string) (string, error)
}

// RESTTransport calls generateContent directly over HTTP.
type RESTTransport struct {
	apiKey     string
	baseURL    string
	httpClient *httpclient.Client
	logger     *logger.Logger
}

func NewRESTTransport(apiKey, baseURL string, client *httpclient.Client, log *logger.Logger) *RESTTransport {
	return &RESTTransport{
		apiKey:     apiKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: client,
		logger:     log,
	}
}

func (t *RESTTransport) GenerateOutline(ctx context.Context, model string, doc *document.Document, prompt string) (string, error) {
	requestBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"parts": []map[string]interface{}{
					{
						"inline_data": map[string]string{
							"mime_type": doc.MimeType,
							"data":      doc.Base64,
						},
					},
					{
						"text": prompt,
					},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"responseMimeType": "application/json",
			"responseSchema":   responseSchema,
		},
	}

	bodyBytes, err := json.Marshal(requestBody)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal request")
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", t.baseURL, model)
	header := http.Header{"X-Goog-Api-Key": {t.apiKey}}

	resp, err := t.httpClient.PostJSON(ctx, url, header, bodyBytes)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeUnavailable, "gemini API request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeUnavailable, "failed to read response")
	}

	if resp.StatusCode != http.StatusOK {
		t.logger.Error("gemini API error", "model", model, "status", resp.StatusCode, "body", string(respBody))
		return "", classifyHTTP(resp.StatusCode, respBody)
	}

	return firstCandidateText(respBody)
}

func firstCandidateText(body []byte) (string, error) {
	var response struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}

	if err := json.Unmarshal(body, &response); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeSchema, "failed to parse gemini response")
	}

	if len(response.Candidates) == 0 || len(response.Candidates[0].Content.Parts) == 0 {
		return "", errors.New(errors.ErrCodeSchema, "empty response from gemini")
	}

	var sb strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

// SDKTransport uses the official genai client.
type SDKTransport struct {
	client *genai.Client
}

func NewSDKTransport(ctx context.Context, apiKey string) (*SDKTransport, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfiguration, "failed to create genai client")
	}
	return &SDKTransport{client: client}, nil
}

func (t *SDKTransport) Close() error {
	return t.client.Close()
}

func (t *SDKTransport) GenerateOutline(ctx context.Context, model string, doc *document.Document, prompt string) (string, error) {
	m := t.client.GenerativeModel(model)
	m.ResponseMIMEType = "application/json"
	m.ResponseSchema = sdkResponseSchema

	resp, err := m.GenerateContent(ctx, genai.Blob{MIMEType: doc.MimeType, Data: doc.Bytes}, genai.Text(prompt))
	if err != nil {
		return "", classifySDKError(err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New(errors.ErrCodeSchema, "empty response from gemini")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}

var sdkResponseSchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title": {Type: genai.TypeString},
			"content": {
				Type:  genai.TypeArray,
				Items: &genai.Schema{Type: genai.TypeString},
			},
			"speakerNotes":     {Type: genai.TypeString},
			"imageDescription": {Type: genai.TypeString},
		},
		Required: []string{"title", "content"},
	},
}
