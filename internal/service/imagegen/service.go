package imagegen

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ChaseRain/pdf2deck/internal/infra/httpclient"
	"github.com/ChaseRain/pdf2deck/internal/infra/logger"
	"github.com/ChaseRain/pdf2deck/pkg/errors"
	"github.com/ChaseRain/pdf2deck/pkg/util"
)

const aspectRatio = "16:9"

type GeneratedImage struct {
	MimeType string
	Bytes    []byte
}

type Service struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *httpclient.Client
	logger     *logger.Logger
}

func New(apiKey, baseURL, model string, client *httpclient.Client, log *logger.Logger) *Service {
	return &Service{
		apiKey:     apiKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
		httpClient: client,
		logger:     log,
	}
}

// GenerateSlideImage returns the illustration for description as a data: URL.
// Image generation is best effort: every failure is logged and reported as
// ok == false, never as an error.
func (s *Service) GenerateSlideImage(ctx context.Context, description string) (string, bool) {
	img, err := s.generate(ctx, description)
	if err != nil {
		s.logger.Warn("image generation failed, slide will have no image",
			"model", s.model,
			"error", err,
		)
		return "", false
	}
	return util.DataURL(img.MimeType, img.Bytes), true
}

func (s *Service) generate(ctx context.Context, description string) (*GeneratedImage, error) {
	requestBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"parts": []map[string]interface{}{
					{
						"text": buildImagePrompt(description),
					},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"responseModalities": []string{"IMAGE"},
			"imageConfig": map[string]string{
				"aspectRatio": aspectRatio,
			},
		},
	}

	bodyBytes, err := json.Marshal(requestBody)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal request")
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", s.baseURL, s.model)
	header := http.Header{"X-Goog-Api-Key": {s.apiKey}}

	resp, err := s.httpClient.PostJSON(ctx, url, header, bodyBytes)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeImageGenAPI, "image generation API request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeImageGenAPI, "failed to read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(errors.ErrCodeImageGenAPI,
			fmt.Sprintf("image generation API returned %d: %s", resp.StatusCode, string(respBody)))
	}

	return parseResponse(respBody)
}

func buildImagePrompt(description string) string {
	return fmt.Sprintf(`Generate a high-quality illustration for a presentation slide.

Requirements:
- Aspect ratio: %s
- Professional, clean style
- NO text, letters, words, or numbers in the image

Description: %s`, aspectRatio, description)
}

// parseResponse returns the first inline image across all candidates and parts.
func parseResponse(body []byte) (*GeneratedImage, error) {
	var response struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text       string `json:"text,omitempty"`
					InlineData *struct {
						MimeType string `json:"mimeType"`
						Data     string `json:"data"`
					} `json:"inlineData,omitempty"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}

	if err := json.Unmarshal(body, &response); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeImageGenAPI, "failed to parse image gen response")
	}

	for _, candidate := range response.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			imageBytes, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeImageGenAPI, "failed to decode image data")
			}
			mimeType := part.InlineData.MimeType
			if mimeType == "" {
				mimeType = "image/png"
			}
			return &GeneratedImage{MimeType: mimeType, Bytes: imageBytes}, nil
		}
	}

	return nil, errors.New(errors.ErrCodeImageGenAPI, "no image in response")
}
