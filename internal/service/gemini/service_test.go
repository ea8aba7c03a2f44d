package gemini

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ChaseRain/pdf2deck/internal/infra/httpclient"
	"github.com/ChaseRain/pdf2deck/internal/infra/logger"
	"github.com/ChaseRain/pdf2deck/internal/service/document"
	"github.com/ChaseRain/pdf2deck/pkg/errors"
)

const (
	primary  = "model-pro"
	fallback = "model-flash"
)

var testDoc = &document.Document{
	Name:     "doc.pdf",
	Bytes:    []byte("%PDF-1.4"),
	Base64:   "JVBERi0xLjQ=",
	MimeType: document.MimeTypePDF,
}

type reply struct {
	status int
	body   string
}

// fakeAPI answers generateContent per model and records request bodies.
type fakeAPI struct {
	mu       sync.Mutex
	replies  map[string]reply
	requests map[string][]map[string]interface{}
}

func newFakeAPI(replies map[string]reply) (*fakeAPI, *httptest.Server) {
	f := &fakeAPI{replies: replies, requests: map[string][]map[string]interface{}{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		model := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/models/"), ":generateContent")
		raw, _ := io.ReadAll(r.Body)
		var body map[string]interface{}
		_ = json.Unmarshal(raw, &body)

		f.mu.Lock()
		f.requests[model] = append(f.requests[model], body)
		rep, ok := f.replies[model]
		f.mu.Unlock()

		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(rep.status)
		_, _ = w.Write([]byte(rep.body))
	}))
	return f, srv
}

func (f *fakeAPI) request(model string, i int) map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[model][i]
}

func (f *fakeAPI) calls(model string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests[model])
}

func candidate(text string) string {
	b, _ := json.Marshal(map[string]interface{}{
		"candidates": []interface{}{
			map[string]interface{}{
				"content": map[string]interface{}{
					"parts": []interface{}{map[string]string{"text": text}},
				},
			},
		},
	})
	return string(b)
}

func newService(srv *httptest.Server) *Service {
	log := logger.NewNop()
	transport := NewRESTTransport("test-key", srv.URL, httpclient.New(httpclient.Options{}), log)
	return New("test-key", []string{primary, fallback}, transport, log)
}

const threeSlides = `[
  {"title": "Intro", "content": ["a", "b"], "speakerNotes": "hello", "imageDescription": "a sunrise"},
  {"title": "Middle", "content": ["c"]},
  {"title": "End", "content": ["d", "e", "f"], "imageDescription": "a sunset"}
]`

func TestGenerateOutlinePreservesOrder(t *testing.T) {
	api, srv := newFakeAPI(map[string]reply{
		primary: {http.StatusOK, candidate(threeSlides)},
	})
	defer srv.Close()

	slides, err := newService(srv).GenerateOutline(context.Background(), testDoc, "")
	require.NoError(t, err)

	require.Len(t, slides, 3)
	assert.Equal(t, []string{"Intro", "Middle", "End"}, []string{slides[0].Title, slides[1].Title, slides[2].Title})
	assert.Equal(t, "hello", slides[0].SpeakerNotes)
	assert.Equal(t, "a sunrise", slides[0].ImageDescription)
	assert.Empty(t, slides[1].ImageDescription)
	assert.Empty(t, slides[0].ImageURL)
	assert.Equal(t, 1, api.calls(primary))
	assert.Equal(t, 0, api.calls(fallback))
}

func TestGenerateOutlineRequestShape(t *testing.T) {
	api, srv := newFakeAPI(map[string]reply{
		primary: {http.StatusOK, candidate(threeSlides)},
	})
	defer srv.Close()

	_, err := newService(srv).GenerateOutline(context.Background(), testDoc, "  Focus on the budget  ")
	require.NoError(t, err)

	body := api.request(primary, 0)
	parts := body["contents"].([]interface{})[0].(map[string]interface{})["parts"].([]interface{})
	inline := parts[0].(map[string]interface{})["inline_data"].(map[string]interface{})
	assert.Equal(t, "application/pdf", inline["mime_type"])
	assert.Equal(t, testDoc.Base64, inline["data"])

	prompt := parts[1].(map[string]interface{})["text"].(string)
	assert.True(t, strings.HasPrefix(prompt, outlinePrompt))
	assert.True(t, strings.HasSuffix(prompt, "Focus on the budget"))

	gen := body["generationConfig"].(map[string]interface{})
	assert.Equal(t, "application/json", gen["responseMimeType"])
	assert.Equal(t, "ARRAY", gen["responseSchema"].(map[string]interface{})["type"])
}

func TestGenerateOutlineFallbackIsTransparent(t *testing.T) {
	fallbackOnly := `[{"title": "From fallback", "content": ["x"]}]`
	api, srv := newFakeAPI(map[string]reply{
		primary:  {http.StatusInternalServerError, `{"error":{"code":500,"message":"internal","status":"INTERNAL"}}`},
		fallback: {http.StatusOK, candidate(fallbackOnly)},
	})
	defer srv.Close()

	slides, err := newService(srv).GenerateOutline(context.Background(), testDoc, "")
	require.NoError(t, err)

	want, err := ParseSlides(fallbackOnly)
	require.NoError(t, err)
	assert.Equal(t, want, slides)
	assert.Equal(t, 1, api.calls(primary))
	assert.Equal(t, 1, api.calls(fallback))
}

func TestGenerateOutlineSurfacesPrimaryCredentialFailure(t *testing.T) {
	_, srv := newFakeAPI(map[string]reply{
		primary:  {http.StatusBadRequest, `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT","details":[{"reason":"API_KEY_INVALID"}]}}`},
		fallback: {http.StatusServiceUnavailable, `{"error":{"code":503,"message":"The model is overloaded.","status":"UNAVAILABLE"}}`},
	})
	defer srv.Close()

	_, err := newService(srv).GenerateOutline(context.Background(), testDoc, "")
	require.Error(t, err)

	assert.True(t, errors.Is(err, errors.ErrCodeGeneration))
	assert.True(t, errors.Is(err, errors.ErrCodeCredential))
	assert.False(t, errors.Is(err, errors.ErrCodeUnavailable))
	assert.Contains(t, err.Error(), "API key not valid")
}

func TestGenerateOutlineSurfacesFallbackFailureOtherwise(t *testing.T) {
	_, srv := newFakeAPI(map[string]reply{
		primary:  {http.StatusServiceUnavailable, `{"error":{"code":503,"message":"overloaded"}}`},
		fallback: {http.StatusOK, candidate(`[{"title": "No content"}]`)},
	})
	defer srv.Close()

	_, err := newService(srv).GenerateOutline(context.Background(), testDoc, "")
	require.Error(t, err)

	assert.True(t, errors.Is(err, errors.ErrCodeGeneration))
	assert.True(t, errors.Is(err, errors.ErrCodeSchema))
	assert.False(t, errors.Is(err, errors.ErrCodeUnavailable))
}

func TestGenerateOutlineMissingContentFails(t *testing.T) {
	bad := candidate(`[{"title": "A", "content": ["x"]}, {"title": "B"}]`)
	api, srv := newFakeAPI(map[string]reply{
		primary:  {http.StatusOK, bad},
		fallback: {http.StatusOK, bad},
	})
	defer srv.Close()

	slides, err := newService(srv).GenerateOutline(context.Background(), testDoc, "")
	assert.Nil(t, slides)
	assert.True(t, errors.Is(err, errors.ErrCodeSchema))
	assert.Equal(t, 1, api.calls(primary))
	assert.Equal(t, 1, api.calls(fallback))
}

func TestGenerateOutlineEmptyCandidates(t *testing.T) {
	_, srv := newFakeAPI(map[string]reply{
		primary:  {http.StatusOK, `{"candidates": []}`},
		fallback: {http.StatusOK, `{"candidates": [{"content": {"parts": []}}]}`},
	})
	defer srv.Close()

	_, err := newService(srv).GenerateOutline(context.Background(), testDoc, "")
	assert.True(t, errors.Is(err, errors.ErrCodeSchema))
	assert.Contains(t, err.Error(), "empty response")
}

func TestGenerateOutlineWithoutModels(t *testing.T) {
	s := New("k", []string{"", ""}, nil, logger.NewNop())
	_, err := s.GenerateOutline(context.Background(), testDoc, "")
	assert.True(t, errors.Is(err, errors.ErrCodeConfiguration))
}

func TestConfigured(t *testing.T) {
	assert.True(t, New("k", nil, nil, logger.NewNop()).Configured())
	assert.False(t, New("", nil, nil, logger.NewNop()).Configured())
}

func TestParseSlides(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantLen int
		wantErr bool
	}{
		{name: "plain", text: `[{"title":"A","content":["x"]}]`, wantLen: 1},
		{name: "fenced", text: "```json\n[{\"title\":\"A\",\"content\":[\"x\"]}]\n```", wantLen: 1},
		{name: "blank", text: "   ", wantErr: true},
		{name: "not json", text: "here is your deck", wantErr: true},
		{name: "object not array", text: `{"title":"A","content":["x"]}`, wantErr: true},
		{name: "empty array", text: `[]`, wantErr: true},
		{name: "empty content", text: `[{"title":"A","content":[]}]`, wantErr: true},
		{name: "content not strings", text: `[{"title":"A","content":[1,2]}]`, wantErr: true},
		{name: "missing title", text: `[{"content":["x"]}]`, wantErr: true},
		{name: "empty title", text: `[{"title":"","content":["x"]}]`, wantErr: true},
		{name: "empty bullet", text: `[{"title":"A","content":["x",""]}]`, wantErr: true},
		{name: "notes wrong type", text: `[{"title":"A","content":["x"],"speakerNotes":3}]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slides, err := ParseSlides(tt.text)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrCodeSchema))
				return
			}
			require.NoError(t, err)
			assert.Len(t, slides, tt.wantLen)
		})
	}
}

func TestClassifyHTTP(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"unauthorized", http.StatusUnauthorized, `{}`, errors.ErrCodeCredential},
		{"forbidden", http.StatusForbidden, `{"error":{"message":"denied"}}`, errors.ErrCodeCredential},
		{"invalid key reason", http.StatusBadRequest, `{"error":{"message":"bad","details":[{"reason":"API_KEY_INVALID"}]}}`, errors.ErrCodeCredential},
		{"key in message", http.StatusBadRequest, `{"error":{"message":"API key expired"}}`, errors.ErrCodeCredential},
		{"payload too large", http.StatusRequestEntityTooLarge, `too big`, errors.ErrCodeInvalidData},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"Request contains an invalid argument."}}`, errors.ErrCodeInvalidData},
		{"rate limited", http.StatusTooManyRequests, `{}`, errors.ErrCodeUnavailable},
		{"unavailable", http.StatusServiceUnavailable, `{}`, errors.ErrCodeUnavailable},
		{"not found", http.StatusNotFound, `{}`, errors.ErrCodeGeminiAPI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyHTTP(tt.status, []byte(tt.body)).Code)
		})
	}
}

func TestClassifySDKError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"googleapi forbidden", &googleapi.Error{Code: http.StatusForbidden, Message: "denied"}, errors.ErrCodeCredential},
		{"googleapi unavailable", &googleapi.Error{Code: http.StatusServiceUnavailable}, errors.ErrCodeUnavailable},
		{"unauthenticated", status.Error(codes.Unauthenticated, "missing credentials"), errors.ErrCodeCredential},
		{"permission denied", status.Error(codes.PermissionDenied, "no access"), errors.ErrCodeCredential},
		{"invalid key", status.Error(codes.InvalidArgument, "API key not valid. Please pass a valid API key."), errors.ErrCodeCredential},
		{"invalid argument", status.Error(codes.InvalidArgument, "request too large"), errors.ErrCodeInvalidData},
		{"unavailable", status.Error(codes.Unavailable, "backend down"), errors.ErrCodeUnavailable},
		{"exhausted", status.Error(codes.ResourceExhausted, "quota"), errors.ErrCodeUnavailable},
		{"plain error", stderrors.New("boom"), errors.ErrCodeGeminiAPI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifySDKError(tt.err)
			assert.Equal(t, tt.want, got.Code)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

// scriptedTransport fails each model with the SDK error it is given.
type scriptedTransport struct {
	mu     sync.Mutex
	errs   map[string]error
	models []string
}

func (s *scriptedTransport) GenerateOutline(_ context.Context, model string, _ *document.Document, _ string) (string, error) {
	s.mu.Lock()
	s.models = append(s.models, model)
	s.mu.Unlock()
	if err, ok := s.errs[model]; ok {
		return "", classifySDKError(err)
	}
	return threeSlides, nil
}

func TestGenerateOutlineClassifiesSDKFailures(t *testing.T) {
	tests := []struct {
		name string
		errs map[string]error
		want string
	}{
		{
			name: "primary credential failure surfaced",
			errs: map[string]error{
				primary:  status.Error(codes.Unauthenticated, "bad key"),
				fallback: status.Error(codes.Unavailable, "down"),
			},
			want: errors.ErrCodeCredential,
		},
		{
			name: "last failure surfaced otherwise",
			errs: map[string]error{
				primary:  status.Error(codes.Unavailable, "down"),
				fallback: status.Error(codes.InvalidArgument, "request too large"),
			},
			want: errors.ErrCodeInvalidData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := &scriptedTransport{errs: tt.errs}
			svc := New("test-key", []string{primary, fallback}, transport, logger.NewNop())

			_, err := svc.GenerateOutline(context.Background(), testDoc, "")
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrCodeGeneration))
			assert.True(t, errors.Is(err, tt.want))
			assert.Equal(t, []string{primary, fallback}, transport.models)
		})
	}

	t.Run("fallback success hides primary failure", func(t *testing.T) {
		transport := &scriptedTransport{errs: map[string]error{
			primary: status.Error(codes.PermissionDenied, "denied"),
		}}
		svc := New("test-key", []string{primary, fallback}, transport, logger.NewNop())

		slides, err := svc.GenerateOutline(context.Background(), testDoc, "")
		require.NoError(t, err)
		assert.Len(t, slides, 3)
	})
}
