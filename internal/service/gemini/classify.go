package gemini

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ChaseRain/pdf2deck/pkg/errors"
)

// apiErrorBody is the error envelope returned by the Generative Language API.
type apiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Reason string `json:"reason"`
		} `json:"details"`
	} `json:"error"`
}

// classifyHTTP turns a non-200 response into a coded error so that callers
// never have to match on message text.
func classifyHTTP(statusCode int, body []byte) *errors.AppError {
	var parsed apiErrorBody
	_ = json.Unmarshal(body, &parsed)

	message := parsed.Error.Message
	if message == "" {
		message = strings.TrimSpace(string(body))
	}
	reason := ""
	for _, d := range parsed.Error.Details {
		if d.Reason != "" {
			reason = d.Reason
			break
		}
	}

	msg := fmt.Sprintf("gemini API returned %d: %s", statusCode, message)
	switch {
	case statusCode == http.StatusUnauthorized,
		statusCode == http.StatusForbidden,
		reason == "API_KEY_INVALID",
		looksLikeCredential(message):
		return errors.New(errors.ErrCodeCredential, msg)
	case statusCode == http.StatusRequestEntityTooLarge,
		statusCode == http.StatusBadRequest:
		return errors.New(errors.ErrCodeInvalidData, msg)
	case statusCode == http.StatusTooManyRequests,
		statusCode >= 500:
		return errors.New(errors.ErrCodeUnavailable, msg)
	default:
		return errors.New(errors.ErrCodeGeminiAPI, msg)
	}
}

// classifySDKError maps errors from the genai client the same way classifyHTTP
// maps raw responses.
func classifySDKError(err error) *errors.AppError {
	var gerr *googleapi.Error
	if stderrors.As(err, &gerr) {
		appErr := classifyHTTP(gerr.Code, []byte(gerr.Body))
		appErr.Cause = err
		return appErr
	}

	code := errors.ErrCodeGeminiAPI
	switch status.Code(err) {
	case codes.Unauthenticated, codes.PermissionDenied:
		code = errors.ErrCodeCredential
	case codes.InvalidArgument:
		code = errors.ErrCodeInvalidData
		if looksLikeCredential(err.Error()) {
			code = errors.ErrCodeCredential
		}
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Internal:
		code = errors.ErrCodeUnavailable
	default:
		if looksLikeCredential(err.Error()) {
			code = errors.ErrCodeCredential
		}
	}
	return errors.Wrap(err, code, "gemini request failed")
}

func looksLikeCredential(message string) bool {
	m := strings.ToLower(message)
	return strings.Contains(m, "api key") ||
		strings.Contains(m, "api_key") ||
		strings.Contains(m, "unauthenticated") ||
		strings.Contains(m, "permission denied")
}
