package util

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// DataURL encodes data as a directly displayable data: URL.
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURL decodes a base64 data: URL into its mime type and bytes.
func ParseDataURL(url string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("data URL has no payload")
	}
	mimeType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, fmt.Errorf("data URL is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, err
	}
	return mimeType, data, nil
}

// StripDataURLPrefix turns "data:application/pdf;base64,xxxx" into "xxxx".
// Plain base64 input is returned unchanged.
func StripDataURLPrefix(s string) string {
	if strings.HasPrefix(s, "data:") {
		if _, payload, ok := strings.Cut(s, ","); ok {
			return payload
		}
	}
	return s
}

// TimestampedName returns "<prefix>-<epoch-millis>.<ext>".
func TimestampedName(prefix, ext string, at time.Time) string {
	return fmt.Sprintf("%s-%d.%s", prefix, at.UnixMilli(), ext)
}
