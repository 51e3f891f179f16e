package engine

import (
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
)

const maxDecodedBodyBytes = 16 << 20 // scan payloads embed raw tool output

// DecodeResponseBody reads a possibly gzip-compressed response body up to
// the safety cap. Oversized bodies are reported, not truncated, since a
// truncated JSON document cannot be decoded anyway.
func DecodeResponseBody(resp *http.Response) ([]byte, error) {
	var reader io.ReadCloser
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		r, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		reader = r
		defer reader.Close()
	default:
		reader = resp.Body
	}

	limited := io.LimitReader(reader, maxDecodedBodyBytes+1)
	bodyBytes, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(bodyBytes) > maxDecodedBodyBytes {
		return nil, fmt.Errorf("response body exceeds %d bytes", maxDecodedBodyBytes)
	}
	return bodyBytes, nil
}
