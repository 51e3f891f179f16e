package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/MOYARU/smarttest/internal/report"
)

type Kind string

const (
	KindNetwork     Kind = "network"
	KindHTTP        Kind = "http"
	KindApplication Kind = "application"
	KindDecode      Kind = "decode"
)

const defaultUploadFailure = "upload failed"

// Failure is the only error type returned by Client. Message is the
// display text and is what Error returns.
type Failure struct {
	Op         string
	Tool       report.Tool
	Kind       Kind
	Status     int
	StatusText string
	Message    string
	Err        error
}

func (f *Failure) Error() string {
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func networkFailure(op string, tool report.Tool, err error) *Failure {
	return &Failure{Op: op, Tool: tool, Kind: KindNetwork, Message: err.Error(), Err: err}
}

// httpFailure applies the non-2xx precedence: body error, body message,
// then a synthesized status line.
func httpFailure(op string, tool report.Tool, resp *http.Response, body []byte) *Failure {
	text := statusText(resp)
	msg := fmt.Sprintf("HTTP %d: %s", resp.StatusCode, text)
	fields := errorFields(body)
	if fields.errorText != "" {
		msg = fields.errorText
	} else if fields.message != "" {
		msg = fields.message
	}
	return &Failure{
		Op:         op,
		Tool:       tool,
		Kind:       KindHTTP,
		Status:     resp.StatusCode,
		StatusText: text,
		Message:    msg,
	}
}

// applicationFailure handles a 2xx body that reports success == false.
func applicationFailure(op string, tool report.Tool, status int, errText string) *Failure {
	msg := strings.TrimSpace(errText)
	if msg == "" {
		msg = defaultFailureFor(tool)
	}
	return &Failure{Op: op, Tool: tool, Kind: KindApplication, Status: status, Message: msg}
}

func decodeFailure(op string, tool report.Tool, status int, err error) *Failure {
	return &Failure{
		Op:      op,
		Tool:    tool,
		Kind:    KindDecode,
		Status:  status,
		Message: fmt.Sprintf("%s: invalid response body: %v", op, err),
		Err:     err,
	}
}

func defaultFailureFor(tool report.Tool) string {
	if tool == "" {
		return defaultUploadFailure
	}
	return tool.DefaultFailure()
}

func statusText(resp *http.Response) string {
	if text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode))); text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

type bodyErrorFields struct {
	errorText string
	message   string
}

// errorFields extracts string-valued error/message keys. Bodies that are
// not JSON objects yield nothing.
func errorFields(body []byte) bodyErrorFields {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return bodyErrorFields{}
	}
	var out bodyErrorFields
	if s, ok := raw["error"].(string); ok {
		out.errorText = strings.TrimSpace(s)
	}
	if s, ok := raw["message"].(string); ok {
		out.message = strings.TrimSpace(s)
	}
	return out
}
