// Package httputil writes the api-result envelopes shared by all
// operations. Callers always receive an envelope: success carries the
// created values plus auxiliary outputs, errors carry message, code, and
// diagnostic extras. Operation-level errors keep HTTP 200, matching the
// host dispatch convention; transport-level failures use real statuses.
package httputil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"provegapi/pkg/apierrors"
)

// Result is the success envelope.
type Result struct {
	IsError int            `json:"is_error"`
	Values  any            `json:"values"`
	Extra   map[string]any `json:"extra,omitempty"`
	Request any            `json:"request,omitempty"`
}

// ErrorResult is the error envelope.
type ErrorResult struct {
	IsError      int            `json:"is_error"`
	ErrorMessage string         `json:"error_message"`
	ErrorCode    string         `json:"error_code"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// WriteSuccess writes a success envelope. The original request is echoed
// so callers can correlate asynchronous submissions.
func WriteSuccess(w http.ResponseWriter, values any, extra map[string]any, request any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(Result{
		Values:  values,
		Extra:   extra,
		Request: request,
	})
}

// WriteError writes an error envelope with HTTP 200. Any non-API error is
// coerced to internal_error first so no unclassified fault leaks out raw.
func WriteError(w http.ResponseWriter, err error) {
	apiErr := apierrors.From(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(ErrorResult{
		IsError:      1,
		ErrorMessage: apiErr.Message,
		ErrorCode:    string(apiErr.Code),
		Extra:        apiErr.Extra,
	})
}

// Envelope converts an error into the ErrorResult shape without writing
// it, for embedding inside another envelope's extras (the failure-audit
// notices carry the secondary error this way).
func Envelope(err error) ErrorResult {
	apiErr := apierrors.From(err)
	return ErrorResult{
		IsError:      1,
		ErrorMessage: apiErr.Message,
		ErrorCode:    string(apiErr.Code),
		Extra:        apiErr.Extra,
	}
}

// BoolFlag accepts JSON true/false, 0/1, and their string forms.
// Long-standing callers send flag parameters in all three shapes.
type BoolFlag bool

func (b *BoolFlag) UnmarshalJSON(data []byte) error {
	switch strings.Trim(string(bytes.TrimSpace(data)), `"`) {
	case "true", "1":
		*b = true
		return nil
	case "false", "0":
		*b = false
		return nil
	}
	return apierrors.New(apierrors.CodeInvalidFormat,
		fmt.Sprintf("%s is not a boolean value", data))
}
