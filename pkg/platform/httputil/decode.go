package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	dErrors "starkshield/pkg/domain-errors"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 1 << 20

// DecodeJSON decodes a JSON request body into T. On failure it writes a
// bad_request response and returns false.
//
// Usage:
//
//	doc, ok := httputil.DecodeJSON[credential.Document](w, r)
//	if !ok {
//	    return
//	}
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request) (*T, bool) {
	var req T
	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		msg := fmt.Sprintf("invalid request body: %v", err)
		if errors.Is(err, io.EOF) {
			msg = "request body is empty"
		}
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, msg))
		return nil, false
	}
	return &req, true
}
