package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
)

// Request is a decoded GraphQL request, shared by the HTTP and WebSocket
// transports.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

// httpError is a request rejected before GraphQL processing. It is answered
// with a plain-text body.
type httpError struct {
	status  int
	message string
}

func (e *httpError) Error() string { return e.message }

const (
	msgNotJSONContent = "Posted content must be of type application/json"
	msgInvalidJSON    = "Request body is not a valid JSON"
	msgNotObject      = "Valid request body should be a JSON object"
	msgBodyTooLarge   = "Request body too large"
	msgBadVariables   = "Variables are invalid JSON"
)

func parseRequest(r *http.Request, maxBody int64) (Request, *httpError) {
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		req := Request{Query: q.Get("query"), OperationName: q.Get("operationName")}
		if v := q.Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &req.Variables); err != nil {
				return Request{}, &httpError{http.StatusBadRequest, msgBadVariables}
			}
		}
		return req, nil
	}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return Request{}, &httpError{http.StatusBadRequest, msgNotJSONContent}
	}

	body := r.Body
	defer body.Close()
	reader := io.Reader(body)
	if maxBody > 0 {
		reader = http.MaxBytesReader(nil, body, maxBody)
	}
	raw, err := io.ReadAll(reader)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return Request{}, &httpError{http.StatusRequestEntityTooLarge, msgBodyTooLarge}
		}
		return Request{}, &httpError{http.StatusBadRequest, msgInvalidJSON}
	}

	return decodeRequest(raw)
}

// DecodeRequest decodes a JSON request object. Non-string queries decode as
// an empty query; a variables member that is not an object is rejected.
func DecodeRequest(raw []byte) (Request, error) {
	req, herr := decodeRequest(raw)
	if herr != nil {
		return Request{}, herr
	}
	return req, nil
}

func decodeRequest(raw []byte) (Request, *httpError) {
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Request{}, &httpError{http.StatusBadRequest, msgInvalidJSON}
	}
	obj, ok := payload.(map[string]any)
	if !ok {
		return Request{}, &httpError{http.StatusBadRequest, msgNotObject}
	}

	var req Request
	req.Query, _ = obj["query"].(string)
	req.OperationName, _ = obj["operationName"].(string)
	switch v := obj["variables"].(type) {
	case nil:
	case map[string]any:
		req.Variables = v
	default:
		return Request{}, &httpError{http.StatusBadRequest, msgBadVariables}
	}
	req.Extensions, _ = obj["extensions"].(map[string]any)
	return req, nil
}
