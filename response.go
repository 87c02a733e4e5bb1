package sprada

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/Khatrip009/adminsprada-sub000/internal/flows"
)

// ErrNoBody is returned by Result.Decode when the response had no body.
var ErrNoBody = errors.New("response has no body")

// Result is a successful response.
type Result struct {
	Status int
	Header http.Header
	// Data is the decoded JSON value for JSON responses, the body text for other
	// content types, and nil for 204, empty or unparsable bodies.
	Data any

	raw []byte
}

func newResult(resp *flows.Response) *Result {
	r := &Result{
		Status: resp.Status,
		Header: resp.Header,
	}
	if resp.Status == http.StatusNoContent {
		return r
	}
	r.raw = resp.Body
	r.Data = parseBody(resp, false)
	return r
}

// Decode unmarshals the JSON body into v.
func (r *Result) Decode(v any) error {
	if r == nil || len(bytes.TrimSpace(r.raw)) == 0 {
		return ErrNoBody
	}
	return json.Unmarshal(r.raw, v)
}

// Bytes returns the raw body.
func (r *Result) Bytes() []byte {
	if r == nil {
		return nil
	}
	return r.raw
}

// Text returns the raw body as a string.
func (r *Result) Text() string {
	return string(r.Bytes())
}

// errorBody is the RawBody of a failed response: decoded JSON when possible, otherwise
// the text. Only an empty body gives nil.
func errorBody(resp *flows.Response) any {
	if resp == nil {
		return nil
	}
	return parseBody(resp, true)
}

func parseBody(resp *flows.Response, keepText bool) any {
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if isJSON(resp.Header.Get("Content-Type")) {
		var v any
		if err := json.Unmarshal(resp.Body, &v); err == nil {
			return v
		}
		if !keepText {
			return nil
		}
	}
	return string(resp.Body)
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
