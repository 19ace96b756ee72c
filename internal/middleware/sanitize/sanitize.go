package sanitize

import (
	"bytes"
	"encoding/json"
	"html"
	"io"
	"net/http"
	"strings"

	resp "account_service/internal/lib/api/response"

	"github.com/go-chi/render"
	"github.com/microcosm-cc/bluemonday"
)

const maxBody = 1 << 20

// Input strips markup from the top-level string fields of JSON request
// bodies. Fields named in skip are passed through untouched.
func Input(skip ...string) func(http.Handler) http.Handler {
	policy := bluemonday.StrictPolicy()

	skipped := make(map[string]struct{}, len(skip))
	for _, k := range skip {
		skipped[k] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !hasBody(r) {
				next.ServeHTTP(w, r)
				return
			}

			buf, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
			if err != nil {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("Invalid body"))
				return
			}

			var body map[string]any
			if err := json.Unmarshal(buf, &body); err != nil {
				// not an object; let the handler report it
				restore(r, buf)
				next.ServeHTTP(w, r)
				return
			}

			for k, v := range body {
				if _, ok := skipped[k]; ok {
					continue
				}
				if str, ok := v.(string); ok {
					body[k] = html.UnescapeString(policy.Sanitize(str))
				}
			}

			clean, err := json.Marshal(body)
			if err != nil {
				restore(r, buf)
				next.ServeHTTP(w, r)
				return
			}

			restore(r, clean)
			next.ServeHTTP(w, r)
		})
	}
}

func hasBody(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return false
	}

	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") || r.Header.Get("Content-Type") == ""
}

func restore(r *http.Request, b []byte) {
	r.Body = io.NopCloser(bytes.NewReader(b))
	r.ContentLength = int64(len(b))
}
