package shared

import (
	"net/http"
	"strconv"
)

// Page describes list pagination parameters.
type Page struct {
	Limit  int
	Offset int
}

// PageFromRequest parses limit/offset query parameters with sane bounds.
func PageFromRequest(r *http.Request, defaultLimit int) Page {
	p := Page{Limit: defaultLimit}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			p.Limit = v
		}
	}
	if p.Limit > 500 {
		p.Limit = 500
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			p.Offset = v
		}
	}
	return p
}
