package listutil

import (
	"net/url"
	"strconv"

	"shepherd/internal/domain/fault"
)

const (
	// DefaultLimit is the page size when the request names none.
	DefaultLimit = 50
	// MaxLimit caps a single page.
	MaxLimit = 200
)

// Page carries limit/offset paging parsed from a request.
type Page struct {
	Limit  int
	Offset int
}

// ParsePage extracts limit and offset from URL query values.
// PRE: none
// POST: returns a Page with 1 <= Limit <= MaxLimit and Offset >= 0, or a
// ValidationError naming the offending parameter
func ParsePage(q url.Values) (Page, error) {
	p := Page{Limit: DefaultLimit}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > MaxLimit {
			return Page{}, fault.Validation("limit", "must be between 1 and "+strconv.Itoa(MaxLimit))
		}
		p.Limit = n
	}
	if s := q.Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return Page{}, fault.Validation("offset", "must be a non-negative integer")
		}
		p.Offset = n
	}
	return p, nil
}
