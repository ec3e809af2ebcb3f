// Package pagination implements page-number pagination for list endpoints:
// ?page=N&limit=M, answered with {count, next, previous, results}.
package pagination

import (
	"math"
	"net/url"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var (
	mu           sync.RWMutex
	defaultLimit = 6
	maxLimit     = 100
)

// Configure sets the default and maximum page sizes.
func Configure(defLimit, max int) {
	mu.Lock()
	defer mu.Unlock()
	if defLimit > 0 {
		defaultLimit = defLimit
	}
	if max >= defaultLimit {
		maxLimit = max
	}
}

// Params is a requested page.
type Params struct {
	Page  int
	Limit int
}

// Offset returns the number of rows to skip.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Apply adds OFFSET and LIMIT to a query.
func (p Params) Apply(db *gorm.DB) *gorm.DB {
	return db.Offset(p.Offset()).Limit(p.Limit)
}

// FromContext reads page and limit, falling back to defaults on missing or
// malformed values and clamping limit to the maximum.
func FromContext(c *gin.Context) Params {
	mu.RLock()
	def, max := defaultLimit, maxLimit
	mu.RUnlock()

	p := Params{Page: 1, Limit: def}
	if n, err := strconv.Atoi(c.Query("page")); err == nil && n > 0 {
		p.Page = n
	}
	if n, err := strconv.Atoi(c.Query("limit")); err == nil && n > 0 {
		p.Limit = n
	}
	if p.Limit > max {
		p.Limit = max
	}
	// Page*Limit must fit in an int.
	if last := math.MaxInt / p.Limit; p.Page > last {
		p.Page = last
	}
	return p
}

// Page is the paginated response envelope.
type Page[T any] struct {
	Count    int64   `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// NewPage builds the envelope with absolute next/previous links derived
// from the current request URL.
func NewPage[T any](c *gin.Context, p Params, count int64, results []T) Page[T] {
	if results == nil {
		results = []T{}
	}
	page := Page[T]{Count: count, Results: results}

	if int64(p.Page*p.Limit) < count {
		next := pageURL(c, p.Page+1)
		page.Next = &next
	}
	if p.Page > 1 {
		prev := pageURL(c, p.Page-1)
		page.Previous = &prev
	}
	return page
}

func pageURL(c *gin.Context, page int) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if fwd := c.GetHeader("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}

	q := c.Request.URL.Query()
	if page <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}

	u := url.URL{
		Scheme:   scheme,
		Host:     c.Request.Host,
		Path:     c.Request.URL.Path,
		RawQuery: q.Encode(),
	}
	return u.String()
}
