package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/journey-reconciler/pkg/middleware/requestid"
)

var (
	allowHeaders = strings.Join([]string{"Content-Type", requestid.Header}, ", ")
	allowMethods = strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodOptions}, ", ")
)

// policy decides which browser origins may call the API.
type policy struct {
	any     bool
	origins map[string]bool
}

func newPolicy(allowed []string) policy {
	p := policy{any: len(allowed) == 0, origins: make(map[string]bool, len(allowed))}
	for _, origin := range allowed {
		if origin == "*" {
			p.any = true
			continue
		}
		p.origins[normalize(origin)] = true
	}
	return p
}

func (p policy) allows(origin string) bool {
	return p.any || p.origins[normalize(origin)]
}

func normalize(origin string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
}

// New returns the CORS middleware. An empty list or "*" allows every origin.
// Preflights from other origins are refused with 403.
func New(allowedOrigins []string) gin.HandlerFunc {
	p := newPolicy(allowedOrigins)

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Add("Vary", "Origin")

		origin := c.GetHeader("Origin")
		switch {
		case origin == "":
			if p.any {
				h.Set("Access-Control-Allow-Origin", "*")
			}
		case p.allows(origin):
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Expose-Headers", requestid.Header)
		case c.Request.Method == http.MethodOptions:
			c.AbortWithStatus(http.StatusForbidden)
			return
		}

		if c.Request.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Headers", allowHeaders)
			h.Set("Access-Control-Allow-Methods", allowMethods)
			h.Set("Access-Control-Max-Age", "600")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
