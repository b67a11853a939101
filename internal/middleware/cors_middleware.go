package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	corsAllowMethods = "GET,POST,PUT,DELETE,OPTIONS"
	// Last-Event-ID is sent by EventSource clients when the timer stream reconnects.
	corsAllowHeaders  = "Authorization,Content-Type,Last-Event-ID"
	corsExposeHeaders = "Content-Disposition"
	corsMaxAge        = "86400"
)

// originPolicy matches request origins against exact entries, "*" and
// single-level wildcard hosts such as "https://*.example.com".
type originPolicy struct {
	any       bool
	exact     map[string]struct{}
	wildcards []wildcardOrigin
}

type wildcardOrigin struct {
	scheme string // "https://"
	suffix string // ".example.com"
}

func newOriginPolicy(origins []string) originPolicy {
	policy := originPolicy{exact: make(map[string]struct{}, len(origins))}
	for _, origin := range origins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		switch {
		case origin == "":
		case origin == "*":
			policy.any = true
		case strings.Contains(origin, "://*."):
			scheme, suffix, _ := strings.Cut(origin, "://*")
			policy.wildcards = append(policy.wildcards, wildcardOrigin{scheme: scheme + "://", suffix: suffix})
		default:
			policy.exact[origin] = struct{}{}
		}
	}
	return policy
}

func (p originPolicy) allows(origin string) bool {
	if _, ok := p.exact[origin]; ok {
		return true
	}
	for _, w := range p.wildcards {
		host, ok := strings.CutPrefix(origin, w.scheme)
		if !ok {
			continue
		}
		label, ok := strings.CutSuffix(host, w.suffix)
		if ok && label != "" && !strings.ContainsAny(label, "./:") {
			return true
		}
	}
	return false
}

func CORS(allowedOrigins []string) gin.HandlerFunc {
	policy := newOriginPolicy(allowedOrigins)

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		c.Writer.Header().Add("Vary", "Origin")

		switch {
		case origin == "":
		case policy.any:
			c.Header("Access-Control-Allow-Origin", "*")
		case policy.allows(origin):
			c.Header("Access-Control-Allow-Origin", origin)
		}
		c.Header("Access-Control-Expose-Headers", corsExposeHeaders)

		if c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			c.Header("Access-Control-Allow-Methods", corsAllowMethods)
			c.Header("Access-Control-Allow-Headers", corsAllowHeaders)
			c.Header("Access-Control-Max-Age", corsMaxAge)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
