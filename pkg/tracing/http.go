package tracing

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// untracedPaths are polled by health checks and metric scrapers.
var untracedPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// GinMiddleware traces dashboard and push requests, skipping health and metrics endpoints.
func GinMiddleware(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName,
		otelgin.WithFilter(func(r *http.Request) bool {
			return !untracedPaths[r.URL.Path]
		}),
	)
}
