package biz

import (
	"github.com/vearne/netvine/config"
	"golang.org/x/time/rate"
)

// NewRateLimit returns nil when rendering is unlimited.
func NewRateLimit(settings *config.AppSettings) Limiter {
	if settings.RenderQPS > 0 {
		value := settings.RenderQPS
		return rate.NewLimiter(rate.Limit(value), value)
	}
	return nil
}
