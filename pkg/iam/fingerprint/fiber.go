package fingerprint

import "github.com/gofiber/fiber/v2"

// FromFiber extracts the request context from a fiber request. The client
// IP honors fiber's configured ProxyHeader.
func FromFiber(c *fiber.Ctx) RequestContext {
	return RequestContext{
		UserAgent:      c.Get(fiber.HeaderUserAgent),
		IP:             c.IP(),
		AcceptLanguage: c.Get(fiber.HeaderAcceptLanguage),
		Referer:        c.Get(fiber.HeaderReferer),
	}
}

// IsLoopback reports whether the request came from the local machine
func IsLoopback(rc RequestContext) bool {
	switch rc.IP {
	case "127.0.0.1", "::1":
		return true
	}
	return false
}
