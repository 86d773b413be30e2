package middleware

// HTTP header constants.
const (
	HeaderContentType        = "Content-Type"
	HeaderRetryAfter         = "Retry-After"
	HeaderXRequestID         = "X-Request-ID"
	HeaderXForwardedFor      = "X-Forwarded-For"
	HeaderXRateLimitLimit    = "X-RateLimit-Limit"
	HeaderXRateLimitRemain   = "X-RateLimit-Remaining"
	HeaderWWWAuthenticate    = "WWW-Authenticate"
	HeaderCacheControl       = "Cache-Control"
	HeaderXContentTypeOption = "X-Content-Type-Options"
)

// ContentTypeJSON is the JSON content type.
const ContentTypeJSON = "application/json"
