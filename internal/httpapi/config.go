package httpapi

import "time"

// maxBodyBytes controls the maximum allowed request body size for JSON endpoints.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// keepaliveInterval is how often an idle /progress stream receives a comment frame.
var keepaliveInterval = 30 * time.Second

// SetKeepaliveInterval sets the SSE keepalive period (non-positive restores 30s).
func SetKeepaliveInterval(d time.Duration) {
	if d <= 0 {
		d = 30 * time.Second
	}
	keepaliveInterval = d
}

// logTail is the number of entries /logs returns when no limit is given.
var logTail = 100

// SetLogTail sets the default /logs limit (non-positive restores 100).
func SetLogTail(n int) {
	if n <= 0 {
		n = 100
	}
	logTail = n
}

// CORS configuration. The surface is open by default.
var (
	corsEnabled        = true
	corsAllowedOrigins = []string{"*"}
	corsAllowedMethods = []string{"GET", "POST", "OPTIONS"}
	corsAllowedHeaders = []string{"*"}
)

// SetCORSOptions configures CORS behavior for the HTTP server. Empty slices
// keep the defaults.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	if len(origins) > 0 {
		corsAllowedOrigins = append([]string(nil), origins...)
	}
	if len(methods) > 0 {
		corsAllowedMethods = append([]string(nil), methods...)
	}
	if len(headers) > 0 {
		corsAllowedHeaders = append([]string(nil), headers...)
	}
}
