package metadata

import (
	"net"
	"net/http"
	"strings"

	"healthlink/pkg/requestcontext"
)

const unknownIP = "unknown"

// ClientMetadata stores the caller's address and User-Agent on the request
// context. Auth rejection logs read the address from there.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(), ClientIPFromRequest(r), r.Header.Get("User-Agent"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIPFromRequest prefers the left-most X-Forwarded-For hop, then
// X-Real-IP, then the socket peer.
func ClientIPFromRequest(r *http.Request) string {
	if hop := firstHop(r.Header.Get("X-Forwarded-For")); hop != "" {
		return hop
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return peerHost(r.RemoteAddr)
}

func firstHop(forwarded string) string {
	hop, _, _ := strings.Cut(forwarded, ",")
	return strings.TrimSpace(hop)
}

func peerHost(remote string) string {
	if remote == "" {
		return unknownIP
	}
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return remote
	}
	return host
}
