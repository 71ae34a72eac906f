package httpapp

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/vheinola/utuputki/internal/jukebox"
)

type clientKey struct{}

// clientIdentity resolves who is making the request. The peer address is the
// identity, except when the peer is a configured reverse proxy; then the
// first hop in X-Forwarded-For is used instead. Every request also counts as
// client activity for the skip threshold.
func clientIdentity(jb *jukebox.Jukebox, forwarders map[string]struct{}) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := peerHost(r.RemoteAddr)
			if _, ok := forwarders[client]; ok {
				if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
					first, _, _ := strings.Cut(xff, ",")
					if first = strings.TrimSpace(first); first != "" {
						client = first
					}
				}
			}

			jb.TouchClient(client)

			ctx := context.WithValue(r.Context(), clientKey{}, client)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func clientFromContext(ctx context.Context) string {
	client, _ := ctx.Value(clientKey{}).(string)
	return client
}

func peerHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
