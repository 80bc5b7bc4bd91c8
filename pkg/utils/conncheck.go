package utils

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"slices"
	"time"

	"github.com/mpapenbr/telemetry-replay/log"
)

const retryDelay = 200 * time.Millisecond

// WaitForTCP dials addr until a connection can be established.
// It gives up after timeout or when ctx is done.
func WaitForTCP(ctx context.Context, addr string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	start := time.Now()
	l := log.Default().Named("conncheck").With(log.String("addr", addr))
	l.Debug("waiting for tcp connection", log.Duration("timeout", timeout))

	ticker := time.NewTicker(retryDelay)
	defer ticker.Stop()
	var d net.Dialer
	for attempt := 1; ; attempt++ {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			conn.Close()
			l.Debug("tcp connection established",
				log.Int("attempts", attempt),
				log.Duration("duration", time.Since(start)))
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s not reachable after %d attempts: %w", addr, attempt, ctx.Err())
		case <-ticker.C:
		}
	}
}

// ExtractFromDBURL returns host:port of a postgres connection url.
// An empty string is returned for urls of other schemes.
func ExtractFromDBURL(dbURL string) string {
	return hostPort(dbURL, "5432", "postgres", "postgresql")
}

// ExtractFromNatsURL returns host:port of a nats server url
func ExtractFromNatsURL(natsURL string) string {
	return hostPort(natsURL, "4222", "nats", "tls")
}

func hostPort(raw, defaultPort string, schemes ...string) string {
	u, err := url.Parse(raw)
	if err != nil || !slices.Contains(schemes, u.Scheme) || u.Hostname() == "" {
		return ""
	}
	port := u.Port()
	if port == "" {
		port = defaultPort
	}
	return net.JoinHostPort(u.Hostname(), port)
}
