package llm

import (
	"net"
	"net/http"
	"time"

	"thesearch/internal/infra/config"
)

// Default connection pool settings: few hosts, high concurrency,
// long-lived connections.
const (
	defaultMaxIdleConns        = 32
	defaultMaxIdleConnsPerHost = 32
	defaultMaxConnsPerHost     = 64
)

// NewPooledTransport builds the shared transport for one provider. connect
// bounds dialing, read bounds the wait for response headers and pool bounds
// how long an idle keep-alive connection is kept. net/http has no write
// timeout on the client side, so t.Write is not used.
func NewPooledTransport(t config.TimeoutProfile, pool config.PoolConfig) *http.Transport {
	if t.Connect <= 0 {
		t.Connect = config.DefaultTimeouts.Connect
	}
	if t.Read <= 0 {
		t.Read = config.DefaultTimeouts.Read
	}
	if t.Pool <= 0 {
		t.Pool = config.DefaultTimeouts.Pool
	}

	maxIdle := pool.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = defaultMaxIdleConns
	}
	maxIdlePerHost := pool.MaxIdleConnsPerHost
	if maxIdlePerHost <= 0 {
		maxIdlePerHost = defaultMaxIdleConnsPerHost
	}
	maxConnsPerHost := pool.MaxConnsPerHost
	if maxConnsPerHost <= 0 {
		maxConnsPerHost = defaultMaxConnsPerHost
	}

	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   t.Connect,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   t.Connect,
		ResponseHeaderTimeout: t.Read,
		MaxIdleConns:          maxIdle,
		MaxIdleConnsPerHost:   maxIdlePerHost,
		MaxConnsPerHost:       maxConnsPerHost,
		IdleConnTimeout:       t.Pool,
		ForceAttemptHTTP2:     true,
	}
}

// NewHTTPClient returns a client safe for concurrent use by every request
// handler. It sets no overall Timeout: answer streams may legitimately run
// for minutes, so callers bound each call with their context.
func NewHTTPClient(cfg config.ProviderConfig) *http.Client {
	return &http.Client{Transport: NewPooledTransport(cfg.Timeouts, cfg.Pool)}
}
