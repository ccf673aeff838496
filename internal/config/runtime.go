package config

import (
	"fmt"
	"net/url"
	"strings"

	"attendance/internal/remote"
	"attendance/internal/store"
)

// Runtime serves remote options at call time. A user override of the
// endpoint lives in the store and wins over the configured one.
type Runtime struct {
	cfg   Config
	store *store.Store
}

var _ remote.Settings = (*Runtime)(nil)

// NewRuntime binds cfg to the override kept in st.
func NewRuntime(cfg Config, st *store.Store) *Runtime {
	return &Runtime{cfg: cfg, store: st}
}

// RemoteOptions implements remote.Settings.
func (r *Runtime) RemoteOptions() remote.Options {
	endpoint, _ := r.Endpoint()
	return remote.Options{
		Endpoint:      endpoint,
		Timeout:       r.cfg.Timeout,
		RetryAttempts: r.cfg.RetryAttempts,
		RetryDelay:    r.cfg.RetryDelay,
	}
}

// Endpoint returns the effective endpoint and whether it is an override.
func (r *Runtime) Endpoint() (string, bool) {
	if v := strings.TrimSpace(r.store.GetString(store.EndpointKey)); v != "" {
		return v, true
	}
	return r.cfg.Endpoint, false
}

// SetEndpoint stores an override. The HTTP transport needs an absolute
// http(s) URL; the script transport also accepts a bare script id.
func (r *Runtime) SetEndpoint(endpoint string) error {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return fmt.Errorf("endpoint is empty")
	}
	if r.cfg.Transport == TransportHTTP || strings.Contains(endpoint, "://") {
		u, err := url.Parse(endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid endpoint URL %q", endpoint)
		}
	}
	return r.store.PutString(store.EndpointKey, endpoint)
}

// ResetEndpoint drops the override.
func (r *Runtime) ResetEndpoint() error {
	return r.store.Delete(store.EndpointKey)
}
