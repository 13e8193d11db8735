package directory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/IMJLA/go-adsi/pkg/identity"
)

// maxPoolSize caps the connection channel so a misconfigured pool cannot
// exhaust server connection slots or client sockets.
const maxPoolSize = 100

// reauthInterval is the maximum age of a bind before a pooled connection
// is re-authenticated on checkout.
const reauthInterval = 5 * time.Minute

// PoolStats describes the state of a connection pool.
type PoolStats struct {
	Idle    int
	Active  int64
	Created int64
	Errors  int64
	Uptime  time.Duration
}

// PooledConn wraps an LDAP connection owned by a Pool. Close returns the
// connection to the pool rather than tearing it down.
type PooledConn struct {
	conn     *ldap.Conn
	endpoint Endpoint
	lastUsed time.Time
	healthy  bool
	bound    bool
	boundAt  time.Time
	release  func(*PooledConn)
}

// Conn exposes the underlying LDAP connection.
func (pc *PooledConn) Conn() *ldap.Conn { return pc.conn }

// Endpoint reports the server this connection is bound to.
func (pc *PooledConn) Endpoint() Endpoint { return pc.endpoint }

// Close hands the connection back to its pool.
func (pc *PooledConn) Close() {
	if pc.release != nil {
		pc.release(pc)
	}
}

// Pool maintains a bounded set of authenticated LDAP connections across
// the discovered endpoints. Checkout prefers idle connections and dials a
// new one when none are available. Connection failures surface to the
// caller immediately; the pool never retries a failed dial.
type Pool struct {
	config      *Config
	log         identity.Logger
	endpoints   []Endpoint
	connections chan *PooledConn

	mu     sync.RWMutex
	closed bool

	activeConns  int64
	totalCreated int64
	totalErrors  int64
	startTime    time.Time

	healthTicker *time.Ticker
	healthStop   chan struct{}
	healthWg     sync.WaitGroup
}

// NewPool validates config, discovers endpoints, and starts the health
// checker when a check interval is configured.
func NewPool(ctx context.Context, config *Config, log identity.Logger) (*Pool, error) {
	if config == nil {
		var err error
		if config, err = NewConfig(); err != nil {
			return nil, err
		}
	}
	if log == nil {
		log = identity.NopLogger{}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if config.MaxConnections > maxPoolSize {
		return nil, fmt.Errorf("max connections %d exceeds limit %d", config.MaxConnections, maxPoolSize)
	}

	p := &Pool{
		config:      config,
		log:         log,
		connections: make(chan *PooledConn, config.MaxConnections),
		startTime:   time.Now(),
		healthStop:  make(chan struct{}),
	}

	if err := p.resolveEndpoints(ctx); err != nil {
		return nil, err
	}

	if config.HealthCheckInterval > 0 {
		p.startHealthChecker()
	}

	log.Debug("connection pool ready", map[string]any{
		"endpoints": len(p.endpoints),
		"max_conns": config.MaxConnections,
	})
	return p, nil
}

// resolveEndpoints populates the endpoint list from configured URLs or
// SRV discovery for the configured domain.
func (p *Pool) resolveEndpoints(ctx context.Context) error {
	if len(p.config.URLs) > 0 {
		endpoints := make([]Endpoint, 0, len(p.config.URLs))
		for _, raw := range p.config.URLs {
			ep, err := ParseURL(raw)
			if err != nil {
				return fmt.Errorf("invalid directory URL %s: %w", raw, err)
			}
			endpoints = append(endpoints, ep)
		}
		p.endpoints = endpoints
		return nil
	}

	discoveryCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	discovery := NewDiscovery(p.log)
	endpoints, err := discovery.DiscoverServers(discoveryCtx, p.config.Domain)
	if err != nil {
		return fmt.Errorf("server discovery for %s failed: %w", p.config.Domain, err)
	}
	if len(endpoints) == 0 {
		return fmt.Errorf("no directory servers found for %s", p.config.Domain)
	}
	p.endpoints = endpoints
	return nil
}

// Get checks out a connection, reusing a healthy idle one when possible.
func (p *Pool) Get(ctx context.Context) (*PooledConn, error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, errors.New("connection pool is closed")
	}
	p.mu.RUnlock()

	select {
	case conn := <-p.connections:
		if p.isHealthy(conn) {
			if p.needsRebind(conn) {
				if err := p.bind(conn); err != nil {
					p.closeConn(conn)
					break
				}
			}
			conn.lastUsed = time.Now()
			atomic.AddInt64(&p.activeConns, 1)
			return conn, nil
		}
		p.closeConn(conn)
	default:
	}

	return p.dial(ctx)
}

// dial opens a connection to the first reachable endpoint. Every endpoint
// failing is terminal for this checkout; callers see the last error.
func (p *Pool) dial(ctx context.Context) (*PooledConn, error) {
	var lastErr error
	for _, ep := range p.endpoints {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		conn, err := p.dialEndpoint(ep)
		if err != nil {
			lastErr = err
			atomic.AddInt64(&p.totalErrors, 1)
			p.log.Debug("endpoint dial failed", map[string]any{
				"endpoint": ep.URL(),
				"error":    err.Error(),
			})
			continue
		}
		atomic.AddInt64(&p.totalCreated, 1)
		atomic.AddInt64(&p.activeConns, 1)
		return conn, nil
	}
	return nil, WrapError("connect", lastErr)
}

func (p *Pool) dialEndpoint(ep Endpoint) (*PooledConn, error) {
	url := ep.URL()

	tlsConfig, err := p.config.TLSConfig(ep.Host)
	if err != nil {
		return nil, err
	}

	var conn *ldap.Conn
	if ep.UseTLS {
		conn, err = ldap.DialURL(url, ldap.DialWithTLSConfig(tlsConfig))
	} else {
		conn, err = ldap.DialURL(url)
		if err == nil && p.config.UseTLS {
			err = conn.StartTLS(tlsConfig)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	conn.SetTimeout(p.config.Timeout)

	pc := &PooledConn{
		conn:     conn,
		endpoint: ep,
		lastUsed: time.Now(),
		healthy:  true,
		release:  p.put,
	}

	if p.hasCredentials() {
		if err := p.bind(pc); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to authenticate to %s: %w", url, err)
		}
	}
	return pc, nil
}

func (p *Pool) hasCredentials() bool {
	return p.config.Username != "" || p.config.UsesKerberos()
}

// bind authenticates a connection using Kerberos when configured,
// otherwise a simple bind.
func (p *Pool) bind(pc *PooledConn) error {
	if pc == nil || pc.conn == nil {
		return errors.New("connection is nil")
	}

	var err error
	if p.config.UsesKerberos() {
		err = kerberosBind(pc.conn, p.config, pc.endpoint)
	} else {
		err = pc.conn.Bind(p.config.Username, p.config.Password)
	}
	if err != nil {
		pc.bound = false
		pc.boundAt = time.Time{}
		return err
	}

	pc.bound = true
	pc.boundAt = time.Now()
	return nil
}

func (p *Pool) needsRebind(pc *PooledConn) bool {
	if !p.hasCredentials() {
		return false
	}
	if pc == nil || !pc.bound {
		return true
	}
	return time.Since(pc.boundAt) > reauthInterval
}

// put returns a connection to the idle set, closing it when the pool is
// full, closed, or the connection has gone stale.
func (p *Pool) put(pc *PooledConn) {
	if pc == nil {
		return
	}

	atomic.AddInt64(&p.activeConns, -1)

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.closeConn(pc)
		return
	}

	if p.isHealthy(pc) && time.Since(pc.lastUsed) < p.config.MaxIdleTime {
		select {
		case p.connections <- pc:
		default:
			p.closeConn(pc)
		}
		return
	}
	p.closeConn(pc)
}

func (p *Pool) isHealthy(pc *PooledConn) bool {
	if pc == nil || pc.conn == nil || !pc.healthy {
		return false
	}
	if time.Since(pc.lastUsed) > p.config.MaxIdleTime {
		return false
	}
	if p.hasCredentials() && !pc.bound {
		return false
	}
	return true
}

func (p *Pool) closeConn(pc *PooledConn) {
	if pc != nil && pc.conn != nil {
		pc.conn.Close()
		pc.healthy = false
		pc.bound = false
		pc.boundAt = time.Time{}
	}
}

// Close drains and closes every idle connection and stops the health
// checker. Checked-out connections are closed as they are returned.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.healthTicker != nil {
		close(p.healthStop)
		p.healthWg.Wait()
		p.healthTicker.Stop()
	}

	close(p.connections)
	for pc := range p.connections {
		p.closeConn(pc)
	}
	return nil
}

// Stats reports a snapshot of pool counters.
func (p *Pool) Stats() PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return PoolStats{
		Idle:    len(p.connections),
		Active:  atomic.LoadInt64(&p.activeConns),
		Created: atomic.LoadInt64(&p.totalCreated),
		Errors:  atomic.LoadInt64(&p.totalErrors),
		Uptime:  time.Since(p.startTime),
	}
}

func (p *Pool) startHealthChecker() {
	p.healthTicker = time.NewTicker(p.config.HealthCheckInterval)

	p.healthWg.Add(1)
	go func() {
		defer p.healthWg.Done()
		for {
			select {
			case <-p.healthTicker.C:
				p.checkIdleConnections()
			case <-p.healthStop:
				return
			}
		}
	}()
}

// checkIdleConnections probes a few idle connections with a root DSE
// search and discards the ones that fail.
func (p *Pool) checkIdleConnections() {
	var toCheck []*PooledConn

drain:
	for range 3 {
		select {
		case pc := <-p.connections:
			toCheck = append(toCheck, pc)
		default:
			break drain
		}
	}

	for _, pc := range toCheck {
		if p.probe(pc) {
			atomic.AddInt64(&p.activeConns, 1)
			p.put(pc)
		} else {
			p.closeConn(pc)
		}
	}
}

func (p *Pool) probe(pc *PooledConn) bool {
	if pc == nil || pc.conn == nil {
		return false
	}

	if p.needsRebind(pc) {
		if err := p.bind(pc); err != nil {
			return false
		}
	}

	req := ldap.NewSearchRequest(
		"",
		ldap.ScopeBaseObject,
		ldap.NeverDerefAliases,
		1, 0, false,
		"(objectClass=*)",
		[]string{"defaultNamingContext"},
		nil,
	)
	if _, err := pc.conn.Search(req); err != nil {
		pc.bound = false
		pc.boundAt = time.Time{}
		return false
	}
	pc.lastUsed = time.Now()
	return true
}
