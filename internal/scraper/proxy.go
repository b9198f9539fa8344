package scraper

import (
	"fmt"
	"math/rand/v2"
	"net"
	"net/url"
	"strings"
	"sync"
)

// Proxy is one upstream egress endpoint.
type Proxy struct {
	Host     string
	Port     string
	Username string
	Password string
}

// ParseProxy accepts host:port, user:pass@host:port and the same with an
// http:// scheme.
func ParseProxy(raw string) (Proxy, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "http://")
	raw = strings.TrimPrefix(raw, "https://")

	var p Proxy
	hostPort := raw
	if at := strings.LastIndex(raw, "@"); at >= 0 {
		creds := raw[:at]
		hostPort = raw[at+1:]
		user, pass, _ := strings.Cut(creds, ":")
		p.Username, p.Password = user, pass
	}

	host, port, err := net.SplitHostPort(hostPort)
	if err != nil {
		return Proxy{}, fmt.Errorf("invalid proxy %q: %w", raw, err)
	}
	if host == "" || port == "" {
		return Proxy{}, fmt.Errorf("invalid proxy %q: empty host or port", raw)
	}
	p.Host, p.Port = host, port
	return p, nil
}

// Addr returns host:port.
func (p Proxy) Addr() string {
	return net.JoinHostPort(p.Host, p.Port)
}

// URL returns the proxy as an http URL including credentials.
func (p Proxy) URL() *url.URL {
	u := &url.URL{Scheme: "http", Host: p.Addr()}
	if p.Username != "" {
		u.User = url.UserPassword(p.Username, p.Password)
	}
	return u
}

// String hides the password.
func (p Proxy) String() string {
	if p.Username == "" {
		return p.Addr()
	}
	return p.Username + "@" + p.Addr()
}

// Rotator picks one of N proxies at random, avoiding an immediate repeat
// when more than one is available.
type Rotator struct {
	mu      sync.Mutex
	proxies []Proxy
	last    int
	rnd     *rand.Rand
}

// NewRotator parses raw entries. Entries without credentials inherit
// defaultUser/defaultPass.
func NewRotator(raw []string, defaultUser, defaultPass string) (*Rotator, error) {
	r := &Rotator{last: -1, rnd: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
	for _, entry := range raw {
		if strings.TrimSpace(entry) == "" {
			continue
		}
		p, err := ParseProxy(entry)
		if err != nil {
			return nil, err
		}
		if p.Username == "" && defaultUser != "" {
			p.Username, p.Password = defaultUser, defaultPass
		}
		r.proxies = append(r.proxies, p)
	}
	return r, nil
}

func (r *Rotator) Len() int {
	if r == nil {
		return 0
	}
	return len(r.proxies)
}

// Next returns a proxy, or false when none are configured.
func (r *Rotator) Next() (Proxy, bool) {
	if r == nil || len(r.proxies) == 0 {
		return Proxy{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.rnd.IntN(len(r.proxies))
	if len(r.proxies) > 1 && idx == r.last {
		idx = (idx + 1 + r.rnd.IntN(len(r.proxies)-1)) % len(r.proxies)
	}
	r.last = idx
	return r.proxies[idx], true
}
