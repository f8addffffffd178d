// internal/requestinfo/requestinfo.go
//
// Per-request client metadata.
//
/*
Context
--------
The submission pipeline keys its rate limit on the client address and records
the user agent with each submission, so both must be derived once, the same
way, for every request.  The Enricher middleware:

  1. Extracts the client IP.  X-Forwarded-For / X-Real-IP are honoured only
     when TrustProxy is set; otherwise a client could pick its own rate-limit
     bucket by sending a header.
  2. Parses the User-Agent header (uasurfer) and Accept-Language.
  3. Performs an optional GeoLite2 lookup.
  4. Stores *Info in the request context and attaches a request-scoped zap
     logger (request id, ip) via logger.WithContext.

Notes
-----
  • All look-ups are read-only, so the middleware is safe under heavy
    concurrency.
  • GeoIP is best-effort; a missing database path disables it.
*/
package requestinfo

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/oschwald/geoip2-golang"
	"go.uber.org/zap"

	"github.com/yanizio/formforge/internal/logger"
)

/*──────────────────────────── types ────────────────────────────────────────*/

// Geo holds IP-based geolocation hints.  Empty when unknown.
type Geo struct {
	CountryISO string `json:"country,omitempty"`
	City       string `json:"city,omitempty"`
}

// Info is attached to every request by the Enricher.
type Info struct {
	IP          string
	UA          UA
	Geo         Geo
	PrimaryLang string
	Timestamp   time.Time
}

type ctxKey struct{}

// FromContext returns the value stored by the Enricher, or nil.
func FromContext(ctx context.Context) *Info {
	v, _ := ctx.Value(ctxKey{}).(*Info)
	return v
}

// WithInfo stores info in ctx.  Used by the middleware and by tests.
func WithInfo(ctx context.Context, info *Info) context.Context {
	return context.WithValue(ctx, ctxKey{}, info)
}

/*──────────────────────────── enricher ─────────────────────────────────────*/

// Enricher builds Info for each request.
type Enricher struct {
	TrustProxy bool
	geo        *geoip2.Reader
}

// NewEnricher opens the GeoLite2 database when geoDB is non-empty.
func NewEnricher(trustProxy bool, geoDB string) (*Enricher, error) {
	e := &Enricher{TrustProxy: trustProxy}
	if geoDB != "" {
		r, err := geoip2.Open(geoDB)
		if err != nil {
			return nil, err
		}
		e.geo = r
	}
	return e, nil
}

// Close releases the GeoIP reader.
func (e *Enricher) Close() error {
	if e.geo == nil {
		return nil
	}
	return e.geo.Close()
}

// Middleware wraps next, attaching *Info and a request-scoped logger.
func (e *Enricher) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r, e.TrustProxy)
		info := &Info{
			IP:          ip,
			UA:          ParseUA(r.UserAgent()),
			Geo:         e.lookup(ip),
			PrimaryLang: primaryLang(r.Header.Get("Accept-Language")),
			Timestamp:   time.Now().UTC(),
		}

		l := zap.L().With(zap.String("ip", ip))
		if id := middleware.GetReqID(r.Context()); id != "" {
			l = l.With(zap.String("request_id", id))
		}
		l.Debug("request info",
			zap.String("country", info.Geo.CountryISO),
			zap.String("browser", info.UA.Browser),
			zap.String("device", info.UA.Device),
			zap.Bool("bot", info.UA.IsBot),
			zap.String("path", r.URL.Path),
		)

		ctx := logger.WithContext(WithInfo(r.Context(), info), l)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (e *Enricher) lookup(ip string) Geo {
	parsed := net.ParseIP(ip)
	if e.geo == nil || parsed == nil {
		return Geo{}
	}
	rec, err := e.geo.City(parsed)
	if err != nil {
		return Geo{}
	}
	return Geo{CountryISO: rec.Country.IsoCode, City: rec.City.Names["en"]}
}

/*──────────────────────────── helpers ──────────────────────────────────────*/

// ClientIP returns the caller's address.  With trustProxy it prefers the
// left-most valid X-Forwarded-For entry, then X-Real-IP.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			for _, part := range strings.Split(xff, ",") {
				if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
					return ip.String()
				}
			}
		}
		if xrip := r.Header.Get("X-Real-Ip"); xrip != "" {
			if ip := net.ParseIP(strings.TrimSpace(xrip)); ip != nil {
				return ip.String()
			}
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// primaryLang extracts the first language subtag before any ";q=" rule.
func primaryLang(al string) string {
	if al == "" {
		return ""
	}
	tag := strings.TrimSpace(strings.Split(al, ",")[0])
	if i := strings.Index(tag, ";"); i != -1 {
		tag = tag[:i]
	}
	if i := strings.Index(tag, "-"); i != -1 {
		tag = tag[:i]
	}
	return strings.ToLower(tag)
}
