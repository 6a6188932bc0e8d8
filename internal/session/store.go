package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/church-dashboard/church-dashboard/internal/auth"
	"github.com/church-dashboard/church-dashboard/internal/crypto"
	"github.com/church-dashboard/church-dashboard/internal/telemetry"
)

const (
	// DefaultCookieName is the cookie holding the encrypted session.
	DefaultCookieName = "userData"
	// DefaultTTL is the fixed lifetime of the cookie from the moment it is written.
	DefaultTTL = 72 * time.Hour
	// DefaultLoginPath is where Clear sends the browser.
	DefaultLoginPath = "/login"

	// maxCookieSize is the practical per-cookie limit of browsers (name + value).
	maxCookieSize = 4096
)

var (
	// ErrNilSession is returned by Save when given a nil session.
	ErrNilSession = errors.New("session: nil session")
	// ErrCookieTooLarge is returned when the sealed session exceeds the browser cookie limit.
	ErrCookieTooLarge = errors.New("session: encoded session exceeds cookie size limit")
)

// Load failure reasons, used as the session_load_failures_total label.
const (
	failureDecrypt = "decrypt"
	failureDecode  = "decode"
	failureExpired = "expired"
)

// Options configure the session cookie.
type Options struct {
	CookieName string
	TTL        time.Duration
	Path       string
	Domain     string
	Secure     bool
	SameSite   http.SameSite
	LoginPath  string
}

func (o Options) withDefaults() Options {
	if o.CookieName == "" {
		o.CookieName = DefaultCookieName
	}
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.Path == "" {
		o.Path = "/"
	}
	if o.SameSite == 0 {
		o.SameSite = http.SameSiteLaxMode
	}
	if o.LoginPath == "" {
		o.LoginPath = DefaultLoginPath
	}
	return o
}

// Store loads, saves and clears the encrypted session cookie. It holds no
// per-request state and is safe for concurrent use.
type Store struct {
	cipher *crypto.Cipher
	opts   Options
	now    func() time.Time
}

// NewStore creates a store sealing cookies with c.
func NewStore(c *crypto.Cipher, opts Options) *Store {
	return &Store{cipher: c, opts: opts.withDefaults(), now: time.Now}
}

// WithClock replaces the store's time source. Intended for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// CookieName returns the configured cookie name.
func (s *Store) CookieName() string {
	return s.opts.CookieName
}

// LoginPath returns the route Clear redirects to.
func (s *Store) LoginPath() string {
	return s.opts.LoginPath
}

// Load returns the session carried by the request, or nil. A missing, undecryptable
// or malformed cookie and a session whose backend token has expired all read as
// "no session"; Load never fails.
func (s *Store) Load(r *http.Request) *Session {
	cookie, err := r.Cookie(s.opts.CookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	plaintext, err := s.cipher.Open(cookie.Value)
	if err != nil {
		s.loadFailed(r, failureDecrypt, err)
		return nil
	}

	var sess Session
	if err := json.Unmarshal(plaintext, &sess); err != nil {
		s.loadFailed(r, failureDecode, err)
		return nil
	}

	if auth.TokenExpired(sess.Token, s.now()) {
		s.loadFailed(r, failureExpired, nil)
		return nil
	}
	return &sess
}

// Save writes the session cookie, replacing any previous one. The cookie expires a
// fixed TTL after this write.
func (s *Store) Save(w http.ResponseWriter, sess *Session) error {
	if sess == nil {
		return ErrNilSession
	}
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	value, err := s.cipher.Seal(payload)
	if err != nil {
		return fmt.Errorf("session: seal: %w", err)
	}
	if len(s.opts.CookieName)+len(value) > maxCookieSize {
		return ErrCookieTooLarge
	}

	http.SetCookie(w, s.cookie(value, s.now().Add(s.opts.TTL), int(s.opts.TTL.Seconds())))
	return nil
}

// Expire removes the session cookie without redirecting.
func (s *Store) Expire(w http.ResponseWriter) {
	http.SetCookie(w, s.cookie("", time.Unix(0, 0), -1))
}

// Clear removes the session cookie and sends the browser to the login route with a
// 303, forcing a full navigation so no client-side state outlives the session.
func (s *Store) Clear(w http.ResponseWriter, r *http.Request) {
	s.Expire(w)
	http.Redirect(w, r, s.opts.LoginPath, http.StatusSeeOther)
}

func (s *Store) cookie(value string, expires time.Time, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    value,
		Path:     s.opts.Path,
		Domain:   s.opts.Domain,
		Expires:  expires,
		MaxAge:   maxAge,
		Secure:   s.opts.Secure,
		HttpOnly: true,
		SameSite: s.opts.SameSite,
	}
}

func (s *Store) loadFailed(r *http.Request, reason string, err error) {
	telemetry.SessionLoadFailuresTotal.WithLabelValues(reason).Inc()
	slog.DebugContext(r.Context(), "discarding session cookie", "reason", reason, "error", err)
}
