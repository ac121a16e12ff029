package credentials

import (
	"crypto/subtle"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Decision is the outcome of one credential check. It is built fresh per
// call and never mutated afterwards.
type Decision struct {
	// Result is true iff the password matched and the account's time
	// window is valid.
	Result bool `json:"result"`
	// Expired is true iff the password matched but the time window is
	// invalid.
	Expired bool `json:"expired"`
	// Authorized reports the per-application authorization outcome,
	// independent of password correctness. It defaults to true when the
	// table has no applications column, and is always false for an
	// unknown user.
	Authorized bool `json:"authorized"`
	// UserInfo is the matched record without its password and
	// is_hashed_password fields, nil when no user matched. Time-window
	// fields carry the effective defaulted dates when the source omitted
	// them.
	UserInfo Record `json:"user_info,omitempty"`
}

// VerifyFunc checks a candidate password against a stored hash.
type VerifyFunc func(hash, password string) bool

// AppIDFunc returns the identifier of the application context currently
// requesting authentication, or "" when there is none.
type AppIDFunc func() string

// BcryptVerify is the default hash verification capability.
func BcryptVerify(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Engine evaluates credential checks over normalized tables. It is
// stateless apart from its injected capabilities and safe for concurrent
// use.
type Engine struct {
	verify VerifyFunc
	appID  AppIDFunc
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithVerify replaces the hash verification capability.
func WithVerify(v VerifyFunc) Option {
	return func(e *Engine) { e.verify = v }
}

// WithAppContext sets the ambient application identifier capability.
func WithAppContext(f AppIDFunc) Option {
	return func(e *Engine) { e.appID = f }
}

// WithClock replaces the engine clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine returns an engine with bcrypt verification and no application
// context unless configured otherwise.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		verify: BcryptVerify,
		appID:  func() string { return "" },
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Check evaluates (user, password) against the table and returns the
// decision. It performs no I/O and does not mutate its inputs.
func (e *Engine) Check(table Table, user, password string) Decision {
	rec, ok := lookup(table, user)
	if !ok {
		// Unknown users are never authorized, even though no
		// authorization rule ran.
		return Decision{}
	}

	goodPassword := e.checkPassword(table, rec, password)

	goodTime, rec := e.checkTimeWindow(table, rec)

	authorized := true
	if table.HasColumn(ColApplications) {
		authorized = e.checkApplication(rec)
		if !authorized {
			// A user who fails the per-application check is never
			// reported as password-valid.
			goodPassword = false
		}
	}

	info := rec.Without(ColPassword, ColHashed)
	switch {
	case goodPassword && goodTime:
		return Decision{Result: true, Authorized: authorized, UserInfo: info}
	case goodPassword:
		return Decision{Expired: true, Authorized: authorized, UserInfo: info}
	default:
		return Decision{Authorized: authorized, UserInfo: info}
	}
}

// lookup returns the first record whose user field equals user exactly.
func lookup(table Table, user string) (Record, bool) {
	for _, rec := range table.Records {
		if v, ok := rec.Get(ColUser); ok && v == user {
			return rec, true
		}
	}
	return nil, false
}

func (e *Engine) checkPassword(table Table, rec Record, password string) bool {
	stored, _ := rec.Get(ColPassword)
	hashed := false
	if table.HasColumn(ColHashed) {
		v, _ := rec.Get(ColHashed)
		hashed = parseBool(v)
	}
	if hashed {
		return e.verify(stored, password)
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1
}

// checkTimeWindow evaluates the validity interval using date-only
// comparison. Missing or unparseable bounds fall back to sentinel defaults
// (start: yesterday, expire: tomorrow) which are also written into the
// returned record so callers see the effective dates.
func (e *Engine) checkTimeWindow(table Table, rec Record) (bool, Record) {
	if !table.HasColumn(ColStartTime) && !table.HasColumn(ColExpireTime) {
		return true, rec
	}

	today := dateOnly(e.now())

	start, ok := parseDate(fieldValue(rec, ColStartTime))
	if !ok {
		start = today.AddDate(0, 0, -1)
		rec = rec.Set(ColStartTime, formatDate(start))
	}
	expire, ok := parseDate(fieldValue(rec, ColExpireTime))
	if !ok {
		expire = today.AddDate(0, 0, 1)
		rec = rec.Set(ColExpireTime, formatDate(expire))
	}

	good := !start.After(today) && !expire.Before(today)
	return good, rec
}

func (e *Engine) checkApplication(rec Record) bool {
	current := e.appID()
	allowed, _ := rec.Get(ColApplications)
	for _, app := range strings.Split(allowed, ";") {
		if strings.TrimSpace(app) == current {
			return true
		}
	}
	return false
}

func fieldValue(rec Record, name string) string {
	v, _ := rec.Get(name)
	return v
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(v)))
	return err == nil && b
}

// dateFormats are the accepted date layouts, tried in order. Layouts with a
// time component are truncated to the date.
var dateFormats = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

func parseDate(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, v); err == nil {
			return dateOnly(t), true
		}
	}
	return time.Time{}, false
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
