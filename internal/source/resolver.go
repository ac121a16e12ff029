// Package source resolves credential source descriptors into authenticators
// bound to one backend: an in-memory table, an encrypted local vault, or a
// remote SQL database. The backend is determined once at construction; the
// resulting authenticator feeds the decision engine on every check.
package source

import (
	"fmt"

	"github.com/go-credgate/credgate/internal/credentials"
)

// Kind identifies a credential source backend.
type Kind string

const (
	KindNone  Kind = ""
	KindTable Kind = "table"
	KindLocal Kind = "local"
	KindSQL   Kind = "sql"
)

// Authenticator is a callable bound to one credential source. Check
// evaluates (user, password) against the source's current table. A non-nil
// error means the backend failed; it is never reported as a degraded
// decision.
type Authenticator interface {
	Check(user, password string) (credentials.Decision, error)
	// Kind reports the backend variant, for logging and metrics.
	Kind() Kind
}

// LocalStore references an encrypted local credential vault.
type LocalStore struct {
	Path string
	// Table is the vault table to read; defaults to "credentials".
	Table string
}

// TableName returns the vault table this reference points at.
func (l LocalStore) TableName() string {
	if l.Table == "" {
		return "credentials"
	}
	return l.Table
}

type options struct {
	engine     *credentials.Engine
	passphrase string
	state      *State
}

// Option configures resolution.
type Option func(*options)

// WithEngine sets the decision engine the authenticator feeds. A default
// engine (bcrypt verify, no application context) is used otherwise.
func WithEngine(e *credentials.Engine) Option {
	return func(o *options) { o.engine = e }
}

// WithPassphrase supplies the decryption passphrase for local vault
// sources.
func WithPassphrase(passphrase string) Option {
	return func(o *options) { o.passphrase = passphrase }
}

// WithState records the resolved source in the given resolution state.
func WithState(s *State) Option {
	return func(o *options) { o.state = s }
}

// Resolve inspects the source descriptor once and returns an authenticator
// bound to it. Recognized descriptors, first match wins:
//
//   - credentials.Table: bound directly, no I/O at call time
//   - LocalStore: the vault is opened, decrypted and read once, here
//   - *SQLConfig: validated eagerly; the table is re-read on every check
//
// Anything else fails with ErrInvalidSource.
func Resolve(src any, opts ...Option) (Authenticator, error) {
	o := options{engine: credentials.NewEngine()}
	for _, opt := range opts {
		opt(&o)
	}

	switch v := src.(type) {
	case credentials.Table:
		return &tableAuthenticator{table: v, engine: o.engine}, nil
	case LocalStore:
		return newLocalAuthenticator(v, o)
	case *SQLConfig:
		return newSQLAuthenticator(v, o)
	case SQLConfig:
		return newSQLAuthenticator(&v, o)
	default:
		return nil, fmt.Errorf("%w: %T is not a table, local store or sql configuration", ErrInvalidSource, src)
	}
}

// tableAuthenticator serves a static in-memory table.
type tableAuthenticator struct {
	table  credentials.Table
	engine *credentials.Engine
}

func (a *tableAuthenticator) Check(user, password string) (credentials.Decision, error) {
	return a.engine.Check(a.table, user, password), nil
}

func (a *tableAuthenticator) Kind() Kind { return KindTable }
