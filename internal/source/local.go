package source

import (
	"github.com/go-credgate/credgate/internal/credentials"
	"github.com/go-credgate/credgate/internal/vault"
)

// localAuthenticator serves a table read once from an encrypted vault at
// construction time. The bound table is immutable afterwards, so checks
// incur no further I/O and need no locking.
type localAuthenticator struct {
	table  credentials.Table
	engine *credentials.Engine
}

func newLocalAuthenticator(ref LocalStore, o options) (Authenticator, error) {
	table, err := vault.Read(ref.Path, ref.TableName(), o.passphrase)
	if err != nil {
		return nil, err
	}
	if o.state != nil {
		o.state.setLocal(ref, o.passphrase)
	}
	return &localAuthenticator{table: table, engine: o.engine}, nil
}

func (a *localAuthenticator) Check(user, password string) (credentials.Decision, error) {
	return a.engine.Check(a.table, user, password), nil
}

func (a *localAuthenticator) Kind() Kind { return KindLocal }
