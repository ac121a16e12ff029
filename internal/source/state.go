package source

import "sync"

// State records the most recently resolved credential source so that the
// surrounding system (e.g. the admin surface) can reuse it for operations
// unrelated to the decision engine. It is an explicit side channel:
// last-writer-wins, never consulted during a credential check.
type State struct {
	mu         sync.Mutex
	kind       Kind
	local      LocalStore
	sql        *SQLConfig
	passphrase string
}

// NewState returns an empty resolution state.
func NewState() *State {
	return &State{}
}

// ActiveKind returns the kind of the last resolved source, or KindNone.
func (s *State) ActiveKind() Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kind
}

// LocalVault returns the active local vault reference and its passphrase.
// ok is false when the active source is not a local vault.
func (s *State) LocalVault() (ref LocalStore, passphrase string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.kind != KindLocal {
		return LocalStore{}, "", false
	}
	return s.local, s.passphrase, true
}

// SQL returns the active SQL configuration. ok is false when the active
// source is not a SQL database.
func (s *State) SQL() (*SQLConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.kind != KindSQL {
		return nil, false
	}
	return s.sql, true
}

func (s *State) setLocal(ref LocalStore, passphrase string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kind = KindLocal
	s.local = ref
	s.passphrase = passphrase
	s.sql = nil
}

func (s *State) setSQL(cfg *SQLConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kind = KindSQL
	s.sql = cfg
	s.local = LocalStore{}
	s.passphrase = ""
}
