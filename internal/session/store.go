package session

import (
	"sync"
	"time"

	"style-lock-studio/internal/fingerprint"
	"style-lock-studio/internal/instruction"
)

// Reference is the style image a user uploaded with /style. It is replaced
// wholesale on re-upload; the fingerprint never outlives its bytes.
type Reference struct {
	Data        []byte
	MimeType    string
	Fingerprint *fingerprint.StyleFingerprint
	UploadedAt  time.Time
}

// State is one user's studio settings. Values returned by the store are
// copies and may be modified freely by the caller.
type State struct {
	UserID            int64
	Username          string
	Mode              instruction.Mode
	BlendWeight       int
	Enhance           instruction.EnhanceParameters
	Reference         *Reference
	AwaitingReference bool
	LastActivity      time.Time
}

type Options struct {
	Defaults instruction.Options
	// IdleTTL drops state untouched for longer than this. Zero keeps
	// everything until Reset.
	IdleTTL time.Duration
}

type Store struct {
	mu       sync.Mutex
	states   map[int64]*State
	defaults instruction.Options
	idleTTL  time.Duration
	now      func() time.Time
}

func NewStore(opts Options) *Store {
	defaults := opts.Defaults
	if defaults.Mode == 0 {
		defaults = instruction.DefaultOptions()
	}

	return &Store{
		states:   make(map[int64]*State),
		defaults: defaults,
		idleTTL:  opts.IdleTTL,
		now:      time.Now,
	}
}

func (s *Store) Snapshot(userID int64, username string) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.getOrCreateLocked(userID, username)
	return copyState(st)
}

// Update applies fn to the user's state under the store lock and returns
// the result.
func (s *Store) Update(userID int64, username string, fn func(*State)) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.getOrCreateLocked(userID, username)
	fn(st)
	return copyState(st)
}

func (s *Store) SetReference(userID int64, username string, ref Reference) State {
	return s.Update(userID, username, func(st *State) {
		if ref.UploadedAt.IsZero() {
			ref.UploadedAt = s.now()
		}
		st.Reference = &ref
		st.AwaitingReference = false
	})
}

func (s *Store) ClearReference(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.states[userID]; ok {
		st.Reference = nil
		st.AwaitingReference = false
		st.LastActivity = s.now()
	}
}

// Reset forgets the user entirely; the next access starts from defaults.
func (s *Store) Reset(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.states, userID)
}

// Prune removes idle users and reports how many were dropped.
func (s *Store) Prune() int {
	if s.idleTTL <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.idleTTL)
	removed := 0
	for id, st := range s.states {
		if st.LastActivity.Before(cutoff) {
			delete(s.states, id)
			removed++
		}
	}
	return removed
}

func (s *Store) getOrCreateLocked(userID int64, username string) *State {
	if st, ok := s.states[userID]; ok {
		if st.Username == "" && username != "" {
			st.Username = username
		}
		st.LastActivity = s.now()
		return st
	}

	st := &State{
		UserID:       userID,
		Username:     username,
		Mode:         s.defaults.Mode,
		BlendWeight:  s.defaults.BlendWeight,
		Enhance:      s.defaults.Enhance,
		LastActivity: s.now(),
	}
	s.states[userID] = st
	return st
}

func copyState(st *State) State {
	out := *st
	if st.Reference != nil {
		ref := *st.Reference
		if st.Reference.Fingerprint != nil {
			fp := *st.Reference.Fingerprint
			ref.Fingerprint = &fp
		}
		out.Reference = &ref
	}
	return out
}
