// Package session holds the single active offer, lead batch and result set.
package session

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/spigell/lead-scorer/internal/leads"
)

var (
	// ErrRunInProgress rejects a scoring run while another one is active.
	ErrRunInProgress = errors.New("a scoring run is already in progress")
	// ErrSessionChanged discards a run whose offer or leads were replaced mid-flight.
	ErrSessionChanged = errors.New("offer or leads changed during the scoring run")
)

// State is the lifecycle position of a session.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateOfferSet      State = "offer-set"
	StateLeadsSet      State = "leads-set"
	StateReady         State = "ready"
	StateScored        State = "scored"
)

type (
	OfferStore   = Store[leads.Offer]
	LeadStore    = Store[[]leads.Lead]
	ResultsStore = Store[leads.Results]
)

// Snapshot is a consistent view of the scoring inputs.
type Snapshot struct {
	Offer      leads.Offer
	Leads      []leads.Lead
	Generation uint64
}

// Status summarises a session for health reporting.
type Status struct {
	State    State     `json:"state"`
	Offer    string    `json:"offer,omitempty"`
	Leads    int       `json:"leads"`
	Results  int       `json:"results"`
	ScoredAt time.Time `json:"scored_at,omitzero"`
}

// Session is the scoring session state. The zero value is an empty session.
type Session struct {
	mu       sync.RWMutex
	offer    OfferStore
	leads    LeadStore
	results  ResultsStore
	scoredAt time.Time
	// generation changes whenever an input is replaced.
	generation uint64

	runMu sync.Mutex
}

// New returns an uninitialized session.
func New() *Session {
	return &Session{}
}

// SetOffer validates and stores offer, replacing the previous one and
// dropping results scored against it. An invalid offer leaves state untouched.
func (s *Session) SetOffer(offer leads.Offer) (leads.Offer, error) {
	offer = offer.Clone()
	if err := leads.ValidateOffer(&offer); err != nil {
		return leads.Offer{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.offer.Set(offer)
	s.invalidate()

	return offer.Clone(), nil
}

// Offer returns the active offer or leads.ErrNoOfferConfigured.
func (s *Session) Offer() (leads.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	offer, err := s.offer.Get()
	if err != nil {
		return leads.Offer{}, leads.ErrNoOfferConfigured
	}
	return offer.Clone(), nil
}

// SetLeads replaces the lead batch and drops results scored against the old one.
func (s *Session) SetLeads(batch []leads.Lead) {
	batch = slices.Clone(batch)
	if batch == nil {
		batch = []leads.Lead{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.leads.Set(batch)
	s.invalidate()
}

// Leads returns a copy of the active batch or leads.ErrNoLeadsUploaded.
func (s *Session) Leads() ([]leads.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	batch, err := s.leads.Get()
	if err != nil {
		return nil, leads.ErrNoLeadsUploaded
	}
	return slices.Clone(batch), nil
}

// Results returns the last published results in upload order or leads.ErrNoResults.
func (s *Session) Results() (leads.Results, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results, err := s.results.Get()
	if err != nil {
		return nil, leads.ErrNoResults
	}
	return results.Clone(), nil
}

// Snapshot returns the current offer and a non-empty lead batch.
func (s *Session) Snapshot() (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	offer, err := s.offer.Get()
	if err != nil {
		return Snapshot{}, leads.ErrNoOfferConfigured
	}

	batch, err := s.leads.Get()
	if err != nil || len(batch) == 0 {
		return Snapshot{}, leads.ErrNoLeadsUploaded
	}

	return Snapshot{
		Offer:      offer.Clone(),
		Leads:      slices.Clone(batch),
		Generation: s.generation,
	}, nil
}

// Publish replaces the results with those computed from snap. When the inputs
// changed since snap was taken the results are discarded and the previously
// published set stays visible.
func (s *Session) Publish(snap Snapshot, results leads.Results) error {
	if len(results) != len(snap.Leads) {
		return fmt.Errorf("publish: %d results for %d leads", len(results), len(snap.Leads))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.Generation != s.generation {
		return ErrSessionChanged
	}

	s.results.Set(results.Clone())
	s.scoredAt = time.Now().UTC()
	return nil
}

// BeginRun reserves the session for one scoring run. The returned function
// releases it.
func (s *Session) BeginRun() (func(), error) {
	if !s.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	return s.runMu.Unlock, nil
}

// Reset returns the session to the uninitialized state.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.offer.Clear()
	s.leads.Clear()
	s.invalidate()
}

// State reports the lifecycle position.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state()
}

// Status reports the lifecycle position together with collection sizes.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{State: s.state()}
	if offer, err := s.offer.Get(); err == nil {
		st.Offer = offer.Name
	}
	if batch, err := s.leads.Get(); err == nil {
		st.Leads = len(batch)
	}
	if results, err := s.results.Get(); err == nil {
		st.Results = len(results)
		st.ScoredAt = s.scoredAt
	}
	return st
}

func (s *Session) state() State {
	switch {
	case s.results.IsSet():
		return StateScored
	case s.offer.IsSet() && s.leads.IsSet():
		return StateReady
	case s.offer.IsSet():
		return StateOfferSet
	case s.leads.IsSet():
		return StateLeadsSet
	default:
		return StateUninitialized
	}
}

// invalidate must be called with mu held for writing.
func (s *Session) invalidate() {
	s.results.Clear()
	s.scoredAt = time.Time{}
	s.generation++
}
