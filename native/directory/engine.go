package directory

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Registry resolves agent identities and creates new agents on first
// observation. It never deletes agents; agents are deactivated by flag.
type Registry struct {
	store Store
	nowFn func() time.Time
}

// NewRegistry constructs a registry backed by the provided store.
func NewRegistry(store Store) *Registry {
	return &Registry{store: store, nowFn: time.Now}
}

// SetNowFunc overrides the wall clock used for created/updated timestamps.
// Primarily leveraged in tests to provide deterministic timestamps.
func (r *Registry) SetNowFunc(now func() time.Time) {
	if r == nil {
		return
	}
	if now == nil {
		r.nowFn = time.Now
		return
	}
	r.nowFn = now
}

func (r *Registry) now() time.Time {
	if r == nil || r.nowFn == nil {
		return time.Now()
	}
	return r.nowFn()
}

// Resolve returns the agent registered under address, failing with
// ErrUnknownAgent if it has never been observed.
func (r *Registry) Resolve(address string) (*Agent, error) {
	if r == nil || r.store == nil {
		return nil, ErrUnknownAgent
	}
	address = strings.TrimSpace(address)
	agent, ok, err := r.store.GetByAddress(address)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownAgent
	}
	return agent, nil
}

// ResolveByID returns the agent registered under agentID.
func (r *Registry) ResolveByID(agentID string) (*Agent, error) {
	if r == nil || r.store == nil {
		return nil, ErrUnknownAgent
	}
	agent, ok, err := r.store.GetByID(agentID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownAgent
	}
	return agent, nil
}

// EnsureAgent returns the agent registered under address, creating it with
// default attributes if this is the first observation. Callers that need to
// reject unknown agents (vote/endorsement intake) should use Resolve instead.
func (r *Registry) EnsureAgent(address string) (*Agent, error) {
	if r == nil || r.store == nil {
		return nil, ErrUnknownAgent
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, ErrUnknownAgent
	}
	existing, ok, err := r.store.GetByAddress(address)
	if err != nil {
		return nil, err
	}
	if ok {
		return existing, nil
	}
	now := r.now()
	agent := &Agent{
		AgentID:   uuid.NewString(),
		Address:   address,
		Active:    true,
		Tier:      "bronze",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.Put(agent); err != nil {
		return nil, err
	}
	return agent, nil
}

// UpdateScore persists a new composite score and tier for the agent.
func (r *Registry) UpdateScore(agentID string, score int, tier string) error {
	if r == nil || r.store == nil {
		return ErrUnknownAgent
	}
	agent, ok, err := r.store.GetByID(agentID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownAgent
	}
	agent.Score = score
	agent.Tier = tier
	agent.UpdatedAt = r.now()
	return r.store.Put(agent)
}

// SetActive flips the active flag for an agent, never deleting the record.
func (r *Registry) SetActive(agentID string, active bool) error {
	if r == nil || r.store == nil {
		return ErrUnknownAgent
	}
	agent, ok, err := r.store.GetByID(agentID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownAgent
	}
	agent.Active = active
	agent.UpdatedAt = r.now()
	return r.store.Put(agent)
}

// List returns every registered agent, active or not.
func (r *Registry) List() ([]*Agent, error) {
	if r == nil || r.store == nil {
		return nil, nil
	}
	return r.store.List()
}
