// Package skill provides the skill bot registry and the HTTP transport
// used by the root bot to forward activities to skill bots.
package skill

import (
	"fmt"
	"sort"
)

// Descriptor describes a remote skill bot. Descriptors are static
// configuration loaded at startup and immutable for the process lifetime.
type Descriptor struct {
	// ID is the logical identifier of the skill (e.g. "EchoSkillBot").
	ID string `json:"id" yaml:"id"`
	// AppID is the application identity the skill authenticates as.
	AppID string `json:"app_id" yaml:"app_id"`
	// Endpoint is the URL activities are posted to.
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// Validate checks that the descriptor has all required fields.
func (d *Descriptor) Validate() error {
	if d.ID == "" {
		return ErrMissingSkillID
	}
	if d.AppID == "" {
		return fmt.Errorf("%w: skill %q", ErrMissingAppID, d.ID)
	}
	if d.Endpoint == "" {
		return fmt.Errorf("%w: skill %q", ErrMissingEndpoint, d.ID)
	}
	return nil
}

// Registry holds the known skills, keyed by ID. It is built once from
// configuration and never mutated afterwards, so lookups need no locking.
type Registry struct {
	skills map[string]*Descriptor
}

// NewRegistry builds a registry from the given descriptors. Duplicate IDs
// and invalid descriptors are rejected.
func NewRegistry(descriptors []Descriptor) (*Registry, error) {
	skills := make(map[string]*Descriptor, len(descriptors))
	for i := range descriptors {
		d := descriptors[i]
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, exists := skills[d.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSkill, d.ID)
		}
		skills[d.ID] = &d
	}
	return &Registry{skills: skills}, nil
}

// Get retrieves a skill descriptor by ID.
func (r *Registry) Get(id string) (*Descriptor, error) {
	d, ok := r.skills[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSkillNotFound, id)
	}
	return d, nil
}

// Has reports whether a skill with the given ID is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.skills[id]
	return ok
}

// IDs returns the registered skill IDs in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.skills))
	for id := range r.skills {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered skills.
func (r *Registry) Len() int {
	return len(r.skills)
}
