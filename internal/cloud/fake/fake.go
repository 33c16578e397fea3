// Package fake provides in-memory provider sessions for tests.
package fake

import (
	"context"
	"errors"
	"sync"

	"github.com/hemantobora/mcc/internal/cloud"
	"github.com/hemantobora/mcc/internal/models"
)

// Call records one adapter action
type Call struct {
	Op       string // "start" or "stop"
	Instance models.Instance
}

// Session is a scripted cloud.Session. Start and Stop flip the stored state
// so a following ListInstances reports the post-action state.
type Session struct {
	Provider models.ProviderID
	ListErr  error
	StartErr error
	StopErr  error
	User     string

	mu        sync.Mutex
	instances []models.Instance
	calls     []Call
	lists     int
}

var _ cloud.Session = (*Session)(nil)

// NewSession creates a session owning instances
func NewSession(id models.ProviderID, instances ...models.Instance) *Session {
	s := &Session{Provider: id, User: "ops"}
	for _, inst := range instances {
		inst.Provider = id
		if inst.Kind == "" {
			inst.Kind, _ = id.Kind()
		}
		s.instances = append(s.instances, inst)
	}
	return s
}

func (s *Session) ID() models.ProviderID { return s.Provider }

func (s *Session) ListInstances(ctx context.Context) ([]models.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	return append([]models.Instance(nil), s.instances...), nil
}

func (s *Session) Start(ctx context.Context, inst models.Instance) error {
	return s.act("start", inst, s.StartErr, models.StateRunning)
}

func (s *Session) Stop(ctx context.Context, inst models.Instance) error {
	return s.act("stop", inst, s.StopErr, models.StateStopped)
}

func (s *Session) act(op string, inst models.Instance, err error, next string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Op: op, Instance: inst})
	if err != nil {
		return err
	}
	for i := range s.instances {
		if s.instances[i].Name == inst.Name {
			s.instances[i].State = next
		}
	}
	return nil
}

func (s *Session) SSHTarget(inst models.Instance) (models.SSHTarget, error) {
	return models.SSHTarget{User: s.User, Host: inst.PublicIP}, nil
}

// Calls returns the recorded start/stop calls
func (s *Session) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Lists returns how many times ListInstances ran
func (s *Session) Lists() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lists
}

// Connector hands out scripted sessions. Providers listed in Errors fail to
// connect with that error.
type Connector struct {
	Sessions map[models.ProviderID]*Session
	Errors   map[models.ProviderID]error

	mu       sync.Mutex
	connects map[models.ProviderID]int
}

var _ cloud.Connector = (*Connector)(nil)

// NewConnector creates a connector serving sessions
func NewConnector(sessions ...*Session) *Connector {
	c := &Connector{
		Sessions: make(map[models.ProviderID]*Session),
		Errors:   make(map[models.ProviderID]error),
		connects: make(map[models.ProviderID]int),
	}
	for _, s := range sessions {
		c.Sessions[s.Provider] = s
	}
	return c
}

func (c *Connector) Connect(ctx context.Context, id models.ProviderID, creds models.Credentials) (cloud.Session, error) {
	c.mu.Lock()
	c.connects[id]++
	c.mu.Unlock()
	if err := c.Errors[id]; err != nil {
		return nil, err
	}
	s, ok := c.Sessions[id]
	if !ok {
		return nil, &models.AuthenticationError{Provider: id, Cause: errors.New("no such session")}
	}
	return s, nil
}

// Connects returns how many times id was connected
func (c *Connector) Connects(id models.ProviderID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects[id]
}

// Credentials returns an empty credential set for every id
func Credentials(ids ...models.ProviderID) map[models.ProviderID]models.Credentials {
	out := make(map[models.ProviderID]models.Credentials, len(ids))
	for _, id := range ids {
		out[id] = models.Credentials{}
	}
	return out
}
