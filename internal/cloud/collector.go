package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/hemantobora/mcc/internal/models"
)

// ErrNoProviders is returned once every configured provider has been dropped
var ErrNoProviders = errors.New("no cloud providers available")

const (
	connectMessage = "Establishing Connections"
	loaderMessage  = "Collecting Info"
)

// Result is the output of one collection pass
type Result struct {
	Instances []models.Instance // flat, unordered
	Warnings  []string
}

// Collector owns the active provider set and its sessions for the lifetime of
// the process. It is not safe for concurrent use; the command loop calls it
// serially.
type Collector struct {
	connector  Connector
	creds      map[models.ProviderID]models.Credentials
	active     []models.ProviderID
	sessions   map[models.ProviderID]Session
	out        io.Writer
	loaderOpts []models.Option
	log        logrus.FieldLogger
}

// CollectorOption configures a Collector
type CollectorOption func(*Collector)

// WithLoaderOutput sets where the busy indicator is drawn
func WithLoaderOutput(w io.Writer, opts ...models.Option) CollectorOption {
	return func(c *Collector) {
		c.out = w
		c.loaderOpts = opts
	}
}

// WithCollectorLogger sets the diagnostic logger
func WithCollectorLogger(l logrus.FieldLogger) CollectorOption {
	return func(c *Collector) { c.log = l }
}

// NewCollector creates a collector over providers, in configuration order
func NewCollector(connector Connector, creds map[models.ProviderID]models.Credentials, providers []models.ProviderID, options ...CollectorOption) *Collector {
	c := &Collector{
		connector: connector,
		creds:     creds,
		active:    append([]models.ProviderID(nil), providers...),
		sessions:  make(map[models.ProviderID]Session),
		out:       io.Discard,
		log:       logrus.StandardLogger(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Active returns the providers still in use
func (c *Collector) Active() []models.ProviderID {
	return append([]models.ProviderID(nil), c.active...)
}

// Session returns the live session for id
func (c *Collector) Session(id models.ProviderID) (Session, bool) {
	s, ok := c.sessions[id]
	return s, ok
}

type slot struct {
	session   Session
	instances []models.Instance
	warning   string
	failed    bool
}

// Collect lists instances from every active provider concurrently. Providers
// without a session are connected first; the listing starts as soon as that
// provider's own connect returns. A provider that fails either step is
// reported in Result.Warnings and removed from the active set.
func (c *Collector) Collect(ctx context.Context) (*Result, error) {
	if len(c.active) == 0 {
		return &Result{}, ErrNoProviders
	}

	var connecting atomic.Int32
	for _, id := range c.active {
		if c.sessions[id] == nil {
			connecting.Add(1)
		}
	}
	msg := loaderMessage
	if connecting.Load() > 0 {
		msg = connectMessage
	}
	loader := models.NewLoader(c.out, msg, c.loaderOpts...)
	loader.Start()
	defer loader.Stop()

	// the message switches once the last pending connect has returned
	connected := func() {
		if connecting.Add(-1) == 0 {
			loader.SetMessage(loaderMessage)
		}
	}

	slots := make([]slot, len(c.active))
	var g errgroup.Group
	for i, id := range c.active {
		i, id := i, id
		existing := c.sessions[id]
		g.Go(func() error {
			slots[i] = c.collectOne(ctx, id, existing, connected)
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{}
	var keep []models.ProviderID
	for i, id := range c.active {
		sl := slots[i]
		if sl.failed {
			delete(c.sessions, id)
			res.Warnings = append(res.Warnings, sl.warning)
			c.log.WithField("provider", id).Debug(sl.warning)
			continue
		}
		c.sessions[id] = sl.session
		res.Instances = append(res.Instances, sl.instances...)
		keep = append(keep, id)
	}
	c.active = keep

	if len(c.active) == 0 {
		return res, ErrNoProviders
	}
	return res, nil
}

func (c *Collector) collectOne(ctx context.Context, id models.ProviderID, s Session, connected func()) slot {
	log := c.log.WithField("provider", id)
	if s == nil {
		var err error
		s, err = c.connector.Connect(ctx, id, c.creds[id])
		connected()
		if err != nil {
			if models.IsAuthentication(err) {
				return slot{failed: true, warning: fmt.Sprintf("Authentication failed for '%s' - provider removed: %v", id, err)}
			}
			return slot{failed: true, warning: fmt.Sprintf("Unable to connect to '%s' - provider removed: %v", id, err)}
		}
		log.Debug("session established")
	}

	instances, err := s.ListInstances(ctx)
	if err != nil {
		return slot{failed: true, warning: fmt.Sprintf("Unable to list instances for '%s' - provider removed: %v", id, err)}
	}
	log.WithField("count", len(instances)).Debug("collected")
	return slot{session: s, instances: instances}
}
