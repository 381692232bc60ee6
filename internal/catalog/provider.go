package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kode4food/swfcatalog/internal/openapi"
	"github.com/kode4food/swfcatalog/internal/reader"
	"github.com/kode4food/swfcatalog/internal/scheduler"
	"github.com/kode4food/swfcatalog/pkg/api"
	"github.com/kode4food/swfcatalog/pkg/log"
)

type (
	// Provider keeps a catalog connection in sync with the workflows a
	// serverless workflow runtime exposes. It refreshes on a schedule once
	// connected and whenever a workflow change event arrives
	Provider struct {
		reader      reader.Reader
		scheduler   TaskScheduler
		logger      *slog.Logger
		conn        atomic.Pointer[connection]
		serviceURL  string
		openAPIPath string
		owner       string
		env         string
		frequency   time.Duration
		timeout     time.Duration
		registered  atomic.Bool
		pending     atomic.Bool
		running     chan struct{}
	}

	// Options configures a Provider
	Options struct {
		Reader      reader.Reader
		Scheduler   TaskScheduler
		Logger      *slog.Logger
		ServiceURL  string
		OpenAPIPath string
		Owner       string
		Env         string
		Frequency   time.Duration
		Timeout     time.Duration
	}

	// TaskScheduler registers recurring tasks
	TaskScheduler interface {
		ScheduleTask(context.Context, scheduler.TaskDefinition) error
	}

	// EventBus accepts event subscribers
	EventBus interface {
		Subscribe(...api.EventSubscriber)
	}

	connection struct {
		api.EntityProviderConnection
	}
)

const (
	// RefreshTaskID identifies the provider's recurring refresh task
	RefreshTaskID = "run_swf_provider_refresh"

	ProviderNamePrefix = "ServerlessWorkflowEntityProvider"
	LocationKeyPrefix  = "swf-provider:"

	DefaultOpenAPIPath = "/q/openapi"
	DefaultFrequency   = 5 * time.Second
	DefaultTimeout     = 10 * time.Minute
)

var (
	ErrOwnerRequired      = errors.New("owner is required")
	ErrEnvRequired        = errors.New("environment is required")
	ErrInvalidFrequency   = errors.New("refresh frequency must be positive")
	ErrInvalidTimeout     = errors.New("refresh timeout must be positive")
	ErrConnectionRequired = errors.New("connection is required")
	ErrAlreadyConnected   = errors.New("provider already connected")
	ErrSchedulerRequired  = errors.New("scheduler is required")
	ErrNotConfigured      = errors.New("provider has no reader or service URL")
	ErrFetchDescription   = errors.New("failed to fetch interface description")
	ErrParseDescription   = errors.New("failed to parse interface description")
	ErrApplyMutation      = errors.New("failed to apply mutation")
)

var (
	_ api.EventSubscriber = (*Provider)(nil)

	workflowTopics = []string{api.WorkflowTopic}
)

// NewProvider creates a provider. The provider does not subscribe to any
// event bus until Register is called, and does not schedule refreshes
// until Connect is called
func NewProvider(opts Options) (*Provider, error) {
	if opts.Owner == "" {
		return nil, ErrOwnerRequired
	}
	if opts.Env == "" {
		return nil, ErrEnvRequired
	}
	if opts.Frequency < 0 {
		return nil, ErrInvalidFrequency
	}
	if opts.Timeout < 0 {
		return nil, ErrInvalidTimeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	openAPIPath := opts.OpenAPIPath
	if openAPIPath == "" {
		openAPIPath = DefaultOpenAPIPath
	}
	frequency := opts.Frequency
	if frequency == 0 {
		frequency = DefaultFrequency
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	p := &Provider{
		reader:      opts.Reader,
		scheduler:   opts.Scheduler,
		serviceURL:  strings.TrimRight(opts.ServiceURL, "/"),
		openAPIPath: "/" + strings.TrimLeft(openAPIPath, "/"),
		owner:       opts.Owner,
		env:         opts.Env,
		frequency:   frequency,
		timeout:     timeout,
		running:     make(chan struct{}, 1),
	}
	p.logger = logger.With(log.Provider(p.GetProviderName()))
	return p, nil
}

// GetProviderName returns the name the catalog registers this provider
// under. The environment is part of the name, so providers for different
// environments never collide
func (p *Provider) GetProviderName() string {
	return ProviderNamePrefix + ":" + p.env
}

// LocationKey returns the key every submitted entity is paired with
func (p *Provider) LocationKey() string {
	return LocationKeyPrefix + p.env
}

// Register subscribes the provider to workflow change events. Only the
// first call has any effect
func (p *Provider) Register(bus EventBus) {
	if bus == nil || !p.registered.CompareAndSwap(false, true) {
		return
	}
	bus.Subscribe(p)
}

// Connect attaches the catalog connection and schedules the recurring
// refresh. It returns once the task is scheduled, without waiting for the
// first refresh
func (p *Provider) Connect(
	ctx context.Context, conn api.EntityProviderConnection,
) error {
	if conn == nil {
		return ErrConnectionRequired
	}
	if p.scheduler == nil {
		return ErrSchedulerRequired
	}
	if !p.conn.CompareAndSwap(nil, &connection{conn}) {
		return ErrAlreadyConnected
	}

	p.logger.Info("Provider connected",
		log.LocationKey(p.LocationKey()),
		slog.Duration("frequency", p.frequency),
		slog.Duration("timeout", p.timeout))

	return p.scheduler.ScheduleTask(ctx, scheduler.TaskDefinition{
		ID:        RefreshTaskID,
		Fn:        p.Refresh,
		Frequency: p.frequency,
		Timeout:   p.timeout,
	})
}

// SupportsEventTopics returns the single topic the provider reacts to
func (p *Provider) SupportsEventTopics() []string {
	return workflowTopics
}

// OnEvent refreshes the catalog when a workflow change event arrives.
// Events on any other topic are ignored
func (p *Provider) OnEvent(ctx context.Context, ev *api.EventParams) error {
	if ev == nil || ev.Topic != api.WorkflowTopic {
		return nil
	}
	p.logger.Debug("Workflow change event received", log.Topic(ev.Topic))
	return p.Refresh(ctx)
}

// Refresh fetches the interface description and submits every workflow it
// names to the connection as one full replacement. Without a reader,
// connection, or service URL it does nothing.
//
// Refreshes never overlap. A call made while a refresh is running waits
// and then performs one more refresh; calls made while another is already
// waiting return immediately, since the waiting refresh will observe
// whatever they would have
func (p *Provider) Refresh(ctx context.Context) error {
	if !p.pending.CompareAndSwap(false, true) {
		p.logger.Debug("Refresh already pending")
		return nil
	}
	select {
	case p.running <- struct{}{}:
		p.pending.Store(false)
	case <-ctx.Done():
		p.pending.Store(false)
		return ctx.Err()
	}
	defer func() { <-p.running }()
	return p.refresh(ctx)
}

// Snapshot fetches the interface description and projects it into a full
// replacement mutation without submitting it anywhere
func (p *Provider) Snapshot(ctx context.Context) (*api.Mutation, error) {
	if p.reader == nil || p.serviceURL == "" {
		return nil, ErrNotConfigured
	}

	url := p.serviceURL + p.openAPIPath
	p.logger.Info("Retrieving Serverless Workflow definitions", log.URL(url))

	data, err := p.reader.ReadURL(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchDescription, err)
	}

	doc, err := openapi.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParseDescription, err)
	}

	if err := doc.ResolveError(); err != nil {
		p.logger.Warn("Interface description has unresolved references",
			log.Error(err))
	}

	items := doc.Workflows()
	p.logger.Debug("Workflow description parsed",
		slog.String("title", doc.Title()),
		slog.Int("workflows", len(items)))

	locationKey := p.LocationKey()
	entities := make([]*api.DeferredEntity, 0, len(items))
	for _, item := range items {
		entities = append(entities, &api.DeferredEntity{
			Entity:      p.templateFor(doc, item),
			LocationKey: locationKey,
		})
	}

	return &api.Mutation{
		ID:       uuid.NewString(),
		Type:     api.MutationTypeFull,
		Entities: entities,
	}, nil
}

func (p *Provider) refresh(ctx context.Context) error {
	conn := p.conn.Load()
	if p.reader == nil || conn == nil || p.serviceURL == "" {
		return nil
	}

	m, err := p.Snapshot(ctx)
	if err != nil {
		return err
	}

	if err := conn.ApplyMutation(ctx, m); err != nil {
		return fmt.Errorf("%w: %w", ErrApplyMutation, err)
	}

	p.logger.Debug("Workflow snapshot applied",
		log.MutationID(m.ID),
		slog.Int("count", len(m.Entities)))
	return nil
}

func (p *Provider) templateFor(
	doc *openapi.Document, item *api.WorkflowItem,
) *api.TemplateEntity {
	return NewTemplateEntity(
		p.serviceURL, p.owner, item, p.parametersFor(doc, item.ID),
	)
}

func (p *Provider) parametersFor(
	doc *openapi.Document, id api.WorkflowID,
) *api.TemplateParameters {
	schema, err := doc.RequestSchema(id)
	if err != nil {
		p.logger.Error("Unable to locate OpenAPI schema for workflow",
			log.WorkflowID(id), log.Error(err))
		return nil
	}
	params, err := openapi.Parameters(schema)
	if err != nil {
		p.logger.Error("Unable to convert OpenAPI schema for workflow",
			log.WorkflowID(id), log.Error(err))
		return nil
	}
	return params
}
