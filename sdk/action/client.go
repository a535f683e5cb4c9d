package action

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/walrusagents/blobflow/pkg/blobkit"
	"github.com/walrusagents/blobflow/pkg/uploadmetrics"
	"github.com/walrusagents/blobflow/sdk/adapters/signer"
	"github.com/walrusagents/blobflow/sdk/adapters/storage"
	"github.com/walrusagents/blobflow/sdk/config"
	"github.com/walrusagents/blobflow/sdk/event"
	"github.com/walrusagents/blobflow/sdk/fallback"
	"github.com/walrusagents/blobflow/sdk/flow"
	"github.com/walrusagents/blobflow/sdk/log"
)

const eventWorkers = 16

type Client interface {
	// NewFlow creates an idle flow wired to the client's storage client,
	// signer and event bus.
	NewFlow(ctx context.Context) (*flow.Flow, error)

	GetFlow(ctx context.Context, id string) (*flow.Flow, bool)

	// Flows returns a snapshot of every tracked flow, ordered by id.
	Flows(ctx context.Context) []flow.Session

	DeleteFlow(ctx context.Context, id string) error

	// ConnectSigner sets the signer for existing and future flows.
	ConnectSigner(ctx context.Context, s signer.Signer)

	// CheckNetwork reports whether the storage network can be reached.
	CheckNetwork(ctx context.Context) error

	// SaveFallback stores metadata locally. It bypasses the flow entirely and
	// is meant for when CheckNetwork fails.
	SaveFallback(ctx context.Context, identifier string, payload blobkit.Payload, tags map[string]string) (fallback.Record, error)

	Fallback() fallback.Store

	SubscribeToEvents(eventType event.EventType, handler event.Handler)

	SubscribeToAllEvents(handler event.Handler)

	Close() error
}

type ClientImpl struct {
	config   config.Config
	storage  storage.Client
	fallback fallback.Store
	bus      *event.Bus
	logger   log.Logger

	mu     sync.RWMutex
	signer signer.Signer
	flows  map[string]*flow.Flow
	closed bool
}

var _ Client = (*ClientImpl)(nil)

func NewClient(
	config config.Config,
	storageClient storage.Client,
	store fallback.Store,
	sg signer.Signer,
	logger log.Logger,
) (*ClientImpl, error) {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	if storageClient == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if config.Storage.Epochs == 0 {
		return nil, fmt.Errorf("storage epochs must be positive")
	}

	c := &ClientImpl{
		config:   config,
		storage:  storageClient,
		fallback: store,
		bus:      event.NewBus(logger, eventWorkers),
		logger:   logger,
		signer:   sg,
		flows:    make(map[string]*flow.Flow),
	}
	c.bus.SubscribeAll(observeMetrics)

	logger.Info(context.Background(), "Action client created",
		"epochs", config.Storage.Epochs,
		"deletable", config.Storage.Deletable,
		"signer", sg != nil,
		"fallback", store != nil)
	return c, nil
}

// observeMetrics feeds flow events into the Prometheus collectors.
func observeMetrics(e event.Event) {
	switch e.Type {
	case event.FlowStateChanged:
		from, _ := e.Data[event.KeyFrom].(string)
		to, _ := e.Data[event.KeyTo].(string)
		uploadmetrics.ObserveTransition(from, to)
	case event.FlowFailed:
		op, _ := e.Data[event.KeyOp].(string)
		kind, _ := e.Data[event.KeyKind].(string)
		uploadmetrics.ObserveFailure(op, kind)
	}
}

func (ac *ClientImpl) NewFlow(ctx context.Context) (*flow.Flow, error) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	if ac.closed {
		return nil, ErrClientClosed
	}

	f, err := flow.New("", ac.storage,
		flow.Config{
			Owner:     ac.config.Account.Address,
			Epochs:    ac.config.Storage.Epochs,
			Deletable: ac.config.Storage.Deletable,
		},
		flow.WithSigner(ac.signer),
		flow.WithLogger(ac.logger),
		flow.WithEventCallback(func(_ context.Context, e event.Event) { ac.bus.Publish(e) }),
	)
	if err != nil {
		ac.logger.Error(ctx, "Failed to create flow", "error", err)
		return nil, fmt.Errorf("failed to create flow: %w", err)
	}
	ac.flows[f.ID()] = f

	ac.logger.Info(ctx, "Flow created", "sessionID", f.ID())
	return f, nil
}

func (ac *ClientImpl) GetFlow(ctx context.Context, id string) (*flow.Flow, bool) {
	ac.mu.RLock()
	f, ok := ac.flows[id]
	ac.mu.RUnlock()
	if !ok {
		ac.logger.Debug(ctx, "Flow not found", "sessionID", id)
	}
	return f, ok
}

func (ac *ClientImpl) Flows(ctx context.Context) []flow.Session {
	ac.mu.RLock()
	out := make([]flow.Session, 0, len(ac.flows))
	for _, f := range ac.flows {
		out = append(out, f.Session())
	}
	ac.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	ac.logger.Debug(ctx, "Listed flows", "count", len(out))
	return out
}

// DeleteFlow stops tracking a flow. Nothing on the ledger is affected.
func (ac *ClientImpl) DeleteFlow(ctx context.Context, id string) error {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	if _, ok := ac.flows[id]; !ok {
		return fmt.Errorf("%w: %s", ErrFlowNotFound, id)
	}
	delete(ac.flows, id)
	ac.logger.Debug(ctx, "Flow deleted", "sessionID", id)
	return nil
}

func (ac *ClientImpl) ConnectSigner(ctx context.Context, s signer.Signer) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	ac.signer = s
	for _, f := range ac.flows {
		f.ConnectSigner(s)
	}
	if s != nil {
		ac.logger.Info(ctx, "Signer connected", "address", s.Address(), "flows", len(ac.flows))
	} else {
		ac.logger.Info(ctx, "Signer disconnected")
	}
}

func (ac *ClientImpl) CheckNetwork(ctx context.Context) error {
	if err := ac.storage.Ping(ctx); err != nil {
		ac.logger.Warn(ctx, "Storage network unreachable", "error", err)
		return fmt.Errorf("storage network check failed: %w", err)
	}
	return nil
}

func (ac *ClientImpl) SaveFallback(ctx context.Context, identifier string, payload blobkit.Payload, tags map[string]string) (fallback.Record, error) {
	if identifier == "" {
		return fallback.Record{}, ErrEmptyIdentifier
	}
	if ac.fallback == nil {
		return fallback.Record{}, ErrNoFallbackStore
	}
	data, err := payload.Bytes()
	if err != nil {
		return fallback.Record{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := blobkit.ValidateTags(tags); err != nil {
		return fallback.Record{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	rec, err := ac.fallback.Put(ctx, identifier, data, tags)
	if err != nil {
		ac.logger.Error(ctx, "Failed to save fallback record", "identifier", identifier, "error", err)
		return fallback.Record{}, fmt.Errorf("failed to save fallback record: %w", err)
	}

	ac.logger.Info(ctx, "Metadata saved to fallback store", "key", rec.Key, "identifier", identifier)
	ac.bus.Publish(event.NewEvent(ctx, event.FallbackSaved, rec.Key, event.EventData{
		event.KeyIdentifier: identifier,
		event.KeyBytesTotal: len(data),
	}))
	return rec, nil
}

func (ac *ClientImpl) Fallback() fallback.Store { return ac.fallback }

// SubscribeToEvents registers a handler for specific event types
func (ac *ClientImpl) SubscribeToEvents(eventType event.EventType, handler event.Handler) {
	ac.logger.Debug(context.Background(), "Subscribing to events", "eventType", eventType)
	ac.bus.Subscribe(eventType, handler)
}

// SubscribeToAllEvents registers a handler for all events
func (ac *ClientImpl) SubscribeToAllEvents(handler event.Handler) {
	ac.logger.Debug(context.Background(), "Subscribing to all events")
	ac.bus.SubscribeAll(handler)
}

// Close waits for pending event handlers and closes the fallback store.
func (ac *ClientImpl) Close() error {
	ac.mu.Lock()
	if ac.closed {
		ac.mu.Unlock()
		return nil
	}
	ac.closed = true
	ac.mu.Unlock()

	ac.bus.Close()
	if ac.fallback != nil {
		if err := ac.fallback.Close(); err != nil {
			return fmt.Errorf("close fallback store: %w", err)
		}
	}
	return nil
}
