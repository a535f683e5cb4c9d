package flow

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/walrusagents/blobflow/pkg/blobkit"
	"github.com/walrusagents/blobflow/sdk/adapters/signer"
	"github.com/walrusagents/blobflow/sdk/adapters/storage"
	"github.com/walrusagents/blobflow/sdk/event"
	"github.com/walrusagents/blobflow/sdk/log"

	"github.com/google/uuid"
)

// EventCallback receives every event a flow emits, synchronously.
type EventCallback func(ctx context.Context, e event.Event)

// StateObserver is called after every committed transition, synchronously and
// outside the session lock.
type StateObserver func(from, to State)

// Config holds the register transaction parameters.
type Config struct {
	// Owner is the address recorded as blob owner. Empty means the connected
	// signer's address.
	Owner     string
	Epochs    uint32
	Deletable bool
}

type Option func(*Flow)

func WithSigner(s signer.Signer) Option { return func(f *Flow) { f.signer = s } }

func WithLogger(l log.Logger) Option { return func(f *Flow) { f.logger = l } }

func WithEventCallback(cb EventCallback) Option { return func(f *Flow) { f.onEvent = cb } }

func WithStateObserver(o StateObserver) Option { return func(f *Flow) { f.observer = o } }

type session struct {
	state      State
	content    blobkit.Payload
	identifier string
	tags       map[string]string

	bundle         *blobkit.Bundle
	registerDigest string
	uploaded       bool
	pendingCertify string // certify signed, result ids not yet listed
	uploadRetries  int
	certifyDigest  string
	resultIDs      []string
	err            *Error
}

// Flow drives one blob through encode, register, upload and certify. Each
// signing step runs only inside the caller's RegisterOnChain or CertifyOnChain
// call. Operations on one Flow must not overlap; an overlapping call fails
// with ErrProtocolViolation instead of blocking.
type Flow struct {
	id       string
	storage  storage.Client
	cfg      Config
	logger   log.Logger
	onEvent  EventCallback
	observer StateObserver

	busy atomic.Bool

	mu     sync.RWMutex
	signer signer.Signer
	epoch  uint64 // bumped by Reset
	s      session
}

// New creates an idle flow. An empty id gets a random one.
func New(id string, client storage.Client, cfg Config, opts ...Option) (*Flow, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Epochs == 0 {
		return nil, fmt.Errorf("epochs must be positive")
	}
	if id == "" {
		id = uuid.NewString()
	}
	f := &Flow{
		id:      id,
		storage: client,
		cfg:     cfg,
		s:       session{state: StateIdle},
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = log.NewNoopLogger()
	}
	return f, nil
}

func (f *Flow) ID() string { return f.id }

func (f *Flow) State() State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.s.state
}

// ConnectSigner installs (or with nil, removes) the signing capability.
func (f *Flow) ConnectSigner(s signer.Signer) {
	f.mu.Lock()
	f.signer = s
	f.mu.Unlock()
}

// Session is a point-in-time copy of a flow's observable fields.
type Session struct {
	ID             string
	State          State
	Identifier     string
	Tags           map[string]string
	Kind           blobkit.Kind
	BlobID         string
	CID            string
	Size           int64
	RegisterDigest string
	Uploaded       bool
	CertifyDigest  string
	ResultIDs      []string
	// Err is the last failure, nil unless State is StateError.
	Err *Error
}

func (f *Flow) Session() Session {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := Session{
		ID:             f.id,
		State:          f.s.state,
		Identifier:     f.s.identifier,
		RegisterDigest: f.s.registerDigest,
		Uploaded:       f.s.uploaded,
		CertifyDigest:  f.s.certifyDigest,
		Err:            f.s.err,
	}
	if f.s.tags != nil {
		out.Tags = make(map[string]string, len(f.s.tags))
		for k, v := range f.s.tags {
			out.Tags[k] = v
		}
	}
	if f.s.resultIDs != nil {
		out.ResultIDs = append([]string(nil), f.s.resultIDs...)
	}
	if b := f.s.bundle; b != nil {
		out.Kind = b.Kind
		out.BlobID = b.BlobID
		out.CID = b.CID
		out.Size = b.Size
	}
	return out
}

// acquire claims the session for one operation.
func (f *Flow) acquire(op Op) (release func(), err error) {
	if !f.busy.CompareAndSwap(false, true) {
		f.mu.RLock()
		defer f.mu.RUnlock()
		return nil, f.violation(op, ErrBusy)
	}
	return func() { f.busy.Store(false) }, nil
}

func (f *Flow) currentEpoch() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.epoch
}

// Prepare encodes the content locally. No network access, no signature.
// Precondition: idle.
func (f *Flow) Prepare(ctx context.Context, content blobkit.Payload, identifier string, tags map[string]string) error {
	release, err := f.acquire(OpPrepare)
	if err != nil {
		return err
	}
	defer release()

	epoch := f.currentEpoch()
	copied := make(map[string]string, len(tags))
	for k, v := range tags {
		copied[k] = v
	}
	err = f.fire(ctx, epoch, OpPrepare, TriggerPrepare, func(s *session) error {
		s.content = content
		s.identifier = identifier
		s.tags = copied
		return nil
	})
	if err != nil {
		return err
	}
	return f.drive(ctx, OpPrepare, epoch)
}

// RegisterOnChain signs and submits the register transaction, then uploads
// the slivers without further input. Precondition: ready-to-register, or
// error with nothing registered yet, plus a connected signer.
func (f *Flow) RegisterOnChain(ctx context.Context) error {
	release, err := f.acquire(OpRegister)
	if err != nil {
		return err
	}
	defer release()

	epoch := f.currentEpoch()
	if err := f.fire(ctx, epoch, OpRegister, TriggerRegister, f.requireSigner); err != nil {
		return err
	}
	return f.drive(ctx, OpRegister, epoch)
}

// UploadToStorage pushes the slivers again. RegisterOnChain already does this
// once; call it directly only to retry. Precondition: registerDigest is set and
// the session is ready-to-certify or error.
func (f *Flow) UploadToStorage(ctx context.Context) error {
	release, err := f.acquire(OpUpload)
	if err != nil {
		return err
	}
	defer release()

	epoch := f.currentEpoch()
	var (
		from       State
		prev       *Error
		attempt    int
		registered string
	)
	err = f.fire(ctx, epoch, OpUpload, TriggerUpload, func(s *session) error {
		from, prev, registered = s.state, s.err, s.registerDigest
		s.uploadRetries++
		attempt = s.uploadRetries
		return nil
	})
	if err != nil {
		return err
	}

	data := event.EventData{
		event.KeyFrom:           string(from),
		event.KeyAttempt:        attempt,
		event.KeyRegisterDigest: registered,
	}
	if prev != nil && prev.Err != nil {
		data[event.KeyError] = prev.Err.Error()
	}
	f.logEvent(ctx, event.UploadRetry, "Retrying upload", data)
	return f.drive(ctx, OpUpload, epoch)
}

// CertifyOnChain signs and submits the certify transaction and collects the
// result identifiers. Precondition: ready-to-certify, or error after an
// acknowledged upload, plus a connected signer.
func (f *Flow) CertifyOnChain(ctx context.Context) error {
	release, err := f.acquire(OpCertify)
	if err != nil {
		return err
	}
	defer release()

	epoch := f.currentEpoch()
	err = f.fire(ctx, epoch, OpCertify, TriggerCertify, func(s *session) error {
		if s.pendingCertify != "" {
			return nil // only the result lookup is left
		}
		return f.requireSigner(s)
	})
	if err != nil {
		return err
	}
	return f.drive(ctx, OpCertify, epoch)
}

// Reset discards the session and returns to idle. It is always allowed and
// never touches the ledger. An operation still in flight finishes with
// ErrSessionReset and its result is dropped.
func (f *Flow) Reset(ctx context.Context) {
	f.mu.Lock()
	from := f.s.state
	f.epoch++
	f.s = session{state: StateIdle}
	f.mu.Unlock()

	f.logEvent(ctx, event.FlowReset, "Flow reset", event.EventData{event.KeyFrom: string(from)})
	f.notify(ctx, from, StateIdle)
}

// requireSigner runs under f.mu.
func (f *Flow) requireSigner(*session) error {
	if f.signer == nil {
		return ErrSignerUnavailable
	}
	return nil
}
