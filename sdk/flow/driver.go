package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/walrusagents/blobflow/pkg/uploadmetrics"
	"github.com/walrusagents/blobflow/sdk/adapters/signer"
	"github.com/walrusagents/blobflow/sdk/adapters/storage"
	"github.com/walrusagents/blobflow/sdk/event"
)

type step struct {
	op  Op
	run func(f *Flow, ctx context.Context, epoch uint64) error
}

// steps are the driver's auto-rules: entering one of these states runs its
// step, and the step's outcome is the next transition. The driver stops in
// resting states.
var steps = map[State]step{
	StateEncoding:    {OpPrepare, (*Flow).encode},
	StateRegistering: {OpRegister, (*Flow).register},
	StateUploading:   {OpUpload, (*Flow).upload},
	StateCertifying:  {OpCertify, (*Flow).certify},
}

// drive runs auto-rules until the session rests. A Reset since the caller's
// operation started ends the drive with ErrSessionReset, even when the reset
// session already rests in idle.
func (f *Flow) drive(ctx context.Context, op Op, epoch uint64) error {
	for {
		f.mu.RLock()
		if f.epoch != epoch {
			err := f.violation(op, ErrSessionReset)
			f.mu.RUnlock()
			return err
		}
		st := f.s.state
		f.mu.RUnlock()

		s, ok := steps[st]
		if !ok {
			return nil
		}
		op = s.op
		if err := s.run(f, ctx, epoch); err != nil {
			return err
		}
	}
}

// snapshot copies the session a step works on, together with the signer.
// Reset replaces the session, so a step must not read f.s after this.
func (f *Flow) snapshot(op Op, epoch uint64) (session, signer.Signer, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.epoch != epoch {
		return session{}, nil, f.violation(op, ErrSessionReset)
	}
	return f.s, f.signer, nil
}

// fire applies one table transition. mutate edits a copy of the session; the
// copy is checked by the transition's guard before it is committed. Any
// rejection leaves the session untouched and is a protocol violation.
func (f *Flow) fire(ctx context.Context, epoch uint64, op Op, on Trigger, mutate func(*session) error) error {
	f.mu.Lock()
	if f.epoch != epoch {
		err := f.violation(op, ErrSessionReset)
		f.mu.Unlock()
		return err
	}
	from := f.s.state
	t, ok := lookup(from, on)
	if !ok {
		err := f.violation(op, fmt.Errorf("%s is not allowed in state %s", op, from))
		f.mu.Unlock()
		return err
	}

	next := f.s
	if mutate != nil {
		if err := mutate(&next); err != nil {
			verr := f.violation(op, err)
			f.mu.Unlock()
			return verr
		}
	}
	if t.guard != nil {
		if err := t.guard(&next); err != nil {
			verr := f.violation(op, err)
			f.mu.Unlock()
			return verr
		}
	}
	next.state = t.to
	next.err = nil
	f.s = next
	f.mu.Unlock()

	f.notify(ctx, from, t.to)
	return nil
}

// fail moves the session to error and returns the recorded *Error.
func (f *Flow) fail(ctx context.Context, epoch uint64, op Op, kind, cause error) error {
	f.mu.Lock()
	if f.epoch != epoch {
		err := f.violation(op, ErrSessionReset)
		f.mu.Unlock()
		return err
	}
	from := f.s.state
	e := &Error{
		Kind:           kind,
		Op:             op,
		State:          from,
		RegisterDigest: f.s.registerDigest,
		CertifyDigest:  f.s.pendingCertify,
		Err:            cause,
	}
	if _, ok := lookup(from, TriggerFail); !ok {
		f.mu.Unlock()
		return e
	}
	f.s.err = e
	f.s.state = StateError
	f.mu.Unlock()

	data := event.EventData{
		event.KeyOp:    string(op),
		event.KeyKind:  KindName(kind),
		event.KeyState: string(from),
	}
	if cause != nil {
		data[event.KeyError] = cause.Error()
	}
	if e.RegisterDigest != "" {
		data[event.KeyRegisterDigest] = e.RegisterDigest
	}
	if errors.Is(kind, ErrUserCancelled) {
		f.logger.Info(ctx, "Flow step cancelled by user", "sessionID", f.id, "op", op)
	} else {
		f.logger.Error(ctx, "Flow step failed", "sessionID", f.id, "op", op, "state", from, "error", cause)
	}
	f.notify(ctx, from, StateError)
	f.emitEvent(ctx, event.FlowFailed, data)
	return e
}

// violation must be called with f.mu held.
func (f *Flow) violation(op Op, cause error) *Error {
	return &Error{
		Kind:           ErrProtocolViolation,
		Op:             op,
		State:          f.s.state,
		RegisterDigest: f.s.registerDigest,
		Err:            cause,
	}
}

func (f *Flow) notify(ctx context.Context, from, to State) {
	if from == to {
		return
	}
	if f.observer != nil {
		f.observer(from, to)
	}
	f.logger.Debug(ctx, "Flow state changed", "sessionID", f.id, "from", from, "to", to)
	f.emitEvent(ctx, event.FlowStateChanged, event.EventData{
		event.KeyFrom: string(from),
		event.KeyTo:   string(to),
	})
}

func (f *Flow) emitEvent(ctx context.Context, eventType event.EventType, data event.EventData) {
	if f.onEvent != nil {
		f.onEvent(ctx, event.NewEvent(ctx, eventType, f.id, data))
	}
}

// logEvent logs msg with the event data and emits the event.
func (f *Flow) logEvent(ctx context.Context, evt event.EventType, msg string, data event.EventData) {
	kvs := []interface{}{"sessionID", f.id}
	for k, v := range data {
		kvs = append(kvs, string(k), v)
	}
	f.logger.Info(ctx, msg, kvs...)
	f.emitEvent(ctx, evt, data)
}

func (f *Flow) encode(ctx context.Context, epoch uint64) error {
	s, _, err := f.snapshot(OpPrepare, epoch)
	if err != nil {
		return err
	}

	bundle, err := f.storage.Encode(s.content, s.identifier, s.tags)
	if err != nil {
		return f.fail(ctx, epoch, OpPrepare, ErrEncoding, err)
	}
	if bundle == nil {
		return f.fail(ctx, epoch, OpPrepare, ErrEncoding, errNotEncoded)
	}
	return f.fire(ctx, epoch, OpPrepare, TriggerEncoded, func(next *session) error {
		next.bundle = bundle
		return nil
	})
}

func (f *Flow) register(ctx context.Context, epoch uint64) error {
	s, sg, err := f.snapshot(OpRegister, epoch)
	if err != nil {
		return err
	}
	bundle := s.bundle
	if sg == nil {
		return f.fail(ctx, epoch, OpRegister, ErrProtocolViolation, ErrSignerUnavailable)
	}
	owner := f.cfg.Owner
	if owner == "" {
		owner = sg.Address()
	}

	tx, err := f.storage.BuildRegisterTransaction(ctx, bundle, owner, f.cfg.Epochs, f.cfg.Deletable)
	if err != nil {
		return f.fail(ctx, epoch, OpRegister, ErrNetworkOrStorage, fmt.Errorf("build register transaction: %w", err))
	}
	rcpt, err := f.sign(ctx, sg, tx)
	if err != nil {
		return f.fail(ctx, epoch, OpRegister, classifySigning(err), err)
	}
	if rcpt.Digest == "" {
		return f.fail(ctx, epoch, OpRegister, ErrNetworkOrStorage, errEmptyDigest)
	}

	return f.fire(ctx, epoch, OpRegister, TriggerRegistered, func(next *session) error {
		next.registerDigest = rcpt.Digest
		return nil
	})
}

func (f *Flow) upload(ctx context.Context, epoch uint64) error {
	s, _, err := f.snapshot(OpUpload, epoch)
	if err != nil {
		return err
	}
	bundle, digest := s.bundle, s.registerDigest
	blobID := bundle.BlobID

	// captures are per session: two flows may upload the same blob
	ctx = uploadmetrics.WithCaptureKey(ctx, f.id)
	uploadmetrics.StartUploadCapture(f.id)
	defer func() {
		uploadmetrics.StopUploadCapture(f.id)
		uploadmetrics.ClearUploadSession(f.id)
	}()

	f.logEvent(ctx, event.UploadStarted, "Uploading slivers", event.EventData{
		event.KeyBlobID:         blobID,
		event.KeySlivers:        len(bundle.Slivers),
		event.KeyRegisterDigest: digest,
	})
	if _, err := f.storage.UploadEncoded(ctx, bundle, digest); err != nil {
		return f.fail(ctx, epoch, OpUpload, ErrNetworkOrStorage, err)
	}
	f.logEvent(ctx, event.UploadCompleted, "Upload acknowledged", event.EventData{
		event.KeyBlobID: blobID,
		event.KeyUpload: uploadmetrics.BuildUploadPayload(f.id),
	})

	return f.fire(ctx, epoch, OpUpload, TriggerUploaded, func(next *session) error {
		next.uploaded = true
		return nil
	})
}

func (f *Flow) certify(ctx context.Context, epoch uint64) error {
	s, sg, err := f.snapshot(OpCertify, epoch)
	if err != nil {
		return err
	}
	bundle, digest := s.bundle, s.pendingCertify

	if digest == "" {
		if sg == nil {
			return f.fail(ctx, epoch, OpCertify, ErrProtocolViolation, ErrSignerUnavailable)
		}
		tx, err := f.storage.BuildCertifyTransaction(ctx, bundle)
		if err != nil {
			return f.fail(ctx, epoch, OpCertify, ErrNetworkOrStorage, fmt.Errorf("build certify transaction: %w", err))
		}
		rcpt, err := f.sign(ctx, sg, tx)
		switch {
		case err == nil:
			digest = rcpt.Digest
		case errors.Is(err, signer.ErrAlreadyCertified):
			digest = rcpt.Digest
			if digest == "" {
				raw, encErr := tx.Bytes()
				if encErr != nil {
					return f.fail(ctx, epoch, OpCertify, ErrNetworkOrStorage, encErr)
				}
				digest = signer.TxDigest(raw)
			}
			f.logger.Info(ctx, "Blob was already certified", "sessionID", f.id, "blobID", bundle.BlobID)
		default:
			return f.fail(ctx, epoch, OpCertify, classifySigning(err), err)
		}
		if digest == "" {
			return f.fail(ctx, epoch, OpCertify, ErrNetworkOrStorage, errEmptyDigest)
		}

		f.mu.Lock()
		if f.epoch == epoch {
			f.s.pendingCertify = digest
		}
		f.mu.Unlock()
	}

	ids, err := f.storage.ListResultIdentifiers(ctx, bundle)
	if err != nil {
		return f.fail(ctx, epoch, OpCertify, ErrNetworkOrStorage, fmt.Errorf("list result identifiers: %w", err))
	}
	if len(ids) == 0 {
		return f.fail(ctx, epoch, OpCertify, ErrNetworkOrStorage, errNoResultIDs)
	}

	err = f.fire(ctx, epoch, OpCertify, TriggerCertified, func(next *session) error {
		next.certifyDigest = digest
		next.resultIDs = append([]string(nil), ids...)
		next.pendingCertify = ""
		return nil
	})
	if err != nil {
		return err
	}
	f.logEvent(ctx, event.FlowCompleted, "Flow complete", event.EventData{
		event.KeyBlobID:        bundle.BlobID,
		event.KeyCertifyDigest: digest,
		event.KeyResultIDs:     ids,
	})
	return nil
}

// sign is the single place a signature is requested.
func (f *Flow) sign(ctx context.Context, sg signer.Signer, tx *storage.UnsignedTx) (signer.Receipt, error) {
	f.logEvent(ctx, event.SigningRequested, "Requesting signature", event.EventData{
		event.KeyTxKind: string(tx.Kind),
		event.KeyBlobID: tx.BlobID,
	})
	rcpt, err := sg.SignAndSubmit(ctx, tx)
	if err != nil && signer.IsDeclined(err) {
		f.logEvent(ctx, event.SigningDeclined, "Signature declined", event.EventData{
			event.KeyTxKind: string(tx.Kind),
			event.KeyReason: err.Error(),
		})
	}
	return rcpt, err
}
