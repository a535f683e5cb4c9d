package flow

// State is where a session sits in the register/upload/certify sequence.
type State string

const (
	StateIdle            State = "idle"
	StateEncoding        State = "encoding"
	StateReadyToRegister State = "ready-to-register"
	StateRegistering     State = "registering"
	StateUploading       State = "uploading"
	StateReadyToCertify  State = "ready-to-certify"
	StateCertifying      State = "certifying"
	StateComplete        State = "complete"
	StateError           State = "error"
)

func (s State) String() string { return string(s) }

// Terminal reports whether only Reset (or an explicit retry) leaves s.
func (s State) Terminal() bool { return s == StateComplete || s == StateError }

// Resting reports whether the driver stops in s and waits for the caller.
func (s State) Resting() bool {
	switch s {
	case StateIdle, StateReadyToRegister, StateReadyToCertify, StateComplete, StateError:
		return true
	}
	return false
}

// Trigger names an edge in the transition table.
type Trigger string

const (
	TriggerPrepare    Trigger = "prepare"
	TriggerEncoded    Trigger = "encoded"
	TriggerRegister   Trigger = "register"
	TriggerRegistered Trigger = "registered"
	TriggerUpload     Trigger = "upload"
	TriggerUploaded   Trigger = "uploaded"
	TriggerCertify    Trigger = "certify"
	TriggerCertified  Trigger = "certified"
	TriggerFail       Trigger = "fail"
	TriggerReset      Trigger = "reset"
)

// guard checks the session as it would look after the transition.
type guard func(s *session) error

type transition struct {
	from  State
	on    Trigger
	to    State
	guard guard
}

// transitions is the complete table. Fail and Reset are handled generically:
// fail leaves any non-terminal state, reset leaves every state.
var transitions = []transition{
	{StateIdle, TriggerPrepare, StateEncoding, needContent},
	{StateEncoding, TriggerEncoded, StateReadyToRegister, needBundle},

	{StateReadyToRegister, TriggerRegister, StateRegistering, needBundle},
	{StateError, TriggerRegister, StateRegistering, canRetryRegister},
	{StateRegistering, TriggerRegistered, StateUploading, needRegisterDigest},

	{StateUploading, TriggerUploaded, StateReadyToCertify, needUploaded},
	{StateReadyToCertify, TriggerUpload, StateUploading, needRegisterDigest},
	{StateError, TriggerUpload, StateUploading, canRetryUpload},

	{StateReadyToCertify, TriggerCertify, StateCertifying, needUploaded},
	{StateError, TriggerCertify, StateCertifying, canRetryCertify},
	{StateCertifying, TriggerCertified, StateComplete, needResult},
}

func lookup(from State, on Trigger) (transition, bool) {
	for _, t := range transitions {
		if t.from == from && t.on == on {
			return t, true
		}
	}
	switch on {
	case TriggerFail:
		if !from.Terminal() {
			return transition{from: from, on: on, to: StateError}, true
		}
	case TriggerReset:
		return transition{from: from, on: on, to: StateIdle}, true
	}
	return transition{}, false
}

func needContent(s *session) error {
	if s.identifier == "" {
		return errMissingIdentifier
	}
	return nil
}

func needBundle(s *session) error {
	if s.bundle == nil {
		return errNotEncoded
	}
	return nil
}

func needRegisterDigest(s *session) error {
	if s.registerDigest == "" {
		return errNotRegistered
	}
	return nil
}

func needUploaded(s *session) error {
	if err := needRegisterDigest(s); err != nil {
		return err
	}
	if !s.uploaded {
		return errNotUploaded
	}
	return nil
}

func needResult(s *session) error {
	if s.certifyDigest == "" {
		return errNotCertified
	}
	if len(s.resultIDs) == 0 {
		return errNoResultIDs
	}
	return nil
}

// Register may be re-attempted after a failure only while nothing is durable.
func canRetryRegister(s *session) error {
	if err := needBundle(s); err != nil {
		return err
	}
	if s.registerDigest != "" {
		return errAlreadyRegistered
	}
	return nil
}

func canRetryUpload(s *session) error {
	if err := needRegisterDigest(s); err != nil {
		return err
	}
	if s.certifyDigest != "" || s.pendingCertify != "" {
		return errAlreadyCertified
	}
	return nil
}

func canRetryCertify(s *session) error {
	if err := needUploaded(s); err != nil {
		return err
	}
	if s.certifyDigest != "" {
		return errAlreadyCertified
	}
	return nil
}
