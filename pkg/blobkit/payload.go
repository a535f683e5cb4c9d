package blobkit

import (
	"unicode/utf8"

	"github.com/walrusagents/blobflow/pkg/errors"

	jsoniter "github.com/json-iterator/go"
)

// canonicalJSON sorts map keys so equal documents encode to equal bytes.
var canonicalJSON = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// Kind discriminates payload variants.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindJSON
	KindText
	KindBinary
)

func (k Kind) String() string {
	switch k {
	case KindJSON:
		return "json"
	case KindText:
		return "text"
	case KindBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// ContentType is the media type recorded alongside the blob.
func (k Kind) ContentType() string {
	switch k {
	case KindJSON:
		return "application/json"
	case KindText:
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

var (
	ErrEmptyPayload   = errors.New("payload is empty")
	ErrUnknownKind    = errors.New("unknown payload kind")
	ErrInvalidText    = errors.New("text payload is not valid UTF-8")
	ErrInvalidJSON    = errors.New("json payload is not a valid document")
	ErrInvalidTagKey  = errors.New("tag key must be non-empty and at most 64 bytes")
	ErrTooManyTags    = errors.New("too many tags")
	ErrTagValueTooBig = errors.New("tag value exceeds 256 bytes")
)

const (
	maxTags        = 32
	maxTagKeyLen   = 64
	maxTagValueLen = 256
)

// Payload is the content handed to Encode. Build one with JSON, RawJSON, Text
// or Binary; the zero value is invalid.
type Payload struct {
	kind  Kind
	value interface{}
	raw   []byte
}

// JSON wraps a value that is marshalled to canonical JSON.
func JSON(v interface{}) Payload { return Payload{kind: KindJSON, value: v} }

// RawJSON wraps an already-serialised JSON document. It is re-encoded
// canonically so key order in the input does not change the blob id.
func RawJSON(b []byte) Payload { return Payload{kind: KindJSON, raw: b} }

// Text wraps a UTF-8 string.
func Text(s string) Payload { return Payload{kind: KindText, raw: []byte(s)} }

// Binary wraps opaque bytes.
func Binary(b []byte) Payload { return Payload{kind: KindBinary, raw: b} }

// Kind returns the payload variant.
func (p Payload) Kind() Kind { return p.kind }

// Validate checks the payload without encoding it.
func (p Payload) Validate() error {
	_, err := p.Bytes()
	return err
}

// Bytes returns the canonical byte form of the payload.
func (p Payload) Bytes() ([]byte, error) {
	switch p.kind {
	case KindJSON:
		var doc interface{}
		if p.raw != nil {
			if len(p.raw) == 0 {
				return nil, ErrEmptyPayload
			}
			if err := canonicalJSON.Unmarshal(p.raw, &doc); err != nil {
				return nil, errors.Errorf("%w: %v", ErrInvalidJSON, err)
			}
		} else {
			doc = p.value
		}
		if doc == nil {
			return nil, ErrEmptyPayload
		}
		b, err := canonicalJSON.Marshal(doc)
		if err != nil {
			return nil, errors.Errorf("%w: %v", ErrInvalidJSON, err)
		}
		return b, nil
	case KindText:
		if len(p.raw) == 0 {
			return nil, ErrEmptyPayload
		}
		if !utf8.Valid(p.raw) {
			return nil, ErrInvalidText
		}
		return p.raw, nil
	case KindBinary:
		if len(p.raw) == 0 {
			return nil, ErrEmptyPayload
		}
		return p.raw, nil
	default:
		return nil, ErrUnknownKind
	}
}

// ValidateTags enforces the tag limits the storage network applies to blob
// attributes.
func ValidateTags(tags map[string]string) error {
	if len(tags) > maxTags {
		return errors.Errorf("%w: %d > %d", ErrTooManyTags, len(tags), maxTags)
	}
	for k, v := range tags {
		if k == "" || len(k) > maxTagKeyLen {
			return errors.Errorf("%w: %q", ErrInvalidTagKey, k)
		}
		if len(v) > maxTagValueLen {
			return errors.Errorf("%w: key %q", ErrTagValueTooBig, k)
		}
	}
	return nil
}
