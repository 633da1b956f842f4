// Package shard implements SPEC_FULL.md §4.C: the shard/op JSON codec and
// the greedy bin-packing chunker that keeps each encrypted shard payload
// under the creation size budget.
package shard

import (
	"encoding/json"
	"fmt"

	"github.com/sharme-dev/sharme/internal/sharmeerrors"
)

// Type identifies the kind of shard carried by an archive transaction.
type Type string

const (
	TypeDelta    Type = "delta"
	TypeSnapshot Type = "snapshot"
	TypeIdentity Type = "identity"
)

// Fact mirrors the local store's fact row minus the local-only Dirty flag,
// matching SPEC_FULL.md §3's Fact model. UnknownFields carries any JSON
// object members this decoder doesn't recognize, so a shard downloaded
// from a newer client re-emits unchanged instead of silently dropping
// fields it can't interpret (SPEC_FULL.md §4.C).
type Fact struct {
	ID            string   `json:"id"`
	Scope         string   `json:"scope"`
	Key           string   `json:"key"`
	Value         string   `json:"value"`
	Tags          []string `json:"tags"`
	Confidence    float64  `json:"confidence"`
	SourceSession string   `json:"source_session,omitempty"`
	Created       string   `json:"created"`
	LastConfirmed string   `json:"last_confirmed"`
	AccessCount   int64    `json:"access_count"`

	UnknownFields map[string]json.RawMessage `json:"-"`
}

var factKnownFields = map[string]bool{
	"id": true, "scope": true, "key": true, "value": true, "tags": true,
	"confidence": true, "source_session": true, "created": true,
	"last_confirmed": true, "access_count": true,
}

// MarshalJSON re-emits f's known fields plus any UnknownFields, so a round
// tripped Fact carries forward members this code doesn't understand.
func (f Fact) MarshalJSON() ([]byte, error) {
	type alias Fact
	b, err := json.Marshal(alias(f))
	if err != nil {
		return nil, err
	}
	if len(f.UnknownFields) == 0 {
		return b, nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	for k, v := range f.UnknownFields {
		m[k] = v
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes f's known fields, then a second pass captures any
// object members outside that set into UnknownFields.
func (f *Fact) UnmarshalJSON(b []byte) error {
	type alias Fact
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*f = Fact(a)
	f.UnknownFields = nil

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		if factKnownFields[k] {
			continue
		}
		if f.UnknownFields == nil {
			f.UnknownFields = map[string]json.RawMessage{}
		}
		f.UnknownFields[k] = v
	}
	return nil
}

// Op is one operation in a shard's ordered operation list: either an
// upsert of a Fact or a delete by key. Exactly one of Fact/Key is set,
// selected by Kind. UnknownFields preserves any op-level members this
// decoder doesn't recognize (SPEC_FULL.md §4.C).
type Op struct {
	Kind string `json:"op"`
	Fact *Fact  `json:"fact,omitempty"`
	Key  string `json:"key,omitempty"`

	UnknownFields map[string]json.RawMessage `json:"-"`
}

var opKnownFields = map[string]bool{"op": true, "fact": true, "key": true}

// MarshalJSON re-emits op's known fields plus any UnknownFields.
func (op Op) MarshalJSON() ([]byte, error) {
	type alias Op
	b, err := json.Marshal(alias(op))
	if err != nil {
		return nil, err
	}
	if len(op.UnknownFields) == 0 {
		return b, nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	for k, v := range op.UnknownFields {
		m[k] = v
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes op's known fields, then a second pass captures any
// object members outside that set into UnknownFields.
func (op *Op) UnmarshalJSON(b []byte) error {
	type alias Op
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*op = Op(a)
	op.UnknownFields = nil

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		if opKnownFields[k] {
			continue
		}
		if op.UnknownFields == nil {
			op.UnknownFields = map[string]json.RawMessage{}
		}
		op.UnknownFields[k] = v
	}
	return nil
}

const (
	opUpsert = "upsert"
	opDelete = "delete"
)

// UpsertOp builds an upsert op from f, stripping any local-only fields.
func UpsertOp(f Fact) Op {
	fc := f
	return Op{Kind: opUpsert, Fact: &fc}
}

// DeleteOp builds a delete op for key.
func DeleteOp(key string) Op {
	return Op{Kind: opDelete, Key: key}
}

// Shard is the plaintext JSON payload carried inside the AEAD envelope for
// delta and snapshot shards.
type Shard struct {
	ShardVersion uint32 `json:"shard_version"`
	ShardID      string `json:"shard_id"`
	Type         Type   `json:"type"`
	Operations   []Op   `json:"operations"`
}

// Serialize produces canonical UTF-8 JSON for s.
func Serialize(s Shard) ([]byte, error) {
	return json.Marshal(s)
}

// Deserialize parses b into a Shard, strictly validating op shape: unknown
// op discriminators are rejected outright (SPEC_FULL.md §4.G ingress
// policy), as are upsert ops missing a fact or delete ops missing a key.
func Deserialize(b []byte) (Shard, error) {
	var s Shard
	if err := json.Unmarshal(b, &s); err != nil {
		return Shard{}, sharmeerrors.Wrap(sharmeerrors.StoreCorruption, "malformed shard json", err)
	}
	for i, op := range s.Operations {
		switch op.Kind {
		case opUpsert:
			if op.Fact == nil || op.Fact.Key == "" {
				return Shard{}, sharmeerrors.New(sharmeerrors.StoreCorruption, fmt.Sprintf("op %d: upsert missing fact", i))
			}
		case opDelete:
			if op.Key == "" {
				return Shard{}, sharmeerrors.New(sharmeerrors.StoreCorruption, fmt.Sprintf("op %d: delete missing key", i))
			}
		default:
			return Shard{}, sharmeerrors.New(sharmeerrors.StoreCorruption, fmt.Sprintf("op %d: unknown op %q", i, op.Kind))
		}
	}
	return s, nil
}
