package models

import (
	"bytes"
	"encoding/json"
)

// Optional is a patch field with three states: absent, explicit null, or a
// value. It lets a partial update distinguish "leave alone" from "clear".
//
//   - Set=false:             absent, keep the current value
//   - Set=true, Valid=false: null, clear the value
//   - Set=true, Valid=true:  replace with Value
type Optional[T any] struct {
	Set   bool
	Valid bool
	Value T
}

// Absent returns an Optional that leaves the field untouched
func Absent[T any]() Optional[T] {
	return Optional[T]{}
}

// Null returns an Optional that clears the field
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// Present returns an Optional carrying v
func Present[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Valid: true, Value: v}
}

// Ptr converts the Optional to the nullable pointer stored on a Card
func (o Optional[T]) Ptr() *T {
	if !o.Set || !o.Valid {
		return nil
	}
	v := o.Value
	return &v
}

// MarshalJSON emits null for absent or null fields. Patch omits absent fields
// itself, so absent only reaches here when marshaled directly.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set || !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// UnmarshalJSON is only invoked when the key is present, so any call marks
// the field as Set; a JSON null leaves Valid false.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Valid = false
		var zero T
		o.Value = zero
		return nil
	}
	if err := json.Unmarshal(data, &o.Value); err != nil {
		return err
	}
	o.Valid = true
	return nil
}
