// Package codec serializes the container records stored at state addresses.
// Encoding is canonical JSON: struct fields marshal in declaration order and
// map keys sort, so equal containers always produce equal bytes across nodes.
package codec

import (
	"encoding/json"
	"fmt"
)

// CorruptStateError reports container bytes that do not parse as the expected
// schema. In a correctly functioning ledger this never happens; it is a fatal
// condition, not a validation failure.
type CorruptStateError struct {
	Address string
	Err     error
}

func (e CorruptStateError) Error() string {
	return fmt.Sprintf("corrupt state at %s: %v", e.Address, e.Err)
}

func (e CorruptStateError) Unwrap() error { return e.Err }

// Encode marshals a container to its canonical byte form.
func Encode(container any) ([]byte, error) {
	data, err := json.Marshal(container)
	if err != nil {
		return nil, fmt.Errorf("encode container: %w", err)
	}
	return data, nil
}

// Decode unmarshals container bytes into out. Empty or absent input leaves
// out at its zero value: an address with no data decodes to an empty
// container, which is how "no relationship yet" is represented.
func Decode(addr string, data []byte, out any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return CorruptStateError{Address: addr, Err: err}
	}
	return nil
}
