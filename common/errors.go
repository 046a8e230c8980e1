// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package common

import "fmt"

// TransportError is returned when a bus or analog front-end transaction did
// not complete. These are never retried by the drivers; repeated failures
// usually mean a wiring fault.
type TransportError struct {
	// Op names the transaction that failed, e.g. "write command".
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Transport wraps err in a *TransportError. It returns nil if err is nil.
func Transport(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: op, Err: err}
}
