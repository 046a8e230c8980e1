// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ssd1306

// errorHandler is a wrapper for error management. Once a transaction fails
// the following ones are skipped.
type errorHandler struct {
	d   *Dev
	err error
}

func (eh *errorHandler) sendCommand(c []byte) {
	if eh.err != nil {
		return
	}
	eh.err = eh.d.sendCommand(c)
}

func (eh *errorHandler) sendData(b []byte) {
	if eh.err != nil {
		return
	}
	eh.err = eh.d.sendData(b)
}
