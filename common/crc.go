// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package common contains the pieces shared by the display driver, the
// sensor front-ends and the monitor: the transport error type and the CRC8
// used to validate frames coming from a sampling microcontroller.
package common

// CRC8 calculates the 8-bit CRC (polynomial 0x31, initial value 0xff) of the
// byte slice parameter. The serial ADC firmware appends it to every frame.
func CRC8(bytes []byte) byte {
	var crc byte = 0xff
	for _, val := range bytes {
		crc ^= val
		for range 8 {
			if (crc & 0x80) == 0 {
				crc <<= 1
			} else {
				crc = (byte)((crc << 1) ^ 0x31)
			}
		}
	}
	return crc
}
