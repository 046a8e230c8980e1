// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package common

import "testing"

func TestCRC8(t *testing.T) {
	var tests = []struct {
		bytes  []byte
		result byte
	}{
		{bytes: []byte{0xbe, 0xef}, result: 0x92},
		{bytes: []byte("2048,2048"), result: 0x38},
		{bytes: []byte("1025,1000"), result: 0x84},
		{bytes: []byte("4095,0"), result: 0xed},
	}
	for _, test := range tests {
		res := CRC8(test.bytes)
		if res != test.result {
			t.Errorf("CRC8(%q)!=0x%02x received 0x%02x", test.bytes, test.result, res)
		}
	}
}
