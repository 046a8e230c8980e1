// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ozonemon is a container for the ozone exposure monitor: an SSD1306
// OLED driver, the ULPSM ozone sensor front-end and the exposure state
// machine that ties them together.
//
// The command lives in cmd/ozonemon.
package ozonemon
