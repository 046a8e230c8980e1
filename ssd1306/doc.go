// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ssd1306 controls a 128x64 monochrome OLED display via a SSD1306
// controller on I²C, at the level of text cells rather than images.
//
// The driver has no frame buffer of its own: every call is translated into
// addressed command/data transactions and sent right away. Clear() reads the
// graphics RAM back after blanking it and rewrites any page that did not come
// back empty. This matters on long or noisy I²C wiring where a dropped byte
// would otherwise leave garbage on the panel until the next full redraw.
// Glyph writes are not verified since they are refreshed on every tick.
//
// The GDDRAM is organized as 8 pages, each covering an horizontal band of 8
// pixels high (1 byte) for 128 columns. A glyph is 8 columns wide so the
// display holds 16x8 character cells.
//
// # Datasheets
//
// https://cdn-shop.adafruit.com/datasheets/SSD1306.pdf
//
// http://www.solomon-systech.com/en/product/display-ic/oled-driver-controller/ssd1306/
package ssd1306
