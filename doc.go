// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package pn532 drives a PN532 NFC controller over an abstract byte
// transport.
//
// A Protocol builds command frames, performs the ACK and ready handshake and
// validates response frames in a single scratch buffer. A Device layers typed
// commands on top: firmware version, SAM configuration, NTAG page reads and
// passive target detection. Responses are decoded with a Decoder, and the
// generic Exchange function runs any Request through a Device.
//
// Transports for SPI, I2C and UART live in the transport subpackages.
package pn532
