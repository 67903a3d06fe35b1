// go-pn532-lite
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-pn532-lite.
//
// go-pn532-lite is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-pn532-lite is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-pn532-lite; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package tagops_test

import (
	"context"
	"fmt"

	pn532 "github.com/ZaparooProject/go-pn532-lite"
	"github.com/ZaparooProject/go-pn532-lite/tagops"
)

func Example_readNDEF() {
	// In a real application the transport comes from transport/spi,
	// transport/i2c or transport/uart.
	mock := pn532.NewMockTransport()
	mock.SetResponse(byte(pn532.CmdInListPassiveTarget),
		[]byte{0x01, 0x01, 0x00, 0x44, 0x00, 0x07, 0x04, 0x12, 0x34, 0x56, 0x78, 0x9A, 0xBC})
	// every page read answers with the same 16 bytes: a 16 byte data area
	// holding a text record
	mock.SetResponse(byte(pn532.CmdInDataExchange), []byte{
		0x00,
		0x03, 0x0A, 0xD1, 0x01, 0x06, 0x54, 0x02, 0x65,
		0x6E, 0x68, 0x69, 0x21, 0xFE, 0x00, 0x02, 0x00,
	})

	device, err := pn532.New(mock)
	if err != nil {
		_, _ = fmt.Println(err)
		return
	}

	ops := tagops.New(device)
	if err := ops.DetectTag(context.Background()); err != nil {
		_, _ = fmt.Println(err)
		return
	}
	_, _ = fmt.Printf("Detected tag with UID: %X\n", ops.UID())

	records, err := ops.ReadNDEF(context.Background())
	if err != nil {
		_, _ = fmt.Println(err)
		return
	}
	for _, record := range records {
		wk, err := record.WellKnown()
		if err != nil {
			_, _ = fmt.Println(err)
			continue
		}
		_, _ = fmt.Printf("Found NDEF record %s: %s\n", wk.Type, wk)
	}

	// Output:
	// Detected tag with UID: 04123456789ABC
	// Found NDEF record T: hi!
}
