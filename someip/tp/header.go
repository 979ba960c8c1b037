/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package tp implements SOME/IP-TP: segmentation of payloads too large for
// one datagram, and reassembly of segments back into the original payload.
package tp

import "encoding/binary"

// HeaderSize is the size in bytes of a TP header.
const HeaderSize = 4

// offsetMask keeps bits 31..4; the low nibble carries reserved bits and the
// more_segments flag (spec §4.8).
const offsetMask = 0xFFFFFFF0

// Header is the 4-byte TP header: a 28-bit byte offset (always a multiple
// of 16) and a more_segments flag.
type Header struct {
	Offset       uint32
	MoreSegments bool
}

// EncodeTo writes the header as 4 big-endian octets into b.
func (h Header) EncodeTo(b []byte) {
	_ = b[3]
	word := h.Offset & offsetMask
	if h.MoreSegments {
		word |= 1
	}
	binary.BigEndian.PutUint32(b, word)
}

// Encode returns the header as a new 4-byte slice.
func (h Header) Encode() []byte {
	b := make([]byte, HeaderSize)
	h.EncodeTo(b)
	return b
}

// DecodeHeader parses a 4-byte TP header, rejecting non-zero reserved bits
// (bits 3..1) per spec §4.8.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, tpErr("short TP header")
	}
	word := binary.BigEndian.Uint32(b)
	if word&0x0E != 0 {
		return Header{}, tpErr("reserved bits set in TP header")
	}
	return Header{
		Offset:       word & offsetMask,
		MoreSegments: word&0x1 != 0,
	}, nil
}
