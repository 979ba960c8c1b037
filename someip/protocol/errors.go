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

// Package protocol implements the SOME/IP wire format: the fixed 16-byte
// header, the message builder, and the stream/datagram transports that
// frame messages on top of TCP and UDP.
package protocol

import (
	"errors"
	"fmt"
)

// Kind distinguishes the taxonomy of errors this package and its siblings
// (sd, tp) can return. See spec §7.
type Kind int

// Error kinds, one per row of the taxonomy table.
const (
	KindIO Kind = iota
	KindInvalidHeader
	KindInvalidMessage
	KindTimeout
	KindConnectionClosed
	KindInvalidMessageType
	KindInvalidReturnCode
	KindSegmentationError
	KindServiceDiscoveryError
)

var kindNames = map[Kind]string{
	KindIO:                    "io",
	KindInvalidHeader:         "invalid header",
	KindInvalidMessage:        "invalid message",
	KindTimeout:               "timeout",
	KindConnectionClosed:      "connection closed",
	KindInvalidMessageType:    "invalid message type",
	KindInvalidReturnCode:     "invalid return code",
	KindSegmentationError:     "segmentation error",
	KindServiceDiscoveryError: "service discovery error",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Error is the typed error value returned by the protocol, stream, datagram
// and session packages. Callers inspect Kind rather than matching on string
// text.
type Error struct {
	Kind   Kind
	Reason string
	Byte   byte // populated for KindInvalidMessageType / KindInvalidReturnCode
	Err    error
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// Unwrap lets errors.Is/errors.As see through to a wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

func newErr(k Kind, reason string) *Error {
	return &Error{Kind: k, Reason: reason}
}

func wrapErr(k Kind, reason string, err error) *Error {
	return &Error{Kind: k, Reason: reason, Err: err}
}

// ErrConnectionClosed is returned by read_message when end-of-stream is hit
// cleanly on a header boundary.
var ErrConnectionClosed = &Error{Kind: KindConnectionClosed, Reason: "end of stream"}

// IsKind reports whether err is a *Error of the given Kind.
func IsKind(err error, k Kind) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == k
	}
	return false
}

// invalidMessageTypeErr builds the dedicated error variant carrying the
// offending byte, per spec §3.
func invalidMessageTypeErr(b byte) *Error {
	return &Error{Kind: KindInvalidMessageType, Reason: fmt.Sprintf("unknown message type 0x%02x", b), Byte: b}
}

func invalidReturnCodeErr(b byte) *Error {
	return &Error{Kind: KindInvalidReturnCode, Reason: fmt.Sprintf("unknown return code 0x%02x", b), Byte: b}
}
