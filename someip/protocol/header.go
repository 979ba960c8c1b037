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

package protocol

import "encoding/binary"

// ProtocolVersion is the only version this library speaks.
const ProtocolVersion uint8 = 0x01

// HeaderSize is the fixed size in bytes of a SOME/IP header.
const HeaderSize = 16

// MessageType enumerates the message_type field. Table per spec §3.
type MessageType uint8

// MessageType values.
const (
	Request          MessageType = 0x00
	RequestNoReturn  MessageType = 0x01
	Notification     MessageType = 0x02
	Response         MessageType = 0x80
	Error_           MessageType = 0x81
	TpRequest        MessageType = 0x20
	TpResponse       MessageType = 0xA0
	TpNotification   MessageType = 0x22
	TpError          MessageType = 0xA1
)

var messageTypeNames = map[MessageType]string{
	Request:         "REQUEST",
	RequestNoReturn: "REQUEST_NO_RETURN",
	Notification:    "NOTIFICATION",
	Response:        "RESPONSE",
	Error_:          "ERROR",
	TpRequest:       "TP_REQUEST",
	TpResponse:      "TP_RESPONSE",
	TpNotification:  "TP_NOTIFICATION",
	TpError:         "TP_ERROR",
}

func (m MessageType) String() string {
	if s, ok := messageTypeNames[m]; ok {
		return s
	}
	return "UNKNOWN"
}

// TpBit is the bit that distinguishes a TP variant of a message type from
// its non-segmented counterpart (spec §4.8).
const TpBit MessageType = 0x20

// IsTP reports whether this message_type is one of the four TP variants.
func (m MessageType) IsTP() bool {
	switch m {
	case TpRequest, TpResponse, TpNotification, TpError:
		return true
	}
	return false
}

// WithoutTP clears the TP bit, returning the original non-segmented
// message_type. Used by the reassembler when it hands back a complete
// message (spec §4.9 step 6).
func (m MessageType) WithoutTP() MessageType {
	switch m {
	case TpRequest:
		return Request
	case TpResponse:
		return Response
	case TpNotification:
		return Notification
	case TpError:
		return Error_
	}
	return m
}

// WithTP sets the TP bit on a non-segmented message_type, used by the
// segmenter when it emits outgoing segments (spec §4.8).
func (m MessageType) WithTP() MessageType {
	switch m {
	case Request:
		return TpRequest
	case Response:
		return TpResponse
	case Notification:
		return TpNotification
	case Error_:
		return TpError
	}
	return m
}

// IsResponseClass reports whether m is Response or Error, or their TP
// variants -- the classes a client's call() matches against (spec §4.5).
func (m MessageType) IsResponseClass() bool {
	return m == Response || m == Error_ || m == TpResponse || m == TpError
}

func validMessageType(b byte) bool {
	_, ok := messageTypeNames[MessageType(b)]
	return ok
}

// ReturnCode enumerates the return_code field. Table per spec §3.
type ReturnCode uint8

// ReturnCode values.
const (
	Ok                     ReturnCode = 0x00
	NotOk                  ReturnCode = 0x01
	UnknownService         ReturnCode = 0x02
	UnknownMethod          ReturnCode = 0x03
	NotReady               ReturnCode = 0x04
	NotReachable           ReturnCode = 0x05
	Timeout                ReturnCode = 0x06
	WrongProtocolVersion   ReturnCode = 0x07
	WrongInterfaceVersion  ReturnCode = 0x08
	MalformedMessage       ReturnCode = 0x09
	WrongMessageType       ReturnCode = 0x0A
)

var returnCodeNames = map[ReturnCode]string{
	Ok:                    "E_OK",
	NotOk:                 "E_NOT_OK",
	UnknownService:        "E_UNKNOWN_SERVICE",
	UnknownMethod:         "E_UNKNOWN_METHOD",
	NotReady:              "E_NOT_READY",
	NotReachable:          "E_NOT_REACHABLE",
	Timeout:               "E_TIMEOUT",
	WrongProtocolVersion:  "E_WRONG_PROTOCOL_VERSION",
	WrongInterfaceVersion: "E_WRONG_INTERFACE_VERSION",
	MalformedMessage:      "E_MALFORMED_MESSAGE",
	WrongMessageType:      "E_WRONG_MESSAGE_TYPE",
}

func (r ReturnCode) String() string {
	if s, ok := returnCodeNames[r]; ok {
		return s
	}
	return "E_UNKNOWN"
}

func validReturnCode(b byte) bool {
	_, ok := returnCodeNames[ReturnCode(b)]
	return ok
}

// Header is the fixed 16-byte SOME/IP header, Table in spec §3.
type Header struct {
	ServiceID         ServiceID
	MethodID          MethodID
	Length            uint32
	ClientID          ClientID
	SessionID         SessionID
	ProtocolVersion   uint8
	InterfaceVersion  uint8
	MessageType       MessageType
	ReturnCode        ReturnCode
}

// EncodeTo writes the header as 16 big-endian octets into b, which must be
// at least HeaderSize long. It never allocates.
func (h *Header) EncodeTo(b []byte) {
	_ = b[15]
	binary.BigEndian.PutUint16(b[0:], h.ServiceID.Uint16())
	binary.BigEndian.PutUint16(b[2:], h.MethodID.Uint16())
	binary.BigEndian.PutUint32(b[4:], h.Length)
	binary.BigEndian.PutUint16(b[8:], h.ClientID.Uint16())
	binary.BigEndian.PutUint16(b[10:], h.SessionID.Uint16())
	b[12] = h.ProtocolVersion
	b[13] = h.InterfaceVersion
	b[14] = byte(h.MessageType)
	b[15] = byte(h.ReturnCode)
}

// Encode returns the header as a new 16-byte slice.
func (h *Header) Encode() []byte {
	b := make([]byte, HeaderSize)
	h.EncodeTo(b)
	return b
}

// DecodeHeader parses exactly HeaderSize octets from b (b may be longer;
// only the first HeaderSize bytes are read) into a Header. It validates
// protocol_version, message_type and return_code per spec §4.1, but does
// NOT check Length against payload size -- that is the stream/datagram
// codec's job.
func DecodeHeader(b []byte) (Header, error) {
	var h Header
	if len(b) < HeaderSize {
		return h, newErr(KindInvalidHeader, "short header")
	}
	h.ServiceID = ServiceID(binary.BigEndian.Uint16(b[0:]))
	h.MethodID = MethodID(binary.BigEndian.Uint16(b[2:]))
	h.Length = binary.BigEndian.Uint32(b[4:])
	h.ClientID = ClientID(binary.BigEndian.Uint16(b[8:]))
	h.SessionID = SessionID(binary.BigEndian.Uint16(b[10:]))
	h.ProtocolVersion = b[12]
	h.InterfaceVersion = b[13]
	if h.ProtocolVersion != ProtocolVersion {
		return h, newErr(KindInvalidHeader, "unsupported protocol version")
	}
	if !validMessageType(b[14]) {
		return h, invalidMessageTypeErr(b[14])
	}
	if !validReturnCode(b[15]) {
		return h, invalidReturnCodeErr(b[15])
	}
	h.MessageType = MessageType(b[14])
	h.ReturnCode = ReturnCode(b[15])
	return h, nil
}
