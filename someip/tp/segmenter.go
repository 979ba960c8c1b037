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

package tp

import (
	someip "github.com/reneherrero/someip-go/someip/protocol"
)

// DefaultMaxSegmentPayload is the default number of original-payload bytes
// carried per segment, a multiple of 16 (spec §4.8). With the 16-byte
// SOME/IP header and 4-byte TP header a full segment is 1412 bytes.
const DefaultMaxSegmentPayload = 1392

// Segment splits msg.Payload into one or more TP segments, each a complete
// someip.Message whose message_type has the TP bit set, prefixed with a
// 4-byte TP header. maxSegmentPayload must be a positive multiple of 16.
func Segment(msg *someip.Message, maxSegmentPayload int) ([]someip.Message, error) {
	if maxSegmentPayload <= 0 || maxSegmentPayload%16 != 0 {
		return nil, tpErr("max segment payload must be a positive multiple of 16")
	}

	tpType := msg.Header.MessageType.WithTP()
	payload := msg.Payload
	if len(payload) == 0 {
		// a zero-length payload still needs exactly one, final, segment.
		seg := buildSegment(msg, tpType, nil, 0, false)
		return []someip.Message{seg}, nil
	}

	var segments []someip.Message
	offset := 0
	for offset < len(payload) {
		end := offset + maxSegmentPayload
		more := true
		if end >= len(payload) {
			end = len(payload)
			more = false
		}
		segments = append(segments, buildSegment(msg, tpType, payload[offset:end], offset, more))
		offset = end
	}
	return segments, nil
}

func buildSegment(msg *someip.Message, tpType someip.MessageType, chunk []byte, offset int, more bool) someip.Message {
	tpHeader := Header{Offset: uint32(offset), MoreSegments: more}
	payload := make([]byte, HeaderSize+len(chunk))
	tpHeader.EncodeTo(payload[:HeaderSize])
	copy(payload[HeaderSize:], chunk)

	b := someip.NewBuilder(msg.Header.ServiceID, msg.Header.MethodID).
		ClientID(msg.Header.ClientID).
		SessionID(msg.Header.SessionID).
		InterfaceVersion(msg.Header.InterfaceVersion).
		MessageType(tpType).
		ReturnCode(msg.Header.ReturnCode).
		Payload(payload)
	return b.Build()
}
