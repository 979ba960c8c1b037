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

// Message owns a Header plus its payload. The invariant
// Header.Length == 8 + len(Payload) holds for every Message produced by
// Builder.Build and is re-checked by the stream/datagram decoders.
type Message struct {
	Header  Header
	Payload []byte
}

// Encode serializes the message to a single contiguous buffer: 16-byte
// header followed by the payload.
func (m *Message) Encode() []byte {
	b := make([]byte, HeaderSize+len(m.Payload))
	m.Header.EncodeTo(b)
	copy(b[HeaderSize:], m.Payload)
	return b
}

// Builder constructs a Message fluently, mirroring the defaults in spec §4.2.
type Builder struct {
	serviceID        ServiceID
	methodID         MethodID
	clientID         ClientID
	sessionID        SessionID
	interfaceVersion uint8
	messageType      MessageType
	returnCode       ReturnCode
	payload          []byte
}

// NewBuilder starts a Builder for the given service/method with the
// defaults from spec §4.2: client_id=0, session_id=0, interface_version=1,
// message_type=Request, return_code=Ok, empty payload.
func NewBuilder(serviceID ServiceID, methodID MethodID) *Builder {
	return &Builder{
		serviceID:        serviceID,
		methodID:         methodID,
		interfaceVersion: 1,
		messageType:      Request,
		returnCode:       Ok,
	}
}

// ClientID sets the client_id field.
func (b *Builder) ClientID(c ClientID) *Builder { b.clientID = c; return b }

// SessionID sets the session_id field.
func (b *Builder) SessionID(s SessionID) *Builder { b.sessionID = s; return b }

// InterfaceVersion sets the interface_version field.
func (b *Builder) InterfaceVersion(v uint8) *Builder { b.interfaceVersion = v; return b }

// MessageType sets the message_type field.
func (b *Builder) MessageType(t MessageType) *Builder { b.messageType = t; return b }

// ReturnCode sets the return_code field.
func (b *Builder) ReturnCode(r ReturnCode) *Builder { b.returnCode = r; return b }

// Payload sets the payload. The slice is not copied; callers must not
// mutate it after calling Build.
func (b *Builder) Payload(p []byte) *Builder { b.payload = p; return b }

// Build computes length = 8 + len(payload) and returns the finished
// Message, per spec §4.2.
func (b *Builder) Build() Message {
	return Message{
		Header: Header{
			ServiceID:        b.serviceID,
			MethodID:         b.methodID,
			Length:           uint32(8 + len(b.payload)),
			ClientID:         b.clientID,
			SessionID:        b.sessionID,
			ProtocolVersion:  ProtocolVersion,
			InterfaceVersion: b.interfaceVersion,
			MessageType:      b.messageType,
			ReturnCode:       b.returnCode,
		},
		Payload: b.payload,
	}
}

// CreateResponse seeds a Builder from an inbound request: service_id,
// method_id, client_id, session_id and interface_version are copied over
// and message_type is set to Response. Callers may switch to Error via
// Builder.MessageType(protocol.Error_), per spec §4.2.
func CreateResponse(request *Message) *Builder {
	b := NewBuilder(request.Header.ServiceID, request.Header.MethodID)
	b.clientID = request.Header.ClientID
	b.sessionID = request.Header.SessionID
	b.interfaceVersion = request.Header.InterfaceVersion
	b.messageType = Response
	return b
}
