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

package sd

import (
	"encoding/binary"

	someip "github.com/reneherrero/someip-go/someip/protocol"
)

// flag bit positions in the SD payload's first byte (spec §4.6).
const (
	flagReboot  byte = 0x80
	flagUnicast byte = 0x40
)

// ServiceIDAny is the wildcard service_id a FindServiceEntry uses to ask
// for every currently offered service, paired with InstanceIDAny.
const ServiceIDAny someip.ServiceID = 0xFFFF

// Message is the decoded body of a SOME/IP-SD Notification: the flags byte
// plus the entries-and-options arrays (spec §3, §4.6).
type Message struct {
	Reboot  bool
	Unicast bool
	Entries []Entry
	Options []Option
}

// NewMessage starts an empty SD message with the given flags.
func NewMessage(reboot, unicast bool) *Message {
	return &Message{Reboot: reboot, Unicast: unicast}
}

// AddOption appends an option to the shared pool and returns its index,
// for use in a subsequent AddEntry call.
func (m *Message) AddOption(o Option) uint8 {
	m.Options = append(m.Options, o)
	return uint8(len(m.Options) - 1)
}

// AddEntry appends an entry that references the first `count` options
// starting at `index` in the shared pool as its first option group.
func (m *Message) AddEntry(e Entry, index, count uint8) {
	ref := e.Refs()
	ref.Index1st = index
	ref.N1st = count
	m.Entries = append(m.Entries, withRefs(e, ref))
}

// withRefs returns a copy of e with its OptionsRef replaced.
func withRefs(e Entry, ref OptionsRef) Entry {
	switch v := e.(type) {
	case FindServiceEntry:
		v.OptionsRef = ref
		return v
	case OfferServiceEntry:
		v.OptionsRef = ref
		return v
	case SubscribeEventgroupEntry:
		v.OptionsRef = ref
		return v
	case SubscribeEventgroupAckEntry:
		v.OptionsRef = ref
		return v
	}
	return e
}

// ResolveOptions returns the option groups an entry references, bounds
// checked against this message's shared options array (spec §4.6: "readers
// must bounds-check index+count against the options array length").
func (m *Message) ResolveOptions(e Entry) (first, second []Option, err error) {
	ref := e.Refs()
	first, err = m.slice(ref.Index1st, ref.N1st)
	if err != nil {
		return nil, nil, err
	}
	second, err = m.slice(ref.Index2nd, ref.N2nd)
	if err != nil {
		return nil, nil, err
	}
	return first, second, nil
}

func (m *Message) slice(index, count uint8) ([]Option, error) {
	if count == 0 {
		return nil, nil
	}
	end := int(index) + int(count)
	if end > len(m.Options) {
		return nil, sdErr("entry references options array out of bounds")
	}
	return m.Options[index:end], nil
}

// Encode serializes the SD payload: flags, 3 reserved bytes, the
// length-prefixed entries array, then the length-prefixed options array.
func (m *Message) Encode() []byte {
	var flags byte
	if m.Reboot {
		flags |= flagReboot
	}
	if m.Unicast {
		flags |= flagUnicast
	}

	entriesBuf := make([]byte, 0, len(m.Entries)*EntrySize)
	for _, e := range m.Entries {
		entriesBuf = append(entriesBuf, encodeEntry(e)...)
	}

	var optionsBuf []byte
	for _, o := range m.Options {
		optionsBuf = append(optionsBuf, encodeOption(o)...)
	}

	out := make([]byte, 4, 4+4+len(entriesBuf)+4+len(optionsBuf))
	out[0] = flags

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(entriesBuf)))
	out = append(out, lenBuf[:]...)
	out = append(out, entriesBuf...)

	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(optionsBuf)))
	out = append(out, lenBuf[:]...)
	out = append(out, optionsBuf...)
	return out
}

// Decode parses an SD payload produced by Encode. Every entry's option
// references are bounds-checked against the decoded options array.
func Decode(b []byte) (*Message, error) {
	if len(b) < 8 {
		return nil, sdErr("payload shorter than SD header")
	}
	m := &Message{
		Reboot:  b[0]&flagReboot != 0,
		Unicast: b[0]&flagUnicast != 0,
	}

	entriesLen := binary.BigEndian.Uint32(b[4:8])
	if uint64(8+entriesLen) > uint64(len(b)) {
		return nil, sdErr("entries array length exceeds payload")
	}
	entriesBuf := b[8 : 8+entriesLen]
	if len(entriesBuf)%EntrySize != 0 {
		return nil, sdErr("entries array length not a multiple of entry size")
	}
	for i := 0; i < len(entriesBuf); i += EntrySize {
		e, err := decodeEntry(entriesBuf[i : i+EntrySize])
		if err != nil {
			return nil, err
		}
		m.Entries = append(m.Entries, e)
	}

	rest := b[8+entriesLen:]
	if len(rest) < 4 {
		return nil, sdErr("payload truncated before options array length")
	}
	optionsLen := binary.BigEndian.Uint32(rest[0:4])
	if uint64(4+optionsLen) > uint64(len(rest)) {
		return nil, sdErr("options array length exceeds payload")
	}
	optionsBuf := rest[4 : 4+optionsLen]
	for len(optionsBuf) > 0 {
		o, n, err := decodeOption(optionsBuf)
		if err != nil {
			return nil, err
		}
		m.Options = append(m.Options, o)
		optionsBuf = optionsBuf[n:]
	}

	for _, e := range m.Entries {
		if _, _, err := m.ResolveOptions(e); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ToSomeIPMessage wraps this SD payload in a SOME/IP message using the
// reserved service_id/method_id/client_id and Notification message_type
// SD requires (spec §4.6).
func (m *Message) ToSomeIPMessage(sessionID someip.SessionID) someip.Message {
	return someip.NewBuilder(someip.ServiceIDSD, someip.MethodIDSD).
		SessionID(sessionID).
		MessageType(someip.Notification).
		Payload(m.Encode()).
		Build()
}

// FromSomeIPMessage validates the envelope fields and decodes the SD payload.
func FromSomeIPMessage(msg *someip.Message) (*Message, error) {
	if msg.Header.ServiceID != someip.ServiceIDSD || msg.Header.MethodID != someip.MethodIDSD {
		return nil, sdErr("not a Service Discovery message")
	}
	return Decode(msg.Payload)
}
