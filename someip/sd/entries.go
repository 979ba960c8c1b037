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

// Package sd implements SOME/IP Service Discovery: the entries-and-options
// array encoded inside a SOME/IP Notification payload, and a client/server
// pair that speak it over multicast UDP.
package sd

import (
	"encoding/binary"

	someip "github.com/reneherrero/someip-go/someip/protocol"
)

// EntryType is the discriminant byte at offset 0 of an SD entry.
type EntryType uint8

// Entry types, per spec §4.6.
const (
	EntryFindService            EntryType = 0x00
	EntryOfferService           EntryType = 0x01
	EntrySubscribeEventgroup    EntryType = 0x06
	EntrySubscribeEventgroupAck EntryType = 0x07
)

// EntrySize is the fixed size in bytes of every SD entry.
const EntrySize = 16

// OptionsRef is the (index, count) pair into the shared options array that
// an entry references, for each of its two option groups (spec §3).
type OptionsRef struct {
	Index1st uint8
	N1st     uint8
	Index2nd uint8
	N2nd     uint8
}

func (r OptionsRef) encodeTo(b []byte) {
	b[1] = r.Index1st
	b[2] = r.Index2nd
	b[3] = r.N1st<<4 | (r.N2nd & 0x0F)
}

func decodeOptionsRef(b []byte) OptionsRef {
	return OptionsRef{
		Index1st: b[1],
		Index2nd: b[2],
		N1st:     b[3] >> 4,
		N2nd:     b[3] & 0x0F,
	}
}

// Entry is implemented by every SD entry variant. Encode/decode dispatch on
// Type(), the same flat-tagged-variant discipline the teacher applies to
// its own TLVs (ptp/protocol/tlvs.go).
type Entry interface {
	Type() EntryType
	Refs() OptionsRef
}

// FindServiceEntry requests offers for a service/instance.
type FindServiceEntry struct {
	ServiceID     someip.ServiceID
	InstanceID    someip.InstanceID
	MajorVersion  uint8
	MinorVersion  uint32
	TTL           uint32 // 24-bit on the wire
	OptionsRef    OptionsRef
}

// Type implements Entry.
func (e FindServiceEntry) Type() EntryType { return EntryFindService }

// Refs implements Entry.
func (e FindServiceEntry) Refs() OptionsRef { return e.OptionsRef }

// OfferServiceEntry announces an available service instance. A TTL of zero
// is a StopOfferService -- there is no separate Go type for it, matching
// spec §3's "distinguished from StopOfferService purely by ttl=0".
type OfferServiceEntry struct {
	ServiceID    someip.ServiceID
	InstanceID   someip.InstanceID
	MajorVersion uint8
	MinorVersion uint32
	TTL          uint32
	OptionsRef   OptionsRef
}

// Type implements Entry.
func (e OfferServiceEntry) Type() EntryType { return EntryOfferService }

// Refs implements Entry.
func (e OfferServiceEntry) Refs() OptionsRef { return e.OptionsRef }

// IsStopOffer reports whether this entry is withdrawing a previously
// offered service (ttl == 0).
func (e OfferServiceEntry) IsStopOffer() bool { return e.TTL == 0 }

// SubscribeEventgroupEntry requests a subscription to an eventgroup.
type SubscribeEventgroupEntry struct {
	ServiceID    someip.ServiceID
	InstanceID   someip.InstanceID
	MajorVersion uint8
	TTL          uint32
	Counter      uint8
	EventgroupID someip.EventgroupID
	OptionsRef   OptionsRef
}

// Type implements Entry.
func (e SubscribeEventgroupEntry) Type() EntryType { return EntrySubscribeEventgroup }

// Refs implements Entry.
func (e SubscribeEventgroupEntry) Refs() OptionsRef { return e.OptionsRef }

// SubscribeEventgroupAckEntry acknowledges or rejects a subscription. A TTL
// of zero is a Nack, matching spec §3.
type SubscribeEventgroupAckEntry struct {
	ServiceID    someip.ServiceID
	InstanceID   someip.InstanceID
	MajorVersion uint8
	TTL          uint32
	Counter      uint8
	EventgroupID someip.EventgroupID
	OptionsRef   OptionsRef
}

// Type implements Entry.
func (e SubscribeEventgroupAckEntry) Type() EntryType { return EntrySubscribeEventgroupAck }

// Refs implements Entry.
func (e SubscribeEventgroupAckEntry) Refs() OptionsRef { return e.OptionsRef }

// IsNack reports whether this entry rejects the subscription (ttl == 0).
func (e SubscribeEventgroupAckEntry) IsNack() bool { return e.TTL == 0 }

func encodeTTL(b []byte, ttl uint32) {
	b[0] = byte(ttl >> 16)
	b[1] = byte(ttl >> 8)
	b[2] = byte(ttl)
}

func decodeTTL(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

func encodeEntry(e Entry) []byte {
	b := make([]byte, EntrySize)
	b[0] = byte(e.Type())
	e.Refs().encodeTo(b)

	switch v := e.(type) {
	case FindServiceEntry:
		binary.BigEndian.PutUint16(b[4:], v.ServiceID.Uint16())
		binary.BigEndian.PutUint16(b[6:], v.InstanceID.Uint16())
		b[8] = v.MajorVersion
		encodeTTL(b[9:], v.TTL)
		binary.BigEndian.PutUint32(b[12:], v.MinorVersion)
	case OfferServiceEntry:
		binary.BigEndian.PutUint16(b[4:], v.ServiceID.Uint16())
		binary.BigEndian.PutUint16(b[6:], v.InstanceID.Uint16())
		b[8] = v.MajorVersion
		encodeTTL(b[9:], v.TTL)
		binary.BigEndian.PutUint32(b[12:], v.MinorVersion)
	case SubscribeEventgroupEntry:
		binary.BigEndian.PutUint16(b[4:], v.ServiceID.Uint16())
		binary.BigEndian.PutUint16(b[6:], v.InstanceID.Uint16())
		b[8] = v.MajorVersion
		encodeTTL(b[9:], v.TTL)
		b[12] = 0
		b[13] = v.Counter & 0x0F
		binary.BigEndian.PutUint16(b[14:], v.EventgroupID.Uint16())
	case SubscribeEventgroupAckEntry:
		binary.BigEndian.PutUint16(b[4:], v.ServiceID.Uint16())
		binary.BigEndian.PutUint16(b[6:], v.InstanceID.Uint16())
		b[8] = v.MajorVersion
		encodeTTL(b[9:], v.TTL)
		b[12] = 0
		b[13] = v.Counter & 0x0F
		binary.BigEndian.PutUint16(b[14:], v.EventgroupID.Uint16())
	}
	return b
}

func decodeEntry(b []byte) (Entry, error) {
	if len(b) < EntrySize {
		return nil, sdErr("entry shorter than 16 bytes")
	}
	ref := decodeOptionsRef(b)
	serviceID := someip.ServiceID(binary.BigEndian.Uint16(b[4:]))
	instanceID := someip.InstanceID(binary.BigEndian.Uint16(b[6:]))
	major := b[8]
	ttl := decodeTTL(b[9:])

	switch EntryType(b[0]) {
	case EntryFindService:
		return FindServiceEntry{
			ServiceID: serviceID, InstanceID: instanceID, MajorVersion: major, TTL: ttl,
			MinorVersion: binary.BigEndian.Uint32(b[12:]), OptionsRef: ref,
		}, nil
	case EntryOfferService:
		return OfferServiceEntry{
			ServiceID: serviceID, InstanceID: instanceID, MajorVersion: major, TTL: ttl,
			MinorVersion: binary.BigEndian.Uint32(b[12:]), OptionsRef: ref,
		}, nil
	case EntrySubscribeEventgroup:
		return SubscribeEventgroupEntry{
			ServiceID: serviceID, InstanceID: instanceID, MajorVersion: major, TTL: ttl,
			Counter: b[13] & 0x0F, EventgroupID: someip.EventgroupID(binary.BigEndian.Uint16(b[14:])), OptionsRef: ref,
		}, nil
	case EntrySubscribeEventgroupAck:
		return SubscribeEventgroupAckEntry{
			ServiceID: serviceID, InstanceID: instanceID, MajorVersion: major, TTL: ttl,
			Counter: b[13] & 0x0F, EventgroupID: someip.EventgroupID(binary.BigEndian.Uint16(b[14:])), OptionsRef: ref,
		}, nil
	default:
		return nil, sdErr("unknown entry type")
	}
}
