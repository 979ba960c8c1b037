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

import "fmt"

// Identifier newtypes. Each wraps a uint16 but is a distinct Go type, so the
// compiler rejects passing a ClientID where a ServiceID is expected -- the
// same "no confusing a ClockIdentity with a PortIdentity" discipline the
// teacher package applies to its own identifiers.

// ServiceID identifies a logical SOME/IP service. 0xFFFF is reserved for SD.
type ServiceID uint16

// ServiceIDSD is the reserved service_id for Service Discovery messages.
const ServiceIDSD ServiceID = 0xFFFF

// Uint16 returns the underlying value.
func (s ServiceID) Uint16() uint16 { return uint16(s) }

func (s ServiceID) String() string { return fmt.Sprintf("0x%04x", uint16(s)) }

// MethodID identifies a method or event within a service.
type MethodID uint16

// MethodIDSD is the reserved method_id for the SD Notification payload.
const MethodIDSD MethodID = 0x8100

// Uint16 returns the underlying value.
func (m MethodID) Uint16() uint16 { return uint16(m) }

func (m MethodID) String() string { return fmt.Sprintf("0x%04x", uint16(m)) }

// IsEvent reports whether the top bit convention for events is set. Not
// enforced anywhere else in the codec -- purely advisory, per spec §3.
func (m MethodID) IsEvent() bool { return m&0x8000 != 0 }

// ClientID identifies the endpoint issuing a request.
type ClientID uint16

// Uint16 returns the underlying value.
func (c ClientID) Uint16() uint16 { return uint16(c) }

func (c ClientID) String() string { return fmt.Sprintf("0x%04x", uint16(c)) }

// SessionID correlates a request with its response. Zero disables correlation.
type SessionID uint16

// SessionNone is the reserved "no session" value.
const SessionNone SessionID = 0

// Uint16 returns the underlying value.
func (s SessionID) Uint16() uint16 { return uint16(s) }

func (s SessionID) String() string { return fmt.Sprintf("0x%04x", uint16(s)) }

// InstanceID identifies one instance of a service.
type InstanceID uint16

// InstanceIDAny matches any instance, used in FindService wildcards.
const InstanceIDAny InstanceID = 0xFFFF

// Uint16 returns the underlying value.
func (i InstanceID) Uint16() uint16 { return uint16(i) }

func (i InstanceID) String() string { return fmt.Sprintf("0x%04x", uint16(i)) }

// EventgroupID identifies a named collection of events subscribable as a unit.
type EventgroupID uint16

// Uint16 returns the underlying value.
func (e EventgroupID) Uint16() uint16 { return uint16(e) }

func (e EventgroupID) String() string { return fmt.Sprintf("0x%04x", uint16(e)) }
