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
	"net"
)

// OptionType is the discriminant byte of an SD option (spec §4.6).
type OptionType uint8

// Option types.
const (
	OptionIPv4Endpoint        OptionType = 0x04
	OptionIPv6Endpoint        OptionType = 0x06
	OptionConfigurationString OptionType = 0x01
	OptionLoadBalancing       OptionType = 0x02
)

// L4Proto is the transport protocol an endpoint option carries, using the
// IANA protocol numbers (spec §4.6).
type L4Proto uint8

// Transport protocols an endpoint option may name.
const (
	ProtoTCP L4Proto = 6
	ProtoUDP L4Proto = 17
)

// Option is implemented by every SD option variant. Each option is prefixed
// on the wire by a 2-byte length field and a 1-byte type tag, the same
// length-prefixed-variant discipline the teacher's TLVs use.
type Option interface {
	Type() OptionType
}

// IPv4EndpointOption names an IPv4 address/port/protocol endpoint.
type IPv4EndpointOption struct {
	Address net.IP
	Proto   L4Proto
	Port    uint16
}

// Type implements Option.
func (o IPv4EndpointOption) Type() OptionType { return OptionIPv4Endpoint }

// IPv6EndpointOption names an IPv6 address/port/protocol endpoint.
type IPv6EndpointOption struct {
	Address net.IP
	Proto   L4Proto
	Port    uint16
}

// Type implements Option.
func (o IPv6EndpointOption) Type() OptionType { return OptionIPv6Endpoint }

// ConfigurationStringOption carries a set of key=value configuration pairs.
type ConfigurationStringOption struct {
	Entries []string
}

// Type implements Option.
func (o ConfigurationStringOption) Type() OptionType { return OptionConfigurationString }

// LoadBalancingOption carries a priority/weight pair used to steer clients
// across multiple offers of the same service (spec §4.6).
type LoadBalancingOption struct {
	Priority uint16
	Weight   uint16
}

// Type implements Option.
func (o LoadBalancingOption) Type() OptionType { return OptionLoadBalancing }

// encodeOption renders one option including its 2-byte length prefix.
func encodeOption(o Option) []byte {
	switch v := o.(type) {
	case IPv4EndpointOption:
		body := make([]byte, 9)
		copy(body[1:5], v.Address.To4())
		body[6] = byte(v.Proto)
		binary.BigEndian.PutUint16(body[7:], v.Port)
		return finishOption(OptionIPv4Endpoint, body)
	case IPv6EndpointOption:
		body := make([]byte, 21)
		copy(body[1:17], v.Address.To16())
		body[18] = byte(v.Proto)
		binary.BigEndian.PutUint16(body[19:], v.Port)
		return finishOption(OptionIPv6Endpoint, body)
	case ConfigurationStringOption:
		var body []byte
		body = append(body, 0) // reserved
		for _, kv := range v.Entries {
			body = append(body, byte(len(kv)))
			body = append(body, kv...)
		}
		return finishOption(OptionConfigurationString, body)
	case LoadBalancingOption:
		body := make([]byte, 4)
		binary.BigEndian.PutUint16(body[0:], v.Priority)
		binary.BigEndian.PutUint16(body[2:], v.Weight)
		return finishOption(OptionLoadBalancing, body)
	}
	return nil
}

// finishOption prepends the type tag and reserved byte, then the 2-byte
// length field that counts everything following it.
func finishOption(t OptionType, body []byte) []byte {
	out := make([]byte, 4+len(body))
	binary.BigEndian.PutUint16(out[0:], uint16(2+len(body)))
	out[2] = byte(t)
	out[3] = 0 // reserved
	copy(out[4:], body)
	return out
}

// decodeOption parses one length-prefixed option starting at b[0]. It
// returns the option and the total number of bytes consumed, including the
// 2-byte length field.
func decodeOption(b []byte) (Option, int, error) {
	if len(b) < 4 {
		return nil, 0, sdErr("option header shorter than 4 bytes")
	}
	length := binary.BigEndian.Uint16(b[0:])
	total := 2 + int(length)
	if total < 4 || len(b) < total {
		return nil, 0, sdErr("option length exceeds available bytes")
	}
	typ := OptionType(b[2])
	body := b[4:total]

	switch typ {
	case OptionIPv4Endpoint:
		if len(body) != 9 {
			return nil, 0, sdErr("malformed IPv4Endpoint option")
		}
		ip := make(net.IP, 4)
		copy(ip, body[1:5])
		return IPv4EndpointOption{Address: ip, Proto: L4Proto(body[6]), Port: binary.BigEndian.Uint16(body[7:])}, total, nil
	case OptionIPv6Endpoint:
		if len(body) != 21 {
			return nil, 0, sdErr("malformed IPv6Endpoint option")
		}
		ip := make(net.IP, 16)
		copy(ip, body[1:17])
		return IPv6EndpointOption{Address: ip, Proto: L4Proto(body[18]), Port: binary.BigEndian.Uint16(body[19:])}, total, nil
	case OptionConfigurationString:
		if len(body) < 1 {
			return nil, 0, sdErr("malformed ConfigurationString option")
		}
		var entries []string
		rest := body[1:]
		for len(rest) > 0 {
			n := int(rest[0])
			rest = rest[1:]
			if n > len(rest) {
				return nil, 0, sdErr("ConfigurationString entry overruns option body")
			}
			entries = append(entries, string(rest[:n]))
			rest = rest[n:]
		}
		return ConfigurationStringOption{Entries: entries}, total, nil
	case OptionLoadBalancing:
		if len(body) != 4 {
			return nil, 0, sdErr("malformed LoadBalancing option")
		}
		return LoadBalancingOption{Priority: binary.BigEndian.Uint16(body[0:]), Weight: binary.BigEndian.Uint16(body[2:])}, total, nil
	default:
		return nil, 0, sdErr("unknown option type")
	}
}
