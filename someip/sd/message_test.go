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
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	someip "github.com/reneherrero/someip-go/someip/protocol"
)

func TestOfferServiceWithIPv4OptionRoundTrip(t *testing.T) {
	m := NewMessage(false, true)
	idx := m.AddOption(IPv4EndpointOption{Address: net.ParseIP("10.0.0.5"), Proto: ProtoUDP, Port: 30509})
	m.AddEntry(OfferServiceEntry{
		ServiceID: 0x1234, InstanceID: 1, MajorVersion: 1, MinorVersion: 0, TTL: 3,
	}, idx, 1)

	got, err := Decode(m.Encode())
	require.NoError(t, err)
	require.Len(t, got.Entries, 1)
	require.Len(t, got.Options, 1)

	offer, ok := got.Entries[0].(OfferServiceEntry)
	require.True(t, ok)
	assert.Equal(t, someip.ServiceID(0x1234), offer.ServiceID)
	assert.False(t, offer.IsStopOffer())

	first, second, err := got.ResolveOptions(got.Entries[0])
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Nil(t, second)

	ep, ok := first[0].(IPv4EndpointOption)
	require.True(t, ok)
	assert.Equal(t, net.ParseIP("10.0.0.5").To4(), ep.Address.To4())
	assert.Equal(t, ProtoUDP, ep.Proto)
	assert.Equal(t, uint16(30509), ep.Port)
}

func TestStopOfferServiceIsTTLZero(t *testing.T) {
	m := NewMessage(false, false)
	m.AddEntry(OfferServiceEntry{ServiceID: 1, InstanceID: 1, MajorVersion: 1, TTL: 0}, 0, 0)

	got, err := Decode(m.Encode())
	require.NoError(t, err)
	assert.True(t, got.Entries[0].(OfferServiceEntry).IsStopOffer())
}

func TestSubscribeEventgroupAckNackRoundTrip(t *testing.T) {
	m := NewMessage(false, false)
	m.AddEntry(SubscribeEventgroupAckEntry{ServiceID: 2, InstanceID: 1, MajorVersion: 1, TTL: 0, EventgroupID: 5}, 0, 0)

	got, err := Decode(m.Encode())
	require.NoError(t, err)
	ack := got.Entries[0].(SubscribeEventgroupAckEntry)
	assert.True(t, ack.IsNack())
	assert.Equal(t, someip.EventgroupID(5), ack.EventgroupID)
}

func TestDecodeRejectsOutOfBoundsOptionsRef(t *testing.T) {
	m := NewMessage(false, false)
	m.Entries = append(m.Entries, OfferServiceEntry{
		ServiceID: 1, InstanceID: 1, MajorVersion: 1, TTL: 1,
		OptionsRef: OptionsRef{Index1st: 0, N1st: 1},
	})
	// no options appended -- index 0 count 1 is out of bounds

	_, err := Decode(m.Encode())
	require.Error(t, err)
	assert.True(t, someip.IsKind(err, someip.KindServiceDiscoveryError))
	assert.Contains(t, err.Error(), "out of bounds")
}

func TestDecodeRejectsTruncatedEntriesLength(t *testing.T) {
	b := []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x20} // claims 32 bytes of entries, none present
	_, err := Decode(b)
	require.Error(t, err)
}

func TestFlagsRoundTrip(t *testing.T) {
	for _, tc := range []struct{ reboot, unicast bool }{
		{true, true}, {true, false}, {false, true}, {false, false},
	} {
		m := NewMessage(tc.reboot, tc.unicast)
		got, err := Decode(m.Encode())
		require.NoError(t, err)
		assert.Equal(t, tc.reboot, got.Reboot)
		assert.Equal(t, tc.unicast, got.Unicast)
	}
}

func TestToFromSomeIPMessage(t *testing.T) {
	m := NewMessage(true, true)
	m.AddEntry(FindServiceEntry{ServiceID: 0x1234, InstanceID: someip.InstanceIDAny, MajorVersion: 1, MinorVersion: 0, TTL: 3}, 0, 0)

	wire := m.ToSomeIPMessage(42)
	assert.Equal(t, someip.ServiceIDSD, wire.Header.ServiceID)
	assert.Equal(t, someip.MethodIDSD, wire.Header.MethodID)
	assert.Equal(t, someip.Notification, wire.Header.MessageType)

	back, err := FromSomeIPMessage(&wire)
	require.NoError(t, err)
	require.Len(t, back.Entries, 1)
	assert.Equal(t, someip.ServiceID(0x1234), back.Entries[0].(FindServiceEntry).ServiceID)
}

func TestConfigurationStringAndLoadBalancingOptionsRoundTrip(t *testing.T) {
	m := NewMessage(false, false)
	i1 := m.AddOption(ConfigurationStringOption{Entries: []string{"path=/v1", "proto=json"}})
	i2 := m.AddOption(LoadBalancingOption{Priority: 1, Weight: 200})
	m.AddEntry(OfferServiceEntry{ServiceID: 1, InstanceID: 1, MajorVersion: 1, TTL: 3}, i1, 1)
	m.Entries[0] = withRefs(m.Entries[0], OptionsRef{Index1st: i1, N1st: 1, Index2nd: i2, N2nd: 1})

	got, err := Decode(m.Encode())
	require.NoError(t, err)
	first, second, err := got.ResolveOptions(got.Entries[0])
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, []string{"path=/v1", "proto=json"}, first[0].(ConfigurationStringOption).Entries)
	assert.Equal(t, LoadBalancingOption{Priority: 1, Weight: 200}, second[0])
}
