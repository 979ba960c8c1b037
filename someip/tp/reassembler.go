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
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash"

	someip "github.com/reneherrero/someip-go/someip/protocol"
)

// DefaultMaxReassembled is the 64 MiB ceiling on a reassembled payload
// (spec §4.9 step 3).
const DefaultMaxReassembled = 64 * 1024 * 1024

// DefaultReassemblyTimeout is how long an incomplete transfer is kept
// before being evicted and reported as abandoned (spec §4.9).
const DefaultReassemblyTimeout = 5 * time.Second

// DefaultMaxConcurrentReassemblies bounds the reassembly table; oldest
// entries are evicted first once the cap is hit (spec §5).
const DefaultMaxConcurrentReassemblies = 256

// hashFastPathThreshold is the overlap size above which the two sides are
// compared by xxhash alone instead of bytes.Equal, avoiding a large memcmp
// on every duplicate segment of a long transfer.
const hashFastPathThreshold = 256

// Key uniquely identifies one in-flight transfer (spec §3).
type Key struct {
	ServiceID        someip.ServiceID
	MethodID         someip.MethodID
	ClientID         someip.ClientID
	SessionID        someip.SessionID
	InterfaceVersion uint8
	MessageType      someip.MessageType // non-TP variant
}

func keyFor(h *someip.Header) Key {
	return Key{
		ServiceID:        h.ServiceID,
		MethodID:         h.MethodID,
		ClientID:         h.ClientID,
		SessionID:        h.SessionID,
		InterfaceVersion: h.InterfaceVersion,
		MessageType:      h.MessageType.WithoutTP(),
	}
}

type byteRange struct {
	start, end int // [start, end)
}

type entry struct {
	buf        []byte
	covered    []byteRange
	total      int
	totalKnown bool
	header     someip.Header // from any received segment, non-TP message_type substituted on completion
	haveHeader bool
	deadline   time.Time
}

func (e *entry) isComplete() bool {
	return e.totalKnown && len(e.covered) == 1 && e.covered[0].start == 0 && e.covered[0].end == e.total
}

// mergeRange inserts [start,end) into e.covered, coalescing adjacent/overlapping ranges.
func (e *entry) mergeRange(start, end int) {
	e.covered = append(e.covered, byteRange{start, end})
	sort.Slice(e.covered, func(i, j int) bool { return e.covered[i].start < e.covered[j].start })
	merged := e.covered[:0]
	for _, r := range e.covered {
		if n := len(merged); n > 0 && r.start <= merged[n-1].end {
			if r.end > merged[n-1].end {
				merged[n-1].end = r.end
			}
		} else {
			merged = append(merged, r)
		}
	}
	e.covered = merged
}

func (e *entry) ensureCapacity(n int) {
	if len(e.buf) >= n {
		return
	}
	grown := make([]byte, n)
	copy(grown, e.buf)
	e.buf = grown
}

// checkOverlap reports whether the new chunk agrees with any already-received
// bytes in [start,end). Ranges outside what has been received are ignored --
// only the intersection with already-covered ranges must match.
func (e *entry) checkOverlap(start int, chunk []byte) error {
	newEnd := start + len(chunk)
	for _, r := range e.covered {
		lo, hi := max(start, r.start), min(newEnd, r.end)
		if lo >= hi {
			continue
		}
		existing := e.buf[lo:hi]
		incoming := chunk[lo-start : hi-start]
		if len(existing) > hashFastPathThreshold {
			// A match is accepted on the hash alone, skipping the memcmp; a
			// genuine xxhash collision between two different retransmitted
			// segments is a risk we accept in exchange for not re-comparing
			// large overlaps on every duplicate segment of a long transfer.
			if xxhash.Sum64(existing) == xxhash.Sum64(incoming) {
				continue
			}
			return tpErr("conflicting overlap")
		}
		if !bytes.Equal(existing, incoming) {
			return tpErr("conflicting overlap")
		}
	}
	return nil
}

// Reassembler reconstructs payloads from TP segments, keyed by the
// correlation tuple (spec §4.9). Tolerant of out-of-order arrival, gaps and
// duplicates; abandoned transfers are evicted on a timeout by Prune, which
// Add runs before processing each segment.
type Reassembler struct {
	mu                 sync.Mutex
	entries            map[Key]*entry
	order              []Key // insertion order, for oldest-first eviction
	maxReassembled     int
	timeout            time.Duration
	maxConcurrent      int
	errCh              chan error
}

// NewReassembler builds a Reassembler with the spec's defaults.
func NewReassembler() *Reassembler {
	return &Reassembler{
		entries:        make(map[Key]*entry),
		maxReassembled: DefaultMaxReassembled,
		timeout:        DefaultReassemblyTimeout,
		maxConcurrent:  DefaultMaxConcurrentReassemblies,
		errCh:          make(chan error, 64),
	}
}

// SetMaxReassembled overrides the reassembled-payload ceiling.
func (r *Reassembler) SetMaxReassembled(n int) { r.maxReassembled = n }

// SetTimeout overrides the per-transfer abandonment timeout.
func (r *Reassembler) SetTimeout(d time.Duration) { r.timeout = d }

// SetMaxConcurrent overrides the reassembly table size cap.
func (r *Reassembler) SetMaxConcurrent(n int) { r.maxConcurrent = n }

// Errors returns the channel SegmentationErrors for abandoned transfers are
// delivered on. Never closed; the caller selects on it alongside its normal
// read loop (spec §7 propagation policy: TP errors never abort the server).
func (r *Reassembler) Errors() <-chan error { return r.errCh }

// ActiveCount returns the number of in-flight reassembly entries, for
// reporting as a gauge.
func (r *Reassembler) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Add processes one incoming TP segment. It returns a non-nil message when
// the transfer it belongs to is now complete (spec §4.9).
func (r *Reassembler) Add(seg *someip.Message) (*someip.Message, error) {
	if len(seg.Payload) < HeaderSize {
		return nil, tpErr("segment payload shorter than TP header")
	}
	tpHdr, err := DecodeHeader(seg.Payload[:HeaderSize])
	if err != nil {
		return nil, err
	}
	chunk := seg.Payload[HeaderSize:]
	offset := int(tpHdr.Offset)

	r.Prune()

	if offset%16 != 0 {
		return nil, tpErr(fmt.Sprintf("offset %d not a multiple of 16", offset))
	}
	if offset+len(chunk) > r.maxReassembled {
		return nil, tpErr(fmt.Sprintf("reassembled payload would exceed %d bytes", r.maxReassembled))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := keyFor(&seg.Header)
	e, ok := r.entries[key]
	if !ok {
		if len(r.entries) >= r.maxConcurrent {
			r.evictOldestLocked()
		}
		e = &entry{deadline: time.Now().Add(r.timeout)}
		r.entries[key] = e
		r.order = append(r.order, key)
	}

	if e.totalKnown && offset+len(chunk) > e.total {
		return nil, tpErr("offset+len exceeds known total length")
	}
	if !tpHdr.MoreSegments && e.totalKnown && offset+len(chunk) != e.total {
		return nil, tpErr("final segment disagrees with known total length")
	}

	e.ensureCapacity(offset + len(chunk))
	if err := e.checkOverlap(offset, chunk); err != nil {
		return nil, err
	}
	copy(e.buf[offset:offset+len(chunk)], chunk)
	e.mergeRange(offset, offset+len(chunk))

	if !e.haveHeader {
		e.header = seg.Header
		e.haveHeader = true
	}
	if !tpHdr.MoreSegments {
		e.total = offset + len(chunk)
		e.totalKnown = true
	}
	e.deadline = time.Now().Add(r.timeout)

	if !e.isComplete() {
		return nil, nil
	}

	delete(r.entries, key)
	r.removeFromOrderLocked(key)

	h := e.header
	h.MessageType = h.MessageType.WithoutTP()
	h.Length = uint32(8 + e.total)
	out := &someip.Message{Header: h, Payload: e.buf[:e.total]}
	return out, nil
}

func (r *Reassembler) removeFromOrderLocked(key Key) {
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

func (r *Reassembler) evictOldestLocked() {
	if len(r.order) == 0 {
		return
	}
	key := r.order[0]
	r.order = r.order[1:]
	delete(r.entries, key)
	r.emitIncomplete(key)
}

// Prune evicts entries past their deadline, reporting each as an
// incomplete transfer on the error channel. Add calls it on every segment
// for amortized eviction; it may also be called on a timer (spec §9 design
// note).
func (r *Reassembler) Prune() {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []Key
	for _, key := range r.order {
		if e, ok := r.entries[key]; ok && now.After(e.deadline) {
			expired = append(expired, key)
		}
	}
	for _, key := range expired {
		delete(r.entries, key)
		r.removeFromOrderLocked(key)
		r.emitIncomplete(key)
	}
}

func (r *Reassembler) emitIncomplete(key Key) {
	err := tpErr(fmt.Sprintf("incomplete transfer for %+v", key))
	select {
	case r.errCh <- err:
	default:
		// error channel full; drop rather than block the caller holding the lock.
	}
}
