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

import someip "github.com/reneherrero/someip-go/someip/protocol"

// sdErr wraps a malformed-SD-message reason in the shared error taxonomy
// (spec §7: one Kind enum across the whole module).
func sdErr(reason string) error {
	return &someip.Error{Kind: someip.KindServiceDiscoveryError, Reason: reason}
}
