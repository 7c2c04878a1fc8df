// Copyright 2024-2025 The chatrelay Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package relay

import (
	"crypto/sha1"
	"encoding/base64"
)

// DefaultIdentity identity used when one can not be derived
const DefaultIdentity = "default"

// DeriveIdentity derive a short pseudonymous display name from a client's
// network address.
//
// The name is a fixed seven character slice of the Base64 encoded SHA-1 digest
// of the address, starting at offset one. Deterministic: the same address
// always yields the same name. This is cosmetic only and is not a security
// boundary of any kind.
func DeriveIdentity(remoteAddress string) string {
	if remoteAddress == "" {
		return DefaultIdentity
	}
	digest := sha1.Sum([]byte(remoteAddress))
	encoded := base64.StdEncoding.EncodeToString(digest[:])
	return encoded[1:8]
}
