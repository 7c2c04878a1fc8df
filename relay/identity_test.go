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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveIdentity(t *testing.T) {
	assert := assert.New(t)

	// Pinned regression fixture: SHA-1 + Base64, seven characters from offset one
	assert.Equal("9R4MSVx", DeriveIdentity("203.0.113.7"))
	assert.Equal("mgNfYyK", DeriveIdentity("10.0.0.1:1234"))

	// Deterministic within a process run
	assert.Equal(DeriveIdentity("192.0.2.1"), DeriveIdentity("192.0.2.1"))

	// Fixed output length
	assert.Len(DeriveIdentity("2001:db8::1"), 7)

	// Different addresses yield different names
	assert.NotEqual(DeriveIdentity("192.0.2.1"), DeriveIdentity("192.0.2.2"))

	// Underivable input falls back to the default identity
	assert.Equal(DefaultIdentity, DeriveIdentity(""))
}
