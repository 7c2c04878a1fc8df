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
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// DefaultChannel the shared broker channel all relayed chat messages pass through
const DefaultChannel = "chat/default"

// Envelope the wire payload exchanged with the broker
type Envelope struct {
	// Username is the sender's derived display name
	Username string `json:"username" validate:"required"`
	// Message is the chat message text. May be empty.
	Message string `json:"message"`
}

// String toString function
func (e Envelope) String() string {
	return fmt.Sprintf("ENVELOPE[%s]", e.Username)
}

// ==============================================================================
// Client frames

// Supported client frame types
const (
	// ClientFrameTypePing client requests a keep-alive pong
	ClientFrameTypePing = "ping"
	// ClientFrameTypeMessage client submits a chat message for relay
	ClientFrameTypeMessage = "message"
)

// ClientFrame a validated client-to-server frame
type ClientFrame struct {
	// Type is the frame type discriminator
	Type string `json:"type" validate:"required,oneof=ping message"`
	// Message is the chat message text for "message" frames. A missing field
	// is relayed as an empty message rather than rejected.
	Message *string `json:"message,omitempty"`
}

// MessageText fetch the message text of a "message" frame
func (f ClientFrame) MessageText() string {
	if f.Message == nil {
		return ""
	}
	return *f.Message
}

// ParseClientFrame parse and validate a raw client frame
//
// Any frame not matching the protocol is returned as an error; the caller is
// expected to treat that as a protocol violation.
func ParseClientFrame(raw []byte, validate *validator.Validate) (ClientFrame, error) {
	var frame ClientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return ClientFrame{}, err
	}
	if err := validate.Struct(&frame); err != nil {
		return ClientFrame{}, err
	}
	return frame, nil
}
