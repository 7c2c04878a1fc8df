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

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func TestParseClientFrame(t *testing.T) {
	assert := assert.New(t)
	validate := validator.New()

	// Case 0: ping frame
	{
		frame, err := ParseClientFrame([]byte(`{"type":"ping"}`), validate)
		assert.Nil(err)
		assert.Equal(ClientFrameTypePing, frame.Type)
	}

	// Case 1: message frame
	{
		frame, err := ParseClientFrame([]byte(`{"type":"message","message":"hi"}`), validate)
		assert.Nil(err)
		assert.Equal(ClientFrameTypeMessage, frame.Type)
		assert.Equal("hi", frame.MessageText())
	}

	// Case 2: message frame with the message field absent is tolerated as empty
	{
		frame, err := ParseClientFrame([]byte(`{"type":"message"}`), validate)
		assert.Nil(err)
		assert.Equal(ClientFrameTypeMessage, frame.Type)
		assert.Nil(frame.Message)
		assert.Equal("", frame.MessageText())
	}

	// Case 3: unknown extra fields are ignored
	{
		frame, err := ParseClientFrame(
			[]byte(`{"type":"message","message":"hi","HEADERS":{}}`), validate,
		)
		assert.Nil(err)
		assert.Equal("hi", frame.MessageText())
	}

	// Case 4: unparsable JSON
	{
		_, err := ParseClientFrame([]byte(`not json`), validate)
		assert.NotNil(err)
	}

	// Case 5: unknown type
	{
		_, err := ParseClientFrame([]byte(`{"type":"shout","message":"hi"}`), validate)
		assert.NotNil(err)
	}

	// Case 6: missing type
	{
		_, err := ParseClientFrame([]byte(`{"message":"hi"}`), validate)
		assert.NotNil(err)
	}

	// Case 7: valid JSON which is not an object
	{
		_, err := ParseClientFrame([]byte(`"ping"`), validate)
		assert.NotNil(err)
	}
}
