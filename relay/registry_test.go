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
	"context"
	"fmt"
	"testing"

	"github.com/apex/log"
	"github.com/stretchr/testify/assert"
)

func TestCallbackRegistrySubscription(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	uut := GetCallbackRegistry("ut-registry")
	utCtxt := context.Background()

	received := make(map[string][]Envelope)
	recorder := func(name string) EnvelopeHandler {
		return func(ctxt context.Context, msg Envelope) error {
			received[name] = append(received[name], msg)
			return nil
		}
	}

	cancelA := uut.Subscribe(recorder("a"))
	cancelB := uut.Subscribe(recorder("b"))
	cancelC := uut.Subscribe(recorder("c"))
	assert.Equal(3, uut.SubscriberCount())

	// Delivery reaches every registered handler
	msg1 := Envelope{Username: "9R4MSVx", Message: "hello"}
	uut.Fanout(utCtxt, msg1)
	assert.Equal([]Envelope{msg1}, received["a"])
	assert.Equal([]Envelope{msg1}, received["b"])
	assert.Equal([]Envelope{msg1}, received["c"])

	// A removed handler is no longer reached, the rest still are
	cancelB()
	assert.Equal(2, uut.SubscriberCount())
	msg2 := Envelope{Username: "9R4MSVx", Message: "again"}
	uut.Fanout(utCtxt, msg2)
	assert.Equal([]Envelope{msg1, msg2}, received["a"])
	assert.Equal([]Envelope{msg1}, received["b"])
	assert.Equal([]Envelope{msg1, msg2}, received["c"])

	// Unsubscribe is idempotent
	cancelB()
	cancelB()
	assert.Equal(2, uut.SubscriberCount())

	cancelA()
	cancelC()
	assert.Equal(0, uut.SubscriberCount())
	uut.Fanout(utCtxt, msg2)
	assert.Len(received["a"], 2)
}

func TestCallbackRegistryHandlerIsolation(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	uut := GetCallbackRegistry("ut-registry-isolation")
	utCtxt := context.Background()

	goodCalls := 0
	defer uut.Subscribe(func(ctxt context.Context, msg Envelope) error {
		goodCalls++
		return nil
	})()
	defer uut.Subscribe(func(ctxt context.Context, msg Envelope) error {
		return fmt.Errorf("dummy failure")
	})()
	defer uut.Subscribe(func(ctxt context.Context, msg Envelope) error {
		panic("dummy panic")
	})()

	// Neither the error nor the panic stops delivery to the healthy handler
	uut.Fanout(utCtxt, Envelope{Username: "someone", Message: "one"})
	uut.Fanout(utCtxt, Envelope{Username: "someone", Message: "two"})
	assert.Equal(2, goodCalls)
	assert.Equal(3, uut.SubscriberCount())
}
