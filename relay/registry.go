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
	"sync"

	"github.com/apex/log"
	"github.com/google/uuid"
	"gitlab.com/project-nan/chatrelay/common"
)

// EnvelopeHandler callback invoked with each inbound envelope
type EnvelopeHandler func(ctxt context.Context, msg Envelope) error

// CallbackRegistry multiplexes inbound envelopes to N independent local
// subscribers. One entry per live client session.
type CallbackRegistry struct {
	common.Component
	lock     *sync.Mutex
	handlers map[string]EnvelopeHandler
}

// GetCallbackRegistry define a new CallbackRegistry
func GetCallbackRegistry(instance string) *CallbackRegistry {
	logTags := log.Fields{
		"module":    "relay",
		"component": "callback-registry",
		"instance":  instance,
	}
	return &CallbackRegistry{
		Component: common.Component{LogTags: logTags},
		lock:      &sync.Mutex{},
		handlers:  make(map[string]EnvelopeHandler),
	}
}

// Subscribe register a handler under a freshly generated unique ID
//
// The returned closure removes exactly that entry; calling it more than once
// is a no-op.
func (r *CallbackRegistry) Subscribe(handler EnvelopeHandler) func() {
	id := uuid.New().String()
	r.lock.Lock()
	r.handlers[id] = handler
	r.lock.Unlock()
	log.WithFields(r.LogTags).Debugf("Registered subscriber %s", id)
	return func() {
		r.lock.Lock()
		defer r.lock.Unlock()
		if _, ok := r.handlers[id]; ok {
			delete(r.handlers, id)
			log.WithFields(r.LogTags).Debugf("Removed subscriber %s", id)
		}
	}
}

// SubscriberCount number of currently registered handlers
func (r *CallbackRegistry) SubscriberCount() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.handlers)
}

// Fanout deliver an envelope to every handler registered at this moment
//
// Handler invocations are isolated: a handler error or panic is logged and
// does not stop delivery to the remaining handlers. Order is unspecified.
func (r *CallbackRegistry) Fanout(ctxt context.Context, msg Envelope) {
	r.lock.Lock()
	targets := make(map[string]EnvelopeHandler, len(r.handlers))
	for id, handler := range r.handlers {
		targets[id] = handler
	}
	r.lock.Unlock()
	for id, handler := range targets {
		if err := r.deliver(ctxt, id, handler, msg); err != nil {
			log.WithError(err).WithFields(r.LogTags).Errorf(
				"Delivery of %s to subscriber %s failed", msg.String(), id,
			)
		}
	}
}

func (r *CallbackRegistry) deliver(
	ctxt context.Context, id string, handler EnvelopeHandler, msg Envelope,
) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("subscriber %s panic: %v", id, p)
		}
	}()
	return handler(ctxt, msg)
}
