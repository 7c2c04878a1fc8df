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
	"encoding/json"
	"time"
	"unicode/utf8"

	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"
	"gitlab.com/project-nan/chatrelay/common"
	"gitlab.com/project-nan/chatrelay/core"
)

// BrokerBridge the sole owner of the process's upstream broker connection for
// chat traffic. Publishes outbound envelopes on the fixed channel, decodes
// inbound payloads, and fans them out to the local subscriber registry.
type BrokerBridge interface {
	// Publish serialize an envelope onto the shared channel
	Publish(ctxt context.Context, msg Envelope) error
	// Registry fetch the local subscriber registry
	Registry() *CallbackRegistry
	// Ready whether the upstream broker connection is currently live
	Ready() bool
	// Stop tear down the channel subscription
	Stop(ctxt context.Context)
}

// natsBrokerBridge implements BrokerBridge against NATS
type natsBrokerBridge struct {
	common.Component
	nats           *core.NatsClient
	channel        string
	registry       *CallbackRegistry
	validate       *validator.Validate
	sub            *nats.Subscription
	publishTimeout time.Duration
}

// GetNatsBrokerBridge define a new BrokerBridge backed by NATS
//
// Subscribes to the channel immediately; a subscribe failure is logged but is
// not fatal, matching the connect-then-subscribe split of the broker client.
func GetNatsBrokerBridge(
	natsClient *core.NatsClient, channel string, publishTimeout time.Duration, instance string,
) (BrokerBridge, error) {
	logTags := log.Fields{
		"module":    "relay",
		"component": "broker-bridge",
		"channel":   channel,
		"instance":  instance,
	}
	bridge := &natsBrokerBridge{
		Component:      common.Component{LogTags: logTags},
		nats:           natsClient,
		channel:        channel,
		registry:       GetCallbackRegistry(instance),
		validate:       validator.New(),
		publishTimeout: publishTimeout,
	}
	sub, err := natsClient.NATS().Subscribe(channel, bridge.handleInbound)
	if err != nil {
		log.WithError(err).WithFields(logTags).Errorf("Failed to subscribe to %s", channel)
	} else {
		bridge.sub = sub
		log.WithFields(logTags).Infof("Subscribed to %s", channel)
	}
	return bridge, nil
}

// Registry fetch the local subscriber registry
func (b *natsBrokerBridge) Registry() *CallbackRegistry {
	return b.registry
}

// Ready whether the upstream broker connection is currently live
func (b *natsBrokerBridge) Ready() bool {
	return b.nats.Connected()
}

// Stop tear down the channel subscription
func (b *natsBrokerBridge) Stop(ctxt context.Context) {
	if b.sub == nil {
		return
	}
	if err := b.sub.Unsubscribe(); err != nil {
		log.WithError(err).WithFields(b.LogTags).Error("Unsubscribe failed")
	} else {
		log.WithFields(b.LogTags).Infof("Unsubscribed from %s", b.channel)
	}
	b.sub = nil
}

// Publish serialize an envelope onto the shared channel
//
// Returns once the message is flushed to the broker or the flush fails. No
// retry is layered on top; reconnect buffering is delegated to the NATS client.
func (b *natsBrokerBridge) Publish(ctxt context.Context, msg Envelope) error {
	if err := b.validate.Struct(&msg); err != nil {
		log.WithError(err).WithFields(b.LogTags).Errorf("Refusing to publish %s", msg.String())
		return err
	}
	payload, err := json.Marshal(&msg)
	if err != nil {
		log.WithError(err).WithFields(b.LogTags).Errorf("Failed to serialize %s", msg.String())
		return err
	}
	if err := b.nats.NATS().Publish(b.channel, payload); err != nil {
		log.WithError(err).WithFields(b.LogTags).Errorf("Unable to send %s", msg.String())
		return err
	}
	flushCtxt, cancel := context.WithTimeout(ctxt, b.publishTimeout)
	defer cancel()
	if err := b.nats.NATS().FlushWithContext(flushCtxt); err != nil {
		log.WithError(err).WithFields(b.LogTags).Errorf("Flush of %s failed", msg.String())
		return err
	}
	log.WithFields(b.LogTags).Debugf("Sent %s to %s", msg.String(), b.channel)
	return nil
}

// handleInbound entry point for messages delivered by the NATS subscription
func (b *natsBrokerBridge) handleInbound(natsMsg *nats.Msg) {
	b.processInbound(context.Background(), natsMsg.Subject, natsMsg.Data)
}

// processInbound decode one inbound payload and fan it out
//
// A payload which is not strict UTF-8, or not a valid envelope, is logged and
// dropped; a single bad message must not tear down the shared connection or
// any client session.
func (b *natsBrokerBridge) processInbound(ctxt context.Context, channel string, payload []byte) {
	if channel != b.channel {
		log.WithFields(b.LogTags).Warnf("Unknown msg from '%s'", channel)
		return
	}
	if !utf8.Valid(payload) {
		log.WithFields(b.LogTags).Errorf("Dropping non UTF-8 payload on %s", channel)
		return
	}
	var msg Envelope
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.WithError(err).WithFields(b.LogTags).Errorf("Dropping unparsable payload on %s", channel)
		return
	}
	if err := b.validate.Struct(&msg); err != nil {
		log.WithError(err).WithFields(b.LogTags).Errorf("Dropping invalid envelope on %s", channel)
		return
	}
	log.WithFields(b.LogTags).Debugf("Received %s", msg.String())
	b.registry.Fanout(ctxt, msg)
}
