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

// Package gateway governs one client WebSocket connection end to end: protocol
// validation, relaying validated input to the broker bridge, and rendering
// broker broadcasts back to the client.
package gateway

import (
	"context"
	"fmt"
	"html"
	"net"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"gitlab.com/project-nan/chatrelay/common"
	"gitlab.com/project-nan/chatrelay/relay"
)

// broadcastFragment is the exact markup existing clients consume; only the
// interpolated fields may change, never the surrounding literal.
const broadcastFragment = `<div id=chat_room hx-swap-oob="afterbegin"> <li>%s: %s</li> </div>`

// SessionParams parameters controlling a client session
type SessionParams struct {
	// MaxMessageSize max allowed size of a client frame in bytes
	MaxMessageSize int64 `validate:"gt=0"`
	// SendQueueLen outbound frame queue length
	SendQueueLen int `validate:"gt=0"`
	// WriteTimeout max duration for writing a frame to the client
	WriteTimeout time.Duration
}

// Session one client's live connection plus its derived identity and registry
// subscription. Created after a successful protocol upgrade, destroyed on
// connection close or protocol violation.
type Session struct {
	common.Component
	conn         *websocket.Conn
	bridge       relay.BrokerBridge
	identity     string
	send         chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	unsubscribe  func()
	validate     *validator.Validate
	writeTimeout time.Duration
}

// GetSession define a new client session around an upgraded connection
//
// The identity is derived once, from the host portion of the client's remote
// address, so one client keeps one display name across dials.
func GetSession(
	conn *websocket.Conn,
	bridge relay.BrokerBridge,
	remoteAddress string,
	params SessionParams,
) (*Session, error) {
	validate := validator.New()
	if err := validate.Struct(&params); err != nil {
		return nil, err
	}
	host, _, err := net.SplitHostPort(remoteAddress)
	if err != nil {
		host = remoteAddress
	}
	identity := relay.DeriveIdentity(host)
	logTags := log.Fields{
		"module":    "gateway",
		"component": "client-session",
		"identity":  identity,
		"instance":  uuid.New().String(),
	}
	conn.SetReadLimit(params.MaxMessageSize)
	return &Session{
		Component:    common.Component{LogTags: logTags},
		conn:         conn,
		bridge:       bridge,
		identity:     identity,
		send:         make(chan []byte, params.SendQueueLen),
		done:         make(chan struct{}),
		validate:     validate,
		writeTimeout: params.WriteTimeout,
	}, nil
}

// Identity the session's derived display name
func (s *Session) Identity() string {
	return s.identity
}

// Start install the registry subscription and begin serving the connection
func (s *Session) Start() {
	s.unsubscribe = s.bridge.Registry().Subscribe(s.renderBroadcast)
	go s.readPump()
	go s.writePump()
	log.WithFields(s.LogTags).Info("Session open")
}

// Closed whether the session has reached its terminal state
func (s *Session) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// close enter the terminal state: deregister from the registry and close the
// connection. Safe to call more than once.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
		close(s.done)
		if err := s.conn.Close(); err != nil {
			log.WithError(err).WithFields(s.LogTags).Debug("Connection close reported failure")
		}
		log.WithFields(s.LogTags).Info("Session closed")
	})
}

// readPump process client frames in arrival order until close or violation
func (s *Session) readPump() {
	defer s.close()
	for {
		msgType, raw, err := s.conn.ReadMessage()
		if err != nil {
			s.logReadEnd(err)
			return
		}
		if msgType != websocket.TextMessage {
			log.WithFields(s.LogTags).Debug("Received invalid binary frame, closing connection")
			return
		}
		frame, err := relay.ParseClientFrame(raw, s.validate)
		if err != nil {
			log.WithError(err).WithFields(s.LogTags).Warn("Failed to parse client frame, closing")
			return
		}
		switch frame.Type {
		case relay.ClientFrameTypePing:
			// Empty text frame as the pong reply. Never touches the broker.
			if err := s.enqueue([]byte{}); err != nil {
				log.WithError(err).WithFields(s.LogTags).Error("Unable to queue pong reply")
			}
		case relay.ClientFrameTypeMessage:
			msg := relay.Envelope{Username: s.identity, Message: frame.MessageText()}
			// The client sees its own message only through the fanout path
			if err := s.bridge.Publish(context.Background(), msg); err != nil {
				log.WithError(err).WithFields(s.LogTags).Errorf("Relay of %s failed", msg.String())
			}
		}
	}
}

// logReadEnd log the end of the read loop at a level matching its cause
func (s *Session) logReadEnd(err error) {
	if websocket.IsCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		log.WithFields(s.LogTags).Debug("Client disconnected")
		return
	}
	log.WithError(err).WithFields(s.LogTags).Debug("Read loop ended")
}

// writePump serialize all frame writes onto one goroutine
func (s *Session) writePump() {
	for {
		select {
		case frame := <-s.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
				log.WithError(err).WithFields(s.LogTags).Error("Unable to set write deadline")
				s.close()
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.WithError(err).WithFields(s.LogTags).Debug("Frame write failed")
				s.close()
				return
			}
		case <-s.done:
			return
		}
	}
}

// enqueue hand one frame to the write pump without blocking the caller
//
// A frame offered to a closed session, or to a full send queue, is dropped
// with an error; a slow client must never stall the delivering goroutine.
func (s *Session) enqueue(frame []byte) error {
	select {
	case <-s.done:
		return fmt.Errorf("session already closed")
	default:
	}
	select {
	case s.send <- frame:
		return nil
	default:
		return fmt.Errorf("send queue full, dropping frame")
	}
}

// renderBroadcast registry fanout handler: render one envelope to the client
//
// The interpolated fields are HTML escaped; the surrounding markup stays
// byte-identical for existing clients.
func (s *Session) renderBroadcast(ctxt context.Context, msg relay.Envelope) error {
	return s.enqueue([]byte(fmt.Sprintf(
		broadcastFragment, html.EscapeString(msg.Username), html.EscapeString(msg.Message),
	)))
}
