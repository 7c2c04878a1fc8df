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

package apis

import (
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/gorilla/websocket"
	"gitlab.com/project-nan/chatrelay/common"
	"gitlab.com/project-nan/chatrelay/gateway"
	"gitlab.com/project-nan/chatrelay/relay"
)

// APIRestChatHandler handler for the WebSocket upgrade endpoint
type APIRestChatHandler struct {
	APIRestHandler
	bridge        relay.BrokerBridge
	upgrader      websocket.Upgrader
	sessionParams gateway.SessionParams
}

// GetAPIRestChatHandler define APIRestChatHandler
func GetAPIRestChatHandler(
	bridge relay.BrokerBridge, chatConfig common.ChatConfig, httpConfig *common.HTTPConfig,
) (APIRestChatHandler, error) {
	logTags := log.Fields{
		"module":    "rest",
		"component": "chat",
	}
	return APIRestChatHandler{
		APIRestHandler: APIRestHandler{
			Component:       common.Component{LogTags: logTags},
			RequestIDHeader: httpConfig.Logging.RequestIDHeader,
		},
		bridge: bridge,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Sessions carry no credentials, so cross-origin dials are allowed
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessionParams: gateway.SessionParams{
			MaxMessageSize: chatConfig.MaxMessageSize,
			SendQueueLen:   chatConfig.SendQueueLen,
			WriteTimeout:   time.Second * time.Duration(chatConfig.WriteTimeout),
		},
	}, nil
}

// Websocket godoc
// @Summary Join the chat
// @Description Upgrade the connection to a WebSocket chat session
// @tags Chat
// @Success 101 {string} string "connection upgraded"
// @Failure 400 {string} string "error"
// @Router /ws [get]
func (h APIRestChatHandler) Websocket(w http.ResponseWriter, r *http.Request) {
	localLogTags := h.LogTags
	if !websocket.IsWebSocketUpgrade(r) {
		log.WithFields(localLogTags).Debugf(
			"Rejecting non-upgrade request from %s", r.RemoteAddr,
		)
		http.Error(w, "400 - Expected websocket", http.StatusBadRequest)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the failure response
		log.WithError(err).WithFields(localLogTags).Errorf(
			"Upgrade of %s failed", r.RemoteAddr,
		)
		return
	}
	session, err := gateway.GetSession(conn, h.bridge, r.RemoteAddr, h.sessionParams)
	if err != nil {
		log.WithError(err).WithFields(localLogTags).Errorf(
			"Unable to define session for %s", r.RemoteAddr,
		)
		_ = conn.Close()
		return
	}
	session.Start()
}

// WebsocketHandler Wrapper around Websocket
func (h APIRestChatHandler) WebsocketHandler() http.HandlerFunc {
	return h.attachRequestID(func(w http.ResponseWriter, r *http.Request) {
		h.Websocket(w, r)
	})
}
