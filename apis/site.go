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
	_ "embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/apex/log"
	"gitlab.com/project-nan/chatrelay/common"
	"gitlab.com/project-nan/chatrelay/relay"
	"gitlab.com/project-nan/chatrelay/storage"
)

//go:embed static/manifest.json
var manifestJSON []byte

// staticCacheMaxAge cache lifetime for static assets
const staticCacheMaxAge = 7 * 24 * time.Hour

// indexTemplate the root informational page with the chat UI
const indexTemplate = `<!DOCTYPE html>
<html>
<head>
	<title>chatrelay</title>
	<link rel="manifest" href="/manifest.json">
</head>
<body>
	<h1>chatrelay</h1>
	<h2>Client</h2>
	<pre>{{ .ClientInfo }}</pre>
	<h2>Server</h2>
	<pre>{{ .ServerInfo }}</pre>
	<p>Page visits: <span id=global_count>{{ .GlobalCount }}</span></p>
	<h2>Chat</h2>
	<div>
		<input type="text" id="chat_input" placeholder="Type a message...">
		<button id="chat_send">Send</button>
	</div>
	<ul id="chat_room"></ul>
	<script>
		const proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
		const ws = new WebSocket(proto + location.host + '/ws');
		const room = document.getElementById('chat_room');
		const input = document.getElementById('chat_input');

		ws.onmessage = (ev) => {
			if (ev.data === '') return; // pong
			const holder = document.createElement('div');
			holder.innerHTML = ev.data;
			const entry = holder.querySelector('li');
			if (entry) room.prepend(entry);
		};
		setInterval(() => {
			if (ws.readyState === WebSocket.OPEN) ws.send(JSON.stringify({type: 'ping'}));
		}, 30000);

		function send() {
			if (ws.readyState !== WebSocket.OPEN || !input.value) return;
			ws.send(JSON.stringify({type: 'message', message: input.value}));
			input.value = '';
		}
		document.getElementById('chat_send').onclick = send;
		input.addEventListener('keypress', (e) => { if (e.key === 'Enter') send(); });
	</script>
</body>
</html>
`

// countTemplate fragment returned by the count endpoint
const countTemplate = `<span id=global_count>{{ .GlobalCount }}</span>
`

// APIRestSiteHandler handler for the informational pages around the relay
type APIRestSiteHandler struct {
	APIRestHandler
	bridge    relay.BrokerBridge
	counter   storage.VisitCounter
	hostname  string
	indexPage *template.Template
	countPage *template.Template
}

// GetAPIRestSiteHandler define APIRestSiteHandler
func GetAPIRestSiteHandler(
	bridge relay.BrokerBridge,
	counter storage.VisitCounter,
	hostname string,
	httpConfig *common.HTTPConfig,
) (APIRestSiteHandler, error) {
	logTags := log.Fields{
		"module":    "rest",
		"component": "site",
		"instance":  hostname,
	}
	indexPage, err := template.New("index").Parse(indexTemplate)
	if err != nil {
		log.WithError(err).WithFields(logTags).Error("Unable to parse index template")
		return APIRestSiteHandler{}, err
	}
	countPage, err := template.New("count").Parse(countTemplate)
	if err != nil {
		log.WithError(err).WithFields(logTags).Error("Unable to parse count template")
		return APIRestSiteHandler{}, err
	}
	return APIRestSiteHandler{
		APIRestHandler: APIRestHandler{
			Component:       common.Component{LogTags: logTags},
			RequestIDHeader: httpConfig.Logging.RequestIDHeader,
		},
		bridge:    bridge,
		counter:   counter,
		hostname:  hostname,
		indexPage: indexPage,
		countPage: countPage,
	}, nil
}

// ====================================================================================
// Root page

// RootPage godoc
// @Summary Root informational page
// @Description Displays client and server information, the visit count, and the chat UI
// @tags Site
// @Produce html
// @Success 200 {string} string "rendered page"
// @Router / [get]
func (h APIRestSiteHandler) RootPage(w http.ResponseWriter, r *http.Request) {
	count, err := h.counter.Current(r.Context())
	if err != nil {
		log.WithError(err).WithFields(h.LogTags).Error("Unable to read visit count")
	}
	params := struct {
		ClientInfo  string
		ServerInfo  string
		GlobalCount int64
	}{
		ClientInfo:  fmt.Sprintf("address: %s\nuser-agent: %s", r.RemoteAddr, r.UserAgent()),
		ServerInfo:  fmt.Sprintf("instance: %s", h.hostname),
		GlobalCount: count,
	}
	w.Header().Set("Content-Type", "text/html")
	if err := h.indexPage.Execute(w, &params); err != nil {
		log.WithError(err).WithFields(h.LogTags).Error("Unable to render index page")
	}
}

// RootPageHandler Wrapper around RootPage
func (h APIRestSiteHandler) RootPageHandler() http.HandlerFunc {
	return h.attachRequestID(func(w http.ResponseWriter, r *http.Request) {
		h.RootPage(w, r)
	})
}

// ====================================================================================
// Visit count

// Count godoc
// @Summary Increment the visit count
// @Description Increments the shared visit counter and returns the updated fragment
// @tags Site
// @Produce html
// @Success 200 {string} string "rendered fragment"
// @Failure 500 {string} string "error"
// @Router /count [get]
func (h APIRestSiteHandler) Count(w http.ResponseWriter, r *http.Request) {
	count, err := h.counter.Increment(r.Context())
	if err != nil {
		log.WithError(err).WithFields(h.LogTags).Error("Unable to increment visit count")
		http.Error(w, "500 - Counter unavailable", http.StatusInternalServerError)
		return
	}
	params := struct{ GlobalCount int64 }{GlobalCount: count}
	w.Header().Set("Content-Type", "text/html")
	if err := h.countPage.Execute(w, &params); err != nil {
		log.WithError(err).WithFields(h.LogTags).Error("Unable to render count fragment")
	}
}

// CountHandler Wrapper around Count
func (h APIRestSiteHandler) CountHandler() http.HandlerFunc {
	return h.attachRequestID(func(w http.ResponseWriter, r *http.Request) {
		h.Count(w, r)
	})
}

// ====================================================================================
// Static assets

// Manifest godoc
// @Summary Web application manifest
// @tags Site
// @Produce json
// @Success 200 {string} string "manifest"
// @Router /manifest.json [get]
func (h APIRestSiteHandler) Manifest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(
		"Cache-Control", fmt.Sprintf("public, max-age=%d", int(staticCacheMaxAge.Seconds())),
	)
	w.Header().Set("Expires", time.Now().Add(staticCacheMaxAge).UTC().Format(http.TimeFormat))
	if _, err := w.Write(manifestJSON); err != nil {
		log.WithError(err).WithFields(h.LogTags).Error("Unable to write manifest")
	}
}

// ManifestHandler Wrapper around Manifest
func (h APIRestSiteHandler) ManifestHandler() http.HandlerFunc {
	return h.attachRequestID(func(w http.ResponseWriter, r *http.Request) {
		h.Manifest(w, r)
	})
}

// ====================================================================================
// Health checks

// Alive godoc
// @Summary For liveness check
// @tags Site
// @Produce json
// @Success 200 {object} StandardResponse "success"
// @Router /alive [get]
func (h APIRestSiteHandler) Alive(w http.ResponseWriter, r *http.Request) {
	h.reply(w, http.StatusOK, getStdRESTSuccessMsg(), "GET /alive")
}

// AliveHandler Wrapper around Alive
func (h APIRestSiteHandler) AliveHandler() http.HandlerFunc {
	return h.attachRequestID(func(w http.ResponseWriter, r *http.Request) {
		h.Alive(w, r)
	})
}

// Ready godoc
// @Summary For readiness check
// @Description Reports ready once the broker connection is live
// @tags Site
// @Produce json
// @Success 200 {object} StandardResponse "success"
// @Failure 503 {object} StandardResponse "not ready"
// @Router /ready [get]
func (h APIRestSiteHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.bridge.Ready() {
		h.reply(w, http.StatusOK, getStdRESTSuccessMsg(), "GET /ready")
		return
	}
	msg := "broker connection not ready"
	h.reply(
		w,
		http.StatusServiceUnavailable,
		getStdRESTErrorMsg(http.StatusServiceUnavailable, &msg),
		"GET /ready",
	)
}

// ReadyHandler Wrapper around Ready
func (h APIRestSiteHandler) ReadyHandler() http.HandlerFunc {
	return h.attachRequestID(func(w http.ResponseWriter, r *http.Request) {
		h.Ready(w, r)
	})
}

// ====================================================================================
// Fallbacks

// NotFound catch-all for unknown paths
func (h APIRestSiteHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "404 - Not Found", http.StatusNotFound)
}

// NotFoundHandler Wrapper around NotFound
func (h APIRestSiteHandler) NotFoundHandler() http.HandlerFunc {
	return h.attachRequestID(func(w http.ResponseWriter, r *http.Request) {
		h.NotFound(w, r)
	})
}

// MethodNotAllowed catch-all for known paths with the wrong method
func (h APIRestSiteHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "405 - Method Not Allowed", http.StatusMethodNotAllowed)
}

// MethodNotAllowedHandler Wrapper around MethodNotAllowed
func (h APIRestSiteHandler) MethodNotAllowedHandler() http.HandlerFunc {
	return h.attachRequestID(func(w http.ResponseWriter, r *http.Request) {
		h.MethodNotAllowed(w, r)
	})
}
