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
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/apex/log"
	"github.com/stretchr/testify/assert"
	"gitlab.com/project-nan/chatrelay/common"
	"gitlab.com/project-nan/chatrelay/relay"
	"gitlab.com/project-nan/chatrelay/storage"
)

// mockBrokerBridge implements relay.BrokerBridge for handler testing
type mockBrokerBridge struct {
	registry  *relay.CallbackRegistry
	lock      sync.Mutex
	published []relay.Envelope
	ready     bool
}

func newMockBrokerBridge(instance string) *mockBrokerBridge {
	return &mockBrokerBridge{registry: relay.GetCallbackRegistry(instance), ready: true}
}

func (b *mockBrokerBridge) Publish(ctxt context.Context, msg relay.Envelope) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.published = append(b.published, msg)
	return nil
}

func (b *mockBrokerBridge) Registry() *relay.CallbackRegistry { return b.registry }

func (b *mockBrokerBridge) Ready() bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.ready
}

func (b *mockBrokerBridge) Stop(ctxt context.Context) {}

func (b *mockBrokerBridge) setReady(ready bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.ready = ready
}

func (b *mockBrokerBridge) publishCount() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.published)
}

func (b *mockBrokerBridge) publishedAt(index int) relay.Envelope {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.published[index]
}

func utHTTPConfig() *common.HTTPConfig {
	return &common.HTTPConfig{
		Logging: common.HTTPRequestLogging{RequestIDHeader: "Chatrelay-Request-ID"},
	}
}

// ==============================================================================

func TestSiteRootPage(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	bridge := newMockBrokerBridge("ut-site-root")
	counter := storage.GetInMemoryCounter("ut-site-root")
	uut, err := GetAPIRestSiteHandler(bridge, counter, "ut-host", utHTTPConfig())
	assert.Nil(err)

	request := httptest.NewRequest("GET", "/", nil)
	request.Header.Set("User-Agent", "ut-agent")
	respRecorder := httptest.NewRecorder()
	uut.RootPageHandler().ServeHTTP(respRecorder, request)

	assert.Equal(http.StatusOK, respRecorder.Code)
	assert.Equal("text/html", respRecorder.Header().Get("Content-Type"))
	body := respRecorder.Body.String()
	assert.Contains(body, "chat_room")
	assert.Contains(body, "Page visits")
	assert.Contains(body, "ut-host")
	assert.Contains(body, "ut-agent")
}

func TestSiteVisitCount(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	bridge := newMockBrokerBridge("ut-site-count")
	counter := storage.GetInMemoryCounter("ut-site-count")
	uut, err := GetAPIRestSiteHandler(bridge, counter, "ut-host", utHTTPConfig())
	assert.Nil(err)

	// Each call increments the shared counter
	for itr := 1; itr <= 3; itr++ {
		respRecorder := httptest.NewRecorder()
		uut.CountHandler().ServeHTTP(respRecorder, httptest.NewRequest("GET", "/count", nil))
		assert.Equal(http.StatusOK, respRecorder.Code)
		expected := fmt.Sprintf("<span id=global_count>%d</span>", itr)
		assert.Contains(respRecorder.Body.String(), expected)
	}
}

func TestSiteManifest(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	bridge := newMockBrokerBridge("ut-site-manifest")
	counter := storage.GetInMemoryCounter("ut-site-manifest")
	uut, err := GetAPIRestSiteHandler(bridge, counter, "ut-host", utHTTPConfig())
	assert.Nil(err)

	respRecorder := httptest.NewRecorder()
	uut.ManifestHandler().ServeHTTP(
		respRecorder, httptest.NewRequest("GET", "/manifest.json", nil),
	)

	assert.Equal(http.StatusOK, respRecorder.Code)
	assert.Equal("application/json", respRecorder.Header().Get("Content-Type"))
	assert.Contains(respRecorder.Header().Get("Cache-Control"), "max-age=604800")
	assert.NotEmpty(respRecorder.Header().Get("Expires"))
	var parsed map[string]interface{}
	assert.Nil(json.Unmarshal(respRecorder.Body.Bytes(), &parsed))
	assert.Equal("chatrelay", parsed["name"])
}

func TestSiteHealthChecks(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	bridge := newMockBrokerBridge("ut-site-health")
	counter := storage.GetInMemoryCounter("ut-site-health")
	uut, err := GetAPIRestSiteHandler(bridge, counter, "ut-host", utHTTPConfig())
	assert.Nil(err)

	// Alive is unconditional
	{
		respRecorder := httptest.NewRecorder()
		uut.AliveHandler().ServeHTTP(respRecorder, httptest.NewRequest("GET", "/alive", nil))
		assert.Equal(http.StatusOK, respRecorder.Code)
		var resp StandardResponse
		assert.Nil(json.Unmarshal(respRecorder.Body.Bytes(), &resp))
		assert.True(resp.Success)
	}

	// Ready tracks the broker connection
	{
		respRecorder := httptest.NewRecorder()
		uut.ReadyHandler().ServeHTTP(respRecorder, httptest.NewRequest("GET", "/ready", nil))
		assert.Equal(http.StatusOK, respRecorder.Code)
	}
	bridge.setReady(false)
	{
		respRecorder := httptest.NewRecorder()
		uut.ReadyHandler().ServeHTTP(respRecorder, httptest.NewRequest("GET", "/ready", nil))
		assert.Equal(http.StatusServiceUnavailable, respRecorder.Code)
		var resp StandardResponse
		assert.Nil(json.Unmarshal(respRecorder.Body.Bytes(), &resp))
		assert.False(resp.Success)
	}
}

func TestSiteFallbackHandlers(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	bridge := newMockBrokerBridge("ut-site-fallback")
	counter := storage.GetInMemoryCounter("ut-site-fallback")
	uut, err := GetAPIRestSiteHandler(bridge, counter, "ut-host", utHTTPConfig())
	assert.Nil(err)

	{
		respRecorder := httptest.NewRecorder()
		uut.NotFoundHandler().ServeHTTP(
			respRecorder, httptest.NewRequest("GET", "/no-such-page", nil),
		)
		assert.Equal(http.StatusNotFound, respRecorder.Code)
		assert.Contains(respRecorder.Body.String(), "404 - Not Found")
	}
	{
		respRecorder := httptest.NewRecorder()
		uut.MethodNotAllowedHandler().ServeHTTP(
			respRecorder, httptest.NewRequest("POST", "/count", nil),
		)
		assert.Equal(http.StatusMethodNotAllowed, respRecorder.Code)
		assert.Contains(respRecorder.Body.String(), "405 - Method Not Allowed")
	}
}
