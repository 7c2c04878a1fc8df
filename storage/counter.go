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

package storage

import (
	"context"
	"sync/atomic"

	"github.com/apex/log"
	"gitlab.com/project-nan/chatrelay/common"
)

// VisitCounter a shared monotonic counter passed explicitly to whichever
// component needs it; never process-global state.
type VisitCounter interface {
	// Increment add one to the count and return the new value
	Increment(ctxt context.Context) (int64, error)
	// Current read the count without changing it
	Current(ctxt context.Context) (int64, error)
}

// inMemoryCounter implements VisitCounter with an atomic counter
//
// The count is local to one process instance and resets on restart. Use the
// Redis backed implementation when a true cross-instance count is needed.
type inMemoryCounter struct {
	common.Component
	count int64
}

// GetInMemoryCounter define an in-memory VisitCounter
func GetInMemoryCounter(instance string) VisitCounter {
	logTags := log.Fields{
		"module":    "storage",
		"component": "memory-counter",
		"instance":  instance,
	}
	return &inMemoryCounter{Component: common.Component{LogTags: logTags}}
}

// Increment add one to the count and return the new value
func (c *inMemoryCounter) Increment(ctxt context.Context) (int64, error) {
	return atomic.AddInt64(&c.count, 1), nil
}

// Current read the count without changing it
func (c *inMemoryCounter) Current(ctxt context.Context) (int64, error) {
	return atomic.LoadInt64(&c.count), nil
}
