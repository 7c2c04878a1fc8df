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
	"errors"
	"time"

	"github.com/apex/log"
	"github.com/redis/go-redis/v9"
	"gitlab.com/project-nan/chatrelay/common"
)

// redisBackedCounter implements VisitCounter against Redis
//
// INCR on a shared key gives a count which survives restarts and is shared by
// all relay instances pointed at the same store.
type redisBackedCounter struct {
	common.Component
	client      *redis.Client
	key         string
	callTimeout time.Duration
}

// GetRedisBackedCounter define a Redis backed VisitCounter
func GetRedisBackedCounter(
	serverURI string, key string, callTimeout time.Duration,
) (VisitCounter, error) {
	logTags := log.Fields{
		"module":    "storage",
		"component": "redis-counter",
		"instance":  serverURI,
	}
	options, err := redis.ParseURL(serverURI)
	if err != nil {
		log.WithError(err).WithFields(logTags).Errorf("Invalid Redis URI %s", serverURI)
		return nil, err
	}
	return &redisBackedCounter{
		Component:   common.Component{LogTags: logTags},
		client:      redis.NewClient(options),
		key:         key,
		callTimeout: callTimeout,
	}, nil
}

// Increment add one to the count and return the new value
func (c *redisBackedCounter) Increment(ctxt context.Context) (int64, error) {
	useContext, cancel := context.WithTimeout(ctxt, c.callTimeout)
	defer cancel()
	count, err := c.client.Incr(useContext, c.key).Result()
	if err != nil {
		log.WithError(err).WithFields(c.LogTags).Errorf("INCR %s failed", c.key)
		return 0, err
	}
	return count, nil
}

// Current read the count without changing it
func (c *redisBackedCounter) Current(ctxt context.Context) (int64, error) {
	useContext, cancel := context.WithTimeout(ctxt, c.callTimeout)
	defer cancel()
	count, err := c.client.Get(useContext, c.key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		log.WithError(err).WithFields(c.LogTags).Errorf("GET %s failed", c.key)
		return 0, err
	}
	return count, nil
}
