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
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"gitlab.com/project-nan/chatrelay/common"
)

func TestInMemoryCounter(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)
	utCtxt := context.Background()

	uut := GetInMemoryCounter("ut-memory-counter")

	count, err := uut.Current(utCtxt)
	assert.Nil(err)
	assert.Equal(int64(0), count)

	count, err = uut.Increment(utCtxt)
	assert.Nil(err)
	assert.Equal(int64(1), count)

	// Concurrent increments never lose an update
	wg := sync.WaitGroup{}
	for itr := 0; itr < 50; itr++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = uut.Increment(utCtxt)
		}()
	}
	wg.Wait()

	count, err = uut.Current(utCtxt)
	assert.Nil(err)
	assert.Equal(int64(51), count)
}

func TestRedisBackedCounter(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)
	utCtxt, utCtxtCancel := context.WithCancel(context.Background())
	defer utCtxtCancel()

	// Probe for a local Redis server before committing to the test
	options, err := redis.ParseURL(common.GetUnitTestRedisURI())
	assert.Nil(err)
	probe := redis.NewClient(options)
	{
		probeCtxt, cancel := context.WithTimeout(utCtxt, time.Second)
		defer cancel()
		if err := probe.Ping(probeCtxt).Err(); err != nil {
			t.Skipf("No Redis server reachable at %s", common.GetUnitTestRedisURI())
		}
	}
	defer func() { _ = probe.Close() }()

	key := fmt.Sprintf("ut-counter/%s", uuid.New().String())
	uut, err := GetRedisBackedCounter(common.GetUnitTestRedisURI(), key, time.Second)
	assert.Nil(err)

	// An unset key reads as zero
	count, err := uut.Current(utCtxt)
	assert.Nil(err)
	assert.Equal(int64(0), count)

	count, err = uut.Increment(utCtxt)
	assert.Nil(err)
	assert.Equal(int64(1), count)
	count, err = uut.Increment(utCtxt)
	assert.Nil(err)
	assert.Equal(int64(2), count)

	count, err = uut.Current(utCtxt)
	assert.Nil(err)
	assert.Equal(int64(2), count)

	assert.Nil(probe.Del(utCtxt, key).Err())
}
