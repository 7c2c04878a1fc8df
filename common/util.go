package common

import (
	"os"

	"github.com/apex/log"
)

// Component base structure for a Component
type Component struct {
	LogTags log.Fields
}

// GetUnitTestNatsURI fetch the NATS URI for unit testing
func GetUnitTestNatsURI() string {
	if uri, ok := os.LookupEnv("UNITTEST_NATS_URI"); ok {
		return uri
	}
	return "nats://127.0.0.1:4222"
}

// GetUnitTestRedisURI fetch the Redis URI for unit testing
func GetUnitTestRedisURI() string {
	if uri, ok := os.LookupEnv("UNITTEST_REDIS_URI"); ok {
		return uri
	}
	return "redis://127.0.0.1:6379/0"
}
