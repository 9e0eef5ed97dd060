package database

import (
	"time"
)

// Connection definition sql setting
type Connection struct {
	ConnectStr string

	RetryCount    int
	RetryInterval time.Duration
}

// RedisConnection definition redis setting
type RedisConnection struct {
	Addr string
	DB   int

	RetryCount    int
	RetryInterval time.Duration
}
