package service

import (
	"time"

	"github.com/google/uuid"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// IDGenerator supplies fresh entity ids.
type IDGenerator interface {
	NewID() string
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

type uuidGenerator struct{}

func (uuidGenerator) NewID() string { return uuid.NewString() }

// SystemClock returns a Clock reading wall time in UTC.
func SystemClock() Clock { return systemClock{} }

// UUIDGenerator returns an IDGenerator producing random UUIDs.
func UUIDGenerator() IDGenerator { return uuidGenerator{} }
