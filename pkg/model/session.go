package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// StoredSession is a processed telemetry recording kept in the database.
type StoredSession struct {
	ID       uuid.UUID
	Name     string
	Created  time.Time
	Skeleton []Position
	Info     map[string]any
	Samples  []DerivedSample
}
