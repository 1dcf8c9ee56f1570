// Package realtime carries committed-write notifications from the database to every
// process holding a cache, and turns them into cache invalidations.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

type Operation string

const (
	OpInsert Operation = "INSERT"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
)

const (
	TablePatients     = "patients"
	TableDoctors      = "doctors"
	TableAppointments = "appointments"
)

// Tables lists every table with a change stream.
var Tables = []string{TablePatients, TableDoctors, TableAppointments}

// Event is one committed write. Record is informational only; consumers refetch.
type Event struct {
	Table     string          `json:"table"`
	Operation Operation       `json:"operation"`
	Record    json.RawMessage `json:"record,omitempty"`
}

func (e Event) Validate() error {
	if e.Table == "" {
		return errors.New("event has no table")
	}
	switch e.Operation {
	case OpInsert, OpUpdate, OpDelete:
		return nil
	}
	return fmt.Errorf("event for %s has unknown operation %q", e.Table, e.Operation)
}

type Handler func(Event)

type Subscription interface {
	Unsubscribe() error
}

// Feed delivers change events per table. Reconnecting after a transport failure is
// the feed's job.
type Feed interface {
	Subscribe(ctx context.Context, table string, h Handler) (Subscription, error)
}

// Publisher pushes events onto a feed.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// ChannelFor names the pub/sub channel carrying table's events.
func ChannelFor(table string) string {
	return "clinic:changes:" + table
}
