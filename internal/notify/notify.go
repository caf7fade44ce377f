// Package notify delivers prayer notifications to a sink. Scheduling lives in
// the engine; a sink only hands the message on.
package notify

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Notification is a user-visible alert for one prayer.
type Notification struct {
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	Tag    string    `json:"tag"`
	Prayer string    `json:"prayer"`
	At     time.Time `json:"at"`
}

// ForPrayer builds the notification fired at a prayer's time.
func ForPrayer(name string, at time.Time) Notification {
	return Notification{
		Title:  name,
		Body:   fmt.Sprintf("Time for %s prayer (%s)", name, at.Format("15:04")),
		Tag:    fmt.Sprintf("prayer-%s-%s", name, at.Format("2006-01-02")),
		Prayer: name,
		At:     at,
	}
}

// Sink accepts notifications.
type Sink interface {
	Notify(n Notification) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Notification) error

func (f SinkFunc) Notify(n Notification) error { return f(n) }

// Permission reports whether the user allowed notifications.
type Permission interface {
	Granted() bool
}

// StaticPermission is a fixed permission answer.
type StaticPermission bool

const (
	Granted StaticPermission = true
	Denied  StaticPermission = false
)

func (p StaticPermission) Granted() bool { return bool(p) }

// LogSink writes notifications to a zerolog logger.
type LogSink struct {
	Log zerolog.Logger
}

func (s LogSink) Notify(n Notification) error {
	s.Log.Info().
		Str("prayer", n.Prayer).
		Str("tag", n.Tag).
		Time("at", n.At).
		Msg(n.Body)
	return nil
}

// Multi fans a notification out to several sinks. Every sink is tried; the
// errors are joined.
type Multi []Sink

func (m Multi) Notify(n Notification) error {
	var errs []error
	for _, s := range m {
		if err := s.Notify(n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
