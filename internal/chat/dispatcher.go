package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Report summarizes one broadcast.
type Report struct {
	Recipients int
	Delivered  int
	Failed     int
}

// Dispatcher serializes events and fans them out to registered connections.
type Dispatcher struct {
	registry *Registry
	limit    int
	log      zerolog.Logger
}

// NewDispatcher returns a Dispatcher delivering to the members of registry.
// fanOut bounds the number of concurrent deliveries per broadcast; values
// below 1 deliver sequentially.
func NewDispatcher(registry *Registry, fanOut int, log zerolog.Logger) *Dispatcher {
	if fanOut < 1 {
		fanOut = 1
	}
	return &Dispatcher{
		registry: registry,
		limit:    fanOut,
		log:      log.With().Str("component", "dispatcher").Logger(),
	}
}

// Broadcast delivers event to every registered connection except exclude,
// which may be nil. Delivery failures are logged and counted, never
// returned. Broadcast returns after every delivery attempt has finished, so
// broadcasts issued one after another by the same goroutine reach each
// recipient in that order.
func (d *Dispatcher) Broadcast(event Event, exclude Conn) Report {
	conns := d.registry.Snapshot()
	if len(conns) == 0 {
		return Report{}
	}

	payload, err := json.Marshal(event)
	if err != nil {
		d.log.Error().Err(err).Str("type", event.EventType()).Msg("Failed to encode broadcast event")
		return Report{}
	}

	var (
		g      errgroup.Group
		sent   atomic.Int64
		failed atomic.Int64
		report Report
	)
	g.SetLimit(d.limit)

	for _, conn := range conns {
		if exclude != nil && conn == exclude {
			continue
		}
		report.Recipients++
		g.Go(func() error {
			if err := d.deliver(conn, payload); err != nil {
				failed.Add(1)
				d.log.Debug().Err(err).Str("remote_addr", conn.RemoteAddr()).
					Str("type", event.EventType()).Msg("Broadcast delivery failed")
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	report.Delivered = int(sent.Load())
	report.Failed = int(failed.Load())
	d.log.Debug().Str("type", event.EventType()).Int("recipients", report.Recipients).
		Int("delivered", report.Delivered).Int("failed", report.Failed).Msg("Broadcast complete")
	return report
}

// SendTo delivers event to conn alone.
func (d *Dispatcher) SendTo(conn Conn, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.EventType(), err)
	}
	return d.deliver(conn, payload)
}

// AnnounceUserCount broadcasts the current online count to everyone.
func (d *Dispatcher) AnnounceUserCount() Report {
	return d.Broadcast(NewUserCount(d.registry.Count()), nil)
}

func (d *Dispatcher) deliver(conn Conn, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: recovered from panic: %v", ErrDeliveryFailed, r)
		}
	}()

	if err := conn.Send(payload); err != nil {
		if !errors.Is(err, ErrDeliveryFailed) {
			return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
		}
		return err
	}
	return nil
}
