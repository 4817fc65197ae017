package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"codeberg.org/mutker/sensorpoll/internal/alert"
	"codeberg.org/mutker/sensorpoll/internal/errors"
	"codeberg.org/mutker/sensorpoll/internal/logger"
	"codeberg.org/mutker/sensorpoll/internal/view"
	"github.com/nats-io/nats.go"
)

const (
	DefaultSubjectPrefix = "sensorpoll"

	updateSuffix = ".update"
	alertSuffix  = ".alert"
)

// Publisher is the part of *nats.Conn used for dispatch.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATS publishes JSON updates to <prefix>.update and alerts to
// <prefix>.alert.
type NATS struct {
	pub    Publisher
	conn   *nats.Conn
	prefix string
}

type updatePayload struct {
	view.View
	Menu []string `json:"menu"`
}

type alertPayload struct {
	alert.Event
	Text string `json:"message"`
}

func NewNATS(pub Publisher, prefix string) *NATS {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}

	return &NATS{pub: pub, prefix: prefix}
}

// ConnectNATS connects to url and reconnects indefinitely after losing the
// connection.
func ConnectNATS(url, prefix string, log logger.Logger) (*NATS, error) {
	errFactory := errors.New()

	if log == nil {
		log = logger.Default()
	}
	log = log.With("nats")

	nc, err := nats.Connect(url,
		nats.Name("sensorpoll"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrInitFailed, err)
	}

	log.Info().Str("url", nc.ConnectedUrl()).Str("prefix", prefix).Msg("Connected to NATS")

	n := NewNATS(nc, prefix)
	n.conn = nc

	return n, nil
}

func (n *NATS) Update(ctx context.Context, v view.View) error {
	return n.publish(ctx, n.prefix+updateSuffix, updatePayload{View: v, Menu: v.Text()})
}

func (n *NATS) Alert(ctx context.Context, ev alert.Event) error {
	return n.publish(ctx, n.prefix+alertSuffix, alertPayload{Event: ev, Text: ev.Message()})
}

func (n *NATS) publish(ctx context.Context, subject string, payload any) error {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return errFactory.Wrap(errors.ErrDispatchFailed, err)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return errFactory.Wrap(errors.ErrDispatchFailed, err)
	}

	if err := n.pub.Publish(subject, data); err != nil {
		return errFactory.WithData(errors.ErrDispatchFailed, struct {
			Subject string
			Error   string
		}{
			Subject: subject,
			Error:   err.Error(),
		})
	}

	return nil
}

// Close drains a connection opened by ConnectNATS.
func (n *NATS) Close() error {
	if n.conn == nil {
		return nil
	}

	if err := n.conn.Drain(); err != nil {
		return errors.New().Wrap(errors.ErrShutdownFailed, err)
	}

	return nil
}
