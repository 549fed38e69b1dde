//go:build !nobroker

package infra

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"chassis/internal/config"
)

func init() {
	registerBuiltin(config.CapabilityBroker, newBrokerHandle)
}

// brokerHandle owns the NATS connection.
type brokerHandle struct {
	conn *nats.Conn
}

func newBrokerHandle(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Handle, error) {
	conn, err := nats.Connect(cfg.Broker.URL,
		nats.Name(cfg.App.Name),
		nats.Timeout(cfg.Broker.ConnectTimeout()),
		nats.MaxReconnects(cfg.Broker.MaxReconnects),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("broker disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("broker reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect broker: %w", err)
	}
	if err := ctx.Err(); err != nil {
		conn.Close()
		return nil, err
	}

	logger.Debug("broker connected", slog.String("url", conn.ConnectedUrl()))
	return &brokerHandle{conn: conn}, nil
}

func (h *brokerHandle) Ping(ctx context.Context) error {
	if !h.conn.IsConnected() {
		return fmt.Errorf("broker connection status %s", h.conn.Status())
	}
	if err := h.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("broker flush: %w", err)
	}
	return nil
}

// Warning flags a connection that is up but has been flapping.
func (h *brokerHandle) Warning(context.Context) string {
	if reconnects := h.conn.Stats().Reconnects; reconnects > 0 {
		return fmt.Sprintf("broker reconnected %d time(s) since start", reconnects)
	}
	return ""
}

// Close drains the connection so buffered messages flush before teardown.
func (h *brokerHandle) Close(context.Context) error {
	if h.conn.IsClosed() {
		return nil
	}
	if err := h.conn.Drain(); err != nil {
		h.conn.Close()
		return fmt.Errorf("drain broker: %w", err)
	}
	return nil
}

// Broker returns the NATS connection when the capability is registered.
func (r *Registry) Broker() (*nats.Conn, bool) {
	h, ok := r.Get(config.CapabilityBroker)
	if !ok {
		return nil, false
	}
	bh, ok := h.(*brokerHandle)
	if !ok {
		return nil, false
	}
	return bh.conn, true
}
