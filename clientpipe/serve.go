package clientpipe

import (
	"context"
	"log/slog"
)

// Handler acts on host requests. A returned error ends the connection; failures
// the host should hear about are replied to instead.
type Handler interface {
	HandleRequest(ctx context.Context, req Request) error
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, req Request) error

func (f HandlerFunc) HandleRequest(ctx context.Context, req Request) error {
	return f(ctx, req)
}

// Serve dispatches requests from conn to h until the connection fails, h
// returns an error, or ctx is cancelled. Cancellation closes conn.
func Serve(ctx context.Context, conn *Conn, h Handler) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		req, err := conn.ReadRequest()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		slog.Debug("Host request", "kind", req.Kind, "addr", conn.Addr())
		if err := h.HandleRequest(ctx, req); err != nil {
			return err
		}
	}
}
