package ipio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mptpnet/swiftmptp/internal/swift"
)

// Receiver reads datagrams from a Conn and routes them into
// swift.HandleInbound. It mirrors the reference daemon's receive loop:
// a single goroutine per Conn, reads until ctx is cancelled, individual
// read errors are logged but do not stop the loop.
type Receiver struct {
	conn    Conn
	table   *swift.PortTable
	metrics swift.MetricsReporter
	logger  *slog.Logger
}

// NewReceiver creates a Receiver that demultiplexes datagrams from conn
// through table.
func NewReceiver(conn Conn, table *swift.PortTable, metrics swift.MetricsReporter, logger *slog.Logger) *Receiver {
	return &Receiver{
		conn:    conn,
		table:   table,
		metrics: metrics,
		logger:  logger.With(slog.String("component", "ipio.receiver")),
	}
}

// Run reads from conn until ctx is cancelled. Read errors other than
// context cancellation are logged and the loop continues, matching
// spec.md section 5: the inbound handler runs independently of any user
// thread and never blocks the socket API on a single bad read.
func (r *Receiver) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("receiver: %w", err)
		}

		if err := r.recvOne(); err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("receiver: %w", ctx.Err())
			}
			if errors.Is(err, ErrSocketClosed) {
				return fmt.Errorf("receiver: %w", err)
			}
			r.logger.Warn("recv error", slog.String("error", err.Error()))
		}
	}
}

func (r *Receiver) recvOne() error {
	bufp, _ := swift.PacketPool.Get().(*[]byte)
	defer swift.PacketPool.Put(bufp)

	n, src, err := r.conn.ReadDatagram(*bufp)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}

	var srcBytes [4]byte
	if src.Is4() {
		srcBytes = src.As4()
	}

	swift.HandleInbound(r.table, r.metrics, (*bufp)[:n], swift.InboundMeta{SrcAddr: srcBytes})

	return nil
}
