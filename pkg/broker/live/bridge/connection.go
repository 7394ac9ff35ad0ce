package bridge

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("bridge connection closed")

type connection struct {
	conn   *websocket.Conn
	logger *zap.Logger

	ctx       context.Context
	ctxCancel context.CancelFunc

	writeChan chan []byte
	nextId    atomic.Uint64
	pending   sync.Map // map[uint64]chan frame
}

func newConnection(conn *websocket.Conn, logger *zap.Logger) *connection {
	ctx, cancel := context.WithCancel(context.Background())

	return &connection{
		conn:      conn,
		logger:    logger,
		ctx:       ctx,
		ctxCancel: cancel,
		writeChan: make(chan []byte, 100),
	}
}

func (c *connection) start(heartbeat time.Duration) {
	go c.read()
	go c.write()
	if heartbeat > 0 {
		go c.keepAlive(heartbeat)
	}
}

func (c *connection) stop() {
	c.ctxCancel()
	_ = c.conn.Close()
}

func (c *connection) request(ctx context.Context, kind string, payload map[string]any) (frame, error) {
	id := c.nextId.Add(1)
	data, err := encodeFrame(frame{Id: id, Type: kind, Payload: payload})
	if err != nil {
		return frame{}, err
	}

	ch := make(chan frame, 1)
	c.pending.Store(id, ch)
	defer c.pending.Delete(id)

	select {
	case c.writeChan <- data:
	case <-ctx.Done():
		return frame{}, ctx.Err()
	case <-c.ctx.Done():
		return frame{}, ErrClosed
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		return frame{}, ctx.Err()
	case <-c.ctx.Done():
		return frame{}, ErrClosed
	}
}

func (c *connection) read() {
	defer c.ctxCancel()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				c.logger.Warn("cannot read data", zap.Error(err))
			}
			return
		}

		f, err := decodeFrame(message)
		if err != nil {
			c.logger.Warn("dropping malformed frame", zap.Error(err))
			continue
		}
		if f.Type == frameHeartbeat {
			continue
		}

		c.logger.Debug("read", zap.String("type", f.Type), zap.Uint64("id", f.Id))

		if ch, ok := c.pending.LoadAndDelete(f.Id); ok {
			select {
			case ch.(chan frame) <- f:
			default:
			}
		}
	}
}

func (c *connection) write() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case data := <-c.writeChan:
			if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				c.logger.Warn("failed to write to connection", zap.Error(err))
				c.ctxCancel()
				return
			}
		}
	}
}

func (c *connection) keepAlive(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			data, err := encodeFrame(frame{Type: frameHeartbeat})
			if err != nil {
				continue
			}
			select {
			case c.writeChan <- data:
			case <-c.ctx.Done():
				return
			}
		}
	}
}
