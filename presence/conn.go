package presence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

// Serve pumps messages between conn and the hub until the connection closes or
// ctx is cancelled. The reader is stopped and c released from the hub before
// Serve returns.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, c *Client) error {
	ctx, cancel := context.WithCancel(ctx)

	var reader sync.WaitGroup
	readErr := make(chan error, 1)

	// The reader must be gone before Leave so no decoded claim lands after it.
	defer func() {
		cancel()
		reader.Wait()
		h.Leave(c)
	}()

	reader.Add(1)
	go func() {
		defer reader.Done()
		for {
			var msg Message
			if err := wsjson.Read(ctx, conn, &msg); err != nil {
				readErr <- err
				return
			}
			switch msg.Type {
			case TypeStartEditing:
				h.StartEditing(c)
			case TypeStopEditing:
				h.StopEditing(c)
			default:
				h.logger.Debug("ignoring presence message", zap.String("type", msg.Type))
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusGoingAway, "shutting down")
			return ctx.Err()
		case err := <-readErr:
			if ctx.Err() != nil {
				_ = conn.Close(websocket.StatusGoingAway, "shutting down")
				return ctx.Err()
			}
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				return nil
			}
			_ = conn.Close(websocket.StatusPolicyViolation, "invalid message")
			return err
		case msg, ok := <-c.Events():
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "closed")
				return nil
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, conn, msg)
			cancelWrite()
			if err != nil {
				_ = conn.Close(websocket.StatusInternalError, "write failed")
				return fmt.Errorf("write presence message: %w", err)
			}
		}
	}
}
