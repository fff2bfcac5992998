package device

import (
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/teslashibe/go-jarvis/pkg/protocol"
)

const writeWait = 10 * time.Second

// Connection is one connected device.
type Connection struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time
	LastSeen  time.Time

	mu sync.Mutex
}

// Send writes a message to the device.
func (d *Connection) Send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return d.Conn.WriteMessage(websocket.TextMessage, data)
}

func (d *Connection) touch() {
	d.mu.Lock()
	d.LastSeen = time.Now()
	d.mu.Unlock()
}

// Info describes a connected device.
type Info struct {
	ID        string    `json:"id"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
}

func (d *Connection) info() Info {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Info{ID: d.ID, Connected: d.Connected, LastSeen: d.LastSeen}
}
