package ipc

import (
	"bufio"
	"errors"
	"net"
)

// Client is a thin synchronous wrapper around a UNIX socket connection,
// used where a request/reply exchange (vision glance) is more natural than
// the Server's async Handler dispatch.
type Client struct {
	conn    net.Conn
	scanner *bufio.Scanner
}

// Dial connects to a UNIX-domain socket at path.
func Dial(path string) (*Client, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, err
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4096), MaxFrameBytes)
	return &Client{conn: conn, scanner: scanner}, nil
}

// Send writes one Envelope frame.
func (c *Client) Send(env Envelope) error {
	frame, err := Marshal(env)
	if err != nil {
		return err
	}
	_, err = c.conn.Write(frame)
	return err
}

// Recv blocks for the next Envelope frame.
func (c *Client) Recv() (Envelope, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return Envelope{}, err
		}
		return Envelope{}, errors.New("ipc: connection closed")
	}
	return Normalize(c.scanner.Bytes())
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }
