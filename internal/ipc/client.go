package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"
)

// Client is a connection to the daemon's control socket.
type Client struct {
	conn    net.Conn
	scanner *bufio.Scanner
	enc     *json.Encoder
}

// Dial connects to the daemon.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}
	return &Client{
		conn:    conn,
		scanner: bufio.NewScanner(conn),
		enc:     json.NewEncoder(conn),
	}, nil
}

// Close closes the connection.
func (c *Client) Close() error { return c.conn.Close() }

// Do sends one request and waits for its response. A Response carrying an
// error string is returned as a Go error.
func (c *Client) Do(req Request) (Response, error) {
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.enc.Encode(req); err != nil {
		return Response{}, fmt.Errorf("send request: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return Response{}, fmt.Errorf("read response: %w", err)
		}
		return Response{}, errors.New("daemon closed connection")
	}

	var resp Response
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	if !resp.OK {
		return resp, errors.New(resp.Error)
	}
	return resp, nil
}

// Status fetches the daemon status.
func (c *Client) Status() (json.RawMessage, error) {
	resp, err := c.Do(Request{Op: OpStatus})
	if err != nil {
		return nil, err
	}
	return resp.Status, nil
}

// List fetches the installed selectable sources.
func (c *Client) List() ([]SourceInfo, error) {
	resp, err := c.Do(Request{Op: OpList})
	if err != nil {
		return nil, err
	}
	return resp.Sources, nil
}

// Refresh asks the daemon to re-enumerate installed sources.
func (c *Client) Refresh() error {
	_, err := c.Do(Request{Op: OpRefresh})
	return err
}

// SetLatin changes the configured Latin source.
func (c *Client) SetLatin(id string) error {
	_, err := c.Do(Request{Op: OpSetLatin, ID: id})
	return err
}

// SetLast overrides the remembered non-Latin source.
func (c *Client) SetLast(id string) error {
	_, err := c.Do(Request{Op: OpSetLast, ID: id})
	return err
}

// SetTap enables or disables the tap gesture.
func (c *Client) SetTap(enabled bool) error {
	_, err := c.Do(Request{Op: OpTap, Enabled: &enabled})
	return err
}
