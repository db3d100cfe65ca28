// Package realtime is the client side of the project room socket.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrijs2005/coderoom/internal/common"
)

const (
	writeWait   = 10 * time.Second
	inboxSize   = 64
	maxReadSize = 1 << 20
)

// Sender identifies a message author.
type Sender struct {
	ID    string `json:"_id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Message is one inbound project-message.
type Message struct {
	Text   string
	Sender Sender
}

// FromAI reports whether the message was authored by the AI bot.
func (m Message) FromAI() bool { return m.Sender.ID == common.AISenderID }

// Label is how the author is shown.
func (m Message) Label() string {
	switch {
	case m.Sender.Email != "":
		return m.Sender.Email
	case m.Sender.Name != "":
		return m.Sender.Name
	default:
		return m.Sender.ID
	}
}

// ConnectError is a rejected handshake, carrying the server's reason.
type ConnectError struct {
	Status  int
	Message string
}

func (e *ConnectError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("connect error: %s", http.StatusText(e.Status))
	}
	return "connect error: " + e.Message
}

func (e *ConnectError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return common.ErrorUnauthorized
	}
	return nil
}

type envelope struct {
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

type messageData struct {
	Message string          `json:"message"`
	Sender  json.RawMessage `json:"sender"`
}

// Conn is a joined project room. Send may be called from any goroutine.
type Conn struct {
	ws       *websocket.Conn
	inbox    chan Message
	done     chan struct{}
	writeMu  sync.Mutex
	closeOne sync.Once

	errMu sync.Mutex
	err   error
}

// SocketURL maps an http(s) server URL to its ws(s) room endpoint.
func SocketURL(serverURL, projectID string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/socket"
	u.RawQuery = url.Values{"projectId": {projectID}}.Encode()
	return u.String(), nil
}

// Dial joins the room of projectID. The token travels as a bearer header.
func Dial(ctx context.Context, serverURL, token, projectID string) (*Conn, error) {
	target, err := SocketURL(serverURL, projectID)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, target, header)
	if err != nil {
		if errors.Is(err, websocket.ErrBadHandshake) && resp != nil {
			return nil, handshakeError(resp)
		}
		return nil, err
	}
	ws.SetReadLimit(maxReadSize)

	c := &Conn{
		ws:    ws,
		inbox: make(chan Message, inboxSize),
		done:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func handshakeError(resp *http.Response) error {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	ce := &ConnectError{Status: resp.StatusCode}
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil {
		ce.Message = env.Message
	}
	return ce
}

// Messages is closed when the connection ends; Err tells why.
func (c *Conn) Messages() <-chan Message { return c.inbox }

// Err is nil until the read loop stops, and after a local Close.
func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Send posts text to the room as sender.
func (c *Conn) Send(text string, sender Sender) error {
	s, err := json.Marshal(sender)
	if err != nil {
		return err
	}
	data, err := json.Marshal(messageData{Message: text, Sender: s})
	if err != nil {
		return err
	}
	frame, err := json.Marshal(envelope{Event: common.ProjectMessageEvent, Data: data})
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

// Close leaves the room. Safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOne.Do(func() {
		close(c.done)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) readLoop() {
	defer close(c.inbox)

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			c.setErr(err)
			return
		}

		msg, ok := decode(raw)
		if !ok {
			continue
		}

		select {
		case c.inbox <- msg:
		case <-c.done:
			return
		}
	}
}

func (c *Conn) setErr(err error) {
	select {
	case <-c.done:
		return
	default:
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return
	}
	c.errMu.Lock()
	c.err = err
	c.errMu.Unlock()
}

func decode(raw []byte) (Message, bool) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Event != common.ProjectMessageEvent {
		return Message{}, false
	}
	var data messageData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return Message{}, false
	}
	msg := Message{Text: data.Message}
	_ = json.Unmarshal(data.Sender, &msg.Sender)
	return msg, true
}
