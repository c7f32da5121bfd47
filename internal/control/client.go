// ABOUTME: WebSocket client for the remote-control endpoint
// ABOUTME: Performs the hello exchange and sends one command at a time
package control

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client is a control connection. Commands are serialized; each waits for its reply.
type Client struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	server ServerHello
}

// Dial connects to addr (host:port) and performs the hello exchange
func Dial(ctx context.Context, addr, name string) (*Client, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: Path}
	log.Printf("Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	c := &Client{conn: conn}
	if err := c.handshake(name); err != nil {
		conn.Close()
		return nil, fmt.Errorf("handshake failed: %w", err)
	}
	return c, nil
}

func (c *Client) handshake(name string) error {
	hello := ClientHello{
		ClientID: uuid.New().String(),
		Name:     name,
		Version:  ProtocolVersion,
	}

	reply, err := c.roundTrip(TypeClientHello, hello)
	if err != nil {
		return err
	}
	if reply.Type != TypeServerHello {
		return fmt.Errorf("expected %s, got %s", TypeServerHello, reply.Type)
	}
	if err := decodePayload(reply.Payload, &c.server); err != nil {
		return fmt.Errorf("failed to parse server hello: %w", err)
	}
	return nil
}

// Server returns what the server reported in its hello
func (c *Client) Server() ServerHello {
	return c.server
}

// roundTrip sends one message and reads the reply. An error reply becomes an *ErrorReply.
func (c *Client) roundTrip(msgType string, payload interface{}) (Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteJSON(Message{Type: msgType, Payload: payload}); err != nil {
		return Message{}, fmt.Errorf("failed to send %s: %w", msgType, err)
	}

	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var reply Message
	if err := c.conn.ReadJSON(&reply); err != nil {
		return Message{}, fmt.Errorf("failed to read reply to %s: %w", msgType, err)
	}

	if reply.Type == TypeError {
		var e ErrorReply
		if err := decodePayload(reply.Payload, &e); err != nil {
			return Message{}, fmt.Errorf("failed to parse error reply: %w", err)
		}
		return reply, &e
	}
	return reply, nil
}

// command sends a state-changing command and expects an ack
func (c *Client) command(msgType string, payload interface{}) error {
	reply, err := c.roundTrip(msgType, payload)
	if err != nil {
		return err
	}
	if reply.Type != TypeAck {
		return fmt.Errorf("expected %s for %s, got %s", TypeAck, msgType, reply.Type)
	}
	return nil
}

// Tone plays one frequency. An empty waveform or negative gain keeps the engine's current value.
func (c *Client) Tone(frequency float64, waveform string, gain float64) error {
	return c.command(TypeTone, ToneCommand{Frequency: frequency, Waveform: waveform, Gain: optionalGain(gain)})
}

// Chord plays several frequencies at once
func (c *Client) Chord(frequencies []float64, waveform string, gain float64) error {
	return c.command(TypeChord, ChordCommand{Frequencies: frequencies, Waveform: waveform, Gain: optionalGain(gain)})
}

// Gain sets the output gain
func (c *Client) Gain(gain float64) error {
	return c.command(TypeGain, GainCommand{Gain: gain})
}

// Waveform selects sine, square or triangle
func (c *Client) Waveform(waveform string) error {
	return c.command(TypeWaveform, WaveformCommand{Waveform: waveform})
}

// Mute silences the engine
func (c *Client) Mute() error {
	return c.command(TypeMute, nil)
}

// Restart stops and starts the engine, clearing a fault
func (c *Client) Restart() error {
	return c.command(TypeRestart, nil)
}

// Status fetches the engine status
func (c *Client) Status() (StatusReply, error) {
	reply, err := c.roundTrip(TypeStatus, nil)
	if err != nil {
		return StatusReply{}, err
	}
	if reply.Type != TypeStatus {
		return StatusReply{}, fmt.Errorf("expected %s, got %s", TypeStatus, reply.Type)
	}

	var st StatusReply
	if err := decodePayload(reply.Payload, &st); err != nil {
		return StatusReply{}, err
	}
	return st, nil
}

// Close ends the session
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.conn.Close()
}

func optionalGain(gain float64) *float64 {
	if gain < 0 {
		return nil
	}
	return &gain
}
