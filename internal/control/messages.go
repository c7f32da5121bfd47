// ABOUTME: Remote-control message type definitions
// ABOUTME: JSON envelopes and payloads exchanged over the /tonestream WebSocket
package control

import (
	"encoding/json"
	"fmt"
)

// Path is the WebSocket endpoint
const Path = "/tonestream"

// ProtocolVersion is reported in the hello exchange
const ProtocolVersion = 1

// Message types
const (
	TypeClientHello = "client/hello"
	TypeServerHello = "server/hello"

	TypeTone     = "tone"
	TypeChord    = "chord"
	TypeMute     = "mute"
	TypeGain     = "gain"
	TypeWaveform = "waveform"
	TypeStatus   = "status"
	TypeRestart  = "restart"

	TypeAck   = "ack"
	TypeError = "error"
)

// Error codes carried in ErrorReply
const (
	CodeCapacityExceeded = "capacity_exceeded"
	CodeInvalidFrequency = "invalid_frequency"
	CodeInvalidWaveform  = "invalid_waveform"
	CodeBadRequest       = "bad_request"
	CodeUnknownType      = "unknown_type"
	CodeDuplicateClient  = "duplicate_client_id"
	CodeNoDevice         = "no_device"
	CodeOpenFailed       = "open_failed"
)

// Message is the top-level wrapper for all control messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// ClientHello opens a control session
type ClientHello struct {
	ClientID string `json:"client_id"`
	Name     string `json:"name"`
	Version  int    `json:"version"`
}

// ServerHello is the server's response to client/hello
type ServerHello struct {
	ServerID string `json:"server_id"`
	Name     string `json:"name"`
	Version  int    `json:"version"`
	Product  string `json:"product"`
	Software string `json:"software_version"`
}

// ToneCommand plays a single frequency. Empty waveform and nil gain keep the current values.
type ToneCommand struct {
	Frequency float64  `json:"frequency"`
	Waveform  string   `json:"waveform,omitempty"`
	Gain      *float64 `json:"gain,omitempty"`
}

// ChordCommand plays several frequencies at once
type ChordCommand struct {
	Frequencies []float64 `json:"frequencies"`
	Waveform    string    `json:"waveform,omitempty"`
	Gain        *float64  `json:"gain,omitempty"`
}

// GainCommand sets the output gain
type GainCommand struct {
	Gain float64 `json:"gain"`
}

// WaveformCommand selects the waveform
type WaveformCommand struct {
	Waveform string `json:"waveform"`
}

// Ack confirms a command was applied
type Ack struct {
	Command string `json:"command"`
}

// ErrorReply reports a rejected command. The engine state is unchanged.
type ErrorReply struct {
	Command string `json:"command"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error makes a received ErrorReply usable as an error
func (e *ErrorReply) Error() string {
	return fmt.Sprintf("%s rejected (%s): %s", e.Command, e.Code, e.Message)
}

// StatusReply describes the engine and the tones it is playing
type StatusReply struct {
	EngineID     string    `json:"engine_id"`
	State        string    `json:"state"`
	PhaseTime    float64   `json:"phase_time"`
	Samples      uint64    `json:"samples"`
	Tones        []float64 `json:"tones"`
	Waveform     string    `json:"waveform"`
	Gain         float64   `json:"gain"`
	BuffersFree  int       `json:"buffers_free"`
	BuffersTotal int       `json:"buffers_total"`
	Clients      int       `json:"clients"`
	Fault        string    `json:"fault,omitempty"`
}

// decodePayload converts a generic payload into v
func decodePayload(payload interface{}, v interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return nil
}
