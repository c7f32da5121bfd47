// ABOUTME: WebSocket remote-control server for a running engine
// ABOUTME: Applies tone, chord, gain, waveform, mute and restart commands and reports status
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Resonate-Protocol/tonestream/internal/version"
	"github.com/Resonate-Protocol/tonestream/pkg/engine"
	"github.com/Resonate-Protocol/tonestream/pkg/synth"
)

// Controller is the engine surface exposed to remote clients
type Controller interface {
	SetTone(frequency float64, w synth.Waveform, gain float64) error
	SetChord(freqs []float64, w synth.Waveform, gain float64) error
	SetWaveform(w synth.Waveform) error
	SetGain(gain float64)
	Mute()
	Snapshot() synth.Snapshot
	Status() engine.Status
	Restart() error
}

// Config holds server configuration
type Config struct {
	Port  int
	Name  string
	Debug bool

	// OnChange is called after every command that changed the playback state
	OnChange func()
}

// Server accepts control connections
type Server struct {
	config   Config
	serverID string
	ctrl     Controller

	upgrader   websocket.Upgrader
	httpServer *http.Server
	mux        *http.ServeMux
	listener   net.Listener

	clients   map[string]*websocket.Conn
	clientsMu sync.Mutex

	wg sync.WaitGroup
}

// NewServer creates a control server for ctrl
func NewServer(ctrl Controller, config Config) *Server {
	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		ctrl:     ctrl,
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin != "" {
					log.Printf("Warning: accepting control connection from origin: %s", origin)
				}
				return true
			},
		},
		clients: make(map[string]*websocket.Conn),
	}
	s.mux.HandleFunc(Path, s.handleWebSocket)
	return s
}

// Handler returns the HTTP handler serving the control endpoint
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start listens on the configured port and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.config.Port, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{Handler: s.mux}

	log.Printf("Control server listening on %s%s", ln.Addr(), Path)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Control server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the listening address once started
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ClientCount returns the number of connected control sessions
func (s *Server) ClientCount() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}

// Stop closes every control connection and shuts the HTTP server down
func (s *Server) Stop(ctx context.Context) error {
	s.clientsMu.Lock()
	for _, conn := range s.clients {
		conn.Close()
	}
	s.clientsMu.Unlock()

	if s.httpServer == nil {
		return nil
	}
	err := s.httpServer.Shutdown(ctx)
	s.wg.Wait()
	if err != nil {
		return fmt.Errorf("control server shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	s.handleConnection(conn)
}

// handleConnection runs one control session. Replies are written from this goroutine only.
func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		log.Printf("Error reading hello: %v", err)
		return
	}
	conn.SetReadDeadline(time.Time{})

	if msg.Type != TypeClientHello {
		log.Printf("Expected %s, got %s", TypeClientHello, msg.Type)
		s.reply(conn, TypeError, ErrorReply{Command: msg.Type, Code: CodeBadRequest, Message: "expected client/hello"})
		return
	}

	var hello ClientHello
	if err := decodePayload(msg.Payload, &hello); err != nil || hello.ClientID == "" || hello.Name == "" {
		log.Printf("Invalid client hello: %v", err)
		s.reply(conn, TypeError, ErrorReply{Command: msg.Type, Code: CodeBadRequest, Message: "client_id and name are required"})
		return
	}

	s.clientsMu.Lock()
	if _, exists := s.clients[hello.ClientID]; exists {
		s.clientsMu.Unlock()
		log.Printf("Control client ID %s already connected, rejecting duplicate", hello.ClientID)
		s.reply(conn, TypeError, ErrorReply{Command: msg.Type, Code: CodeDuplicateClient, Message: "client ID already connected"})
		return
	}
	s.clients[hello.ClientID] = conn
	s.clientsMu.Unlock()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, hello.ClientID)
		s.clientsMu.Unlock()
		log.Printf("Control client disconnected: %s", hello.Name)
	}()

	log.Printf("Control client connected: %s (ID: %s)", hello.Name, hello.ClientID)

	if err := s.reply(conn, TypeServerHello, ServerHello{
		ServerID: s.serverID,
		Name:     s.config.Name,
		Version:  ProtocolVersion,
		Product:  version.Product,
		Software: version.Version,
	}); err != nil {
		log.Printf("Error sending server hello: %v", err)
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		replyType, payload := s.handleCommand(data)
		if err := s.reply(conn, replyType, payload); err != nil {
			log.Printf("Error writing reply to %s: %v", hello.Name, err)
			return
		}
	}
}

// handleCommand applies one command and returns the reply to send
func (s *Server) handleCommand(data []byte) (string, interface{}) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return TypeError, ErrorReply{Code: CodeBadRequest, Message: err.Error()}
	}

	if s.config.Debug {
		log.Printf("[DEBUG] Control command: %s", msg.Type)
	}

	var err error
	switch msg.Type {
	case TypeTone:
		var cmd ToneCommand
		if err = decodePayload(msg.Payload, &cmd); err == nil {
			w, gain, perr := s.resolve(cmd.Waveform, cmd.Gain)
			if err = perr; err == nil {
				err = s.ctrl.SetTone(cmd.Frequency, w, gain)
			}
		}
	case TypeChord:
		var cmd ChordCommand
		if err = decodePayload(msg.Payload, &cmd); err == nil {
			w, gain, perr := s.resolve(cmd.Waveform, cmd.Gain)
			if err = perr; err == nil {
				err = s.ctrl.SetChord(cmd.Frequencies, w, gain)
			}
		}
	case TypeGain:
		var cmd GainCommand
		if err = decodePayload(msg.Payload, &cmd); err == nil {
			s.ctrl.SetGain(cmd.Gain)
		}
	case TypeWaveform:
		var cmd WaveformCommand
		if err = decodePayload(msg.Payload, &cmd); err == nil {
			var w synth.Waveform
			if w, err = synth.ParseWaveform(cmd.Waveform); err == nil {
				err = s.ctrl.SetWaveform(w)
			}
		}
	case TypeMute:
		s.ctrl.Mute()
	case TypeRestart:
		err = s.ctrl.Restart()
	case TypeStatus:
		return TypeStatus, s.status()
	default:
		return TypeError, ErrorReply{Command: msg.Type, Code: CodeUnknownType, Message: "unknown message type"}
	}

	if err != nil {
		log.Printf("Control command %s rejected: %v", msg.Type, err)
		return TypeError, ErrorReply{Command: msg.Type, Code: errorCode(err), Message: err.Error()}
	}

	if s.config.OnChange != nil {
		s.config.OnChange()
	}
	return TypeAck, Ack{Command: msg.Type}
}

// resolve fills in the current waveform and gain for fields a command left out
func (s *Server) resolve(waveform string, gain *float64) (synth.Waveform, float64, error) {
	snap := s.ctrl.Snapshot()

	w := snap.Waveform
	if waveform != "" {
		parsed, err := synth.ParseWaveform(waveform)
		if err != nil {
			return 0, 0, err
		}
		w = parsed
	}

	g := snap.Gain
	if gain != nil {
		g = *gain
	} else if g == 0 {
		// A muted engine would otherwise play the new tone silently
		g = synth.DefaultGain
	}
	return w, g, nil
}

func (s *Server) status() StatusReply {
	st := s.ctrl.Status()
	snap := s.ctrl.Snapshot()

	reply := StatusReply{
		EngineID:     st.ID,
		State:        st.State.String(),
		PhaseTime:    st.PhaseTime,
		Samples:      st.Samples,
		Tones:        append([]float64{}, snap.Tones...),
		Waveform:     snap.Waveform.String(),
		Gain:         snap.Gain,
		BuffersFree:  st.Pool.Free,
		BuffersTotal: st.Pool.Size,
		Clients:      s.ClientCount(),
	}
	if st.Err != nil {
		reply.Fault = st.Err.Error()
	}
	return reply
}

func (s *Server) reply(conn *websocket.Conn, msgType string, payload interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(Message{Type: msgType, Payload: payload})
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, synth.ErrCapacityExceeded):
		return CodeCapacityExceeded
	case errors.Is(err, synth.ErrInvalidFrequency):
		return CodeInvalidFrequency
	case errors.Is(err, synth.ErrInvalidWaveform):
		return CodeInvalidWaveform
	case errors.Is(err, engine.ErrNoDevice):
		return CodeNoDevice
	case errors.Is(err, engine.ErrOpenFailed):
		return CodeOpenFailed
	default:
		return CodeBadRequest
	}
}
