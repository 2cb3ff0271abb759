package printer

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/erp/labelprint/internal/domain/printing"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Agent message types
const (
	MessageTypeRegister      = "register"
	MessageTypeRegistered    = "registered"
	MessageTypeUnregister    = "unregister"
	MessageTypePing          = "ping"
	MessageTypePong          = "pong"
	MessageTypePrintDocument = "print_document"
	MessageTypePrinted       = "printed"
	MessageTypePrintFailed   = "print_failed"
)

// AgentMessage is the JSON frame exchanged with print agents
type AgentMessage struct {
	Type        string `json:"type"`
	AgentKey    string `json:"agent_key,omitempty"`
	JobID       string `json:"job_id,omitempty"`
	Title       string `json:"title,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Pages       int    `json:"pages,omitempty"`
	Document    []byte `json:"document,omitempty"`
	Error       string `json:"error,omitempty"`
}

const (
	defaultReplyTimeout = 2 * time.Minute
	defaultPingInterval = 30 * time.Second
	registerTimeout     = 10 * time.Second
	writeTimeout        = 10 * time.Second
)

// AgentHubConfig contains configuration for the agent hub
type AgentHubConfig struct {
	// APIKey, when set, must match the agent's X-Api-Key header
	APIKey string
	// ReplyTimeout bounds the wait for printed / print_failed (default: 2m)
	ReplyTimeout time.Duration
	// PingInterval between server pings (default: 30s)
	PingInterval time.Duration
	Logger       *zap.Logger
}

// AgentHub accepts websocket connections from print agents running next to
// the printers, and delivers documents to them by agent key
type AgentHub struct {
	config   *AgentHubConfig
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu     sync.RWMutex
	agents map[string]*agentConn
}

type agentConn struct {
	key    string
	conn   *websocket.Conn
	logger *zap.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]*outcome

	closeOnce sync.Once
	closed    chan struct{}
}

// NewAgentHub creates a new agent hub
func NewAgentHub(config *AgentHubConfig) *AgentHub {
	if config == nil {
		config = &AgentHubConfig{}
	}
	if config.ReplyTimeout == 0 {
		config.ReplyTimeout = defaultReplyTimeout
	}
	if config.PingInterval == 0 {
		config.PingInterval = defaultPingInterval
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AgentHub{
		config: config,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 64 * 1024,
		},
		agents: make(map[string]*agentConn),
	}
}

// ServeHTTP upgrades the request and serves one agent connection until it
// disconnects
func (h *AgentHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.config.APIKey != "" &&
		subtle.ConstantTimeCompare([]byte(r.Header.Get("X-Api-Key")), []byte(h.config.APIKey)) != 1 {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("agent websocket upgrade failed", zap.Error(err))
		return
	}

	_ = conn.SetReadDeadline(time.Now().Add(registerTimeout))
	var reg AgentMessage
	if err := conn.ReadJSON(&reg); err != nil || reg.Type != MessageTypeRegister || reg.AgentKey == "" {
		h.logger.Warn("agent did not register", zap.String("remote", r.RemoteAddr), zap.Error(err))
		conn.Close()
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	agent := &agentConn{
		key:     reg.AgentKey,
		conn:    conn,
		logger:  h.logger.With(zap.String("agent_key", reg.AgentKey)),
		pending: make(map[string]*outcome),
		closed:  make(chan struct{}),
	}
	h.attach(agent)
	defer h.detach(agent)

	if err := agent.write(AgentMessage{Type: MessageTypeRegistered, AgentKey: agent.key}); err != nil {
		agent.logger.Warn("failed to acknowledge agent registration", zap.Error(err))
		return
	}
	agent.logger.Info("print agent connected", zap.String("remote", r.RemoteAddr))

	go agent.pingLoop(h.config.PingInterval)
	agent.readLoop()
}

func (h *AgentHub) attach(a *agentConn) {
	h.mu.Lock()
	old := h.agents[a.key]
	h.agents[a.key] = a
	h.mu.Unlock()
	if old != nil {
		old.logger.Info("print agent replaced by a new connection")
		old.close()
	}
}

func (h *AgentHub) detach(a *agentConn) {
	h.mu.Lock()
	if h.agents[a.key] == a {
		delete(h.agents, a.key)
	}
	h.mu.Unlock()
	a.close()
	a.logger.Info("print agent disconnected")
}

// Connected returns the keys of the connected agents
func (h *AgentHub) Connected() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	keys := make([]string, 0, len(h.agents))
	for k := range h.agents {
		keys = append(keys, k)
	}
	return keys
}

// Send delivers the document to agent://{agentKey} and waits for the agent's
// single terminal reply
func (h *AgentHub) Send(ctx context.Context, doc *printing.Document, destinationID string) error {
	if doc == nil || len(doc.Data) == 0 {
		return unavailable("document is empty")
	}
	dest, err := ParseDestination(destinationID)
	if err != nil {
		return err
	}
	if dest.Scheme != SchemeAgent {
		return unavailable("agent hub cannot deliver to %q", destinationID)
	}

	h.mu.RLock()
	agent := h.agents[dest.Target]
	h.mu.RUnlock()
	if agent == nil {
		return unavailable("print agent %s is not connected", dest.Target)
	}

	jobID := doc.JobID.String()
	reply, err := agent.expect(jobID)
	if err != nil {
		return err
	}
	defer agent.forget(jobID, reply)

	msg := AgentMessage{
		Type:        MessageTypePrintDocument,
		AgentKey:    agent.key,
		JobID:       jobID,
		Title:       doc.Title,
		ContentType: doc.ContentType,
		Pages:       doc.PageCount,
		Document:    doc.Data,
	}
	if err := agent.write(msg); err != nil {
		return unavailable("send to agent %s: %v", agent.key, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, h.config.ReplyTimeout)
	defer cancel()
	if err := reply.Wait(waitCtx); err != nil {
		if ctx.Err() == nil && waitCtx.Err() != nil {
			return unavailable("agent %s did not confirm printing within %v", agent.key, h.config.ReplyTimeout)
		}
		return err
	}
	agent.logger.Info("agent confirmed printing", zap.String("job_id", jobID))
	return nil
}

// Close disconnects every agent
func (h *AgentHub) Close() error {
	h.mu.Lock()
	agents := make([]*agentConn, 0, len(h.agents))
	for _, a := range h.agents {
		agents = append(agents, a)
	}
	h.agents = make(map[string]*agentConn)
	h.mu.Unlock()
	for _, a := range agents {
		a.close()
	}
	return nil
}

func (a *agentConn) write(msg AgentMessage) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	_ = a.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return a.conn.WriteJSON(msg)
}

func (a *agentConn) expect(jobID string) (*outcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	select {
	case <-a.closed:
		return nil, unavailable("print agent %s disconnected", a.key)
	default:
	}
	if _, busy := a.pending[jobID]; busy {
		return nil, unavailable("job %s is already at agent %s", jobID, a.key)
	}
	o := newOutcome()
	a.pending[jobID] = o
	return o, nil
}

func (a *agentConn) forget(jobID string, o *outcome) {
	a.mu.Lock()
	if a.pending[jobID] == o {
		delete(a.pending, jobID)
	}
	a.mu.Unlock()
}

func (a *agentConn) resolve(jobID string, err error) {
	a.mu.Lock()
	o := a.pending[jobID]
	a.mu.Unlock()
	if o == nil || !o.Resolve(err) {
		a.logger.Debug("ignoring duplicate or unknown print notification", zap.String("job_id", jobID))
	}
}

func (a *agentConn) readLoop() {
	for {
		_, data, err := a.conn.ReadMessage()
		if err != nil {
			select {
			case <-a.closed:
			default:
				a.logger.Debug("agent read failed", zap.Error(err))
			}
			return
		}
		var msg AgentMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			a.logger.Warn("malformed agent message", zap.Error(err))
			continue
		}
		switch msg.Type {
		case MessageTypePrinted:
			a.resolve(msg.JobID, nil)
		case MessageTypePrintFailed:
			a.resolve(msg.JobID, unavailable("agent %s: %s", a.key, msg.Error))
		case MessageTypePing:
			if err := a.write(AgentMessage{Type: MessageTypePong, AgentKey: a.key}); err != nil {
				return
			}
		case MessageTypePong:
		case MessageTypeUnregister:
			return
		default:
			a.logger.Debug("unknown agent message type", zap.String("type", msg.Type))
		}
	}
}

func (a *agentConn) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-a.closed:
			return
		case <-ticker.C:
			if err := a.write(AgentMessage{Type: MessageTypePing}); err != nil {
				a.close()
				return
			}
		}
	}
}

// close fails every pending delivery and closes the socket
func (a *agentConn) close() {
	a.closeOnce.Do(func() {
		close(a.closed)
		a.conn.Close()
		a.mu.Lock()
		pending := a.pending
		a.pending = make(map[string]*outcome)
		a.mu.Unlock()
		for _, o := range pending {
			o.Resolve(unavailable("print agent %s disconnected", a.key))
		}
	})
}

var _ Sink = (*AgentHub)(nil)
