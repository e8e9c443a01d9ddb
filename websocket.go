package predictionmarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"
)

const (
	// Heartbeat interval
	HeartbeatInterval = 30 * time.Second

	// Reconnect settings
	DefaultReconnectInterval    = 5 * time.Second
	DefaultMaxReconnectAttempts = 10
)

var errBridgeClosed = errors.New("wallet bridge client closed")

// Wallet bridge action types
const (
	ActionHeartbeat = "HEARTBEAT"
	ActionSubscribe = "SUBSCRIBE"
)

// WalletEventType names an EIP-1193 provider event
type WalletEventType string

const (
	EventConnect         WalletEventType = "connect"
	EventDisconnect      WalletEventType = "disconnect"
	EventChainChanged    WalletEventType = "chainChanged"
	EventAccountsChanged WalletEventType = "accountsChanged"
)

// WalletEvent is a provider event relayed by the wallet bridge
type WalletEvent struct {
	Type     WalletEventType `json:"type"`
	ChainID  string          `json:"chainId,omitempty"`
	Accounts []string        `json:"accounts,omitempty"`
}

// ParsedChainID decodes the hex ("0x539") or decimal chain id of the event
func (e WalletEvent) ParsedChainID() (ChainID, error) {
	if strings.HasPrefix(e.ChainID, "0x") || strings.HasPrefix(e.ChainID, "0X") {
		v, err := hexutil.DecodeUint64(strings.ToLower(e.ChainID))
		if err != nil {
			return 0, fmt.Errorf("invalid chain id %q: %w", e.ChainID, err)
		}
		return ChainID(v), nil
	}
	v, err := strconv.ParseUint(e.ChainID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chain id %q: %w", e.ChainID, err)
	}
	return ChainID(v), nil
}

// Addresses returns the valid account addresses of the event in order
func (e WalletEvent) Addresses() []common.Address {
	out := make([]common.Address, 0, len(e.Accounts))
	for _, a := range e.Accounts {
		if common.IsHexAddress(a) {
			out = append(out, common.HexToAddress(a))
		}
	}
	return out
}

type subscribeMessage struct {
	Action string            `json:"action"`
	Events []WalletEventType `json:"events"`
}

type heartbeatMessage struct {
	Action string `json:"action"`
}

// WalletEventsConfig holds configuration for the wallet events client
type WalletEventsConfig struct {
	Endpoint             string
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int
	BufferSize           int
	Logger               *slog.Logger
}

// WalletEventsClient subscribes to a wallet bridge over WebSocket and relays
// provider events. A successful reconnect is delivered as EventConnect so the
// session re-resolves the network.
type WalletEventsClient struct {
	config           WalletEventsConfig
	logger           *slog.Logger
	conn             *websocket.Conn
	mu               sync.RWMutex
	writeMu          sync.Mutex
	isConnected      bool
	closed           bool
	parent           context.Context
	ctx              context.Context
	cancel           context.CancelFunc
	reconnectAttempt int
	events           chan WalletEvent
}

// NewWalletEventsClient creates a new wallet events client
func NewWalletEventsClient(config WalletEventsConfig) *WalletEventsClient {
	if config.ReconnectInterval == 0 {
		config.ReconnectInterval = DefaultReconnectInterval
	}
	if config.MaxReconnectAttempts == 0 {
		config.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if config.BufferSize == 0 {
		config.BufferSize = 16
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &WalletEventsClient{
		config: config,
		logger: config.Logger.With("component", "wallet_events"),
		events: make(chan WalletEvent, config.BufferSize),
	}
}

// Events returns the channel events are delivered on
func (ws *WalletEventsClient) Events() <-chan WalletEvent {
	return ws.events
}

// Connect establishes the WebSocket connection and subscribes to events. The
// connection, heartbeats and reconnects live until ctx is done or Disconnect
// is called.
func (ws *WalletEventsClient) Connect(ctx context.Context) error {
	ws.mu.Lock()
	ws.parent = ctx
	ws.closed = false
	ws.reconnectAttempt = 0
	ws.mu.Unlock()

	return ws.dial()
}

// dial runs the handshake without holding ws.mu and only installs the
// connection if Disconnect was not called meanwhile.
func (ws *WalletEventsClient) dial() error {
	ws.mu.Lock()
	if ws.closed {
		ws.mu.Unlock()
		return errBridgeClosed
	}
	if ws.isConnected {
		ws.mu.Unlock()
		return nil
	}
	if ws.parent == nil {
		ws.parent = context.Background()
	}
	parent := ws.parent
	ws.mu.Unlock()

	if err := parent.Err(); err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(parent, ws.config.Endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to wallet bridge: %w", err)
	}

	if err := ws.writeJSON(conn, subscribeMessage{
		Action: ActionSubscribe,
		Events: []WalletEventType{EventConnect, EventDisconnect, EventChainChanged, EventAccountsChanged},
	}); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	ws.mu.Lock()
	if ws.closed || ws.isConnected {
		closed := ws.closed
		ws.mu.Unlock()
		_ = conn.Close()
		if closed {
			return errBridgeClosed
		}
		return nil
	}
	ctx, cancel := context.WithCancel(parent)
	ws.ctx, ws.cancel = ctx, cancel
	ws.conn = conn
	ws.isConnected = true
	ws.mu.Unlock()

	go ws.heartbeat(ctx, conn)
	go ws.readLoop(ctx, conn)

	ws.logger.Info("wallet bridge connected", "endpoint", ws.config.Endpoint)
	return nil
}

// Disconnect closes the WebSocket connection and stops reconnecting
func (ws *WalletEventsClient) Disconnect() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	ws.closed = true
	if !ws.isConnected {
		return nil
	}
	ws.isConnected = false
	if ws.cancel != nil {
		ws.cancel()
	}

	var err error
	if ws.conn != nil {
		err = ws.conn.Close()
		ws.conn = nil
	}
	return err
}

// IsConnected returns the current connection status
func (ws *WalletEventsClient) IsConnected() bool {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.isConnected
}

func (ws *WalletEventsClient) writeJSON(conn *websocket.Conn, msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ws.writeMu.Lock()
	defer ws.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (ws *WalletEventsClient) heartbeat(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := ws.writeJSON(conn, heartbeatMessage{Action: ActionHeartbeat}); err != nil {
				ws.logger.Warn("heartbeat failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (ws *WalletEventsClient) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				ws.logger.Warn("wallet bridge read error", "error", err)
			}
			ws.handleDisconnect(conn)
			return
		}

		var ev WalletEvent
		if err := json.Unmarshal(data, &ev); err != nil || ev.Type == "" {
			continue
		}
		if !ws.deliver(ctx, ev) {
			return
		}
	}
}

func (ws *WalletEventsClient) deliver(ctx context.Context, ev WalletEvent) bool {
	select {
	case ws.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// handleDisconnect marks the connection lost and starts reconnecting
func (ws *WalletEventsClient) handleDisconnect(conn *websocket.Conn) {
	ws.mu.Lock()
	if ws.conn != conn {
		ws.mu.Unlock()
		return
	}
	ws.isConnected = false
	ws.cancel()
	_ = ws.conn.Close()
	ws.conn = nil
	parent := ws.parent
	ws.mu.Unlock()

	ws.deliver(parent, WalletEvent{Type: EventDisconnect})
	go ws.attemptReconnect()
}

func (ws *WalletEventsClient) attemptReconnect() {
	for {
		ws.mu.Lock()
		if ws.closed {
			ws.mu.Unlock()
			return
		}
		if ws.reconnectAttempt >= ws.config.MaxReconnectAttempts {
			ws.mu.Unlock()
			break
		}
		ws.reconnectAttempt++
		attempt := ws.reconnectAttempt
		parent := ws.parent
		ws.mu.Unlock()

		select {
		case <-parent.Done():
			return
		case <-time.After(ws.config.ReconnectInterval):
		}

		err := ws.dial()
		if errors.Is(err, errBridgeClosed) {
			return
		}
		if err != nil {
			ws.logger.Warn("reconnect attempt failed", "attempt", attempt, "error", err)
			continue
		}

		ws.mu.Lock()
		if ws.closed {
			ws.mu.Unlock()
			return
		}
		ws.reconnectAttempt = 0
		ws.mu.Unlock()
		ws.deliver(parent, WalletEvent{Type: EventConnect})
		return
	}

	ws.logger.Error("max reconnect attempts reached", "attempts", ws.config.MaxReconnectAttempts)
}
