package council

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"exchange_pro/internal/domain"
	"exchange_pro/internal/infra"
)

const (
	// DefaultURL is the local advisory service endpoint
	DefaultURL = "ws://localhost:8000/ws"

	defaultMaxAttempts = 5
	defaultBaseDelay   = 3 * time.Second
	pingInterval       = 30 * time.Second
	readTimeout        = 90 * time.Second
	transcriptSize     = 200
)

// Inbound message types
const (
	TypeModelStatus       = "model_status"
	TypeCouncilStarted    = "council_started"
	TypeModelThinking     = "model_thinking"
	TypeModelResponse     = "model_response"
	TypeRankingStarted    = "ranking_started"
	TypeSynthesisStarted  = "synthesis_started"
	TypeSynthesisComplete = "synthesis_complete"
	TypeCouncilComplete   = "council_complete"
	TypeNewsFetching      = "news_fetching"
	TypeNewsSentiment     = "news_sentiment"
	TypeNewsError         = "news_error"
	TypeHistoryCleared    = "history_cleared"
	TypeError             = "error"
)

// Envelope is one inbound message. Only Type is interpreted; Data is passed through.
type Envelope struct {
	Type       string          `json:"type"`
	Message    string          `json:"message,omitempty"`
	ModelName  string          `json:"model_name,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
}

type outbound struct {
	Action   string `json:"action"`
	Question string `json:"question,omitempty"`
	Topic    string `json:"topic,omitempty"`
}

var _ domain.Worker = (*Client)(nil)

// Client keeps a websocket open to the advisory service.
// After a drop it retries up to maxAttempts times, waiting baseDelay*attempt before each;
// a successful open resets the count. Once attempts are exhausted it stays offline until Connect.
type Client struct {
	maxAttempts int
	baseDelay   time.Duration
	metrics     *infra.Metrics
	logger      *slog.Logger
	onMessage   func(Envelope)
	onStatus    func(online bool)

	conn       *websocket.Conn
	mu         sync.RWMutex
	writeMu    sync.Mutex
	url        string
	connected  bool
	cancel     context.CancelFunc
	loopDone   chan struct{}
	transcript []Envelope
	wg         sync.WaitGroup
}

// Option customizes a Client
type Option func(*Client)

// WithReconnect overrides the retry budget and linear delay step
func WithReconnect(maxAttempts int, baseDelay time.Duration) Option {
	return func(c *Client) {
		if maxAttempts >= 0 {
			c.maxAttempts = maxAttempts
		}
		if baseDelay > 0 {
			c.baseDelay = baseDelay
		}
	}
}

// WithMessageHandler registers a callback for every inbound envelope
func WithMessageHandler(fn func(Envelope)) Option {
	return func(c *Client) { c.onMessage = fn }
}

// WithStatusHandler registers a callback for online/offline transitions
func WithStatusHandler(fn func(online bool)) Option {
	return func(c *Client) { c.onStatus = fn }
}

// WithMetrics sets the metrics sink
func WithMetrics(m *infra.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates an unconnected client. An empty url uses DefaultURL.
func NewClient(url string, opts ...Option) *Client {
	if url == "" {
		url = DefaultURL
	}
	c := &Client{
		url:         url,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		metrics:     infra.GlobalMetrics,
		logger:      slog.Default().With(slog.String("module", "council")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetURL changes the endpoint used by the next Connect
func (c *Client) SetURL(url string) {
	if url == "" {
		url = DefaultURL
	}
	c.mu.Lock()
	c.url = url
	c.mu.Unlock()
}

// URL returns the configured endpoint
func (c *Client) URL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.url
}

// Connect (re)starts the connection loop, replacing any loop already running
func (c *Client) Connect(ctx context.Context) error {
	c.Disconnect()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	c.mu.Lock()
	c.cancel = cancel
	c.loopDone = done
	c.mu.Unlock()

	c.wg.Add(1)
	go c.connectionLoop(ctx, done)

	return nil
}

// connectionLoop handles connection and bounded linear-backoff reconnection
func (c *Client) connectionLoop(ctx context.Context, done chan struct{}) {
	defer c.wg.Done()
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Council panic recovered", slog.Any("panic", r))
		}
	}()

	attempts := 0
	for {
		if err := c.connect(ctx); err != nil {
			c.logger.Warn("Council connection failed",
				slog.Any("error", err),
				slog.Int("attempt", attempts),
			)
		} else {
			// Connection successful, reset retry counter
			attempts = 0
			c.readLoop(ctx)
		}

		if ctx.Err() != nil {
			c.logger.Info("Council connection loop stopped")
			return
		}

		attempts++
		if attempts > c.maxAttempts {
			c.logger.Error("Council reconnect attempts exhausted", slog.Int("max", c.maxAttempts))
			return
		}

		delay := reconnectDelay(c.baseDelay, attempts)
		c.logger.Info("Council reconnecting", slog.Int("attempt", attempts), slog.Duration("delay", delay))
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// reconnectDelay grows linearly with the attempt number
func reconnectDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base * time.Duration(attempt)
}

// connect establishes the WebSocket connection
func (c *Client) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	header := make(http.Header)
	header.Add("User-Agent", infra.DefaultUserAgent)

	conn, _, err := dialer.DialContext(ctx, c.URL(), header)
	if err != nil {
		return domain.NewNetworkError("dial", err)
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.setConnected(true)

	c.logger.Info("🏛️ AI Council connected", slog.String("url", c.URL()))
	return nil
}

// threadSafeWrite sends a message to the WebSocket connection in a thread-safe manner
func (c *Client) threadSafeWrite(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return domain.ErrNotConnected
	}

	return conn.WriteMessage(messageType, data)
}

// readLoop reads messages until the connection drops, pinging to keep it alive
func (c *Client) readLoop(ctx context.Context) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return
	}

	stopPing := make(chan struct{})
	defer close(stopPing)
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stopPing:
				return
			case <-ctx.Done():
				// Unblocks ReadMessage when the dial raced with Disconnect.
				c.closeConnection()
				return
			case <-ticker.C:
				if err := c.threadSafeWrite(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("Council WebSocket read error", slog.Any("error", err))
			}
			c.closeConnection()
			return
		}

		c.handleMessage(message)
	}
}

// handleMessage records an envelope and hands it to the message handler
func (c *Client) handleMessage(message []byte) {
	var env Envelope
	if err := json.Unmarshal(message, &env); err != nil || env.Type == "" {
		c.logger.Debug("Council message dropped", slog.Any("error", err))
		return
	}
	env.ReceivedAt = time.Now()

	c.mu.Lock()
	if env.Type == TypeHistoryCleared {
		c.transcript = nil
	} else {
		c.transcript = append(c.transcript, env)
		if len(c.transcript) > transcriptSize {
			c.transcript = c.transcript[len(c.transcript)-transcriptSize:]
		}
	}
	c.mu.Unlock()

	if env.Type == TypeError {
		c.logger.Warn("Council reported error", slog.String("message", env.Message))
	}
	if c.onMessage != nil {
		c.onMessage(env)
	}
}

func (c *Client) send(msg outbound) error {
	if !c.IsConnected() {
		return domain.ErrNotConnected
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := c.threadSafeWrite(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("council %s: %w", msg.Action, err)
	}
	return nil
}

// Ask starts a council deliberation on question
func (c *Client) Ask(question string) error {
	return c.send(outbound{Action: "start_council", Question: question})
}

// NewsSentiment asks the council to analyse news on topic
func (c *Client) NewsSentiment(topic string) error {
	return c.send(outbound{Action: "get_news_sentiment", Topic: topic})
}

// ClearHistory asks the council to forget the conversation
func (c *Client) ClearHistory() error {
	return c.send(outbound{Action: "clear_history"})
}

// Transcript returns a copy of the recent inbound envelopes, oldest first
func (c *Client) Transcript() []Envelope {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Envelope(nil), c.transcript...)
}

func (c *Client) setConnected(online bool) {
	c.mu.Lock()
	changed := c.connected != online
	c.connected = online
	c.mu.Unlock()

	if !changed {
		return
	}
	if online {
		c.metrics.IncrementConnections()
	} else {
		c.metrics.DecrementConnections()
	}
	if c.onStatus != nil {
		c.onStatus(online)
	}
}

// closeConnection safely closes the WebSocket connection
func (c *Client) closeConnection() {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()
	c.setConnected(false)
}

// Disconnect stops the connection loop and closes the WebSocket connection
func (c *Client) Disconnect() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	c.closeConnection()
	c.wg.Wait()
	c.logger.Info("AI Council disconnected")
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
