// Package revocation keeps a live view of credential revocations so a
// cached "valid" verdict can be overridden the moment a credential is
// pulled.
//
// A Watcher prefers a WebSocket push stream and falls back to polling the
// revocation feed when the stream cannot be established. Either way it
// maintains an in-memory revoked set for O(1) advisory checks and evicts
// the affected cache entries on every event.
package revocation

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/agentid-dev/agentid-go/internal/metrics"
	"github.com/agentid-dev/agentid-go/pkg/agentid"
	"github.com/agentid-dev/agentid-go/pkg/cache"
	"github.com/agentid-dev/agentid-go/pkg/registry"
)

// DefaultWSBase is the hosted push endpoint.
const DefaultWSBase = "wss://agentid.dev/ws"

// Defaults for the connection lifecycle.
const (
	DefaultPollInterval          = 30 * time.Second
	DefaultMaxReconnectAttempts  = 10
	DefaultReconnectBackoff      = 1.5
	DefaultInitialReconnectDelay = time.Second

	// keepaliveIdle is how long the stream may sit idle before the
	// watcher sends an application-level ping.
	keepaliveIdle = 60 * time.Second
)

// ConnectionState describes the watcher's link to the authority.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
)

// Options configure a Watcher. Callbacks run on the watcher's goroutine;
// a panic inside one is swallowed so a misbehaving callback cannot kill
// the stream.
type Options struct {
	// APIBase overrides the hosted authority for the polling fallback.
	APIBase string

	// WSBase overrides the hosted push endpoint.
	WSBase string

	// Cache is evicted on revocation events. Defaults to the process-wide
	// cache.
	Cache *cache.Cache

	// OnRevocation fires once per observed revocation.
	OnRevocation func(agentid.RevocationEvent)

	// OnConnectionChange fires when the watcher transitions into or out
	// of the connected state.
	OnConnectionChange func(connected bool)

	// OnError reports stream and polling errors. Errors are recoverable;
	// the watcher keeps running.
	OnError func(error)

	// PollInterval is the polling-fallback cadence. Defaults to
	// DefaultPollInterval.
	PollInterval time.Duration

	// AutoReconnect re-dials a dropped stream with exponential backoff.
	// Enabled unless explicitly disabled.
	AutoReconnect *bool

	// MaxReconnectAttempts bounds the re-dial attempts before falling
	// back to polling.
	MaxReconnectAttempts int

	// ReconnectBackoff multiplies the delay after each failed attempt.
	ReconnectBackoff float64

	// InitialReconnectDelay is the delay before the first re-dial.
	InitialReconnectDelay time.Duration

	// CredentialIDs narrows the subscription. Empty means all
	// revocations.
	CredentialIDs []string

	// Logger receives connection and event logs. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Watcher subscribes to credential revocations. All methods are safe for
// concurrent use.
type Watcher struct {
	client  *registry.Client
	wsBase  string
	cache   *cache.Cache
	dialer  *websocket.Dialer
	logger  *slog.Logger
	options Options

	mu         sync.Mutex
	state      ConnectionState
	revoked    map[string]struct{}
	subscribed map[string]struct{}
	lastCheck  time.Time
	lastRead   time.Time
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewWatcher creates a watcher. Nothing runs until Connect.
func NewWatcher(opts Options) *Watcher {
	c := opts.Cache
	if c == nil {
		c = cache.Default()
	}
	if opts.WSBase == "" {
		opts.WSBase = DefaultWSBase
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxReconnectAttempts <= 0 {
		opts.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if opts.ReconnectBackoff <= 1 {
		opts.ReconnectBackoff = DefaultReconnectBackoff
	}
	if opts.InitialReconnectDelay <= 0 {
		opts.InitialReconnectDelay = DefaultInitialReconnectDelay
	}

	subscribed := make(map[string]struct{}, len(opts.CredentialIDs))
	for _, id := range opts.CredentialIDs {
		subscribed[id] = struct{}{}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		client:     registry.NewClient(opts.APIBase, ""),
		wsBase:     strings.TrimSuffix(opts.WSBase, "/"),
		cache:      c,
		dialer:     websocket.DefaultDialer,
		logger:     logger,
		options:    opts,
		state:      StateDisconnected,
		revoked:    make(map[string]struct{}),
		subscribed: subscribed,
	}
}

// State returns the current connection state.
func (w *Watcher) State() ConnectionState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// IsConnected reports whether the watcher is receiving events, over
// either channel.
func (w *Watcher) IsConnected() bool {
	return w.State() == StateConnected
}

// IsRevoked reports whether a revocation has been observed for the
// credential. It is advisory: a false return means no event has arrived,
// not that the credential is valid.
func (w *Watcher) IsRevoked(credentialID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.revoked[credentialID]
	return ok
}

// Subscribe narrows future polling to include credentialID. It does not
// renegotiate an already-established WebSocket subscription.
func (w *Watcher) Subscribe(credentialID string) {
	w.mu.Lock()
	w.subscribed[credentialID] = struct{}{}
	w.mu.Unlock()
}

// Unsubscribe removes credentialID from the subscription filter.
func (w *Watcher) Unsubscribe(credentialID string) {
	w.mu.Lock()
	delete(w.subscribed, credentialID)
	w.mu.Unlock()
}

// Connect starts the watcher. It returns once the background goroutine is
// launched; connection progress is reported through OnConnectionChange.
// Calling Connect on a non-disconnected watcher is a no-op.
func (w *Watcher) Connect(ctx context.Context) {
	w.mu.Lock()
	if w.state != StateDisconnected {
		w.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	done := w.done
	w.mu.Unlock()

	w.setState(StateConnecting)

	go func() {
		defer close(done)
		w.run(runCtx)
	}()
}

// Disconnect stops the watcher and waits for its goroutine to exit, so no
// callback fires after Disconnect returns. Idempotent.
func (w *Watcher) Disconnect() {
	w.mu.Lock()
	cancel := w.cancel
	done := w.done
	w.cancel = nil
	w.done = nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	w.setState(StateDisconnected)
}

// run owns the delivery channel: WebSocket while it holds, polling once
// the stream is given up on. The two modes never run at the same time.
func (w *Watcher) run(ctx context.Context) {
	autoReconnect := true
	if w.options.AutoReconnect != nil {
		autoReconnect = *w.options.AutoReconnect
	}

	delay := w.options.InitialReconnectDelay
	attempts := 0
	everConnected := false

	for {
		connected, err := w.runWebSocket(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			w.handleError(err)
		}

		if connected {
			// A stream that was up resets the backoff schedule.
			everConnected = true
			attempts = 0
			delay = w.options.InitialReconnectDelay
		}
		// An endpoint that never accepted a stream goes straight to
		// polling; a dropped stream is worth re-dialing.
		if !autoReconnect || !everConnected {
			break
		}

		attempts++
		if attempts > w.options.MaxReconnectAttempts {
			break
		}
		w.setState(StateReconnecting)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * w.options.ReconnectBackoff)
	}

	// Stream unavailable; poll instead.
	w.runPolling(ctx)
}

// wsURL builds the subscription URL, filtered when credential IDs were
// given.
func (w *Watcher) wsURL() string {
	endpoint := w.wsBase + "/revocations"

	w.mu.Lock()
	ids := make([]string, 0, len(w.subscribed))
	for id := range w.subscribed {
		ids = append(ids, id)
	}
	w.mu.Unlock()

	if len(ids) > 0 {
		endpoint += "?credential_ids=" + url.QueryEscape(strings.Join(ids, ","))
	}
	return endpoint
}

// wsMessage is the stream's envelope.
type wsMessage struct {
	Type  string                   `json:"type"`
	Data  *agentid.RevocationEvent `json:"data,omitempty"`
	Error string                   `json:"error,omitempty"`
}

// runWebSocket dials the stream and consumes it until it drops or the
// context ends. The first return reports whether a connection was
// established at all; false sends the caller straight to polling.
func (w *Watcher) runWebSocket(ctx context.Context) (bool, error) {
	conn, _, err := w.dialer.DialContext(ctx, w.wsURL(), nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	w.setState(StateConnected)
	w.markRead()

	var writeMu sync.Mutex
	send := func(v interface{}) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}

	g, gctx := errgroup.WithContext(ctx)

	// Reader: consume events until the stream breaks.
	g.Go(func() error {
		for {
			var msg wsMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return err
			}
			w.markRead()

			switch msg.Type {
			case "revocation":
				if msg.Data != nil {
					w.handleRevocation(*msg.Data, "websocket")
				}
			case "ping":
				if err := send(map[string]string{"type": "pong"}); err != nil {
					return err
				}
			case "error":
				w.handleError(agentid.NewError(agentid.ErrCodeGeneric, msg.Error))
			}
		}
	})

	// Keepalive: ping when the stream has been idle too long.
	g.Go(func() error {
		ticker := time.NewTicker(keepaliveIdle / 2)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				// Unblock the reader.
				conn.Close()
				return gctx.Err()
			case <-ticker.C:
				if time.Since(w.lastReadTime()) >= keepaliveIdle {
					if err := send(map[string]string{"type": "ping"}); err != nil {
						return err
					}
				}
			}
		}
	})

	err = g.Wait()
	if ctx.Err() != nil {
		return true, nil
	}
	return true, err
}

// runPolling checks the revocation feed on a fixed cadence until the
// context ends.
func (w *Watcher) runPolling(ctx context.Context) {
	w.setState(StateConnected)

	if _, err := w.CheckRevocations(ctx); err != nil {
		w.handleError(err)
	}

	ticker := time.NewTicker(w.options.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.CheckRevocations(ctx); err != nil {
				w.handleError(err)
			}
		}
	}
}

// CheckRevocations polls the feed once for events since the previous
// check and processes each one. It can also be called directly for an
// on-demand sweep.
func (w *Watcher) CheckRevocations(ctx context.Context) ([]agentid.RevocationEvent, error) {
	w.mu.Lock()
	since := w.lastCheck
	ids := make([]string, 0, len(w.subscribed))
	for id := range w.subscribed {
		ids = append(ids, id)
	}
	w.mu.Unlock()

	events, err := w.client.Revocations(ctx, since, ids)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.lastCheck = time.Now()
	w.mu.Unlock()

	for _, event := range events {
		w.handleRevocation(event, "poll")
	}
	return events, nil
}

// handleRevocation records the event, evicts every cache entry derived
// from the credential, and notifies the callback.
func (w *Watcher) handleRevocation(event agentid.RevocationEvent, channel string) {
	w.mu.Lock()
	w.revoked[event.CredentialID] = struct{}{}
	w.mu.Unlock()

	w.cache.Delete("verify:" + event.CredentialID)
	w.cache.Delete("cred:" + event.CredentialID)
	w.cache.Delete("credential:" + event.CredentialID)

	metrics.RevocationEvents.WithLabelValues(channel).Inc()
	w.logger.Info("credential revoked",
		"credential_id", event.CredentialID,
		"revoked_at", event.RevokedAt,
		"reason", event.Reason)

	if w.options.OnRevocation != nil {
		w.invoke(func() { w.options.OnRevocation(event) })
	}
}

func (w *Watcher) handleError(err error) {
	w.logger.Warn("revocation watcher error", "error", err)
	if w.options.OnError != nil {
		w.invoke(func() { w.options.OnError(err) })
	}
}

// setState updates the state and fires OnConnectionChange on transitions
// into or out of connected.
func (w *Watcher) setState(state ConnectionState) {
	w.mu.Lock()
	wasConnected := w.state == StateConnected
	w.state = state
	nowConnected := state == StateConnected
	w.mu.Unlock()

	if wasConnected != nowConnected && w.options.OnConnectionChange != nil {
		w.invoke(func() { w.options.OnConnectionChange(nowConnected) })
	}
}

// invoke runs a callback, absorbing panics.
func (w *Watcher) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Warn("revocation callback panicked", "panic", r)
		}
	}()
	fn()
}

func (w *Watcher) markRead() {
	w.mu.Lock()
	w.lastRead = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) lastReadTime() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastRead
}
