package endpoint

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ardenhall/voicegw/internal/infrastructure/logging"
)

const (
	defaultReconnectDelay    = 5 * time.Second
	defaultHeartbeatInterval = 10 * time.Second
	defaultLivenessTimeout   = 15 * time.Second

	// bridgeQueueSize bounds pending intent requests. The queue outlives
	// individual connections so requests queued during a brief outage
	// are delivered once the next connection authenticates. Requests
	// still queued when a live connection dies are failed back to their
	// devices instead of being carried over, because the disconnect
	// purges their correlation entries.
	bridgeQueueSize = 32

	// unavailableSpeech is spoken back to a device whose queued command
	// was failed by a dying connection.
	unavailableSpeech = "The command endpoint is unavailable"
)

// ResultHandler receives completed endpoint requests. Implemented by the
// command router.
type ResultHandler interface {
	HandleEndpointResult(ctx context.Context, result *Result)
}

// Telemetry records bridge activity. Implementations must tolerate
// high-frequency calls; the influxdb package satisfies this with a
// batched writer.
type Telemetry interface {
	RecordDispatch()
	RecordResult(ok bool)
	RecordEndpointState(connected bool)
}

// Options configures a Bridge. Zero durations fall back to the protocol
// defaults; tests shrink them.
type Options struct {
	Config            *Config
	Logger            *logging.Logger
	Telemetry         Telemetry
	ReconnectDelay    time.Duration
	HeartbeatInterval time.Duration
	LivenessTimeout   time.Duration
}

// outFrame is a control-plane frame (auth, ping) bound for the endpoint
// connection, bypassing the intent queue.
type outFrame struct {
	messageType int
	data        []byte
}

// pendingCmd is a translated intent request waiting in the queue. The id
// lets teardown resolve the owning device when the request will never be
// sent.
type pendingCmd struct {
	id    uint64
	frame []byte
}

// Bridge maintains the long-lived connection to the command endpoint.
// It reconnects on failure, re-authenticates, correlates replies to the
// devices that issued them and applies configuration changes by cycling
// the connection.
//
// Thread Safety: Run owns the connection; Dispatch, Resolve,
// UpdateConfig, Connected and CorrelationSnapshot are safe from any
// goroutine.
type Bridge struct {
	cfg   atomic.Pointer[Config]
	proto atomic.Pointer[Protocol]

	queue      chan pendingCmd
	cfgChanged chan struct{}
	table      *correlationTable
	connected  atomic.Bool

	handler   ResultHandler
	telemetry Telemetry
	logger    *logging.Logger

	reconnectDelay    time.Duration
	heartbeatInterval time.Duration
	livenessTimeout   time.Duration

	closeOnce sync.Once
	closed    chan struct{}
}

// NewBridge creates a bridge for the given endpoint configuration.
// Returns ErrUnsupportedEndpoint when the configured kind has no
// protocol implementation. Call SetResultHandler before Run.
func NewBridge(opts Options) (*Bridge, error) {
	proto, err := NewProtocol(opts.Config.Kind)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = defaultHeartbeatInterval
	}
	if opts.LivenessTimeout <= 0 {
		opts.LivenessTimeout = defaultLivenessTimeout
	}

	b := &Bridge{
		queue:             make(chan pendingCmd, bridgeQueueSize),
		cfgChanged:        make(chan struct{}, 1),
		table:             newCorrelationTable(),
		telemetry:         opts.Telemetry,
		logger:            logger.With("component", "endpoint_bridge"),
		reconnectDelay:    opts.ReconnectDelay,
		heartbeatInterval: opts.HeartbeatInterval,
		livenessTimeout:   opts.LivenessTimeout,
		closed:            make(chan struct{}),
	}
	b.cfg.Store(opts.Config)
	b.proto.Store(&proto)
	return b, nil
}

// SetResultHandler wires the consumer of completed requests. Must be
// called before Run.
func (b *Bridge) SetResultHandler(h ResultHandler) {
	b.handler = h
}

// Connected reports whether an authenticated endpoint connection is up.
func (b *Bridge) Connected() bool {
	return b.connected.Load()
}

// Dispatch queues an intent request for the device. The allocated
// request id survives in the correlation table until a reply arrives or
// the connection cycles. Requests are accepted even while the connection
// or its auth handshake is still in progress: they sit in the queue
// until a connection authenticates, and are failed back to their devices
// if a live connection dies with them still queued.
//
// Returns ErrQueueFull when the outbound queue is at capacity.
func (b *Bridge) Dispatch(deviceID uuid.UUID, text string) error {
	id := b.table.assign(deviceID)
	frame, err := (*b.proto.Load()).TranslateRequest(id, text)
	if err != nil {
		b.table.forget(id)
		return err
	}

	select {
	case b.queue <- pendingCmd{id: id, frame: frame}:
		if b.telemetry != nil {
			b.telemetry.RecordDispatch()
		}
		b.logger.Debug("intent dispatched", "request_id", id, "device_id", deviceID.String())
		return nil
	default:
		b.table.forget(id)
		return ErrQueueFull
	}
}

// Resolve consumes the pending request with the given id and returns the
// device that issued it.
func (b *Bridge) Resolve(requestID uint64) (uuid.UUID, error) {
	owner, ok := b.table.resolve(requestID)
	if !ok {
		return uuid.Nil, ErrNotFound
	}
	return owner, nil
}

// CorrelationSnapshot returns the pending request table for diagnostics.
func (b *Bridge) CorrelationSnapshot() map[uint64]uuid.UUID {
	return b.table.snapshot()
}

// UpdateConfig applies a new endpoint configuration. The active
// connection is cycled so the next generation dials the new target.
// Returns ErrUnsupportedEndpoint without applying anything when the new
// kind has no protocol implementation.
func (b *Bridge) UpdateConfig(cfg *Config) error {
	proto, err := NewProtocol(cfg.Kind)
	if err != nil {
		return err
	}

	b.cfg.Store(cfg)
	b.proto.Store(&proto)

	select {
	case b.cfgChanged <- struct{}{}:
	default:
		// A cycle is already pending; it will pick up the latest config.
	}

	b.logger.Info("endpoint configuration updated", "kind", cfg.Kind, "url", cfg.URL)
	return nil
}

// Close stops the bridge. Run returns after the active generation winds
// down.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() { close(b.closed) })
}

// Run maintains the endpoint connection until ctx is cancelled or Close
// is called. Each connection attempt is one generation; generations are
// separated by the reconnect delay.
func (b *Bridge) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.closed:
			return
		default:
		}

		cfg := b.cfg.Load()
		if err := b.runGeneration(ctx, cfg); err != nil {
			b.logger.Warn("endpoint connection failed", "url", cfg.URL, "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-b.closed:
			return
		case <-time.After(b.reconnectDelay):
		}
	}
}

// runGeneration dials the endpoint and services the connection until it
// drops, the liveness deadline passes, the configuration changes or ctx
// is cancelled.
func (b *Bridge) runGeneration(ctx context.Context, cfg *Config) error {
	dialCtx, dialCancel := context.WithTimeout(ctx, b.reconnectDelay)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, cfg.URL, nil)
	dialCancel()
	if err != nil {
		return err
	}

	b.logger.Info("connected to endpoint", "kind", cfg.Kind, "url", cfg.URL)

	genCtx, genCancel := context.WithCancel(ctx)
	defer genCancel()
	defer conn.Close() //nolint:errcheck // Best-effort close on teardown
	defer func() {
		b.connected.Store(false)
		if b.telemetry != nil {
			b.telemetry.RecordEndpointState(false)
		}
		b.failQueued(ctx)
		if n := b.table.purge(); n > 0 {
			b.logger.Warn("dropped in-flight requests on disconnect", "count", n)
		}
	}()

	var lastPong atomic.Int64
	lastPong.Store(time.Now().UnixNano())
	conn.SetPongHandler(func(string) error {
		lastPong.Store(time.Now().UnixNano())
		return nil
	})

	ctrl := make(chan outFrame, 4)
	authed := make(chan struct{})
	readErr := make(chan error, 1)

	go b.readLoop(genCtx, conn, cfg, ctrl, authed, readErr)

	ticker := time.NewTicker(b.heartbeatInterval)
	defer ticker.Stop()

	// Intent frames are held back until the server accepts our auth.
	// The nil channel keeps the case dormant without an extra flag.
	var cmds chan pendingCmd

	for {
		select {
		case <-genCtx.Done():
			return genCtx.Err()
		case <-b.closed:
			return nil
		case err := <-readErr:
			return err
		case <-b.cfgChanged:
			b.logger.Info("configuration changed, cycling endpoint connection")
			return nil
		case <-authed:
			authed = nil
			cmds = b.queue
			b.connected.Store(true)
			if b.telemetry != nil {
				b.telemetry.RecordEndpointState(true)
			}
		case frame := <-ctrl:
			if err := conn.WriteMessage(frame.messageType, frame.data); err != nil {
				return err
			}
		case cmd := <-cmds:
			if err := conn.WriteMessage(websocket.TextMessage, cmd.frame); err != nil {
				return err
			}
		case <-ticker.C:
			elapsed := time.Since(time.Unix(0, lastPong.Load()))
			if elapsed > b.livenessTimeout {
				b.logger.Warn("endpoint unresponsive, cycling connection", "elapsed", elapsed.String())
				return ErrNotConnected
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

// failQueued drains requests still queued when a generation dies and
// reports each as failed so the owning device hears an answer. Their
// correlation entries would otherwise be purged with the generation,
// orphaning any reply a later connection produced for a resent frame.
func (b *Bridge) failQueued(ctx context.Context) {
	for {
		select {
		case cmd := <-b.queue:
			b.logger.Warn("failing queued request on disconnect", "request_id", cmd.id)
			if b.handler != nil {
				b.handler.HandleEndpointResult(ctx, &Result{
					RequestID: cmd.id,
					OK:        false,
					Speech:    unavailableSpeech,
				})
			} else {
				b.table.forget(cmd.id)
			}
		default:
			return
		}
	}
}

// readLoop reads and classifies endpoint frames for one generation. Auth
// challenges are answered through ctrl; completed requests go to the
// result handler.
func (b *Bridge) readLoop(ctx context.Context, conn *websocket.Conn, cfg *Config, ctrl chan<- outFrame, authed chan<- struct{}, readErr chan<- error) {
	proto := *b.proto.Load()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case readErr <- err:
			case <-ctx.Done():
			}
			return
		}

		inbound, err := proto.TranslateResponse(raw)
		if err != nil {
			b.logger.Warn("undecodable endpoint frame", "error", err)
			continue
		}

		switch {
		case inbound.AuthRequired:
			frame, err := proto.AuthRequest(cfg.Token)
			if err != nil {
				b.logger.Error("building auth request", "error", err)
				continue
			}
			select {
			case ctrl <- outFrame{messageType: websocket.TextMessage, data: frame}:
			case <-ctx.Done():
				return
			}
		case inbound.AuthOK:
			b.logger.Info("authenticated to endpoint")
			select {
			case authed <- struct{}{}:
			case <-ctx.Done():
				return
			}
		case inbound.AuthInvalid:
			b.logger.Error("endpoint rejected access token")
			select {
			case readErr <- ErrNotConnected:
			case <-ctx.Done():
			}
			return
		case inbound.Result != nil:
			result := inbound.Result
			b.logger.Debug("endpoint result",
				"request_id", result.RequestID,
				"ok", result.OK,
			)
			if b.telemetry != nil {
				b.telemetry.RecordResult(result.OK)
			}
			if b.handler != nil {
				b.handler.HandleEndpointResult(ctx, result)
			}
		}
	}
}
