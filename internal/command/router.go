package command

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/ardenhall/voicegw/internal/endpoint"
	"github.com/ardenhall/voicegw/internal/infrastructure/logging"
	"github.com/ardenhall/voicegw/internal/protocol"
)

// Dispatcher forwards intent requests to the endpoint bridge and maps
// replies back to their devices.
type Dispatcher interface {
	Dispatch(deviceID uuid.UUID, text string) error
	Resolve(requestID uint64) (uuid.UUID, error)
}

// Sender pushes a frame to a connected device. Implemented by the
// device registry.
type Sender interface {
	Send(id uuid.UUID, frame []byte) error
}

// ConfigSource serves the stored device configuration.
type ConfigSource interface {
	GetConfig(ctx context.Context) (map[string]any, error)
}

// Router connects the device sessions to the endpoint bridge and the
// config store: device commands flow out through Dispatch, completed
// endpoint results flow back in through HandleEndpointResult.
type Router struct {
	dispatcher Dispatcher
	sender     Sender
	configs    ConfigSource
	logger     *logging.Logger
}

// NewRouter creates a command router. dispatcher may be nil when no
// endpoint is configured; endpoint commands then fail with a spoken
// error instead of panicking.
func NewRouter(dispatcher Dispatcher, sender Sender, configs ConfigSource, logger *logging.Logger) *Router {
	if logger == nil {
		logger = logging.Default()
	}
	return &Router{
		dispatcher: dispatcher,
		sender:     sender,
		configs:    configs,
		logger:     logger.With("component", "command_router"),
	}
}

// RouteDeviceCommand handles one command frame from a device.
func (r *Router) RouteDeviceCommand(ctx context.Context, deviceID uuid.UUID, cmd *protocol.CommandPayload) {
	switch cmd.Cmd {
	case "endpoint":
		r.routeEndpoint(deviceID, cmd.Data)
	case "get_config":
		r.routeGetConfig(ctx, deviceID)
	default:
		r.logger.Warn("unknown device command", "cmd", cmd.Cmd, "device_id", deviceID.String())
	}
}

// routeEndpoint forwards recognised speech to the endpoint bridge. The
// device gets an immediate failure result when no endpoint can take the
// request, so it never waits on a reply that cannot come.
func (r *Router) routeEndpoint(deviceID uuid.UUID, data json.RawMessage) {
	var payload protocol.EndpointCommandData
	if err := json.Unmarshal(data, &payload); err != nil {
		r.logger.Warn("malformed endpoint command", "device_id", deviceID.String(), "error", err)
		return
	}

	if r.dispatcher == nil {
		r.logger.Warn("endpoint command with no endpoint configured", "device_id", deviceID.String())
		r.sendResult(deviceID, false, "No command endpoint is configured")
		return
	}

	if err := r.dispatcher.Dispatch(deviceID, payload.Text); err != nil {
		r.logger.Warn("endpoint dispatch failed", "device_id", deviceID.String(), "error", err)
		r.sendResult(deviceID, false, "The command endpoint is unavailable")
	}
}

// routeGetConfig pushes the stored configuration back to the requesting
// device.
func (r *Router) routeGetConfig(ctx context.Context, deviceID uuid.UUID) {
	config, err := r.configs.GetConfig(ctx)
	if err != nil {
		r.logger.Error("loading config for device", "device_id", deviceID.String(), "error", err)
		return
	}

	frame, err := protocol.EncodeConfigPush(config)
	if err != nil {
		r.logger.Error("encoding config push", "error", err)
		return
	}
	if err := r.sender.Send(deviceID, frame); err != nil {
		r.logger.Warn("config push failed", "device_id", deviceID.String(), "error", err)
	}
}

// HandleEndpointResult delivers a completed endpoint request to the
// device that issued it. Results whose request id resolves to nothing
// (the connection cycled, or the device disconnected and the entry was
// consumed) are dropped.
func (r *Router) HandleEndpointResult(_ context.Context, result *endpoint.Result) {
	deviceID, err := r.dispatcher.Resolve(result.RequestID)
	if err != nil {
		r.logger.Debug("orphaned endpoint result", "request_id", result.RequestID)
		return
	}

	frame, err := protocol.EncodeResult(result.OK, result.Speech)
	if err != nil {
		r.logger.Error("encoding result frame", "error", err)
		return
	}
	if err := r.sender.Send(deviceID, frame); err != nil {
		r.logger.Warn("result delivery failed", "device_id", deviceID.String(), "error", err)
	}
}

// sendResult pushes a result frame directly, used for local failures.
func (r *Router) sendResult(deviceID uuid.UUID, ok bool, speech string) {
	frame, err := protocol.EncodeResult(ok, speech)
	if err != nil {
		return
	}
	//nolint:errcheck // Best-effort failure notification
	r.sender.Send(deviceID, frame)
}
