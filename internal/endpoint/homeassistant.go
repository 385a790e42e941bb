package endpoint

import (
	"encoding/json"
	"fmt"
)

// Home Assistant websocket message types.
const (
	haTypeAuth         = "auth"
	haTypeAuthRequired = "auth_required"
	haTypeAuthOK       = "auth_ok"
	haTypeAuthInvalid  = "auth_invalid"
	haTypeEvent        = "event"
)

// haIntentRequest runs the assist pipeline for recognised speech,
// constrained to the intent stage.
type haIntentRequest struct {
	ID         uint64        `json:"id"`
	Type       string        `json:"type"`
	StartStage string        `json:"start_stage"`
	EndStage   string        `json:"end_stage"`
	Input      haIntentInput `json:"input"`
}

type haIntentInput struct {
	Text string `json:"text"`
}

type haAuthRequest struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token"`
}

// haInboundProbe extracts the type discriminator from a server frame.
type haInboundProbe struct {
	Type string `json:"type"`
}

// haEventMessage is the pipeline event frame. Only intent_end events
// carry an intent_output; frames without one are progress notifications
// and must not consume the pending request.
type haEventMessage struct {
	ID    uint64 `json:"id"`
	Event struct {
		Data struct {
			IntentOutput *struct {
				Response struct {
					ResponseType string `json:"response_type"`
					Speech       struct {
						Plain struct {
							Speech string `json:"speech"`
						} `json:"plain"`
					} `json:"speech"`
				} `json:"response"`
			} `json:"intent_output"`
		} `json:"data"`
	} `json:"event"`
}

// Result is a completed endpoint request: whether the intent succeeded
// and the phrase to speak back to the device.
type Result struct {
	RequestID uint64
	OK        bool
	Speech    string
}

// Inbound is a classified frame from the endpoint connection. At most
// one field is meaningful per frame.
type Inbound struct {
	AuthRequired bool
	AuthOK       bool
	AuthInvalid  bool
	Result       *Result
}

// Protocol translates between the bridge and a specific endpoint wire
// format.
type Protocol interface {
	// AuthRequest builds the authentication frame sent when the server
	// demands auth.
	AuthRequest(token string) ([]byte, error)

	// TranslateRequest builds the wire frame for an intent request.
	TranslateRequest(id uint64, text string) ([]byte, error)

	// TranslateResponse classifies a server frame. Frames the bridge
	// should ignore return a zero Inbound.
	TranslateResponse(raw []byte) (Inbound, error)
}

// NewProtocol returns the protocol implementation for the given endpoint
// kind. Kinds without an implementation return ErrUnsupportedEndpoint.
func NewProtocol(kind string) (Protocol, error) {
	switch kind {
	case KindHomeAssistant:
		return homeAssistantProtocol{}, nil
	case KindOpenHAB, KindMQTT, KindREST:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEndpoint, kind)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEndpoint, kind)
	}
}

// homeAssistantProtocol speaks the Home Assistant websocket API: token
// auth handshake followed by assist_pipeline/run intent requests.
type homeAssistantProtocol struct{}

func (homeAssistantProtocol) AuthRequest(token string) ([]byte, error) {
	return json.Marshal(haAuthRequest{Type: haTypeAuth, AccessToken: token})
}

func (homeAssistantProtocol) TranslateRequest(id uint64, text string) ([]byte, error) {
	return json.Marshal(haIntentRequest{
		ID:         id,
		Type:       "assist_pipeline/run",
		StartStage: "intent",
		EndStage:   "intent",
		Input:      haIntentInput{Text: text},
	})
}

func (homeAssistantProtocol) TranslateResponse(raw []byte) (Inbound, error) {
	var probe haInboundProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Inbound{}, fmt.Errorf("endpoint: decoding frame: %w", err)
	}

	switch probe.Type {
	case haTypeAuthRequired:
		return Inbound{AuthRequired: true}, nil
	case haTypeAuthOK:
		return Inbound{AuthOK: true}, nil
	case haTypeAuthInvalid:
		return Inbound{AuthInvalid: true}, nil
	case haTypeEvent:
		var event haEventMessage
		if err := json.Unmarshal(raw, &event); err != nil {
			return Inbound{}, fmt.Errorf("endpoint: decoding event: %w", err)
		}
		// Progress events carry no intent output and are ignored so the
		// pending request stays live until the pipeline completes.
		if event.Event.Data.IntentOutput == nil {
			return Inbound{}, nil
		}
		response := event.Event.Data.IntentOutput.Response
		return Inbound{Result: &Result{
			RequestID: event.ID,
			OK:        response.ResponseType == "action_done",
			Speech:    response.Speech.Plain.Speech,
		}}, nil
	default:
		// result acks and other frame types are not interesting here
		return Inbound{}, nil
	}
}
