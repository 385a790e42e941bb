package endpoint

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNewProtocolKinds(t *testing.T) {
	if _, err := NewProtocol(KindHomeAssistant); err != nil {
		t.Errorf("home assistant: %v", err)
	}
	for _, kind := range []string{KindOpenHAB, KindMQTT, KindREST, "bogus"} {
		if _, err := NewProtocol(kind); !errors.Is(err, ErrUnsupportedEndpoint) {
			t.Errorf("kind %q: err = %v, want ErrUnsupportedEndpoint", kind, err)
		}
	}
}

func TestTranslateRequest(t *testing.T) {
	proto := homeAssistantProtocol{}
	raw, err := proto.TranslateRequest(7, "turn on the lights")
	if err != nil {
		t.Fatalf("TranslateRequest: %v", err)
	}

	var msg map[string]any
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg["id"] != float64(7) {
		t.Errorf("id = %v", msg["id"])
	}
	if msg["type"] != "assist_pipeline/run" {
		t.Errorf("type = %v", msg["type"])
	}
	if msg["start_stage"] != "intent" || msg["end_stage"] != "intent" {
		t.Errorf("stages = %v/%v", msg["start_stage"], msg["end_stage"])
	}
	input, _ := msg["input"].(map[string]any) //nolint:errcheck // checked below
	if input["text"] != "turn on the lights" {
		t.Errorf("input = %v", msg["input"])
	}
}

func TestTranslateResponseAuthFlow(t *testing.T) {
	proto := homeAssistantProtocol{}

	in, err := proto.TranslateResponse([]byte(`{"type":"auth_required","ha_version":"2024.1.0"}`))
	if err != nil || !in.AuthRequired {
		t.Errorf("auth_required: %+v, %v", in, err)
	}
	in, err = proto.TranslateResponse([]byte(`{"type":"auth_ok","ha_version":"2024.1.0"}`))
	if err != nil || !in.AuthOK {
		t.Errorf("auth_ok: %+v, %v", in, err)
	}
	in, err = proto.TranslateResponse([]byte(`{"type":"auth_invalid","message":"bad token"}`))
	if err != nil || !in.AuthInvalid {
		t.Errorf("auth_invalid: %+v, %v", in, err)
	}
}

func TestTranslateResponseIntentResult(t *testing.T) {
	proto := homeAssistantProtocol{}
	raw := []byte(`{
		"id": 3,
		"type": "event",
		"event": {
			"type": "intent-end",
			"data": {
				"intent_output": {
					"response": {
						"response_type": "action_done",
						"speech": {"plain": {"speech": "Turned on the lights"}}
					}
				}
			}
		}
	}`)

	in, err := proto.TranslateResponse(raw)
	if err != nil {
		t.Fatalf("TranslateResponse: %v", err)
	}
	if in.Result == nil {
		t.Fatal("expected result")
	}
	if in.Result.RequestID != 3 {
		t.Errorf("request id = %d", in.Result.RequestID)
	}
	if !in.Result.OK {
		t.Error("expected ok result")
	}
	if in.Result.Speech != "Turned on the lights" {
		t.Errorf("speech = %q", in.Result.Speech)
	}
}

func TestTranslateResponseErrorResult(t *testing.T) {
	proto := homeAssistantProtocol{}
	raw := []byte(`{
		"id": 4,
		"type": "event",
		"event": {
			"data": {
				"intent_output": {
					"response": {
						"response_type": "error",
						"speech": {"plain": {"speech": "Sorry, I couldn't understand that"}}
					}
				}
			}
		}
	}`)

	in, err := proto.TranslateResponse(raw)
	if err != nil {
		t.Fatalf("TranslateResponse: %v", err)
	}
	if in.Result == nil {
		t.Fatal("expected result")
	}
	if in.Result.OK {
		t.Error("error response must not be ok")
	}
}

func TestTranslateResponseProgressEventIgnored(t *testing.T) {
	proto := homeAssistantProtocol{}
	// run-start events carry no intent_output and must not resolve the
	// pending request.
	raw := []byte(`{"id":3,"type":"event","event":{"type":"run-start","data":{}}}`)

	in, err := proto.TranslateResponse(raw)
	if err != nil {
		t.Fatalf("TranslateResponse: %v", err)
	}
	if in.Result != nil {
		t.Error("progress event produced a result")
	}
}

func TestTranslateResponseIgnoresAcks(t *testing.T) {
	proto := homeAssistantProtocol{}
	in, err := proto.TranslateResponse([]byte(`{"id":3,"type":"result","success":true,"result":null}`))
	if err != nil {
		t.Fatalf("TranslateResponse: %v", err)
	}
	if in != (Inbound{}) {
		t.Errorf("ack frame classified as %+v", in)
	}
}
