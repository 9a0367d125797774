package network

import (
	"encoding/json"
	"testing"
)

func TestEncode(t *testing.T) {
	data, err := Encode(MsgError, map[string]string{"message": "room is full"})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Encoded envelope should be valid JSON: %v", err)
	}
	if msg.Type != MsgError {
		t.Errorf("Expected type %s, got %s", MsgError, msg.Type)
	}

	var payload map[string]string
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("Payload should round-trip: %v", err)
	}
	if payload["message"] != "room is full" {
		t.Errorf("Unexpected payload: %v", payload)
	}
}

func TestEncode_NilPayload(t *testing.T) {
	data, err := Encode(MsgRequestRooms, nil)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if string(data) != `{"type":"request-rooms"}` {
		t.Errorf("Nil payload should be omitted, got %s", string(data))
	}
}
