package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseRealtimeAudioDelta(t *testing.T) {
	raw := []byte(`{"type": "response.audio.delta", "item_id": "item_1", "delta": "cGNt"}`)
	msg, err := ParseRealtimeMessage(raw)
	if err != nil {
		t.Fatalf("ParseRealtimeMessage() error = %v", err)
	}
	if msg.Event != RealtimeAudioDelta {
		t.Fatalf("Event = %q, want %q", msg.Event, RealtimeAudioDelta)
	}
	if msg.AudioBase64 != "cGNt" {
		t.Fatalf("AudioBase64 = %q, want cGNt", msg.AudioBase64)
	}
}

func TestParseRealtimeError(t *testing.T) {
	raw := []byte(`{"type": "error", "error": {"code": "session_expired", "message": "session too long"}}`)
	msg, err := ParseRealtimeMessage(raw)
	if err != nil {
		t.Fatalf("ParseRealtimeMessage() error = %v", err)
	}
	if msg.ErrorCode != "session_expired" {
		t.Fatalf("ErrorCode = %q, want session_expired", msg.ErrorCode)
	}
}

func TestParseRealtimeControlEvents(t *testing.T) {
	for _, ev := range []RealtimeEvent{
		RealtimeSessionCreated, RealtimeSessionUpdated,
		RealtimeSpeechStarted, RealtimeSpeechStopped,
		RealtimeAudioDone, RealtimeResponseDone,
	} {
		raw := []byte(`{"type": "` + string(ev) + `"}`)
		msg, err := ParseRealtimeMessage(raw)
		if err != nil {
			t.Fatalf("ParseRealtimeMessage(%s) error = %v", ev, err)
		}
		if msg.Event != ev {
			t.Fatalf("Event = %q, want %q", msg.Event, ev)
		}
	}
}

func TestParseRealtimeUnsupported(t *testing.T) {
	_, err := ParseRealtimeMessage([]byte(`{"type": "rate_limits.updated"}`))
	if !errors.Is(err, ErrUnsupportedRealtimeEvent) {
		t.Fatalf("error = %v, want ErrUnsupportedRealtimeEvent", err)
	}
}

func TestSessionUpdateShape(t *testing.T) {
	update := SessionUpdate(SessionUpdateParams{
		Instructions: "You answer phones for Acme.",
		Voice:        "verse",
		Functions: []FunctionDecl{
			{Name: "book_appointment", Description: "Books a slot", Parameters: json.RawMessage(`{"type":"object"}`)},
		},
	})
	raw, err := json.Marshal(update)
	if err != nil {
		t.Fatalf("marshal session.update: %v", err)
	}
	var decoded struct {
		Type    string `json:"type"`
		Session struct {
			Instructions      string           `json:"instructions"`
			Voice             string           `json:"voice"`
			InputAudioFormat  string           `json:"input_audio_format"`
			OutputAudioFormat string           `json:"output_audio_format"`
			Tools             []map[string]any `json:"tools"`
			TurnDetection     map[string]any   `json:"turn_detection"`
		} `json:"session"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal session.update: %v", err)
	}
	if decoded.Type != "session.update" {
		t.Fatalf("type = %q, want session.update", decoded.Type)
	}
	if decoded.Session.InputAudioFormat != "pcm16" || decoded.Session.OutputAudioFormat != "pcm16" {
		t.Fatalf("audio formats = %q/%q, want pcm16/pcm16",
			decoded.Session.InputAudioFormat, decoded.Session.OutputAudioFormat)
	}
	if len(decoded.Session.Tools) != 1 || decoded.Session.Tools[0]["name"] != "book_appointment" {
		t.Fatalf("unexpected tools: %v", decoded.Session.Tools)
	}
	if decoded.Session.TurnDetection["type"] != "server_vad" {
		t.Fatalf("turn_detection type = %v, want server_vad", decoded.Session.TurnDetection["type"])
	}
}
