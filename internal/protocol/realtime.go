package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// RealtimeEvent identifies upstream speech-to-speech payload variants.
type RealtimeEvent string

const (
	RealtimeSessionCreated RealtimeEvent = "session.created"
	RealtimeSessionUpdated RealtimeEvent = "session.updated"
	RealtimeAudioDelta     RealtimeEvent = "response.audio.delta"
	RealtimeAudioDone      RealtimeEvent = "response.audio.done"
	RealtimeResponseDone   RealtimeEvent = "response.done"
	RealtimeSpeechStarted  RealtimeEvent = "input_audio_buffer.speech_started"
	RealtimeSpeechStopped  RealtimeEvent = "input_audio_buffer.speech_stopped"
	RealtimeError          RealtimeEvent = "error"
)

var ErrUnsupportedRealtimeEvent = errors.New("unsupported realtime event")

// RealtimeMessage is the decoded form of one upstream event. AudioBase64 is
// set for audio deltas; ErrorCode/ErrorMessage for error events.
type RealtimeMessage struct {
	Event        RealtimeEvent
	AudioBase64  string
	ItemID       string
	ErrorCode    string
	ErrorMessage string
}

type realtimeFrame struct {
	Type   RealtimeEvent `json:"type"`
	Delta  string        `json:"delta,omitempty"`
	ItemID string        `json:"item_id,omitempty"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ParseRealtimeMessage decodes one upstream event. Event kinds the bridge
// does not relay return ErrUnsupportedRealtimeEvent; the caller skips them.
func ParseRealtimeMessage(raw []byte) (RealtimeMessage, error) {
	var frame realtimeFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return RealtimeMessage{}, fmt.Errorf("invalid realtime frame: %w", err)
	}

	msg := RealtimeMessage{Event: frame.Type, ItemID: frame.ItemID}
	switch frame.Type {
	case RealtimeSessionCreated, RealtimeSessionUpdated,
		RealtimeAudioDone, RealtimeResponseDone,
		RealtimeSpeechStarted, RealtimeSpeechStopped:
		return msg, nil
	case RealtimeAudioDelta:
		if frame.Delta == "" {
			return RealtimeMessage{}, errors.New("audio delta missing payload")
		}
		msg.AudioBase64 = frame.Delta
		return msg, nil
	case RealtimeError:
		if frame.Error != nil {
			msg.ErrorCode = frame.Error.Code
			msg.ErrorMessage = frame.Error.Message
		}
		return msg, nil
	default:
		return RealtimeMessage{}, ErrUnsupportedRealtimeEvent
	}
}

// FunctionDecl declares one callable function exposed to the model.
type FunctionDecl struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// SessionUpdateParams configures the upstream session right after dialing.
type SessionUpdateParams struct {
	Instructions string
	Voice        string
	Functions    []FunctionDecl
}

// SessionUpdate builds the session-configuration event: instructions,
// audio formats, voice, declared functions, and server-side turn detection.
func SessionUpdate(p SessionUpdateParams) any {
	tools := make([]map[string]any, 0, len(p.Functions))
	for _, fn := range p.Functions {
		tool := map[string]any{
			"type": "function",
			"name": fn.Name,
		}
		if fn.Description != "" {
			tool["description"] = fn.Description
		}
		if len(fn.Parameters) > 0 {
			tool["parameters"] = fn.Parameters
		}
		tools = append(tools, tool)
	}

	voice := p.Voice
	if voice == "" {
		voice = "alloy"
	}

	return map[string]any{
		"type": "session.update",
		"session": map[string]any{
			"instructions":        p.Instructions,
			"voice":               voice,
			"input_audio_format":  "pcm16",
			"output_audio_format": "pcm16",
			"modalities":          []string{"text", "audio"},
			"tools":               tools,
			"turn_detection": map[string]any{
				"type":                "server_vad",
				"threshold":           0.5,
				"silence_duration_ms": 500,
			},
		},
	}
}

// AudioAppend builds an input-audio-buffer append event carrying base64
// PCM16 audio upstream.
func AudioAppend(audioBase64 string) any {
	return map[string]any{
		"type":  "input_audio_buffer.append",
		"audio": audioBase64,
	}
}
