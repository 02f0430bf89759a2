package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// TelephonyEvent identifies media-stream payload variants from the
// telephony provider.
type TelephonyEvent string

const (
	TelephonyConnected TelephonyEvent = "connected"
	TelephonyStart     TelephonyEvent = "start"
	TelephonyMedia     TelephonyEvent = "media"
	TelephonyStop      TelephonyEvent = "stop"
	TelephonyDTMF      TelephonyEvent = "dtmf"
	TelephonyMark      TelephonyEvent = "mark"
)

var ErrUnsupportedTelephonyEvent = errors.New("unsupported telephony event")

type telephonyEnvelope struct {
	Event TelephonyEvent `json:"event"`
}

// StreamStart carries the provider's stream-start control event.
type StreamStart struct {
	StreamSID    string            `json:"streamSid"`
	AccountSID   string            `json:"accountSid"`
	CallSID      string            `json:"callSid"`
	Tracks       []string          `json:"tracks"`
	MediaFormat  MediaFormat       `json:"mediaFormat"`
	CustomParams map[string]string `json:"customParameters"`
}

type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

// MediaPayload is one inbound audio frame. Payload is base64 mu-law.
type MediaPayload struct {
	Track     string `json:"track"`
	Chunk     string `json:"chunk"`
	Timestamp string `json:"timestamp"`
	Payload   string `json:"payload"`
}

type StreamStop struct {
	AccountSID string `json:"accountSid"`
	CallSID    string `json:"callSid"`
}

type DTMF struct {
	Digit string `json:"digit"`
}

type Mark struct {
	Name string `json:"name"`
}

// TelephonyMessage is the decoded form of one provider frame. Exactly one
// of the pointer fields matching Event is set.
type TelephonyMessage struct {
	Event     TelephonyEvent
	StreamSID string
	Start     *StreamStart
	Media     *MediaPayload
	Stop      *StreamStop
	DTMF      *DTMF
	Mark      *Mark
}

type telephonyFrame struct {
	Event     TelephonyEvent `json:"event"`
	StreamSID string         `json:"streamSid,omitempty"`
	Start     *StreamStart   `json:"start,omitempty"`
	Media     *MediaPayload  `json:"media,omitempty"`
	Stop      *StreamStop    `json:"stop,omitempty"`
	DTMF      *DTMF          `json:"dtmf,omitempty"`
	Mark      *Mark          `json:"mark,omitempty"`
}

// ParseTelephonyMessage decodes one provider frame. Unknown event kinds
// return ErrUnsupportedTelephonyEvent so the bridge can count and skip them.
func ParseTelephonyMessage(raw []byte) (TelephonyMessage, error) {
	var frame telephonyFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return TelephonyMessage{}, fmt.Errorf("invalid telephony frame: %w", err)
	}

	msg := TelephonyMessage{Event: frame.Event, StreamSID: frame.StreamSID}
	switch frame.Event {
	case TelephonyConnected:
		return msg, nil
	case TelephonyStart:
		if frame.Start == nil || frame.Start.CallSID == "" {
			return TelephonyMessage{}, errors.New("start event missing call sid")
		}
		msg.Start = frame.Start
		return msg, nil
	case TelephonyMedia:
		if frame.Media == nil || frame.Media.Payload == "" {
			return TelephonyMessage{}, errors.New("media event missing payload")
		}
		msg.Media = frame.Media
		return msg, nil
	case TelephonyStop:
		msg.Stop = frame.Stop
		return msg, nil
	case TelephonyDTMF:
		if frame.DTMF == nil {
			return TelephonyMessage{}, errors.New("dtmf event missing digit")
		}
		msg.DTMF = frame.DTMF
		return msg, nil
	case TelephonyMark:
		msg.Mark = frame.Mark
		return msg, nil
	default:
		return TelephonyMessage{}, ErrUnsupportedTelephonyEvent
	}
}

// OutboundMedia builds a media frame carrying base64 mu-law audio back to
// the provider.
func OutboundMedia(streamSID, payloadBase64 string) any {
	return map[string]any{
		"event":     "media",
		"streamSid": streamSID,
		"media":     map[string]string{"payload": payloadBase64},
	}
}

// OutboundClear tells the provider to drop buffered playback audio. Sent on
// barge-in so the caller does not hear stale speech.
func OutboundClear(streamSID string) any {
	return map[string]any{
		"event":     "clear",
		"streamSid": streamSID,
	}
}

// OutboundMark asks the provider to echo a mark once playback reaches it.
func OutboundMark(streamSID, name string) any {
	return map[string]any{
		"event":     "mark",
		"streamSid": streamSID,
		"mark":      map[string]string{"name": name},
	}
}
