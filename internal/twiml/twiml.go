// Package twiml builds call-control markup for the telephony provider and
// validates its webhook signatures.
package twiml

import (
	"encoding/xml"
	"fmt"
)

// Response is the root call-control document.
type Response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

// Say speaks a message to the caller.
type Say struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

// Connect opens a bidirectional media stream.
type Connect struct {
	XMLName xml.Name `xml:"Connect"`
	Stream  Stream   `xml:"Stream"`
}

// Stream names the websocket target the provider dials.
type Stream struct {
	XMLName    xml.Name    `xml:"Stream"`
	URL        string      `xml:"url,attr"`
	Parameters []Parameter `xml:"Parameter,omitempty"`
}

// Parameter is forwarded by the provider inside the stream-start event.
type Parameter struct {
	XMLName xml.Name `xml:"Parameter"`
	Name    string   `xml:"name,attr"`
	Value   string   `xml:"value,attr"`
}

// Hangup ends the call.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// StreamCallParams describes a successful call setup: optional greeting,
// stream target, and the farewell spoken after the stream closes.
type StreamCallParams struct {
	Greeting  string
	StreamURL string
	Farewell  string
	Params    []Parameter
}

// StreamCall renders markup that greets the caller, opens the stream, and
// speaks a farewell once the stream ends.
func StreamCall(p StreamCallParams) (string, error) {
	var verbs []any
	if p.Greeting != "" {
		verbs = append(verbs, Say{Text: p.Greeting})
	}
	verbs = append(verbs, Connect{Stream: Stream{URL: p.StreamURL, Parameters: p.Params}})
	if p.Farewell != "" {
		verbs = append(verbs, Say{Text: p.Farewell})
	}
	verbs = append(verbs, Hangup{})
	return render(verbs)
}

// Decline renders fallback markup: a spoken message and hangup, no stream.
// Used when the tenant has no usable voice configuration or the bridge
// cannot serve the call. Callers never get silence.
func Decline(message string) (string, error) {
	if message == "" {
		message = "We are sorry, this line is currently unavailable. Please try again later."
	}
	return render([]any{Say{Text: message}, Hangup{}})
}

func render(verbs []any) (string, error) {
	body, err := xml.Marshal(Response{Verbs: verbs})
	if err != nil {
		return "", fmt.Errorf("render markup: %w", err)
	}
	return xml.Header + string(body), nil
}
