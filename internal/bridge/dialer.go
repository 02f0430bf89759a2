package bridge

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"

	"github.com/ardelane/voicebridge/internal/session"
)

// UpstreamDialer opens the speech-to-speech connection for a session.
type UpstreamDialer interface {
	Dial(ctx context.Context, s *session.Session) (*websocket.Conn, error)
}

// RealtimeDialer dials the OpenAI realtime endpoint.
type RealtimeDialer struct {
	URL    string
	Model  string
	APIKey string
}

func (d *RealtimeDialer) Dial(ctx context.Context, _ *session.Session) (*websocket.Conn, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("parse realtime url: %w", err)
	}
	q := u.Query()
	if d.Model != "" {
		q.Set("model", d.Model)
	}
	u.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+d.APIKey)
	headers.Set("OpenAI-Beta", "realtime=v1")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		return nil, fmt.Errorf("dial realtime websocket: %w", err)
	}
	return conn, nil
}
