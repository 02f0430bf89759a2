// Package bridge pumps audio frames and control events between a
// telephony media stream and the upstream speech-to-speech endpoint,
// transcoding between mu-law 8 kHz and PCM16 24 kHz in both directions.
package bridge

import (
	"context"
	"encoding/base64"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ardelane/voicebridge/internal/audio"
	"github.com/ardelane/voicebridge/internal/calllog"
	"github.com/ardelane/voicebridge/internal/observability"
	"github.com/ardelane/voicebridge/internal/protocol"
	"github.com/ardelane/voicebridge/internal/reliability"
	"github.com/ardelane/voicebridge/internal/session"
)

const (
	writeTimeout = 10 * time.Second
	flushMark    = "drain"
)

// Bridge runs the per-call relay between the two sockets.
type Bridge struct {
	registry      *session.Registry
	dialer        UpstreamDialer
	metrics       *observability.Metrics
	callLog       calllog.Store
	idleTimeout   time.Duration
	failureLimit  int
	failureWindow time.Duration
}

func New(registry *session.Registry, dialer UpstreamDialer, metrics *observability.Metrics, callLog calllog.Store, idleTimeout time.Duration, failureLimit int, failureWindow time.Duration) *Bridge {
	if idleTimeout <= 0 {
		idleTimeout = 2 * time.Minute
	}
	return &Bridge{
		registry:      registry,
		dialer:        dialer,
		metrics:       metrics,
		callLog:       callLog,
		idleTimeout:   idleTimeout,
		failureLimit:  failureLimit,
		failureWindow: failureWindow,
	}
}

// run owns all mutable per-call relay state. Only the two pump goroutines
// of one call touch it.
type run struct {
	b         *Bridge
	s         *session.Session
	telephony *websocket.Conn
	upstream  *websocket.Conn

	telephonyWriteMu sync.Mutex
	upstreamWriteMu  sync.Mutex

	failures *reliability.FailureWindow

	closeOnce sync.Once
	done      chan struct{}
}

// Run drives one call from socket accept to teardown. It blocks until the
// session is closed and removed from the registry.
func (b *Bridge) Run(ctx context.Context, telephonyConn *websocket.Conn, s *session.Session) {
	r := &run{
		b:         b,
		s:         s,
		telephony: telephonyConn,
		failures:  reliability.NewFailureWindow(b.failureLimit, b.failureWindow),
		done:      make(chan struct{}),
	}
	s.SetTelephonyConn(telephonyConn)
	defer r.teardown("telephony_closed")

	accepted := time.Now()
	telephonyConn.SetReadLimit(1 << 20)

	// Await the provider's stream-start control event. No audio is
	// forwarded upstream before it arrives.
	start, ok := r.awaitStart()
	if !ok {
		return
	}
	s.SetStreamSID(start.StreamSID)
	if start.CallSID != s.CallSID {
		log.Printf("session %s: start event call sid %s does not match %s", s.ID, start.CallSID, s.CallSID)
		r.teardown("protocol_violation")
		return
	}

	upstream, err := b.dialer.Dial(ctx, s)
	if err != nil {
		log.Printf("session %s: upstream dial failed: %v", s.ID, err)
		b.metrics.SessionEvents.WithLabelValues("upstream_dial_failed").Inc()
		r.teardown("upstream_unreachable")
		return
	}
	r.upstream = upstream
	s.SetUpstreamConn(upstream)

	if err := r.writeUpstream(protocol.SessionUpdate(protocol.SessionUpdateParams{
		Instructions: s.Config.Instructions,
		Voice:        s.Config.Voice,
		Functions:    s.Config.Functions,
	})); err != nil {
		log.Printf("session %s: session configuration failed: %v", s.ID, err)
		r.teardown("upstream_unreachable")
		return
	}

	if !s.Transition(session.StateStreaming) {
		r.teardown("protocol_violation")
		return
	}
	b.metrics.ObserveBridgeSetup(time.Since(accepted))
	b.metrics.SessionEvents.WithLabelValues("streaming").Inc()
	log.Printf("session %s: streaming call %s for tenant %s", s.ID, s.CallSID, s.TenantID)

	go r.upstreamPump()
	r.telephonyPump()
	<-r.done
}

// awaitStart consumes frames until the stream-start event. Pre-start media
// is a protocol violation; connected events are expected noise.
func (r *run) awaitStart() (*protocol.StreamStart, bool) {
	for {
		_ = r.telephony.SetReadDeadline(time.Now().Add(r.b.idleTimeout))
		_, data, err := r.telephony.ReadMessage()
		if err != nil {
			return nil, false
		}
		msg, err := protocol.ParseTelephonyMessage(data)
		if err != nil {
			log.Printf("session %s: bad pre-start frame: %v", r.s.ID, err)
			continue
		}
		switch msg.Event {
		case protocol.TelephonyConnected:
			continue
		case protocol.TelephonyStart:
			return msg.Start, true
		case protocol.TelephonyStop:
			r.teardown("caller_hangup")
			return nil, false
		default:
			log.Printf("session %s: %s event before start", r.s.ID, msg.Event)
			r.teardown("protocol_violation")
			return nil, false
		}
	}
}

// telephonyPump forwards caller audio upstream until the telephony leg
// ends. Frames are relayed in strict receipt order.
func (r *run) telephonyPump() {
	for {
		_ = r.telephony.SetReadDeadline(time.Now().Add(r.b.idleTimeout))
		_, data, err := r.telephony.ReadMessage()
		if err != nil {
			r.teardown("telephony_closed")
			return
		}
		r.s.Touch()
		r.b.metrics.WSMessages.WithLabelValues("telephony", "inbound").Inc()

		msg, err := protocol.ParseTelephonyMessage(data)
		if err != nil {
			if r.recordFrameFailure("telephony", err) {
				return
			}
			continue
		}

		switch msg.Event {
		case protocol.TelephonyMedia:
			mulaw, err := base64.StdEncoding.DecodeString(msg.Media.Payload)
			if err != nil || len(mulaw) == 0 {
				if r.recordFrameFailure("telephony", err) {
					return
				}
				continue
			}
			samples := audio.Upsample8to24(audio.DecodeMulaw(mulaw))
			payload := base64.StdEncoding.EncodeToString(audio.PCM16LEBytes(samples))
			if err := r.writeUpstream(protocol.AudioAppend(payload)); err != nil {
				r.teardown("upstream_closed")
				return
			}
			r.b.metrics.WSMessages.WithLabelValues("upstream", "outbound").Inc()
		case protocol.TelephonyStop:
			r.teardown("caller_hangup")
			return
		case protocol.TelephonyDTMF:
			log.Printf("session %s: dtmf digit %q", r.s.ID, msg.DTMF.Digit)
			r.b.metrics.SessionEvents.WithLabelValues("dtmf").Inc()
		case protocol.TelephonyMark, protocol.TelephonyConnected:
			// playback sync / keepalive noise
		case protocol.TelephonyStart:
			log.Printf("session %s: duplicate start event", r.s.ID)
			r.teardown("protocol_violation")
			return
		}
	}
}

// upstreamPump forwards model audio and turn events downstream until the
// upstream leg ends.
func (r *run) upstreamPump() {
	for {
		_, data, err := r.upstream.ReadMessage()
		if err != nil {
			r.teardown("upstream_closed")
			return
		}
		r.b.metrics.WSMessages.WithLabelValues("upstream", "inbound").Inc()

		msg, err := protocol.ParseRealtimeMessage(data)
		if err != nil {
			// Unknown upstream event kinds are expected across API
			// revisions; relay only what we understand.
			continue
		}

		switch msg.Event {
		case protocol.RealtimeAudioDelta:
			pcm, err := base64.StdEncoding.DecodeString(msg.AudioBase64)
			if err != nil || len(pcm) < 2 {
				if r.recordFrameFailure("upstream", err) {
					return
				}
				continue
			}
			mulaw := audio.EncodeMulaw(audio.Downsample24to8(audio.SamplesFromPCM16LE(pcm)))
			payload := base64.StdEncoding.EncodeToString(mulaw)
			if err := r.writeTelephony(protocol.OutboundMedia(r.s.StreamSID(), payload)); err != nil {
				r.teardown("telephony_closed")
				return
			}
			r.b.metrics.WSMessages.WithLabelValues("telephony", "outbound").Inc()
		case protocol.RealtimeSpeechStarted:
			// Barge-in: drop queued playback so the caller is not
			// talked over.
			if err := r.writeTelephony(protocol.OutboundClear(r.s.StreamSID())); err != nil {
				r.teardown("telephony_closed")
				return
			}
			r.b.metrics.SessionEvents.WithLabelValues("barge_in").Inc()
		case protocol.RealtimeError:
			log.Printf("session %s: upstream error %s: %s", r.s.ID, msg.ErrorCode, msg.ErrorMessage)
			r.b.metrics.UpstreamErrors.WithLabelValues(msg.ErrorCode).Inc()
			if reliability.IsFatalRealtimeError(msg.ErrorCode) {
				r.teardown("upstream_error")
				return
			}
		case protocol.RealtimeSpeechStopped, protocol.RealtimeAudioDone,
			protocol.RealtimeResponseDone, protocol.RealtimeSessionCreated,
			protocol.RealtimeSessionUpdated:
			// turn bookkeeping; nothing to relay
		}
	}
}

// recordFrameFailure counts one malformed frame. A single bad frame is
// dropped and logged; repeated failures inside the window end the session.
func (r *run) recordFrameFailure(leg string, err error) bool {
	r.b.metrics.TranscodeErrors.Inc()
	log.Printf("session %s: dropped malformed %s frame: %v", r.s.ID, leg, err)
	if r.failures.Record() {
		log.Printf("session %s: malformed %s frame limit reached", r.s.ID, leg)
		r.teardown("transcode_failures")
		return true
	}
	return false
}

func (r *run) writeUpstream(v any) error {
	r.upstreamWriteMu.Lock()
	defer r.upstreamWriteMu.Unlock()
	_ = r.upstream.SetWriteDeadline(time.Now().Add(writeTimeout))
	return r.upstream.WriteJSON(v)
}

func (r *run) writeTelephony(v any) error {
	r.telephonyWriteMu.Lock()
	defer r.telephonyWriteMu.Unlock()
	_ = r.telephony.SetWriteDeadline(time.Now().Add(writeTimeout))
	return r.telephony.WriteJSON(v)
}

// teardown flushes buffered playback, closes both sockets, and removes the
// session from the registry. Idempotent; the first caller's reason wins.
func (r *run) teardown(reason string) {
	r.closeOnce.Do(func() {
		r.s.Transition(session.StateClosing)

		// Ask the provider to drain queued audio before the socket
		// goes away. Best effort.
		if sid := r.s.StreamSID(); sid != "" {
			_ = r.writeTelephony(protocol.OutboundMark(sid, flushMark))
		}

		r.s.CloseConns()
		r.b.registry.Remove(r.s.CallSID)
		r.b.metrics.ActiveSessions.Set(float64(r.b.registry.ActiveCount()))
		r.b.metrics.SessionEvents.WithLabelValues("closed_" + reason).Inc()
		log.Printf("session %s: closed (%s)", r.s.ID, reason)

		if r.b.callLog != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := r.b.callLog.Record(ctx, calllog.CallRecord{
				CallSID:      r.s.CallSID,
				TenantID:     r.s.TenantID,
				CallerNumber: r.s.Config.CallerNumber,
				StartedAt:    r.s.CreatedAt,
				EndedAt:      time.Now().UTC(),
				EndReason:    reason,
			}); err != nil {
				log.Printf("session %s: call record write failed: %v", r.s.ID, err)
			}
		}

		close(r.done)
	})
}
