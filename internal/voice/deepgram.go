package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// DeepgramConfig carries connection parameters for the live listen API.
type DeepgramConfig struct {
	APIKey        string
	WSBaseURL     string
	Model         string
	Language      string
	EndpointingMS int
}

// DeepgramTranscriber opens streaming sessions against the Deepgram
// live listen endpoint.
type DeepgramTranscriber struct {
	cfg    DeepgramConfig
	dialer *websocket.Dialer
}

func NewDeepgramTranscriber(cfg DeepgramConfig) *DeepgramTranscriber {
	return &DeepgramTranscriber{cfg: cfg, dialer: websocket.DefaultDialer}
}

func (t *DeepgramTranscriber) Connect(ctx context.Context, format AudioFormat) (TranscriberSession, <-chan TranscriptEvent, error) {
	u, err := url.Parse(strings.TrimRight(t.cfg.WSBaseURL, "/") + "/v1/listen")
	if err != nil {
		return nil, nil, fmt.Errorf("parse deepgram url: %w", err)
	}
	q := u.Query()
	q.Set("model", t.cfg.Model)
	q.Set("language", t.cfg.Language)
	q.Set("encoding", format.Encoding)
	q.Set("sample_rate", strconv.Itoa(format.SampleRate))
	q.Set("channels", strconv.Itoa(format.Channels))
	q.Set("smart_format", "true")
	q.Set("interim_results", "true")
	q.Set("vad_events", "true")
	q.Set("endpointing", strconv.Itoa(t.cfg.EndpointingMS))
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Token "+t.cfg.APIKey)

	conn, resp, err := t.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, nil, fmt.Errorf("deepgram dial: %w (status %d)", err, resp.StatusCode)
		}
		return nil, nil, fmt.Errorf("deepgram dial: %w", err)
	}

	sess := &deepgramSession{
		conn:   conn,
		events: make(chan TranscriptEvent, 32),
	}
	go sess.readLoop()
	return sess, sess.events, nil
}

type deepgramSession struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	events    chan TranscriptEvent
}

func (s *deepgramSession) SendAudio(ctx context.Context, pcm []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
		return fmt.Errorf("deepgram send audio: %w", err)
	}
	return nil
}

func (s *deepgramSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}

// deepgramResult is the subset of the live listen response we consume.
type deepgramResult struct {
	Type        string `json:"type"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`
	Channel     struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (s *deepgramSession) readLoop() {
	defer close(s.events)
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || errors.Is(err, net.ErrClosed) {
				return
			}
			s.events <- TranscriptEvent{Err: fmt.Errorf("deepgram read: %w", err)}
			return
		}

		var res deepgramResult
		if err := json.Unmarshal(raw, &res); err != nil {
			continue
		}
		if res.Type != "Results" || len(res.Channel.Alternatives) == 0 {
			continue
		}
		s.events <- TranscriptEvent{
			Text:        res.Channel.Alternatives[0].Transcript,
			IsFinal:     res.IsFinal,
			SpeechFinal: res.SpeechFinal,
		}
	}
}
