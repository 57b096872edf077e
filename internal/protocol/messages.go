package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeTranscript MessageType = "transcript"
	TypeResponse   MessageType = "response"
	TypeAudio      MessageType = "audio"
	TypeAudioEnd   MessageType = "audio_end"
	TypeStatus     MessageType = "status"
	TypeError      MessageType = "error"
	TypePing       MessageType = "ping"
	TypeConfig     MessageType = "config"
)

// Pipeline status values carried by Status events.
const (
	StatusListening = "listening"
	StatusThinking  = "thinking"
	StatusSpeaking  = "speaking"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// Transcript is a live STT result forwarded to the client. IsFinal marks
// a stabilized transcript segment, not necessarily end of speech.
type Transcript struct {
	Type    MessageType `json:"type"`
	Text    string      `json:"text"`
	IsFinal bool        `json:"is_final"`
}

// Response carries one assistant utterance.
type Response struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

// Audio carries a full synthesized utterance as base64 PCM.
type Audio struct {
	Type MessageType `json:"type"`
	Data string      `json:"data"`
}

type AudioEnd struct {
	Type MessageType `json:"type"`
}

type Status struct {
	Type   MessageType `json:"type"`
	Status string      `json:"status"`
}

type Error struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

type Ping struct {
	Type MessageType `json:"type"`
}

// Config is the only recognized inbound text message: a voice change
// request applied on the next synthesis call.
type Config struct {
	Type  MessageType `json:"type"`
	Voice string      `json:"voice"`
}

// AudioFrame wraps an inbound binary frame of raw PCM. It never crosses
// the wire as JSON; the gateway wraps binary websocket messages in it so
// the pipeline consumes one inbound channel.
type AudioFrame struct {
	PCM []byte
}

func NewTranscript(text string, isFinal bool) Transcript {
	return Transcript{Type: TypeTranscript, Text: text, IsFinal: isFinal}
}

func NewResponse(text string) Response {
	return Response{Type: TypeResponse, Text: text}
}

func NewAudio(data string) Audio {
	return Audio{Type: TypeAudio, Data: data}
}

func NewAudioEnd() AudioEnd {
	return AudioEnd{Type: TypeAudioEnd}
}

func NewStatus(status string) Status {
	return Status{Type: TypeStatus, Status: status}
}

func NewError(message string) Error {
	return Error{Type: TypeError, Message: message}
}

func NewPing() Ping {
	return Ping{Type: TypePing}
}

// ParseClientMessage decodes an inbound text frame. Unrecognized types
// are rejected so the gateway can report them without guessing.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeConfig:
		var msg Config
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
