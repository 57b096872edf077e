package voice

import "context"

// AudioFormat describes the PCM stream a transcriber session consumes.
type AudioFormat struct {
	Encoding   string
	SampleRate int
	Channels   int
}

// TranscriptEvent is one STT result or stream-level error. SpeechFinal
// marks end of an utterance; IsFinal only marks a stabilized segment.
type TranscriptEvent struct {
	Text        string
	IsFinal     bool
	SpeechFinal bool

	// Err is set on stream-level failures. The event channel closes
	// after an Err event or when the upstream socket closes cleanly.
	Err error
}

// TranscriberSession is one live STT stream.
type TranscriberSession interface {
	SendAudio(ctx context.Context, pcm []byte) error
	Close() error
}

// Transcriber opens streaming speech-to-text sessions.
type Transcriber interface {
	Connect(ctx context.Context, format AudioFormat) (TranscriberSession, <-chan TranscriptEvent, error)
}

// Message is one conversation turn sent to the language model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer produces one assistant reply for a conversation.
type Completer interface {
	Complete(ctx context.Context, messages []Message, maxTokens int, temperature float64) (string, error)
}

// Synthesizer converts one utterance of text into raw PCM audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}

// ContextRetriever supplies grounding text for a customer query. An
// empty result means no knowledge base applies.
type ContextRetriever interface {
	Context(ctx context.Context, customerID, query string) (string, error)
}
