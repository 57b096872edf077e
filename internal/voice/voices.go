package voice

import "sort"

// DefaultVoiceKey is used when a requested voice is unknown.
const DefaultVoiceKey = "rachel"

// voiceIDs maps the short voice keys exposed to clients to ElevenLabs
// voice IDs.
var voiceIDs = map[string]string{
	"rachel": "21m00Tcm4TlvDq8ikWAM",
	"adam":   "pNInz6obpgDQGcFmaJgB",
	"josh":   "TxGEqnHWrfWFTfGW9XjX",
	"bella":  "EXAVITQu4vr4xnSDxMaL",
	"elli":   "MF3mGyEYCl7XYWbV9V6O",
}

// ResolveVoice returns the voice ID for key, falling back to the
// default voice when the key is unknown or empty.
func ResolveVoice(key string) string {
	if id, ok := voiceIDs[key]; ok {
		return id
	}
	return voiceIDs[DefaultVoiceKey]
}

// KnownVoice reports whether key names a configured voice.
func KnownVoice(key string) bool {
	_, ok := voiceIDs[key]
	return ok
}

// VoiceKeys lists the available voice keys in stable order.
func VoiceKeys() []string {
	keys := make([]string, 0, len(voiceIDs))
	for k := range voiceIDs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
