package voice

import "testing"

func TestResolveVoiceKnown(t *testing.T) {
	if got := ResolveVoice("adam"); got != "pNInz6obpgDQGcFmaJgB" {
		t.Fatalf("ResolveVoice(adam) = %q", got)
	}
}

func TestResolveVoiceFallsBackToDefault(t *testing.T) {
	want := ResolveVoice(DefaultVoiceKey)
	if got := ResolveVoice("nonexistent"); got != want {
		t.Fatalf("ResolveVoice(nonexistent) = %q, want %q", got, want)
	}
	if got := ResolveVoice(""); got != want {
		t.Fatalf("ResolveVoice(\"\") = %q, want %q", got, want)
	}
}

func TestVoiceKeysSorted(t *testing.T) {
	keys := VoiceKeys()
	if len(keys) != 5 {
		t.Fatalf("len(keys) = %d, want 5", len(keys))
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] >= keys[i] {
			t.Fatalf("keys not sorted: %v", keys)
		}
	}
	if !KnownVoice("rachel") {
		t.Fatal("KnownVoice(rachel) = false")
	}
}
