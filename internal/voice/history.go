package voice

// History holds the rolling conversation window. When the number of
// turns exceeds the limit the oldest are discarded.
type History struct {
	limit int
	turns []Message
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = 20
	}
	return &History{limit: limit}
}

func (h *History) Append(role, content string) {
	h.turns = append(h.turns, Message{Role: role, Content: content})
	if len(h.turns) > h.limit {
		h.turns = h.turns[len(h.turns)-h.limit:]
	}
}

// Messages returns a copy of the current window, oldest first.
func (h *History) Messages() []Message {
	out := make([]Message, len(h.turns))
	copy(out, h.turns)
	return out
}

func (h *History) Len() int {
	return len(h.turns)
}
