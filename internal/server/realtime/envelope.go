package realtime

import "encoding/json"

const (
	EventProjectMessage = "project-message"
	EventConnectError   = "connect_error"
)

// Envelope is the frame carried in both directions.
type Envelope struct {
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// MessageData is the payload of a project-message frame. Sender is relayed
// untouched for user messages unless it claims to be the AI.
type MessageData struct {
	Message string          `json:"message"`
	Sender  json.RawMessage `json:"sender"`
}

// Sender identifies the author of a message.
type Sender struct {
	ID    string `json:"_id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// AISender is attached to every AI-authored message.
var AISender = Sender{ID: "ai", Name: "AI"}

// claimsAI reports whether a client-supplied sender carries the AI id.
// Only the server may author AI messages.
func claimsAI(raw json.RawMessage) bool {
	var s struct {
		ID any `json:"_id"`
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return false
	}
	id, ok := s.ID.(string)
	return ok && id == AISender.ID
}

// projectMessage builds an outbound project-message frame.
func projectMessage(text string, sender any) ([]byte, error) {
	s, err := json.Marshal(sender)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(MessageData{Message: text, Sender: s})
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: EventProjectMessage, Data: data})
}
