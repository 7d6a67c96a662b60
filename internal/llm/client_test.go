package llm

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestNewMessage(t *testing.T) {
	m := NewMessage(RoleUser, "hello")
	if m.Role != "user" || m.Content != "hello" {
		t.Errorf("message = %+v", m)
	}
	if m.ID == "" || m.Timestamp.IsZero() {
		t.Error("message missing id or timestamp")
	}

	other := NewMessage(RoleUser, "hello")
	if other.ID == m.ID {
		t.Error("two messages share an id")
	}
}

func TestToWire(t *testing.T) {
	messages := []Message{
		NewMessage(RoleSystem, "persona"),
		NewMessage(RoleAssistant, "reply"),
	}

	wire := toWire(messages)

	want := []wireMessage{
		{Role: "system", Content: "persona"},
		{Role: "assistant", Content: "reply"},
	}
	if !reflect.DeepEqual(wire, want) {
		t.Errorf("toWire = %+v, want %+v", wire, want)
	}

	// The wire form must not leak ids or timestamps to the backend.
	data, err := json.Marshal(wire[0])
	if err != nil {
		t.Fatal(err)
	}
	var asMap map[string]any
	if err := json.Unmarshal(data, &asMap); err != nil {
		t.Fatal(err)
	}
	if len(asMap) != 2 {
		t.Errorf("wire message fields = %v, want role and content only", asMap)
	}
}

func TestResponseJSONFields(t *testing.T) {
	resp := newResponse("text", "model-x", map[string]any{"eval_count": 1})

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}
	var asMap map[string]any
	if err := json.Unmarshal(data, &asMap); err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{"content", "model_id", "id", "timestamp", "metadata"} {
		if _, ok := asMap[field]; !ok {
			t.Errorf("serialized response missing %q: %v", field, asMap)
		}
	}
}
