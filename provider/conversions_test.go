package provider

import (
	"testing"
	"time"

	"datachat/model"

	"github.com/ollama/ollama/api"
)

func TestConvertToOllamaMessages(t *testing.T) {
	tests := []struct {
		name     string
		input    []model.Message
		expected []api.Message
	}{
		{
			name:     "empty slice",
			input:    []model.Message{},
			expected: []api.Message{},
		},
		{
			name: "user and assistant keep their roles",
			input: []model.Message{
				{Role: model.RoleUser, Raw: "Hello", Timestamp: time.Now()},
				{Role: model.RoleAssistant, Raw: "Hi there", Display: "ignored", Timestamp: time.Now()},
			},
			expected: []api.Message{
				{Role: "user", Content: "Hello"},
				{Role: "assistant", Content: "Hi there"},
			},
		},
		{
			name: "system prompt passes through",
			input: []model.Message{
				model.SystemMessage("be brief"),
			},
			expected: []api.Message{
				{Role: "system", Content: "be brief"},
			},
		},
		{
			name: "pipeline records become prefixed user messages",
			input: []model.Message{
				{Role: model.RolePipeline, Raw: `{"tool":"fetch_data","status":"success"}`},
			},
			expected: []api.Message{
				{Role: "user", Content: PipelineResultPrefix + `{"tool":"fetch_data","status":"success"}`},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertToOllamaMessages(tt.input)

			if len(result) != len(tt.expected) {
				t.Fatalf("length mismatch: got %d, want %d", len(result), len(tt.expected))
			}

			for i, msg := range result {
				if msg.Role != tt.expected[i].Role {
					t.Errorf("message %d role: got %q, want %q", i, msg.Role, tt.expected[i].Role)
				}
				if msg.Content != tt.expected[i].Content {
					t.Errorf("message %d content: got %q, want %q", i, msg.Content, tt.expected[i].Content)
				}
			}
		})
	}
}

func TestConvertToOpenAIMessages(t *testing.T) {
	input := []model.Message{
		model.SystemMessage("sys"),
		{Role: model.RoleUser, Raw: "q"},
		{Role: model.RoleAssistant, Raw: "a"},
		{Role: model.RolePipeline, Raw: "{}"},
	}

	result := ConvertToOpenAIMessages(input)
	if len(result) != len(input) {
		t.Fatalf("length mismatch: got %d, want %d", len(result), len(input))
	}

	if result[0].OfSystem == nil {
		t.Error("message 0: expected system message")
	}
	if result[1].OfUser == nil {
		t.Error("message 1: expected user message")
	}
	if result[2].OfAssistant == nil {
		t.Error("message 2: expected assistant message")
	}
	if result[3].OfUser == nil {
		t.Error("message 3: expected pipeline record as user message")
	}
}

func TestConvertToAnthropicMessagesSplitsSystem(t *testing.T) {
	input := []model.Message{
		model.SystemMessage("sys"),
		{Role: model.RoleUser, Raw: "q"},
		{Role: model.RoleAssistant, Raw: "a"},
		{Role: model.RolePipeline, Raw: "{}"},
	}

	msgs, system := convertToAnthropicMessages(input)
	if len(system) != 1 || system[0].Text != "sys" {
		t.Fatalf("system blocks = %+v, want one block with %q", system, "sys")
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	if msgs[1].Role != "assistant" {
		t.Errorf("message 1 role = %q, want assistant", msgs[1].Role)
	}
	if msgs[2].Role != "user" {
		t.Errorf("message 2 role = %q, want user", msgs[2].Role)
	}
}
