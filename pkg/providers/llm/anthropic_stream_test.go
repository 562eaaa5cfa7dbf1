package llm

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/lokutor-ai/dialogue-orchestrator/pkg/dialogue"
)

func TestToAnthropicMessagesOrdersHistoryThenUser(t *testing.T) {
	history := []dialogue.Message{
		{Role: dialogue.RoleUser, Content: "hi"},
		{Role: dialogue.RoleAssistant, Content: "hello"},
	}
	msgs := toAnthropicMessages(history, "how are you")

	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Role != anthropic.MessageParamRoleUser {
		t.Errorf("expected first message to be user role, got %v", msgs[0].Role)
	}
	if msgs[1].Role != anthropic.MessageParamRoleAssistant {
		t.Errorf("expected second message to be assistant role, got %v", msgs[1].Role)
	}
	if msgs[2].Role != anthropic.MessageParamRoleUser {
		t.Errorf("expected trailing user message appended, got %v", msgs[2].Role)
	}
}

func TestToAnthropicMessagesOmitsEmptyUserMessage(t *testing.T) {
	msgs := toAnthropicMessages(nil, "")
	if len(msgs) != 0 {
		t.Errorf("expected no messages for empty history and empty user message, got %d", len(msgs))
	}
}

func TestNewAnthropicStreamDefaultsModel(t *testing.T) {
	p := NewAnthropicStream("key", "")
	if p.model != anthropic.ModelClaude3_5SonnetLatest {
		t.Errorf("expected default model, got %v", p.model)
	}
}
