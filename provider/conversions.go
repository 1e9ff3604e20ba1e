package provider

import (
	"datachat/model"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"
)

// PipelineResultPrefix marks a replayed pipeline record inside a user message.
const PipelineResultPrefix = "Pipeline result:\n"

// promptMessage maps a conversation message onto the role/content pair every
// provider accepts. Pipeline records go back to the model as user messages.
func promptMessage(msg model.Message) (string, string) {
	switch msg.Role {
	case model.RoleSystem, model.RoleUser, model.RoleAssistant:
		return string(msg.Role), msg.HistoryText()
	case model.RolePipeline:
		return string(model.RoleUser), PipelineResultPrefix + msg.HistoryText()
	default:
		return string(model.RoleUser), msg.HistoryText()
	}
}

// ConvertToOllamaMessages converts datachat messages to Ollama api.Message.
//
// Timestamps and display text are not sent; the model only ever sees the
// history text.
func ConvertToOllamaMessages(messages []model.Message) []api.Message {
	result := make([]api.Message, len(messages))
	for i, msg := range messages {
		role, content := promptMessage(msg)
		result[i] = api.Message{
			Role:    role,
			Content: content,
		}
	}
	return result
}

// ConvertToOpenAIMessages converts datachat messages to OpenAI format.
func ConvertToOpenAIMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, len(messages))

	for i, msg := range messages {
		role, content := promptMessage(msg)
		switch role {
		case "system":
			result[i] = openai.SystemMessage(content)
		case "assistant":
			result[i] = openai.AssistantMessage(content)
		default:
			result[i] = openai.UserMessage(content)
		}
	}

	return result
}

// convertToAnthropicMessages converts datachat messages to Anthropic format.
// Returns the message array and any system prompt found, since Anthropic
// takes the system prompt as a separate parameter.
func convertToAnthropicMessages(messages []model.Message) ([]anthropic.MessageParam, []anthropic.TextBlockParam) {
	var systemBlocks []anthropic.TextBlockParam
	anthropicMsgs := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		role, content := promptMessage(msg)
		switch role {
		case "system":
			systemBlocks = append(systemBlocks, anthropic.TextBlockParam{
				Text: content,
			})
		case "assistant":
			anthropicMsgs = append(anthropicMsgs,
				anthropic.NewAssistantMessage(anthropic.NewTextBlock(content)),
			)
		default:
			anthropicMsgs = append(anthropicMsgs,
				anthropic.NewUserMessage(anthropic.NewTextBlock(content)),
			)
		}
	}

	return anthropicMsgs, systemBlocks
}
