package testutil

import (
	"time"

	"datachat/model"
)

// TestMessages returns a sample conversation for testing
func TestMessages() []model.Message {
	return []model.Message{
		{Role: model.RoleUser, Display: "Fetch sales for Q1", Raw: "Fetch sales for Q1", Timestamp: time.Now()},
		{Role: model.RoleAssistant, Display: "On it.", Raw: "On it.\n<tool_call>\nname: fetch_data\nparameters: {query: \"sales for Q1\"}\n</tool_call>", Timestamp: time.Now()},
		{Role: model.RolePipeline, Display: "Fetched 3 rows", Raw: `{"tool":"fetch_data","status":"success"}`, Status: "success", Timestamp: time.Now()},
	}
}

// SingleUserMessage returns a single user message for simple tests
func SingleUserMessage(content string) []model.Message {
	return []model.Message{
		{Role: model.RoleUser, Display: content, Raw: content, Timestamp: time.Now()},
	}
}

// EmptyMessages returns an empty message slice for edge case testing
func EmptyMessages() []model.Message {
	return []model.Message{}
}

// SystemMessage returns a system message for testing
func SystemMessage(content string) model.Message {
	msg := model.SystemMessage(content)
	msg.Timestamp = time.Now()
	return msg
}
