package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloo-solutions/signmaker/internal/domain"
	"github.com/go-playground/validator/v10"
)

const (
	MaxMessageLength = 10000
	MaxHistoryLength = 50
)

// Validation messages returned verbatim in 400 responses.
var (
	ErrInvalidRequestBody    = domain.NewDomainError(domain.ErrCodeValidation, "Invalid request body")
	ErrInvalidMessageFormat  = domain.NewDomainError(domain.ErrCodeValidation, "Invalid message format")
	ErrEmptyMessage          = domain.NewDomainError(domain.ErrCodeValidation, "Message cannot be empty")
	ErrMessageTooLong        = domain.NewDomainError(domain.ErrCodeValidation, fmt.Sprintf("Message too long (max %d characters)", MaxMessageLength))
	ErrInvalidHistoryFormat  = domain.NewDomainError(domain.ErrCodeValidation, "Invalid conversation history format")
	ErrHistoryTooLong        = domain.NewDomainError(domain.ErrCodeValidation, fmt.Sprintf("Conversation history too long (max %d messages)", MaxHistoryLength))
	ErrInvalidHistoryItem    = domain.NewDomainError(domain.ErrCodeValidation, "Invalid conversation history item")
	ErrInvalidHistoryRole    = domain.NewDomainError(domain.ErrCodeValidation, "Invalid message role in history")
	ErrInvalidHistoryContent = domain.NewDomainError(domain.ErrCodeValidation, "Invalid or too-long content in history")
)

// Constraint rules, checked with the validator after type checks.
const (
	messageRule = "required,max=10000"
	historyRule = "max=50"
	roleRule    = "oneof=user assistant"
	contentRule = "max=10000"
)

// HistoryMessage is one prior conversation turn.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatInput is a validated chat request. Message is already trimmed.
type ChatInput struct {
	Message             string           `json:"message"`
	ConversationHistory []HistoryMessage `json:"conversationHistory"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParseChatRequest decodes and validates a raw request body. Checks run in
// a fixed order and the first failure is reported. The validator counts
// string length in code points.
func ParseChatRequest(body []byte) (*ChatInput, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return nil, ErrInvalidRequestBody
	}

	var message string
	if !isJSONString(fields["message"]) || json.Unmarshal(fields["message"], &message) != nil {
		return nil, ErrInvalidMessageFormat
	}
	message = strings.TrimSpace(message)
	if err := validate.Var(message, messageRule); err != nil {
		if tagOf(err) == "required" {
			return nil, ErrEmptyMessage
		}
		return nil, ErrMessageTooLong
	}

	input := &ChatInput{Message: message, ConversationHistory: []HistoryMessage{}}

	raw, ok := fields["conversationHistory"]
	if !ok || isJSONNull(raw) {
		return input, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || !isJSONArray(raw) {
		return nil, ErrInvalidHistoryFormat
	}
	if err := validate.Var(items, historyRule); err != nil {
		return nil, ErrHistoryTooLong
	}

	for _, item := range items {
		msg, err := decodeHistoryItem(item)
		if err != nil {
			return nil, err
		}
		input.ConversationHistory = append(input.ConversationHistory, msg)
	}
	return input, nil
}

func decodeHistoryItem(item json.RawMessage) (HistoryMessage, error) {
	var msg HistoryMessage

	var entry map[string]json.RawMessage
	if err := json.Unmarshal(item, &entry); err != nil || entry == nil {
		return msg, ErrInvalidHistoryItem
	}

	if !isJSONString(entry["role"]) || json.Unmarshal(entry["role"], &msg.Role) != nil {
		return msg, ErrInvalidHistoryRole
	}
	if err := validate.Var(msg.Role, roleRule); err != nil {
		return msg, ErrInvalidHistoryRole
	}

	if !isJSONString(entry["content"]) || json.Unmarshal(entry["content"], &msg.Content) != nil {
		return msg, ErrInvalidHistoryContent
	}
	if err := validate.Var(msg.Content, contentRule); err != nil {
		return msg, ErrInvalidHistoryContent
	}
	return msg, nil
}

func tagOf(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Tag()
	}
	return ""
}

func isJSONString(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return len(s) > 0 && s[0] == '"'
}

func isJSONArray(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return len(s) > 0 && s[0] == '['
}

func isJSONNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}
