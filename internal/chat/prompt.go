package chat

import (
	"fmt"
	"strings"

	"github.com/fdg312/fitswift-hub/internal/storage"
)

// WelcomeMessage открывает каждую переписку и не попадает в историю промпта.
const WelcomeMessage = "Hello! I'm your fitness assistant. Ask me about your workouts, steps, or for fitness advice."

// BuildPrompt собирает промпт из трёх секций в фиксированном порядке.
// Пустые строки допустимы.
func BuildPrompt(userMessage, fitnessContext, history string) string {
	return fmt.Sprintf("User's fitness context: %s\nConversation history: %s\nUser's latest message: %s",
		fitnessContext, history, userMessage)
}

// FormatHistory сериализует окно истории строками "User: ..." / "Assistant: ...".
// Приветствие пропускается, остаётся не больше window последних сообщений.
func FormatHistory(messages []storage.ChatMessage, window int) string {
	kept := make([]storage.ChatMessage, 0, len(messages))
	for _, msg := range messages {
		if isWelcome(msg) {
			continue
		}
		kept = append(kept, msg)
	}
	if window > 0 && len(kept) > window {
		kept = kept[len(kept)-window:]
	}

	lines := make([]string, 0, len(kept))
	for _, msg := range kept {
		lines = append(lines, roleLabel(msg.Role)+": "+msg.Content)
	}
	return strings.Join(lines, "\n")
}

func isWelcome(msg storage.ChatMessage) bool {
	return msg.Role == RoleAssistant && msg.Content == WelcomeMessage
}

func roleLabel(role string) string {
	if role == RoleUser {
		return "User"
	}
	return "Assistant"
}
