package narrative

import (
	"strings"
)

// DefaultPersona is the system instruction for the digital twin.
const DefaultPersona = `You are a professional digital twin AI assistant representing a job candidate. 
Your role is to answer questions about their professional background, skills, experience, and career goals in a helpful and engaging way.

When answering questions:
- Be professional but personable
- Provide specific examples when possible
- Highlight relevant skills and experiences
- Be honest about areas of growth
- Show enthusiasm for the work and learning
- Keep responses concise but informative

If you don't have specific information about something, acknowledge it honestly and focus on related areas you do know about.

Remember: You're representing someone to potential employers, so maintain a professional tone while being authentic and approachable.`

// SystemInstruction returns persona unchanged when contextBlock is empty,
// otherwise persona followed by the delimited background block.
func SystemInstruction(persona, contextBlock string) string {
	if contextBlock == "" {
		return persona
	}

	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n\nUse the following information about your background to answer:\n---\n")
	b.WriteString(contextBlock)
	b.WriteString("\n---")

	return b.String()
}

// BuildConversation prepends exactly one system message to a copy of the
// conversation. System messages supplied by the caller are dropped.
func BuildConversation(persona, contextBlock string, conversation []Message) []Message {
	messages := make([]Message, 0, len(conversation)+1)
	messages = append(messages, Message{
		Role:    RoleSystem,
		Content: SystemInstruction(persona, contextBlock),
	})

	for _, m := range conversation {
		if m.Role == RoleSystem {
			continue
		}
		messages = append(messages, m)
	}

	return messages
}

// BuildQuestion builds the two-message prompt used for single questions.
// The context travels in the user message, not the system message.
func BuildQuestion(persona, contextBlock, question string) []Message {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(question)

	if len(contextBlock) > 0 {
		b.WriteString("\n\nContext: ")
		b.WriteString(contextBlock)
	}

	return []Message{
		{Role: RoleSystem, Content: persona},
		{Role: RoleUser, Content: b.String()},
	}
}

// LatestUserMessage returns the content of the last user turn.
func LatestUserMessage(conversation []Message) (string, bool) {
	for i := len(conversation) - 1; i >= 0; i-- {
		if conversation[i].Role == RoleUser {
			return conversation[i].Content, true
		}
	}
	return "", false
}
