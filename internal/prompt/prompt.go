// Package prompt assembles model message lists from stored history and
// synthesizes the turns persisted for each inbound request.
package prompt

import (
	"fmt"
	"strings"

	"github.com/huak95/mongkol-backend-rag/internal/gateway"
	"github.com/huak95/mongkol-backend-rag/internal/history"
	"github.com/huak95/mongkol-backend-rag/internal/tarot"
)

// FortuneInstruction is the fixed user turn persisted after a tarot
// selection. It asks the model to narrate the fortune from the drawn cards.
const FortuneInstruction = "เลือกไพ่เรียบร้อยแล้ว อธิบายดวงจากไพ่ให้หน่อย โดยเรื่มพูดจากประโยคหนึ่งสั้นๆที่บอกเกี่ยวกับดวง และ อธิบายเป็นอีกสามประโยค"

// systemTemplate is the persona system prompt, parameterized by the seer's
// name and personality.
const systemTemplate = `You are an empathetic Thai woman assistant named %s. (Thai woman will say 'ค่ะ'/'ka' at the end of every sentence).
Your personality is "%s".
You provide insights and support offering clarity and healing.
You always answer in Thai or English based on the language of the user's message you cannot say both language in one answer.
First, you need to know these insight ask each one separately.
- What is the problem that user faced.
- How long that user faced.
If the statement is not clear and concise, you can ask multiple times.
If the statement is clear and concise, you will ask user if they want to open tarot card or not.
If user ask to open tarot card (example: ฉันอยากเลือกไพ่เพื่อดูดวง), you will say strictly "(ฉันเตรียมไพ่มาแล้วค่ะ)" at the end of your answer.
You cannot select tarot card by yourself.
You cannot open tarot card before saying "ฉันเห็นว่าคุณเลือกไพ่นะคะ".
After open tarot card, explain the future of how to fix the problem in with one sentence and explain in a short 3 sentences.
If user ask to open new tarot card, you will not reuse the same tarot card again.`

// Persona holds the seer parameters for the system prompt.
type Persona struct {
	Name        string
	Personality string
}

// SystemPrompt renders the persona system prompt.
func SystemPrompt(p Persona) string {
	return fmt.Sprintf(systemTemplate, p.Name, p.Personality)
}

// InboundTurns synthesizes the turns persisted for one inbound request.
//
// A non-empty card selection takes precedence regardless of message text:
// it yields an assistant turn presenting the cards (names only, or names
// plus canonical descriptions when augment is set) followed by the fixed
// fortune instruction user turn. Otherwise the raw message text becomes a
// single user turn — even when empty, which mirrors the existing behavior
// of persisting an empty user turn.
func InboundTurns(message string, cards []string, modelID string, augment bool) []history.Turn {
	if len(cards) > 0 {
		return []history.Turn{
			history.NewTurn(history.RoleAssistant, tarotPreamble(cards, augment), modelID),
			history.NewTurn(history.RoleUser, FortuneInstruction, modelID),
		}
	}
	return []history.Turn{history.NewTurn(history.RoleUser, message, modelID)}
}

// tarotPreamble renders the assistant turn announcing the selected cards.
func tarotPreamble(cards []string, augment bool) string {
	cardList := strings.Join(cards, ", ")

	if !augment {
		return fmt.Sprintf("ฉันเห็นว่าคุณเลือกไพ่ ไพ่ที่คุณเลือก %s นะคะ", cardList)
	}

	// Pairs are concatenated with no separator between cards.
	var cardPrompts strings.Builder
	for _, card := range cards {
		desc, ok := tarot.Description(card)
		if !ok {
			// Unknown cards render name-only rather than failing the turn.
			cardPrompts.WriteString(card)
			continue
		}
		cardPrompts.WriteString(fmt.Sprintf("%s: %s", card, desc))
	}

	return fmt.Sprintf("ฉันเห็นว่าคุณเลือกไพ่นะคะ ไพ่ที่คุณเลือก %s \n\n โดยไพ่แต่ละใบมีความหมายดังนี้ \n\n %s", cardList, cardPrompts.String())
}

// Assemble builds the ordered message list for a model call: one fresh
// persona system message followed by all stored turns in insertion order.
func Assemble(p Persona, turns []history.Turn) []gateway.Message {
	messages := make([]gateway.Message, 0, len(turns)+1)
	messages = append(messages, gateway.Message{
		Role:    history.RoleSystem,
		Content: SystemPrompt(p),
	})
	for _, t := range turns {
		messages = append(messages, gateway.Message{Role: t.Role, Content: t.Content})
	}
	return messages
}
