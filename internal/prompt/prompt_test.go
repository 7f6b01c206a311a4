package prompt

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/huak95/mongkol-backend-rag/internal/gateway"
	"github.com/huak95/mongkol-backend-rag/internal/history"
	"github.com/huak95/mongkol-backend-rag/internal/tarot"
)

func TestSystemPromptParameters(t *testing.T) {
	got := SystemPrompt(Persona{Name: "แม่หมอแพตตี้", Personality: "warm and direct"})

	if !strings.Contains(got, "named แม่หมอแพตตี้") {
		t.Error("system prompt missing seer name")
	}
	if !strings.Contains(got, `Your personality is "warm and direct".`) {
		t.Error("system prompt missing personality")
	}
}

func TestInboundTurnsPlainText(t *testing.T) {
	turns := InboundTurns("สวัสดีค่ะ", nil, "llama-3.1-70b-versatile", false)

	if len(turns) != 1 {
		t.Fatalf("plain branch must persist exactly one turn, got %d", len(turns))
	}
	if turns[0].Role != history.RoleUser {
		t.Errorf("role = %q, want user", turns[0].Role)
	}
	if turns[0].Content != "สวัสดีค่ะ" {
		t.Errorf("content = %q", turns[0].Content)
	}
}

// An empty message with no cards still persists one (empty) user turn.
// Preserved behavior, not corrected here.
func TestInboundTurnsEmptyMessage(t *testing.T) {
	turns := InboundTurns("", nil, "m", false)
	if len(turns) != 1 || turns[0].Role != history.RoleUser || turns[0].Content != "" {
		t.Errorf("empty inbound should persist one empty user turn, got %+v", turns)
	}
}

func TestInboundTurnsTarotBranch(t *testing.T) {
	turns := InboundTurns("ignored text", []string{"The Fool", "The Sun"}, "m", false)

	if len(turns) != 2 {
		t.Fatalf("tarot branch must persist exactly two turns, got %d", len(turns))
	}
	if turns[0].Role != history.RoleAssistant {
		t.Errorf("first turn role = %q, want assistant", turns[0].Role)
	}
	if turns[1].Role != history.RoleUser {
		t.Errorf("second turn role = %q, want user", turns[1].Role)
	}
	if !strings.Contains(turns[0].Content, "The Fool, The Sun") {
		t.Errorf("card list missing from preamble: %q", turns[0].Content)
	}
	if turns[1].Content != FortuneInstruction {
		t.Errorf("second turn must be the fixed fortune instruction")
	}
	// Non-augmented variant carries names only.
	if strings.Contains(turns[0].Content, "New beginnings") {
		t.Error("non-augmented preamble must not include descriptions")
	}
}

// Tarot selection takes precedence over message text whenever non-empty.
func TestInboundTurnsTarotPrecedence(t *testing.T) {
	turns := InboundTurns("please just chat", []string{"Death"}, "m", true)
	if len(turns) != 2 {
		t.Fatalf("card set non-empty: tarot branch must win, got %d turns", len(turns))
	}
	if strings.Contains(turns[0].Content, "please just chat") {
		t.Error("message text must not leak into the tarot preamble")
	}
}

func TestInboundTurnsAugmentedDescriptions(t *testing.T) {
	turns := InboundTurns("", []string{"The Fool"}, "m", true)

	desc, ok := tarot.Description("The Fool")
	if !ok {
		t.Fatal("The Fool must exist in the card table")
	}
	if !strings.Contains(turns[0].Content, "The Fool") {
		t.Error("augmented preamble missing card name")
	}
	if !strings.Contains(turns[0].Content, desc) {
		t.Error("augmented preamble must contain the canonical description verbatim")
	}
}

func TestInboundTurnsAugmentedPairsConcatenated(t *testing.T) {
	turns := InboundTurns("", []string{"The Fool", "The Magician"}, "m", true)

	foolDesc, _ := tarot.Description("The Fool")
	magicianDesc, _ := tarot.Description("The Magician")

	// name: description pairs run together with no separator between cards.
	want := fmt.Sprintf("The Fool: %sThe Magician: %s", foolDesc, magicianDesc)
	if !strings.Contains(turns[0].Content, want) {
		t.Errorf("augmented card block = %q, want it to contain %q", turns[0].Content, want)
	}
}

func TestInboundTurnsAugmentedUnknownCard(t *testing.T) {
	turns := InboundTurns("", []string{"The Intern"}, "m", true)
	if !strings.Contains(turns[0].Content, "The Intern") {
		t.Error("unknown cards should still be listed by name")
	}
}

func TestAssembleOrder(t *testing.T) {
	persona := Persona{Name: "n", Personality: "p"}
	stored := []history.Turn{
		{Role: history.RoleUser, Content: "first"},
		{Role: history.RoleAssistant, Content: "second"},
		{Role: history.RoleAssistant, Content: "third"}, // consecutive same-role is tolerated
	}

	got := Assemble(persona, stored)

	want := []gateway.Message{
		{Role: history.RoleSystem, Content: SystemPrompt(persona)},
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "second"},
		{Role: "assistant", Content: "third"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Assemble() mismatch (-want +got):\n%s", diff)
	}
}

func TestAssembleEmptyHistory(t *testing.T) {
	got := Assemble(Persona{Name: "n", Personality: "p"}, nil)
	if len(got) != 1 || got[0].Role != history.RoleSystem {
		t.Errorf("empty history must assemble to just the system message, got %+v", got)
	}
}
