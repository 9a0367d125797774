package game

import (
	"math/rand"
	"testing"
	"time"
)

func TestApplyEffect_Clamping(t *testing.T) {
	attack := &Card{Name: "Attack", Value: -20}
	heal := &Card{Name: "Heal", Value: 15}

	health, _ := ApplyEffect(5, 100, attack)
	if health != 0 {
		t.Errorf("Expected health clamped to 0, got %d", health)
	}

	health, _ = ApplyEffect(95, 100, heal)
	if health != 100 {
		t.Errorf("Expected health clamped to 100, got %d", health)
	}

	health, effect := ApplyEffect(50, 100, attack)
	if health != 30 {
		t.Errorf("Expected health 30, got %d", health)
	}
	if effect != "Attack: -20 HP (50 → 30)" {
		t.Errorf("Unexpected effect description: %q", effect)
	}
}

func TestComputeScore(t *testing.T) {
	tests := []struct {
		name            string
		won             bool
		remainingHealth int
		cardsUsed       int
		duration        time.Duration
		want            int
	}{
		{"loss is always zero", false, 100, 0, time.Minute, 0},
		{"perfect fast win", true, 100, 0, time.Minute, 300},
		{"efficiency bonus decreases per card", true, 50, 4, time.Minute, 230},
		{"efficiency bonus never negative", true, 50, 20, time.Minute, 200},
		{"medium duration bonus", true, 100, 0, 3 * time.Minute, 280},
		{"slow duration bonus", true, 100, 0, 7 * time.Minute, 260},
		{"no duration bonus past ten minutes", true, 100, 0, 15 * time.Minute, 250},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeScore(tt.won, tt.remainingHealth, tt.cardsUsed, tt.duration)
			if got != tt.want {
				t.Errorf("ComputeScore(%v, %d, %d, %v) = %d, want %d",
					tt.won, tt.remainingHealth, tt.cardsUsed, tt.duration, got, tt.want)
			}
		})
	}
}

func TestCatalog_GenerateCard(t *testing.T) {
	catalog := NewCatalog(DefaultQuestionBank(), rand.New(rand.NewSource(1)))

	card, err := catalog.GenerateCard(CardAttack)
	if err != nil {
		t.Fatalf("GenerateCard failed: %v", err)
	}
	if card.Type != CardAttack {
		t.Errorf("Expected attack card, got %s", card.Type)
	}
	if card.Value != -20 {
		t.Errorf("Expected attack value -20, got %d", card.Value)
	}
	if card.Question == "" || card.CorrectAnswer == "" {
		t.Error("Generated card must carry a question and answer")
	}
	if card.ID == "" {
		t.Error("Generated card must have an id")
	}
}

func TestCatalog_DeterministicWithSeededSource(t *testing.T) {
	a := NewCatalog(DefaultQuestionBank(), rand.New(rand.NewSource(42)))
	b := NewCatalog(DefaultQuestionBank(), rand.New(rand.NewSource(42)))

	for i := 0; i < 10; i++ {
		cardA, errA := a.GenerateCard("")
		cardB, errB := b.GenerateCard("")
		if errA != nil || errB != nil {
			t.Fatalf("GenerateCard failed: %v / %v", errA, errB)
		}
		if cardA.Type != cardB.Type || cardA.Question != cardB.Question {
			t.Fatalf("Seeded catalogs diverged at card %d: %s/%q vs %s/%q",
				i, cardA.Type, cardA.Question, cardB.Type, cardB.Question)
		}
	}
}

func TestCatalog_EmptyBank(t *testing.T) {
	catalog := NewCatalog(QuestionBank{}, rand.New(rand.NewSource(1)))

	_, err := catalog.GenerateCard(CardHeal)
	if err == nil {
		t.Fatal("Expected an error for an empty question bank")
	}
	if !IsKind(err, KindContentUnavailable) {
		t.Errorf("Expected KindContentUnavailable, got %v", err)
	}
}

func TestCatalog_UnknownType(t *testing.T) {
	catalog := NewCatalog(DefaultQuestionBank(), rand.New(rand.NewSource(1)))

	_, err := catalog.GenerateCard(CardType("poison"))
	if err == nil {
		t.Fatal("Expected an error for an unknown card type")
	}
	if !IsKind(err, KindValidation) {
		t.Errorf("Expected KindValidation, got %v", err)
	}
}

func TestCatalog_GenerateHand(t *testing.T) {
	catalog := NewCatalog(DefaultQuestionBank(), rand.New(rand.NewSource(7)))

	hand, err := catalog.GenerateHand(5)
	if err != nil {
		t.Fatalf("GenerateHand failed: %v", err)
	}
	if len(hand) != 5 {
		t.Fatalf("Expected 5 cards, got %d", len(hand))
	}

	seen := make(map[string]bool)
	for _, card := range hand {
		if seen[card.ID] {
			t.Errorf("Duplicate card id %s in hand", card.ID)
		}
		seen[card.ID] = true
	}
}
