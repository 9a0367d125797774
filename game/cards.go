package game

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CardType 卡牌类型
type CardType string

const (
	CardDefense CardType = "defense"
	CardHeal    CardType = "heal"
	CardAttack  CardType = "attack"
	CardThunder CardType = "thunder"
	CardDetox   CardType = "detox"
)

var cardTypes = []CardType{CardDefense, CardHeal, CardAttack, CardThunder, CardDetox}

// Card is immutable once generated. A positive value restores the owner's
// health, a negative value damages the opponent.
type Card struct {
	ID            string   `json:"id"`
	Type          CardType `json:"type"`
	Name          string   `json:"name"`
	Value         int      `json:"value"`
	Description   string   `json:"description"`
	Question      string   `json:"question"`
	CorrectAnswer string   `json:"correctAnswer"`
	Options       []string `json:"options,omitempty"`
}

type cardDefinition struct {
	Name        string
	Value       int
	Description string
}

var cardDefinitions = map[CardType]cardDefinition{
	CardDefense: {Name: "Defense", Value: 10, Description: "Restore 10 HP"},
	CardHeal:    {Name: "Heal", Value: 15, Description: "Restore 15 HP"},
	CardAttack:  {Name: "Attack", Value: -20, Description: "Deal 20 damage"},
	CardThunder: {Name: "Thunder", Value: -25, Description: "Deal 25 damage"},
	CardDetox:   {Name: "Detox", Value: 18, Description: "Cleanse and restore 18 HP"},
}

// Question is one entry of the trivia bank. Answers are matched
// case-insensitively after trimming whitespace.
type Question struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Options  []string `json:"options,omitempty"`
}

// QuestionBank holds the trivia questions per card type.
type QuestionBank map[CardType][]Question

// LoadQuestionBank reads a question bank from a JSON file.
func LoadQuestionBank(path string) (QuestionBank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var bank QuestionBank
	if err := json.Unmarshal(data, &bank); err != nil {
		return nil, fmt.Errorf("parsing question bank %s: %w", path, err)
	}
	return bank, nil
}

// DefaultQuestionBank returns the compiled-in fallback bank, used when the
// questions file is missing.
func DefaultQuestionBank() QuestionBank {
	return QuestionBank{
		CardDefense: {{Question: "What is the capital of Vietnam?", Answer: "Hanoi", Options: []string{"Hanoi", "Saigon", "Da Nang", "Hue"}}},
		CardHeal:    {{Question: "Which animal lives the longest?", Answer: "Turtle", Options: []string{"Turtle", "Elephant", "Cat", "Dog"}}},
		CardAttack:  {{Question: "Which metal is the heaviest?", Answer: "Gold", Options: []string{"Gold", "Iron", "Copper", "Silver"}}},
		CardThunder: {{Question: "Who invented the light bulb?", Answer: "Edison", Options: []string{"Edison", "Einstein", "Newton", "Tesla"}}},
		CardDetox:   {{Question: "Which drink is healthiest?", Answer: "Water", Options: []string{"Water", "Soda", "Juice", "Energy drink"}}},
	}
}

// Catalog produces card instances from the question bank. The random source
// is injected so tests can fix the sequence.
type Catalog struct {
	bank QuestionBank
	rnd  *rand.Rand
	mu   sync.Mutex // rand.Rand is not safe for concurrent use
}

func NewCatalog(bank QuestionBank, rnd *rand.Rand) *Catalog {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Catalog{bank: bank, rnd: rnd}
}

// GenerateCard produces a new card of the given type, or of a uniformly
// random type when cardType is empty. It never produces a card without a
// question: an empty bank for the type is a ContentUnavailable error.
func (c *Catalog) GenerateCard(cardType CardType) (*Card, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	selected := cardType
	if selected == "" {
		selected = cardTypes[c.rnd.Intn(len(cardTypes))]
	}

	def, ok := cardDefinitions[selected]
	if !ok {
		return nil, &Error{Kind: KindValidation, Message: fmt.Sprintf("unknown card type: %s", cardType)}
	}

	questions := c.bank[selected]
	if len(questions) == 0 {
		return nil, ContentUnavailable(selected)
	}
	q := questions[c.rnd.Intn(len(questions))]

	return &Card{
		ID:            "card-" + uuid.New().String(),
		Type:          selected,
		Name:          def.Name,
		Value:         def.Value,
		Description:   def.Description,
		Question:      q.Question,
		CorrectAnswer: q.Answer,
		Options:       q.Options,
	}, nil
}

// GenerateHand produces n independently generated cards. Duplicates by type
// or question are permitted.
func (c *Catalog) GenerateHand(n int) ([]*Card, error) {
	cards := make([]*Card, 0, n)
	for i := 0; i < n; i++ {
		card, err := c.GenerateCard("")
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// ApplyEffect applies a card to the given health, clamped to [0, maxHealth].
// Pure function; returns the new health and a formatted description.
func ApplyEffect(currentHealth, maxHealth int, card *Card) (int, string) {
	newHealth := currentHealth + card.Value
	if newHealth < 0 {
		newHealth = 0
	}
	if newHealth > maxHealth {
		newHealth = maxHealth
	}

	description := fmt.Sprintf("%s: %+d HP (%d → %d)", card.Name, card.Value, currentHealth, newHealth)
	return newHealth, description
}

// ComputeScore calculates the final score for one player.
// Losing always scores zero. Winning scores a 100 base, plus remaining
// health, plus an efficiency bonus of max(0, 50 - 5*cardsUsed), plus a
// duration bonus for fast wins.
func ComputeScore(won bool, remainingHealth, cardsUsed int, duration time.Duration) int {
	if !won {
		return 0
	}

	score := 100 + remainingHealth

	efficiency := 50 - cardsUsed*5
	if efficiency > 0 {
		score += efficiency
	}

	minutes := duration.Minutes()
	switch {
	case minutes < 2:
		score += 50
	case minutes < 5:
		score += 30
	case minutes < 10:
		score += 10
	}

	return score
}
