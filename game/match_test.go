package game

import (
	"math/rand"
	"testing"
)

// newTestMatch sets up a match with two players on opposite teams.
func newTestMatch(t *testing.T, maxHealth int) (*Match, *Player, *Player) {
	t.Helper()
	m := NewMatch("match-1", "room-1")

	red, err := m.AddPlayer("p-red", "Alice", maxHealth)
	if err != nil {
		t.Fatalf("Failed to add first player: %v", err)
	}
	blue, err := m.AddPlayer("p-blue", "Bob", maxHealth)
	if err != nil {
		t.Fatalf("Failed to add second player: %v", err)
	}
	return m, red, blue
}

// startMatch readies both players and verifies the match went active.
func startMatch(t *testing.T, m *Match) {
	t.Helper()
	if _, err := m.SetReady("p-red"); err != nil {
		t.Fatalf("SetReady failed: %v", err)
	}
	events, err := m.SetReady("p-blue")
	if err != nil {
		t.Fatalf("SetReady failed: %v", err)
	}
	if len(events) != 1 || events[0].Type != EventGameStarted {
		t.Fatalf("Expected a single game-started event, got %v", events)
	}
	if m.Status != StatusActive {
		t.Fatalf("Expected active match, got %s", m.Status)
	}
}

// giveCard puts a card with a known answer into the player's hand.
func giveCard(p *Player, id string, value int) *Card {
	card := &Card{
		ID:            id,
		Type:          CardAttack,
		Name:          "Test",
		Value:         value,
		Question:      "What is the answer?",
		CorrectAnswer: "42",
	}
	p.Cards = append(p.Cards, card)
	return card
}

func TestMatch_TeamAssignment(t *testing.T) {
	m := NewMatch("match-1", "room-1")

	first, _ := m.AddPlayer("p1", "Alice", 100)
	if first.Team != TeamRed {
		t.Errorf("First player should be red, got %s", first.Team)
	}

	second, _ := m.AddPlayer("p2", "Bob", 100)
	if second.Team != TeamBlue {
		t.Errorf("Second player should be blue, got %s", second.Team)
	}

	if _, err := m.AddPlayer("p3", "Carol", 100); err != ErrRoomFull {
		t.Errorf("Expected ErrRoomFull for third player, got %v", err)
	}

	// Red leaving frees the red slot for the next joiner.
	m.RemovePlayer("p1")
	third, err := m.AddPlayer("p3", "Carol", 100)
	if err != nil {
		t.Fatalf("AddPlayer after removal failed: %v", err)
	}
	if third.Team != TeamRed {
		t.Errorf("Joiner after red left should take red, got %s", third.Team)
	}
}

func TestMatch_ReadyStartsGame(t *testing.T) {
	m, _, _ := newTestMatch(t, 100)

	events, err := m.SetReady("p-red")
	if err != nil {
		t.Fatalf("SetReady failed: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("One ready player should not start the game, got %v", events)
	}
	if m.Status != StatusWaiting {
		t.Errorf("Expected waiting status, got %s", m.Status)
	}

	// Ready is idempotent.
	if _, err := m.SetReady("p-red"); err != nil {
		t.Fatalf("Repeated SetReady failed: %v", err)
	}

	events, err = m.SetReady("p-blue")
	if err != nil {
		t.Fatalf("SetReady failed: %v", err)
	}
	if len(events) != 1 || events[0].Type != EventGameStarted {
		t.Fatalf("Expected game-started, got %v", events)
	}
	if m.CurrentTurn != TeamRed {
		t.Errorf("Red moves first, got %s", m.CurrentTurn)
	}
	if m.TurnNumber != 0 {
		t.Errorf("Turn number starts at 0, got %d", m.TurnNumber)
	}
	if m.StartTime == 0 {
		t.Error("StartTime should be set when the match starts")
	}
}

func TestMatch_SetReady_UnknownPlayer(t *testing.T) {
	m, _, _ := newTestMatch(t, 100)
	if _, err := m.SetReady("nobody"); err != ErrPlayerNotFound {
		t.Errorf("Expected ErrPlayerNotFound, got %v", err)
	}
}

func TestMatch_PlayCard_NotActive(t *testing.T) {
	m, red, _ := newTestMatch(t, 100)
	giveCard(red, "c1", -20)

	if _, err := m.PlayCard("p-red", "c1", "42"); err != ErrMatchNotActive {
		t.Errorf("Expected ErrMatchNotActive before start, got %v", err)
	}
}

func TestMatch_PlayCard_WrongAnswer(t *testing.T) {
	m, red, blue := newTestMatch(t, 100)
	giveCard(red, "c1", -20)
	startMatch(t, m)

	_, err := m.PlayCard("p-red", "c1", "wrong")
	if err == nil {
		t.Fatal("Expected an error for a wrong answer")
	}
	if !IsKind(err, KindAnswerMismatch) {
		t.Fatalf("Expected KindAnswerMismatch, got %v", err)
	}
	ge := err.(*Error)
	if ge.CorrectAnswer != "42" {
		t.Errorf("Error should reveal the correct answer, got %q", ge.CorrectAnswer)
	}

	// The card stays in hand and the turn is not consumed.
	if len(red.Cards) != 1 {
		t.Errorf("Card should remain in hand after a wrong answer, hand size %d", len(red.Cards))
	}
	if m.CurrentTurn != TeamRed {
		t.Errorf("Turn should not change on a wrong answer, got %s", m.CurrentTurn)
	}
	if m.TurnNumber != 0 {
		t.Errorf("Turn number should not advance, got %d", m.TurnNumber)
	}
	if blue.Health != 100 {
		t.Errorf("Opponent health should be untouched, got %d", blue.Health)
	}
}

func TestMatch_PlayCard_AnswerMatchIgnoresCaseAndSpace(t *testing.T) {
	m, red, blue := newTestMatch(t, 100)
	card := giveCard(red, "c1", -20)
	card.CorrectAnswer = "Hanoi"
	startMatch(t, m)

	if _, err := m.PlayCard("p-red", "c1", "  hAnOi "); err != nil {
		t.Fatalf("Expected case-insensitive trimmed match, got %v", err)
	}
	if blue.Health != 80 {
		t.Errorf("Expected opponent at 80 HP, got %d", blue.Health)
	}
}

func TestMatch_PlayCard_Attack(t *testing.T) {
	m, red, blue := newTestMatch(t, 100)
	giveCard(red, "c1", -20)
	startMatch(t, m)

	events, err := m.PlayCard("p-red", "c1", "42")
	if err != nil {
		t.Fatalf("PlayCard failed: %v", err)
	}

	if blue.Health != 80 {
		t.Errorf("Expected opponent at 80 HP, got %d", blue.Health)
	}
	if red.Health != 100 {
		t.Errorf("Attacker health should be untouched, got %d", red.Health)
	}
	if len(red.Cards) != 0 {
		t.Errorf("Played card should be consumed, hand size %d", len(red.Cards))
	}
	if m.CurrentTurn != TeamBlue {
		t.Errorf("Turn should pass to blue, got %s", m.CurrentTurn)
	}
	if m.TurnNumber != 1 {
		t.Errorf("Expected turn number 1, got %d", m.TurnNumber)
	}
	if len(m.History) != 1 {
		t.Fatalf("Expected one history entry, got %d", len(m.History))
	}

	if len(events) != 2 {
		t.Fatalf("Expected card-played and turn-changed, got %d events", len(events))
	}
	if events[0].Type != EventCardPlayed || events[1].Type != EventTurnChanged {
		t.Errorf("Unexpected event order: %s, %s", events[0].Type, events[1].Type)
	}
	turn, ok := events[1].Payload.(TurnPayload)
	if !ok || turn.Turn != TeamBlue {
		t.Errorf("turn-changed should carry the new turn owner, got %v", events[1].Payload)
	}
}

func TestMatch_PlayCard_RestorativeTargetsSelf(t *testing.T) {
	m, red, blue := newTestMatch(t, 100)
	red.Health = 70
	card := giveCard(red, "c1", 15)
	card.Type = CardHeal
	startMatch(t, m)

	if _, err := m.PlayCard("p-red", "c1", "42"); err != nil {
		t.Fatalf("PlayCard failed: %v", err)
	}
	if red.Health != 85 {
		t.Errorf("Expected healer at 85 HP, got %d", red.Health)
	}
	if blue.Health != 100 {
		t.Errorf("Opponent should be untouched by a heal, got %d", blue.Health)
	}
}

func TestMatch_PlayCard_NotYourTurn(t *testing.T) {
	m, _, blue := newTestMatch(t, 100)
	giveCard(blue, "c1", -20)
	startMatch(t, m)

	if _, err := m.PlayCard("p-blue", "c1", "42"); err != ErrNotYourTurn {
		t.Errorf("Expected ErrNotYourTurn, got %v", err)
	}
}

func TestMatch_PlayCard_CardNotFound(t *testing.T) {
	m, _, _ := newTestMatch(t, 100)
	startMatch(t, m)

	if _, err := m.PlayCard("p-red", "missing", "42"); err != ErrCardNotFound {
		t.Errorf("Expected ErrCardNotFound, got %v", err)
	}
}

func TestMatch_KillEndsGame(t *testing.T) {
	m, red, blue := newTestMatch(t, 100)
	giveCard(red, "c1", -20)
	startMatch(t, m)
	blue.Health = 15

	events, err := m.PlayCard("p-red", "c1", "42")
	if err != nil {
		t.Fatalf("PlayCard failed: %v", err)
	}

	if m.Status != StatusFinished {
		t.Fatalf("Expected finished match, got %s", m.Status)
	}
	if m.Winner != TeamRed {
		t.Errorf("Expected red winner, got %s", m.Winner)
	}
	if m.EndTime == 0 {
		t.Error("EndTime should be set when the match ends")
	}
	if blue.Health != 0 {
		t.Errorf("Loser health should be clamped to 0, got %d", blue.Health)
	}

	if len(events) != 1 || events[0].Type != EventGameEnded {
		t.Fatalf("Expected a single game-ended event, got %v", events)
	}
	end, ok := events[0].Payload.(EndResult)
	if !ok {
		t.Fatalf("game-ended payload should be an EndResult, got %T", events[0].Payload)
	}
	if end.Winner != TeamRed {
		t.Errorf("Expected red in end result, got %s", end.Winner)
	}
	if len(end.Results) != 2 {
		t.Fatalf("Expected results for both players, got %d", len(end.Results))
	}

	for _, result := range end.Results {
		switch result.PlayerID {
		case "p-red":
			if !result.Won {
				t.Error("Red should be marked as winner")
			}
			// 100 base + 100 health + 45 efficiency (1 card) + 50 fast win
			if result.Score != 295 {
				t.Errorf("Expected red score 295, got %d", result.Score)
			}
			if result.DamageDealt != 20 {
				t.Errorf("Expected red damage 20, got %d", result.DamageDealt)
			}
		case "p-blue":
			if result.Won {
				t.Error("Blue should be marked as loser")
			}
			if result.Score != 0 {
				t.Errorf("Losing score must be 0, got %d", result.Score)
			}
		}
	}

	// Nothing transitions out of finished.
	giveCard(red, "c2", -20)
	if _, err := m.PlayCard("p-red", "c2", "42"); err != ErrMatchNotActive {
		t.Errorf("Expected ErrMatchNotActive after the game ended, got %v", err)
	}
}

func TestMatch_DrawCard(t *testing.T) {
	m, red, _ := newTestMatch(t, 100)
	startMatch(t, m)
	catalog := NewCatalog(DefaultQuestionBank(), rand.New(rand.NewSource(3)))

	events, err := m.DrawCard("p-red", CardHeal, catalog)
	if err != nil {
		t.Fatalf("DrawCard failed: %v", err)
	}

	if len(red.Cards) != 1 {
		t.Fatalf("Expected one card in hand, got %d", len(red.Cards))
	}
	if red.Cards[0].Type != CardHeal {
		t.Errorf("Expected a heal card, got %s", red.Cards[0].Type)
	}
	if m.CurrentTurn != TeamBlue {
		t.Errorf("Drawing consumes the turn, got %s", m.CurrentTurn)
	}
	if m.TurnNumber != 1 {
		t.Errorf("Expected turn number 1, got %d", m.TurnNumber)
	}
	if len(events) != 1 || events[0].Type != EventTurnChanged {
		t.Fatalf("Expected a single turn-changed event, got %v", events)
	}
}

func TestMatch_DrawCard_NotYourTurn(t *testing.T) {
	m, _, _ := newTestMatch(t, 100)
	startMatch(t, m)
	catalog := NewCatalog(DefaultQuestionBank(), rand.New(rand.NewSource(3)))

	if _, err := m.DrawCard("p-blue", "", catalog); err != ErrNotYourTurn {
		t.Errorf("Expected ErrNotYourTurn, got %v", err)
	}
}

func TestMatch_TurnNumberMonotonic(t *testing.T) {
	m, red, blue := newTestMatch(t, 100)
	startMatch(t, m)
	catalog := NewCatalog(DefaultQuestionBank(), rand.New(rand.NewSource(9)))

	last := m.TurnNumber
	players := []string{"p-red", "p-blue", "p-red", "p-blue"}
	for _, id := range players {
		if _, err := m.DrawCard(id, "", catalog); err != nil {
			t.Fatalf("DrawCard(%s) failed: %v", id, err)
		}
		if m.TurnNumber != last+1 {
			t.Fatalf("Turn number must advance by 1, went %d → %d", last, m.TurnNumber)
		}
		last = m.TurnNumber
	}
	if len(red.Cards) != 2 || len(blue.Cards) != 2 {
		t.Errorf("Expected 2 drawn cards each, got %d and %d", len(red.Cards), len(blue.Cards))
	}
}
