package game

import (
	"fmt"
	"strings"
	"time"
)

// Team 队伍：红队或蓝队，每场比赛每队一名玩家
type Team string

const (
	TeamRed  Team = "red"
	TeamBlue Team = "blue"
)

// Opponent returns the other team.
func (t Team) Opponent() Team {
	if t == TeamRed {
		return TeamBlue
	}
	return TeamRed
}

// Status 比赛状态，只能向前推进
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

// statusTransitions is the forward-only transition table. Nothing leaves
// finished.
var statusTransitions = map[Status]Status{
	StatusWaiting: StatusActive,
	StatusActive:  StatusFinished,
}

// Player in a match. Hand order is irrelevant to gameplay.
type Player struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Team      Team    `json:"team"`
	Health    int     `json:"health"`
	MaxHealth int     `json:"maxHealth"`
	Cards     []*Card `json:"cards"`
	Score     int     `json:"score"`
	Ready     bool    `json:"ready"`
}

// Action is an immutable audit record. History is append-only and is the
// sole source for post-hoc scoring.
type Action struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Team       Team   `json:"team"`
	Action     string `json:"action"` // play-card | skip-turn
	Card       *Card  `json:"card,omitempty"`
	Timestamp  int64  `json:"timestamp"` // unix milliseconds
	Effect     string `json:"effect"`
}

// Match owns one contest between the two teams: turn order, health, card
// resolution, win detection and scoring. Pure logic, no I/O; the room layer
// serializes all mutations.
type Match struct {
	ID          string    `json:"id"`
	RoomID      string    `json:"roomId"`
	Players     []*Player `json:"players"`
	CurrentTurn Team      `json:"currentTurn"`
	TurnNumber  int       `json:"turnNumber"`
	Status      Status    `json:"status"`
	Winner      Team      `json:"winner,omitempty"`
	StartTime   int64     `json:"startTime,omitempty"` // unix milliseconds
	EndTime     int64     `json:"endTime,omitempty"`
	History     []Action  `json:"history"`
}

// EventType names the events a committed match mutation emits. They map
// one-to-one onto the broadcast protocol messages.
type EventType string

const (
	EventGameStarted EventType = "game-started"
	EventCardPlayed  EventType = "card-played"
	EventTurnChanged EventType = "turn-changed"
	EventGameEnded   EventType = "game-ended"
)

type Event struct {
	Type    EventType
	Payload interface{}
}

// TurnPayload carries the new turn owner.
type TurnPayload struct {
	Turn Team `json:"turn"`
}

// PlayerResult is one player's final outcome, used for leaderboard updates.
type PlayerResult struct {
	PlayerID    string `json:"playerId"`
	PlayerName  string `json:"playerName"`
	Won         bool   `json:"won"`
	Score       int    `json:"score"`
	DamageDealt int    `json:"damageDealt"`
}

// EndResult is the game-ended payload.
type EndResult struct {
	Winner  Team           `json:"winner"`
	Match   *Match         `json:"gameState"`
	Results []PlayerResult `json:"results"`
}

func NewMatch(id, roomID string) *Match {
	return &Match{
		ID:          id,
		RoomID:      roomID,
		Players:     []*Player{},
		CurrentTurn: TeamRed,
		Status:      StatusWaiting,
		History:     []Action{},
	}
}

// advance moves the match status forward. Backward or skipping transitions
// are rejected.
func (m *Match) advance(to Status) error {
	if statusTransitions[m.Status] != to {
		return &Error{Kind: KindValidation, Message: fmt.Sprintf("invalid status transition: %s → %s", m.Status, to)}
	}
	m.Status = to
	return nil
}

// AddPlayer adds a player to the match. The first player joins the red
// team, the second takes whichever team is left.
func (m *Match) AddPlayer(id, name string, maxHealth int) (*Player, error) {
	if len(m.Players) >= 2 {
		return nil, ErrRoomFull
	}

	team := TeamRed
	for _, p := range m.Players {
		if p.Team == TeamRed {
			team = TeamBlue
		}
	}

	player := &Player{
		ID:        id,
		Name:      name,
		Team:      team,
		Health:    maxHealth,
		MaxHealth: maxHealth,
		Cards:     []*Card{},
	}
	m.Players = append(m.Players, player)
	return player, nil
}

// RemovePlayer removes a player from the match.
func (m *Match) RemovePlayer(playerID string) bool {
	for i, p := range m.Players {
		if p.ID == playerID {
			m.Players = append(m.Players[:i], m.Players[i+1:]...)
			return true
		}
	}
	return false
}

// FindPlayer returns the player with the given id.
func (m *Match) FindPlayer(playerID string) (*Player, bool) {
	for _, p := range m.Players {
		if p.ID == playerID {
			return p, true
		}
	}
	return nil, false
}

func (m *Match) opponentOf(player *Player) *Player {
	for _, p := range m.Players {
		if p.Team != player.Team {
			return p
		}
	}
	return nil
}

// SetReady marks a player ready. Idempotent. Once both players are ready in
// a waiting match it transitions to active and emits game-started.
func (m *Match) SetReady(playerID string) ([]Event, error) {
	player, ok := m.FindPlayer(playerID)
	if !ok {
		return nil, ErrPlayerNotFound
	}

	player.Ready = true

	if m.Status != StatusWaiting || len(m.Players) < 2 {
		return nil, nil
	}
	for _, p := range m.Players {
		if !p.Ready {
			return nil, nil
		}
	}

	if err := m.advance(StatusActive); err != nil {
		return nil, err
	}
	m.StartTime = time.Now().UnixMilli()

	return []Event{{Type: EventGameStarted, Payload: m}}, nil
}

// PlayCard resolves one card play. The answer is compared to the card's
// correct answer after trimming whitespace, case-insensitively. A wrong
// answer keeps the card in hand and does not consume the turn.
func (m *Match) PlayCard(playerID, cardID, answer string) ([]Event, error) {
	if m.Status != StatusActive {
		return nil, ErrMatchNotActive
	}

	player, ok := m.FindPlayer(playerID)
	if !ok {
		return nil, ErrPlayerNotFound
	}
	if player.Team != m.CurrentTurn {
		return nil, ErrNotYourTurn
	}

	cardIndex := -1
	for i, c := range player.Cards {
		if c.ID == cardID {
			cardIndex = i
			break
		}
	}
	if cardIndex == -1 {
		return nil, ErrCardNotFound
	}
	card := player.Cards[cardIndex]

	if !strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(card.CorrectAnswer)) {
		return nil, WrongAnswer(card.CorrectAnswer)
	}

	// Correct answer: the card is consumed, never reused.
	player.Cards = append(player.Cards[:cardIndex], player.Cards[cardIndex+1:]...)

	// Attack cards hit the opponent, restorative cards heal the player.
	target := player
	if card.Value < 0 {
		target = m.opponentOf(player)
		if target == nil {
			return nil, ErrPlayerNotFound
		}
	}

	newHealth, effect := ApplyEffect(target.Health, target.MaxHealth, card)
	target.Health = newHealth

	action := Action{
		PlayerID:   player.ID,
		PlayerName: player.Name,
		Team:       player.Team,
		Action:     "play-card",
		Card:       card,
		Timestamp:  time.Now().UnixMilli(),
		Effect:     effect,
	}
	m.History = append(m.History, action)

	if target.Health <= 0 {
		return m.finish(player.Team)
	}

	m.CurrentTurn = m.CurrentTurn.Opponent()
	m.TurnNumber++

	return []Event{
		{Type: EventCardPlayed, Payload: action},
		{Type: EventTurnChanged, Payload: TurnPayload{Turn: m.CurrentTurn}},
	}, nil
}

// DrawCard generates one card into the player's hand. Drawing is a full
// move: it consumes the turn.
func (m *Match) DrawCard(playerID string, cardType CardType, catalog *Catalog) ([]Event, error) {
	if m.Status != StatusActive {
		return nil, ErrMatchNotActive
	}

	player, ok := m.FindPlayer(playerID)
	if !ok {
		return nil, ErrPlayerNotFound
	}
	if player.Team != m.CurrentTurn {
		return nil, ErrNotYourTurn
	}

	card, err := catalog.GenerateCard(cardType)
	if err != nil {
		return nil, err
	}
	player.Cards = append(player.Cards, card)

	m.CurrentTurn = m.CurrentTurn.Opponent()
	m.TurnNumber++

	return []Event{
		{Type: EventTurnChanged, Payload: TurnPayload{Turn: m.CurrentTurn}},
	}, nil
}

// finish ends the match, computes final scores and emits game-ended.
func (m *Match) finish(winner Team) ([]Event, error) {
	if err := m.advance(StatusFinished); err != nil {
		return nil, err
	}
	m.Winner = winner
	m.EndTime = time.Now().UnixMilli()

	start := m.StartTime
	if start == 0 {
		start = m.EndTime
	}
	duration := time.Duration(m.EndTime-start) * time.Millisecond

	results := make([]PlayerResult, 0, len(m.Players))
	for _, p := range m.Players {
		won := p.Team == winner
		cardsUsed := 0
		damageDealt := 0
		for _, h := range m.History {
			if h.PlayerID != p.ID {
				continue
			}
			cardsUsed++
			if h.Card != nil && h.Card.Value < 0 {
				damageDealt += -h.Card.Value
			}
		}
		p.Score = ComputeScore(won, p.Health, cardsUsed, duration)
		results = append(results, PlayerResult{
			PlayerID:    p.ID,
			PlayerName:  p.Name,
			Won:         won,
			Score:       p.Score,
			DamageDealt: damageDealt,
		})
	}

	return []Event{
		{Type: EventGameEnded, Payload: EndResult{Winner: winner, Match: m, Results: results}},
	}, nil
}
