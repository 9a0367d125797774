// room/room.go
package room

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wfunc/cardbattle/game"
	"github.com/wfunc/cardbattle/logger"
	"github.com/wfunc/cardbattle/models"
	"github.com/wfunc/cardbattle/network"
	"github.com/wfunc/cardbattle/persistence"
	"github.com/wfunc/cardbattle/session"
)

// Capacity is fixed: two teams, one player each.
const Capacity = 2

// Room 是游戏房间的核心结构
//
// A room is a single mutation domain: mu serializes every mutating operation
// on the bound match, so two handlers can never read-modify-write the same
// match concurrently. Broadcasts happen under the same lock, which gives all
// subscribers the committed event order.
type Room struct {
	ID         string
	Name       string
	MaxPlayers int
	Match      *game.Match
	CreatedAt  time.Time

	catalog      *game.Catalog
	db           persistence.Database
	broadcaster  Broadcaster
	maxHealth    int
	startingHand int

	mu           sync.Mutex
	lastActivity time.Time

	sessions    map[string]*session.Session // subscribers, sessionID -> session
	sessionLock sync.RWMutex
}

// roomSnapshot is the persisted shape of a room.
type roomSnapshot struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	MaxPlayers int         `json:"maxPlayers"`
	CreatedAt  int64       `json:"createdAt"` // unix milliseconds
	Match      *game.Match `json:"match"`
}

// NewRoom 创建一个新房间
func NewRoom(id, name string, catalog *game.Catalog, db persistence.Database, broadcaster Broadcaster, maxHealth, startingHand int) *Room {
	now := time.Now()
	return &Room{
		ID:           id,
		Name:         name,
		MaxPlayers:   Capacity,
		Match:        game.NewMatch(uuid.New().String(), id),
		CreatedAt:    now,
		catalog:      catalog,
		db:           db,
		broadcaster:  broadcaster,
		maxHealth:    maxHealth,
		startingHand: startingHand,
		lastActivity: now,
		sessions:     make(map[string]*session.Session),
	}
}

// Status maps the match status onto the lobby room status.
func (r *Room) Status() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statusLocked()
}

func (r *Room) statusLocked() string {
	switch r.Match.Status {
	case game.StatusActive:
		return "in-progress"
	case game.StatusFinished:
		return "finished"
	default:
		return "waiting"
	}
}

// Info returns the lobby view of the room.
func (r *Room) Info() models.RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return models.RoomInfo{
		ID:          r.ID,
		Name:        r.Name,
		PlayerCount: len(r.Match.Players),
		MaxPlayers:  r.MaxPlayers,
		Status:      r.statusLocked(),
		CreatedAt:   r.CreatedAt,
	}
}

func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Match.Players)
}

// --- subscriber management ---

// AddSession subscribes a session to this room's broadcasts.
func (r *Room) AddSession(s *session.Session) {
	r.sessionLock.Lock()
	defer r.sessionLock.Unlock()
	r.sessions[s.ID] = s
}

func (r *Room) RemoveSession(sessionID string) {
	r.sessionLock.Lock()
	defer r.sessionLock.Unlock()
	delete(r.sessions, sessionID)
}

// GetSessions returns a slice of all subscribed sessions (thread-safe).
func (r *Room) GetSessions() []*session.Session {
	r.sessionLock.RLock()
	defer r.sessionLock.RUnlock()

	sessions := make([]*session.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// --- mutating operations, each serialized by r.mu ---

// Join adds a new player to the room and subscribes the joining session.
// Fails with ErrRoomFull when two players are already present. The joiner
// is told its player id before the game-update broadcast goes out.
func (r *Room) Join(s *session.Session, playerName string) (*game.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	player, err := r.Match.AddPlayer("player-"+uuid.New().String(), playerName, r.maxHealth)
	if err != nil {
		return nil, err
	}

	r.AddSession(s)
	s.Bind(r.ID, player.ID)
	s.Send(network.MsgPlayerJoined, map[string]string{"roomId": r.ID, "playerId": player.ID})

	r.commitLocked(nil)
	return player, nil
}

// Leave removes a player. An empty room becomes eligible for teardown.
func (r *Room) Leave(playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.Match.RemovePlayer(playerID) {
		return game.ErrPlayerNotFound
	}

	r.broadcaster.BroadcastToRoom(r.ID, network.MsgPlayerLeft, map[string]string{"playerId": playerID})
	r.commitLocked(nil)
	return nil
}

// SetReady marks a player ready; when both players are ready the match
// starts and game-started is broadcast.
func (r *Room) SetReady(playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	events, err := r.Match.SetReady(playerID)
	if err != nil {
		return err
	}

	// Deal the configured opening hand once the match actually starts.
	if len(events) > 0 && r.startingHand > 0 {
		for _, p := range r.Match.Players {
			hand, err := r.catalog.GenerateHand(r.startingHand)
			if err != nil {
				logger.Log.Warnf("Room %s: dealing opening hand failed: %v", r.ID, err)
				continue
			}
			p.Cards = append(p.Cards, hand...)
		}
	}

	r.commitLocked(events)
	return nil
}

// PlayCard resolves one card play. On a committed mutation the room
// broadcasts the emitted events followed by a full game-update. When the
// match ends it returns the per-player results for leaderboard recording.
func (r *Room) PlayCard(playerID, cardID, answer string) ([]game.PlayerResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	events, err := r.Match.PlayCard(playerID, cardID, answer)
	if err != nil {
		return nil, err
	}

	r.commitLocked(events)

	for _, ev := range events {
		if end, ok := ev.Payload.(game.EndResult); ok {
			return end.Results, nil
		}
	}
	return nil, nil
}

// DrawCard draws one card into the player's hand. Drawing consumes the
// turn.
func (r *Room) DrawCard(playerID string, cardType game.CardType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	events, err := r.Match.DrawCard(playerID, cardType, r.catalog)
	if err != nil {
		return err
	}

	r.commitLocked(events)
	return nil
}

// SendState subscribes a session and sends it the current match snapshot.
func (r *Room) SendState(s *session.Session) error {
	r.AddSession(s)

	r.mu.Lock()
	defer r.mu.Unlock()
	return s.Send(network.MsgGameUpdate, r.Match)
}

// commitLocked broadcasts the emitted events in committed order, always
// followed by a full game-update, then persists the room and match records.
// Callers must hold r.mu.
func (r *Room) commitLocked(events []game.Event) {
	r.lastActivity = time.Now()

	for _, ev := range events {
		r.broadcaster.BroadcastToRoom(r.ID, string(ev.Type), ev.Payload)
	}
	r.broadcaster.BroadcastToRoom(r.ID, network.MsgGameUpdate, r.Match)

	r.persistLocked()
}

// persistLocked writes the room and match records. A failed write is
// retried once and then logged; it is never dropped silently.
func (r *Room) persistLocked() {
	snapshot, err := models.SnapshotOf(roomSnapshot{
		ID:         r.ID,
		Name:       r.Name,
		MaxPlayers: r.MaxPlayers,
		CreatedAt:  r.CreatedAt.UnixMilli(),
		Match:      r.Match,
	})
	if err != nil {
		logger.Log.Errorf("Room %s: failed to build snapshot: %v", r.ID, err)
		return
	}

	roomRecord := &models.RoomRecord{
		RoomID:   r.ID,
		Name:     r.Name,
		Status:   r.statusLocked(),
		Snapshot: snapshot,
	}

	matchSnapshot, err := models.SnapshotOf(r.Match)
	if err != nil {
		logger.Log.Errorf("Room %s: failed to build match snapshot: %v", r.ID, err)
		return
	}
	matchRecord := &models.MatchRecord{
		MatchID:  r.Match.ID,
		RoomID:   r.ID,
		Status:   string(r.Match.Status),
		Snapshot: matchSnapshot,
	}

	if err := writeWithRetry(func() error { return r.db.SaveRoom(roomRecord) }); err != nil {
		logger.Log.Errorf("Room %s: persisting room record failed: %v", r.ID, err)
	}
	if err := writeWithRetry(func() error { return r.db.SaveMatch(matchRecord) }); err != nil {
		logger.Log.Errorf("Room %s: persisting match record failed: %v", r.ID, err)
	}
}

func writeWithRetry(write func() error) error {
	if err := write(); err != nil {
		return write()
	}
	return nil
}

// --- 房间管理器 ---

// Manager 管理所有房间
type Manager struct {
	rooms        map[string]*Room
	mutex        sync.RWMutex
	catalog      *game.Catalog
	db           persistence.Database
	broadcaster  Broadcaster
	maxHealth    int
	startingHand int
	closeChan    chan struct{}
	closeOnce    sync.Once
}

// NewManager 创建一个新的房间管理器
func NewManager(catalog *game.Catalog, db persistence.Database, maxHealth, startingHand int) *Manager {
	return &Manager{
		rooms:        make(map[string]*Room),
		catalog:      catalog,
		db:           db,
		maxHealth:    maxHealth,
		startingHand: startingHand,
		closeChan:    make(chan struct{}),
	}
}

// SetBroadcaster wires the broadcaster after construction; the broadcaster
// itself needs the manager, so this breaks the chicken-and-egg setup.
func (m *Manager) SetBroadcaster(b Broadcaster) {
	m.broadcaster = b
}

// GetOrCreateRoom returns the room with the given id, creating it on demand.
func (m *Manager) GetOrCreateRoom(id, name string) *Room {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if room, exists := m.rooms[id]; exists {
		return room
	}
	if name == "" {
		name = "Room " + id
	}
	room := NewRoom(id, name, m.catalog, m.db, m.broadcaster, m.maxHealth, m.startingHand)
	m.rooms[id] = room
	return room
}

// GetRoom 从管理器中获取一个房间
func (m *Manager) GetRoom(id string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	room, exists := m.rooms[id]
	return room, exists
}

// RemoveRoom 从管理器中移除一个房间并删除其持久化记录
func (m *Manager) RemoveRoom(id string) {
	m.mutex.Lock()
	room, exists := m.rooms[id]
	if exists {
		delete(m.rooms, id)
	}
	m.mutex.Unlock()

	if !exists {
		return
	}
	if err := writeWithRetry(func() error { return m.db.DeleteRoom(room.ID) }); err != nil {
		logger.Log.Errorf("Room %s: deleting room record failed: %v", room.ID, err)
	}
}

// RoomInfos returns the lobby view of every room, oldest first.
func (m *Manager) RoomInfos() []models.RoomInfo {
	m.mutex.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	m.mutex.RUnlock()

	infos := make([]models.RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		infos = append(infos, room.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}

// Rehydrate recreates rooms from persisted records after a restart.
func (m *Manager) Rehydrate() error {
	records, err := m.db.LoadRooms()
	if err != nil {
		return err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, record := range records {
		var snap roomSnapshot
		if err := models.FromSnapshot(record.Snapshot, &snap); err != nil {
			logger.Log.Warnf("Skipping unreadable room record %s: %v", record.RoomID, err)
			continue
		}
		if snap.Match == nil || snap.Match.Status == game.StatusFinished {
			continue
		}

		room := NewRoom(snap.ID, snap.Name, m.catalog, m.db, m.broadcaster, m.maxHealth, m.startingHand)
		room.Match = snap.Match
		room.CreatedAt = time.UnixMilli(snap.CreatedAt)
		m.rooms[snap.ID] = room
		logger.Log.Infof("Rehydrated room %s (%s) with %d players", snap.ID, snap.Name, len(snap.Match.Players))
	}
	return nil
}

// StartJanitor periodically tears down rooms that have sat empty longer
// than idleAfter.
func (m *Manager) StartJanitor(interval, idleAfter time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.sweepEmptyRooms(idleAfter)
			case <-m.closeChan:
				return
			}
		}
	}()
}

func (m *Manager) sweepEmptyRooms(idleAfter time.Duration) {
	m.mutex.RLock()
	candidates := make([]*Room, 0)
	for _, room := range m.rooms {
		candidates = append(candidates, room)
	}
	m.mutex.RUnlock()

	removed := false
	now := time.Now()
	for _, room := range candidates {
		room.mu.Lock()
		empty := len(room.Match.Players) == 0 && now.Sub(room.lastActivity) > idleAfter
		room.mu.Unlock()

		if empty {
			logger.Log.Infof("Tearing down empty room %s", room.ID)
			m.RemoveRoom(room.ID)
			removed = true
		}
	}

	if removed && m.broadcaster != nil {
		m.broadcaster.BroadcastToAll(network.MsgRoomsUpdate, m.RoomInfos())
	}
}

// Close stops the janitor loop.
func (m *Manager) Close() {
	m.closeOnce.Do(func() { close(m.closeChan) })
}
