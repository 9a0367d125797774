package server

import (
	"context"
	"encoding/json"
	"net/http"
	std_rpc "net/rpc"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/wfunc/cardbattle/broadcast"
	"github.com/wfunc/cardbattle/config"
	"github.com/wfunc/cardbattle/game"
	"github.com/wfunc/cardbattle/logger"
	"github.com/wfunc/cardbattle/monitor"
	"github.com/wfunc/cardbattle/network"
	"github.com/wfunc/cardbattle/persistence"
	"github.com/wfunc/cardbattle/room"
	gameserver_rpc "github.com/wfunc/cardbattle/rpc"
	"github.com/wfunc/cardbattle/services"
	"github.com/wfunc/cardbattle/session"
)

// GameServer is the session gateway: it accepts websocket connections,
// dispatches client commands to the owning room and fans resulting events
// out to subscribers.
type GameServer struct {
	httpAddr       string
	metricsAddr    string
	upgrader       websocket.Upgrader
	roomManager    *room.Manager
	sessionManager *session.Manager
	leaderboard    *services.LeaderboardService
	broadcaster    broadcast.Broadcaster
	rpcServer      *gameserver_rpc.Server
	mon            *monitor.Monitor
	httpServer     *http.Server
	metricsServer  *http.Server
	shutdownChan   chan struct{}
}

func NewGameServer(cfg *config.Config, db persistence.Database, catalog *game.Catalog, leaderboard *services.LeaderboardService) *GameServer {
	s := &GameServer{
		httpAddr:       cfg.Server.HTTPAddress,
		metricsAddr:    cfg.Server.MetricsAddress,
		roomManager:    room.NewManager(catalog, db, cfg.Game.MaxHealth, cfg.Game.StartingHand),
		sessionManager: session.NewManager(),
		leaderboard:    leaderboard,
		mon:            monitor.NewMonitor("cardbattle"),
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	// 初始化广播器
	s.broadcaster = broadcast.NewRoomBroadcaster(s.roomManager, s.sessionManager)
	s.roomManager.SetBroadcaster(s.broadcaster)

	// 初始化RPC服务器
	rpcServer, err := gameserver_rpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer

	// 注册RPC服务
	admin := gameserver_rpc.NewAdminService(leaderboard)
	if err := std_rpc.RegisterName("Admin", admin); err != nil {
		logger.Log.Fatalf("Failed to register admin RPC service: %v", err)
	}

	return s
}

// Rehydrate restores persisted rooms after a restart.
func (s *GameServer) Rehydrate() error {
	if err := s.roomManager.Rehydrate(); err != nil {
		return err
	}
	s.mon.SetActiveRooms(s.roomManager.Count())
	return nil
}

func (s *GameServer) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	s.httpServer = &http.Server{Addr: s.httpAddr, Handler: mux}
	s.metricsServer = &http.Server{Addr: s.metricsAddr, Handler: s.mon.Handler()}

	s.roomManager.StartJanitor(30*time.Second, 2*time.Minute)

	var g errgroup.Group
	g.Go(func() error {
		logger.Log.Infof("Game server listening on %s", s.httpAddr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		s.rpcServer.Start()
		return nil
	})
	g.Go(func() error {
		logger.Log.Infof("Metrics server listening on %s", s.metricsAddr)
		if err := s.metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	return g.Wait()
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	s.roomManager.Close()
	s.rpcServer.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.httpServer != nil {
		s.httpServer.Shutdown(ctx)
	}
	if s.metricsServer != nil {
		s.metricsServer.Shutdown(ctx)
	}
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	s.mon.IncOnlinePlayers()

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.sessionManager.Remove(sess.GetID())
		s.mon.DecOnlinePlayers()
		// 断线不判负：玩家仍留在比赛中，等待重连后的下一条指令
		if sess.RoomID != "" {
			if r, exists := s.roomManager.GetRoom(sess.RoomID); exists {
				r.RemoveSession(sess.GetID())
			}
		}
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			msg, err := wsConn.ReadMessage()
			if err != nil {
				if err == network.ErrMalformedMessage {
					sess.SendError("malformed message")
					continue
				}
				return
			}
			s.handleMessage(sess, msg)
		}
	}
}

type roomPayload struct {
	RoomID string `json:"roomId"`
}

type joinRoomPayload struct {
	RoomID     string `json:"roomId"`
	PlayerName string `json:"playerName"`
}

type playerPayload struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
}

type playCardPayload struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
	CardID   string `json:"cardId"`
	Answer   string `json:"answer"`
}

type drawCardPayload struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
	CardType string `json:"cardType,omitempty"`
}

func (s *GameServer) handleMessage(sess *session.Session, msg *network.Message) {
	start := time.Now()
	s.mon.IncMessagesReceived()
	defer func() {
		s.mon.ObserveMessageLatency(time.Since(start))
	}()

	switch msg.Type {
	case network.MsgRequestRooms:
		s.handleRequestRooms(sess)
	case network.MsgRequestGameState:
		s.handleRequestGameState(sess, msg)
	case network.MsgJoinRoom:
		s.handleJoinRoom(sess, msg)
	case network.MsgLeaveRoom:
		s.handleLeaveRoom(sess, msg)
	case network.MsgPlayerReady:
		s.handlePlayerReady(sess, msg)
	case network.MsgPlayCard:
		s.handlePlayCard(sess, msg)
	case network.MsgDrawCard:
		s.handleDrawCard(sess, msg)
	default:
		logger.Log.Infof("Unknown message type: %s", msg.Type)
		sess.SendError("unknown message type: " + msg.Type)
	}
}

func (s *GameServer) handleRequestRooms(sess *session.Session) {
	sess.Send(network.MsgRoomsUpdate, s.roomManager.RoomInfos())
}

func (s *GameServer) handleRequestGameState(sess *session.Session, msg *network.Message) {
	var req roomPayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		sess.SendError("malformed payload")
		return
	}

	r, exists := s.roomManager.GetRoom(req.RoomID)
	if !exists {
		sess.SendError(game.ErrRoomNotFound.Error())
		return
	}
	r.SendState(sess)
}

func (s *GameServer) handleJoinRoom(sess *session.Session, msg *network.Message) {
	var req joinRoomPayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		sess.SendError("malformed payload")
		return
	}
	if req.RoomID == "" || req.PlayerName == "" {
		sess.SendError("roomId and playerName are required")
		return
	}

	// 房间按需创建
	r := s.roomManager.GetOrCreateRoom(req.RoomID, "")
	player, err := r.Join(sess, req.PlayerName)
	if err != nil {
		sess.SendError(err.Error())
		return
	}

	logger.Log.Infof("Player %s (%s) joined room %s as team %s", player.Name, player.ID, r.ID, player.Team)
	s.broadcastLobby()
}

func (s *GameServer) handleLeaveRoom(sess *session.Session, msg *network.Message) {
	var req playerPayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		sess.SendError("malformed payload")
		return
	}

	r, exists := s.roomManager.GetRoom(req.RoomID)
	if !exists {
		sess.SendError(game.ErrRoomNotFound.Error())
		return
	}

	if err := r.Leave(req.PlayerID); err != nil {
		sess.SendError(err.Error())
		return
	}
	r.RemoveSession(sess.GetID())
	sess.Unbind()

	// 空房间立即回收
	if r.PlayerCount() == 0 {
		s.roomManager.RemoveRoom(r.ID)
	}
	s.broadcastLobby()
}

func (s *GameServer) handlePlayerReady(sess *session.Session, msg *network.Message) {
	var req playerPayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		sess.SendError("malformed payload")
		return
	}

	r, exists := s.roomManager.GetRoom(req.RoomID)
	if !exists {
		sess.SendError(game.ErrRoomNotFound.Error())
		return
	}

	if err := r.SetReady(req.PlayerID); err != nil {
		sess.SendError(err.Error())
		return
	}
	s.broadcastLobby()
}

func (s *GameServer) handlePlayCard(sess *session.Session, msg *network.Message) {
	var req playCardPayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		sess.SendError("malformed payload")
		return
	}

	r, exists := s.roomManager.GetRoom(req.RoomID)
	if !exists {
		sess.SendError(game.ErrRoomNotFound.Error())
		return
	}

	results, err := r.PlayCard(req.PlayerID, req.CardID, req.Answer)
	if err != nil {
		sess.SendError(err.Error())
		return
	}

	if results != nil {
		s.recordResults(results)
		s.mon.IncMatchesCompleted()
	}
	s.broadcastLobby()
}

func (s *GameServer) handleDrawCard(sess *session.Session, msg *network.Message) {
	var req drawCardPayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		sess.SendError("malformed payload")
		return
	}

	r, exists := s.roomManager.GetRoom(req.RoomID)
	if !exists {
		sess.SendError(game.ErrRoomNotFound.Error())
		return
	}

	if err := r.DrawCard(req.PlayerID, game.CardType(req.CardType)); err != nil {
		sess.SendError(err.Error())
		return
	}
}

// recordResults updates the leaderboard exactly once per player of a
// finished match.
func (s *GameServer) recordResults(results []game.PlayerResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, result := range results {
		if err := s.leaderboard.Record(ctx, result.PlayerName, result.Won, result.Score, result.DamageDealt); err != nil {
			logger.Log.Errorf("Failed to record leaderboard entry for %s: %v", result.PlayerName, err)
		}
	}
}

// broadcastLobby pushes the full room list to every connected client.
func (s *GameServer) broadcastLobby() {
	s.mon.SetActiveRooms(s.roomManager.Count())
	s.broadcaster.BroadcastToAll(network.MsgRoomsUpdate, s.roomManager.RoomInfos())
}
