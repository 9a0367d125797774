package rpc

import (
	"context"
	"net"
	"net/rpc"

	"github.com/wfunc/cardbattle/logger"
	"github.com/wfunc/cardbattle/models"
	"github.com/wfunc/cardbattle/services"
)

// Server manages the RPC listener for the administrative interface.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Check if the error is due to the listener being closed.
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// AdminService exposes the administrative operations over net/rpc.
type AdminService struct {
	leaderboard *services.LeaderboardService
}

func NewAdminService(leaderboard *services.LeaderboardService) *AdminService {
	return &AdminService{leaderboard: leaderboard}
}

type ResetLeaderboardArgs struct{}

type ResetLeaderboardReply struct {
	Success bool
	Message string
}

// ResetLeaderboard irreversibly empties the whole ledger. There are no
// partial-clear semantics.
func (a *AdminService) ResetLeaderboard(args *ResetLeaderboardArgs, reply *ResetLeaderboardReply) error {
	if err := a.leaderboard.Reset(context.Background()); err != nil {
		reply.Success = false
		reply.Message = err.Error()
		return err
	}
	logger.Log.Warn("Leaderboard has been reset by admin request")
	reply.Success = true
	reply.Message = "leaderboard has been reset"
	return nil
}

type PlayerStatsArgs struct {
	PlayerName string
}

type PlayerStatsReply struct {
	Entry *models.LeaderboardEntry
}

// PlayerStats returns one player's aggregated leaderboard entry.
func (a *AdminService) PlayerStats(args *PlayerStatsArgs, reply *PlayerStatsReply) error {
	entry, err := a.leaderboard.PlayerStats(context.Background(), args.PlayerName)
	if err != nil {
		return err
	}
	reply.Entry = entry
	return nil
}

type TopScoresArgs struct {
	Limit int
}

type TopScoresReply struct {
	Entries []*models.LeaderboardEntry
}

// TopScores returns the ordered leaderboard, bounded by Limit when > 0.
func (a *AdminService) TopScores(args *TopScoresArgs, reply *TopScoresReply) error {
	entries, err := a.leaderboard.Query(context.Background(), args.Limit)
	if err != nil {
		return err
	}
	reply.Entries = entries
	return nil
}
