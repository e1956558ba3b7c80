package domain

import (
	"strings"
	"time"
)

// IDGenerator mints opaque identifiers
type IDGenerator func() string

// JoinRequest describes a connection asking to bind to a room
type JoinRequest struct {
	ConnectionID string
	PresentedID  string // persistent id stored by the client, may be empty
	Name         string
	Spectator    bool
	Avatar       string // assigned to fresh players only
}

// BindResult describes how a connection was attached to the room
type BindResult struct {
	Role         Role
	Player       *Player // nil for the GM seat
	PersistentID string
	PublicID     string
	Name         string
	Reconnected  bool
	Duplicate    bool   // same connection already bound to the same identity
	StaleConnID  string // previous connection of a reconnecting identity
}

// Bind resolves a connection to a logical participant.
// A presented id matching the GM token or a known player reconnects that seat;
// any other id, or none, creates a fresh player.
func (r *Room) Bind(req JoinRequest, newID IDGenerator, now time.Time) (BindResult, error) {
	if req.ConnectionID == "" {
		return BindResult{}, ErrPlayerNotFound
	}

	if req.PresentedID != "" && req.PresentedID == r.GameMasterID {
		return r.bindGameMaster(req.ConnectionID), nil
	}

	if req.PresentedID != "" {
		if p, ok := r.Players[req.PresentedID]; ok {
			return r.rebind(p, req.ConnectionID, now), nil
		}
	}

	return r.join(req, newID, now)
}

func (r *Room) bindGameMaster(connID string) BindResult {
	res := BindResult{
		Role:         RoleGameMaster,
		PersistentID: r.GameMasterID,
		PublicID:     r.GameMasterPublicID,
		Name:         r.GameMasterName,
		Reconnected:  r.GameMasterConnID != "",
	}
	if r.GameMasterActive && r.GameMasterConnID == connID {
		res.Duplicate = true
		return res
	}
	if r.GameMasterConnID != connID {
		res.StaleConnID = r.GameMasterConnID
	}
	r.GameMasterConnID = connID
	r.GameMasterActive = true
	if r.gmSeat != nil {
		r.gmSeat.ConnectionID = connID
		r.gmSeat.IsActive = true
	}
	if r.GameMasterBoard != nil {
		r.GameMasterBoard.ConnectionID = connID
	}
	return res
}

func (r *Room) rebind(p *Player, connID string, now time.Time) BindResult {
	res := BindResult{
		Role:         p.Role(),
		Player:       p,
		PersistentID: p.PersistentID,
		PublicID:     p.ID,
		Name:         p.Name,
		Reconnected:  true,
	}
	if p.IsActive && p.ConnectionID == connID {
		res.Duplicate = true
		return res
	}

	old := p.ConnectionID
	if old != connID {
		res.StaleConnID = old
		delete(r.connections, old)
		if board, ok := r.Boards[old]; ok {
			delete(r.Boards, old)
			board.ConnectionID = connID
			r.Boards[connID] = board
		}
	}
	r.releaseConnection(connID, p.PersistentID, now)
	r.connections[connID] = p.PersistentID
	p.Reconnect(connID, now)
	return res
}

func (r *Room) join(req JoinRequest, newID IDGenerator, now time.Time) (BindResult, error) {
	if r.IsConcluded {
		return BindResult{}, ErrGameConcluded
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		if !req.Spectator {
			return BindResult{}, ErrNameRequired
		}
		name = "Spectator"
	}
	if !req.Spectator && len(r.Players) >= r.Settings.MaxPlayers {
		return BindResult{}, ErrRoomFull
	}

	r.releaseConnection(req.ConnectionID, "", now)

	p := NewPlayer(newID(), newID(), req.ConnectionID, name, r.Settings.StartingLives, req.Spectator, now)
	p.Avatar = req.Avatar
	r.Players[p.PersistentID] = p
	r.connections[req.ConnectionID] = p.PersistentID

	return BindResult{
		Role:         p.Role(),
		Player:       p,
		PersistentID: p.PersistentID,
		PublicID:     p.ID,
		Name:         p.Name,
	}, nil
}

// releaseConnection detaches connID from any other identity it was bound to
func (r *Room) releaseConnection(connID, keep string, now time.Time) {
	pid, ok := r.connections[connID]
	if !ok || pid == keep {
		return
	}
	delete(r.connections, connID)
	if p, ok := r.Players[pid]; ok && p.ConnectionID == connID {
		p.Disconnect(now)
	}
}

// DisconnectResult describes a connection leaving the room
type DisconnectResult struct {
	Role     Role
	Player   *Player // nil for the GM seat
	PublicID string
	Name     string
}

// Disconnect marks the participant bound to connID inactive. Stale connections
// that were already replaced by a reconnect are ignored and return false.
func (r *Room) Disconnect(connID string, now time.Time) (DisconnectResult, bool) {
	if r.GameMasterConnID == connID && r.GameMasterActive {
		r.GameMasterActive = false
		if r.gmSeat != nil {
			r.gmSeat.IsActive = false
		}
		return DisconnectResult{
			Role:     RoleGameMaster,
			PublicID: r.GameMasterPublicID,
			Name:     r.GameMasterName,
		}, true
	}

	p, ok := r.PlayerByConnection(connID)
	if !ok {
		delete(r.connections, connID)
		return DisconnectResult{}, false
	}
	if !p.IsActive {
		return DisconnectResult{}, false
	}
	p.Disconnect(now)
	return DisconnectResult{
		Role:     p.Role(),
		Player:   p,
		PublicID: p.ID,
		Name:     p.Name,
	}, true
}
