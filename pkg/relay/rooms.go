package relay

import (
	"errors"
	"sync"

	"github.com/babelcall/babelcall/pkg/com"
	"github.com/babelcall/babelcall/pkg/logger"
)

// roomCap limits every room to one pair of peers.
const roomCap = 2

var (
	ErrRoomExists    = errors.New("room already exists")
	ErrRoomNotFound  = errors.New("room does not exist")
	ErrWrongPassword = errors.New("incorrect password")
	ErrRoomFull      = errors.New("room is full")
)

type Room struct {
	id       string
	password string
	// ordered by the join time
	users []com.Uid
}

// Registry is the source of truth for room existence and membership
// on the relay. All the state is in process memory only, every
// mutation is a critical section over the room map.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room
	log   *logger.Logger
}

func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{rooms: make(map[string]*Room, 10), log: log}
}

// Create makes a new room with the caller as its sole participant.
func (r *Registry) Create(rid string, password string, caller com.Uid) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[rid]; ok {
		return ErrRoomExists
	}
	r.rooms[rid] = &Room{id: rid, password: password, users: []com.Uid{caller}}
	r.log.Info().Msgf("User %s created room [%v]", caller.Short(), rid)
	metricRooms.Inc()
	return nil
}

// Join adds the caller as the second participant of the room and
// returns the id of the already present peer.
func (r *Registry) Join(rid string, password string, caller com.Uid) (peer com.Uid, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[rid]
	if !ok {
		return com.NilUid, ErrRoomNotFound
	}
	if room.password != "" && room.password != password {
		return com.NilUid, ErrWrongPassword
	}
	if len(room.users) >= roomCap {
		return com.NilUid, ErrRoomFull
	}
	peer = room.users[0]
	room.users = append(room.users, caller)
	r.log.Info().Msgf("User %s joined room [%v]", caller.Short(), rid)
	return peer, nil
}

// Leave removes the caller from whichever room lists it and deletes
// the room when it becomes empty. Safe to call for callers that
// were never in any room.
func (r *Registry) Leave(caller com.Uid) (rid string, peer com.Uid, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, room := range r.rooms {
		for i, u := range room.users {
			if u != caller {
				continue
			}
			room.users = append(room.users[:i], room.users[i+1:]...)
			if len(room.users) == 0 {
				delete(r.rooms, room.id)
				metricRooms.Dec()
				r.log.Info().Msgf("Room [%v] has been closed", room.id)
				return room.id, com.NilUid, true
			}
			return room.id, room.users[0], true
		}
	}
	return "", com.NilUid, false
}

// Mates returns every member of the room when the caller is one of them.
func (r *Registry) Mates(rid string, caller com.Uid) ([]com.Uid, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[rid]
	if !ok {
		return nil, false
	}
	member := false
	for _, u := range room.users {
		if u == caller {
			member = true
			break
		}
	}
	if !member {
		return nil, false
	}
	users := make([]com.Uid, len(room.users))
	copy(users, room.users)
	return users, true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}
