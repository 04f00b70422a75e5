package realtime

import (
	"sync"

	"messenger/pkg/logger"
)

// Registry владеет всем эфемерным состоянием realtime-слоя: подключения по
// пользователям, комнаты, присутствие и индикаторы набора. Создаётся один раз
// в main и передаётся по ссылке — никаких пакетных синглтонов.
type Registry struct {
	mu sync.RWMutex

	connections map[string]map[*Client]struct{} // user id -> живые подключения
	rooms       map[string]map[*Client]struct{} // chat id -> подключения в комнате
	presence    map[string]map[string]struct{}  // chat id -> user id в комнате
	typing      map[string]map[string]struct{}  // chat id -> набирающие user id

	log logger.Logger
}

func NewRegistry(log logger.Logger) *Registry {
	return &Registry{
		connections: make(map[string]map[*Client]struct{}),
		rooms:       make(map[string]map[*Client]struct{}),
		presence:    make(map[string]map[string]struct{}),
		typing:      make(map[string]map[string]struct{}),
		log:         log,
	}
}

// Register добавляет аутентифицированное подключение; true — это первое
// живое подключение пользователя
func (r *Registry) Register(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.connections[c.userID]
	if !ok {
		conns = make(map[*Client]struct{})
		r.connections[c.userID] = conns
	}
	conns[c] = struct{}{}
	return len(conns) == 1
}

// Unregister убирает подключение из всех комнат и наборов; возвращает,
// было ли оно последним у пользователя, и список чатов, где пользователь
// числился набирающим
func (r *Registry) Unregister(c *Client) (last bool, typingCleared []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.userID == "" {
		return false, nil
	}

	if conns, ok := r.connections[c.userID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(r.connections, c.userID)
			last = true
		}
	}

	for chatID := range c.rooms {
		if r.leaveRoomLocked(c, chatID) {
			typingCleared = append(typingCleared, chatID)
		}
	}

	return last, typingCleared
}

func (r *Registry) JoinRoom(c *Client, chatID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[chatID]
	if !ok {
		room = make(map[*Client]struct{})
		r.rooms[chatID] = room
	}
	room[c] = struct{}{}
	c.rooms[chatID] = struct{}{}

	users, ok := r.presence[chatID]
	if !ok {
		users = make(map[string]struct{})
		r.presence[chatID] = users
	}
	users[c.userID] = struct{}{}
}

// LeaveRoom возвращает true, если при выходе был сброшен индикатор набора
func (r *Registry) LeaveRoom(c *Client, chatID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveRoomLocked(c, chatID)
}

func (r *Registry) leaveRoomLocked(c *Client, chatID string) (typingCleared bool) {
	if room, ok := r.rooms[chatID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(r.rooms, chatID)
		}
	}
	delete(c.rooms, chatID)

	// Присутствие снимается, только если других подключений пользователя
	// в этой комнате не осталось
	stillHere := false
	for other := range r.rooms[chatID] {
		if other.userID == c.userID {
			stillHere = true
			break
		}
	}
	if !stillHere {
		if users, ok := r.presence[chatID]; ok {
			delete(users, c.userID)
			if len(users) == 0 {
				delete(r.presence, chatID)
			}
		}
	}

	if users, ok := r.typing[chatID]; ok {
		if _, wasTyping := users[c.userID]; wasTyping {
			delete(users, c.userID)
			typingCleared = true
		}
		if len(users) == 0 {
			delete(r.typing, chatID)
		}
	}
	return typingCleared
}

func (r *Registry) InRoom(c *Client, chatID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := c.rooms[chatID]
	return ok
}

// RoomClients возвращает снимок подключений комнаты
func (r *Registry) RoomClients(chatID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[chatID]
	clients := make([]*Client, 0, len(room))
	for c := range room {
		clients = append(clients, c)
	}
	return clients
}

// UserClients возвращает снимок всех подключений пользователя
func (r *Registry) UserClients(userID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.connections[userID]
	clients := make([]*Client, 0, len(conns))
	for c := range conns {
		clients = append(clients, c)
	}
	return clients
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections[userID]) > 0
}

// SetTyping переключает индикатор; false в changed — состояние не поменялось
func (r *Registry) SetTyping(chatID, userID string, isTyping bool) (changed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, ok := r.typing[chatID]
	if isTyping {
		if !ok {
			users = make(map[string]struct{})
			r.typing[chatID] = users
		}
		if _, exists := users[userID]; exists {
			return false
		}
		users[userID] = struct{}{}
		return true
	}

	if !ok {
		return false
	}
	if _, exists := users[userID]; !exists {
		return false
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(r.typing, chatID)
	}
	return true
}

func (r *Registry) TypingUsers(chatID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := r.typing[chatID]
	ids := make([]string, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	return ids
}

func (r *Registry) PresentUsers(chatID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := r.presence[chatID]
	ids := make([]string, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	return ids
}
