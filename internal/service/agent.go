package service

import (
	"strconv"
	"sync"
)

// AgentIdentifier maps a transport-level connection to the stable agentId
// the cache and response interceptor key their state on. The mapping from
// transport identity to agentId is pluggable but deterministic per
// connection.
type AgentIdentifier interface {
	// AgentID returns the agentId for connID, minting one on first use.
	AgentID(connID string) string
}

// SingleClientIdentifier backs the single stdio client: it mints one
// synthetic id per distinct connID and returns the same id for repeat
// lookups of that connID. A future multi-client transport swaps this
// implementation without touching any caller.
type SingleClientIdentifier struct {
	mu  sync.Mutex
	ids map[string]string
	n   int
}

// NewSingleClientIdentifier returns an AgentIdentifier that assigns the
// first connection "agent_1", the next (if any) "agent_2", and so on.
func NewSingleClientIdentifier() *SingleClientIdentifier {
	return &SingleClientIdentifier{ids: make(map[string]string)}
}

func (s *SingleClientIdentifier) AgentID(connID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.ids[connID]; ok {
		return id
	}
	s.n++
	id := "agent_" + strconv.Itoa(s.n)
	s.ids[connID] = id
	return id
}
