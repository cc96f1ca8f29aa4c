package realtime

import (
	"encoding/json"
	"sync"
)

// Intent is the last-declared interest one owner expressed for a topic. It
// is re-asserted to the server on every connected transition because
// server-side subscription state does not survive a disconnect.
type Intent struct {
	Topic  Topic
	Filter Filter
}

type intentKey struct {
	topic Topic
	owner uint64
}

// intentSet tracks at most one intent per (topic, owner); re-declaring
// replaces the prior one.
type intentSet struct {
	mu        sync.Mutex
	nextOwner uint64
	desired   map[intentKey]Intent
}

func newIntentSet() *intentSet {
	return &intentSet{desired: make(map[intentKey]Intent)}
}

func (s *intentSet) declare(topic Topic, filter Filter) (owner uint64) {
	s.mu.Lock()
	s.nextOwner++
	owner = s.nextOwner
	s.desired[intentKey{topic: topic, owner: owner}] = Intent{Topic: topic, Filter: filter}
	s.mu.Unlock()
	return owner
}

func (s *intentSet) redeclare(topic Topic, owner uint64, filter Filter) {
	s.mu.Lock()
	s.desired[intentKey{topic: topic, owner: owner}] = Intent{Topic: topic, Filter: filter}
	s.mu.Unlock()
}

// revoke removes the owner's intent and reports whether any other owner is
// still interested in the same farm.
func (s *intentSet) revoke(topic Topic, owner uint64) (farmID string, farmStillWanted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := intentKey{topic: topic, owner: owner}
	intent, ok := s.desired[key]
	if !ok {
		return "", true
	}
	delete(s.desired, key)
	for _, other := range s.desired {
		if other.Filter.FarmID == intent.Filter.FarmID {
			return intent.Filter.FarmID, true
		}
	}
	return intent.Filter.FarmID, false
}

// wants reports whether any desired intent still targets the farm.
func (s *intentSet) wants(farmID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, intent := range s.desired {
		if intent.Filter.FarmID == farmID {
			return true
		}
	}
	return false
}

// farms returns the distinct farm ids across all desired intents.
func (s *intentSet) farms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{}, len(s.desired))
	out := make([]string, 0, len(s.desired))
	for _, intent := range s.desired {
		if intent.Filter.FarmID == "" {
			continue
		}
		if _, ok := seen[intent.Filter.FarmID]; ok {
			continue
		}
		seen[intent.Filter.FarmID] = struct{}{}
		out = append(out, intent.Filter.FarmID)
	}
	return out
}

func (s *intentSet) clear() {
	s.mu.Lock()
	s.desired = make(map[intentKey]Intent)
	s.mu.Unlock()
}

func (s *intentSet) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.desired)
}

// joinFarmPayload is the body of a join_farm / leave_farm control message.
type joinFarmPayload struct {
	FarmID string `json:"farmId"`
}

func encodeFarmControl(farmID string) []byte {
	payload, err := json.Marshal(joinFarmPayload{FarmID: farmID})
	if err != nil {
		return nil
	}
	return payload
}
