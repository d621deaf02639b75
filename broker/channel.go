package broker

import (
	"sort"
)

// ChannelKind decides how a channel delivers messages.
type ChannelKind int

const (
	// Broadcast channels deliver async messages to everyone but the sender.
	Broadcast ChannelKind = iota
	// Unicast channels deliver each message to a single subscriber.
	Unicast
)

func (k ChannelKind) String() string {
	if k == Unicast {
		return "unicast"
	}
	return "broadcast"
}

// ParseChannelKind parses "broadcast" or "unicast".
func ParseChannelKind(kind string) (ChannelKind, bool) {
	switch kind {
	case "broadcast":
		return Broadcast, true
	case "unicast":
		return Unicast, true
	default:
		return Broadcast, false
	}
}

// ChannelConfig describes a channel created at start.
type ChannelConfig struct {
	Name string
	Kind ChannelKind
}

// DefaultChannels returns the channels used by gateways and workers.
func DefaultChannels(main, health, invocation string) []ChannelConfig {
	return []ChannelConfig{
		{Name: main, Kind: Broadcast},
		{Name: health, Kind: Broadcast},
		{Name: invocation, Kind: Unicast},
	}
}

// ChannelInfo describes a channel.
type ChannelInfo struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Members     int    `json:"members"`
	Subscribers int    `json:"subscribers"`
}

type channel struct {
	name        string
	kind        ChannelKind
	members     map[string]struct{}
	subscribers map[string]struct{}
	// order of subscribers for round robin
	order []string
	next  int
}

func newChannel(name string, kind ChannelKind) *channel {
	return &channel{
		name:        name,
		kind:        kind,
		members:     map[string]struct{}{},
		subscribers: map[string]struct{}{},
	}
}

func (ch *channel) join(id string) {
	ch.members[id] = struct{}{}
}

func (ch *channel) subscribe(id string) {
	if _, ok := ch.subscribers[id]; ok {
		return
	}
	ch.subscribers[id] = struct{}{}
	ch.order = append(ch.order, id)
}

// leave removes the client and reports which memberships it had.
func (ch *channel) leave(id string) (member, subscriber bool) {
	if _, member = ch.members[id]; member {
		delete(ch.members, id)
	}
	if _, subscriber = ch.subscribers[id]; subscriber {
		delete(ch.subscribers, id)
		for i, sid := range ch.order {
			if sid == id {
				ch.order = append(ch.order[:i], ch.order[i+1:]...)
				if ch.next > i {
					ch.next--
				}
				break
			}
		}
	}
	return member, subscriber
}

func (ch *channel) has(id string) bool {
	_, member := ch.members[id]
	_, subscriber := ch.subscribers[id]
	return member || subscriber
}

// pick returns the next subscriber in round robin order other than exclude, or an empty string.
func (ch *channel) pick(exclude string) string {
	n := len(ch.order)
	for i := 0; i < n; i++ {
		idx := (ch.next + i) % n
		if id := ch.order[idx]; id != exclude {
			ch.next = (idx + 1) % n
			return id
		}
	}
	return ""
}

// everyone returns members and subscribers without duplicates.
func (ch *channel) everyone() []string {
	ids := map[string]struct{}{}
	for id := range ch.members {
		ids[id] = struct{}{}
	}
	for id := range ch.subscribers {
		ids[id] = struct{}{}
	}
	return sorted(ids)
}

func (ch *channel) info() ChannelInfo {
	return ChannelInfo{
		Name:        ch.name,
		Kind:        ch.kind.String(),
		Members:     len(ch.members),
		Subscribers: len(ch.subscribers),
	}
}

func sorted(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
