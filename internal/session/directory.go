package session

import "sync"

// Channel names the three logical channels a client can hold a session on.
type Channel string

const (
	ChannelExchange Channel = "exchange"
	ChannelRide     Channel = "ride"
	ChannelChat     Channel = "chat"
)

// Directory maps userID to the active session handle per channel. A rejoin
// overwrites the stale handle; at most one live handle per user per channel.
type Directory struct {
	mu       sync.RWMutex
	channels map[Channel]map[string]string
}

func NewDirectory() *Directory {
	return &Directory{channels: make(map[Channel]map[string]string)}
}

// Register records sessionID as the user's live handle on the channel,
// replacing any previous one.
func (d *Directory) Register(ch Channel, userID, sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m := d.channels[ch]
	if m == nil {
		m = make(map[string]string)
		d.channels[ch] = m
	}
	m[userID] = sessionID
}

// Lookup returns the user's session handle on the channel, if any.
func (d *Directory) Lookup(ch Channel, userID string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	sid, ok := d.channels[ch][userID]
	return sid, ok
}

// Remove drops the user's entry only if it still holds sessionID, so the
// teardown of an old connection cannot evict a fresh one that already
// replaced it.
func (d *Directory) Remove(ch Channel, userID, sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.channels[ch][userID]; ok && cur == sessionID {
		delete(d.channels[ch], userID)
	}
}
