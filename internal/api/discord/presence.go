package discord

import (
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/osa030/drum/internal/app/notification"
)

// presence keeps the bot's listening status in line with playback
// notifications. Notifications may arrive out of order; per-guild sequence
// numbers keep the latest one.
type presence struct {
	mu      sync.Mutex
	update  func(text string) error
	name    string
	online  bool
	playing map[string]bool
	seq     map[string]uint64
	shown   string
}

func newPresence(update func(text string) error) *presence {
	return &presence{
		update:  update,
		online:  true,
		playing: make(map[string]bool),
		seq:     make(map[string]uint64),
	}
}

// ready records the bot username and publishes the current status.
func (p *presence) ready(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.name = name
	p.shown = ""
	return p.publishLocked()
}

// Send applies one notification.
func (p *presence) Send(n *notification.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Engine status is tracked under the empty guild id.
	key := n.GuildID
	if n.Type == notification.TypeEngineStatus {
		key = ""
	}
	if n.SequenceNo <= p.seq[key] {
		return nil
	}
	p.seq[key] = n.SequenceNo

	switch n.Type {
	case notification.TypeTrackStarted:
		p.playing[n.GuildID] = true
	case notification.TypeQueueEnded, notification.TypeSessionClosed:
		delete(p.playing, n.GuildID)
	case notification.TypeEngineStatus:
		p.online = n.Online
		if !n.Online {
			clear(p.playing)
		}
	default:
		return nil
	}
	return p.publishLocked()
}

func (p *presence) text() string {
	base := "@" + p.name + " help"
	switch {
	case !p.online:
		return base + " | music offline"
	case len(p.playing) == 1:
		return base + " | playing in 1 server"
	case len(p.playing) > 1:
		return fmt.Sprintf("%s | playing in %d servers", base, len(p.playing))
	}
	return base
}

func (p *presence) publishLocked() error {
	if p.name == "" {
		return nil
	}
	text := p.text()
	if text == p.shown {
		return nil
	}
	if err := p.update(text); err != nil {
		return errors.Wrapf(err, "failed to update presence: text=%q", text)
	}
	p.shown = text
	return nil
}
