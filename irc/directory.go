// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package irc

import (
	"strings"
	"sync"
)

// Directory is the synchronized store of every channel (and, through
// the channels, every user) the session currently tracks. All lookups
// are case-insensitive. A fresh Directory is created by NewBot; tests
// may construct one directly and drive it without a live connection.
type Directory struct {
	stateMutex sync.RWMutex
	channels   map[string]*Channel
}

// NewDirectory returns an empty directory.
func NewDirectory() (result *Directory) {
	return &Directory{
		channels: make(map[string]*Channel),
	}
}

// GetChannel looks up a channel by name; nil when not tracked.
func (d *Directory) GetChannel(name string) *Channel {
	d.stateMutex.RLock()
	defer d.stateMutex.RUnlock()
	return d.channels[strings.ToLower(name)]
}

// GetOrCreateChannel returns the tracked channel with the given name,
// creating it if necessary.
func (d *Directory) GetOrCreateChannel(name string) (result *Channel) {
	casefolded := strings.ToLower(name)
	d.stateMutex.Lock()
	defer d.stateMutex.Unlock()
	result = d.channels[casefolded]
	if result == nil {
		result = NewChannel(name)
		d.channels[casefolded] = result
	}
	return
}

// RemoveChannel drops a channel and all its membership records,
// returning the removed channel (nil if it was not tracked).
func (d *Directory) RemoveChannel(name string) (channel *Channel) {
	casefolded := strings.ToLower(name)
	d.stateMutex.Lock()
	channel = d.channels[casefolded]
	delete(d.channels, casefolded)
	d.stateMutex.Unlock()
	return
}

// Channels returns a snapshot of all tracked channels.
func (d *Directory) Channels() (result []*Channel) {
	d.stateMutex.RLock()
	defer d.stateMutex.RUnlock()
	result = make([]*Channel, 0, len(d.channels))
	for _, channel := range d.channels {
		result = append(result, channel)
	}
	return
}

// ChannelNames returns the names of all tracked channels.
func (d *Directory) ChannelNames() (result []string) {
	d.stateMutex.RLock()
	defer d.stateMutex.RUnlock()
	result = make([]string, 0, len(d.channels))
	for name := range d.channels {
		result = append(result, name)
	}
	return
}

// GetUser finds the named user in any tracked channel; nil when the
// nick is not a member anywhere.
func (d *Directory) GetUser(nick string) *User {
	d.stateMutex.RLock()
	defer d.stateMutex.RUnlock()
	for _, channel := range d.channels {
		if user := channel.GetUser(nick); user != nil {
			return user
		}
	}
	return nil
}

// RenameUser rebinds a nick across every tracked channel, preserving
// all per-user attributes. It returns the channels where the rename
// took effect.
func (d *Directory) RenameUser(oldNick, newNick string) (affected []*Channel) {
	d.stateMutex.RLock()
	defer d.stateMutex.RUnlock()
	for _, channel := range d.channels {
		if channel.renameUser(oldNick, newNick) {
			affected = append(affected, channel)
		}
	}
	return
}

// RemoveUserEverywhere drops a nick's membership from every tracked
// channel (QUIT handling). It returns the channels the user was in.
func (d *Directory) RemoveUserEverywhere(nick string) (affected []*Channel) {
	d.stateMutex.RLock()
	defer d.stateMutex.RUnlock()
	for _, channel := range d.channels {
		if channel.removeUser(nick) != nil {
			affected = append(affected, channel)
		}
	}
	return
}

// Clear discards all tracked channels and users. Called on QUIT and on
// disconnection: stale membership must not leak into the next session.
func (d *Directory) Clear() {
	d.stateMutex.Lock()
	d.channels = make(map[string]*Channel)
	d.stateMutex.Unlock()
}
