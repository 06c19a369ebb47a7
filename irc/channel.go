// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package irc

import (
	"strings"
	"sync"
)

// Channel tracks the membership and room attributes of one joined
// channel. Room attributes come from MODE changes, topic numerics and
// ROOMSTATE tags; missing numeric tag attributes hold the sentinel -1
// (slowDelay defaults to 0, meaning no slow mode).
type Channel struct {
	stateMutex sync.RWMutex

	name  string // canonical lowercase key
	users map[string]*User

	topic      string
	topicSetBy string
	key        string
	userLimit  int64

	inviteOnly  bool
	moderated   bool
	noOutside   bool
	private     bool
	secret      bool
	opTopicOnly bool

	// tag-derived room state
	broadcasterLanguage string
	r9k                 bool
	slowDelay           int64
	subsOnly            bool
	emoteOnly           bool
}

// NewChannel returns an empty channel record.
func NewChannel(name string) (result *Channel) {
	return &Channel{
		name:      strings.ToLower(name),
		users:     make(map[string]*User),
		userLimit: -1,
	}
}

// Name returns the canonical (lowercased) channel name.
func (ch *Channel) Name() string {
	ch.stateMutex.RLock()
	defer ch.stateMutex.RUnlock()
	return ch.name
}

// GetUser looks up a member by nick (case-insensitively); nil when the
// nick is not a member.
func (ch *Channel) GetUser(nick string) *User {
	ch.stateMutex.RLock()
	defer ch.stateMutex.RUnlock()
	return ch.users[strings.ToLower(nick)]
}

// addUser inserts a member, replacing any existing record for the nick.
func (ch *Channel) addUser(user *User) {
	ch.stateMutex.Lock()
	ch.users[user.Nick()] = user
	ch.stateMutex.Unlock()
}

// removeUser deletes a member by nick, returning the removed record
// (nil if absent).
func (ch *Channel) removeUser(nick string) (user *User) {
	casefolded := strings.ToLower(nick)
	ch.stateMutex.Lock()
	user = ch.users[casefolded]
	delete(ch.users, casefolded)
	ch.stateMutex.Unlock()
	return
}

// renameUser rebinds a member under a new nick, preserving all
// attributes. It reports whether the old nick was present.
func (ch *Channel) renameUser(oldNick, newNick string) bool {
	oldFolded := strings.ToLower(oldNick)
	ch.stateMutex.Lock()
	defer ch.stateMutex.Unlock()
	user := ch.users[oldFolded]
	if user == nil {
		return false
	}
	delete(ch.users, oldFolded)
	user.rename(newNick)
	ch.users[user.Nick()] = user
	return true
}

// Users returns a snapshot of the current members.
func (ch *Channel) Users() (result []*User) {
	ch.stateMutex.RLock()
	defer ch.stateMutex.RUnlock()
	result = make([]*User, 0, len(ch.users))
	for _, user := range ch.users {
		result = append(result, user)
	}
	return
}

// Len returns the current member count.
func (ch *Channel) Len() int {
	ch.stateMutex.RLock()
	defer ch.stateMutex.RUnlock()
	return len(ch.users)
}

// Topic returns the channel topic and who set it.
func (ch *Channel) Topic() (topic, setBy string) {
	ch.stateMutex.RLock()
	defer ch.stateMutex.RUnlock()
	return ch.topic, ch.topicSetBy
}

func (ch *Channel) setTopic(topic, setBy string) {
	ch.stateMutex.Lock()
	ch.topic = topic
	ch.topicSetBy = setBy
	ch.stateMutex.Unlock()
}

// Key returns the channel key, or "" when none is set.
func (ch *Channel) Key() string {
	ch.stateMutex.RLock()
	defer ch.stateMutex.RUnlock()
	return ch.key
}

func (ch *Channel) setKey(key string) {
	ch.stateMutex.Lock()
	ch.key = key
	ch.stateMutex.Unlock()
}

// UserLimit returns the channel user limit, or -1 when none is set.
func (ch *Channel) UserLimit() int64 {
	ch.stateMutex.RLock()
	defer ch.stateMutex.RUnlock()
	return ch.userLimit
}

func (ch *Channel) setUserLimit(limit int64) {
	ch.stateMutex.Lock()
	ch.userLimit = limit
	ch.stateMutex.Unlock()
}

// flag mode accessors, one pair per RFC channel flag we track

func (ch *Channel) IsInviteOnly() bool {
	ch.stateMutex.RLock()
	defer ch.stateMutex.RUnlock()
	return ch.inviteOnly
}

func (ch *Channel) setInviteOnly(on bool) {
	ch.stateMutex.Lock()
	ch.inviteOnly = on
	ch.stateMutex.Unlock()
}

func (ch *Channel) IsModerated() bool {
	ch.stateMutex.RLock()
	defer ch.stateMutex.RUnlock()
	return ch.moderated
}

func (ch *Channel) setModerated(on bool) {
	ch.stateMutex.Lock()
	ch.moderated = on
	ch.stateMutex.Unlock()
}

func (ch *Channel) IsNoExternalMessages() bool {
	ch.stateMutex.RLock()
	defer ch.stateMutex.RUnlock()
	return ch.noOutside
}

func (ch *Channel) setNoExternalMessages(on bool) {
	ch.stateMutex.Lock()
	ch.noOutside = on
	ch.stateMutex.Unlock()
}

func (ch *Channel) IsPrivate() bool {
	ch.stateMutex.RLock()
	defer ch.stateMutex.RUnlock()
	return ch.private
}

func (ch *Channel) setPrivate(on bool) {
	ch.stateMutex.Lock()
	ch.private = on
	ch.stateMutex.Unlock()
}

func (ch *Channel) IsSecret() bool {
	ch.stateMutex.RLock()
	defer ch.stateMutex.RUnlock()
	return ch.secret
}

func (ch *Channel) setSecret(on bool) {
	ch.stateMutex.Lock()
	ch.secret = on
	ch.stateMutex.Unlock()
}

func (ch *Channel) IsTopicProtected() bool {
	ch.stateMutex.RLock()
	defer ch.stateMutex.RUnlock()
	return ch.opTopicOnly
}

func (ch *Channel) setTopicProtected(on bool) {
	ch.stateMutex.Lock()
	ch.opTopicOnly = on
	ch.stateMutex.Unlock()
}

// tag-derived room state accessors

// BroadcasterLanguage returns the room's declared chat language, or ""
// when unrestricted.
func (ch *Channel) BroadcasterLanguage() string {
	ch.stateMutex.RLock()
	defer ch.stateMutex.RUnlock()
	return ch.broadcasterLanguage
}

// IsR9K reports whether unique-message (r9k) mode is on.
func (ch *Channel) IsR9K() bool {
	ch.stateMutex.RLock()
	defer ch.stateMutex.RUnlock()
	return ch.r9k
}

// SlowDelay returns the slow-mode delay in seconds; 0 means off.
func (ch *Channel) SlowDelay() int64 {
	ch.stateMutex.RLock()
	defer ch.stateMutex.RUnlock()
	return ch.slowDelay
}

// IsSubsOnly reports whether subscribers-only mode is on.
func (ch *Channel) IsSubsOnly() bool {
	ch.stateMutex.RLock()
	defer ch.stateMutex.RUnlock()
	return ch.subsOnly
}

// IsEmoteOnly reports whether emote-only mode is on.
func (ch *Channel) IsEmoteOnly() bool {
	ch.stateMutex.RLock()
	defer ch.stateMutex.RUnlock()
	return ch.emoteOnly
}
