// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package irc

import (
	"strings"
	"sync"
	"time"
)

// AFKThreshold is how long a user may be idle before they are
// considered away, absent an explicit marking.
const AFKThreshold = 15 * time.Minute

// well-known automated accounts that are never considered AFK,
// recognized regardless of configuration
var defaultKnownBots = []string{
	"twitchnotify",
	"recordingbot",
}

var (
	knownBotsMutex sync.RWMutex
	knownBots      = buildKnownBots(nil)
)

func buildKnownBots(nicks []string) map[string]bool {
	bots := make(map[string]bool, len(defaultKnownBots)+len(nicks))
	for _, nick := range defaultKnownBots {
		bots[nick] = true
	}
	for _, nick := range nicks {
		bots[strings.ToLower(nick)] = true
	}
	return bots
}

// SetKnownBots replaces the configured nicks recognized as automated
// accounts for AFK purposes; the built-in defaults are always kept.
func SetKnownBots(nicks []string) {
	bots := buildKnownBots(nicks)
	knownBotsMutex.Lock()
	knownBots = bots
	knownBotsMutex.Unlock()
}

// IsKnownBot reports whether the nick belongs to a recognized
// automated account.
func IsKnownBot(nick string) bool {
	knownBotsMutex.RLock()
	defer knownBotsMutex.RUnlock()
	return knownBots[strings.ToLower(nick)]
}

// User is a single observed user: either a member of a tracked channel
// or a channel-less reference created for a private message. Attribute
// fields are populated opportunistically from tagged messages. Missing
// numeric tag attributes hold the sentinel -1.
type User struct {
	stateMutex sync.RWMutex

	nick        string // canonical lowercase key
	displayName string // case-preserving display form
	channel     string // name of the associated channel, if any

	lastActive time.Time
	awayMarked bool

	op     bool
	voiced bool
	mod    bool

	// protocol-tag attributes
	color      string
	subscriber bool
	turbo      bool
	userType   string
	emoteSets  string
	badges     string
	emotes     string
	msgID      string // msg-id tag (notice class, e.g. "resub")
	messageID  string // id tag (per-message UUID)
	systemMsg  string
	login      string
	userID     int64
	roomID     int64
	months     int64
	bits       int64

	previousMessage string
}

// NewUser returns a user associated with the named channel (which may
// be empty for a channel-less reference).
func NewUser(nick, channel string) (result *User) {
	return &User{
		nick:        strings.ToLower(nick),
		displayName: nick,
		channel:     channel,
		lastActive:  time.Now(),
		userID:      -1,
		roomID:      -1,
		months:      -1,
		bits:        -1,
	}
}

// Nick returns the canonical (lowercased) nick.
func (u *User) Nick() string {
	u.stateMutex.RLock()
	defer u.stateMutex.RUnlock()
	return u.nick
}

// DisplayName returns the case-preserving display form of the nick.
func (u *User) DisplayName() string {
	u.stateMutex.RLock()
	defer u.stateMutex.RUnlock()
	return u.displayName
}

// SetDisplayName updates the display form; the canonical key is
// unaffected.
func (u *User) SetDisplayName(name string) {
	if name == "" {
		return
	}
	u.stateMutex.Lock()
	u.displayName = name
	u.stateMutex.Unlock()
}

// Channel returns the name of the channel this user was observed in.
func (u *User) Channel() string {
	u.stateMutex.RLock()
	defer u.stateMutex.RUnlock()
	return u.channel
}

// rename rebinds the user to a new nick, preserving all attributes.
func (u *User) rename(newNick string) {
	u.stateMutex.Lock()
	u.nick = strings.ToLower(newNick)
	u.displayName = newNick
	u.stateMutex.Unlock()
}

// Touch stamps the user's last-activity time.
func (u *User) Touch(t time.Time) {
	u.stateMutex.Lock()
	u.lastActive = t
	u.stateMutex.Unlock()
}

// LastActive returns the time of the user's most recent observed
// activity.
func (u *User) LastActive() time.Time {
	u.stateMutex.RLock()
	defer u.stateMutex.RUnlock()
	return u.lastActive
}

// MarkAFK explicitly marks (or unmarks) the user as away.
func (u *User) MarkAFK(afk bool) {
	u.stateMutex.Lock()
	u.awayMarked = afk
	u.stateMutex.Unlock()
}

// IsAFK reports whether the user should be treated as away: either
// explicitly marked, or idle beyond AFKThreshold. Recognized automated
// accounts are never AFK.
func (u *User) IsAFK() bool {
	u.stateMutex.RLock()
	defer u.stateMutex.RUnlock()
	if IsKnownBot(u.nick) {
		return false
	}
	if u.awayMarked {
		return true
	}
	return time.Since(u.lastActive) > AFKThreshold
}

// IsOp reports whether the user has channel-operator status.
func (u *User) IsOp() bool {
	u.stateMutex.RLock()
	defer u.stateMutex.RUnlock()
	return u.op
}

// SetOp grants or removes channel-operator status.
func (u *User) SetOp(op bool) {
	u.stateMutex.Lock()
	u.op = op
	u.stateMutex.Unlock()
}

// IsVoiced reports whether the user has voice.
func (u *User) IsVoiced() bool {
	u.stateMutex.RLock()
	defer u.stateMutex.RUnlock()
	return u.voiced
}

// SetVoiced grants or removes voice.
func (u *User) SetVoiced(voiced bool) {
	u.stateMutex.Lock()
	u.voiced = voiced
	u.stateMutex.Unlock()
}

// IsMod reports whether the user is a moderator (the `mod` tag).
func (u *User) IsMod() bool {
	u.stateMutex.RLock()
	defer u.stateMutex.RUnlock()
	return u.mod
}

// SetMod sets the moderator flag.
func (u *User) SetMod(mod bool) {
	u.stateMutex.Lock()
	u.mod = mod
	u.stateMutex.Unlock()
}

// PreviousMessage returns the last channel message text seen from this
// user.
func (u *User) PreviousMessage() string {
	u.stateMutex.RLock()
	defer u.stateMutex.RUnlock()
	return u.previousMessage
}

func (u *User) setPreviousMessage(message string) {
	u.stateMutex.Lock()
	u.previousMessage = message
	u.stateMutex.Unlock()
}

// Tag attribute getters; the corresponding mutations live in the tag
// tables in tags.go.

func (u *User) Color() string {
	u.stateMutex.RLock()
	defer u.stateMutex.RUnlock()
	return u.color
}

func (u *User) IsSubscriber() bool {
	u.stateMutex.RLock()
	defer u.stateMutex.RUnlock()
	return u.subscriber
}

func (u *User) IsTurbo() bool {
	u.stateMutex.RLock()
	defer u.stateMutex.RUnlock()
	return u.turbo
}

func (u *User) UserType() string {
	u.stateMutex.RLock()
	defer u.stateMutex.RUnlock()
	return u.userType
}

func (u *User) EmoteSets() string {
	u.stateMutex.RLock()
	defer u.stateMutex.RUnlock()
	return u.emoteSets
}

func (u *User) Badges() string {
	u.stateMutex.RLock()
	defer u.stateMutex.RUnlock()
	return u.badges
}

func (u *User) Emotes() string {
	u.stateMutex.RLock()
	defer u.stateMutex.RUnlock()
	return u.emotes
}

func (u *User) MsgID() string {
	u.stateMutex.RLock()
	defer u.stateMutex.RUnlock()
	return u.msgID
}

func (u *User) MessageID() string {
	u.stateMutex.RLock()
	defer u.stateMutex.RUnlock()
	return u.messageID
}

func (u *User) SystemMsg() string {
	u.stateMutex.RLock()
	defer u.stateMutex.RUnlock()
	return u.systemMsg
}

func (u *User) Login() string {
	u.stateMutex.RLock()
	defer u.stateMutex.RUnlock()
	return u.login
}

func (u *User) UserID() int64 {
	u.stateMutex.RLock()
	defer u.stateMutex.RUnlock()
	return u.userID
}

func (u *User) RoomID() int64 {
	u.stateMutex.RLock()
	defer u.stateMutex.RUnlock()
	return u.roomID
}

func (u *User) Months() int64 {
	u.stateMutex.RLock()
	defer u.stateMutex.RUnlock()
	return u.months
}

func (u *User) Bits() int64 {
	u.stateMutex.RLock()
	defer u.stateMutex.RUnlock()
	return u.bits
}
