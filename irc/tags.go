// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package irc

import (
	"strconv"
)

// Message tags are applied to user and channel records through two
// declarative tables, one per record kind. Adding support for a new
// tag means adding a table row, not a new case in the dispatcher.

// tagInt parses a numeric tag value, yielding the given default for a
// missing or malformed value.
func tagInt(value string, def int64) int64 {
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

// tagBool treats "1" as true and anything else as false.
func tagBool(value string) bool {
	return value == "1"
}

var userTagTable = map[string]func(u *User, value string){
	"display-name": func(u *User, value string) {
		u.SetDisplayName(value)
	},
	"color": func(u *User, value string) {
		u.stateMutex.Lock()
		u.color = value
		u.stateMutex.Unlock()
	},
	"subscriber": func(u *User, value string) {
		u.stateMutex.Lock()
		u.subscriber = tagBool(value)
		u.stateMutex.Unlock()
	},
	"turbo": func(u *User, value string) {
		u.stateMutex.Lock()
		u.turbo = tagBool(value)
		u.stateMutex.Unlock()
	},
	"mod": func(u *User, value string) {
		u.SetMod(tagBool(value))
	},
	"user-type": func(u *User, value string) {
		u.stateMutex.Lock()
		u.userType = value
		u.stateMutex.Unlock()
	},
	"emote-sets": func(u *User, value string) {
		u.stateMutex.Lock()
		u.emoteSets = value
		u.stateMutex.Unlock()
	},
	"badges": func(u *User, value string) {
		u.stateMutex.Lock()
		u.badges = value
		u.stateMutex.Unlock()
	},
	"emotes": func(u *User, value string) {
		u.stateMutex.Lock()
		u.emotes = value
		u.stateMutex.Unlock()
	},
	"msg-id": func(u *User, value string) {
		u.stateMutex.Lock()
		u.msgID = value
		u.stateMutex.Unlock()
	},
	"id": func(u *User, value string) {
		u.stateMutex.Lock()
		u.messageID = value
		u.stateMutex.Unlock()
	},
	"system-msg": func(u *User, value string) {
		u.stateMutex.Lock()
		u.systemMsg = value
		u.stateMutex.Unlock()
	},
	"login": func(u *User, value string) {
		u.stateMutex.Lock()
		u.login = value
		u.stateMutex.Unlock()
	},
	"user-id": func(u *User, value string) {
		u.stateMutex.Lock()
		u.userID = tagInt(value, -1)
		u.stateMutex.Unlock()
	},
	"room-id": func(u *User, value string) {
		u.stateMutex.Lock()
		u.roomID = tagInt(value, -1)
		u.stateMutex.Unlock()
	},
	"msg-param-months": func(u *User, value string) {
		u.stateMutex.Lock()
		u.months = tagInt(value, -1)
		u.stateMutex.Unlock()
	},
	"bits": func(u *User, value string) {
		u.stateMutex.Lock()
		u.bits = tagInt(value, -1)
		u.stateMutex.Unlock()
	},
}

var roomTagTable = map[string]func(ch *Channel, value string){
	"broadcaster-lang": func(ch *Channel, value string) {
		ch.stateMutex.Lock()
		ch.broadcasterLanguage = value
		ch.stateMutex.Unlock()
	},
	"r9k": func(ch *Channel, value string) {
		ch.stateMutex.Lock()
		ch.r9k = tagBool(value)
		ch.stateMutex.Unlock()
	},
	"slow": func(ch *Channel, value string) {
		ch.stateMutex.Lock()
		ch.slowDelay = tagInt(value, 0)
		ch.stateMutex.Unlock()
	},
	"subs-only": func(ch *Channel, value string) {
		ch.stateMutex.Lock()
		ch.subsOnly = tagBool(value)
		ch.stateMutex.Unlock()
	},
	"emote-only": func(ch *Channel, value string) {
		ch.stateMutex.Lock()
		ch.emoteOnly = tagBool(value)
		ch.stateMutex.Unlock()
	},
}

// applyUserTags merges every recognized user-scoped tag into the user
// record; unrecognized tags are ignored.
func applyUserTags(user *User, tags map[string]string) {
	for name, value := range tags {
		if apply, ok := userTagTable[name]; ok {
			apply(user, value)
		}
	}
}

// applyRoomTags merges every recognized room-scoped tag into the
// channel record; unrecognized tags are ignored.
func applyRoomTags(channel *Channel, tags map[string]string) {
	for name, value := range tags {
		if apply, ok := roomTagTable[name]; ok {
			apply(channel, value)
		}
	}
}
