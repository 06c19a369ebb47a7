// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package irc

import (
	"strconv"
	"strings"

	"github.com/ergochat/ircbot/irc/modes"
)

const (
	RPL_WELCOME       = 1
	RPL_YOURHOST      = 2
	RPL_CREATED       = 3
	RPL_MYINFO        = 4
	RPL_LIST          = 322
	RPL_LISTEND       = 323
	RPL_NOTOPIC       = 331
	RPL_TOPIC         = 332
	RPL_TOPICWHOTIME  = 333
	RPL_NAMREPLY      = 353
	RPL_ENDOFNAMES    = 366
	ERR_NICKNAMEINUSE = 433
	ERR_TARGETTOOFAST = 439
)

// topicRecord buffers an RPL_TOPIC until the RPL_TOPICWHOTIME that
// names its setter arrives; the Topic event fires on whichever of the
// two completes the pair.
type topicRecord struct {
	topic string
	setBy string
	has   bool
}

// handleNumeric processes one numeric server reply. Registration
// outcome numerics are handled by the handshake loop in Connect; here
// we maintain channel state and emit the corresponding events. The
// ServerResponse callback has already fired by the time this runs.
func (b *Bot) handleNumeric(code int, params []string) {
	switch code {
	case RPL_LIST:
		// <me> <channel> <count> :<topic>
		if len(params) < 4 {
			return
		}
		count, err := strconv.Atoi(params[2])
		if err != nil {
			count = -1
		}
		if b.callbacks.ChannelInfo != nil {
			b.callbacks.ChannelInfo(ChannelInfo{
				Name:      params[1],
				UserCount: count,
				Topic:     params[3],
			})
		}

	case RPL_TOPIC:
		// <me> <channel> :<topic>
		if len(params) < 3 {
			return
		}
		channelName := strings.ToLower(params[1])
		b.stateMutex.Lock()
		b.pendingTopics[channelName] = topicRecord{topic: params[2], has: true}
		b.stateMutex.Unlock()

	case RPL_TOPICWHOTIME:
		// <me> <channel> <setter> <timestamp>
		if len(params) < 3 {
			return
		}
		channelName := strings.ToLower(params[1])
		setBy := params[2]
		b.stateMutex.Lock()
		record := b.pendingTopics[channelName]
		delete(b.pendingTopics, channelName)
		b.stateMutex.Unlock()
		if !record.has {
			return
		}
		if channel := b.directory.GetChannel(channelName); channel != nil {
			channel.setTopic(record.topic, setBy)
		}
		if b.callbacks.Topic != nil {
			b.callbacks.Topic(channelName, record.topic, setBy, false)
		}

	case RPL_NAMREPLY:
		// <me> [=|*|@] <channel> :<prefixed nicks>
		if len(params) < 3 {
			return
		}
		channelName := strings.ToLower(params[len(params)-2])
		channel := b.directory.GetOrCreateChannel(channelName)
		for _, entry := range strings.Fields(params[len(params)-1]) {
			prefixes, nick := modes.SplitMembershipPrefixes(entry)
			if nick == "" {
				continue
			}
			user := channel.GetUser(nick)
			if user == nil {
				user = NewUser(nick, channelName)
				channel.addUser(user)
			}
			user.SetOp(strings.ContainsRune(prefixes, '@'))
			user.SetVoiced(strings.ContainsRune(prefixes, '+'))
		}

	case RPL_ENDOFNAMES:
		// <me> <channel> :End of /NAMES list
		if len(params) < 2 {
			return
		}
		channelName := strings.ToLower(params[1])
		channel := b.directory.GetChannel(channelName)
		if channel != nil && b.callbacks.UserList != nil {
			b.callbacks.UserList(channelName, channel.Users())
		}
	}
}
