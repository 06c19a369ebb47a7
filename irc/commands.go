// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package irc

import (
	"fmt"

	"github.com/ergochat/ircbot/irc/utils"
)

// Outbound commands. Conversational traffic (messages, actions, CTCP,
// whispers) goes through the rate-limited queue as chat-class entries
// and may be dropped when the queue is full; protocol commands either
// queue as control-class entries or, for the channel-management
// commands below, are written immediately.

// SendRawLine writes a line to the server immediately, bypassing the
// outgoing queue and its rate limit.
func (b *Bot) SendRawLine(line string) {
	b.write(line)
}

// SendRawLineViaQueue appends a raw line to the outgoing queue as a
// control-class entry; it is never dropped.
func (b *Bot) SendRawLineViaQueue(line string) {
	b.sendViaQueue(ClassControl, line)
}

// SendMessage queues a PRIVMSG to the target (a channel or a nick). It
// reports whether the message was admitted to the queue; false means
// the flood-protection cap dropped it.
func (b *Bot) SendMessage(target, message string) (admitted bool) {
	return b.sendViaQueue(ClassChat, fmt.Sprintf("PRIVMSG %s :%s", target, message))
}

// SendAction queues a CTCP ACTION ("/me") to the target.
func (b *Bot) SendAction(target, action string) (admitted bool) {
	return b.SendCTCPCommand(target, "ACTION "+action)
}

// SendCTCPCommand queues a CTCP command to the target.
func (b *Bot) SendCTCPCommand(target, command string) (admitted bool) {
	return b.sendViaQueue(ClassChat, fmt.Sprintf("PRIVMSG %s :%s%s%s", target, ctcpDelim, command, ctcpDelim))
}

// SendNotice queues a NOTICE to the target as a control-class entry.
func (b *Bot) SendNotice(target, notice string) {
	b.sendViaQueue(ClassControl, fmt.Sprintf("NOTICE %s :%s", target, notice))
}

// SendWhisper queues a whisper to the nick, for networks that route
// whispers through the jtv service channel.
func (b *Bot) SendWhisper(nick, message string) (admitted bool) {
	return b.sendViaQueue(ClassChat, fmt.Sprintf("PRIVMSG #jtv :/w %s %s", nick, message))
}

// QueueContains reports whether any not-yet-sent queued line contains
// the given text.
func (b *Bot) QueueContains(text string) bool {
	return b.queue.Contains(text)
}

// QueueLen returns the number of lines waiting in the outgoing queue.
func (b *Bot) QueueLen() int {
	return b.queue.Len()
}

// Join joins a channel.
func (b *Bot) Join(channel string) {
	b.SendRawLine("JOIN " + channel)
}

// JoinWithKey joins a key-protected channel.
func (b *Bot) JoinWithKey(channel, key string) {
	b.SendRawLine(fmt.Sprintf("JOIN %s %s", channel, key))
}

// Part leaves a channel.
func (b *Bot) Part(channel string) {
	b.SendRawLine("PART " + channel)
}

// PartWithReason leaves a channel with a parting message.
func (b *Bot) PartWithReason(channel, reason string) {
	b.SendRawLine(fmt.Sprintf("PART %s :%s", channel, reason))
}

// Kick removes a user from a channel; requires operator status.
func (b *Bot) Kick(channel, nick, reason string) {
	b.SendRawLine(fmt.Sprintf("KICK %s %s :%s", channel, nick, reason))
}

// SetMode applies a raw mode change to a channel.
func (b *Bot) SetMode(channel, mode string) {
	b.SendRawLine(fmt.Sprintf("MODE %s %s", channel, mode))
}

// Op grants channel-operator status.
func (b *Bot) Op(channel, nick string) {
	b.SetMode(channel, "+o "+nick)
}

// DeOp removes channel-operator status.
func (b *Bot) DeOp(channel, nick string) {
	b.SetMode(channel, "-o "+nick)
}

// Voice grants voice.
func (b *Bot) Voice(channel, nick string) {
	b.SetMode(channel, "+v "+nick)
}

// DeVoice removes voice.
func (b *Bot) DeVoice(channel, nick string) {
	b.SetMode(channel, "-v "+nick)
}

// Ban sets a ban mask on a channel.
func (b *Bot) Ban(channel, hostmask string) {
	b.SetMode(channel, "+b "+hostmask)
}

// UnBan removes a ban mask from a channel.
func (b *Bot) UnBan(channel, hostmask string) {
	b.SetMode(channel, "-b "+hostmask)
}

// SetTopic sets a channel topic.
func (b *Bot) SetTopic(channel, topic string) {
	b.SendRawLine(fmt.Sprintf("TOPIC %s :%s", channel, topic))
}

// Invite invites a nick to a channel.
func (b *Bot) Invite(nick, channel string) {
	b.SendRawLine(fmt.Sprintf("INVITE %s :%s", nick, channel))
}

// ChangeNick requests a new nick; the tracked nick updates when the
// server confirms the change.
func (b *Bot) ChangeNick(newNick string) {
	b.SendRawLine("NICK " + newNick)
}

// Identify authenticates with nickname services.
func (b *Bot) Identify(password string) {
	b.SendRawLine("NICKSERV IDENTIFY " + password)
}

// ListChannels requests the network channel list; entries arrive via
// the ChannelInfo callback. Most servers accept a comma-separated list
// of channels or a search parameter.
func (b *Bot) ListChannels(parameters string) {
	if parameters == "" {
		b.SendRawLine("LIST")
	} else {
		b.SendRawLine("LIST " + parameters)
	}
}

// sendViaQueue classifies, truncates and enqueues one line.
func (b *Bot) sendViaQueue(class EntryClass, line string) (admitted bool) {
	line = b.capLine(line)
	admitted = b.queue.Add(class, line)
	if !admitted {
		b.logger.Warning("queue", "chat message dropped, queue full", line)
	}
	return
}

// capLine bounds a line to the configured maximum, leaving room for
// the CRLF, without splitting a UTF-8 sequence.
func (b *Bot) capLine(line string) string {
	limit := b.maxLineLength - len(crlf)
	if len(line) <= limit {
		return line
	}
	// never truncate mid-word into a tag or command; the overflow is
	// always message text at the end of the line
	truncated := utils.TruncateUTF8Safe(line, limit)
	b.logger.Debug("queue", "line truncated to length limit", truncated)
	return truncated
}
