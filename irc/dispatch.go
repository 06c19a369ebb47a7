// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package irc

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ergochat/irc-go/ircmsg"
	"github.com/ergochat/irc-go/ircutils"

	"github.com/ergochat/ircbot/irc/modes"
)

// handleLine tokenizes one raw server line and routes it: state
// tracking first, then the matching callback. Lines that fit no known
// shape go to the Unknown callback rather than being dropped.
func (b *Bot) handleLine(line string) {
	msg, err := ircmsg.ParseLine(line)
	if err != nil {
		b.logger.Debug("dispatch", "unparseable line", line)
		if b.callbacks.Unknown != nil {
			b.callbacks.Unknown(line)
		}
		return
	}

	// answer pings before anything else; an unanswered ping kills the
	// session
	if msg.Command == "PING" {
		payload := ""
		if len(msg.Params) > 0 {
			payload = msg.Params[len(msg.Params)-1]
		}
		b.SendRawLine("PONG :" + payload)
		return
	}

	source := parseSource(msg.Source)
	tags := msg.AllTags()

	if code, err := strconv.Atoi(msg.Command); err == nil {
		if b.callbacks.ServerResponse != nil {
			b.callbacks.ServerResponse(code, msg.Params)
		}
		b.handleNumeric(code, msg.Params)
		return
	}

	switch msg.Command {
	case "PRIVMSG":
		b.handlePrivmsg(source, tags, msg.Params)
	case "NOTICE":
		if len(msg.Params) < 2 {
			return
		}
		if b.callbacks.Notice != nil {
			b.callbacks.Notice(msg.Params[0], source, msg.Params[1])
		}
	case "WHISPER":
		if len(msg.Params) < 2 {
			return
		}
		user := b.directory.GetUser(source.Nick)
		if user == nil {
			user = NewUser(source.Nick, "")
		}
		applyUserTags(user, tags)
		if b.callbacks.Whisper != nil {
			b.callbacks.Whisper(source, msg.Params[1])
		}
	case "JOIN":
		b.handleJoin(source, msg.Params)
	case "PART":
		b.handlePart(source, msg.Params)
	case "NICK":
		b.handleNickChange(source, msg.Params)
	case "QUIT":
		reason := ""
		if len(msg.Params) > 0 {
			reason = msg.Params[0]
		}
		b.directory.RemoveUserEverywhere(source.Nick)
		if b.callbacks.Quit != nil {
			b.callbacks.Quit(source, reason)
		}
	case "KICK":
		b.handleKick(source, msg.Params)
	case "MODE":
		b.handleMode(source, msg.Params)
	case "TOPIC":
		if len(msg.Params) < 2 {
			return
		}
		channelName := strings.ToLower(msg.Params[0])
		topic := msg.Params[1]
		if channel := b.directory.GetChannel(channelName); channel != nil {
			channel.setTopic(topic, source.Nick)
		}
		if b.callbacks.Topic != nil {
			b.callbacks.Topic(channelName, topic, source.Nick, true)
		}
	case "INVITE":
		if len(msg.Params) < 2 {
			return
		}
		if b.callbacks.Invite != nil {
			b.callbacks.Invite(msg.Params[1], source)
		}
	case "ROOMSTATE":
		if len(msg.Params) < 1 {
			return
		}
		channel := b.directory.GetOrCreateChannel(msg.Params[0])
		applyRoomTags(channel, tags)
		if b.callbacks.RoomState != nil {
			b.callbacks.RoomState(channel)
		}
	case "USERSTATE":
		if len(msg.Params) < 1 {
			return
		}
		channelName := strings.ToLower(msg.Params[0])
		channel := b.directory.GetOrCreateChannel(channelName)
		user := channel.GetUser(b.Nick())
		if user == nil {
			user = NewUser(b.Nick(), channelName)
			channel.addUser(user)
		}
		applyUserTags(user, tags)
		if b.callbacks.UserState != nil {
			b.callbacks.UserState(channelName, user)
		}
	case "GLOBALUSERSTATE":
		applyUserTags(b.globalUser, tags)
		if b.callbacks.GlobalUserState != nil {
			b.callbacks.GlobalUserState(b.globalUser)
		}
	case "USERNOTICE":
		b.handleUserNotice(tags, msg.Params)
	case "CLEARCHAT":
		b.handleClearChat(tags, msg.Params)
	case "HOSTTARGET":
		b.handleHostTarget(msg.Params)
	default:
		if b.callbacks.Unknown != nil {
			b.callbacks.Unknown(line)
		}
	}
}

// parseSource splits a message prefix into its nick, login and host
// components. A server prefix (no "!") lands entirely in Nick.
func parseSource(prefix string) (result Source) {
	uh := ircutils.ParseUserhost(prefix)
	result.Nick = uh.Nick
	result.Login = uh.User
	result.Host = uh.Host
	if result.Nick == "" && !strings.Contains(prefix, "!") {
		result.Nick = prefix
		result.Login = ""
		result.Host = ""
	}
	return
}

// isChannelName reports whether the target names a channel under the
// configured prefix characters.
func (b *Bot) isChannelName(target string) bool {
	return len(target) > 0 && strings.ContainsRune(b.channelPrefixes, rune(target[0]))
}

func (b *Bot) handlePrivmsg(source Source, tags map[string]string, params []string) {
	if len(params) < 2 {
		return
	}
	target, text := params[0], params[1]

	toChannel := b.isChannelName(target)
	var user *User
	if toChannel {
		channelName := strings.ToLower(target)
		channel := b.directory.GetOrCreateChannel(channelName)
		user = channel.GetUser(source.Nick)
		if user == nil {
			user = NewUser(source.Nick, channelName)
			channel.addUser(user)
		}
	} else {
		user = b.directory.GetUser(source.Nick)
		if user == nil {
			user = NewUser(source.Nick, "")
		}
	}
	applyUserTags(user, tags)
	user.Touch(time.Now())
	if b.seen != nil {
		b.seen.MarkSeen(source.Nick, time.Now())
	}

	// CTCP payloads are framed in \x01 and carry their own commands
	if strings.HasPrefix(text, ctcpDelim) && strings.HasSuffix(text, ctcpDelim) && len(text) >= 2 {
		b.handleCTCP(source, target, strings.Trim(text, ctcpDelim))
		return
	}

	if toChannel {
		user.setPreviousMessage(text)
		if b.callbacks.Message != nil {
			b.callbacks.Message(strings.ToLower(target), source, text)
		}
	} else {
		if b.callbacks.PrivateMessage != nil {
			b.callbacks.PrivateMessage(source, text)
		}
	}
}

// handleCTCP routes an unframed CTCP payload. VERSION, PING, TIME and
// FINGER get standard replies when no callback overrides them.
func (b *Bot) handleCTCP(source Source, target, payload string) {
	command, rest, _ := strings.Cut(payload, " ")
	switch strings.ToUpper(command) {
	case "ACTION":
		if b.callbacks.Action != nil {
			b.callbacks.Action(target, source, rest)
		}
	case "VERSION":
		if b.callbacks.Version != nil {
			b.callbacks.Version(source, target)
		} else {
			b.sendCTCPReply(source.Nick, "VERSION "+b.versionReply)
		}
	case "PING":
		if b.callbacks.Ping != nil {
			b.callbacks.Ping(source, target, rest)
		} else {
			b.sendCTCPReply(source.Nick, "PING "+rest)
		}
	case "TIME":
		if b.callbacks.Time != nil {
			b.callbacks.Time(source, target)
		} else {
			b.sendCTCPReply(source.Nick, "TIME "+time.Now().Format(time.RFC1123))
		}
	case "FINGER":
		if b.callbacks.Finger != nil {
			b.callbacks.Finger(source, target)
		} else {
			b.sendCTCPReply(source.Nick, "FINGER "+b.fingerReply)
		}
	case "DCC":
		b.dcc.handleRequest(source, rest)
	default:
		if b.callbacks.Unknown != nil {
			b.callbacks.Unknown(fmt.Sprintf(":%s PRIVMSG %s :%s%s%s", source.Nick, target, ctcpDelim, payload, ctcpDelim))
		}
	}
}

func (b *Bot) sendCTCPReply(nick, payload string) {
	b.sendViaQueue(ClassControl, fmt.Sprintf("NOTICE %s :%s%s%s", nick, ctcpDelim, payload, ctcpDelim))
}

func (b *Bot) handleJoin(source Source, params []string) {
	if len(params) < 1 {
		return
	}
	channelName := strings.ToLower(params[0])
	channel := b.directory.GetOrCreateChannel(channelName)
	if channel.GetUser(source.Nick) == nil {
		channel.addUser(NewUser(source.Nick, channelName))
	}
	if b.seen != nil {
		b.seen.MarkSeen(source.Nick, time.Now())
	}
	if b.callbacks.Join != nil {
		b.callbacks.Join(channelName, source)
	}
}

func (b *Bot) handlePart(source Source, params []string) {
	if len(params) < 1 {
		return
	}
	channelName := strings.ToLower(params[0])
	if strings.EqualFold(source.Nick, b.Nick()) {
		b.directory.RemoveChannel(channelName)
	} else if channel := b.directory.GetChannel(channelName); channel != nil {
		channel.removeUser(source.Nick)
	}
	if b.callbacks.Part != nil {
		b.callbacks.Part(channelName, source)
	}
}

func (b *Bot) handleNickChange(source Source, params []string) {
	if len(params) < 1 {
		return
	}
	newNick := params[0]
	b.directory.RenameUser(source.Nick, newNick)
	if strings.EqualFold(source.Nick, b.Nick()) {
		b.setNick(newNick)
	}
	if b.callbacks.NickChange != nil {
		b.callbacks.NickChange(source.Nick, newNick, source)
	}
}

func (b *Bot) handleKick(source Source, params []string) {
	if len(params) < 2 {
		return
	}
	channelName := strings.ToLower(params[0])
	recipient := params[1]
	reason := ""
	if len(params) > 2 {
		reason = params[2]
	}
	if strings.EqualFold(recipient, b.Nick()) {
		b.directory.RemoveChannel(channelName)
	} else if channel := b.directory.GetChannel(channelName); channel != nil {
		channel.removeUser(recipient)
	}
	if b.callbacks.Kick != nil {
		b.callbacks.Kick(channelName, source, recipient, reason)
	}
}

func (b *Bot) handleMode(source Source, params []string) {
	if len(params) < 2 {
		return
	}
	target := params[0]
	modeText := strings.Join(params[1:], " ")

	if !b.isChannelName(target) {
		if b.callbacks.UserMode != nil {
			b.callbacks.UserMode(target, source, modeText)
		}
		return
	}

	channelName := strings.ToLower(target)
	channel := b.directory.GetOrCreateChannel(channelName)
	changes, _ := modes.ParseChannelModeChanges(params[1:]...)
	for _, change := range changes {
		b.applyModeChange(channelName, channel, source, change)
	}
	if b.callbacks.Mode != nil {
		b.callbacks.Mode(channelName, source, modeText)
	}
}

func (b *Bot) applyModeChange(channelName string, channel *Channel, source Source, change modes.ModeChange) {
	// a sign-less flags token decodes as a list query; it neither
	// grants nor revokes anything, so no state changes and no events
	if change.Op != modes.Add && change.Op != modes.Remove {
		return
	}
	added := change.Op == modes.Add
	switch change.Mode {
	case modes.ChannelOperator:
		if user := channel.GetUser(change.Arg); user != nil {
			user.SetOp(added)
		}
		if added {
			if b.callbacks.Op != nil {
				b.callbacks.Op(channelName, source, change.Arg)
			}
		} else if b.callbacks.Deop != nil {
			b.callbacks.Deop(channelName, source, change.Arg)
		}
	case modes.Voice:
		if user := channel.GetUser(change.Arg); user != nil {
			user.SetVoiced(added)
		}
		if added {
			if b.callbacks.Voice != nil {
				b.callbacks.Voice(channelName, source, change.Arg)
			}
		} else if b.callbacks.Devoice != nil {
			b.callbacks.Devoice(channelName, source, change.Arg)
		}
	case modes.BanMask:
		if added {
			if b.callbacks.BanSet != nil {
				b.callbacks.BanSet(channelName, source, change.Arg)
			}
		} else if b.callbacks.BanRemoved != nil {
			b.callbacks.BanRemoved(channelName, source, change.Arg)
		}
	case modes.Key:
		if added {
			channel.setKey(change.Arg)
			if b.callbacks.KeySet != nil {
				b.callbacks.KeySet(channelName, source, change.Arg)
			}
		} else {
			channel.setKey("")
			if b.callbacks.KeyRemoved != nil {
				b.callbacks.KeyRemoved(channelName, source)
			}
		}
	case modes.UserLimit:
		if added {
			limit, err := strconv.Atoi(change.Arg)
			if err != nil {
				limit = -1
			}
			channel.setUserLimit(int64(limit))
			if b.callbacks.LimitSet != nil {
				b.callbacks.LimitSet(channelName, source, limit)
			}
		} else {
			channel.setUserLimit(-1)
			if b.callbacks.LimitRemoved != nil {
				b.callbacks.LimitRemoved(channelName, source)
			}
		}
	case modes.InviteOnly:
		channel.setInviteOnly(added)
		if b.callbacks.InviteOnly != nil {
			b.callbacks.InviteOnly(channelName, source, added)
		}
	case modes.Moderated:
		channel.setModerated(added)
		if b.callbacks.Moderated != nil {
			b.callbacks.Moderated(channelName, source, added)
		}
	case modes.NoOutside:
		channel.setNoExternalMessages(added)
		if b.callbacks.NoExternal != nil {
			b.callbacks.NoExternal(channelName, source, added)
		}
	case modes.Private:
		channel.setPrivate(added)
		if b.callbacks.PrivateMode != nil {
			b.callbacks.PrivateMode(channelName, source, added)
		}
	case modes.Secret:
		channel.setSecret(added)
		if b.callbacks.SecretMode != nil {
			b.callbacks.SecretMode(channelName, source, added)
		}
	case modes.OpOnlyTopic:
		channel.setTopicProtected(added)
		if b.callbacks.TopicProtection != nil {
			b.callbacks.TopicProtection(channelName, source, added)
		}
	}
}

func (b *Bot) handleUserNotice(tags map[string]string, params []string) {
	if len(params) < 1 {
		return
	}
	channelName := strings.ToLower(params[0])
	message := ""
	if len(params) > 1 {
		message = params[1]
	}
	channel := b.directory.GetOrCreateChannel(channelName)
	nick := tags["login"]
	var user *User
	if nick != "" {
		user = channel.GetUser(nick)
	}
	if user == nil {
		user = NewUser(nick, channelName)
	}
	applyUserTags(user, tags)
	if b.callbacks.UserNotice != nil {
		b.callbacks.UserNotice(channelName, user, message)
	}
}

func (b *Bot) handleClearChat(tags map[string]string, params []string) {
	if len(params) < 1 {
		return
	}
	channelName := strings.ToLower(params[0])
	nick := ""
	if len(params) > 1 {
		nick = params[1]
	}
	duration := tagInt(tags["ban-duration"], -1)
	reason := tags["ban-reason"]
	if b.callbacks.ClearChat != nil {
		b.callbacks.ClearChat(channelName, nick, duration, reason)
	}
}

func (b *Bot) handleHostTarget(params []string) {
	if len(params) < 2 {
		return
	}
	channelName := strings.ToLower(params[0])
	target, viewerText, _ := strings.Cut(params[1], " ")
	viewers := tagInt(viewerText, -1)
	if b.callbacks.HostTarget != nil {
		b.callbacks.HostTarget(channelName, target, viewers)
	}
}
