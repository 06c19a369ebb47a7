// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package irc

// Source identifies the originator of an event, parsed from the
// message prefix. For server-originated events Nick holds the server
// name and Login/Host are empty.
type Source struct {
	Nick  string
	Login string
	Host  string
}

// ChannelInfo is one entry of a channel-list reply.
type ChannelInfo struct {
	Name      string
	UserCount int
	Topic     string
}

// Callbacks is the event surface of a Bot: set any subset of fields
// before Connect; nil fields are skipped. All callbacks are invoked
// synchronously from the session's read loop, in arrival order, after
// the bot's own state tracking for the line has completed. A callback
// that blocks stalls the whole session, so hand long-running work to a
// goroutine.
type Callbacks struct {
	// Connected fires once registration has succeeded.
	Connected func()
	// Disconnected fires when the session ends, whether by Quit or by
	// a connection failure.
	Disconnected func()

	// ServerResponse fires for every numeric reply, including ones the
	// bot also handles internally.
	ServerResponse func(code int, params []string)
	// Unknown fires for any line that matched no other event.
	Unknown func(line string)

	// Message fires for a PRIVMSG to a channel.
	Message func(channel string, source Source, message string)
	// PrivateMessage fires for a PRIVMSG addressed to the bot itself.
	PrivateMessage func(source Source, message string)
	// Action fires for a CTCP ACTION ("/me") to a channel or to the bot.
	Action func(target string, source Source, action string)
	// Notice fires for a NOTICE to a channel or to the bot.
	Notice func(target string, source Source, notice string)
	// Whisper fires for a WHISPER addressed to the bot.
	Whisper func(source Source, message string)

	// Join fires when any user, including the bot, joins a channel.
	Join func(channel string, source Source)
	// Part fires when any user, including the bot, parts a channel.
	Part func(channel string, source Source)
	// NickChange fires when an observed user changes nick.
	NickChange func(oldNick, newNick string, source Source)
	// Quit fires when an observed user quits the network.
	Quit func(source Source, reason string)
	// Kick fires when a user is kicked from a channel.
	Kick func(channel string, source Source, recipient, reason string)
	// Topic fires when a channel topic is set or first learned.
	Topic func(channel, topic, setBy string, changed bool)
	// Invite fires when the bot is invited to a channel.
	Invite func(channel string, source Source)

	// ChannelInfo fires once per entry of a LIST reply.
	ChannelInfo func(info ChannelInfo)
	// UserList fires when the full member list of a channel has
	// arrived after a join.
	UserList func(channel string, users []*User)

	// Mode fires for every channel or user MODE line, with the raw
	// change text. The specific callbacks below also fire, one per
	// individual change, when they apply.
	Mode func(target string, source Source, mode string)
	// UserMode fires for a MODE line targeting a nick rather than a
	// channel.
	UserMode func(nick string, source Source, mode string)

	Op              func(channel string, source Source, recipient string)
	Deop            func(channel string, source Source, recipient string)
	Voice           func(channel string, source Source, recipient string)
	Devoice         func(channel string, source Source, recipient string)
	BanSet          func(channel string, source Source, hostmask string)
	BanRemoved      func(channel string, source Source, hostmask string)
	KeySet          func(channel string, source Source, key string)
	KeyRemoved      func(channel string, source Source)
	LimitSet        func(channel string, source Source, limit int)
	LimitRemoved    func(channel string, source Source)
	InviteOnly      func(channel string, source Source, on bool)
	Moderated       func(channel string, source Source, on bool)
	NoExternal      func(channel string, source Source, on bool)
	PrivateMode     func(channel string, source Source, on bool)
	SecretMode      func(channel string, source Source, on bool)
	TopicProtection func(channel string, source Source, on bool)

	// CTCP events. Version, Ping, Time and Finger have default replies
	// that fire when the corresponding callback is nil; setting the
	// callback suppresses the default.
	Version func(source Source, target string)
	Ping    func(source Source, target, payload string)
	Time    func(source Source, target string)
	Finger  func(source Source, target string)

	// RoomState fires after a ROOMSTATE line has been applied to the
	// channel record.
	RoomState func(channel *Channel)
	// UserState fires after a USERSTATE line has been applied.
	UserState func(channel string, user *User)
	// GlobalUserState fires after a GLOBALUSERSTATE line has been
	// applied.
	GlobalUserState func(user *User)
	// UserNotice fires for a USERNOTICE (sub, resub, and similar),
	// after tags have been applied; message may be empty.
	UserNotice func(channel string, user *User, message string)
	// ClearChat fires for a CLEARCHAT; nick is empty when the whole
	// room was cleared, and duration is -1 for a permanent ban or a
	// missing tag.
	ClearChat func(channel, nick string, duration int64, reason string)
	// HostTarget fires for a HOSTTARGET; target is "-" when hosting
	// ends, and viewers is -1 when not reported.
	HostTarget func(channel, target string, viewers int64)

	// SentMessage fires from the writer loop after a chat-class line
	// has been written to the connection.
	SentMessage func(line string)

	// DCC events.
	IncomingFileTransfer func(transfer *Transfer)
	IncomingChatRequest  func(chat *Chat)
	FileTransferFinished func(transfer *Transfer, err error)
}
