// Copyright (c) 2020 Shivaram Lingamneni <slingamn@cs.stanford.edu>
// released under the MIT license

package irc

import (
	"net"
	"reflect"
	"testing"
	"time"

	"github.com/ergochat/ircbot/irc/logger"
)

func assertEqual(supplied, expected interface{}, t *testing.T) {
	t.Helper()
	if !reflect.DeepEqual(supplied, expected) {
		t.Errorf("expected %v but got %v", expected, supplied)
	}
}

// recordingConn captures written lines without any real I/O.
type recordingConn struct {
	lines []string
}

func (rc *recordingConn) UnderlyingConn() net.Conn          { return nil }
func (rc *recordingConn) ReadLine() ([]byte, error)         { select {} }
func (rc *recordingConn) SetReadDeadline(t time.Time) error { return nil }
func (rc *recordingConn) Close() error                      { return nil }
func (rc *recordingConn) WriteLine(buf []byte) (err error) {
	rc.lines = append(rc.lines, string(buf))
	return nil
}

func mustLogger(t *testing.T) *logger.Manager {
	t.Helper()
	lm, err := logger.NewManager(nil)
	if err != nil {
		t.Fatal(err)
	}
	return lm
}

func newTestBot(t *testing.T) (*Bot, *recordingConn) {
	t.Helper()
	config := &Config{
		Server: ServerConfig{Host: "irc.example.com", Port: "6667"},
		Bot: BotConfig{
			Nick:           "testbot",
			Login:          "testbot",
			Version:        "testbot-1.0",
			Finger:         "nothing to see here",
			AutoNickChange: true,
		},
		Limits: LimitsConfig{
			MessageDelay:          time.Millisecond,
			MaxQueuedChatMessages: 8,
			MaxLineLength:         512,
			ReadTimeout:           time.Minute,
		},
		ChannelPrefixes: defaultChannelPrefixes,
	}
	bot, err := NewBot(config, mustLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	conn := &recordingConn{}
	bot.conn = conn
	return bot, conn
}

func TestPingResponse(t *testing.T) {
	bot, conn := newTestBot(t)
	bot.handleLine("PING :tmi.twitch.tv")
	assertEqual(conn.lines, []string{"PONG :tmi.twitch.tv\r\n"}, t)
}

func TestTaggedChannelMessage(t *testing.T) {
	bot, _ := newTestBot(t)
	var gotChannel, gotMessage string
	var gotSource Source
	bot.SetCallbacks(Callbacks{
		Message: func(channel string, source Source, message string) {
			gotChannel, gotSource, gotMessage = channel, source, message
		},
	})

	bot.handleLine(`@badges=broadcaster/1;color=#0D4200;display-name=StreamerDude;emotes=25:0-4;mod=1;room-id=1337;subscriber=1;turbo=0;user-id=40940392;user-type=mod :streamerdude!streamerdude@streamerdude.tmi.twitch.tv PRIVMSG #streamerdude :Kappa hello chat`)

	assertEqual(gotChannel, "#streamerdude", t)
	assertEqual(gotSource.Nick, "streamerdude", t)
	assertEqual(gotMessage, "Kappa hello chat", t)

	user := bot.directory.GetChannel("#streamerdude").GetUser("StreamerDude")
	if user == nil {
		t.Fatal("user not tracked after tagged message")
	}
	assertEqual(user.DisplayName(), "StreamerDude", t)
	assertEqual(user.IsMod(), true, t)
	assertEqual(user.IsSubscriber(), true, t)
	assertEqual(user.IsTurbo(), false, t)
	assertEqual(user.Color(), "#0D4200", t)
	assertEqual(user.RoomID(), int64(1337), t)
	assertEqual(user.UserID(), int64(40940392), t)
	assertEqual(user.Emotes(), "25:0-4", t)
	assertEqual(user.PreviousMessage(), "Kappa hello chat", t)
}

func TestMalformedNumericTagsUseSentinel(t *testing.T) {
	bot, _ := newTestBot(t)
	bot.handleLine(`@user-id=notanumber;room-id= :alice!alice@example.com PRIVMSG #chan :hi`)
	user := bot.directory.GetChannel("#chan").GetUser("alice")
	assertEqual(user.UserID(), int64(-1), t)
	assertEqual(user.RoomID(), int64(-1), t)
}

func TestNamesReplyAndUserList(t *testing.T) {
	bot, _ := newTestBot(t)
	var listed []*User
	bot.SetCallbacks(Callbacks{
		UserList: func(channel string, users []*User) {
			listed = users
		},
	})

	bot.handleLine(":server 353 testbot = #chan :@alice +bob carol @+dave %erin")
	bot.handleLine(":server 366 testbot #chan :End of /NAMES list")

	assertEqual(len(listed), 5, t)
	channel := bot.directory.GetChannel("#chan")
	assertEqual(channel.GetUser("alice").IsOp(), true, t)
	assertEqual(channel.GetUser("bob").IsVoiced(), true, t)
	assertEqual(channel.GetUser("carol").IsOp(), false, t)
	assertEqual(channel.GetUser("carol").IsVoiced(), false, t)
	// stacked prefixes all apply; unknown ones are stripped
	assertEqual(channel.GetUser("dave").IsOp(), true, t)
	assertEqual(channel.GetUser("dave").IsVoiced(), true, t)
	assertEqual(channel.GetUser("erin").IsOp(), false, t)
}

func TestNickChangePreservesAttributes(t *testing.T) {
	bot, _ := newTestBot(t)
	bot.handleLine(`@subscriber=1;display-name=Alice :alice!alice@example.com PRIVMSG #chan :hello`)

	var oldNick, newNick string
	bot.SetCallbacks(Callbacks{
		NickChange: func(o, n string, source Source) {
			oldNick, newNick = o, n
		},
	})
	bot.handleLine(":alice!alice@example.com NICK :Alyx")

	assertEqual(oldNick, "alice", t)
	assertEqual(newNick, "Alyx", t)
	channel := bot.directory.GetChannel("#chan")
	if channel.GetUser("alice") != nil {
		t.Fatal("old nick still present after rename")
	}
	renamed := channel.GetUser("alyx")
	if renamed == nil {
		t.Fatal("new nick absent after rename")
	}
	assertEqual(renamed.IsSubscriber(), true, t)
}

func TestOwnNickFollowsServerRename(t *testing.T) {
	bot, _ := newTestBot(t)
	bot.handleLine(":testbot!testbot@example.com NICK :testbot2")
	assertEqual(bot.Nick(), "testbot2", t)
}

func TestJoinPartQuitBookkeeping(t *testing.T) {
	bot, _ := newTestBot(t)
	bot.handleLine(":alice!alice@example.com JOIN #chan")
	bot.handleLine(":alice!alice@example.com JOIN #other")
	assertEqual(bot.directory.GetChannel("#chan").Len(), 1, t)

	bot.handleLine(":alice!alice@example.com PART #chan")
	assertEqual(bot.directory.GetChannel("#chan").Len(), 0, t)
	assertEqual(bot.directory.GetChannel("#other").Len(), 1, t)

	bot.handleLine(":alice!alice@example.com JOIN #chan")
	bot.handleLine(":alice!alice@example.com QUIT :bye")
	assertEqual(bot.directory.GetChannel("#chan").Len(), 0, t)
	assertEqual(bot.directory.GetChannel("#other").Len(), 0, t)
}

func TestPartingOurselvesDropsChannel(t *testing.T) {
	bot, _ := newTestBot(t)
	bot.handleLine(":testbot!testbot@example.com JOIN #chan")
	if bot.directory.GetChannel("#chan") == nil {
		t.Fatal("channel not tracked after join")
	}
	bot.handleLine(":testbot!testbot@example.com PART #chan")
	if bot.directory.GetChannel("#chan") != nil {
		t.Fatal("channel still tracked after we parted")
	}
}

func TestKickRemovesRecipient(t *testing.T) {
	bot, _ := newTestBot(t)
	bot.handleLine(":alice!alice@example.com JOIN #chan")

	var gotReason string
	bot.SetCallbacks(Callbacks{
		Kick: func(channel string, source Source, recipient, reason string) {
			gotReason = reason
		},
	})
	bot.handleLine(":op!op@example.com KICK #chan alice :flooding")
	assertEqual(gotReason, "flooding", t)
	assertEqual(bot.directory.GetChannel("#chan").Len(), 0, t)

	// kicking the bot itself drops the whole channel
	bot.handleLine(":op!op@example.com KICK #chan testbot :bye")
	if bot.directory.GetChannel("#chan") != nil {
		t.Fatal("channel still tracked after we were kicked")
	}
}

func TestModeChanges(t *testing.T) {
	bot, _ := newTestBot(t)
	bot.handleLine(":alice!alice@example.com JOIN #chan")
	bot.handleLine(":bob!bob@example.com JOIN #chan")

	var opped, devoiced string
	var limit int
	bot.SetCallbacks(Callbacks{
		Op:       func(channel string, source Source, recipient string) { opped = recipient },
		Devoice:  func(channel string, source Source, recipient string) { devoiced = recipient },
		LimitSet: func(channel string, source Source, l int) { limit = l },
	})

	bot.handleLine(":op!op@example.com MODE #chan +o-v alice bob")
	assertEqual(opped, "alice", t)
	assertEqual(devoiced, "bob", t)

	channel := bot.directory.GetChannel("#chan")
	assertEqual(channel.GetUser("alice").IsOp(), true, t)
	assertEqual(channel.GetUser("bob").IsVoiced(), false, t)

	bot.handleLine(":op!op@example.com MODE #chan +lk 50 hunter2")
	assertEqual(limit, 50, t)
	assertEqual(channel.UserLimit(), int64(50), t)
	assertEqual(channel.Key(), "hunter2", t)

	bot.handleLine(":op!op@example.com MODE #chan +mi")
	assertEqual(channel.IsModerated(), true, t)
	assertEqual(channel.IsInviteOnly(), true, t)
	bot.handleLine(":op!op@example.com MODE #chan -m")
	assertEqual(channel.IsModerated(), false, t)
}

func TestModeListQueryFiresNoEvents(t *testing.T) {
	bot, _ := newTestBot(t)
	bot.handleLine(":alice!alice@example.com JOIN #chan")
	bot.handleLine(":op!op@example.com MODE #chan +o alice")

	fired := false
	bot.SetCallbacks(Callbacks{
		Deop:       func(channel string, source Source, recipient string) { fired = true },
		Devoice:    func(channel string, source Source, recipient string) { fired = true },
		BanRemoved: func(channel string, source Source, mask string) { fired = true },
	})

	// sign-less flags tokens are list queries, not revocations
	bot.handleLine(":op!op@example.com MODE #chan o alice")
	bot.handleLine(":op!op@example.com MODE #chan v alice")
	bot.handleLine(":op!op@example.com MODE #chan b")

	assertEqual(fired, false, t)
	channel := bot.directory.GetChannel("#chan")
	assertEqual(channel.GetUser("alice").IsOp(), true, t)
}

func TestTopicChange(t *testing.T) {
	bot, _ := newTestBot(t)
	bot.handleLine(":testbot!testbot@example.com JOIN #chan")

	var gotTopic, gotSetBy string
	var gotChanged bool
	bot.SetCallbacks(Callbacks{
		Topic: func(channel, topic, setBy string, changed bool) {
			gotTopic, gotSetBy, gotChanged = topic, setBy, changed
		},
	})

	bot.handleLine(":alice!alice@example.com TOPIC #chan :new topic")
	assertEqual(gotTopic, "new topic", t)
	assertEqual(gotSetBy, "alice", t)
	assertEqual(gotChanged, true, t)

	topic, setBy := bot.directory.GetChannel("#chan").Topic()
	assertEqual(topic, "new topic", t)
	assertEqual(setBy, "alice", t)
}

func TestTopicNumericPair(t *testing.T) {
	bot, _ := newTestBot(t)
	bot.handleLine(":testbot!testbot@example.com JOIN #chan")

	var gotTopic, gotSetBy string
	var gotChanged bool
	bot.SetCallbacks(Callbacks{
		Topic: func(channel, topic, setBy string, changed bool) {
			gotTopic, gotSetBy, gotChanged = topic, setBy, changed
		},
	})

	bot.handleLine(":server 332 testbot #chan :existing topic")
	assertEqual(gotTopic, "", t) // waits for the 333
	bot.handleLine(":server 333 testbot #chan alice 1609459200")
	assertEqual(gotTopic, "existing topic", t)
	assertEqual(gotSetBy, "alice", t)
	assertEqual(gotChanged, false, t)
}

func TestRoomState(t *testing.T) {
	bot, _ := newTestBot(t)
	var gotChannel *Channel
	bot.SetCallbacks(Callbacks{
		RoomState: func(channel *Channel) { gotChannel = channel },
	})

	bot.handleLine(`@broadcaster-lang=en;r9k=1;slow=120;subs-only=1 :tmi.twitch.tv ROOMSTATE #streamerdude`)
	if gotChannel == nil {
		t.Fatal("RoomState callback did not fire")
	}
	assertEqual(gotChannel.BroadcasterLanguage(), "en", t)
	assertEqual(gotChannel.IsR9K(), true, t)
	assertEqual(gotChannel.SlowDelay(), int64(120), t)
	assertEqual(gotChannel.IsSubsOnly(), true, t)
	assertEqual(gotChannel.IsEmoteOnly(), false, t)

	// malformed slow falls back to off, not the -1 sentinel
	bot.handleLine(`@slow=notanumber :tmi.twitch.tv ROOMSTATE #streamerdude`)
	assertEqual(gotChannel.SlowDelay(), int64(0), t)
}

func TestUserState(t *testing.T) {
	bot, _ := newTestBot(t)
	var gotUser *User
	bot.SetCallbacks(Callbacks{
		UserState: func(channel string, user *User) { gotUser = user },
	})

	bot.handleLine(`@color=#FF0000;display-name=TestBot;emote-sets=0,33;mod=1;subscriber=0;user-type=mod :tmi.twitch.tv USERSTATE #streamerdude`)
	if gotUser == nil {
		t.Fatal("UserState callback did not fire")
	}
	assertEqual(gotUser.Nick(), "testbot", t)
	assertEqual(gotUser.EmoteSets(), "0,33", t)
	assertEqual(gotUser.IsMod(), true, t)
}

func TestGlobalUserState(t *testing.T) {
	bot, _ := newTestBot(t)
	var gotUser *User
	bot.SetCallbacks(Callbacks{
		GlobalUserState: func(user *User) { gotUser = user },
	})

	bot.handleLine(`@color=#0000FF;display-name=TestBot;emote-sets=0;turbo=0;user-id=99;user-type= :tmi.twitch.tv GLOBALUSERSTATE`)
	if gotUser == nil {
		t.Fatal("GlobalUserState callback did not fire")
	}
	assertEqual(gotUser.UserID(), int64(99), t)
	assertEqual(gotUser.Color(), "#0000FF", t)
}

func TestUserNotice(t *testing.T) {
	bot, _ := newTestBot(t)
	var gotUser *User
	var gotMessage string
	bot.SetCallbacks(Callbacks{
		UserNotice: func(channel string, user *User, message string) {
			gotUser, gotMessage = user, message
		},
	})

	bot.handleLine(`@badges=subscriber/6;login=somesub;mod=0;msg-id=resub;msg-param-months=6;room-id=1337;subscriber=1;system-msg=SomeSub\shas\ssubscribed\sfor\s6\smonths!;user-id=123 :tmi.twitch.tv USERNOTICE #streamerdude :Great stream!`)
	if gotUser == nil {
		t.Fatal("UserNotice callback did not fire")
	}
	assertEqual(gotMessage, "Great stream!", t)
	assertEqual(gotUser.Login(), "somesub", t)
	assertEqual(gotUser.MsgID(), "resub", t)
	assertEqual(gotUser.Months(), int64(6), t)
	assertEqual(gotUser.SystemMsg(), "SomeSub has subscribed for 6 months!", t)
}

func TestClearChat(t *testing.T) {
	bot, _ := newTestBot(t)
	var gotNick, gotReason string
	var gotDuration int64
	bot.SetCallbacks(Callbacks{
		ClearChat: func(channel, nick string, duration int64, reason string) {
			gotNick, gotDuration, gotReason = nick, duration, reason
		},
	})

	bot.handleLine(`@ban-duration=600;ban-reason=Spamming :tmi.twitch.tv CLEARCHAT #chan :spammer`)
	assertEqual(gotNick, "spammer", t)
	assertEqual(gotDuration, int64(600), t)
	assertEqual(gotReason, "Spamming", t)

	// permanent ban: no duration tag
	bot.handleLine(`@ban-reason=Bye :tmi.twitch.tv CLEARCHAT #chan :baduser`)
	assertEqual(gotDuration, int64(-1), t)

	// whole-room clear: no nick parameter
	bot.handleLine(`:tmi.twitch.tv CLEARCHAT #chan`)
	assertEqual(gotNick, "", t)
}

func TestHostTarget(t *testing.T) {
	bot, _ := newTestBot(t)
	var gotTarget string
	var gotViewers int64
	bot.SetCallbacks(Callbacks{
		HostTarget: func(channel, target string, viewers int64) {
			gotTarget, gotViewers = target, viewers
		},
	})

	bot.handleLine(":tmi.twitch.tv HOSTTARGET #hosting :targetchan 42")
	assertEqual(gotTarget, "targetchan", t)
	assertEqual(gotViewers, int64(42), t)

	bot.handleLine(":tmi.twitch.tv HOSTTARGET #hosting :-")
	assertEqual(gotTarget, "-", t)
	assertEqual(gotViewers, int64(-1), t)
}

func TestWhisper(t *testing.T) {
	bot, _ := newTestBot(t)
	var gotSource Source
	var gotMessage string
	bot.SetCallbacks(Callbacks{
		Whisper: func(source Source, message string) {
			gotSource, gotMessage = source, message
		},
	})

	bot.handleLine(`@badges=;display-name=Alice :alice!alice@alice.tmi.twitch.tv WHISPER testbot :psst`)
	assertEqual(gotSource.Nick, "alice", t)
	assertEqual(gotMessage, "psst", t)
}

func TestCTCPDefaults(t *testing.T) {
	bot, _ := newTestBot(t)
	bot.handleLine(":alice!alice@example.com PRIVMSG testbot :\x01VERSION\x01")
	if !bot.queue.Contains("NOTICE alice :\x01VERSION testbot-1.0\x01") {
		t.Fatal("default VERSION reply not queued")
	}

	bot.handleLine(":alice!alice@example.com PRIVMSG testbot :\x01PING 12345\x01")
	if !bot.queue.Contains("PING 12345") {
		t.Fatal("default PING reply not queued")
	}

	// a Version callback suppresses the default reply
	bot.queue.Clear()
	bot.SetCallbacks(Callbacks{Version: func(source Source, target string) {}})
	bot.handleLine(":alice!alice@example.com PRIVMSG testbot :\x01VERSION\x01")
	assertEqual(bot.queue.Len(), 0, t)
}

func TestAction(t *testing.T) {
	bot, _ := newTestBot(t)
	var gotAction string
	bot.SetCallbacks(Callbacks{
		Action: func(target string, source Source, action string) { gotAction = action },
	})
	bot.handleLine(":alice!alice@example.com PRIVMSG #chan :\x01ACTION waves\x01")
	assertEqual(gotAction, "waves", t)
}

func TestUnknownLine(t *testing.T) {
	bot, _ := newTestBot(t)
	var gotLine string
	bot.SetCallbacks(Callbacks{
		Unknown: func(line string) { gotLine = line },
	})
	bot.handleLine(":server WIBBLE something")
	assertEqual(gotLine, ":server WIBBLE something", t)
}

func TestServerResponseCallback(t *testing.T) {
	bot, _ := newTestBot(t)
	var gotCode int
	var gotParams []string
	bot.SetCallbacks(Callbacks{
		ServerResponse: func(code int, params []string) {
			gotCode, gotParams = code, params
		},
	})
	bot.handleLine(":server 322 testbot #chan 17 :a topic")
	assertEqual(gotCode, 322, t)
	assertEqual(gotParams, []string{"testbot", "#chan", "17", "a topic"}, t)
}

func TestChannelList(t *testing.T) {
	bot, _ := newTestBot(t)
	var infos []ChannelInfo
	bot.SetCallbacks(Callbacks{
		ChannelInfo: func(info ChannelInfo) { infos = append(infos, info) },
	})
	bot.handleLine(":server 322 testbot #alpha 3 :first")
	bot.handleLine(":server 322 testbot #beta 7 :second")
	bot.handleLine(":server 323 testbot :End of /LIST")
	assertEqual(infos, []ChannelInfo{
		{Name: "#alpha", UserCount: 3, Topic: "first"},
		{Name: "#beta", UserCount: 7, Topic: "second"},
	}, t)
}
