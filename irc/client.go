// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package irc

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/ergochat/ircbot/irc/logger"
)

// SessionState is the lifecycle state of a Bot's server connection.
type SessionState uint

const (
	// Disconnected is the initial state, and the state after a session
	// ends for any reason.
	Disconnected SessionState = iota
	// Connecting covers dialing the transport.
	Connecting
	// Handshaking covers the PASS/NICK/USER exchange.
	Handshaking
	// Connected means registration succeeded and the loops are running.
	Connected
)

// Bot is a single IRC client session plus its tracked state. Construct
// with NewBot, attach callbacks with SetCallbacks, then Connect. A Bot
// may be reconnected after disconnection; queued outgoing lines
// survive into the next session, tracked channel state does not.
type Bot struct {
	stateMutex sync.RWMutex
	writeMutex sync.Mutex

	config    *Config
	logger    *logger.Manager
	callbacks Callbacks
	directory *Directory
	queue     *OutgoingQueue
	dcc       *DCCManager
	seen      *SeenStore

	// attributes learned about our own connection via GLOBALUSERSTATE
	globalUser *User

	conn             IRCConn
	state            SessionState
	nick             string
	hasEverConnected bool
	quitRequested    bool

	channelPrefixes string
	maxLineLength   int
	messageDelay    time.Duration
	readTimeout     time.Duration
	versionReply    string
	fingerReply     string
	autoNickChange  bool

	encoder *encoding.Encoder
	decoder *encoding.Decoder

	pendingTopics map[string]topicRecord
}

// NewBot builds a Bot from a validated configuration. The logger may
// be shared with the embedding application.
func NewBot(config *Config, lm *logger.Manager) (result *Bot, err error) {
	b := &Bot{
		config:          config,
		logger:          lm,
		directory:       NewDirectory(),
		queue:           NewOutgoingQueue(config.Limits.MaxQueuedChatMessages),
		globalUser:      NewUser(config.Bot.Nick, ""),
		nick:            config.Bot.Nick,
		channelPrefixes: config.ChannelPrefixes,
		maxLineLength:   config.Limits.MaxLineLength,
		messageDelay:    config.Limits.MessageDelay,
		readTimeout:     config.Limits.ReadTimeout,
		versionReply:    config.Bot.Version,
		fingerReply:     config.Bot.Finger,
		autoNickChange:  config.Bot.AutoNickChange,
		pendingTopics:   make(map[string]topicRecord),
	}
	b.dcc = newDCCManager(b, config.DCC)

	if name := config.Encoding; name != "" && !strings.EqualFold(name, "utf-8") {
		enc, encErr := ianaindex.IANA.Encoding(name)
		if encErr != nil || enc == nil {
			return nil, ErrUnknownEncoding
		}
		b.encoder = enc.NewEncoder()
		b.decoder = enc.NewDecoder()
	}

	if config.Datastore.SeenPath != "" {
		b.seen, err = OpenSeenStore(config.Datastore.SeenPath)
		if err != nil {
			return nil, err
		}
	}

	SetKnownBots(config.Bot.KnownBots)
	return b, nil
}

// SetCallbacks installs the event surface; call before Connect.
func (b *Bot) SetCallbacks(callbacks Callbacks) {
	b.callbacks = callbacks
}

// Directory returns the channel/user store for this session.
func (b *Bot) Directory() *Directory {
	return b.directory
}

// DCC returns the peer-to-peer transfer manager.
func (b *Bot) DCC() *DCCManager {
	return b.dcc
}

// Seen returns the last-seen store, or nil when none is configured.
func (b *Bot) Seen() *SeenStore {
	return b.seen
}

// Nick returns the nick the session currently holds; it may differ
// from the configured nick after automatic nick changing or a server
// rename.
func (b *Bot) Nick() string {
	b.stateMutex.RLock()
	defer b.stateMutex.RUnlock()
	return b.nick
}

func (b *Bot) setNick(nick string) {
	b.stateMutex.Lock()
	b.nick = nick
	b.stateMutex.Unlock()
}

// State returns the current session state.
func (b *Bot) State() SessionState {
	b.stateMutex.RLock()
	defer b.stateMutex.RUnlock()
	return b.state
}

// Connect dials the configured server, performs registration, and on
// success starts the session's read and write loops. It blocks until
// registration succeeds or fails. Incoming lines received during
// registration are dispatched normally, so numeric callbacks fire for
// the registration burst too.
func (b *Bot) Connect() (err error) {
	b.stateMutex.Lock()
	if b.state != Disconnected {
		b.stateMutex.Unlock()
		return ErrAlreadyConnected
	}
	b.state = Connecting
	b.quitRequested = false
	b.pendingTopics = make(map[string]topicRecord)
	b.stateMutex.Unlock()

	// never reuse stale channel state from a previous session
	b.directory.Clear()

	conn, err := dialServer(b.config)
	if err != nil {
		b.setState(Disconnected)
		return err
	}

	b.stateMutex.Lock()
	b.conn = conn
	b.state = Handshaking
	b.stateMutex.Unlock()

	// don't clear the outgoing queue: there might be something
	// important in it from the previous session
	generation := b.queue.Start()

	err = b.register(conn)
	if err != nil {
		conn.Close()
		b.setState(Disconnected)
		return err
	}

	b.stateMutex.Lock()
	b.state = Connected
	b.hasEverConnected = true
	b.stateMutex.Unlock()

	if caps := b.config.Server.Capabilities; len(caps) > 0 {
		b.write("CAP REQ :" + strings.Join(caps, " "))
	}

	b.logger.Info("connect", "logged onto server", b.config.Server.Host, "as", b.Nick())
	if b.callbacks.Connected != nil {
		b.callbacks.Connected()
	}

	go b.writeLoop(generation)
	go b.readLoop(conn)
	return nil
}

// register performs the PASS/NICK/USER exchange and consumes the
// server's verdict. Every line read here is dispatched before its
// numeric is inspected.
func (b *Bot) register(conn IRCConn) (err error) {
	server := b.config.Server
	bot := b.config.Bot

	if server.Password != "" {
		b.write("PASS " + server.Password)
	}
	nick := bot.Nick
	b.write("NICK " + nick)
	b.write("USER " + bot.Login + " 8 * :" + b.versionReply)

	tries := 1
	for {
		conn.SetReadDeadline(time.Now().Add(b.readTimeout))
		lineBytes, readErr := conn.ReadLine()
		if readErr != nil {
			return readErr
		}
		line := b.decode(lineBytes)
		b.logger.Debug("input", line)
		b.handleLine(line)

		code := registrationCode(line)
		switch {
		case code == RPL_MYINFO:
			b.setNick(nick)
			return nil
		case code == ERR_NICKNAMEINUSE:
			if !b.autoNickChange {
				return ErrNickInUse
			}
			tries++
			nick = bot.Nick + strconv.Itoa(tries)
			b.logger.Info("connect", "nick in use, trying", nick)
			b.write("NICK " + nick)
		case code == ERR_TARGETTOOFAST:
			// some networks send 439 mid-registration; it is not a verdict
		case 400 <= code && code < 600:
			return ErrProtocolRejected
		}
	}
}

// registrationCode extracts the numeric of a server line during
// registration, or -1 when the second token is not a numeric.
func registrationCode(line string) int {
	fields := strings.SplitN(line, " ", 3)
	if len(fields) < 2 {
		return -1
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return -1
	}
	return code
}

// readLoop pulls lines until the connection dies, dispatching each one
// synchronously. A silent server trips the read deadline, which ends
// the session rather than hanging it.
func (b *Bot) readLoop(conn IRCConn) {
	for {
		conn.SetReadDeadline(time.Now().Add(b.readTimeout))
		lineBytes, err := conn.ReadLine()
		if err != nil {
			b.logger.Info("connect", "connection closed", err.Error())
			break
		}
		line := b.decode(lineBytes)
		b.logger.Debug("input", line)
		b.handleLine(line)
	}
	b.teardown()
}

// writeLoop drains the outgoing queue, pacing successive lines by the
// configured delay. It exits when the queue is stopped at teardown.
// generation pins the loop to the session it was started for, so a
// stale loop can never race a successor spawned by a prompt reconnect.
func (b *Bot) writeLoop(generation uint64) {
	for {
		line, class, ok := b.queue.DequeueFor(generation)
		if !ok {
			return
		}
		b.write(line)
		if class == ClassChat && b.callbacks.SentMessage != nil {
			b.callbacks.SentMessage(line)
		}
		time.Sleep(b.messageDelay)
	}
}

// write encodes and writes one line immediately.
func (b *Bot) write(line string) {
	b.stateMutex.RLock()
	conn := b.conn
	b.stateMutex.RUnlock()
	if conn == nil {
		return
	}

	b.logger.Debug("output", line)
	out := line
	if b.encoder != nil {
		if encoded, err := b.encoder.String(line); err == nil {
			out = encoded
		}
	}
	b.writeMutex.Lock()
	err := conn.WriteLine([]byte(out + "\r\n"))
	b.writeMutex.Unlock()
	if err != nil {
		b.logger.Warning("connect", "write failed", err.Error())
	}
}

func (b *Bot) decode(line []byte) string {
	if b.decoder != nil {
		if decoded, err := b.decoder.Bytes(line); err == nil {
			return string(decoded)
		}
	}
	return string(line)
}

// Quit sends QUIT and lets the server close the connection; the
// Disconnected callback fires when it does.
func (b *Bot) Quit(reason string) {
	b.stateMutex.Lock()
	b.quitRequested = true
	b.stateMutex.Unlock()
	b.SendRawLine("QUIT :" + reason)
}

// Disconnect tears the session down immediately without a QUIT.
func (b *Bot) Disconnect() {
	b.stateMutex.RLock()
	conn := b.conn
	b.stateMutex.RUnlock()
	if conn != nil {
		conn.Close()
	}
}

// Reconnect re-establishes a session with the same configuration as
// the previous one. Lines still queued from before the disconnection
// are sent once registration completes.
func (b *Bot) Reconnect() error {
	b.stateMutex.RLock()
	ever := b.hasEverConnected
	b.stateMutex.RUnlock()
	if !ever {
		return ErrNeverConnected
	}
	return b.Connect()
}

// QuitRequested reports whether the last disconnection was initiated
// by Quit, as opposed to a network failure.
func (b *Bot) QuitRequested() bool {
	b.stateMutex.RLock()
	defer b.stateMutex.RUnlock()
	return b.quitRequested
}

func (b *Bot) setState(state SessionState) {
	b.stateMutex.Lock()
	b.state = state
	b.stateMutex.Unlock()
}

// teardown ends the session exactly once: the queue stops (retaining
// entries), tracked channel state is discarded, and Disconnected
// fires.
func (b *Bot) teardown() {
	b.stateMutex.Lock()
	if b.state == Disconnected {
		b.stateMutex.Unlock()
		return
	}
	b.state = Disconnected
	conn := b.conn
	b.conn = nil
	b.stateMutex.Unlock()

	b.queue.Stop()
	if conn != nil {
		conn.Close()
	}
	b.directory.Clear()

	b.stateMutex.Lock()
	b.pendingTopics = make(map[string]topicRecord)
	b.stateMutex.Unlock()

	if b.callbacks.Disconnected != nil {
		b.callbacks.Disconnected()
	}
}
