// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package irc

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/ergochat/ircbot/irc/logger"
)

// ServerConfig locates and authenticates to the IRC server.
type ServerConfig struct {
	Host     string
	Port     string
	Password string
	TLS      bool
	// InsecureSkipVerify disables certificate validation for TLS.
	InsecureSkipVerify bool `yaml:"insecure-skip-verify"`
	// WebsocketURL, when set, replaces the TCP transport entirely
	// (ws:// or wss://).
	WebsocketURL string        `yaml:"websocket-url"`
	DialTimeout  time.Duration `yaml:"dial-timeout"`
	// Capabilities are requested with CAP REQ after registration,
	// e.g. twitch.tv/tags twitch.tv/commands twitch.tv/membership.
	Capabilities []string
}

// BotConfig describes the bot's own identity.
type BotConfig struct {
	Nick  string
	Login string
	// Version is the USER realname and the default CTCP VERSION reply.
	Version string
	// Finger is the default CTCP FINGER reply.
	Finger string
	// AutoNickChange appends a counter to the nick when it is taken.
	AutoNickChange bool `yaml:"auto-nick-change"`
	// KnownBots are nicks never considered AFK.
	KnownBots []string `yaml:"known-bots"`
	// Channels to join once connected.
	Channels []string
}

// LimitsConfig bounds the session's traffic.
type LimitsConfig struct {
	// MessageDelay is the pause between successive queued lines.
	MessageDelay time.Duration `yaml:"message-delay"`
	// MaxQueuedChatMessages caps chat-class entries in the outgoing
	// queue; messages beyond it are dropped. Zero means unbounded.
	MaxQueuedChatMessages int `yaml:"max-queued-chat-messages"`
	// MaxLineLength caps outgoing lines, CRLF included.
	MaxLineLength int `yaml:"max-line-length"`
	// ReadTimeout ends the session when the server stays silent; the
	// server's own pings normally keep the connection inside it.
	ReadTimeout time.Duration `yaml:"read-timeout"`
}

// DCCConfig governs direct client-to-client transfers.
type DCCConfig struct {
	// Ports is the whitelist of listening ports; empty means any
	// ephemeral port.
	Ports []int
	// BindAddress is the local address to listen on.
	BindAddress string `yaml:"bind-address"`
	// PublicIP overrides the address advertised in offers, for hosts
	// behind NAT.
	PublicIP string `yaml:"public-ip"`
	// PacketDelay throttles outgoing file data.
	PacketDelay time.Duration `yaml:"packet-delay"`
	// AcceptTimeout bounds how long offers wait for the peer.
	AcceptTimeout time.Duration `yaml:"accept-timeout"`
	// MaxTransfers caps concurrent transfers in either direction.
	MaxTransfers int `yaml:"max-transfers"`
}

// DatastoreConfig locates on-disk persistence.
type DatastoreConfig struct {
	// SeenPath is the last-seen database; empty disables it.
	SeenPath string `yaml:"seen-path"`
}

// Config is the root configuration, normally loaded from YAML by
// LoadConfig.
type Config struct {
	Server    ServerConfig
	Bot       BotConfig
	Limits    LimitsConfig
	DCC       DCCConfig
	Datastore DatastoreConfig

	// Encoding names the wire text encoding (an IANA charset name);
	// empty or utf-8 means no transcoding.
	Encoding string

	// ChannelPrefixes are the characters that mark a target as a
	// channel.
	ChannelPrefixes string `yaml:"channel-prefixes"`

	Logging []logger.LoggingConfig

	Filename string `yaml:"-"`
}

// LoadRawConfig loads the config without doing any consistency checks
// or postprocessing.
func LoadRawConfig(filename string) (config *Config, err error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, err
	}
	return config, nil
}

// LoadConfig loads the config, applies defaults, and validates it.
func LoadConfig(filename string) (config *Config, err error) {
	config, err = LoadRawConfig(filename)
	if err != nil {
		return nil, err
	}
	config.Filename = filename

	if config.Bot.Nick == "" {
		return nil, ErrNickMissing
	}
	if config.Server.Host == "" && config.Server.WebsocketURL == "" {
		return nil, ErrServerHostMissing
	}

	if config.Server.Port == "" {
		config.Server.Port = "6667"
	}
	if config.Server.DialTimeout == 0 {
		config.Server.DialTimeout = 30 * time.Second
	}
	if config.Bot.Login == "" {
		config.Bot.Login = config.Bot.Nick
	}
	if config.Bot.Version == "" {
		config.Bot.Version = Ver
	}
	if config.Bot.Finger == "" {
		config.Bot.Finger = "You ought to be arrested for fingering a bot!"
	}

	if config.Limits.MessageDelay == 0 {
		config.Limits.MessageDelay = time.Second
	}
	if config.Limits.MaxLineLength == 0 {
		config.Limits.MaxLineLength = 512
	}
	if config.Limits.MaxLineLength < 128 {
		return nil, ErrLineLengthTooSmall
	}
	if config.Limits.ReadTimeout == 0 {
		config.Limits.ReadTimeout = 5 * time.Minute
	}

	if config.DCC.AcceptTimeout == 0 {
		config.DCC.AcceptTimeout = 2 * time.Minute
	}

	if config.ChannelPrefixes == "" {
		config.ChannelPrefixes = defaultChannelPrefixes
	}

	var newLogConfigs []logger.LoggingConfig
	for _, logConfig := range config.Logging {
		// methods
		methods := make(map[string]bool)
		for _, method := range strings.Split(logConfig.Method, " ") {
			if len(method) > 0 {
				methods[strings.ToLower(method)] = true
			}
		}
		if methods["file"] && logConfig.Filename == "" {
			return nil, ErrLoggerFilenameMissing
		}
		logConfig.MethodFile = methods["file"]
		logConfig.MethodStdout = methods["stdout"]
		logConfig.MethodStderr = methods["stderr"]

		// levels
		level, exists := logger.LogLevelNames[strings.ToLower(logConfig.LevelString)]
		if !exists {
			return nil, fmt.Errorf("Could not translate log level [%s]", logConfig.LevelString)
		}
		logConfig.Level = level

		// types
		for _, typeStr := range strings.Split(logConfig.TypeString, " ") {
			if len(typeStr) == 0 {
				continue
			}
			if typeStr == "-" {
				return nil, ErrLoggerExcludeEmpty
			}
			if typeStr[0] == '-' {
				typeStr = typeStr[1:]
				logConfig.ExcludedTypes = append(logConfig.ExcludedTypes, typeStr)
			} else {
				logConfig.Types = append(logConfig.Types, typeStr)
			}
		}
		if len(logConfig.Types) < 1 {
			return nil, ErrLoggerHasNoTypes
		}

		newLogConfigs = append(newLogConfigs, logConfig)
	}
	config.Logging = newLogConfigs

	return config, nil
}
