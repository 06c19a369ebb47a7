// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/docopt/docopt-go"
	"github.com/ergochat/irc-go/ircfmt"
	"github.com/ergochat/ircbot/irc"
	"github.com/ergochat/ircbot/irc/logger"
	"github.com/okzk/sdnotify"
)

// set via linker flags, either by make or by goreleaser:
var commit = ""  // git hash
var version = "" // tagged version

// get a password from stdin from the user
func getPasswordFromTerminal() string {
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		log.Fatal("Error reading password:", err.Error())
	}
	return string(bytePassword)
}

func main() {
	irc.SetVersionString(version, commit)
	usage := `ircbot.
Usage:
	ircbot run [--conf <filename>] [--quiet] [--ask-password]
	ircbot -h | --help
	ircbot --version
Options:
	--conf <filename>  Configuration file to use [default: ircbot.yaml].
	--quiet            Don't show startup/shutdown lines.
	--ask-password     Prompt for the server password instead of reading it from the config.
	-h --help          Show this screen.
	--version          Show version.`

	arguments, _ := docopt.ParseArgs(usage, nil, irc.Ver)

	configfile := arguments["--conf"].(string)
	config, err := irc.LoadConfig(configfile)
	if err != nil {
		log.Fatal("Config file did not load successfully: ", err.Error())
	}

	if arguments["--ask-password"].(bool) {
		if !term.IsTerminal(int(syscall.Stdin)) {
			log.Fatal("--ask-password requires an interactive terminal")
		}
		fmt.Print("Enter Password: ")
		config.Server.Password = getPasswordFromTerminal()
		fmt.Print("\n")
	}

	logman, err := logger.NewManager(config.Logging)
	if err != nil {
		log.Fatal("Logger did not load successfully:", err.Error())
	}

	if !arguments["run"].(bool) {
		return
	}
	if !arguments["--quiet"].(bool) {
		logman.Info("bot", fmt.Sprintf("%s starting", irc.Ver))
	}

	bot, err := irc.NewBot(config, logman)
	if err != nil {
		logman.Error("bot", fmt.Sprintf("Could not load bot: %s", err.Error()))
		os.Exit(1)
	}

	bot.SetCallbacks(irc.Callbacks{
		Connected: func() {
			sdnotify.Ready()
			for _, channel := range config.Bot.Channels {
				bot.Join(channel)
			}
		},
		Message: func(channel string, source irc.Source, message string) {
			// strip mIRC color/formatting codes before logging
			logman.Debug("chat", channel, source.Nick, ircfmt.Strip(message))
		},
		Disconnected: func() {
			if bot.QuitRequested() {
				return
			}
			// the server hung up on us; retry with a little backoff
			for {
				time.Sleep(30 * time.Second)
				if err := bot.Reconnect(); err == nil {
					return
				}
				logman.Warning("bot", "reconnect failed, retrying")
			}
		},
	})

	if err := bot.Connect(); err != nil {
		logman.Error("bot", fmt.Sprintf("Could not connect: %s", err.Error()))
		os.Exit(1)
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals

	sdnotify.Stopping()
	bot.Quit("Exiting")
	// give the QUIT a moment to flush, then drop the connection
	time.Sleep(2 * time.Second)
	bot.Disconnect()
	if seen := bot.Seen(); seen != nil {
		seen.Close()
	}
}
