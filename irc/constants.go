// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package irc

import "fmt"

const (
	// SemVer is the semantic version of ircbot.
	SemVer = "0.3.0"
)

var (
	// Commit is the current git commit.
	Commit = ""

	// Ver is the full version of ircbot, used in the default CTCP
	// VERSION response and the USER registration line.
	Ver = fmt.Sprintf("ircbot-%s", SemVer)
)

// SetVersionString is called at startup with the tagged version and git
// hash baked in by the linker, if any.
func SetVersionString(version, commit string) {
	Commit = commit
	if version != "" {
		Ver = fmt.Sprintf("ircbot-%s", version)
	} else if commit != "" {
		Ver = fmt.Sprintf("ircbot-%s-%s", SemVer, commit)
	}
}

const (
	// ctcpDelim frames a CTCP payload inside a PRIVMSG or NOTICE.
	ctcpDelim = "\x01"

	// defaultChannelPrefixes are the characters recognized as starting
	// a channel name when no override is configured.
	defaultChannelPrefixes = "#&+!"
)
