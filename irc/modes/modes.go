// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package modes

import (
	"strings"
)

// ModeOp is an operation performed with modes
type ModeOp rune

const (
	// Add is used when adding the given key.
	Add ModeOp = '+'
	// List is used when no sign has been seen yet.
	List ModeOp = '='
	// Remove is used when taking away the given key.
	Remove ModeOp = '-'
)

// Mode represents a channel or user mode
type Mode rune

func (mode Mode) String() string {
	return string(mode)
}

// Channel modes this library decodes into specific events. Servers may
// send others; those track the active sign but produce no event.
const (
	BanMask         Mode = 'b' // arg
	InviteOnly      Mode = 'i' // flag
	Key             Mode = 'k' // flag arg
	Moderated       Mode = 'm' // flag
	NoOutside       Mode = 'n' // flag
	ChannelOperator Mode = 'o' // arg
	Private         Mode = 'p' // flag
	Secret          Mode = 's' // flag
	OpOnlyTopic     Mode = 't' // flag
	UserLimit       Mode = 'l' // flag arg
	Voice           Mode = 'v' // arg
)

// ModeChange is a single mode changing
type ModeChange struct {
	Mode Mode
	Op   ModeOp
	Arg  string
}

// ModeChanges are a collection of 'ModeChange's
type ModeChanges []ModeChange

// Modes is just a raw list of modes
type Modes []Mode

func (modes Modes) String() string {
	var builder strings.Builder
	for _, m := range modes {
		builder.WriteRune(rune(m))
	}
	return builder.String()
}

// consumesParameter reports whether the given mode letter consumes one
// parameter from the MODE line. `o`, `v`, `k` and `b` always consume;
// `l` consumes only when being set.
func consumesParameter(mode Mode, op ModeOp) bool {
	switch mode {
	case ChannelOperator, Voice, Key, BanMask:
		return true
	case UserLimit:
		return op == Add
	}
	return false
}

// ParseChannelModeChanges decodes a MODE parameter list (the flags token
// followed by its parameters) into the ordered list of changes, and the
// list of letters we have no specific handling for. Parameters are
// consumed strictly left to right, in flag order; unrecognized letters
// update the active sign but consume nothing.
func ParseChannelModeChanges(params ...string) (changes ModeChanges, unknown []rune) {
	if len(params) == 0 {
		return
	}

	op := List
	skipArgs := 1

	for _, mode := range params[0] {
		if mode == '-' || mode == '+' {
			op = ModeOp(mode)
			continue
		}
		change := ModeChange{
			Mode: Mode(mode),
			Op:   op,
		}
		if consumesParameter(change.Mode, op) {
			if len(params) > skipArgs {
				change.Arg = params[skipArgs]
			}
			skipArgs++
		}
		switch change.Mode {
		case BanMask, InviteOnly, Key, Moderated, NoOutside, ChannelOperator,
			Private, Secret, OpOnlyTopic, UserLimit, Voice:
			changes = append(changes, change)
		default:
			unknown = append(unknown, mode)
		}
	}

	return changes, unknown
}

// membership status prefixes found on nicks in NAMES replies; `.` is a
// nonstandard prefix some networks send.
const statusPrefixes = "~&@%+."

// SplitMembershipPrefixes takes a nick as it appears in a NAMES reply
// and returns the status prefixes on it, then the bare nick.
func SplitMembershipPrefixes(target string) (prefixes string, name string) {
	name = target
	for i := 0; i < len(target); i++ {
		if strings.IndexByte(statusPrefixes, target[i]) == -1 {
			return
		}
		prefixes = target[:i+1]
		name = target[i+1:]
	}
	return
}
