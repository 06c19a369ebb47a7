// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package irc

import "errors"

// Connection Errors
var (
	// ErrAlreadyConnected is returned by Connect when a session is not
	// in the Disconnected state.
	ErrAlreadyConnected = errors.New("Already connected to an IRC server; disconnect first")
	// ErrNickInUse is returned by Connect when the server rejects our
	// nick and automatic nick changing is disabled.
	ErrNickInUse = errors.New("Nickname is already in use")
	// ErrProtocolRejected is returned by Connect when the server
	// refuses registration with an error numeric other than 433/439.
	ErrProtocolRejected = errors.New("Could not log into the IRC server")
	// ErrNotConnected is returned by operations requiring a live session.
	ErrNotConnected = errors.New("Not connected to an IRC server")
	// ErrNeverConnected is returned by Reconnect before any Connect.
	ErrNeverConnected = errors.New("Cannot reconnect: never connected to a server previously")
)

// DCC Errors
var (
	errNoPortsAvailable = errors.New("All configured DCC ports are in use")
	errTransferLimit    = errors.New("Too many concurrent DCC transfers")
	errTransferActive   = errors.New("Transfer has already been started")
	errNotIncoming      = errors.New("Not an incoming transfer")
)

// Config Errors
var (
	ErrNickMissing           = errors.New("Nick missing from configuration")
	ErrServerHostMissing     = errors.New("Server host missing from configuration")
	ErrLoggerExcludeEmpty    = errors.New("Encountered logging type '-' with no type to exclude")
	ErrLoggerHasNoTypes      = errors.New("Logger has no types to log")
	ErrLoggerFilenameMissing = errors.New("Logging configuration specifies 'file' method but 'filename' is empty")
	ErrLineLengthTooSmall    = errors.New("Maximum line length must be at least 128")
	ErrUnknownEncoding       = errors.New("Unrecognized text encoding name")
)
