// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package irc

import (
	"bytes"
	"crypto/tls"
	"net"
	"time"
	"unicode/utf8"

	"github.com/ergochat/irc-go/ircreader"
	"github.com/gorilla/websocket"
)

const (
	// generous reading cap: tag data plus the normal line allowance
	maxReadQBytes = 8192 + 512 + 1024

	initialReadQBytes = 1024
)

var (
	crlf = []byte{'\r', '\n'}
)

// IRCConn abstracts over a stream connection (TCP or TLS) and a
// websocket. It doesn't expose Read and Write because websockets are
// message-oriented, not stream-oriented.
type IRCConn interface {
	UnderlyingConn() net.Conn

	// WriteLine writes one line; the caller includes the trailing CRLF.
	WriteLine([]byte) error
	// ReadLine blocks for the next line, without its line ending.
	ReadLine() (line []byte, err error)
	// SetReadDeadline bounds the next ReadLine.
	SetReadDeadline(t time.Time) error

	Close() error
}

// IRCStreamConn is an IRCConn over a regular stream connection.
type IRCStreamConn struct {
	conn   net.Conn
	reader ircreader.Reader
}

func NewIRCStreamConn(conn net.Conn) *IRCStreamConn {
	var c IRCStreamConn
	c.conn = conn
	c.reader.Initialize(conn, initialReadQBytes, maxReadQBytes)
	return &c
}

func (cc *IRCStreamConn) UnderlyingConn() net.Conn {
	return cc.conn
}

func (cc *IRCStreamConn) WriteLine(buf []byte) (err error) {
	_, err = cc.conn.Write(buf)
	return
}

func (cc *IRCStreamConn) ReadLine() (line []byte, err error) {
	line, err = cc.reader.ReadLine()
	if err != nil {
		return
	}
	return bytes.TrimSuffix(line, crlf), nil
}

func (cc *IRCStreamConn) SetReadDeadline(t time.Time) error {
	return cc.conn.SetReadDeadline(t)
}

func (cc *IRCStreamConn) Close() (err error) {
	return cc.conn.Close()
}

// IRCWSConn is an IRCConn over a websocket.
type IRCWSConn struct {
	conn *websocket.Conn
}

func NewIRCWSConn(conn *websocket.Conn) IRCWSConn {
	return IRCWSConn{conn: conn}
}

func (wc IRCWSConn) UnderlyingConn() net.Conn {
	return wc.conn.UnderlyingConn()
}

func (wc IRCWSConn) WriteLine(buf []byte) (err error) {
	buf = bytes.TrimSuffix(buf, crlf)
	// there's not much we can do about this;
	// silently drop the message
	if !utf8.Valid(buf) {
		return nil
	}
	return wc.conn.WriteMessage(websocket.TextMessage, buf)
}

func (wc IRCWSConn) ReadLine() (line []byte, err error) {
	for {
		var messageType int
		messageType, line, err = wc.conn.ReadMessage()
		// on empty message or non-text message, try again, block if necessary
		if err != nil || (messageType == websocket.TextMessage && len(line) != 0) {
			return
		}
	}
}

func (wc IRCWSConn) SetReadDeadline(t time.Time) error {
	return wc.conn.SetReadDeadline(t)
}

func (wc IRCWSConn) Close() (err error) {
	return wc.conn.Close()
}

// dialServer establishes the configured transport: a websocket when a
// ws:// or wss:// URL is given, otherwise a TCP (optionally TLS)
// stream.
func dialServer(config *Config) (conn IRCConn, err error) {
	server := config.Server
	if server.WebsocketURL != "" {
		wsConn, _, wsErr := websocket.DefaultDialer.Dial(server.WebsocketURL, nil)
		if wsErr != nil {
			return nil, wsErr
		}
		return NewIRCWSConn(wsConn), nil
	}

	addr := net.JoinHostPort(server.Host, server.Port)
	dialer := net.Dialer{Timeout: server.DialTimeout}
	if server.TLS {
		tlsConfig := &tls.Config{
			ServerName:         server.Host,
			InsecureSkipVerify: server.InsecureSkipVerify,
		}
		var tlsConn *tls.Conn
		tlsConn, err = tls.DialWithDialer(&dialer, "tcp", addr, tlsConfig)
		if err != nil {
			return nil, err
		}
		return NewIRCStreamConn(tlsConn), nil
	}

	netConn, err := dialer.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewIRCStreamConn(netConn), nil
}
