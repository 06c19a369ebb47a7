// Copyright (c) 2020 Shivaram Lingamneni <slingamn@cs.stanford.edu>
// released under the MIT license

package irc

import (
	"encoding/binary"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDCCSendOfferParsing(t *testing.T) {
	bot, _ := newTestBot(t)
	var transfer *Transfer
	bot.SetCallbacks(Callbacks{
		IncomingFileTransfer: func(tr *Transfer) { transfer = tr },
	})

	bot.handleLine(":alice!alice@example.com PRIVMSG testbot :\x01DCC SEND notes.txt 2130706433 5000 1234\x01")
	require.NotNil(t, transfer)
	require.Equal(t, "alice", transfer.Nick)
	require.Equal(t, "notes.txt", transfer.Filename)
	require.Equal(t, int64(1234), transfer.Size)
	require.Equal(t, "127.0.0.1", transfer.peerIP.String())
	require.Equal(t, 5000, transfer.peerPort)
	require.Equal(t, TransferOffered, transfer.State())
}

func TestDCCSendOfferWithoutSize(t *testing.T) {
	bot, _ := newTestBot(t)
	var transfer *Transfer
	bot.SetCallbacks(Callbacks{
		IncomingFileTransfer: func(tr *Transfer) { transfer = tr },
	})
	bot.handleLine(":alice!alice@example.com PRIVMSG testbot :\x01DCC SEND notes.txt 2130706433 5000\x01")
	require.NotNil(t, transfer)
	require.Equal(t, int64(-1), transfer.Size)
}

// serveFile plays the sending peer: accept one connection, push the
// payload, then drain acks until the peer hangs up, returning the last
// acknowledged total.
func serveFile(t *testing.T, listener net.Listener, payload []byte, lastAck chan<- uint32) {
	t.Helper()
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			lastAck <- 0
			return
		}
		defer conn.Close()
		conn.Write(payload)
		var last uint32
		ack := make([]byte, 4)
		for {
			if _, err := io.ReadFull(conn, ack); err != nil {
				break
			}
			last = binary.BigEndian.Uint32(ack)
			if int64(last) >= int64(len(payload)) {
				break
			}
		}
		lastAck <- last
	}()
}

func TestDCCReceive(t *testing.T) {
	bot, _ := newTestBot(t)
	payload := []byte("direct client connection payload")

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	lastAck := make(chan uint32, 1)
	serveFile(t, listener, payload, lastAck)

	var finished *Transfer
	var finishErr error
	bot.SetCallbacks(Callbacks{
		FileTransferFinished: func(tr *Transfer, err error) {
			finished, finishErr = tr, err
		},
	})

	transfer := &Transfer{
		manager:  bot.dcc,
		Nick:     "alice",
		Filename: "payload.bin",
		Size:     int64(len(payload)),
		incoming: true,
		peerIP:   net.IPv4(127, 0, 0, 1),
		peerPort: listener.Addr().(*net.TCPAddr).Port,
		acceptCh: make(chan int64, 1),
	}

	dest := filepath.Join(t.TempDir(), "payload.bin")
	require.NoError(t, transfer.Receive(dest, false))
	require.Equal(t, TransferComplete, transfer.State())
	require.Equal(t, transfer, finished)
	require.NoError(t, finishErr)

	written, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, payload, written)

	select {
	case ack := <-lastAck:
		require.Equal(t, uint32(len(payload)), ack)
	case <-time.After(time.Second):
		t.Fatal("sender never saw the final ack")
	}
}

func TestDCCReceiveResume(t *testing.T) {
	bot, _ := newTestBot(t)
	payload := []byte("the entire file contents here")
	already := int64(8)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	port := listener.Addr().(*net.TCPAddr).Port
	lastAck := make(chan uint32, 1)
	serveFile(t, listener, payload[already:], lastAck)

	dest := filepath.Join(t.TempDir(), "resume.bin")
	require.NoError(t, os.WriteFile(dest, payload[:already], 0644))

	transfer := &Transfer{
		manager:  bot.dcc,
		Nick:     "alice",
		Filename: "resume.bin",
		Size:     int64(len(payload)),
		incoming: true,
		peerIP:   net.IPv4(127, 0, 0, 1),
		peerPort: port,
		acceptCh: make(chan int64, 1),
	}

	// grant the RESUME once the request has been issued
	go func() {
		deadline := time.Now().Add(time.Second)
		for time.Now().Before(deadline) {
			if bot.queue.Contains("DCC RESUME resume.bin") {
				bot.dcc.handleAccept([]string{"resume.bin", strconv.Itoa(port), strconv.FormatInt(already, 10)})
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	require.NoError(t, transfer.Receive(dest, true))
	written, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, payload, written)
}

func TestDCCTransferLimit(t *testing.T) {
	bot, _ := newTestBot(t)
	m := newDCCManager(bot, DCCConfig{MaxTransfers: 1, AcceptTimeout: time.Second})
	require.True(t, m.transferSem.TryAcquire())

	transfer := &Transfer{
		manager:  m,
		incoming: true,
		peerIP:   net.IPv4(127, 0, 0, 1),
		peerPort: 1,
		acceptCh: make(chan int64, 1),
	}
	err := transfer.Receive(filepath.Join(t.TempDir(), "x"), false)
	require.Equal(t, errTransferLimit, err)
}

func TestDCCReceiveRejectsOutgoing(t *testing.T) {
	bot, _ := newTestBot(t)
	transfer := &Transfer{manager: bot.dcc}
	require.Equal(t, errNotIncoming, transfer.Receive("x", false))
}

func TestDCCChatOfferAndAccept(t *testing.T) {
	bot, _ := newTestBot(t)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	port := listener.Addr().(*net.TCPAddr).Port

	peerLines := make(chan string, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("hello from peer\r\n"))
		buf := make([]byte, 64)
		n, _ := conn.Read(buf)
		peerLines <- string(buf[:n])
	}()

	var chat *Chat
	bot.SetCallbacks(Callbacks{
		IncomingChatRequest: func(c *Chat) { chat = c },
	})
	bot.handleLine(":alice!alice@example.com PRIVMSG testbot :\x01DCC CHAT chat 2130706433 " + strconv.Itoa(port) + "\x01")
	require.NotNil(t, chat)
	require.Equal(t, ChatRequested, chat.State())

	require.NoError(t, chat.Accept())
	require.Equal(t, ChatConnected, chat.State())
	defer chat.Close()

	line, err := chat.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "hello from peer", line)

	require.NoError(t, chat.SendLine("hello back"))
	select {
	case got := <-peerLines:
		require.Equal(t, "hello back\r\n", got)
	case <-time.After(time.Second):
		t.Fatal("peer never received our line")
	}
}

func TestDCCChatRequestTimeout(t *testing.T) {
	bot, _ := newTestBot(t)
	// nobody will connect to the listener, so the request comes back nil
	chat := bot.dcc.SendChatRequest("alice", 50*time.Millisecond)
	require.Nil(t, chat)
}

func TestDCCPortWhitelist(t *testing.T) {
	bot, _ := newTestBot(t)

	// occupy a port, then whitelist it plus a free one
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupied.Close()
	busyPort := occupied.Addr().(*net.TCPAddr).Port

	free, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	freePort := free.Addr().(*net.TCPAddr).Port
	free.Close()

	m := newDCCManager(bot, DCCConfig{
		BindAddress: "127.0.0.1",
		Ports:       []int{busyPort, freePort},
	})
	listener, port, err := m.listen()
	require.NoError(t, err)
	defer listener.Close()
	require.Equal(t, freePort, port)

	// a whitelist with no bindable ports is an error
	m2 := newDCCManager(bot, DCCConfig{
		BindAddress: "127.0.0.1",
		Ports:       []int{busyPort},
	})
	_, _, err = m2.listen()
	require.Equal(t, errNoPortsAvailable, err)
}
