// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package irc

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"code.cloudfoundry.org/bytefmt"

	"github.com/ergochat/ircbot/irc/utils"
)

const (
	// dccPacketSize is the chunk size for file transfers.
	dccPacketSize = 1024
)

// TransferState is the lifecycle state of a DCC file transfer.
type TransferState uint

const (
	// TransferOffered: announced but no data connection yet.
	TransferOffered TransferState = iota
	// TransferConnecting: waiting for the peer connection.
	TransferConnecting
	// TransferActive: data is flowing.
	TransferActive
	// TransferComplete: all bytes moved.
	TransferComplete
	// TransferFailed: ended early.
	TransferFailed
)

// DCCManager coordinates direct client-to-client transfers and chats
// for one Bot. Offers and handshake lines ride the IRC session as
// CTCP-framed messages; the data itself moves over direct TCP
// connections negotiated here.
type DCCManager struct {
	bot    *Bot
	config DCCConfig

	transferSem utils.Semaphore

	stateMutex     sync.Mutex
	pendingSends   map[int]*Transfer // keyed by listening port, for RESUME
	awaitingAccept map[int]*Transfer // receivers waiting on an ACCEPT
}

func newDCCManager(bot *Bot, config DCCConfig) (result *DCCManager) {
	result = &DCCManager{
		bot:            bot,
		config:         config,
		pendingSends:   make(map[int]*Transfer),
		awaitingAccept: make(map[int]*Transfer),
	}
	maxTransfers := config.MaxTransfers
	if maxTransfers <= 0 {
		maxTransfers = 4
	}
	result.transferSem.Initialize(maxTransfers)
	return
}

// Transfer is one DCC file transfer, incoming or outgoing. Incoming
// transfers arrive via the IncomingFileTransfer callback and start
// when the application calls Receive; outgoing ones are created by
// SendFile.
type Transfer struct {
	manager *DCCManager

	stateMutex sync.Mutex
	state      TransferState

	Nick     string
	Filename string
	Size     int64 // -1 when the offer did not include a size
	incoming bool

	peerIP   net.IP
	peerPort int

	listener net.Listener
	file     *os.File
	startPos int64
	progress int64

	acceptCh chan int64
}

// State returns the transfer's current state.
func (t *Transfer) State() TransferState {
	t.stateMutex.Lock()
	defer t.stateMutex.Unlock()
	return t.state
}

func (t *Transfer) setState(state TransferState) {
	t.stateMutex.Lock()
	t.state = state
	t.stateMutex.Unlock()
}

// Progress returns the number of bytes moved so far.
func (t *Transfer) Progress() int64 {
	t.stateMutex.Lock()
	defer t.stateMutex.Unlock()
	return t.progress
}

func (t *Transfer) addProgress(n int64) int64 {
	t.stateMutex.Lock()
	defer t.stateMutex.Unlock()
	t.progress += n
	return t.progress
}

// handleRequest parses the payload of an incoming CTCP DCC command and
// routes it.
func (m *DCCManager) handleRequest(source Source, payload string) {
	fields := strings.Fields(payload)
	if len(fields) == 0 {
		return
	}
	switch strings.ToUpper(fields[0]) {
	case "SEND":
		m.handleSendOffer(source, fields[1:])
	case "CHAT":
		m.handleChatOffer(source, fields[1:])
	case "RESUME":
		m.handleResume(source, fields[1:])
	case "ACCEPT":
		m.handleAccept(fields[1:])
	default:
		m.bot.logger.Debug("dcc", "unrecognized DCC command", payload)
	}
}

// handleSendOffer: SEND <filename> <ip-as-uint32> <port> [size]
func (m *DCCManager) handleSendOffer(source Source, fields []string) {
	if len(fields) < 3 {
		return
	}
	ipLong, err1 := strconv.ParseUint(fields[1], 10, 32)
	port, err2 := strconv.Atoi(fields[2])
	if err1 != nil || err2 != nil {
		return
	}
	size := int64(-1)
	if len(fields) >= 4 {
		if parsed, err := strconv.ParseInt(fields[3], 10, 64); err == nil {
			size = parsed
		}
	}
	transfer := &Transfer{
		manager:  m,
		Nick:     source.Nick,
		Filename: fields[0],
		Size:     size,
		incoming: true,
		peerIP:   utils.Uint32ToIPv4(uint32(ipLong)),
		peerPort: port,
		acceptCh: make(chan int64, 1),
	}
	m.bot.logger.Info("dcc", "incoming file offer", transfer.Filename, "from", source.Nick, "size", formatSize(size))
	if m.bot.callbacks.IncomingFileTransfer != nil {
		m.bot.callbacks.IncomingFileTransfer(transfer)
	}
}

// handleResume: RESUME <filename> <port> <position>; the peer wants us
// to restart one of our outgoing offers partway through.
func (m *DCCManager) handleResume(source Source, fields []string) {
	if len(fields) < 3 {
		return
	}
	port, err1 := strconv.Atoi(fields[1])
	position, err2 := strconv.ParseInt(fields[2], 10, 64)
	if err1 != nil || err2 != nil {
		return
	}
	m.stateMutex.Lock()
	transfer := m.pendingSends[port]
	m.stateMutex.Unlock()
	if transfer == nil || transfer.State() != TransferConnecting {
		return
	}
	transfer.stateMutex.Lock()
	transfer.startPos = position
	transfer.progress = position
	transfer.stateMutex.Unlock()
	m.bot.sendCTCPReply(source.Nick, fmt.Sprintf("DCC ACCEPT %s %d %d", fields[0], port, position))
}

// handleAccept: ACCEPT <filename> <port> <position>; the peer granted
// our RESUME request.
func (m *DCCManager) handleAccept(fields []string) {
	if len(fields) < 3 {
		return
	}
	port, err1 := strconv.Atoi(fields[1])
	position, err2 := strconv.ParseInt(fields[2], 10, 64)
	if err1 != nil || err2 != nil {
		return
	}
	m.stateMutex.Lock()
	transfer := m.awaitingAccept[port]
	delete(m.awaitingAccept, port)
	m.stateMutex.Unlock()
	if transfer != nil {
		transfer.acceptCh <- position
	}
}

// listen binds a listener on the first available whitelisted port, or
// an ephemeral port when no whitelist is configured.
func (m *DCCManager) listen() (listener net.Listener, port int, err error) {
	bindAddr := m.config.BindAddress
	if len(m.config.Ports) == 0 {
		listener, err = net.Listen("tcp", net.JoinHostPort(bindAddr, "0"))
		if err != nil {
			return nil, 0, err
		}
		return listener, listener.Addr().(*net.TCPAddr).Port, nil
	}
	for _, candidate := range m.config.Ports {
		listener, err = net.Listen("tcp", net.JoinHostPort(bindAddr, strconv.Itoa(candidate)))
		if err == nil {
			return listener, candidate, nil
		}
	}
	return nil, 0, errNoPortsAvailable
}

// publicIP determines the address we advertise in offers: the
// configured public IP when set, otherwise the local address of the
// IRC connection.
func (m *DCCManager) publicIP() net.IP {
	if m.config.PublicIP != "" {
		if ip := net.ParseIP(m.config.PublicIP); ip != nil {
			return ip
		}
	}
	m.bot.stateMutex.RLock()
	conn := m.bot.conn
	m.bot.stateMutex.RUnlock()
	if conn != nil {
		if ip := utils.AddrToIP(conn.UnderlyingConn().LocalAddr()); ip != nil {
			return ip
		}
	}
	return net.IPv4(127, 0, 0, 1)
}

// SendFile offers a file to a nick and streams it once the peer
// connects; it returns after the offer is made, with the transfer
// continuing in the background. The accept wait is bounded by timeout.
func (m *DCCManager) SendFile(nick, path string, timeout time.Duration) (transfer *Transfer, err error) {
	if !m.transferSem.TryAcquire() {
		return nil, errTransferLimit
	}
	defer func() {
		if err != nil {
			m.transferSem.Release()
		}
	}()

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	listener, port, err := m.listen()
	if err != nil {
		file.Close()
		return nil, err
	}

	ipLong, err := utils.IPv4ToUint32(m.publicIP())
	if err != nil {
		file.Close()
		listener.Close()
		return nil, err
	}

	transfer = &Transfer{
		manager:  m,
		Nick:     nick,
		Filename: filepath.Base(path),
		Size:     info.Size(),
		peerPort: port,
		listener: listener,
		file:     file,
		state:    TransferConnecting,
		acceptCh: make(chan int64, 1),
	}
	m.stateMutex.Lock()
	m.pendingSends[port] = transfer
	m.stateMutex.Unlock()

	m.bot.SendCTCPCommand(nick, fmt.Sprintf("DCC SEND %s %d %d %d", transfer.Filename, ipLong, port, info.Size()))
	m.bot.logger.Info("dcc", "offering file", transfer.Filename, "to", nick, "size", formatSize(info.Size()))

	go m.runSend(transfer, timeout)
	return transfer, nil
}

func (m *DCCManager) runSend(transfer *Transfer, timeout time.Duration) {
	var err error
	defer func() {
		m.stateMutex.Lock()
		delete(m.pendingSends, transfer.peerPort)
		m.stateMutex.Unlock()
		transfer.file.Close()
		m.transferSem.Release()
		if err != nil {
			transfer.setState(TransferFailed)
		} else {
			transfer.setState(TransferComplete)
		}
		if m.bot.callbacks.FileTransferFinished != nil {
			m.bot.callbacks.FileTransferFinished(transfer, err)
		}
	}()

	if timeout <= 0 {
		timeout = m.config.AcceptTimeout
	}
	if deadline, ok := transfer.listener.(*net.TCPListener); ok {
		deadline.SetDeadline(time.Now().Add(timeout))
	}
	conn, acceptErr := transfer.listener.Accept()
	transfer.listener.Close()
	if acceptErr != nil {
		err = acceptErr
		return
	}
	defer conn.Close()

	transfer.stateMutex.Lock()
	startPos := transfer.startPos
	transfer.stateMutex.Unlock()
	if startPos > 0 {
		if _, err = transfer.file.Seek(startPos, io.SeekStart); err != nil {
			return
		}
	}

	transfer.setState(TransferActive)
	err = m.streamOut(transfer, conn)
}

// streamOut pushes the file to the peer one packet at a time, pausing
// for the peer's running-total ack after each packet and throttling by
// the configured delay.
func (m *DCCManager) streamOut(transfer *Transfer, conn net.Conn) (err error) {
	buf := make([]byte, dccPacketSize)
	ack := make([]byte, 4)
	for {
		n, readErr := transfer.file.Read(buf)
		if n > 0 {
			if _, err = conn.Write(buf[:n]); err != nil {
				return err
			}
			transfer.addProgress(int64(n))
			if _, err = io.ReadFull(conn, ack); err != nil {
				return err
			}
			if m.config.PacketDelay > 0 {
				time.Sleep(m.config.PacketDelay)
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

// Receive accepts an incoming file offer, writing the file to path.
// With resume set and a partial file already at path, a RESUME
// handshake is attempted first; when the sender grants it, the
// transfer appends to the existing bytes, otherwise it restarts from
// zero. Receive blocks until the transfer ends.
func (t *Transfer) Receive(path string, resume bool) (err error) {
	if !t.incoming {
		return errNotIncoming
	}
	if t.State() != TransferOffered {
		return errTransferActive
	}
	m := t.manager
	if !m.transferSem.TryAcquire() {
		return errTransferLimit
	}
	defer m.transferSem.Release()

	t.setState(TransferConnecting)
	defer func() {
		if err != nil {
			t.setState(TransferFailed)
		} else {
			t.setState(TransferComplete)
		}
		if m.bot.callbacks.FileTransferFinished != nil {
			m.bot.callbacks.FileTransferFinished(t, err)
		}
	}()

	startPos := int64(0)
	if resume {
		if info, statErr := os.Stat(path); statErr == nil && info.Size() > 0 {
			startPos = t.negotiateResume(info.Size())
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if startPos > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	addr := net.JoinHostPort(t.peerIP.String(), strconv.Itoa(t.peerPort))
	conn, err := net.DialTimeout("tcp", addr, m.config.AcceptTimeout)
	if err != nil {
		return err
	}
	defer conn.Close()

	t.stateMutex.Lock()
	t.startPos = startPos
	t.progress = startPos
	t.stateMutex.Unlock()
	t.setState(TransferActive)

	return t.streamIn(file, conn)
}

// negotiateResume asks the sender to restart at position and waits
// briefly for the grant; it returns the granted position, or 0 to
// restart from scratch.
func (t *Transfer) negotiateResume(position int64) int64 {
	m := t.manager
	m.stateMutex.Lock()
	m.awaitingAccept[t.peerPort] = t
	m.stateMutex.Unlock()

	m.bot.sendCTCPReply(t.Nick, fmt.Sprintf("DCC RESUME %s %d %d", t.Filename, t.peerPort, position))

	timeout := m.config.AcceptTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	select {
	case granted := <-t.acceptCh:
		return granted
	case <-time.After(timeout):
		m.stateMutex.Lock()
		delete(m.awaitingAccept, t.peerPort)
		m.stateMutex.Unlock()
		return 0
	}
}

// streamIn pulls bytes from the sender, acknowledging the running
// total after every packet as a big-endian uint32.
func (t *Transfer) streamIn(file *os.File, conn net.Conn) (err error) {
	buf := make([]byte, dccPacketSize)
	ack := make([]byte, 4)
	for {
		n, readErr := conn.Read(buf)
		if n > 0 {
			if _, err = file.Write(buf[:n]); err != nil {
				return err
			}
			total := t.addProgress(int64(n))
			binary.BigEndian.PutUint32(ack, uint32(total))
			if _, err = conn.Write(ack); err != nil {
				return err
			}
			if t.Size >= 0 && total >= t.Size {
				return nil
			}
		}
		if readErr == io.EOF {
			if t.Size >= 0 && t.Progress() < t.Size {
				return io.ErrUnexpectedEOF
			}
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

// ChatState is the lifecycle state of a DCC chat.
type ChatState uint

const (
	ChatRequested ChatState = iota
	ChatListening
	ChatConnected
	ChatClosed
)

// Chat is a direct line-oriented conversation with a single peer,
// outside the server's view. Incoming requests arrive via the
// IncomingChatRequest callback and connect when Accept is called.
type Chat struct {
	manager *DCCManager

	stateMutex sync.Mutex
	state      ChatState

	Nick string

	peerIP   net.IP
	peerPort int

	conn   net.Conn
	reader *bufio.Reader
}

// State returns the chat's current state.
func (c *Chat) State() ChatState {
	c.stateMutex.Lock()
	defer c.stateMutex.Unlock()
	return c.state
}

func (c *Chat) setState(state ChatState) {
	c.stateMutex.Lock()
	c.state = state
	c.stateMutex.Unlock()
}

// handleChatOffer: CHAT chat <ip-as-uint32> <port>
func (m *DCCManager) handleChatOffer(source Source, fields []string) {
	if len(fields) < 3 || !strings.EqualFold(fields[0], "chat") {
		return
	}
	ipLong, err1 := strconv.ParseUint(fields[1], 10, 32)
	port, err2 := strconv.Atoi(fields[2])
	if err1 != nil || err2 != nil {
		return
	}
	chat := &Chat{
		manager:  m,
		Nick:     source.Nick,
		peerIP:   utils.Uint32ToIPv4(uint32(ipLong)),
		peerPort: port,
		state:    ChatRequested,
	}
	m.bot.logger.Info("dcc", "incoming chat request from", source.Nick)
	if m.bot.callbacks.IncomingChatRequest != nil {
		m.bot.callbacks.IncomingChatRequest(chat)
	}
}

// Accept connects to the peer that requested this chat.
func (c *Chat) Accept() (err error) {
	addr := net.JoinHostPort(c.peerIP.String(), strconv.Itoa(c.peerPort))
	c.conn, err = net.DialTimeout("tcp", addr, c.manager.config.AcceptTimeout)
	if err != nil {
		c.setState(ChatClosed)
		return err
	}
	c.reader = bufio.NewReader(c.conn)
	c.setState(ChatConnected)
	return nil
}

// SendChatRequest invites a nick to a direct chat and waits up to
// timeout for them to connect. It returns nil if the listener could
// not be established or the peer never connected.
func (m *DCCManager) SendChatRequest(nick string, timeout time.Duration) *Chat {
	listener, port, err := m.listen()
	if err != nil {
		m.bot.logger.Warning("dcc", "cannot listen for chat", err.Error())
		return nil
	}

	ipLong, err := utils.IPv4ToUint32(m.publicIP())
	if err != nil {
		listener.Close()
		return nil
	}
	m.bot.SendCTCPCommand(nick, fmt.Sprintf("DCC CHAT chat %d %d", ipLong, port))

	if timeout <= 0 {
		timeout = m.config.AcceptTimeout
	}
	if tl, ok := listener.(*net.TCPListener); ok {
		tl.SetDeadline(time.Now().Add(timeout))
	}
	conn, err := listener.Accept()
	listener.Close()
	if err != nil {
		m.bot.logger.Info("dcc", "chat request to", nick, "not accepted")
		return nil
	}

	chat := &Chat{
		manager: m,
		Nick:    nick,
		conn:    conn,
		reader:  bufio.NewReader(conn),
		state:   ChatConnected,
	}
	return chat
}

// ReadLine blocks for the next line from the peer, without its line
// ending. It returns an error once the chat is closed.
func (c *Chat) ReadLine() (line string, err error) {
	if c.State() != ChatConnected {
		return "", ErrNotConnected
	}
	line, err = c.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// SendLine writes one line to the peer.
func (c *Chat) SendLine(line string) (err error) {
	if c.State() != ChatConnected {
		return ErrNotConnected
	}
	_, err = c.conn.Write([]byte(line + "\r\n"))
	return
}

// Close ends the chat.
func (c *Chat) Close() (err error) {
	c.setState(ChatClosed)
	if c.conn != nil {
		err = c.conn.Close()
	}
	return
}

func formatSize(size int64) string {
	if size < 0 {
		return "unknown"
	}
	return bytefmt.ByteSize(uint64(size))
}
