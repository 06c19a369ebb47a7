// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package irc

import (
	"strings"
	"sync"
)

// EntryClass is the admission class of a queued outgoing line. The
// caller classifies each entry explicitly; the queue never inspects
// line contents to decide whether an entry counts against capacity.
type EntryClass int

const (
	// ClassControl entries (QUIT, MODE, JOIN and other protocol
	// commands) are always admitted, regardless of queue size.
	ClassControl EntryClass = iota
	// ClassChat entries (PRIVMSG traffic) are admitted only while the
	// queue holds fewer than the configured maximum of them; beyond
	// that they are dropped. This is the flood-protection primitive.
	ClassChat
)

type outgoingEntry struct {
	class EntryClass
	line  string
}

// OutgoingQueue is a thread-safe FIFO of pending raw protocol lines,
// with a capacity bound that applies to chat-class entries only. It is
// drained by the writer loop; Dequeue blocks while the queue is empty.
type OutgoingQueue struct {
	mutex     sync.Mutex
	wake      *sync.Cond
	entries   []outgoingEntry
	chatCount int
	maxChat   int
	stopped   bool
	// generation increments on every Stop, invalidating consumers that
	// entered Dequeue during an earlier session even if they are not
	// scheduled until after the next Start
	generation uint64
}

// NewOutgoingQueue returns a queue admitting at most maxChat chat-class
// entries at a time; maxChat <= 0 means unbounded.
func NewOutgoingQueue(maxChat int) (result *OutgoingQueue) {
	result = &OutgoingQueue{
		maxChat: maxChat,
	}
	result.wake = sync.NewCond(&result.mutex)
	return
}

// Add appends a line to the queue and reports whether it was admitted.
// Control-class entries are always admitted; a chat-class entry is
// silently dropped (returning false) when the queue already holds the
// maximum number of chat entries.
func (q *OutgoingQueue) Add(class EntryClass, line string) (admitted bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if class == ClassChat {
		if q.maxChat > 0 && q.chatCount >= q.maxChat {
			return false
		}
		q.chatCount++
	}
	q.entries = append(q.entries, outgoingEntry{class: class, line: line})
	q.wake.Signal()
	return true
}

// Dequeue removes and returns the line at the front of the queue,
// blocking while the queue is empty. It returns ok == false once Stop
// has been called, even if a Start intervened before this consumer was
// scheduled; queued entries are retained for a later session.
func (q *OutgoingQueue) Dequeue() (line string, class EntryClass, ok bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.dequeue(q.generation)
}

// DequeueFor is Dequeue on behalf of the session identified by
// generation (as returned by Start). It reports not-ok once that
// session has been stopped, even if the queue has since been
// restarted; this keeps a long-lived consumer loop from straddling
// two sessions.
func (q *OutgoingQueue) DequeueFor(generation uint64) (line string, class EntryClass, ok bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.dequeue(generation)
}

// caller must hold the mutex
func (q *OutgoingQueue) dequeue(generation uint64) (line string, class EntryClass, ok bool) {
	for len(q.entries) == 0 && !q.stopped && q.generation == generation {
		q.wake.Wait()
	}
	if q.stopped || q.generation != generation {
		return "", ClassControl, false
	}

	entry := q.entries[0]
	q.entries = q.entries[1:]
	if entry.class == ClassChat {
		q.chatCount--
	}
	return entry.line, entry.class, true
}

// Stop wakes any blocked Dequeue, which then reports not-ok. Entries
// already queued are kept: there might be something important in them
// for the next connection. A consumer parked in Dequeue at Stop time
// is permanently invalidated; it never drains entries belonging to a
// restarted queue.
func (q *OutgoingQueue) Stop() {
	q.mutex.Lock()
	q.stopped = true
	q.generation++
	q.mutex.Unlock()
	q.wake.Broadcast()
}

// Start re-arms the queue for a new writer loop after a Stop,
// returning the generation identifying the new session.
func (q *OutgoingQueue) Start() (generation uint64) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	q.stopped = false
	return q.generation
}

// Contains reports whether any queued line contains the given text.
// The line is matched raw, so a search for a specific message should
// include the command and target, e.g. "PRIVMSG #chan :hi".
func (q *OutgoingQueue) Contains(text string) bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	for _, entry := range q.entries {
		if strings.Contains(entry.line, text) {
			return true
		}
	}
	return false
}

// Len returns the total number of queued entries.
func (q *OutgoingQueue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.entries)
}

// ChatLen returns the number of queued chat-class entries.
func (q *OutgoingQueue) ChatLen() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.chatCount
}

// SetMaxChat adjusts the chat-class capacity; it does not evict
// entries already queued.
func (q *OutgoingQueue) SetMaxChat(maxChat int) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	q.maxChat = maxChat
}

// Clear discards all queued entries.
func (q *OutgoingQueue) Clear() {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	q.entries = nil
	q.chatCount = 0
}
