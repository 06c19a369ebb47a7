// Copyright (c) 2020 Shivaram Lingamneni <slingamn@cs.stanford.edu>
// released under the MIT license

package irc

import (
	"testing"
	"time"
)

func TestQueueChatCapacity(t *testing.T) {
	q := NewOutgoingQueue(2)
	assertEqual(q.Add(ClassChat, "PRIVMSG #chan :one"), true, t)
	assertEqual(q.Add(ClassChat, "PRIVMSG #chan :two"), true, t)
	assertEqual(q.Add(ClassChat, "PRIVMSG #chan :three"), false, t)
	assertEqual(q.ChatLen(), 2, t)

	// control entries are admitted regardless of the cap
	assertEqual(q.Add(ClassControl, "MODE #chan +m"), true, t)
	assertEqual(q.Add(ClassControl, "QUIT :bye"), true, t)
	assertEqual(q.Len(), 4, t)

	// draining a chat entry frees capacity
	line, class, ok := q.Dequeue()
	assertEqual(ok, true, t)
	assertEqual(class, ClassChat, t)
	assertEqual(line, "PRIVMSG #chan :one", t)
	assertEqual(q.Add(ClassChat, "PRIVMSG #chan :four"), true, t)
}

func TestQueueFIFO(t *testing.T) {
	q := NewOutgoingQueue(0)
	q.Add(ClassChat, "a")
	q.Add(ClassControl, "b")
	q.Add(ClassChat, "c")
	for _, expected := range []string{"a", "b", "c"} {
		line, _, ok := q.Dequeue()
		assertEqual(ok, true, t)
		assertEqual(line, expected, t)
	}
}

func TestQueueUnboundedWhenZero(t *testing.T) {
	q := NewOutgoingQueue(0)
	for i := 0; i < 100; i++ {
		assertEqual(q.Add(ClassChat, "x"), true, t)
	}
}

func TestQueueDequeueBlocksUntilAdd(t *testing.T) {
	q := NewOutgoingQueue(0)
	result := make(chan string, 1)
	go func() {
		line, _, _ := q.Dequeue()
		result <- line
	}()

	select {
	case line := <-result:
		t.Fatalf("Dequeue returned %q from an empty queue", line)
	case <-time.After(10 * time.Millisecond):
	}

	q.Add(ClassControl, "PONG :server")
	select {
	case line := <-result:
		assertEqual(line, "PONG :server", t)
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not wake on Add")
	}
}

func TestQueueStopRetainsEntries(t *testing.T) {
	q := NewOutgoingQueue(0)
	q.Add(ClassChat, "PRIVMSG #chan :important")
	q.Stop()

	_, _, ok := q.Dequeue()
	assertEqual(ok, false, t)
	assertEqual(q.Len(), 1, t)

	// a restarted queue hands out the retained entry
	q.Start()
	line, _, ok := q.Dequeue()
	assertEqual(ok, true, t)
	assertEqual(line, "PRIVMSG #chan :important", t)
}

func TestQueueStopWakesBlockedDequeue(t *testing.T) {
	q := NewOutgoingQueue(0)
	done := make(chan bool, 1)
	go func() {
		_, _, ok := q.Dequeue()
		done <- ok
	}()
	time.Sleep(10 * time.Millisecond)
	q.Stop()
	select {
	case ok := <-done:
		assertEqual(ok, false, t)
	case <-time.After(time.Second):
		t.Fatal("Stop did not wake the blocked Dequeue")
	}
}

func TestQueueStopInvalidatesParkedDequeue(t *testing.T) {
	q := NewOutgoingQueue(0)
	stale := make(chan bool, 1)
	go func() {
		_, _, ok := q.Dequeue()
		stale <- ok
	}()
	time.Sleep(10 * time.Millisecond)

	// the consumer parked above belongs to the session being stopped;
	// restarting the queue must not revive it
	q.Stop()
	q.Start()
	q.Add(ClassControl, "PONG :one")
	q.Add(ClassControl, "PONG :two")

	select {
	case ok := <-stale:
		assertEqual(ok, false, t)
	case <-time.After(time.Second):
		t.Fatal("consumer from the stopped session did not exit")
	}

	// both entries are still there for the new session's consumer
	assertEqual(q.Len(), 2, t)
	line, _, ok := q.Dequeue()
	assertEqual(ok, true, t)
	assertEqual(line, "PONG :one", t)
	line, _, ok = q.Dequeue()
	assertEqual(ok, true, t)
	assertEqual(line, "PONG :two", t)
}

func TestQueueDequeueForStoppedSession(t *testing.T) {
	q := NewOutgoingQueue(0)
	generation := q.Start()
	q.Stop()
	next := q.Start()
	q.Add(ClassControl, "PONG :server")

	// a consumer still holding the old session token gets nothing,
	// even with entries available
	_, _, ok := q.DequeueFor(generation)
	assertEqual(ok, false, t)

	// the entry is intact for the new session
	line, _, ok := q.DequeueFor(next)
	assertEqual(ok, true, t)
	assertEqual(line, "PONG :server", t)
}

func TestQueueContains(t *testing.T) {
	q := NewOutgoingQueue(0)
	q.Add(ClassChat, "PRIVMSG #chan :hello there")
	assertEqual(q.Contains("hello"), true, t)
	assertEqual(q.Contains("PRIVMSG #chan"), true, t)
	assertEqual(q.Contains("goodbye"), false, t)
	q.Dequeue()
	assertEqual(q.Contains("hello"), false, t)
}
