// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package irc

import (
	"strings"
	"time"

	"github.com/tidwall/buntdb"

	"github.com/ergochat/ircbot/irc/flock"
)

const (
	keySeenPrefix = "seen "
)

// SeenStore records when each nick was last observed speaking or
// joining, persisted across restarts. It backs "last seen" style
// queries and survives reconnections, unlike the in-memory activity
// stamps on User records.
type SeenStore struct {
	db    *buntdb.DB
	flock flock.Flocker
}

// OpenSeenStore opens (creating if necessary) the store at path and
// takes a filesystem lock against concurrent writers.
func OpenSeenStore(path string) (result *SeenStore, err error) {
	lock, err := flock.TryAcquireFlock(path + ".lock")
	if err != nil {
		return nil, err
	}
	db, err := buntdb.Open(path)
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	return &SeenStore{db: db, flock: lock}, nil
}

// MarkSeen stamps the nick as active at time t.
func (s *SeenStore) MarkSeen(nick string, t time.Time) (err error) {
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(keySeenPrefix+strings.ToLower(nick), t.UTC().Format(time.RFC3339), nil)
		return err
	})
}

// LastSeen returns the last recorded activity time for the nick.
func (s *SeenStore) LastSeen(nick string) (t time.Time, present bool) {
	var value string
	err := s.db.View(func(tx *buntdb.Tx) (err error) {
		value, err = tx.Get(keySeenPrefix + strings.ToLower(nick))
		return
	})
	if err != nil {
		return
	}
	t, parseErr := time.Parse(time.RFC3339, value)
	if parseErr != nil {
		return time.Time{}, false
	}
	return t, true
}

// Close releases the database and its lock.
func (s *SeenStore) Close() (err error) {
	err = s.db.Close()
	s.flock.Unlock()
	return
}
