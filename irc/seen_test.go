// Copyright (c) 2020 Shivaram Lingamneni <slingamn@cs.stanford.edu>
// released under the MIT license

package irc

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSeenStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.db")
	store, err := OpenSeenStore(path)
	require.NoError(t, err)
	defer store.Close()

	_, present := store.LastSeen("alice")
	require.False(t, present)

	stamp := time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.MarkSeen("Alice", stamp))

	// lookups are case-insensitive
	got, present := store.LastSeen("alice")
	require.True(t, present)
	require.True(t, got.Equal(stamp))
}

func TestSeenStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.db")
	store, err := OpenSeenStore(path)
	require.NoError(t, err)

	stamp := time.Date(2021, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, store.MarkSeen("bob", stamp))
	require.NoError(t, store.Close())

	reopened, err := OpenSeenStore(path)
	require.NoError(t, err)
	defer reopened.Close()
	got, present := reopened.LastSeen("bob")
	require.True(t, present)
	require.True(t, got.Equal(stamp))
}

func TestSeenStoreMarkedFromTraffic(t *testing.T) {
	bot, _ := newTestBot(t)
	store, err := OpenSeenStore(filepath.Join(t.TempDir(), "seen.db"))
	require.NoError(t, err)
	defer store.Close()
	bot.seen = store

	bot.handleLine(":alice!alice@example.com PRIVMSG #chan :hello")
	_, present := store.LastSeen("alice")
	require.True(t, present)

	bot.handleLine(":bob!bob@example.com JOIN #chan")
	_, present = store.LastSeen("bob")
	require.True(t, present)
}
