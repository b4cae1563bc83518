package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwhyun/limitbook/pkg/events"
)

func TestEventLogAppendAndReplay(t *testing.T) {
	l, err := OpenEventLog(t.TempDir())
	require.NoError(t, err)
	defer l.Close()

	for i := uint64(1); i <= 5; i++ {
		err := l.Publish(events.Event{Seq: i, Kind: events.KindDeposit, Time: int64(i) * 1000})
		require.NoError(t, err)
	}
	assert.EqualValues(t, 5, l.LastSeq())

	var got []uint64
	require.NoError(t, l.Replay(0, func(e events.Event) error {
		got = append(got, e.Seq)
		return nil
	}))
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, got)

	got = got[:0]
	require.NoError(t, l.Replay(3, func(e events.Event) error {
		got = append(got, e.Seq)
		return nil
	}))
	assert.Equal(t, []uint64{3, 4, 5}, got)
}

func TestEventLogRejectsGaps(t *testing.T) {
	l, err := OpenEventLog(t.TempDir())
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.Publish(events.Event{Seq: 1, Kind: events.KindDeposit}))
	assert.Error(t, l.Publish(events.Event{Seq: 3, Kind: events.KindDeposit}))
	assert.Error(t, l.Publish(events.Event{Seq: 1, Kind: events.KindDeposit}))
}

func TestEventLogRecoversAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	l, err := OpenEventLog(dir)
	require.NoError(t, err)
	require.NoError(t, l.Publish(events.Event{Seq: 1, Kind: events.KindTrade}))
	require.NoError(t, l.Publish(events.Event{Seq: 2, Kind: events.KindTrade}))
	head := l.Head()
	require.NoError(t, l.Close())

	l2, err := OpenEventLog(dir)
	require.NoError(t, err)
	defer l2.Close()

	assert.EqualValues(t, 2, l2.LastSeq())
	assert.Equal(t, head, l2.Head())
	require.NoError(t, l2.Publish(events.Event{Seq: 3, Kind: events.KindTrade}))
	assert.NotEqual(t, head, l2.Head())
}
