package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"stakeScope/internal/model"
)

func deposit(block, index uint64) model.LogRecord {
	return model.LogRecord{
		Kind:        model.StakeDeposited,
		BlockNumber: block,
		LogIndex:    index,
		TxHash:      fmt.Sprintf("0x%02x%02x", block, index),
		Data:        model.StakeDepositedData{Staker: "0xaa", Amount: "1", TotalStake: "1"},
	}
}

func blocks(records []model.LogRecord) []uint64 {
	out := make([]uint64, 0, len(records))
	for _, r := range records {
		out = append(out, r.BlockNumber)
	}
	return out
}

func TestNeverSyncedKind(t *testing.T) {
	c := New(10)
	require.Equal(t, uint64(0), c.LastIncorporatedBlock(model.StakeDeposited))
	require.False(t, c.Synced(model.StakeDeposited))
	require.Nil(t, c.Records(model.StakeDeposited))

	c.Replace(model.StakeDeposited, nil, 0)
	require.True(t, c.Synced(model.StakeDeposited))
	require.Equal(t, uint64(0), c.LastIncorporatedBlock(model.StakeDeposited))
}

func TestAppendAdvancesWatermarkWithoutRecords(t *testing.T) {
	c := New(10)
	initial := []model.LogRecord{deposit(1, 0), deposit(3, 0), deposit(5, 0), deposit(8, 0), deposit(10, 0)}
	c.Replace(model.StakeDeposited, initial, 10)

	got, err := c.Append(model.StakeDeposited, []model.LogRecord{deposit(11, 0)}, 12)
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 3, 5, 8, 10, 11}, blocks(got))
	require.Equal(t, uint64(12), c.LastIncorporatedBlock(model.StakeDeposited))

	got, err = c.Append(model.StakeDeposited, nil, 15)
	require.NoError(t, err)
	require.Len(t, got, 6)
	require.Equal(t, uint64(15), c.LastIncorporatedBlock(model.StakeDeposited))
}

func TestTrimKeepsMostRecent(t *testing.T) {
	a, b, c2, d := deposit(1, 0), deposit(2, 0), deposit(3, 0), deposit(4, 0)

	splits := [][][]model.LogRecord{
		{{a, b, c2, d}},
		{{a}, {b}, {c2}, {d}},
		{{a, b}, {c2, d}},
		{{a}, {b, c2, d}},
	}
	for i, split := range splits {
		t.Run(fmt.Sprintf("split-%d", i), func(t *testing.T) {
			c := New(3)
			var through uint64
			for _, part := range split {
				through = part[len(part)-1].BlockNumber
				_, err := c.Append(model.StakeDeposited, part, through)
				require.NoError(t, err)
			}
			require.Equal(t, []uint64{2, 3, 4}, blocks(c.Records(model.StakeDeposited)))
			require.Equal(t, 3, c.Size(model.StakeDeposited))
		})
	}
}

func TestReplaceTrimsAndSorts(t *testing.T) {
	c := New(2)
	got := c.Replace(model.StakeDeposited, []model.LogRecord{deposit(9, 1), deposit(2, 0), deposit(9, 0)}, 9)
	require.Equal(t, []uint64{9, 9}, blocks(got))
	require.Equal(t, uint64(0), got[0].LogIndex)
	require.Equal(t, uint64(1), got[1].LogIndex)
}

func TestAppendRejectsRegression(t *testing.T) {
	c := New(10)
	c.Replace(model.StakeDeposited, []model.LogRecord{deposit(4, 0)}, 20)

	_, err := c.Append(model.StakeDeposited, []model.LogRecord{deposit(5, 0)}, 19)
	require.ErrorIs(t, err, ErrWatermarkRegression)
	require.Equal(t, uint64(20), c.LastIncorporatedBlock(model.StakeDeposited))
	require.Equal(t, 1, c.Size(model.StakeDeposited))
}

func TestReturnedSlicesAreCopies(t *testing.T) {
	c := New(10)
	got := c.Replace(model.StakeDeposited, []model.LogRecord{deposit(1, 0)}, 1)
	got[0].BlockNumber = 99
	require.Equal(t, uint64(1), c.Records(model.StakeDeposited)[0].BlockNumber)
}

func TestClearAndStats(t *testing.T) {
	c := New(10)
	c.Replace(model.StakeDeposited, []model.LogRecord{deposit(1, 0), deposit(2, 0)}, 5)
	c.Replace(model.MessagePosted, nil, 5)

	stats := c.Stats()
	require.Equal(t, 2, stats.TotalRecords)
	require.Equal(t, uint64(5), stats.Kinds[model.MessagePosted].LastIncorporatedBlock)

	c.Clear(model.StakeDeposited)
	require.False(t, c.Synced(model.StakeDeposited))
	require.True(t, c.Synced(model.MessagePosted))

	c.ClearAll()
	require.Equal(t, 0, c.Stats().TotalRecords)
	require.Empty(t, c.Stats().Kinds)
}

func TestMirrorRoundTrip(t *testing.T) {
	c := New(10)
	c.Replace(model.StakeDeposited, []model.LogRecord{deposit(1, 0), deposit(2, 0)}, 7)
	c.Replace(model.MessagePosted, nil, 7)

	mirror := c.Export()
	require.Len(t, mirror.Entries, 2)

	restored := New(1)
	require.Equal(t, 2, restored.Import(mirror))
	require.True(t, restored.Synced(model.MessagePosted))
	require.Equal(t, uint64(7), restored.LastIncorporatedBlock(model.StakeDeposited))
	require.Equal(t, []uint64{2}, blocks(restored.Records(model.StakeDeposited)))
}

func TestImportDropsInconsistentRecords(t *testing.T) {
	mirror := Mirror{Entries: []MirrorEntry{
		{Kind: model.StakeDeposited, LastIncorporatedBlock: 3, Records: []model.LogRecord{deposit(2, 0), deposit(9, 0)}},
		{Kind: "Transfer", LastIncorporatedBlock: 3},
	}}
	c := New(10)
	require.Equal(t, 1, c.Import(mirror))
	require.Equal(t, []uint64{2}, blocks(c.Records(model.StakeDeposited)))
}

func TestMirrorKey(t *testing.T) {
	require.Equal(t, "local|0xabcdef", MirrorKey("local", "0xABCdef"))
}
