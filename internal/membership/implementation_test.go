// internal/membership/implementation_test.go
package membership_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarydesk/internal/membership"
)

func givenReader(t *testing.T, svc membership.Service, name string) *membership.Reader {
	t.Helper()

	reader, err := svc.Register(context.Background(), membership.ReaderFields{Name: name, Gender: "F"})
	require.NoError(t, err)

	return reader
}

func Test_Register_AssignsIDsFromReaderSequence(t *testing.T) {
	svc := membership.NewService()

	first := givenReader(t, svc, "Lin Daiyu")
	second := givenReader(t, svc, "Xue Baochai")

	assert.Equal(t, membership.FirstReaderID, first.ID)
	assert.Equal(t, membership.FirstReaderID+1, second.ID)
	assert.Equal(t, membership.DefaultMaxBooks, first.MaxBooks)
	assert.Empty(t, first.BorrowedBookIDs)
}

func Test_Register_WithDefaultMaxBooks(t *testing.T) {
	svc := membership.NewService(membership.WithDefaultMaxBooks(3))

	reader := givenReader(t, svc, "Jia Baoyu")

	assert.Equal(t, 3, reader.MaxBooks)
}

func Test_GetReader_NotFound(t *testing.T) {
	svc := membership.NewService()

	_, err := svc.GetReader(context.Background(), 1)

	assert.ErrorIs(t, err, membership.ErrNotFound)
}

func Test_CanBorrow_BoundaryAllowsOneMoreThanMax(t *testing.T) {
	reader := &membership.Reader{MaxBooks: 2}

	reader.BorrowedBookIDs = []int{1}
	assert.True(t, membership.CanBorrow(reader), "below the limit")

	reader.BorrowedBookIDs = []int{1, 2}
	assert.True(t, membership.CanBorrow(reader), "exactly at the limit may borrow one more")

	reader.BorrowedBookIDs = []int{1, 2, 3}
	assert.False(t, membership.CanBorrow(reader), "over the limit")
}

func Test_RecordBorrowAndReturn(t *testing.T) {
	ctx := context.Background()
	svc := membership.NewService()
	reader := givenReader(t, svc, "Lin Daiyu")

	require.NoError(t, svc.RecordBorrow(ctx, reader.ID, 4))
	require.NoError(t, svc.RecordBorrow(ctx, reader.ID, 9))
	require.NoError(t, svc.RecordBorrow(ctx, reader.ID, 4))

	stored, err := svc.GetReader(ctx, reader.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 9}, stored.BorrowedBookIDs)

	require.NoError(t, svc.RecordReturn(ctx, reader.ID, 4))

	stored, err = svc.GetReader(ctx, reader.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{9}, stored.BorrowedBookIDs)
}

func Test_RecordBorrow_UnknownReader(t *testing.T) {
	svc := membership.NewService()

	err := svc.RecordBorrow(context.Background(), 5, 1)

	assert.ErrorIs(t, err, membership.ErrNotFound)
}

func Test_GetReader_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	svc := membership.NewService()
	reader := givenReader(t, svc, "Lin Daiyu")
	require.NoError(t, svc.RecordBorrow(ctx, reader.ID, 1))

	fetched, err := svc.GetReader(ctx, reader.ID)
	require.NoError(t, err)
	fetched.BorrowedBookIDs[0] = 100

	again, err := svc.GetReader(ctx, reader.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, again.BorrowedBookIDs)
}

func Test_Restore_AdvancesNextIDAndDefaultsAllowance(t *testing.T) {
	ctx := context.Background()
	svc := membership.NewService()

	svc.Restore(ctx, []membership.Reader{
		{ID: 2404241005, Name: "Restored", BorrowedBookIDs: []int{2}},
	})

	assert.Equal(t, int64(2404241006), svc.NextID())

	restored, err := svc.GetReader(ctx, 2404241005)
	require.NoError(t, err)
	assert.Equal(t, membership.DefaultMaxBooks, restored.MaxBooks)
	assert.Equal(t, []int{2}, restored.BorrowedBookIDs)
}
