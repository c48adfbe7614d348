package dial

import (
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirevox/hirevox/errors"
	hirevoxtest "github.com/hirevox/hirevox/internal/testing"
)

func testBatch(t *testing.T, phones ...string) *Batch {
	t.Helper()
	b, err := NewBatch(phones, 5*time.Second, "initial_contact", "",
		map[string]string{"company": "星辰科技"})
	require.NoError(t, err)
	return b
}

func TestLedgerRoundTrip(t *testing.T) {
	conn := hirevoxtest.CreateTestDB(t)
	ledger := NewLedger(conn)

	b := testBatch(t, "+8613800000001", "+8613800000002", "+8613800000003")
	require.NoError(t, ledger.CreateBatch(b))

	got, err := ledger.GetBatch(b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
	assert.Equal(t, 5*time.Second, got.Interval)
	assert.Equal(t, "initial_contact", got.TemplateName)
	assert.Equal(t, map[string]string{"company": "星辰科技"}, got.TemplateParams)
	require.Len(t, got.Jobs, 3)
	for i, j := range got.Jobs {
		assert.Equal(t, i, j.Position)
		assert.Equal(t, JobStatePending, j.State)
	}
}

func TestLedgerPersistsLiteralText(t *testing.T) {
	conn := hirevoxtest.CreateTestDB(t)
	ledger := NewLedger(conn)

	b, err := NewBatch([]string{"+8613800000001"}, time.Second, "", "您好，测试。", nil)
	require.NoError(t, err)
	require.NoError(t, ledger.CreateBatch(b))

	got, err := ledger.GetBatch(b.ID)
	require.NoError(t, err)
	assert.Empty(t, got.TemplateName)
	assert.Equal(t, "您好，测试。", got.Text)
}

func TestLedgerUpdateJob(t *testing.T) {
	conn := hirevoxtest.CreateTestDB(t)
	ledger := NewLedger(conn)

	b := testBatch(t, "+8613800000001")
	require.NoError(t, ledger.CreateBatch(b))

	job := b.Jobs[0]
	job.StartRendering()
	job.StartDialing()
	job.RecordAttempt()
	job.Succeed("/tmp/audio.mp3")
	require.NoError(t, ledger.UpdateJob(job))

	got, err := ledger.GetBatch(b.ID)
	require.NoError(t, err)
	stored := got.Jobs[0]
	assert.Equal(t, JobStateSucceeded, stored.State)
	assert.Equal(t, 1, stored.Attempts)
	assert.Equal(t, "/tmp/audio.mp3", stored.AudioHandle)
	assert.NotNil(t, stored.DialStartedAt)
	assert.NotNil(t, stored.CompletedAt)
}

func TestLedgerCompleteBatch(t *testing.T) {
	conn := hirevoxtest.CreateTestDB(t)
	ledger := NewLedger(conn)

	b := testBatch(t, "+8613800000001")
	require.NoError(t, ledger.CreateBatch(b))
	require.NoError(t, ledger.CompleteBatch(b.ID, time.Now()))

	got, err := ledger.GetBatch(b.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.CompletedAt)

	err = ledger.CompleteBatch("no-such-batch", time.Now())
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestLedgerGetBatchNotFound(t *testing.T) {
	conn := hirevoxtest.CreateTestDB(t)
	ledger := NewLedger(conn)

	_, err := ledger.GetBatch("missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestLedgerListBatchesNewestFirst(t *testing.T) {
	conn := hirevoxtest.CreateTestDB(t)
	ledger := NewLedger(conn)

	first := testBatch(t, "+8613800000001")
	first.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, ledger.CreateBatch(first))
	second := testBatch(t, "+8613800000002")
	require.NoError(t, ledger.CreateBatch(second))

	batches, err := ledger.ListBatches(10)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, second.ID, batches[0].ID)
	assert.Equal(t, first.ID, batches[1].ID)
	assert.Nil(t, batches[0].Jobs) // jobs are loaded via GetBatch only
}

// TestLedgerCreateBatchRollsBackOnJobFailure drives the transaction path
// with sqlmock: a failed job insert must roll the batch insert back.
func TestLedgerCreateBatchRollsBackOnJobFailure(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO call_batches").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO call_jobs").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	ledger := NewLedger(conn)
	b := testBatch(t, "+8613800000001")
	err = ledger.CreateBatch(b)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
