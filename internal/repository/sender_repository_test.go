package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateSenderStatsAppliesOnce(t *testing.T) {
	db, mock := newMock(t)
	repo := &SenderRepository{DB: db}
	at := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO quota_ledger`).
		WithArgs(11, 1, 2, 1, at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE senders`).WithArgs(2, 1, at).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE campaign_senders`).WithArgs(1, 2, 1, at).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	applied, err := repo.UpdateSenderStats(context.Background(), 11, 1, 2, 1, at)
	require.NoError(t, err)
	assert.True(t, applied)

	// replay: the ledger row already exists, counters stay untouched
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO quota_ledger`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	applied, err = repo.UpdateSenderStats(context.Background(), 11, 1, 2, 1, at)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetDailySenderStatsOnceSkipsSameDay(t *testing.T) {
	db, mock := newMock(t)
	repo := &SenderRepository{DB: db}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO scheduler_state`).
		WithArgs("2026-03-02", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE senders SET emails_sent_today = 0`).WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(`UPDATE campaign_senders`).WillReturnResult(sqlmock.NewResult(0, 6))
	mock.ExpectCommit()

	ok, err := repo.ResetDailySenderStatsOnce(context.Background(), "2026-03-02")
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO scheduler_state`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ok, err = repo.ResetDailySenderStatsOnce(context.Background(), "2026-03-02")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCampaignSendersScansJoin(t *testing.T) {
	db, mock := newMock(t)
	repo := &SenderRepository{DB: db}

	cols := []string{
		"campaign_id", "sender_id", "emails_sent_today", "emails_scheduled_today", "total_emails_sent",
		"id", "name", "email", "title", "company_name", "daily_quota",
		"emails_sent_today", "emails_scheduled_today", "total_emails_sent", "last_sent_at",
	}
	mock.ExpectQuery(`FROM campaign_senders cs`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, 2, 1, 3, 40, 2, "Ann", "ann@example.com", "Acquisitions", "Acme", 20, 5, 9, 300, nil))

	senders, err := repo.GetCampaignSenders(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, senders, 1)
	assert.Equal(t, 3, senders[0].EmailsScheduledToday)
	assert.Equal(t, 20, senders[0].Sender.DailyQuota)
	assert.Equal(t, 9, senders[0].Sender.EmailsScheduledToday)
	assert.Equal(t, "ann@example.com", senders[0].Sender.Email)
}

func TestReserveCampaignQuotaCountsAgainstSender(t *testing.T) {
	db, mock := newMock(t)
	repo := &SenderRepository{DB: db}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE campaign_senders SET emails_scheduled_today = emails_scheduled_today \+ \$3`).
		WithArgs(1, 2, 4, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE senders SET emails_scheduled_today = emails_scheduled_today \+ \$2`).
		WithArgs(2, 4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.ReserveCampaignQuota(context.Background(), 1, 2, 4))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveCampaignQuotaRollsBack(t *testing.T) {
	db, mock := newMock(t)
	repo := &SenderRepository{DB: db}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE campaign_senders`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE senders`).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.ReserveCampaignQuota(context.Background(), 1, 2, 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserve quota for sender 2 in campaign 1")
	assert.NoError(t, mock.ExpectationsWereMet())
}
