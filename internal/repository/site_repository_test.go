package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telsite/fieldops-api/internal/models"
)

func newSiteRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	cleanup := func() {
		_ = sqlxDB.Close()
		db.Close()
	}
	return sqlxDB, mock, cleanup
}

func siteRows() *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "name", "address", "lat", "lng", "access_authorized", "key_access_authorized", "key_status", "created_at", "updated_at"}).
		AddRow("S1", "North Tower", "1 Ridge Rd", -6.2, 106.8, false, false, "AVAILABLE", now, now)
}

func visitorRows(id, siteID, state string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "site_id", "vendor_id", "lead_name", "contact", "personnel", "company", "activity", "entry_photo", "exit_photo", "roc_name", "roc_time", "roc_coordinated", "roc_logout_name", "roc_logout_time", "roc_logout_coordinated", "check_in_time", "check_out_time", "state", "created_at"}).
		AddRow(id, siteID, "v1", "Ava Chen", "0800", "{Ava Chen}", "Acme Telecom", "antenna swap", "photo", nil, "ROC Duty", "08:30", true, nil, nil, false, now, nil, state, now)
}

func keyLogRows(id, siteID, state string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "site_id", "vendor_id", "borrower_name", "contact", "company", "reason", "borrow_photo", "return_photo", "borrow_time", "return_time", "state", "created_at"}).
		AddRow(id, siteID, "v1", "Ava Chen", "0800", "Acme Telecom", "generator maintenance", "photo", nil, now, nil, state, now)
}

func TestSiteRepositoryGetHydratesSubRecords(t *testing.T) {
	db, mock, cleanup := newSiteRepoMock(t)
	defer cleanup()
	repo := NewSiteRepository(db, 15)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, name, address, lat, lng, access_authorized, key_access_authorized, key_status, created_at, updated_at FROM sites WHERE id = $1`)).
		WithArgs("S1").
		WillReturnRows(siteRows())
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM site_visitors WHERE site_id = $1`)).
		WithArgs("S1").
		WillReturnRows(visitorRows("REQ-1", "S1", "PENDING"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM key_logs WHERE site_id = $1`)).
		WithArgs("S1").
		WillReturnRows(keyLogRows("KEY-1", "S1", "CURRENT"))

	site, err := repo.Get(context.Background(), "S1")
	require.NoError(t, err)

	require.NotNil(t, site.PendingVisitor)
	assert.Equal(t, "REQ-1", site.PendingVisitor.ID)
	assert.Nil(t, site.CurrentVisitor)
	require.NotNil(t, site.CurrentKeyLog)
	assert.Equal(t, "KEY-1", site.CurrentKeyLog.ID)
	assert.Empty(t, site.VisitorHistory)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSiteRepositoryGetNotFound(t *testing.T) {
	db, mock, cleanup := newSiteRepoMock(t)
	defer cleanup()
	repo := NewSiteRepository(db, 15)

	mock.ExpectQuery("SELECT").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSiteRepositoryReplacePendingVisitor(t *testing.T) {
	db, mock, cleanup := newSiteRepoMock(t)
	defer cleanup()
	repo := NewSiteRepository(db, 15)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM sites WHERE id = $1 FOR UPDATE`)).
		WithArgs("S1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("S1"))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM site_visitors WHERE site_id = $1 AND state = 'PENDING'`)).
		WithArgs("S1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO site_visitors").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE sites SET access_authorized = FALSE`)).
		WithArgs("S1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	now := time.Now().UTC()
	err := repo.ReplacePendingVisitor(context.Background(), &models.SiteVisitor{
		ID:          "REQ-1",
		SiteID:      "S1",
		VendorID:    "v1",
		LeadName:    "Ava Chen",
		Personnel:   []string{"Ava Chen"},
		Company:     "Acme Telecom",
		Activity:    "antenna swap",
		EntryPhoto:  "photo",
		RocName:     "ROC Duty",
		RocTime:     "08:30",
		CheckInTime: now,
		State:       models.RecordStatePending,
		CreatedAt:   now,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSiteRepositoryReplacePendingVisitorUnknownSite(t *testing.T) {
	db, mock, cleanup := newSiteRepoMock(t)
	defer cleanup()
	repo := NewSiteRepository(db, 15)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM sites WHERE id = $1 FOR UPDATE`)).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.ReplacePendingVisitor(context.Background(), &models.SiteVisitor{ID: "REQ-1", SiteID: "ghost"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSiteRepositorySetAccessAuthorizedNoRows(t *testing.T) {
	db, mock, cleanup := newSiteRepoMock(t)
	defer cleanup()
	repo := NewSiteRepository(db, 15)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE sites SET access_authorized = $2`)).
		WithArgs("ghost", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetAccessAuthorized(context.Background(), "ghost", true)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSiteRepositoryPromotePendingVisitor(t *testing.T) {
	db, mock, cleanup := newSiteRepoMock(t)
	defer cleanup()
	repo := NewSiteRepository(db, 15)

	checkIn := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM sites WHERE id = $1 FOR UPDATE`)).
		WithArgs("S1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("S1"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM site_visitors WHERE site_id = $1 AND state = 'PENDING' FOR UPDATE`)).
		WithArgs("S1").
		WillReturnRows(visitorRows("REQ-1", "S1", "PENDING"))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE site_visitors SET id = $2, state = 'CURRENT', check_in_time = $3 WHERE id = $1`)).
		WithArgs("REQ-1", "VIS-9", checkIn).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE sites SET access_authorized = FALSE`)).
		WithArgs("S1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	visitor, err := repo.PromotePendingVisitor(context.Background(), "S1", "VIS-9", checkIn)
	require.NoError(t, err)

	assert.Equal(t, "VIS-9", visitor.ID)
	assert.Equal(t, models.RecordStateCurrent, visitor.State)
	assert.Equal(t, checkIn, visitor.CheckInTime)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSiteRepositoryPromotePendingVisitorNone(t *testing.T) {
	db, mock, cleanup := newSiteRepoMock(t)
	defer cleanup()
	repo := NewSiteRepository(db, 15)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM sites WHERE id = $1 FOR UPDATE`)).
		WithArgs("S1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("S1"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM site_visitors WHERE site_id = $1 AND state = 'PENDING' FOR UPDATE`)).
		WithArgs("S1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.PromotePendingVisitor(context.Background(), "S1", "VIS-9", time.Now().UTC())
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSiteRepositoryArchiveCurrentVisitorEvictsHistory(t *testing.T) {
	db, mock, cleanup := newSiteRepoMock(t)
	defer cleanup()
	repo := NewSiteRepository(db, 10)

	checkOut := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM sites WHERE id = $1 FOR UPDATE`)).
		WithArgs("S1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("S1"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM site_visitors WHERE site_id = $1 AND state = 'CURRENT' FOR UPDATE`)).
		WithArgs("S1").
		WillReturnRows(visitorRows("VIS-9", "S1", "CURRENT"))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE site_visitors`)).
		WithArgs("VIS-9", "exit-photo", "ROC Duty", "17:15", true, checkOut).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM site_visitors`)).
		WithArgs("S1", 10).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE sites SET updated_at = $2 WHERE id = $1`)).
		WithArgs("S1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	visitor, err := repo.ArchiveCurrentVisitor(context.Background(), "S1", ArchiveVisitParams{
		ExitPhoto:            "exit-photo",
		RocLogoutName:        "ROC Duty",
		RocLogoutTime:        "17:15",
		RocLogoutCoordinated: true,
		CheckOutTime:         checkOut,
	})
	require.NoError(t, err)

	assert.Equal(t, models.RecordStateArchived, visitor.State)
	require.NotNil(t, visitor.CheckOutTime)
	assert.Equal(t, checkOut, *visitor.CheckOutTime)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSiteRepositoryPromotePendingKeyLogMarksBorrowed(t *testing.T) {
	db, mock, cleanup := newSiteRepoMock(t)
	defer cleanup()
	repo := NewSiteRepository(db, 15)

	borrow := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM sites WHERE id = $1 FOR UPDATE`)).
		WithArgs("S1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("S1"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM key_logs WHERE site_id = $1 AND state = 'PENDING' FOR UPDATE`)).
		WithArgs("S1").
		WillReturnRows(keyLogRows("KREQ-1", "S1", "PENDING"))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE key_logs SET id = $2, state = 'CURRENT', borrow_time = $3 WHERE id = $1`)).
		WithArgs("KREQ-1", "KEY-9", borrow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE sites SET key_status = 'BORROWED', key_access_authorized = FALSE`)).
		WithArgs("S1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	log, err := repo.PromotePendingKeyLog(context.Background(), "S1", "KEY-9", borrow)
	require.NoError(t, err)

	assert.Equal(t, "KEY-9", log.ID)
	assert.Equal(t, models.RecordStateCurrent, log.State)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSiteRepositoryArchiveCurrentKeyLogMarksAvailable(t *testing.T) {
	db, mock, cleanup := newSiteRepoMock(t)
	defer cleanup()
	repo := NewSiteRepository(db, 15)

	returned := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM sites WHERE id = $1 FOR UPDATE`)).
		WithArgs("S1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("S1"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM key_logs WHERE site_id = $1 AND state = 'CURRENT' FOR UPDATE`)).
		WithArgs("S1").
		WillReturnRows(keyLogRows("KEY-9", "S1", "CURRENT"))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE key_logs SET state = 'ARCHIVED', return_photo = $2, return_time = $3 WHERE id = $1`)).
		WithArgs("KEY-9", "return-photo", returned).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM key_logs`)).
		WithArgs("S1", 15).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE sites SET key_status = 'AVAILABLE'`)).
		WithArgs("S1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	log, err := repo.ArchiveCurrentKeyLog(context.Background(), "S1", ArchiveKeyParams{ReturnPhoto: "return-photo", ReturnTime: returned})
	require.NoError(t, err)

	assert.Equal(t, models.RecordStateArchived, log.State)
	require.NotNil(t, log.ReturnTime)
	require.NoError(t, mock.ExpectationsWereMet())
}
