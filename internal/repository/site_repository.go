package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/telsite/fieldops-api/internal/models"
)

// SiteRepository provides persistence for sites and their occupancy and key
// custody sub-records. Every workflow transition runs as a single transaction
// holding a row lock on the site, so concurrent pollers never interleave a
// read-modify-write on the same site.
type SiteRepository struct {
	db           *sqlx.DB
	historyLimit int
}

// NewSiteRepository constructs the repository. historyLimit bounds the number
// of archived records retained per site and workflow.
func NewSiteRepository(db *sqlx.DB, historyLimit int) *SiteRepository {
	if historyLimit <= 0 {
		historyLimit = 15
	}
	return &SiteRepository{db: db, historyLimit: historyLimit}
}

const siteColumns = `id, name, address, lat, lng, access_authorized, key_access_authorized, key_status, created_at, updated_at`

// List returns all sites with their occupancy and custody records attached.
func (r *SiteRepository) List(ctx context.Context) ([]models.Site, error) {
	var sites []models.Site
	query := fmt.Sprintf(`SELECT %s FROM sites ORDER BY id ASC`, siteColumns)
	if err := r.db.SelectContext(ctx, &sites, query); err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	if len(sites) == 0 {
		return sites, nil
	}

	var visitors []models.SiteVisitor
	const visitorQuery = `
SELECT * FROM site_visitors
ORDER BY check_out_time DESC NULLS FIRST, created_at DESC`
	if err := r.db.SelectContext(ctx, &visitors, visitorQuery); err != nil {
		return nil, fmt.Errorf("list site visitors: %w", err)
	}

	var keyLogs []models.KeyLog
	const keyQuery = `
SELECT * FROM key_logs
ORDER BY return_time DESC NULLS FIRST, created_at DESC`
	if err := r.db.SelectContext(ctx, &keyLogs, keyQuery); err != nil {
		return nil, fmt.Errorf("list key logs: %w", err)
	}

	index := make(map[string]*models.Site, len(sites))
	for i := range sites {
		sites[i].VisitorHistory = []models.SiteVisitor{}
		sites[i].KeyHistory = []models.KeyLog{}
		index[sites[i].ID] = &sites[i]
	}
	for i := range visitors {
		attachVisitor(index[visitors[i].SiteID], visitors[i])
	}
	for i := range keyLogs {
		attachKeyLog(index[keyLogs[i].SiteID], keyLogs[i])
	}

	return sites, nil
}

// Get fetches a single site with its sub-records attached. Returns
// sql.ErrNoRows when the site does not exist.
func (r *SiteRepository) Get(ctx context.Context, siteID string) (*models.Site, error) {
	var site models.Site
	query := fmt.Sprintf(`SELECT %s FROM sites WHERE id = $1`, siteColumns)
	if err := r.db.GetContext(ctx, &site, query, siteID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get site %s: %w", siteID, err)
	}
	site.VisitorHistory = []models.SiteVisitor{}
	site.KeyHistory = []models.KeyLog{}

	var visitors []models.SiteVisitor
	const visitorQuery = `
SELECT * FROM site_visitors WHERE site_id = $1
ORDER BY check_out_time DESC NULLS FIRST, created_at DESC`
	if err := r.db.SelectContext(ctx, &visitors, visitorQuery, siteID); err != nil {
		return nil, fmt.Errorf("get site visitors: %w", err)
	}
	for i := range visitors {
		attachVisitor(&site, visitors[i])
	}

	var keyLogs []models.KeyLog
	const keyQuery = `
SELECT * FROM key_logs WHERE site_id = $1
ORDER BY return_time DESC NULLS FIRST, created_at DESC`
	if err := r.db.SelectContext(ctx, &keyLogs, keyQuery, siteID); err != nil {
		return nil, fmt.Errorf("get site key logs: %w", err)
	}
	for i := range keyLogs {
		attachKeyLog(&site, keyLogs[i])
	}

	return &site, nil
}

func attachVisitor(site *models.Site, visitor models.SiteVisitor) {
	if site == nil {
		return
	}
	switch visitor.State {
	case models.RecordStatePending:
		v := visitor
		site.PendingVisitor = &v
	case models.RecordStateCurrent:
		v := visitor
		site.CurrentVisitor = &v
	case models.RecordStateArchived:
		site.VisitorHistory = append(site.VisitorHistory, visitor)
	}
}

func attachKeyLog(site *models.Site, log models.KeyLog) {
	if site == nil {
		return
	}
	switch log.State {
	case models.RecordStatePending:
		l := log
		site.PendingKeyLog = &l
	case models.RecordStateCurrent:
		l := log
		site.CurrentKeyLog = &l
	case models.RecordStateArchived:
		site.KeyHistory = append(site.KeyHistory, log)
	}
}

func (r *SiteRepository) lockSite(ctx context.Context, tx *sqlx.Tx, siteID string) error {
	var id string
	if err := tx.GetContext(ctx, &id, `SELECT id FROM sites WHERE id = $1 FOR UPDATE`, siteID); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock site %s: %w", siteID, err)
	}
	return nil
}

// ReplacePendingVisitor installs the visitor as the site's pending request,
// discarding any prior pending request (last writer wins) and resetting the
// authorization flag.
func (r *SiteRepository) ReplacePendingVisitor(ctx context.Context, visitor *models.SiteVisitor) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin pending visitor transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = r.lockSite(ctx, tx, visitor.SiteID); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM site_visitors WHERE site_id = $1 AND state = 'PENDING'`, visitor.SiteID); err != nil {
		return fmt.Errorf("discard prior pending visitor: %w", err)
	}

	const insertQuery = `
INSERT INTO site_visitors (
	id, site_id, vendor_id, lead_name, contact, personnel, company, activity,
	entry_photo, roc_name, roc_time, roc_coordinated, check_in_time, state, created_at
) VALUES (
	:id, :site_id, :vendor_id, :lead_name, :contact, :personnel, :company, :activity,
	:entry_photo, :roc_name, :roc_time, :roc_coordinated, :check_in_time, :state, :created_at
)`
	if _, err = tx.NamedExecContext(ctx, insertQuery, visitor); err != nil {
		return fmt.Errorf("insert pending visitor: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE sites SET access_authorized = FALSE, updated_at = $2 WHERE id = $1`, visitor.SiteID, time.Now().UTC()); err != nil {
		return fmt.Errorf("reset access authorization: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit pending visitor: %w", err)
	}
	return nil
}

// SetAccessAuthorized flips the FO authorization flag for site access.
func (r *SiteRepository) SetAccessAuthorized(ctx context.Context, siteID string, authorized bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE sites SET access_authorized = $2, updated_at = $3 WHERE id = $1`, siteID, authorized, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set access authorization: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ClearPendingVisitor removes any pending access request and resets the
// authorization flag. Clearing a site with no pending request is a no-op.
func (r *SiteRepository) ClearPendingVisitor(ctx context.Context, siteID string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear visitor transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = r.lockSite(ctx, tx, siteID); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM site_visitors WHERE site_id = $1 AND state = 'PENDING'`, siteID); err != nil {
		return fmt.Errorf("clear pending visitor: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `UPDATE sites SET access_authorized = FALSE, updated_at = $2 WHERE id = $1`, siteID, time.Now().UTC()); err != nil {
		return fmt.Errorf("reset access authorization: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit clear visitor: %w", err)
	}
	return nil
}

// PromotePendingVisitor moves the pending request into the current slot under
// the confirmed session ID. Returns sql.ErrNoRows when no request is pending.
func (r *SiteRepository) PromotePendingVisitor(ctx context.Context, siteID, sessionID string, checkInTime time.Time) (visitor *models.SiteVisitor, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin check-in transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = r.lockSite(ctx, tx, siteID); err != nil {
		return nil, err
	}

	var pending models.SiteVisitor
	if err = tx.GetContext(ctx, &pending, `SELECT * FROM site_visitors WHERE site_id = $1 AND state = 'PENDING' FOR UPDATE`, siteID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("load pending visitor: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE site_visitors SET id = $2, state = 'CURRENT', check_in_time = $3 WHERE id = $1`, pending.ID, sessionID, checkInTime); err != nil {
		return nil, fmt.Errorf("promote pending visitor: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `UPDATE sites SET access_authorized = FALSE, updated_at = $2 WHERE id = $1`, siteID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("consume access authorization: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit check-in: %w", err)
	}

	pending.ID = sessionID
	pending.State = models.RecordStateCurrent
	pending.CheckInTime = checkInTime
	return &pending, nil
}

// ArchiveVisitParams carries the exit fields merged into the record at
// checkout time.
type ArchiveVisitParams struct {
	ExitPhoto            string
	RocLogoutName        string
	RocLogoutTime        string
	RocLogoutCoordinated bool
	CheckOutTime         time.Time
}

// ArchiveCurrentVisitor merges the exit fields into the current visit, moves
// it to history and evicts entries beyond the retention bound. Returns
// sql.ErrNoRows when no visit is in progress.
func (r *SiteRepository) ArchiveCurrentVisitor(ctx context.Context, siteID string, params ArchiveVisitParams) (visitor *models.SiteVisitor, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin checkout transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = r.lockSite(ctx, tx, siteID); err != nil {
		return nil, err
	}

	var current models.SiteVisitor
	if err = tx.GetContext(ctx, &current, `SELECT * FROM site_visitors WHERE site_id = $1 AND state = 'CURRENT' FOR UPDATE`, siteID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("load current visitor: %w", err)
	}

	const archiveQuery = `
UPDATE site_visitors
SET state = 'ARCHIVED', exit_photo = $2, roc_logout_name = $3, roc_logout_time = $4,
	roc_logout_coordinated = $5, check_out_time = $6
WHERE id = $1`
	if _, err = tx.ExecContext(ctx, archiveQuery, current.ID, params.ExitPhoto, params.RocLogoutName, params.RocLogoutTime, params.RocLogoutCoordinated, params.CheckOutTime); err != nil {
		return nil, fmt.Errorf("archive current visitor: %w", err)
	}

	const evictQuery = `
DELETE FROM site_visitors
WHERE site_id = $1 AND state = 'ARCHIVED' AND id NOT IN (
	SELECT id FROM site_visitors
	WHERE site_id = $1 AND state = 'ARCHIVED'
	ORDER BY check_out_time DESC
	LIMIT $2
)`
	if _, err = tx.ExecContext(ctx, evictQuery, siteID, r.historyLimit); err != nil {
		return nil, fmt.Errorf("evict visitor history: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE sites SET updated_at = $2 WHERE id = $1`, siteID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("touch site: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit checkout: %w", err)
	}

	current.State = models.RecordStateArchived
	current.ExitPhoto = &params.ExitPhoto
	current.RocLogoutName = &params.RocLogoutName
	current.RocLogoutTime = &params.RocLogoutTime
	current.RocLogoutCoordinated = params.RocLogoutCoordinated
	current.CheckOutTime = &params.CheckOutTime
	return &current, nil
}

// ReplacePendingKeyLog installs the key log as the site's pending borrow
// request, discarding any prior pending request and resetting the key
// authorization flag.
func (r *SiteRepository) ReplacePendingKeyLog(ctx context.Context, log *models.KeyLog) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin pending key transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = r.lockSite(ctx, tx, log.SiteID); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM key_logs WHERE site_id = $1 AND state = 'PENDING'`, log.SiteID); err != nil {
		return fmt.Errorf("discard prior pending key log: %w", err)
	}

	const insertQuery = `
INSERT INTO key_logs (
	id, site_id, vendor_id, borrower_name, contact, company, reason,
	borrow_photo, borrow_time, state, created_at
) VALUES (
	:id, :site_id, :vendor_id, :borrower_name, :contact, :company, :reason,
	:borrow_photo, :borrow_time, :state, :created_at
)`
	if _, err = tx.NamedExecContext(ctx, insertQuery, log); err != nil {
		return fmt.Errorf("insert pending key log: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE sites SET key_access_authorized = FALSE, updated_at = $2 WHERE id = $1`, log.SiteID, time.Now().UTC()); err != nil {
		return fmt.Errorf("reset key authorization: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit pending key log: %w", err)
	}
	return nil
}

// SetKeyAuthorized flips the FO authorization flag for key custody.
func (r *SiteRepository) SetKeyAuthorized(ctx context.Context, siteID string, authorized bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE sites SET key_access_authorized = $2, updated_at = $3 WHERE id = $1`, siteID, authorized, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set key authorization: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ClearPendingKeyLog removes any pending borrow request and resets the key
// authorization flag.
func (r *SiteRepository) ClearPendingKeyLog(ctx context.Context, siteID string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear key transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = r.lockSite(ctx, tx, siteID); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM key_logs WHERE site_id = $1 AND state = 'PENDING'`, siteID); err != nil {
		return fmt.Errorf("clear pending key log: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `UPDATE sites SET key_access_authorized = FALSE, updated_at = $2 WHERE id = $1`, siteID, time.Now().UTC()); err != nil {
		return fmt.Errorf("reset key authorization: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit clear key log: %w", err)
	}
	return nil
}

// PromotePendingKeyLog moves the pending borrow request into the current slot
// under the confirmed custody ID and marks the key as borrowed. Returns
// sql.ErrNoRows when no borrow request is pending.
func (r *SiteRepository) PromotePendingKeyLog(ctx context.Context, siteID, custodyID string, borrowTime time.Time) (log *models.KeyLog, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin borrow transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = r.lockSite(ctx, tx, siteID); err != nil {
		return nil, err
	}

	var pending models.KeyLog
	if err = tx.GetContext(ctx, &pending, `SELECT * FROM key_logs WHERE site_id = $1 AND state = 'PENDING' FOR UPDATE`, siteID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("load pending key log: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE key_logs SET id = $2, state = 'CURRENT', borrow_time = $3 WHERE id = $1`, pending.ID, custodyID, borrowTime); err != nil {
		return nil, fmt.Errorf("promote pending key log: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `UPDATE sites SET key_status = 'BORROWED', key_access_authorized = FALSE, updated_at = $2 WHERE id = $1`, siteID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("mark key borrowed: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit borrow: %w", err)
	}

	pending.ID = custodyID
	pending.State = models.RecordStateCurrent
	pending.BorrowTime = borrowTime
	return &pending, nil
}

// ArchiveKeyParams carries the return fields merged into the key log.
type ArchiveKeyParams struct {
	ReturnPhoto string
	ReturnTime  time.Time
}

// ArchiveCurrentKeyLog merges the return fields into the active custody
// record, moves it to history, evicts beyond the retention bound and marks
// the key available again. Returns sql.ErrNoRows when no key is out.
func (r *SiteRepository) ArchiveCurrentKeyLog(ctx context.Context, siteID string, params ArchiveKeyParams) (log *models.KeyLog, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin return transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = r.lockSite(ctx, tx, siteID); err != nil {
		return nil, err
	}

	var current models.KeyLog
	if err = tx.GetContext(ctx, &current, `SELECT * FROM key_logs WHERE site_id = $1 AND state = 'CURRENT' FOR UPDATE`, siteID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("load current key log: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE key_logs SET state = 'ARCHIVED', return_photo = $2, return_time = $3 WHERE id = $1`, current.ID, params.ReturnPhoto, params.ReturnTime); err != nil {
		return nil, fmt.Errorf("archive current key log: %w", err)
	}

	const evictQuery = `
DELETE FROM key_logs
WHERE site_id = $1 AND state = 'ARCHIVED' AND id NOT IN (
	SELECT id FROM key_logs
	WHERE site_id = $1 AND state = 'ARCHIVED'
	ORDER BY return_time DESC
	LIMIT $2
)`
	if _, err = tx.ExecContext(ctx, evictQuery, siteID, r.historyLimit); err != nil {
		return nil, fmt.Errorf("evict key history: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE sites SET key_status = 'AVAILABLE', updated_at = $2 WHERE id = $1`, siteID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("mark key available: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit return: %w", err)
	}

	current.State = models.RecordStateArchived
	current.ReturnPhoto = &params.ReturnPhoto
	current.ReturnTime = &params.ReturnTime
	return &current, nil
}

// UpdateVisitorEntryPhoto swaps the inline entry photo for a hosted URL.
// Archived records are immutable, so the swap only applies while the record
// is still pending or current.
func (r *SiteRepository) UpdateVisitorEntryPhoto(ctx context.Context, visitorID, photoURL string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE site_visitors SET entry_photo = $2 WHERE id = $1 AND state != 'ARCHIVED'`, visitorID, photoURL)
	if err != nil {
		return fmt.Errorf("update visitor entry photo: %w", err)
	}
	return nil
}

// UpdateKeyLogBorrowPhoto swaps the inline borrow photo for a hosted URL on
// non-archived key logs.
func (r *SiteRepository) UpdateKeyLogBorrowPhoto(ctx context.Context, logID, photoURL string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE key_logs SET borrow_photo = $2 WHERE id = $1 AND state != 'ARCHIVED'`, logID, photoURL)
	if err != nil {
		return fmt.Errorf("update key log borrow photo: %w", err)
	}
	return nil
}
