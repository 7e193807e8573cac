package bridge

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"ProjectAnchor/internal/anchor"
	xerrors "ProjectAnchor/internal/errors"
	"ProjectAnchor/internal/payload"
)

const receiptColumns = `id, anchor_type, payload_kind, payload_hash, on_chain_hash, canonical, network, endpoint, status,
        attempts, max_attempts, tx_ref, block_height, registrant, last_error, error_code, created_at, updated_at`

// MySQLStore 使用 anchor_receipts 表记录回执。表结构由存储层的迁移创建。
type MySQLStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewMySQLStore 基于已打开的连接创建回执存储。
func NewMySQLStore(db *sql.DB) (*MySQLStore, error) {
	if db == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "MySQL 连接不能为空")
	}
	return &MySQLStore{db: db, now: time.Now}, nil
}

// Create 插入新的回执记录。
func (s *MySQLStore) Create(ctx context.Context, r *Receipt) error {
	if r == nil || strings.TrimSpace(r.ID) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "回执 ID 不能为空")
	}
	now := s.now().UnixMilli()
	if r.CreatedAt == 0 {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	const stmt = `INSERT INTO anchor_receipts (` + receiptColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, stmt,
		r.ID,
		r.AnchorType.String(),
		string(r.PayloadKind),
		r.PayloadHash,
		r.OnChainHash,
		r.Canonical,
		r.Network,
		r.Endpoint,
		string(r.Status),
		r.Attempts,
		r.MaxAttempts,
		r.TxRef,
		r.BlockHeight,
		r.Registrant,
		r.LastError,
		r.ErrorCode,
		r.CreatedAt,
		r.UpdatedAt,
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if stdErrors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return ErrReceiptConflict
		}
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "插入回执失败")
	}
	return nil
}

// Get 查询指定回执。
func (s *MySQLStore) Get(ctx context.Context, id string) (*Receipt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+receiptColumns+` FROM anchor_receipts WHERE id = ?`, id)
	r, err := scanReceipt(row)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, ErrReceiptNotFound
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询回执失败")
	}
	return r, nil
}

// Claim 将回执标记为已提交并返回最新状态。
func (s *MySQLStore) Claim(ctx context.Context, id string) (*Receipt, error) {
	const stmt = `UPDATE anchor_receipts SET status = ?, attempts = attempts + 1, updated_at = ?, last_error = '', error_code = ''
        WHERE id = ? AND status IN (?, ?) AND attempts < max_attempts`

	res, err := s.db.ExecContext(ctx, stmt,
		string(StatusSubmitted),
		s.now().UnixMilli(),
		id,
		string(StatusPending),
		string(StatusFailed),
	)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "更新回执状态失败")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "获取影响行数失败")
	}
	r, getErr := s.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if affected == 0 {
		switch r.Status {
		case StatusConfirmed, StatusDryRun:
			return r, ErrReceiptSettled
		case StatusSubmitted:
			return r, ErrReceiptConflict
		default:
			if r.Attempts >= r.MaxAttempts {
				return r, ErrReceiptExhausted
			}
			return r, ErrReceiptConflict
		}
	}
	return r, nil
}

// MarkConfirmed 记录提交结果。
func (s *MySQLStore) MarkConfirmed(ctx context.Context, id string, conf Confirmation) error {
	const stmt = `UPDATE anchor_receipts SET status = ?, tx_ref = ?, on_chain_hash = ?, block_height = ?, registrant = ?,
        last_error = '', error_code = '', updated_at = ? WHERE id = ?`

	status := conf.Status
	if status == "" {
		status = StatusConfirmed
	}
	res, err := s.db.ExecContext(ctx, stmt,
		string(status),
		conf.TxRef,
		conf.OnChainHash,
		conf.BlockHeight,
		conf.Registrant,
		s.now().UnixMilli(),
		id,
	)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "标记回执确认失败")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrReceiptNotFound
	}
	return nil
}

// MarkFailed 标记回执失败。
func (s *MySQLStore) MarkFailed(ctx context.Context, id string, code xerrors.Code, lastError string, terminal bool) error {
	const stmt = `UPDATE anchor_receipts SET status = ?, attempts = CASE WHEN ? THEN GREATEST(attempts, max_attempts) ELSE attempts END,
        last_error = ?, error_code = ?, updated_at = ? WHERE id = ?`

	res, err := s.db.ExecContext(ctx, stmt,
		string(StatusFailed),
		terminal,
		lastError,
		string(code),
		s.now().UnixMilli(),
		id,
	)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "标记回执失败状态出错")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrReceiptNotFound
	}
	return nil
}

// List 返回符合条件的回执。
func (s *MySQLStore) List(ctx context.Context, opts ListOptions) ([]*Receipt, error) {
	opts.applyDefaults()

	query := `SELECT ` + receiptColumns + ` FROM anchor_receipts`
	clause, args := buildFilterClause(opts)
	if clause != "" {
		query += " WHERE " + clause
	}
	if opts.Order == SortByUpdatedAsc {
		query += " ORDER BY updated_at ASC, created_at ASC, id ASC"
	} else {
		query += " ORDER BY updated_at DESC, created_at DESC, id DESC"
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询回执列表失败")
	}
	defer rows.Close()

	receipts := make([]*Receipt, 0, opts.Limit)
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析回执记录失败")
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历回执失败")
	}
	return receipts, nil
}

// Close 不关闭共享连接，连接由存储层负责。
func (s *MySQLStore) Close() error {
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row rowScanner) (*Receipt, error) {
	var (
		r         Receipt
		typ       string
		kind      string
		status    string
		lastError sql.NullString
	)
	if err := row.Scan(
		&r.ID,
		&typ,
		&kind,
		&r.PayloadHash,
		&r.OnChainHash,
		&r.Canonical,
		&r.Network,
		&r.Endpoint,
		&status,
		&r.Attempts,
		&r.MaxAttempts,
		&r.TxRef,
		&r.BlockHeight,
		&r.Registrant,
		&lastError,
		&r.ErrorCode,
		&r.CreatedAt,
		&r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	parsed, err := anchor.ParseType(typ)
	if err != nil {
		return nil, err
	}
	r.AnchorType = parsed
	r.PayloadKind = payload.Kind(kind)
	r.Status = Status(status)
	r.LastError = lastError.String
	return &r, nil
}

// Stats 实现 Store 接口。
func (s *MySQLStore) Stats(ctx context.Context, opts ListOptions) (ReceiptStats, error) {
	opts.applyDefaults()

	query := `SELECT
        COUNT(*) AS total,
        COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS pending,
        COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS submitted,
        COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS confirmed,
        COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS failed,
        COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS dry_run,
        COALESCE(MIN(updated_at), 0) AS oldest,
        COALESCE(MAX(updated_at), 0) AS newest
        FROM anchor_receipts`

	clause, filterArgs := buildFilterClause(opts)
	if clause != "" {
		query += " WHERE " + clause
	}
	args := []any{
		string(StatusPending), string(StatusSubmitted), string(StatusConfirmed),
		string(StatusFailed), string(StatusDryRun),
	}
	args = append(args, filterArgs...)

	var stats ReceiptStats
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&stats.Total,
		&stats.Pending,
		&stats.Submitted,
		&stats.Confirmed,
		&stats.Failed,
		&stats.DryRun,
		&stats.OldestUpdatedAt,
		&stats.NewestUpdatedAt,
	); err != nil {
		return ReceiptStats{}, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询回执统计失败")
	}
	return stats, nil
}

func buildFilterClause(opts ListOptions) (string, []any) {
	conditions := make([]string, 0, 3)
	args := make([]any, 0, len(opts.Statuses)+2)

	if len(opts.Statuses) > 0 {
		placeholders := make([]string, 0, len(opts.Statuses))
		for _, status := range opts.Statuses {
			placeholders = append(placeholders, "?")
			args = append(args, string(status))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if opts.AnchorType != 0 {
		conditions = append(conditions, "anchor_type = ?")
		args = append(args, opts.AnchorType.String())
	}
	if opts.PayloadHash != "" {
		conditions = append(conditions, "payload_hash = ?")
		args = append(args, opts.PayloadHash)
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return strings.Join(conditions, " AND "), args
}

var _ Store = (*MySQLStore)(nil)
