package purchasing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mofad-energy/mofad-erp/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const headerColumns = `id, number, supplier, status, delivery_status, currency, total_amount, notes,
rejection_stage, rejection_reason, created_by, reviewed_by, approved_by,
created_at, submitted_at, reviewed_at, approved_at, sent_at, confirmed_at, delivered_at, cancelled_at, updated_at`

// Get returns a purchase order with its lines.
func (r *Repository) Get(ctx context.Context, id int64) (PurchaseOrder, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+headerColumns+` FROM purchase_orders WHERE id = $1`, id)
	po, err := scanHeader(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, ErrNotFound
		}
		return PurchaseOrder{}, err
	}
	lines, err := r.getLines(ctx, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Lines = lines
	return po, nil
}

// List returns purchase orders matching the filters plus the total count.
func (r *Repository) List(ctx context.Context, filters ListFilters, limit, offset int) ([]PurchaseOrder, int, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if len(filters.Statuses) > 0 {
		values := make([]string, 0, len(filters.Statuses))
		for _, s := range filters.Statuses {
			values = append(values, string(s))
		}
		conds = append(conds, "status = ANY("+arg(values)+")")
	}
	if filters.Supplier != "" {
		conds = append(conds, "supplier ILIKE "+arg("%"+filters.Supplier+"%"))
	}
	if filters.Search != "" {
		conds = append(conds, "number ILIKE "+arg("%"+filters.Search+"%"))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM purchase_orders"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + headerColumns + " FROM purchase_orders" + where +
		" ORDER BY created_at DESC, id DESC LIMIT " + arg(limit) + " OFFSET " + arg(offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []PurchaseOrder
	for rows.Next() {
		po, err := scanHeader(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, po)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *Repository) getLines(ctx context.Context, poID int64) ([]LineItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, purchase_order_id, product_id, description, uom,
unit_price, quantity_ordered, quantity_received, line_order
FROM purchase_order_items WHERE purchase_order_id = $1 ORDER BY line_order ASC, id ASC`, poID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []LineItem
	for rows.Next() {
		var l LineItem
		if err := rows.Scan(&l.ID, &l.PurchaseOrderID, &l.ProductID, &l.Description, &l.UOM,
			&l.UnitPrice, &l.QuantityOrdered, &l.QuantityReceived, &l.LineOrder); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func scanHeader(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := row.Scan(&po.ID, &po.Number, &po.Supplier, &po.Status, &po.DeliveryStatus, &po.Currency,
		&po.TotalAmount, &po.Notes, &po.RejectionStage, &po.RejectionReason,
		&po.CreatedBy, &po.ReviewedBy, &po.ApprovedBy,
		&po.CreatedAt, &po.SubmittedAt, &po.ReviewedAt, &po.ApprovedAt,
		&po.SentAt, &po.ConfirmedAt, &po.DeliveredAt, &po.CancelledAt, &po.UpdatedAt)
	return po, err
}

func (t *txRepo) Insert(ctx context.Context, po PurchaseOrder) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO purchase_orders
(number, supplier, status, delivery_status, currency, total_amount, notes, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
RETURNING id`,
		po.Number, po.Supplier, string(po.Status), string(po.DeliveryStatus), po.Currency,
		po.TotalAmount, po.Notes, po.CreatedBy).Scan(&id)
	return id, err
}

func (t *txRepo) InsertLine(ctx context.Context, line LineItem) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO purchase_order_items
(purchase_order_id, product_id, description, uom, unit_price, quantity_ordered, quantity_received, line_order)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		line.PurchaseOrderID, line.ProductID, line.Description, line.UOM,
		line.UnitPrice, line.QuantityOrdered, line.QuantityReceived, line.LineOrder)
	return err
}

func (t *txRepo) UpdateDraft(ctx context.Context, po PurchaseOrder) error {
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_orders
SET supplier = $2, total_amount = $3, notes = $4, updated_at = NOW()
WHERE id = $1 AND status = $5`,
		po.ID, po.Supplier, po.TotalAmount, po.Notes, string(StatusDraft))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return t.missOrInvalid(ctx, po.ID)
	}
	return nil
}

func (t *txRepo) DeleteLines(ctx context.Context, poID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM purchase_order_items WHERE purchase_order_id = $1`, poID)
	return err
}

func (t *txRepo) UpdateStatus(ctx context.Context, id int64, from, to Status, patch StatusPatch) error {
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET
status = $3,
submitted_at = COALESCE($4, submitted_at),
reviewed_at = COALESCE($5, reviewed_at),
approved_at = COALESCE($6, approved_at),
sent_at = COALESCE($7, sent_at),
confirmed_at = COALESCE($8, confirmed_at),
delivered_at = COALESCE($9, delivered_at),
cancelled_at = COALESCE($10, cancelled_at),
reviewed_by = COALESCE($11, reviewed_by),
approved_by = COALESCE($12, approved_by),
rejection_stage = COALESCE($13, rejection_stage),
rejection_reason = COALESCE($14, rejection_reason),
updated_at = NOW()
WHERE id = $1 AND status = $2`,
		id, string(from), string(to),
		patch.SubmittedAt, patch.ReviewedAt, patch.ApprovedAt, patch.SentAt,
		patch.ConfirmedAt, patch.DeliveredAt, patch.CancelledAt,
		patch.ReviewedBy, patch.ApprovedBy,
		(*string)(patch.RejectionStage), patch.RejectionReason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Either gone or already moved on by a concurrent transition.
		return t.missOrInvalid(ctx, id)
	}
	return nil
}

func (t *txRepo) AddLineReceipt(ctx context.Context, poID, lineID int64, qty decimal.Decimal) error {
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_order_items
SET quantity_received = quantity_received + $3
WHERE id = $2 AND purchase_order_id = $1 AND quantity_received + $3 <= quantity_ordered`,
		poID, lineID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		err := t.tx.QueryRow(ctx, `SELECT true FROM purchase_order_items WHERE id = $1 AND purchase_order_id = $2`, lineID, poID).Scan(&exists)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrLineNotFound
		}
		if err != nil {
			return err
		}
		return ErrOverReceipt
	}
	return nil
}

func (t *txRepo) SetDeliveryStatus(ctx context.Context, id int64, status DeliveryStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET delivery_status = $2, updated_at = NOW() WHERE id = $1`,
		id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) Delete(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM purchase_orders WHERE id = $1 AND status = $2`, id, string(StatusDraft))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return t.missOrInvalid(ctx, id)
	}
	return nil
}

func (t *txRepo) missOrInvalid(ctx context.Context, id int64) error {
	var current string
	err := t.tx.QueryRow(ctx, `SELECT status FROM purchase_orders WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrInvalidState
}
