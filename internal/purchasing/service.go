package purchasing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mofad-energy/mofad-erp/internal/shared"
)

// ApprovalModule is the module tag used in the approval history table.
const ApprovalModule = "PRO"

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (PurchaseOrder, error)
	List(ctx context.Context, filters ListFilters, limit, offset int) ([]PurchaseOrder, int, error)
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	Insert(ctx context.Context, po PurchaseOrder) (int64, error)
	InsertLine(ctx context.Context, line LineItem) error
	UpdateDraft(ctx context.Context, po PurchaseOrder) error
	DeleteLines(ctx context.Context, poID int64) error
	// UpdateStatus performs a compare-and-set on the status column. It
	// reports ErrInvalidState when the order is no longer in `from`, which
	// is how a racing transition surfaces to the second caller.
	UpdateStatus(ctx context.Context, id int64, from, to Status, patch StatusPatch) error
	AddLineReceipt(ctx context.Context, poID, lineID int64, qty decimal.Decimal) error
	SetDeliveryStatus(ctx context.Context, id int64, status DeliveryStatus) error
	Delete(ctx context.Context, id int64) error
}

// StatusPatch carries the derived fields set alongside a status transition.
// Each timestamp is written at most once; nil fields leave columns untouched.
type StatusPatch struct {
	SubmittedAt     *time.Time
	ReviewedAt      *time.Time
	ApprovedAt      *time.Time
	SentAt          *time.Time
	ConfirmedAt     *time.Time
	DeliveredAt     *time.Time
	CancelledAt     *time.Time
	ReviewedBy      *int64
	ApprovedBy      *int64
	RejectionStage  *RejectionStage
	RejectionReason *string
}

// ListFilters narrows purchase order listings.
type ListFilters struct {
	Statuses []Status
	Supplier string
	Search   string
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Notifier pushes workflow notifications to interested actors. Delivery of
// the notification itself is a background concern.
type Notifier interface {
	NotifyStatusChange(ctx context.Context, po PurchaseOrder, operation string) error
}

// ReconciliationCache stores computed reconciliation snapshots.
type ReconciliationCache interface {
	Get(ctx context.Context, poID int64) (*Reconciliation, error)
	Set(ctx context.Context, poID int64, recon Reconciliation) error
	Invalidate(ctx context.Context, poID int64) error
}

// Service orchestrates the purchase order workflow.
type Service struct {
	repo        RepositoryPort
	approvals   *shared.ApprovalRecorder
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	cache       ReconciliationCache
	notifier    Notifier
}

// NewService constructs the purchasing service.
func NewService(repo RepositoryPort, approvals *shared.ApprovalRecorder, audit AuditPort, idem *shared.IdempotencyStore, cache ReconciliationCache, notifier Notifier) *Service {
	return &Service{repo: repo, approvals: approvals, audit: audit, idempotency: idem, cache: cache, notifier: notifier}
}

// LineInput describes one ordered product.
type LineInput struct {
	ProductID   int64
	Description *string
	UOM         string
	UnitPrice   decimal.Decimal
	Quantity    decimal.Decimal
	LineOrder   int
}

// CreateInput describes the creation payload.
type CreateInput struct {
	Number      string
	Supplier    string
	Currency    string
	TotalAmount decimal.Decimal
	Notes       *string
	Lines       []LineInput
}

// UpdateInput describes a draft edit. Nil fields are left unchanged; a
// non-nil Lines replaces the full line set.
type UpdateInput struct {
	Supplier    *string
	TotalAmount *decimal.Decimal
	Notes       *string
	Lines       *[]LineInput
}

// Create persists a new purchase order in DRAFT.
func (s *Service) Create(ctx context.Context, input CreateInput, actorID int64) (PurchaseOrder, error) {
	if input.Supplier == "" {
		return PurchaseOrder{}, fmt.Errorf("%w: supplier is required", ErrValidation)
	}
	if len(input.Lines) == 0 {
		return PurchaseOrder{}, ErrEmptyLines
	}
	for _, line := range input.Lines {
		if line.ProductID == 0 || !line.Quantity.IsPositive() || line.UnitPrice.IsNegative() {
			return PurchaseOrder{}, ErrValidation
		}
	}
	if input.TotalAmount.IsNegative() {
		return PurchaseOrder{}, fmt.Errorf("%w: total amount must not be negative", ErrValidation)
	}
	if input.Number == "" {
		input.Number = generateNumber("PRO")
	}
	total := input.TotalAmount
	if total.IsZero() {
		for _, line := range input.Lines {
			total = total.Add(line.Quantity.Mul(line.UnitPrice))
		}
	}
	po := PurchaseOrder{
		Number:         input.Number,
		Supplier:       input.Supplier,
		Status:         StatusDraft,
		DeliveryStatus: DeliveryPending,
		Currency:       defaultString(input.Currency, "NGN"),
		TotalAmount:    total,
		Notes:          input.Notes,
		CreatedBy:      actorID,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.Insert(ctx, po)
		if err != nil {
			return err
		}
		po.ID = id
		for i, line := range input.Lines {
			item := LineItem{
				PurchaseOrderID:  id,
				ProductID:        line.ProductID,
				Description:      line.Description,
				UOM:              line.UOM,
				UnitPrice:        line.UnitPrice,
				QuantityOrdered:  line.Quantity,
				QuantityReceived: decimal.Zero,
				LineOrder:        orderOrIndex(line.LineOrder, i),
			}
			if err := tx.InsertLine(ctx, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, actorID, "PRO_CREATE", po.ID, map[string]any{"number": po.Number, "supplier": po.Supplier})
	return s.repo.Get(ctx, po.ID)
}

// Update edits a DRAFT order. Contractual fields freeze once submitted.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput, actorID int64) (PurchaseOrder, error) {
	po, err := s.repo.Get(ctx, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if !po.Status.CanEdit() {
		return PurchaseOrder{}, transitionErr("update", po.Status)
	}
	if input.Supplier != nil {
		if *input.Supplier == "" {
			return PurchaseOrder{}, fmt.Errorf("%w: supplier is required", ErrValidation)
		}
		po.Supplier = *input.Supplier
	}
	if input.TotalAmount != nil {
		if input.TotalAmount.IsNegative() {
			return PurchaseOrder{}, fmt.Errorf("%w: total amount must not be negative", ErrValidation)
		}
		po.TotalAmount = *input.TotalAmount
	}
	if input.Notes != nil {
		po.Notes = input.Notes
	}
	if input.Lines != nil {
		if len(*input.Lines) == 0 {
			return PurchaseOrder{}, ErrEmptyLines
		}
		for _, line := range *input.Lines {
			if line.ProductID == 0 || !line.Quantity.IsPositive() || line.UnitPrice.IsNegative() {
				return PurchaseOrder{}, ErrValidation
			}
		}
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateDraft(ctx, po); err != nil {
			return err
		}
		if input.Lines == nil {
			return nil
		}
		if err := tx.DeleteLines(ctx, id); err != nil {
			return err
		}
		for i, line := range *input.Lines {
			item := LineItem{
				PurchaseOrderID:  id,
				ProductID:        line.ProductID,
				Description:      line.Description,
				UOM:              line.UOM,
				UnitPrice:        line.UnitPrice,
				QuantityOrdered:  line.Quantity,
				QuantityReceived: decimal.Zero,
				LineOrder:        orderOrIndex(line.LineOrder, i),
			}
			if err := tx.InsertLine(ctx, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, id)
	}
	s.recordAudit(ctx, actorID, "PRO_UPDATE", id, map[string]any{"number": po.Number})
	return s.repo.Get(ctx, id)
}

// SubmitForReview transitions DRAFT to PENDING_REVIEW.
func (s *Service) SubmitForReview(ctx context.Context, id int64, actorID int64) (PurchaseOrder, error) {
	po, err := s.repo.Get(ctx, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if !po.Status.CanSubmit() {
		return PurchaseOrder{}, transitionErr("submit_for_review", po.Status)
	}
	now := time.Now()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateStatus(ctx, id, StatusDraft, StatusPendingReview, StatusPatch{SubmittedAt: &now}); err != nil {
			return err
		}
		if s.approvals != nil {
			_ = s.approvals.EnsureSubmit(ctx, ApprovalModule, refID(id), actorID, fmt.Sprintf("PRO %s submitted for review", po.Number))
		}
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	return s.finishTransition(ctx, id, actorID, "submit_for_review")
}

// Review passes a PENDING_REVIEW order on to the approval stage.
func (s *Service) Review(ctx context.Context, id int64, actorID int64) (PurchaseOrder, error) {
	po, err := s.repo.Get(ctx, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if !po.Status.CanReview() {
		return PurchaseOrder{}, transitionErr("review", po.Status)
	}
	now := time.Now()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		patch := StatusPatch{ReviewedBy: &actorID, ReviewedAt: &now}
		if err := tx.UpdateStatus(ctx, id, StatusPendingReview, StatusPendingApproval, patch); err != nil {
			return err
		}
		if s.approvals != nil {
			_ = s.approvals.Record(ctx, shared.ApprovalLog{Module: ApprovalModule, RefID: refID(id), ActorID: actorID, Action: shared.ApprovalReview, Note: fmt.Sprintf("PRO %s passed review", po.Number)})
		}
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	return s.finishTransition(ctx, id, actorID, "review")
}

// ReviewReject rejects a PENDING_REVIEW order. A reason is mandatory.
func (s *Service) ReviewReject(ctx context.Context, id int64, actorID int64, reason string) (PurchaseOrder, error) {
	return s.reject(ctx, id, actorID, reason, RejectionStageReview)
}

// Approve transitions PENDING_APPROVAL to APPROVED.
func (s *Service) Approve(ctx context.Context, id int64, actorID int64) (PurchaseOrder, error) {
	po, err := s.repo.Get(ctx, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if !po.Status.CanApprove() {
		return PurchaseOrder{}, transitionErr("approve", po.Status)
	}
	now := time.Now()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		patch := StatusPatch{ApprovedBy: &actorID, ApprovedAt: &now}
		if err := tx.UpdateStatus(ctx, id, StatusPendingApproval, StatusApproved, patch); err != nil {
			return err
		}
		if s.approvals != nil {
			_ = s.approvals.Record(ctx, shared.ApprovalLog{Module: ApprovalModule, RefID: refID(id), ActorID: actorID, Action: shared.ApprovalApprove, Note: fmt.Sprintf("PRO %s approved", po.Number)})
		}
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	return s.finishTransition(ctx, id, actorID, "approve")
}

// Reject rejects a PENDING_APPROVAL order. A reason is mandatory.
func (s *Service) Reject(ctx context.Context, id int64, actorID int64, reason string) (PurchaseOrder, error) {
	return s.reject(ctx, id, actorID, reason, RejectionStageApproval)
}

func (s *Service) reject(ctx context.Context, id int64, actorID int64, reason string, stage RejectionStage) (PurchaseOrder, error) {
	if reason == "" {
		return PurchaseOrder{}, ErrReasonRequired
	}
	po, err := s.repo.Get(ctx, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	from := StatusPendingReview
	op := "review_reject"
	allowed := po.Status.CanReview()
	if stage == RejectionStageApproval {
		from = StatusPendingApproval
		op = "reject"
		allowed = po.Status.CanApprove()
	}
	if !allowed {
		return PurchaseOrder{}, transitionErr(op, po.Status)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		patch := StatusPatch{RejectionStage: &stage, RejectionReason: &reason}
		if err := tx.UpdateStatus(ctx, id, from, StatusRejected, patch); err != nil {
			return err
		}
		if s.approvals != nil {
			_ = s.approvals.Record(ctx, shared.ApprovalLog{Module: ApprovalModule, RefID: refID(id), ActorID: actorID, Action: shared.ApprovalReject, Note: reason})
		}
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	return s.finishTransition(ctx, id, actorID, op)
}

// SendToSupplier dispatches an APPROVED order to the supplier. The dispatch
// has an external side effect, so it is fenced with an idempotency key.
func (s *Service) SendToSupplier(ctx context.Context, id int64, actorID int64) (PurchaseOrder, error) {
	po, err := s.repo.Get(ctx, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if !po.Status.CanSend() {
		return PurchaseOrder{}, transitionErr("send_to_supplier", po.Status)
	}
	key := fmt.Sprintf("PRO-SEND:%s", po.Number)
	inserted := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "purchasing.send"); err != nil {
			return PurchaseOrder{}, err
		}
		inserted = true
	}
	now := time.Now()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateStatus(ctx, id, StatusApproved, StatusSent, StatusPatch{SentAt: &now})
	})
	if err != nil {
		if inserted {
			_ = s.idempotency.Delete(ctx, key)
		}
		return PurchaseOrder{}, err
	}
	return s.finishTransition(ctx, id, actorID, "send_to_supplier")
}

// Confirm records the supplier's confirmation of a SENT order.
func (s *Service) Confirm(ctx context.Context, id int64, actorID int64) (PurchaseOrder, error) {
	po, err := s.repo.Get(ctx, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if !po.Status.CanConfirm() {
		return PurchaseOrder{}, transitionErr("confirm", po.Status)
	}
	now := time.Now()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateStatus(ctx, id, StatusSent, StatusConfirmed, StatusPatch{ConfirmedAt: &now})
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	return s.finishTransition(ctx, id, actorID, "confirm")
}

// RecordDelivery adds a received quantity to one line and recomputes the
// derived delivery state. All checks run before any mutation; over-receipt
// and non-positive quantities leave the record untouched.
func (s *Service) RecordDelivery(ctx context.Context, id, lineID int64, qty decimal.Decimal, actorID int64) (PurchaseOrder, Reconciliation, error) {
	if !qty.IsPositive() {
		return PurchaseOrder{}, Reconciliation{}, ErrInvalidQuantity
	}
	po, err := s.repo.Get(ctx, id)
	if err != nil {
		return PurchaseOrder{}, Reconciliation{}, err
	}
	if !po.Status.CanReceive() {
		return PurchaseOrder{}, Reconciliation{}, transitionErr("record_delivery", po.Status)
	}
	projected := append([]LineItem(nil), po.Lines...)
	lineIdx := -1
	for i, line := range projected {
		if line.ID == lineID {
			lineIdx = i
			break
		}
	}
	if lineIdx < 0 {
		return PurchaseOrder{}, Reconciliation{}, ErrLineNotFound
	}
	line := projected[lineIdx]
	if line.QuantityReceived.Add(qty).GreaterThan(line.QuantityOrdered) {
		return PurchaseOrder{}, Reconciliation{}, ErrOverReceipt
	}
	projected[lineIdx].QuantityReceived = line.QuantityReceived.Add(qty)
	derived := DeriveDeliveryStatus(projected)

	target := StatusPartiallyDelivered
	now := time.Now()
	patch := StatusPatch{}
	if derived == DeliveryCompleted {
		target = StatusDelivered
		patch.DeliveredAt = &now
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.AddLineReceipt(ctx, id, lineID, qty); err != nil {
			return err
		}
		if err := tx.SetDeliveryStatus(ctx, id, derived); err != nil {
			return err
		}
		return tx.UpdateStatus(ctx, id, po.Status, target, patch)
	})
	if err != nil {
		return PurchaseOrder{}, Reconciliation{}, err
	}
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, id)
	}
	updated, err := s.repo.Get(ctx, id)
	if err != nil {
		return PurchaseOrder{}, Reconciliation{}, err
	}
	recon := Reconcile(updated)
	if s.cache != nil {
		_ = s.cache.Set(ctx, id, recon)
	}
	s.recordAudit(ctx, actorID, "PRO_DELIVERY", id, map[string]any{
		"line_id":  lineID,
		"quantity": qty.String(),
		"status":   string(updated.Status),
	})
	return updated, recon, nil
}

// Cancel terminates an order that has not yet been approved.
func (s *Service) Cancel(ctx context.Context, id int64, actorID int64) (PurchaseOrder, error) {
	po, err := s.repo.Get(ctx, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if !po.Status.CanCancel() {
		return PurchaseOrder{}, transitionErr("cancel", po.Status)
	}
	now := time.Now()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateStatus(ctx, id, po.Status, StatusCancelled, StatusPatch{CancelledAt: &now})
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	return s.finishTransition(ctx, id, actorID, "cancel")
}

// Delete removes a DRAFT order entirely.
func (s *Service) Delete(ctx context.Context, id int64, actorID int64) error {
	po, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !po.Status.CanDelete() {
		return transitionErr("delete", po.Status)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.DeleteLines(ctx, id); err != nil {
			return err
		}
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, id)
	}
	s.recordAudit(ctx, actorID, "PRO_DELETE", id, map[string]any{"number": po.Number})
	return nil
}

// Get returns a purchase order with its lines.
func (s *Service) Get(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.repo.Get(ctx, id)
}

// List returns purchase orders matching the filters.
func (s *Service) List(ctx context.Context, filters ListFilters, limit, offset int) ([]PurchaseOrder, int, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.List(ctx, filters, limit, offset)
}

// Queue roles for ListPending.
const (
	RoleReviewer = "reviewer"
	RoleApprover = "approver"
)

// ListPending returns the orders actionable by the given role.
func (s *Service) ListPending(ctx context.Context, role string, limit, offset int) ([]PurchaseOrder, int, error) {
	var statuses []Status
	switch role {
	case RoleReviewer:
		statuses = []Status{StatusPendingReview}
	case RoleApprover:
		statuses = []Status{StatusPendingApproval}
	default:
		return nil, 0, fmt.Errorf("%w: unknown queue role %q", ErrValidation, role)
	}
	if limit <= 0 {
		limit = 20
	}
	return s.repo.List(ctx, ListFilters{Statuses: statuses}, limit, offset)
}

// Reconciliation returns the delivery reconciliation for an order, from the
// snapshot cache when available.
func (s *Service) Reconciliation(ctx context.Context, id int64) (Reconciliation, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, id); err == nil && cached != nil {
			return *cached, nil
		}
	}
	return s.RefreshReconciliation(ctx, id)
}

// RefreshReconciliation recomputes and re-caches a reconciliation snapshot.
func (s *Service) RefreshReconciliation(ctx context.Context, id int64) (Reconciliation, error) {
	po, err := s.repo.Get(ctx, id)
	if err != nil {
		return Reconciliation{}, err
	}
	recon := Reconcile(po)
	if s.cache != nil {
		_ = s.cache.Set(ctx, id, recon)
	}
	return recon, nil
}

// ApprovalHistory returns the approval trail for an order.
func (s *Service) ApprovalHistory(ctx context.Context, id int64) ([]shared.ApprovalLog, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	if s.approvals == nil {
		return nil, nil
	}
	return s.approvals.List(ctx, ApprovalModule, refID(id))
}

// ListDeliverable returns orders with deliveries still open, used by the
// snapshot refresh job.
func (s *Service) ListDeliverable(ctx context.Context, limit, offset int) ([]PurchaseOrder, int, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.List(ctx, ListFilters{Statuses: []Status{StatusConfirmed, StatusPartiallyDelivered}}, limit, offset)
}

func (s *Service) finishTransition(ctx context.Context, id, actorID int64, op string) (PurchaseOrder, error) {
	updated, err := s.repo.Get(ctx, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, actorID, "PRO_"+op, id, map[string]any{"number": updated.Number, "status": string(updated.Status)})
	if s.notifier != nil {
		// Best effort; the transition already committed.
		_ = s.notifier.NotifyStatusChange(ctx, updated, op)
	}
	return updated, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "purchasing", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}

func refID(id int64) uuid.UUID {
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("PRO:%d", id)))
}

func generateNumber(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func defaultString(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func orderOrIndex(order, index int) int {
	if order > 0 {
		return order
	}
	return index + 1
}
