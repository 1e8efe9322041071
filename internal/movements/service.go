package movements

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cranefleet/cranefleet/internal/ledger"
	"github.com/cranefleet/cranefleet/internal/refs"
	"github.com/cranefleet/cranefleet/internal/stock"
)

// RepositoryPort is the persistence surface the service needs.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetMovement(ctx context.Context, id int64) (Movement, error)
	ListMovements(ctx context.Context, f ListFilter) ([]Movement, error)
	FindDraftIssue(ctx context.Context, date time.Time, machineID int64, description string, draftStatusID int64) (int64, bool, error)
	AvgLoadCost(ctx context.Context, machineID int64, until time.Time) (decimal.Decimal, error)
}

// DirectoryPort answers existence and ownership questions about locations.
type DirectoryPort interface {
	WarehouseExists(ctx context.Context, id int64) (bool, error)
	MachineExists(ctx context.Context, id int64) (bool, error)
	WarehouseOwner(ctx context.Context, warehouseID int64) (int64, error)
	OwnerOfMachine(ctx context.Context, machineID int64) (*int64, error)
}

// StatusPort resolves movement status ids and transaction categories.
type StatusPort interface {
	MovementStatusID(ctx context.Context, name string) (int64, error)
	EnsureCategory(ctx context.Context, name string, txTypeID int64) (int64, error)
}

// LedgerPort posts the offsetting purchase expense.
type LedgerPort interface {
	FirstAccountOfOwner(ctx context.Context, ownerID int64) (int64, bool, error)
	CreateTransaction(ctx context.Context, t ledger.Transaction) (ledger.Transaction, error)
}

// PurchaseCategory is the transaction category purchases post under.
const PurchaseCategory = "Purchases"

// Service drives the movement lifecycle.
type Service struct {
	repo      RepositoryPort
	directory DirectoryPort
	statuses  StatusPort
	ledger    LedgerPort
	logger    *slog.Logger
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, directory DirectoryPort, statuses StatusPort, bank LedgerPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, directory: directory, statuses: statuses, ledger: bank, logger: logger}
}

// Create inserts a movement in draft with its items. Item amounts and the
// document total are recomputed from quantity and price.
func (s *Service) Create(ctx context.Context, m Movement) (Movement, error) {
	if err := CheckShape(m); err != nil {
		return Movement{}, err
	}
	Normalize(&m)
	if m.DocumentDate.IsZero() {
		m.DocumentDate = time.Now().UTC()
	}
	if m.Currency == "" {
		m.Currency = "RUB"
	}
	draftID, err := s.statuses.MovementStatusID(ctx, refs.StatusDraft)
	if err != nil {
		return Movement{}, err
	}
	m.StatusID = draftID

	var id int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err = tx.InsertMovement(ctx, m)
		if err != nil {
			return err
		}
		return tx.ReplaceItems(ctx, id, m.Items)
	})
	if err != nil {
		return Movement{}, err
	}
	return s.repo.GetMovement(ctx, id)
}

// Update rewrites a draft movement. Lifecycle fields are preserved from the
// stored row.
func (s *Service) Update(ctx context.Context, m Movement) (Movement, error) {
	if err := CheckShape(m); err != nil {
		return Movement{}, err
	}
	Normalize(&m)
	draftID, err := s.statuses.MovementStatusID(ctx, refs.StatusDraft)
	if err != nil {
		return Movement{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		cur, err := tx.GetMovementForUpdate(ctx, m.ID)
		if err != nil {
			return err
		}
		if cur.StatusID != draftID || cur.ApprovedAt != nil {
			return fmt.Errorf("%w: update allowed only in draft", ErrIllegalTransition)
		}
		m.StatusID = cur.StatusID
		m.CreatedBy = cur.CreatedBy
		m.ApprovedBy, m.ApprovedAt = cur.ApprovedBy, cur.ApprovedAt
		m.ExecutedBy, m.ExecutedAt = cur.ExecutedBy, cur.ExecutedAt
		if err := tx.UpdateMovementRow(ctx, m); err != nil {
			return err
		}
		return tx.ReplaceItems(ctx, m.ID, m.Items)
	})
	if err != nil {
		return Movement{}, err
	}
	return s.repo.GetMovement(ctx, m.ID)
}

// Approve moves a draft to approved.
func (s *Service) Approve(ctx context.Context, id int64, actor *int64) (Movement, error) {
	draftID, err := s.statuses.MovementStatusID(ctx, refs.StatusDraft)
	if err != nil {
		return Movement{}, err
	}
	approvedID, err := s.statuses.MovementStatusID(ctx, refs.StatusApproved)
	if err != nil {
		return Movement{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		m, err := tx.GetMovementForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if m.StatusID != draftID {
			return fmt.Errorf("%w: approve requires draft", ErrIllegalTransition)
		}
		now := time.Now().UTC()
		m.StatusID = approvedID
		m.ApprovedBy, m.ApprovedAt = actor, &now
		return tx.UpdateMovementRow(ctx, m)
	})
	if err != nil {
		return Movement{}, err
	}
	return s.repo.GetMovement(ctx, id)
}

// Execute applies an approved movement: stock deltas in one transaction,
// then the purchase posting. A posting failure is logged, not returned; the
// movement stays executed.
func (s *Service) Execute(ctx context.Context, id int64, actor *int64) (Movement, error) {
	approvedID, err := s.statuses.MovementStatusID(ctx, refs.StatusApproved)
	if err != nil {
		return Movement{}, err
	}
	executedID, err := s.statuses.MovementStatusID(ctx, refs.StatusExecuted)
	if err != nil {
		return Movement{}, err
	}
	var executed Movement
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		m, err := tx.GetMovementForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if m.StatusID != approvedID {
			return fmt.Errorf("%w: execute requires approved", ErrIllegalTransition)
		}
		if err := s.checkPlaces(ctx, m); err != nil {
			return err
		}
		if err := applyStock(ctx, tx.Stock(), m); err != nil {
			return err
		}
		now := time.Now().UTC()
		m.StatusID = executedID
		m.ExecutedBy, m.ExecutedAt = actor, &now
		if err := tx.UpdateMovementRow(ctx, m); err != nil {
			return err
		}
		executed = m
		return nil
	})
	if err != nil {
		return Movement{}, err
	}
	if executed.IsPurchase() {
		if err := s.postPurchase(ctx, executed); err != nil {
			s.logger.Error("purchase posting failed",
				slog.Int64("movement_id", executed.ID),
				slog.String("error", err.Error()))
		}
	}
	return s.repo.GetMovement(ctx, id)
}

// Delete removes a movement that was never approved.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		m, err := tx.GetMovementForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if m.ApprovedAt != nil {
			return fmt.Errorf("%w: delete requires an unapproved movement", ErrIllegalTransition)
		}
		return tx.DeleteMovement(ctx, id)
	})
}

// Get fetches a movement with its items.
func (s *Service) Get(ctx context.Context, id int64) (Movement, error) {
	return s.repo.GetMovement(ctx, id)
}

// List returns movement headers matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Movement, error) {
	return s.repo.ListMovements(ctx, f)
}

// UpsertDraftIssue creates or rewrites the draft issue movement report
// derivation maintains for a machine and date. Returns the movement id.
func (s *Service) UpsertDraftIssue(ctx context.Context, date time.Time, machineID int64, description string, items []Item) (int64, error) {
	draftID, err := s.statuses.MovementStatusID(ctx, refs.StatusDraft)
	if err != nil {
		return 0, err
	}
	id, found, err := s.repo.FindDraftIssue(ctx, date, machineID, description, draftID)
	if err != nil {
		return 0, err
	}
	m := Movement{
		MovementType:  KindIssue,
		DocumentDate:  date,
		FromMachineID: &machineID,
		Description:   &description,
		Items:         items,
	}
	if !found {
		created, err := s.Create(ctx, m)
		if err != nil {
			return 0, err
		}
		return created.ID, nil
	}
	m.ID = id
	if _, err := s.Update(ctx, m); err != nil {
		return 0, err
	}
	return id, nil
}

// AvgLoadCost returns the weighted average unit price of all load_machine
// items delivered to the machine up to and including the given date.
func (s *Service) AvgLoadCost(ctx context.Context, machineID int64, until time.Time) (decimal.Decimal, error) {
	return s.repo.AvgLoadCost(ctx, machineID, until)
}

func (s *Service) checkPlaces(ctx context.Context, m Movement) error {
	check := func(id *int64, exists func(context.Context, int64) (bool, error), what string) error {
		if id == nil {
			return nil
		}
		ok, err := exists(ctx, *id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s %d", refs.ErrMissingReference, what, *id)
		}
		return nil
	}
	if err := check(m.FromWarehouseID, s.directory.WarehouseExists, "warehouse"); err != nil {
		return err
	}
	if err := check(m.ToWarehouseID, s.directory.WarehouseExists, "warehouse"); err != nil {
		return err
	}
	if err := check(m.FromMachineID, s.directory.MachineExists, "machine"); err != nil {
		return err
	}
	return check(m.ToMachineID, s.directory.MachineExists, "machine")
}

// applyStock applies the movement's per-kind stock deltas through st, which
// is bound to the movement's own transaction. Transfer legs lock in a
// deterministic order, warehouse rows before machine rows and same-type
// rows lower location id first, the same order the stock composites use.
func applyStock(ctx context.Context, st stock.TxRepository, m Movement) error {
	for _, it := range m.Items {
		var err error
		switch m.MovementType {
		case KindReceipt:
			err = addTo(ctx, st, m, it)
		case KindIssue, KindSale:
			err = removeFrom(ctx, st, m, it)
		case KindTransfer:
			err = transferStock(ctx, st, m, it)
		case KindAdjustment:
			err = adjustAt(ctx, st, m, it)
		case KindLoadMachine:
			if m.FromWarehouseID != nil {
				if err = stock.RemoveWarehouse(ctx, st, *m.FromWarehouseID, it.ItemID, it.Quantity); err != nil {
					return err
				}
			}
			err = stock.AddMachine(ctx, st, *m.ToMachineID, it.ItemID, it.Quantity)
		case KindUnloadMachine:
			if m.ToWarehouseID != nil {
				if err = stock.AddWarehouse(ctx, st, *m.ToWarehouseID, it.ItemID, it.Quantity); err != nil {
					return err
				}
			}
			err = stock.RemoveMachine(ctx, st, *m.FromMachineID, it.ItemID, it.Quantity)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func addTo(ctx context.Context, st stock.TxRepository, m Movement, it Item) error {
	if m.ToWarehouseID != nil {
		return stock.AddWarehouse(ctx, st, *m.ToWarehouseID, it.ItemID, it.Quantity)
	}
	return stock.AddMachine(ctx, st, *m.ToMachineID, it.ItemID, it.Quantity)
}

func removeFrom(ctx context.Context, st stock.TxRepository, m Movement, it Item) error {
	if m.FromWarehouseID != nil {
		return stock.RemoveWarehouse(ctx, st, *m.FromWarehouseID, it.ItemID, it.Quantity)
	}
	return stock.RemoveMachine(ctx, st, *m.FromMachineID, it.ItemID, it.Quantity)
}

type transferLeg struct {
	machine bool
	id      int64
	run     func() error
}

func (a transferLeg) locksBefore(b transferLeg) bool {
	if a.machine != b.machine {
		return !a.machine
	}
	return a.id < b.id
}

// transferStock runs the remove and add legs of a transfer in lock order
// rather than source-first, so opposite-direction transfers over the same
// row pair cannot deadlock.
func transferStock(ctx context.Context, st stock.TxRepository, m Movement, it Item) error {
	var source transferLeg
	if m.FromWarehouseID != nil {
		id := *m.FromWarehouseID
		source = transferLeg{id: id, run: func() error {
			return stock.RemoveWarehouse(ctx, st, id, it.ItemID, it.Quantity)
		}}
	} else {
		id := *m.FromMachineID
		source = transferLeg{machine: true, id: id, run: func() error {
			return stock.RemoveMachine(ctx, st, id, it.ItemID, it.Quantity)
		}}
	}

	var dest transferLeg
	if m.ToWarehouseID != nil {
		id := *m.ToWarehouseID
		dest = transferLeg{id: id, run: func() error {
			return stock.AddWarehouse(ctx, st, id, it.ItemID, it.Quantity)
		}}
	} else {
		id := *m.ToMachineID
		dest = transferLeg{machine: true, id: id, run: func() error {
			return stock.AddMachine(ctx, st, id, it.ItemID, it.Quantity)
		}}
	}

	first, second := source, dest
	if dest.locksBefore(source) {
		first, second = dest, source
	}
	if err := first.run(); err != nil {
		return err
	}
	return second.run()
}

func adjustAt(ctx context.Context, st stock.TxRepository, m Movement, it Item) error {
	switch {
	case m.FromWarehouseID != nil:
		return stock.SetWarehouseQuantity(ctx, st, *m.FromWarehouseID, it.ItemID, it.Quantity)
	case m.ToWarehouseID != nil:
		return stock.SetWarehouseQuantity(ctx, st, *m.ToWarehouseID, it.ItemID, it.Quantity)
	case m.FromMachineID != nil:
		return stock.SetMachineQuantity(ctx, st, *m.FromMachineID, it.ItemID, it.Quantity)
	default:
		return stock.SetMachineQuantity(ctx, st, *m.ToMachineID, it.ItemID, it.Quantity)
	}
}

// postPurchase inserts the offsetting confirmed expense on the destination
// owner's default account. Owners without an account are skipped silently.
func (s *Service) postPurchase(ctx context.Context, m Movement) error {
	ownerID, ok, err := s.destinationOwner(ctx, m)
	if err != nil {
		return err
	}
	if !ok {
		s.logger.Info("purchase posting skipped, destination has no owner",
			slog.Int64("movement_id", m.ID))
		return nil
	}
	accountID, ok, err := s.ledger.FirstAccountOfOwner(ctx, ownerID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	categoryID, err := s.statuses.EnsureCategory(ctx, PurchaseCategory, ledger.TypeExpense)
	if err != nil {
		return err
	}
	date := m.DocumentDate
	if date.IsZero() {
		date = time.Now().UTC()
	}
	ref := fmt.Sprintf("IM-%d", m.ID)
	_, err = s.ledger.CreateTransaction(ctx, ledger.Transaction{
		Date:              date,
		AccountID:         accountID,
		CategoryID:        categoryID,
		CounterpartyID:    m.CounterpartyID,
		TransactionTypeID: ledger.TypeExpense,
		Amount:            m.TotalAmount.Neg(),
		MachineID:         m.ToMachineID,
		ReferenceNumber:   &ref,
		IsConfirmed:       true,
		CreatedBy:         m.ExecutedBy,
	})
	return err
}

func (s *Service) destinationOwner(ctx context.Context, m Movement) (int64, bool, error) {
	if m.ToWarehouseID != nil {
		ownerID, err := s.directory.WarehouseOwner(ctx, *m.ToWarehouseID)
		if err != nil {
			return 0, false, err
		}
		return ownerID, ownerID > 0, nil
	}
	if m.ToMachineID != nil {
		ownerID, err := s.directory.OwnerOfMachine(ctx, *m.ToMachineID)
		if err != nil {
			return 0, false, err
		}
		if ownerID == nil {
			return 0, false, nil
		}
		return *ownerID, true, nil
	}
	return 0, false, nil
}
