package memory

import (
	"context"

	"github.com/mehrbod2002/roivault/internal/models"
	"github.com/mehrbod2002/roivault/internal/repository"
	"github.com/shopspring/decimal"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type transactionRepo struct{ s *Store }

func (r *transactionRepo) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	defer r.s.lock(ctx)()

	tx.ID = primitive.NewObjectID()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now()
	}
	r.s.transactions[tx.ID] = *tx
	return nil
}

func (r *transactionRepo) GetTransactionByID(ctx context.Context, id primitive.ObjectID) (*models.Transaction, error) {
	defer r.s.lock(ctx)()

	tx, ok := r.s.transactions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &tx, nil
}

func (r *transactionRepo) GetTransactionsByUserID(ctx context.Context, userID primitive.ObjectID, pageNum, limit int) ([]*models.Transaction, error) {
	defer r.s.lock(ctx)()

	all := reverse(collect(r.s.transactions, func(tx *models.Transaction) bool { return tx.UserID == userID }))
	return paginate(all, pageNum, limit), nil
}

func (r *transactionRepo) SumSuccessful(ctx context.Context, userID primitive.ObjectID) (decimal.Decimal, error) {
	defer r.s.lock(ctx)()

	sum := decimal.Zero
	for _, tx := range r.s.transactions {
		if tx.UserID == userID && tx.Status == models.TransactionStatusSuccess {
			sum = sum.Add(tx.Amount)
		}
	}
	return sum, nil
}

type withdrawalRepo struct{ s *Store }

func (r *withdrawalRepo) SaveWithdrawal(ctx context.Context, w *models.Withdrawal) error {
	defer r.s.lock(ctx)()

	w.ID = primitive.NewObjectID()
	w.CreatedAt = now()
	r.s.withdrawals[w.ID] = *w
	return nil
}

func (r *withdrawalRepo) GetWithdrawalByID(ctx context.Context, id primitive.ObjectID) (*models.Withdrawal, error) {
	defer r.s.lock(ctx)()

	w, ok := r.s.withdrawals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &w, nil
}

func (r *withdrawalRepo) GetWithdrawalsByUserID(ctx context.Context, userID primitive.ObjectID) ([]*models.Withdrawal, error) {
	defer r.s.lock(ctx)()

	return reverse(collect(r.s.withdrawals, func(w *models.Withdrawal) bool { return w.UserID == userID })), nil
}

func (r *withdrawalRepo) GetWithdrawalsByStatus(ctx context.Context, status models.WithdrawalStatus) ([]*models.Withdrawal, error) {
	defer r.s.lock(ctx)()

	return reverse(collect(r.s.withdrawals, func(w *models.Withdrawal) bool { return w.Status == status })), nil
}

func (r *withdrawalRepo) Transition(ctx context.Context, w *models.Withdrawal, from models.WithdrawalStatus) error {
	defer r.s.lock(ctx)()

	stored, ok := r.s.withdrawals[w.ID]
	if !ok || stored.Status != from {
		return repository.ErrConflict
	}
	stored.Status = w.Status
	stored.Reason = w.Reason
	stored.ProcessedAt = w.ProcessedAt
	r.s.withdrawals[w.ID] = stored
	return nil
}

type transferRepo struct{ s *Store }

func (r *transferRepo) SaveTransfer(ctx context.Context, t *models.Transfer) error {
	defer r.s.lock(ctx)()

	t.ID = primitive.NewObjectID()
	t.CreatedAt = now()
	r.s.transfers[t.ID] = *t
	return nil
}

func (r *transferRepo) GetTransferByID(ctx context.Context, id primitive.ObjectID) (*models.Transfer, error) {
	defer r.s.lock(ctx)()

	t, ok := r.s.transfers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (r *transferRepo) GetTransfersByUserID(ctx context.Context, userID primitive.ObjectID) ([]*models.Transfer, error) {
	defer r.s.lock(ctx)()

	return reverse(collect(r.s.transfers, func(t *models.Transfer) bool {
		return t.SenderID == userID || t.ReceiverID == userID
	})), nil
}

type settingRepo struct{ s *Store }

func (r *settingRepo) GetSetting(ctx context.Context) (*models.Setting, error) {
	defer r.s.lock(ctx)()

	if r.s.setting == nil {
		return nil, repository.ErrNotFound
	}
	cp := *r.s.setting
	return &cp, nil
}

func (r *settingRepo) SaveSetting(ctx context.Context, setting *models.Setting) error {
	defer r.s.lock(ctx)()

	if r.s.setting != nil {
		setting.ID = r.s.setting.ID
	} else {
		setting.ID = primitive.NewObjectID()
	}
	setting.UpdatedAt = now()
	cp := *setting
	r.s.setting = &cp
	return nil
}

type ticketRepo struct{ s *Store }

func (r *ticketRepo) SaveTicket(ctx context.Context, ticket *models.SupportTicket) error {
	defer r.s.lock(ctx)()

	ticket.ID = primitive.NewObjectID()
	t := now()
	ticket.CreatedAt = t
	ticket.UpdatedAt = t
	r.s.tickets[ticket.ID] = *ticket
	return nil
}

func (r *ticketRepo) GetTicketByID(ctx context.Context, id primitive.ObjectID) (*models.SupportTicket, error) {
	defer r.s.lock(ctx)()

	t, ok := r.s.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (r *ticketRepo) GetTicketsByUserID(ctx context.Context, userID primitive.ObjectID) ([]*models.SupportTicket, error) {
	defer r.s.lock(ctx)()

	return reverse(collect(r.s.tickets, func(t *models.SupportTicket) bool { return t.UserID == userID })), nil
}

func (r *ticketRepo) GetTickets(ctx context.Context, status models.SupportTicketStatus) ([]*models.SupportTicket, error) {
	defer r.s.lock(ctx)()

	return reverse(collect(r.s.tickets, func(t *models.SupportTicket) bool {
		return status == "" || t.Status == status
	})), nil
}

func (r *ticketRepo) Transition(ctx context.Context, ticket *models.SupportTicket, from models.SupportTicketStatus) error {
	defer r.s.lock(ctx)()

	stored, ok := r.s.tickets[ticket.ID]
	if !ok || stored.Status != from {
		return repository.ErrConflict
	}
	stored.Status = ticket.Status
	stored.AdminReply = ticket.AdminReply
	stored.UpdatedAt = now()
	ticket.UpdatedAt = stored.UpdatedAt
	r.s.tickets[ticket.ID] = stored
	return nil
}

type logRepo struct{ s *Store }

func (r *logRepo) SaveLog(ctx context.Context, log *models.LogEntry) error {
	defer r.s.lock(ctx)()

	log.ID = primitive.NewObjectID()
	log.Timestamp = now()
	r.s.logs[log.ID] = *log
	return nil
}

func (r *logRepo) GetAllLogs(ctx context.Context, pageNum, limit int) ([]*models.LogEntry, error) {
	defer r.s.lock(ctx)()

	return paginate(reverse(collect(r.s.logs, func(*models.LogEntry) bool { return true })), pageNum, limit), nil
}

func (r *logRepo) GetLogsByUserID(ctx context.Context, userID primitive.ObjectID, pageNum, limit int) ([]*models.LogEntry, error) {
	defer r.s.lock(ctx)()

	all := reverse(collect(r.s.logs, func(l *models.LogEntry) bool { return l.UserID == userID }))
	return paginate(all, pageNum, limit), nil
}
