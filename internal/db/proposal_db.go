package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rajivgeraev/barter-api/internal/models"
	"github.com/rajivgeraev/barter-api/internal/repository"
)

// proposalSelect читает предложение вместе с обоими объявлениями
var proposalSelect = `
	SELECT p.id, p.ad_sender_id, p.ad_receiver_id, p.comment, p.status, p.created_at, p.decided_at,
		` + prefixed("s") + `,
		` + prefixed("r") + `
	FROM exchange_proposals p
	JOIN ads s ON s.id = p.ad_sender_id
	JOIN ads r ON r.id = p.ad_receiver_id`

func prefixed(alias string) string {
	cols := strings.Split(adColumns, ", ")
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

func scanProposal(row pgx.Row) (*models.ExchangeProposal, error) {
	var p models.ExchangeProposal
	var status string
	var s, r models.Ad
	var sCat, sCond, rCat, rCond string

	err := row.Scan(
		&p.ID, &p.AdSenderID, &p.AdReceiverID, &p.Comment, &status, &p.CreatedAt, &p.DecidedAt,
		&s.ID, &s.UserID, &s.Title, &s.Description, &s.ImageURL, &sCat, &sCond, &s.IsActive, &s.CreatedAt, &s.UpdatedAt,
		&r.ID, &r.UserID, &r.Title, &r.Description, &r.ImageURL, &rCat, &rCond, &r.IsActive, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Status = models.ProposalStatus(status)
	s.Category, s.Condition = models.Category(sCat), models.Condition(sCond)
	r.Category, r.Condition = models.Category(rCat), models.Condition(rCond)
	p.AdSender, p.AdReceiver = &s, &r
	p.SenderUserID, p.ReceiverUserID = s.UserID, r.UserID
	return &p, nil
}

// CreateProposal вставляет предложение в статусе pending.
// Повтор пары объявлений дает repository.ErrDuplicate.
func (s *Store) CreateProposal(ctx context.Context, p *models.ExchangeProposal) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := s.q.Exec(ctx, `
		INSERT INTO exchange_proposals (id, ad_sender_id, ad_receiver_id, comment, status)
		VALUES ($1, $2, $3, $4, $5)
	`, p.ID, p.AdSenderID, p.AdReceiverID, p.Comment, string(models.StatusPending))
	if err != nil {
		return fmt.Errorf("ошибка при создании предложения: %w", translate(err))
	}

	created, err := s.GetProposal(ctx, p.ID)
	if err != nil {
		return err
	}
	*p = *created
	return nil
}

func (s *Store) GetProposal(ctx context.Context, id uuid.UUID) (*models.ExchangeProposal, error) {
	p, err := scanProposal(s.q.QueryRow(ctx, proposalSelect+` WHERE p.id = $1`, id))
	if err != nil {
		return nil, translate(err)
	}
	return p, nil
}

// GetProposalForUpdate блокирует только строку предложения; объявления блокирует LockAds
func (s *Store) GetProposalForUpdate(ctx context.Context, id uuid.UUID) (*models.ExchangeProposal, error) {
	p, err := scanProposal(s.q.QueryRow(ctx, proposalSelect+` WHERE p.id = $1 FOR UPDATE OF p`, id))
	if err != nil {
		return nil, translate(err)
	}
	return p, nil
}

func (s *Store) ProposalExists(ctx context.Context, senderAdID, receiverAdID uuid.UUID) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM exchange_proposals WHERE ad_sender_id = $1 AND ad_receiver_id = $2
		)
	`, senderAdID, receiverAdID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка при проверке предложения: %w", err)
	}
	return exists, nil
}

// SetProposalStatus меняет статус; для итоговых статусов фиксирует decided_at
func (s *Store) SetProposalStatus(ctx context.Context, id uuid.UUID, status models.ProposalStatus) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE exchange_proposals
		SET status = $1,
			decided_at = CASE WHEN $2 THEN NOW() ELSE decided_at END
		WHERE id = $3
	`, string(status), status.Terminal(), id)
	if err != nil {
		return fmt.Errorf("ошибка при обновлении статуса предложения: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) ListProposals(ctx context.Context, filter models.ProposalFilter) ([]models.ExchangeProposal, error) {
	args := []any{filter.UserID}
	var where []string

	switch filter.Box {
	case models.BoxSent:
		where = append(where, "s.user_id = $1")
	case models.BoxReceived:
		where = append(where, "r.user_id = $1")
	default:
		where = append(where, "(s.user_id = $1 OR r.user_id = $1)")
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		where = append(where, fmt.Sprintf("p.status = $%d", len(args)))
	}

	rows, err := s.q.Query(ctx,
		proposalSelect+` WHERE `+strings.Join(where, " AND ")+` ORDER BY p.created_at DESC, p.id DESC`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении предложений: %w", err)
	}
	defer rows.Close()

	var out []models.ExchangeProposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка при сканировании предложения: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Store) CountProposals(ctx context.Context) (int, error) {
	var n int
	if err := s.q.QueryRow(ctx, `SELECT COUNT(*) FROM exchange_proposals`).Scan(&n); err != nil {
		return 0, fmt.Errorf("ошибка при подсчете предложений: %w", err)
	}
	return n, nil
}
