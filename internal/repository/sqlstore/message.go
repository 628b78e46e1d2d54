package sqlstore

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
	"github.com/BakiChantier/chantier-direct-sub000/internal/ports"
)

var _ ports.MessageRepository = (*messageRepository)(nil)

var messageColumns = []string{"m.id", "m.sender_id", "m.recipient_id", "m.project_id", "m.body", "m.read_at", "m.created_at"}

const counterpartExpr = "CASE WHEN m.sender_id = ? THEN m.recipient_id ELSE m.sender_id END"

type messageRepository struct {
	store
}

// NewMessageRepository creates message repository / Crée le repository des messages
func NewMessageRepository(dbtx ports.DBTX, d Dialect) ports.MessageRepository {
	return &messageRepository{store: newStore(dbtx, d)}
}

func scanMessage(row scanner, extra ...any) (*domain.Message, error) {
	m := &domain.Message{}
	dest := append([]any{&m.ID, &m.SenderID, &m.RecipientID, &m.ProjectID, &m.Body, &m.ReadAt, &m.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *messageRepository) Create(ctx context.Context, m *domain.Message) (*domain.Message, error) {
	now := time.Now().UTC()
	id, err := r.insert(ctx, r.qb().Insert("messages").
		Columns("sender_id", "recipient_id", "project_id", "body", "created_at").
		Values(m.SenderID, m.RecipientID, m.ProjectID, m.Body, now))
	if err != nil {
		return nil, err
	}
	out := *m
	out.ID = id
	out.CreatedAt = now
	out.ReadAt = nil
	return &out, nil
}

func pairClause(a, b int64) sq.Or {
	return sq.Or{
		sq.Eq{"m.sender_id": a, "m.recipient_id": b},
		sq.Eq{"m.sender_id": b, "m.recipient_id": a},
	}
}

// Thread returns messages between two users, oldest first / Fil entre deux utilisateurs
func (r *messageRepository) Thread(ctx context.Context, userID, otherID int64, projectID *int64, page domain.Page) ([]*domain.Message, int, error) {
	where := sq.And{pairClause(userID, otherID)}
	if projectID != nil {
		where = append(where, sq.Eq{"m.project_id": *projectID})
	}

	total, err := r.count(ctx, r.qb().Select("COUNT(*)").From("messages m").Where(where))
	if err != nil {
		return nil, 0, err
	}

	b := r.qb().Select(messageColumns...).From("messages m").Where(where).OrderBy("m.created_at", "m.id")
	if page.Size > 0 {
		b = b.Limit(uint64(page.Size)).Offset(uint64(page.Offset()))
	}
	rows, err := r.query(ctx, b)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	msgs := []*domain.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, 0, r.handle(err)
		}
		msgs = append(msgs, m)
	}
	return msgs, total, r.handle(rows.Err())
}

// Conversations returns the latest message per counterpart / Dernier message par interlocuteur
func (r *messageRepository) Conversations(ctx context.Context, userID int64) ([]domain.Conversation, error) {
	latest := r.qb().Select("MAX(m.id)").From("messages m").
		Where(sq.Or{sq.Eq{"m.sender_id": userID}, sq.Eq{"m.recipient_id": userID}}).
		GroupBy(counterpartExpr)
	latestSQL, latestArgs, err := latest.PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return nil, err
	}
	// GROUP BY carries its own placeholder / Le GROUP BY porte son propre paramètre
	latestArgs = append(latestArgs, userID)

	rows, err := r.query(ctx, r.qb().Select(messageColumns...).
		Column(sq.Expr(counterpartExpr, userID)).
		Column("COALESCE(u.company_name, '')").
		From("messages m").
		LeftJoin("users u ON u.id = "+counterpartExpr, userID).
		Where("m.id IN ("+latestSQL+")", latestArgs...).
		OrderBy("m.id DESC"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	convs := []domain.Conversation{}
	for rows.Next() {
		var c domain.Conversation
		m, err := scanMessage(rows, &c.CounterpartID, &c.CounterpartCompany)
		if err != nil {
			return nil, r.handle(err)
		}
		c.LastMessage = *m
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handle(err)
	}

	unread, err := r.unreadBySender(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range convs {
		convs[i].UnreadCount = unread[convs[i].CounterpartID]
	}
	return convs, nil
}

func (r *messageRepository) unreadBySender(ctx context.Context, recipientID int64) (map[int64]int, error) {
	rows, err := r.query(ctx, r.qb().Select("sender_id", "COUNT(*)").From("messages").
		Where(sq.Eq{"recipient_id": recipientID, "read_at": nil}).
		GroupBy("sender_id"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]int)
	for rows.Next() {
		var sender int64
		var n int
		if err := rows.Scan(&sender, &n); err != nil {
			return nil, r.handle(err)
		}
		out[sender] = n
	}
	return out, r.handle(rows.Err())
}

// MarkRead marks messages from sender to recipient read / Marque les messages comme lus
func (r *messageRepository) MarkRead(ctx context.Context, recipientID, senderID int64, at time.Time) (int64, error) {
	return r.exec(ctx, r.qb().Update("messages").
		Set("read_at", at.UTC()).
		Where(sq.Eq{"recipient_id": recipientID, "sender_id": senderID, "read_at": nil}))
}

// UnreadCount counts unread messages of a recipient / Compte les messages non lus
func (r *messageRepository) UnreadCount(ctx context.Context, recipientID int64) (int, error) {
	return r.count(ctx, r.qb().Select("COUNT(*)").From("messages").
		Where(sq.Eq{"recipient_id": recipientID, "read_at": nil}))
}
