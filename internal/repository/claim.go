package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Nicolas1xx/Rivilog-LOG/internal/domain/model"
)

// ClaimRepository — доступ к таблице pedagios.
type ClaimRepository interface {
	// Insert сохраняет новую заявку и заполняет CreatedAt.
	// Повтор протокола возвращает ErrConflict.
	Insert(ctx context.Context, c *model.Claim) error
	// List возвращает все заявки, новые первыми.
	List(ctx context.Context) ([]*model.Claim, error)
	// GetByID возвращает заявку по UUID.
	GetByID(ctx context.Context, id string) (*model.Claim, error)
	// GetByProtocol возвращает заявку по протоколу.
	GetByProtocol(ctx context.Context, protocol string) (*model.Claim, error)
	// Delete удаляет заявку и возвращает удалённую запись.
	Delete(ctx context.Context, id string) (*model.Claim, error)
}

type claimRepo struct {
	db DBTX
}

// NewClaimRepository создаёт репозиторий заявок.
func NewClaimRepository(db DBTX) ClaimRepository {
	return &claimRepo{db: db}
}

// Сумма хранится в NUMERIC(12,2) и передаётся в сентаво.
const claimColumns = `
	id, protocolo, nome_motorista, data_viagem, placa, operacao,
	(valor * 100)::bigint, telefone, email,
	url_comprovante, url_comprovantes, url_extrato, created_at`

func (r *claimRepo) Insert(ctx context.Context, c *model.Claim) error {
	query := `
		INSERT INTO pedagios (id, protocolo, nome_motorista, data_viagem, placa, operacao,
			valor, telefone, email, url_comprovante, url_comprovantes, url_extrato)
		VALUES ($1, $2, $3, $4, $5, $6, $7::bigint / 100.0, $8, $9, $10, $11, $12)
		RETURNING created_at`

	single, multiple, statement := evidenceColumns(c.Evidence)

	var amount *int64
	if c.Amount != nil {
		v := int64(*c.Amount)
		amount = &v
	}

	err := r.db.QueryRow(ctx, query,
		c.ID, nullString(c.Protocol), c.DriverName, nullDate(c.TripDate), c.Plate,
		nullString(string(c.Operation)), amount, c.Phone, c.Email,
		single, multiple, statement,
	).Scan(&c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: протокол %s уже зарегистрирован", ErrConflict, c.Protocol)
		}
		return fmt.Errorf("ошибка сохранения заявки: %w", err)
	}
	return nil
}

func (r *claimRepo) List(ctx context.Context) ([]*model.Claim, error) {
	query := `SELECT ` + claimColumns + `
		FROM pedagios
		ORDER BY created_at DESC, id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка заявок: %w", err)
	}
	defer rows.Close()

	result := make([]*model.Claim, 0)
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования заявки: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *claimRepo) GetByID(ctx context.Context, id string) (*model.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM pedagios WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *claimRepo) GetByProtocol(ctx context.Context, protocol string) (*model.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM pedagios WHERE protocolo = $1`
	return r.getOne(ctx, query, protocol)
}

func (r *claimRepo) Delete(ctx context.Context, id string) (*model.Claim, error) {
	query := `DELETE FROM pedagios WHERE id = $1 RETURNING ` + claimColumns
	return r.getOne(ctx, query, id)
}

func (r *claimRepo) getOne(ctx context.Context, query string, arg any) (*model.Claim, error) {
	c, err := scanClaim(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения заявки: %w", err)
	}
	return c, nil
}

// scanClaim читает строку в порядке claimColumns.
func scanClaim(row pgx.Row) (*model.Claim, error) {
	var (
		c            model.Claim
		protocol     *string
		tripDate     *time.Time
		operation    *string
		amount       *int64
		receipt      *string
		receipts     []string
		statementURL *string
	)

	if err := row.Scan(
		&c.ID, &protocol, &c.DriverName, &tripDate, &c.Plate, &operation,
		&amount, &c.Phone, &c.Email,
		&receipt, &receipts, &statementURL, &c.CreatedAt,
	); err != nil {
		return nil, err
	}

	if protocol != nil {
		c.Protocol = *protocol
	}
	if tripDate != nil {
		c.TripDate = *tripDate
	}
	if operation != nil {
		c.Operation = model.Operation(*operation)
	}
	if amount != nil {
		m := model.Money(*amount)
		c.Amount = &m
	}

	statement := ""
	if statementURL != nil {
		statement = *statementURL
	}
	if len(receipts) > 0 {
		c.Evidence = model.MultipleEvidence{Receipts: receipts, Statement: statement}
	} else {
		single := model.SingleEvidence{Statement: statement}
		if receipt != nil {
			single.Receipt = *receipt
		}
		c.Evidence = single
	}

	return &c, nil
}

// evidenceColumns раскладывает набор вложений по колонкам
// url_comprovante, url_comprovantes, url_extrato.
func evidenceColumns(set model.EvidenceSet) (single *string, multiple []string, statement *string) {
	switch e := set.(type) {
	case model.SingleEvidence:
		return nullString(e.Receipt), nil, nullString(e.Statement)
	case model.MultipleEvidence:
		return nil, e.Receipts, nullString(e.Statement)
	default:
		return nil, nil, nil
	}
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}
