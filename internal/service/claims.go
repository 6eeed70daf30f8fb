// claims.go — административные операции над заявками: выборка с фильтром
// и итогами, поиск по протоколу, двухшаговое удаление.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Nicolas1xx/Rivilog-LOG/internal/blobstore"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/domain/claimfilter"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/domain/model"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/repository"
)

var claimsDeletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rv_claims_deleted_total",
	Help: "Количество удалённых заявок по результату удаления файлов",
}, []string{"result"})

// ClaimService — административный доступ к заявкам.
type ClaimService struct {
	repo   repository.ClaimRepository
	blobs  blobstore.Store
	cache  *ClaimCache
	logger *slog.Logger
}

// NewClaimService создаёт сервис заявок.
func NewClaimService(
	repo repository.ClaimRepository,
	blobs blobstore.Store,
	cache *ClaimCache,
	logger *slog.Logger,
) *ClaimService {
	return &ClaimService{
		repo:   repo,
		blobs:  blobs,
		cache:  cache,
		logger: logger.With(slog.String("component", "claims")),
	}
}

// List возвращает заявки, удовлетворяющие критериям, с суммой и количеством.
// Порядок — от новых к старым.
func (s *ClaimService) List(ctx context.Context, c claimfilter.Criteria) (claimfilter.Result, error) {
	claims, err := s.repo.List(ctx)
	if err != nil {
		return claimfilter.Result{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return claimfilter.Aggregate(claims, c), nil
}

// GetByProtocol возвращает заявку по протоколу.
func (s *ClaimService) GetByProtocol(ctx context.Context, protocol string) (*model.Claim, error) {
	if claim, ok := s.cache.Get(protocol); ok {
		return claim, nil
	}

	claim, err := s.repo.GetByProtocol(ctx, protocol)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: протокол %s", ErrNotFound, protocol)
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	s.cache.Set(claim)
	return claim, nil
}

// Delete удаляет заявку, затем её файлы.
//
// Сначала удаляется запись: ссылка на несуществующий файл хуже, чем файл
// без заявки, который подберёт очистка осиротевших файлов.
// Если файлы удалить не удалось, возвращается удалённая заявка и
// *PartialDeleteError со списком оставшихся путей.
func (s *ClaimService) Delete(ctx context.Context, id string) (*model.Claim, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: заявка %s", ErrNotFound, id)
	}

	claim, err := s.repo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: заявка %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if claim.Protocol != "" {
		s.cache.Delete(claim.Protocol)
	}

	paths, foreign := s.evidencePaths(claim)
	var removeErr error
	if len(paths) > 0 {
		removeErr = s.blobs.Remove(ctx, paths)
	}

	if removeErr != nil || len(foreign) > 0 {
		orphaned := foreign
		if removeErr != nil {
			orphaned = append(append([]string{}, paths...), foreign...)
		} else {
			removeErr = errors.New("ссылки вне хранилища")
		}
		claimsDeletedTotal.WithLabelValues("partial").Inc()
		s.logger.Warn("Заявка удалена, файлы остались в хранилище",
			slog.String("claim_id", claim.ID),
			slog.String("protocol", claim.Protocol),
			slog.Any("orphaned", orphaned),
			slog.String("error", removeErr.Error()),
		)
		return claim, &PartialDeleteError{
			ClaimID:  claim.ID,
			Protocol: claim.Protocol,
			Orphaned: orphaned,
			Err:      removeErr,
		}
	}

	claimsDeletedTotal.WithLabelValues("ok").Inc()
	s.logger.Info("Заявка удалена",
		slog.String("claim_id", claim.ID),
		slog.String("protocol", claim.Protocol),
		slog.Int("files", len(paths)),
	)
	return claim, nil
}

// evidencePaths переводит ссылки заявки в пути хранилища. Ссылки,
// которые не удаётся сопоставить с хранилищем, возвращаются отдельно.
func (s *ClaimService) evidencePaths(claim *model.Claim) (paths, foreign []string) {
	for _, u := range claim.Files().URLs() {
		if p, ok := s.blobs.PathFromURL(u); ok {
			paths = append(paths, p)
		} else {
			foreign = append(foreign, u)
		}
	}
	return paths, foreign
}
