package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Nicolas1xx/Rivilog-LOG/internal/domain/claimfilter"
	"github.com/Nicolas1xx/Rivilog-LOG/internal/domain/model"
)

func seedClaim(repo *fakeRepo, protocol string, ev model.EvidenceSet, amount model.Money, op model.Operation) *model.Claim {
	c := &model.Claim{
		ID:         uuid.NewString(),
		Protocol:   protocol,
		DriverName: "Motorista " + protocol,
		TripDate:   time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
		Plate:      "ABC1D23",
		Operation:  op,
		Amount:     &amount,
		Evidence:   ev,
	}
	repo.claims = append(repo.claims, c)
	return c
}

func newClaimEnv() (*ClaimService, *fakeRepo, *fakeStore) {
	repo := &fakeRepo{}
	store := newFakeStore()
	return NewClaimService(repo, store, NewClaimCache(10, time.Minute), testLogger()), repo, store
}

func TestClaimService_List(t *testing.T) {
	svc, repo, _ := newClaimEnv()
	seedClaim(repo, "RIV-2024-AAAAA", nil, 1050, model.OperationJT)
	seedClaim(repo, "RIV-2024-BBBBB", nil, 2000, model.OperationImile)
	seedClaim(repo, "RIV-2024-CCCCC", nil, 333, model.OperationJT)

	res, err := svc.List(context.Background(), claimfilter.Criteria{Operation: model.OperationJT})
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if res.Count != 2 || res.Total != 1383 {
		t.Errorf("Count = %d, Total = %d; ожидается 2, 1383", res.Count, res.Total)
	}

	res, _ = svc.List(context.Background(), claimfilter.Criteria{Query: "bbbbb", Operation: model.OperationAll})
	if res.Count != 1 || res.Claims[0].Protocol != "RIV-2024-BBBBB" {
		t.Errorf("поиск по протоколу: %+v", res)
	}

	repo.listErr = errors.New("db down")
	if _, err := svc.List(context.Background(), claimfilter.Criteria{}); !errors.Is(err, ErrPersistence) {
		t.Errorf("List() = %v, ожидается ErrPersistence", err)
	}
}

func TestClaimService_GetByProtocolCaches(t *testing.T) {
	svc, repo, _ := newClaimEnv()
	seedClaim(repo, "RIV-2024-AAAAA", nil, 100, model.OperationJT)

	c, err := svc.GetByProtocol(context.Background(), "RIV-2024-AAAAA")
	if err != nil || c.Protocol != "RIV-2024-AAAAA" {
		t.Fatalf("GetByProtocol() = %v, %v", c, err)
	}

	// Запись пропала из БД, но осталась в кэше
	repo.claims = nil
	if _, err := svc.GetByProtocol(context.Background(), "RIV-2024-AAAAA"); err != nil {
		t.Errorf("ожидается попадание в кэш, получено %v", err)
	}

	if _, err := svc.GetByProtocol(context.Background(), "RIV-2024-ZZZZZ"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByProtocol() = %v, ожидается ErrNotFound", err)
	}
}

func TestClaimService_Delete(t *testing.T) {
	svc, repo, store := newClaimEnv()
	store.put("foto-1-ABC1D23-aaaaaaaa.jpg", time.Now())
	store.put("foto-2-ABC1D23-bbbbbbbb.jpg", time.Now())
	store.put("pdf-1-ABC1D23-cccccccc.pdf", time.Now())
	c := seedClaim(repo, "RIV-2024-AAAAA", model.MultipleEvidence{
		Receipts:  []string{fakeBlobBase + "foto-1-ABC1D23-aaaaaaaa.jpg", fakeBlobBase + "foto-2-ABC1D23-bbbbbbbb.jpg"},
		Statement: fakeBlobBase + "pdf-1-ABC1D23-cccccccc.pdf",
	}, 100, model.OperationJT)

	// Прогреваем кэш, удаление должно его инвалидировать
	if _, err := svc.GetByProtocol(context.Background(), c.Protocol); err != nil {
		t.Fatal(err)
	}

	deleted, err := svc.Delete(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if deleted.ID != c.ID {
		t.Errorf("удалена заявка %s, ожидается %s", deleted.ID, c.ID)
	}
	if store.count() != 0 {
		t.Errorf("в хранилище осталось %d файлов", store.count())
	}
	if _, err := svc.GetByProtocol(context.Background(), c.Protocol); !errors.Is(err, ErrNotFound) {
		t.Errorf("после удаления GetByProtocol() = %v, ожидается ErrNotFound", err)
	}
}

func TestClaimService_DeletePartialFailure(t *testing.T) {
	svc, repo, store := newClaimEnv()
	store.put("pdf-1-ABC1D23-cccccccc.pdf", time.Now())
	store.removeErr = errors.New("AccessDenied")
	c := seedClaim(repo, "RIV-2024-AAAAA", model.SingleEvidence{
		Statement: fakeBlobBase + "pdf-1-ABC1D23-cccccccc.pdf",
	}, 100, model.OperationJT)

	deleted, err := svc.Delete(context.Background(), c.ID)
	var pde *PartialDeleteError
	if !errors.As(err, &pde) {
		t.Fatalf("Delete() = %v, ожидается PartialDeleteError", err)
	}
	if deleted == nil || deleted.ID != c.ID {
		t.Error("удалённая заявка должна возвращаться и при частичной ошибке")
	}
	if len(pde.Orphaned) != 1 || pde.Orphaned[0] != "pdf-1-ABC1D23-cccccccc.pdf" {
		t.Errorf("Orphaned = %v", pde.Orphaned)
	}
	if len(repo.claims) != 0 {
		t.Error("запись должна быть удалена")
	}
}

func TestClaimService_DeleteForeignURL(t *testing.T) {
	svc, repo, _ := newClaimEnv()
	foreign := "https://old-storage.example.com/foto.jpg"
	c := seedClaim(repo, "", model.SingleEvidence{Receipt: foreign}, 100, model.OperationJT)

	_, err := svc.Delete(context.Background(), c.ID)
	var pde *PartialDeleteError
	if !errors.As(err, &pde) || len(pde.Orphaned) != 1 || pde.Orphaned[0] != foreign {
		t.Fatalf("Delete() = %v, ожидается PartialDeleteError с внешней ссылкой", err)
	}
}

func TestClaimService_DeleteNotFound(t *testing.T) {
	svc, repo, _ := newClaimEnv()

	for _, id := range []string{"not-a-uuid", uuid.NewString()} {
		if _, err := svc.Delete(context.Background(), id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Delete(%q) = %v, ожидается ErrNotFound", id, err)
		}
	}

	repo.deleteErr = errors.New("db down")
	if _, err := svc.Delete(context.Background(), uuid.NewString()); !errors.Is(err, ErrPersistence) {
		t.Errorf("Delete() = %v, ожидается ErrPersistence", err)
	}
}
