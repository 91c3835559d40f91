package inmemdb

import (
	"context"
	"sort"

	"github.com/evolvere-edu/evolvere/core/account"
)

type accountRepository struct {
	db *DB
}

var _ account.Repository = (*accountRepository)(nil)

func NewAccountRepository(db *DB) *accountRepository {
	return &accountRepository{db: db}
}

func (repo *accountRepository) CreateRequest(ctx context.Context, req account.Request) (account.Request, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, existing := range repo.db.requests {
		if existing.ProfessionalID == req.ProfessionalID {
			return account.Request{}, account.ErrRequestExists
		}
	}

	repo.db.requestPK++
	req.ID = repo.db.requestPK
	repo.db.requests[req.ID] = &req
	return req, nil
}

func (repo *accountRepository) GetRequestByID(ctx context.Context, id int) (account.Request, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if req, ok := repo.db.requests[id]; ok {
		return *req, nil
	}
	return account.Request{}, account.ErrNotFound
}

func (repo *accountRepository) GetRequestByProfessionalID(ctx context.Context, professionalID int) (account.Request, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, req := range repo.db.requests {
		if req.ProfessionalID == professionalID {
			return *req, nil
		}
	}
	return account.Request{}, account.ErrNotFound
}

func (repo *accountRepository) QueryPendingRequests(ctx context.Context) ([]account.Request, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	reqs := make([]account.Request, 0)
	for _, req := range repo.db.requests {
		if !req.Approved {
			reqs = append(reqs, *req)
		}
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].CreatedAt.Before(reqs[j].CreatedAt) })
	return reqs, nil
}

func (repo *accountRepository) ApproveRequest(ctx context.Context, id int) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	req, ok := repo.db.requests[id]
	if !ok {
		return account.ErrNotFound
	}
	req.Approved = true
	return nil
}

func (repo *accountRepository) DeleteRequest(ctx context.Context, id int) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.requests[id]; !ok {
		return account.ErrNotFound
	}
	delete(repo.db.requests, id)
	return nil
}
