package admin

import (
	"context"
	"errors"

	"github.com/ledgervault/ledgervault/internal/account"
	"github.com/ledgervault/ledgervault/internal/ledger"
)

const (
	defaultPage      = 1
	defaultPageSize  = 10
	detailTxLimit    = 10
	dashboardTxLimit = 5
)

// Service provides the admin oversight surface: user search, device
// verification and dashboard aggregation.
type Service struct {
	repo     account.Repository
	accounts *account.Service
	entries  ledger.Store
}

// NewService builds the admin service.
func NewService(repo account.Repository, accounts *account.Service, entries ledger.Store) *Service {
	return &Service{repo: repo, accounts: accounts, entries: entries}
}

// UsersPage is one slice of the user listing with pagination metadata.
type UsersPage struct {
	Users    []account.User
	Page     int
	PageSize int
	Total    int
	Pages    int
}

// RecentTransaction is a ledger entry annotated with the owning user, for the
// dashboard feed.
type RecentTransaction struct {
	ledger.Transaction
	UserFirstName string
	UserLastName  string
	UserEmail     string
}

// DashboardStats aggregates account and ledger figures.
type DashboardStats struct {
	TotalUsers         int
	ActiveUsers        int
	PendingDevices     int
	TotalBalance       int64
	RecentTransactions []RecentTransaction
}

// ListUsers returns a page of users matching the optional search text,
// newest first. Non-positive paging values fall back to the defaults.
func (s *Service) ListUsers(ctx context.Context, page, pageSize int, search string) (UsersPage, error) {
	if page < 1 {
		page = defaultPage
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	users, total, err := s.repo.List(ctx, search, (page-1)*pageSize, pageSize)
	if err != nil {
		return UsersPage{}, err
	}

	return UsersPage{
		Users:    users,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
		Pages:    (total + pageSize - 1) / pageSize,
	}, nil
}

// UserDetail returns one user and their most recent ledger entries.
func (s *Service) UserDetail(ctx context.Context, userID string) (account.User, []ledger.Transaction, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return account.User{}, nil, err
	}
	entries, _, err := s.entries.ListByUser(ctx, userID, 0, detailTxLimit)
	if err != nil {
		return account.User{}, nil, err
	}
	return user, entries, nil
}

// VerifyDevice grants trust to a user's device.
func (s *Service) VerifyDevice(ctx context.Context, userID, deviceID string) (account.User, error) {
	return s.accounts.VerifyDevice(ctx, userID, deviceID)
}

// Stats aggregates dashboard figures and resolves owners of the most recent
// ledger entries.
func (s *Service) Stats(ctx context.Context) (DashboardStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return DashboardStats{}, err
	}

	recent, err := s.entries.Recent(ctx, dashboardTxLimit)
	if err != nil {
		return DashboardStats{}, err
	}

	annotated := make([]RecentTransaction, 0, len(recent))
	for _, entry := range recent {
		rt := RecentTransaction{Transaction: entry}
		user, err := s.repo.FindByID(ctx, entry.UserID)
		if err != nil && !errors.Is(err, account.ErrNotFound) {
			return DashboardStats{}, err
		}
		if err == nil {
			rt.UserFirstName = user.FirstName
			rt.UserLastName = user.LastName
			rt.UserEmail = user.Email
		}
		annotated = append(annotated, rt)
	}

	return DashboardStats{
		TotalUsers:         stats.TotalUsers,
		ActiveUsers:        stats.ActiveUsers,
		PendingDevices:     stats.PendingDevices,
		TotalBalance:       stats.TotalBalance,
		RecentTransactions: annotated,
	}, nil
}
