// Package usertest provides an in-memory account store for service tests.
package usertest

import (
	"context"
	"database/sql"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/slava-lu/auth-app-backend/internal/role"
	"github.com/slava-lu/auth-app-backend/internal/user/entity"
	userrepo "github.com/slava-lu/auth-app-backend/internal/user/repo"
)

// Store mimics the account and role repositories. It has no InTx; each
// service test wraps it and uses Tx for rollback.
type Store struct {
	mu          sync.Mutex
	nextAccount int64
	nextUser    int64
	Accounts    map[int64]*entity.Account
	Users       map[int64]*entity.User
	UserRoles   map[int64]map[int64]bool
	Roles       []role.Role
}

func New() *Store {
	return &Store{
		Accounts:  map[int64]*entity.Account{},
		Users:     map[int64]*entity.User{},
		UserRoles: map[int64]map[int64]bool{},
		Roles:     slices.Clone(role.Builtin),
	}
}

type snapshot struct {
	nextAccount, nextUser int64
	accounts              map[int64]entity.Account
	users                 map[int64]entity.User
	userRoles             map[int64]map[int64]bool
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	sn := snapshot{
		nextAccount: s.nextAccount,
		nextUser:    s.nextUser,
		accounts:    map[int64]entity.Account{},
		users:       map[int64]entity.User{},
		userRoles:   map[int64]map[int64]bool{},
	}
	for id, a := range s.Accounts {
		sn.accounts[id] = *a
	}
	for id, u := range s.Users {
		sn.users[id] = *u
	}
	for id, r := range s.UserRoles {
		sn.userRoles[id] = maps.Clone(r)
	}
	return sn
}

func (s *Store) restore(sn snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextAccount, s.nextUser = sn.nextAccount, sn.nextUser
	s.Accounts = map[int64]*entity.Account{}
	for id, a := range sn.accounts {
		s.Accounts[id] = &a
	}
	s.Users = map[int64]*entity.User{}
	for id, u := range sn.users {
		s.Users[id] = &u
	}
	s.UserRoles = sn.userRoles
}

// Tx runs fn and undoes every write it made when it fails.
func (s *Store) Tx(fn func() error) error {
	sn := s.snapshot()
	if err := fn(); err != nil {
		s.restore(sn)
		return err
	}
	return nil
}

// Seed inserts an account with its user and returns both ids.
func (s *Store) Seed(a entity.Account, firstName, lastName string, roleIDs ...int64) (accountID, userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextAccount++
	s.nextUser++
	a.ID = s.nextAccount
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	s.Accounts[a.ID] = &a
	s.Users[s.nextUser] = &entity.User{ID: s.nextUser, AccountID: a.ID, FirstName: firstName, LastName: lastName}
	s.UserRoles[s.nextUser] = map[int64]bool{}
	for _, r := range roleIDs {
		s.UserRoles[s.nextUser][r] = true
	}
	return a.ID, s.nextUser
}

// Account returns a copy of the stored account.
func (s *Store) Account(id int64) entity.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.Accounts[id]
}

// Count returns the number of accounts.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Accounts)
}

func (s *Store) userOf(accountID int64) *entity.User {
	for _, u := range s.Users {
		if u.AccountID == accountID {
			return u
		}
	}
	return nil
}

func (s *Store) principal(a *entity.Account) *entity.Principal {
	p := &entity.Principal{Account: *a}
	if u := s.userOf(a.ID); u != nil {
		p.UserID = u.ID
	}
	return p
}

func (s *Store) find(match func(a *entity.Account) bool) (*entity.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := slices.Sorted(maps.Keys(s.Accounts))
	for _, id := range ids {
		if a := s.Accounts[id]; match(a) {
			return s.principal(a), nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *Store) GetPrincipal(_ context.Context, id int64) (*entity.Principal, error) {
	return s.find(func(a *entity.Account) bool { return a.ID == id })
}

func (s *Store) GetPrincipalByEmail(_ context.Context, email string) (*entity.Principal, error) {
	return s.find(func(a *entity.Account) bool { return strings.EqualFold(a.Email, email) })
}

func (s *Store) GetPrincipalByLogin(_ context.Context, email, mobile string) (*entity.Principal, error) {
	return s.find(func(a *entity.Account) bool {
		return (email != "" && strings.EqualFold(a.Email, email)) ||
			(mobile != "" && a.MobilePhone != nil && *a.MobilePhone == mobile)
	})
}

func (s *Store) GetPrincipalByTwoFaCode(_ context.Context, code string) (*entity.Principal, error) {
	return s.find(func(a *entity.Account) bool { return a.TwoFaCode != nil && *a.TwoFaCode == code })
}

func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := s.GetPrincipalByEmail(ctx, email)
	return err == nil, nil
}

func (s *Store) MobileExists(ctx context.Context, mobile string) (bool, error) {
	if mobile == "" {
		return false, nil
	}
	_, err := s.GetPrincipalByLogin(ctx, "", mobile)
	return err == nil, nil
}

func (s *Store) CreateAccount(ctx context.Context, in entity.NewAccount) (int64, int64, error) {
	if ok, _ := s.EmailExists(ctx, in.Email); ok {
		return 0, 0, userrepo.ErrDuplicate
	}
	if in.MobilePhone != nil {
		if ok, _ := s.MobileExists(ctx, *in.MobilePhone); ok {
			return 0, 0, userrepo.ErrDuplicate
		}
	}
	now := time.Now()
	provider := in.Provider
	a, u := s.Seed(entity.Account{
		Email:                 in.Email,
		MobilePhone:           in.MobilePhone,
		PasswordHash:          in.PasswordHash,
		Salt:                  in.Salt,
		HashCheck:             in.HashCheck,
		EmailVerificationCode: in.EmailVerificationCode,
		IsCreatedLocally:      in.IsCreatedLocally,
		IsEmailVerified:       in.IsEmailVerified,
		LastLoginAt:           &now,
		LastLoginProvider:     &provider,
	}, in.FirstName, in.LastName)
	return a, u, nil
}

func (s *Store) update(id int64, fn func(a *entity.Account)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.Accounts[id]
	if !ok {
		return sql.ErrNoRows
	}
	fn(a)
	return nil
}

func (s *Store) roleNames(userID int64) pq.StringArray {
	names := pq.StringArray{}
	for _, r := range s.Roles {
		if s.UserRoles[userID][r.ID] {
			names = append(names, r.Name)
		}
	}
	return names
}

func (s *Store) info(a *entity.Account, u *entity.User) entity.UserInfo {
	return entity.UserInfo{
		Email:             a.Email,
		IsEmailVerified:   a.IsEmailVerified,
		IsTwoFaEnabled:    a.IsTwoFaEnabled,
		LastLoginAt:       a.LastLoginAt,
		LastLoginProvider: a.LastLoginProvider,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		Roles:             s.roleNames(u.ID),
	}
}

func (s *Store) UserInfoByAccountID(_ context.Context, accountID int64) (*entity.UserInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.Accounts[accountID]
	u := s.userOf(accountID)
	if !ok || u == nil {
		return nil, sql.ErrNoRows
	}
	v := s.info(a, u)
	return &v, nil
}

func (s *Store) UserInfoByUserID(ctx context.Context, userID int64) (*entity.UserInfo, error) {
	s.mu.Lock()
	u, ok := s.Users[userID]
	s.mu.Unlock()
	if !ok {
		return nil, sql.ErrNoRows
	}
	return s.UserInfoByAccountID(ctx, u.AccountID)
}

func (s *Store) UserIDByAccountID(_ context.Context, accountID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u := s.userOf(accountID); u != nil {
		return u.ID, nil
	}
	return 0, sql.ErrNoRows
}

func (s *Store) SetHashCheck(_ context.Context, id int64, hc string) error {
	return s.update(id, func(a *entity.Account) { a.HashCheck = hc })
}

func (s *Store) TouchLogin(_ context.Context, id int64, provider string, at time.Time) error {
	return s.update(id, func(a *entity.Account) { a.LastLoginAt, a.LastLoginProvider = &at, &provider })
}

func (s *Store) SetTwoFaChallenge(_ context.Context, id int64, code *string, at *time.Time) error {
	return s.update(id, func(a *entity.Account) { a.TwoFaCode, a.TwoFaCodeAt = code, at })
}

func (s *Store) SetTwoFaPendingSecret(_ context.Context, id int64, secret string) error {
	return s.update(id, func(a *entity.Account) { a.TwoFaPendingSecret = &secret })
}

func (s *Store) EnableTwoFa(_ context.Context, id int64, secret string, step int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.Accounts[id]
	if !ok || a.TwoFaPendingSecret == nil || *a.TwoFaPendingSecret != secret {
		return sql.ErrNoRows
	}
	a.IsTwoFaEnabled, a.TwoFaSecret, a.TwoFaPendingSecret, a.TwoFaLastStep = true, a.TwoFaPendingSecret, nil, &step
	return nil
}

func (s *Store) UseTwoFaStep(_ context.Context, id, step int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.Accounts[id]
	if !ok || (a.TwoFaLastStep != nil && *a.TwoFaLastStep >= step) {
		return false, nil
	}
	a.TwoFaLastStep = &step
	return true, nil
}

func (s *Store) DisableTwoFa(_ context.Context, id int64) error {
	return s.update(id, func(a *entity.Account) {
		a.IsTwoFaEnabled, a.TwoFaSecret, a.TwoFaPendingSecret, a.TwoFaLastStep = false, nil, nil, nil
		a.TwoFaCode, a.TwoFaCodeAt = nil, nil
	})
}

func (s *Store) SetPassword(_ context.Context, id int64, hash, salt string, at time.Time) error {
	return s.update(id, func(a *entity.Account) {
		a.PasswordHash, a.Salt, a.PasswordChangedAt = hash, salt, &at
		a.PasswordChangeRequired, a.PasswordResetCode, a.PasswordResetAt = false, nil, nil
	})
}

func (s *Store) SetPasswordResetCode(_ context.Context, id int64, code string, at time.Time) error {
	return s.update(id, func(a *entity.Account) { a.PasswordResetCode, a.PasswordResetAt = &code, &at })
}

func (s *Store) MarkEmailVerified(_ context.Context, id int64) error {
	return s.update(id, func(a *entity.Account) { a.IsEmailVerified, a.EmailVerificationCode = true, nil })
}

func (s *Store) MarkEmailVerifiedByProvider(_ context.Context, id int64) error {
	return s.update(id, func(a *entity.Account) { a.IsEmailVerified = true })
}

func (s *Store) SoftDelete(_ context.Context, id int64, code string, at time.Time) error {
	return s.update(id, func(a *entity.Account) { a.IsDeleted, a.DeletedAt, a.AccountRestoreCode = true, &at, &code })
}

func (s *Store) Restore(_ context.Context, id int64, at time.Time) error {
	return s.update(id, func(a *entity.Account) { a.IsDeleted, a.AccountRestoreCode, a.RestoredAt = false, nil, &at })
}

func (s *Store) SetBanned(_ context.Context, id int64, banned bool) error {
	return s.update(id, func(a *entity.Account) { a.IsBanned = banned })
}

func (s *Store) SetPasswordChangeRequired(_ context.Context, id int64, required bool) error {
	return s.update(id, func(a *entity.Account) { a.PasswordChangeRequired = required })
}

func (s *Store) ListRoles(context.Context) ([]role.Role, error) {
	return slices.Clone(s.Roles), nil
}

func (s *Store) RoleNamesForUser(_ context.Context, userID int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return []string(s.roleNames(userID)), nil
}

func (s *Store) RoleIDsForUser(_ context.Context, userID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.UserRoles[userID])), nil
}

func (s *Store) AddUserRole(_ context.Context, userID, roleID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UserRoles[userID] == nil {
		s.UserRoles[userID] = map[int64]bool{}
	}
	s.UserRoles[userID][roleID] = true
	return nil
}

func (s *Store) RemoveUserRole(_ context.Context, userID, roleID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.UserRoles[userID], roleID)
	return nil
}

func (s *Store) matching(search string) []int64 {
	search = strings.ToLower(search)
	var ids []int64
	for _, id := range slices.Sorted(maps.Keys(s.Accounts)) {
		a, u := s.Accounts[id], s.userOf(id)
		if search == "" || strings.Contains(strings.ToLower(a.Email), search) ||
			strings.Contains(strings.ToLower(u.FirstName), search) ||
			strings.Contains(strings.ToLower(u.LastName), search) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *Store) ListUsers(_ context.Context, search string, limit, offset int) ([]entity.UserListItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.matching(search)
	var out []entity.UserListItem
	for i, id := range ids {
		if i < offset || len(out) >= limit {
			continue
		}
		out = append(out, entity.UserListItem{ID: id, UserInfo: s.info(s.Accounts[id], s.userOf(id))})
	}
	return out, nil
}

func (s *Store) CountUsers(_ context.Context, search string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.matching(search)), nil
}

func (s *Store) ListOwn(_ context.Context, accountID int64) ([]entity.UserListItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.Accounts[accountID]
	if !ok {
		return nil, nil
	}
	return []entity.UserListItem{{ID: accountID, UserInfo: s.info(a, s.userOf(accountID))}}, nil
}

func (s *Store) GetUserDetailed(_ context.Context, accountID int64) (*entity.UserDetailed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.Accounts[accountID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	u := s.userOf(accountID)
	return &entity.UserDetailed{
		AccountID:              a.ID,
		UserID:                 u.ID,
		IsBanned:               a.IsBanned,
		PasswordChangeRequired: a.PasswordChangeRequired,
		UserInfo:               s.info(a, u),
	}, nil
}
