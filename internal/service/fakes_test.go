package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/vacation-api/internal/models"
	"github.com/noah-isme/vacation-api/internal/repository"
	appErrors "github.com/noah-isme/vacation-api/pkg/errors"
)

const (
	adminUserID   = "00000000-0000-0000-0000-0000000000a1"
	managerUserID = "00000000-0000-0000-0000-0000000000b1"
	collabUserID  = "00000000-0000-0000-0000-0000000000c1"
	otherUserID   = "00000000-0000-0000-0000-0000000000c2"

	managerEmpID = "00000000-0000-0000-0000-0000000000eb"
	collabEmpID  = "00000000-0000-0000-0000-0000000000ec"
	otherEmpID   = "00000000-0000-0000-0000-0000000000ed"
)

var (
	adminPrincipal   = models.Principal{UserID: adminUserID, Email: "admin@example.com", Role: models.RoleAdmin}
	managerPrincipal = models.Principal{UserID: managerUserID, Email: "manager@example.com", Role: models.RoleManager, EmployeeID: managerEmpID}
	collabPrincipal  = models.Principal{UserID: collabUserID, Email: "ada@example.com", Role: models.RoleCollaborator, EmployeeID: collabEmpID}
	otherPrincipal   = models.Principal{UserID: otherUserID, Email: "bob@example.com", Role: models.RoleCollaborator, EmployeeID: otherEmpID}
)

func strPtr(s string) *string { return &s }

// fakeEmployeeStore is an in-memory employee table.
type fakeEmployeeStore struct {
	mu        sync.Mutex
	employees map[string]models.Employee
	seq       int
}

func newFakeEmployeeStore(employees ...models.Employee) *fakeEmployeeStore {
	store := &fakeEmployeeStore{employees: map[string]models.Employee{}}
	for _, e := range employees {
		store.employees[e.ID] = e
	}
	return store
}

func (f *fakeEmployeeStore) get(id string) (*models.Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.employees[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

func (f *fakeEmployeeStore) FindByID(ctx context.Context, id string) (*models.Employee, error) {
	return f.get(id)
}

func (f *fakeEmployeeStore) FindByIDForUpdate(ctx context.Context, id string) (*models.Employee, error) {
	return f.get(id)
}

func (f *fakeEmployeeStore) FindByUserID(ctx context.Context, userID string) (*models.Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.employees {
		if e.UserID != nil && *e.UserID == userID {
			e := e
			return &e, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeEmployeeStore) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.employees {
		if strings.EqualFold(e.Email, email) && e.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeEmployeeStore) List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Employee
	for _, e := range f.employees {
		if filter.ManagerID != "" && (e.ManagerID == nil || *e.ManagerID != filter.ManagerID) {
			continue
		}
		if filter.Active != nil && e.Active != *filter.Active {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, len(out), nil
}

func (f *fakeEmployeeStore) Create(ctx context.Context, employee *models.Employee) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if employee.ID == "" {
		f.seq++
		employee.ID = fmt.Sprintf("00000000-0000-0000-0001-%012d", f.seq)
	}
	f.employees[employee.ID] = *employee
	return nil
}

func (f *fakeEmployeeStore) Update(ctx context.Context, employee *models.Employee) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.employees[employee.ID]; !ok {
		return sql.ErrNoRows
	}
	f.employees[employee.ID] = *employee
	return nil
}

func (f *fakeEmployeeStore) Deactivate(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.employees[id]
	e.Active = false
	f.employees[id] = e
	return nil
}

// fakeBalanceStore is an in-memory vacation_balances table.
type fakeBalanceStore struct {
	mu       sync.Mutex
	balances map[string]models.VacationBalance
	saves    int
}

func newFakeBalanceStore(balances ...models.VacationBalance) *fakeBalanceStore {
	store := &fakeBalanceStore{balances: map[string]models.VacationBalance{}}
	for _, b := range balances {
		store.balances[balanceKey(b.EmployeeID, b.Year)] = b
	}
	return store
}

func balanceKey(employeeID string, year int) string {
	return fmt.Sprintf("%s/%d", employeeID, year)
}

func (f *fakeBalanceStore) get(employeeID string, year int) (models.VacationBalance, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.balances[balanceKey(employeeID, year)]
	return b, ok
}

func (f *fakeBalanceStore) FindByEmployeeAndYear(ctx context.Context, employeeID string, year int) (*models.VacationBalance, error) {
	b, ok := f.get(employeeID, year)
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &b, nil
}

func (f *fakeBalanceStore) LockOrCreate(ctx context.Context, employeeID string, year, entitled int) (*models.VacationBalance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := balanceKey(employeeID, year)
	b, ok := f.balances[key]
	if !ok {
		b = *models.NewBalance(employeeID, year, entitled)
		b.ID = "bal-" + key
		f.balances[key] = b
	}
	return &b, nil
}

func (f *fakeBalanceStore) Create(ctx context.Context, balance *models.VacationBalance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := balanceKey(balance.EmployeeID, balance.Year)
	if _, ok := f.balances[key]; ok {
		return nil
	}
	if balance.ID == "" {
		balance.ID = "bal-" + key
	}
	f.balances[key] = *balance
	return nil
}

func (f *fakeBalanceStore) Save(ctx context.Context, balance *models.VacationBalance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := balanceKey(balance.EmployeeID, balance.Year)
	if _, ok := f.balances[key]; !ok {
		return sql.ErrNoRows
	}
	f.balances[key] = *balance
	f.saves++
	return nil
}

func (f *fakeBalanceStore) List(ctx context.Context, filter models.BalanceFilter) ([]models.VacationBalance, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.VacationBalance
	for _, b := range f.balances {
		if b.Year != filter.Year {
			continue
		}
		if filter.EmployeeID != "" && b.EmployeeID != filter.EmployeeID {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out, len(out), nil
}

// fakeVacationStore is an in-memory vacation_requests table joined to employees.
type fakeVacationStore struct {
	mu        sync.Mutex
	requests  map[string]models.VacationRequest
	employees *fakeEmployeeStore
	seq       int
	// loseNextUpdate simulates a concurrent writer winning the conditional update.
	loseNextUpdate bool
	lastFilter     models.VacationFilter
}

func newFakeVacationStore(employees *fakeEmployeeStore) *fakeVacationStore {
	return &fakeVacationStore{requests: map[string]models.VacationRequest{}, employees: employees}
}

func (f *fakeVacationStore) decorate(v models.VacationRequest) *models.VacationRequest {
	if e, err := f.employees.get(v.EmployeeID); err == nil {
		v.EmployeeName = e.FullName
		v.EmployeeEmail = e.Email
		v.ManagerID = e.ManagerID
	}
	return &v
}

func (f *fakeVacationStore) Create(ctx context.Context, v *models.VacationRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	if v.ID == "" {
		v.ID = fmt.Sprintf("00000000-0000-0000-0002-%012d", f.seq)
	}
	if v.Status == "" {
		v.Status = models.VacationPending
	}
	v.RequestedAt = time.Now().UTC().Add(time.Duration(f.seq) * time.Millisecond)
	f.requests[v.ID] = *v
	return nil
}

func (f *fakeVacationStore) FindByID(ctx context.Context, id string) (*models.VacationRequest, error) {
	f.mu.Lock()
	v, ok := f.requests[id]
	f.mu.Unlock()
	if !ok {
		return nil, sql.ErrNoRows
	}
	return f.decorate(v), nil
}

func (f *fakeVacationStore) FindByIDForUpdate(ctx context.Context, id string) (*models.VacationRequest, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeVacationStore) matching(filter models.VacationFilter) []models.VacationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.VacationRequest
	for _, v := range f.requests {
		if filter.Status != nil && v.Status != *filter.Status {
			continue
		}
		if filter.EmployeeID != "" && v.EmployeeID != filter.EmployeeID {
			continue
		}
		out = append(out, *f.decorate(v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	return out
}

func (f *fakeVacationStore) List(ctx context.Context, filter models.VacationFilter) ([]models.VacationRequest, int, error) {
	f.lastFilter = filter
	out := f.matching(filter)
	return out, len(out), nil
}

func (f *fakeVacationStore) ListForExport(ctx context.Context, filter models.VacationFilter) ([]models.VacationRequest, error) {
	f.lastFilter = filter
	return f.matching(filter), nil
}

func (f *fakeVacationStore) FindOverlapping(ctx context.Context, employeeID string, start, end models.Date, excludeID string) ([]models.VacationRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.VacationRequest
	for _, v := range f.requests {
		if v.EmployeeID != employeeID || v.ID == excludeID {
			continue
		}
		if v.Status != models.VacationPending && v.Status != models.VacationApproved {
			continue
		}
		if v.Overlaps(start, end) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeVacationStore) Calendar(ctx context.Context, start, end models.Date, statuses []models.VacationStatus) ([]models.VacationRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	allowed := map[models.VacationStatus]bool{}
	for _, s := range statuses {
		allowed[s] = true
	}
	var out []models.VacationRequest
	for _, v := range f.requests {
		if allowed[v.Status] && v.Overlaps(start, end) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeVacationStore) UpdatePending(ctx context.Context, v *models.VacationRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.requests[v.ID]
	if !ok || stored.Status != models.VacationPending {
		return sql.ErrNoRows
	}
	stored.StartDate, stored.EndDate, stored.DaysCount, stored.Reason = v.StartDate, v.EndDate, v.DaysCount, v.Reason
	f.requests[v.ID] = stored
	return nil
}

func (f *fakeVacationStore) UpdateStatus(ctx context.Context, t repository.StatusTransition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loseNextUpdate {
		f.loseNextUpdate = false
		return sql.ErrNoRows
	}
	stored, ok := f.requests[t.ID]
	if !ok || stored.Status != t.From {
		return sql.ErrNoRows
	}
	stored.Status = t.To
	if t.DecidedBy != nil {
		stored.DecidedBy = t.DecidedBy
		stored.DecisionAt = t.DecisionAt
	}
	if t.Comment != nil {
		stored.ManagerComment = t.Comment
	}
	f.requests[t.ID] = stored
	return nil
}

func (f *fakeVacationStore) status(id string) models.VacationStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[id].Status
}

func (f *fakeVacationStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// fakeTx runs the unit of work inline.
type fakeTx struct {
	calls int
}

func (f *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

// fakeAudit captures audit entries.
type fakeAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
	txErr   error
}

func (f *fakeAudit) Record(ctx context.Context, entry AuditEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
}

func (f *fakeAudit) RecordTx(ctx context.Context, entry AuditEntry) error {
	if f.txErr != nil {
		return f.txErr
	}
	f.Record(ctx, entry)
	return nil
}

func (f *fakeAudit) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

// fakeCalendarStore is an in-memory calendarStore.
type fakeCalendarStore struct {
	mu       sync.Mutex
	values   map[string][]models.VacationRequest
	counters map[string]int64
}

func newFakeCalendarStore() *fakeCalendarStore {
	return &fakeCalendarStore{values: map[string][]models.VacationRequest{}, counters: map[string]int64{}}
}

func (f *fakeCalendarStore) Get(ctx context.Context, key string, dest interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	*dest.(*[]models.VacationRequest) = v
	return nil
}

func (f *fakeCalendarStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value.([]models.VacationRequest)
	return nil
}

func (f *fakeCalendarStore) Counter(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counters[key], nil
}

func (f *fakeCalendarStore) Incr(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters[key]++
	return f.counters[key], nil
}

// fakeUserStore is an in-memory users and refresh_tokens table.
type fakeUserStore struct {
	mu            sync.Mutex
	users         map[string]models.User
	refreshTokens map[string]*models.RefreshToken
	seq           int
	lastLogin     map[string]time.Time
	revokedAll    []string
}

func newFakeUserStore(users ...models.User) *fakeUserStore {
	store := &fakeUserStore{
		users:         map[string]models.User{},
		refreshTokens: map[string]*models.RefreshToken{},
		lastLogin:     map[string]time.Time{},
	}
	for _, u := range users {
		store.users[u.ID] = u
	}
	return store
}

func (f *fakeUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			u := u
			return &u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &u, nil
}

func (f *fakeUserStore) FindManagers(ctx context.Context) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.User
	for _, u := range f.users {
		if u.Active && u.HasManagerRole() {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (f *fakeUserStore) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.User
	for _, u := range f.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, len(out), nil
}

func (f *fakeUserStore) Create(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.ID == "" {
		f.seq++
		user.ID = fmt.Sprintf("00000000-0000-0000-0003-%012d", f.seq)
	}
	f.users[user.ID] = *user
	return nil
}

func (f *fakeUserStore) Update(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.users[user.ID]
	if !ok {
		return sql.ErrNoRows
	}
	stored.Email, stored.FullName, stored.Role, stored.Active = user.Email, user.FullName, user.Role, user.Active
	f.users[user.ID] = stored
	return nil
}

func (f *fakeUserStore) Deactivate(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[id]
	u.Active = false
	f.users[id] = u
	return nil
}

func (f *fakeUserStore) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLogin[id] = ts
	return nil
}

func (f *fakeUserStore) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.PasswordHash = passwordHash
	f.users[id] = u
	return nil
}

func (f *fakeUserStore) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revokedAll = append(f.revokedAll, userID)
	for _, token := range f.refreshTokens {
		if token.UserID == userID {
			token.Revoked = true
		}
	}
	return nil
}

func (f *fakeUserStore) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshTokens[token.Token] = token
	return nil
}

func (f *fakeUserStore) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rt, ok := f.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (f *fakeUserStore) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, token := range f.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (f *fakeUserStore) user(id string) models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id]
}
