package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"leavedesk/internal/domain/auth"
)

type fakeStore struct {
	users    map[uuid.UUID]*User
	hashes   map[uuid.UUID]string
	sessions map[uuid.UUID]string
	seq      int

	reassignedL1 int
	reassignedL2 int
	l1Lines      []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    map[uuid.UUID]*User{},
		hashes:   map[uuid.UUID]string{},
		sessions: map[uuid.UUID]string{},
	}
}

func (f *fakeStore) add(u User, password string) uuid.UUID {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	cp := u
	f.users[u.ID] = &cp
	hash, _ := auth.HashPassword(password)
	f.hashes[u.ID] = hash
	return u.ID
}

func (f *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (User, error) {
	u, ok := f.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return *u, nil
}

func (f *fakeStore) GetByUsername(ctx context.Context, username string) (User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return *u, nil
		}
	}
	return User{}, ErrNotFound
}

func (f *fakeStore) FindByEmail(ctx context.Context, email string) (User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return *u, nil
		}
	}
	return User{}, ErrNotFound
}

func (f *fakeStore) Credentials(ctx context.Context, username string) (uuid.UUID, string, bool, error) {
	for id, u := range f.users {
		if u.Username == username {
			return id, f.hashes[id], u.IsActive, nil
		}
	}
	return uuid.Nil, "", false, ErrNotFound
}

func (f *fakeStore) PasswordHash(ctx context.Context, id uuid.UUID) (string, error) {
	hash, ok := f.hashes[id]
	if !ok {
		return "", ErrNotFound
	}
	return hash, nil
}

func (f *fakeStore) UsernameOrEmailExists(ctx context.Context, username, email string) (bool, error) {
	for _, u := range f.users {
		if u.Username == username || (email != "" && u.Email == email) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) Create(ctx context.Context, input CreateInput, passwordHash, employeeCode string) (User, error) {
	u := User{
		ID:            uuid.New(),
		Username:      input.Username,
		FullName:      input.FullName,
		Email:         input.Email,
		Role:          input.Role,
		SeniorManager: input.SeniorManager,
		ManagerID:     input.ManagerID,
		IsActive:      true,
		EmployeeCode:  employeeCode,
		CreatedAt:     time.Now(),
	}
	f.users[u.ID] = &u
	f.hashes[u.ID] = passwordHash
	return u, nil
}

func (f *fakeStore) UpdateProfile(ctx context.Context, id uuid.UUID, input ProfileInput) error {
	u, ok := f.users[id]
	if !ok {
		return ErrNotFound
	}
	u.FullName = input.FullName
	u.Email = input.Email
	u.ManagerID = input.ManagerID
	return nil
}

func (f *fakeStore) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	if _, ok := f.users[id]; !ok {
		return ErrNotFound
	}
	f.hashes[id] = passwordHash
	return nil
}

func (f *fakeStore) SetSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	if _, ok := f.users[id]; !ok {
		return ErrNotFound
	}
	f.sessions[id] = sessionID
	return nil
}

func (f *fakeStore) SessionRow(ctx context.Context, id uuid.UUID) (User, string, error) {
	u, ok := f.users[id]
	if !ok {
		return User{}, "", ErrNotFound
	}
	return *u, f.sessions[id], nil
}

func (f *fakeStore) SetRole(ctx context.Context, id uuid.UUID, role string, senior bool) error {
	u, ok := f.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Role = role
	u.SeniorManager = senior
	return nil
}

func (f *fakeStore) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	u, ok := f.users[id]
	if !ok {
		return ErrNotFound
	}
	u.IsActive = active
	if !active {
		f.sessions[id] = ""
	}
	return nil
}

func (f *fakeStore) List(ctx context.Context, filter ListFilter) ([]User, error) {
	var out []User
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeStore) Approvers(ctx context.Context) ([]Summary, error) {
	var out []Summary
	for _, u := range f.users {
		if u.IsActive && (u.Role == auth.RoleManager || u.Role == auth.RoleHRAdmin) {
			out = append(out, Summary{ID: u.ID, FullName: u.FullName, Role: u.Role, SeniorManager: u.SeniorManager})
		}
	}
	return out, nil
}

func (f *fakeStore) OtherActiveAdmins(ctx context.Context, excludeID uuid.UUID) (int, error) {
	n := 0
	for id, u := range f.users {
		if id != excludeID && u.IsActive && u.Role == auth.RoleHRAdmin {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) MaxEmployeeSeq(ctx context.Context, year int) (int, error) {
	return f.seq, nil
}

func (f *fakeStore) ReassignL1Approvals(ctx context.Context, from, to uuid.UUID, historyLine string) (int, error) {
	f.l1Lines = append(f.l1Lines, historyLine)
	return f.reassignedL1, nil
}

func (f *fakeStore) ReassignL2Approvals(ctx context.Context, from, to uuid.UUID, historyLine string) (int, error) {
	return f.reassignedL2, nil
}

func newTestService(store *fakeStore) *Service {
	return NewService(store, nil)
}

func activeUser(username, role string) User {
	return User{
		Username: username,
		FullName: "User " + username,
		Email:    username + "@example.test",
		Role:     role,
		IsActive: true,
	}
}

func TestLoginRotatesSession(t *testing.T) {
	store := newFakeStore()
	id := store.add(activeUser("jdoe", auth.RoleEmployee), "hunter2pass")
	svc := newTestService(store)
	ctx := context.Background()

	_, first, err := svc.Login(ctx, "  JDoe ", "hunter2pass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if first == "" {
		t.Fatalf("empty session id")
	}

	_, second, err := svc.Login(ctx, "jdoe", "hunter2pass")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if second == first {
		t.Fatalf("session id not rotated")
	}

	// The older device's token now fails validation.
	if _, err := svc.ValidateSession(ctx, id.String(), first); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("stale session err = %v, want ErrSessionExpired", err)
	}
	uc, err := svc.ValidateSession(ctx, id.String(), second)
	if err != nil {
		t.Fatalf("validate current session: %v", err)
	}
	if uc.UserID != id || uc.Username != "jdoe" {
		t.Fatalf("unexpected user context: %+v", uc)
	}
}

func TestLoginFailures(t *testing.T) {
	store := newFakeStore()
	store.add(activeUser("jdoe", auth.RoleEmployee), "hunter2pass")
	inactive := activeUser("gone", auth.RoleEmployee)
	inactive.IsActive = false
	store.add(inactive, "hunter2pass")
	svc := newTestService(store)
	ctx := context.Background()

	if _, _, err := svc.Login(ctx, "nobody", "hunter2pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user err = %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := svc.Login(ctx, "jdoe", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("bad password err = %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := svc.Login(ctx, "gone", "hunter2pass"); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("inactive err = %v, want ErrAccountDisabled", err)
	}
}

func TestValidateSessionDisabledAccount(t *testing.T) {
	store := newFakeStore()
	id := store.add(activeUser("jdoe", auth.RoleEmployee), "hunter2pass")
	svc := newTestService(store)
	ctx := context.Background()

	_, token, err := svc.Login(ctx, "jdoe", "hunter2pass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	store.users[id].IsActive = false
	if _, err := svc.ValidateSession(ctx, id.String(), token); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("err = %v, want ErrAccountDisabled", err)
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	store := newFakeStore()
	id := store.add(activeUser("jdoe", auth.RoleEmployee), "hunter2pass")
	svc := newTestService(store)
	ctx := context.Background()

	_, token, err := svc.Login(ctx, "jdoe", "hunter2pass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := svc.Logout(ctx, id); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.ValidateSession(ctx, id.String(), token); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}
}

func TestCreateValidation(t *testing.T) {
	store := newFakeStore()
	store.add(activeUser("taken", auth.RoleEmployee), "hunter2pass")
	svc := newTestService(store)
	ctx := context.Background()

	base := CreateInput{Username: "newbie", FullName: "New  Hire", Email: "new@example.test", Password: "longenough"}

	missing := base
	missing.FullName = "  "
	if _, err := svc.Create(ctx, missing); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("missing name err = %v, want ErrInvalidInput", err)
	}

	weak := base
	weak.Password = "short"
	if _, err := svc.Create(ctx, weak); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("weak password err = %v, want ErrWeakPassword", err)
	}

	super := base
	super.Role = auth.RoleSuperuser
	if _, err := svc.Create(ctx, super); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("superuser err = %v, want ErrInvalidRole", err)
	}

	dup := base
	dup.Username = "Taken"
	if _, err := svc.Create(ctx, dup); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("duplicate err = %v, want ErrAlreadyExists", err)
	}
}

func TestCreateAssignsEmployeeCode(t *testing.T) {
	store := newFakeStore()
	store.seq = 41
	svc := newTestService(store)

	u, err := svc.Create(context.Background(), CreateInput{
		Username: "NEWBIE",
		FullName: "New Hire",
		Email:    "New@Example.Test",
		Password: "longenough",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	want := fmt.Sprintf("EMP-%d-0042", time.Now().Year())
	if u.EmployeeCode != want {
		t.Fatalf("code = %s, want %s", u.EmployeeCode, want)
	}
	if u.Username != "newbie" || u.Email != "new@example.test" {
		t.Fatalf("identity not normalized: %+v", u)
	}
	if u.Role != auth.RoleEmployee {
		t.Fatalf("default role = %s, want employee", u.Role)
	}
}

func TestChangePassword(t *testing.T) {
	store := newFakeStore()
	id := store.add(activeUser("jdoe", auth.RoleEmployee), "hunter2pass")
	svc := newTestService(store)
	ctx := context.Background()

	if err := svc.ChangePassword(ctx, id, "hunter2pass", "short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("weak err = %v, want ErrWeakPassword", err)
	}
	if err := svc.ChangePassword(ctx, id, "wrong", "newpassword"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong current err = %v, want ErrInvalidCredentials", err)
	}
	if err := svc.ChangePassword(ctx, id, "hunter2pass", "newpassword"); err != nil {
		t.Fatalf("change: %v", err)
	}
	if _, _, err := svc.Login(ctx, "jdoe", "newpassword"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestSetRoleGuardsLastAdmin(t *testing.T) {
	store := newFakeStore()
	adminID := store.add(activeUser("admin", auth.RoleHRAdmin), "hunter2pass")
	superID := store.add(activeUser("root", auth.RoleSuperuser), "hunter2pass")
	svc := newTestService(store)
	actor := auth.UserContext{UserID: superID, FullName: "Root", Role: auth.RoleSuperuser}

	_, err := svc.SetRole(context.Background(), actor, adminID, auth.RoleEmployee, false)
	if !errors.Is(err, ErrLastAdmin) {
		t.Fatalf("err = %v, want ErrLastAdmin", err)
	}

	// With a second active admin the demotion goes through.
	store.add(activeUser("admin2", auth.RoleHRAdmin), "hunter2pass")
	res, err := svc.SetRole(context.Background(), actor, adminID, auth.RoleEmployee, false)
	if err != nil {
		t.Fatalf("demote: %v", err)
	}
	if res.User.Role != auth.RoleEmployee {
		t.Fatalf("role = %s, want employee", res.User.Role)
	}
}

func TestSetRoleRejectsSelfChange(t *testing.T) {
	store := newFakeStore()
	adminID := store.add(activeUser("admin", auth.RoleHRAdmin), "hunter2pass")
	svc := newTestService(store)
	actor := auth.UserContext{UserID: adminID, Role: auth.RoleHRAdmin}

	if _, err := svc.SetRole(context.Background(), actor, adminID, auth.RoleEmployee, false); !errors.Is(err, ErrSelfChange) {
		t.Fatalf("err = %v, want ErrSelfChange", err)
	}
}

func TestSetRoleReassignsStrandedApprovals(t *testing.T) {
	store := newFakeStore()
	mgr := activeUser("boss", auth.RoleManager)
	mgr.SeniorManager = true
	mgrID := store.add(mgr, "hunter2pass")
	adminID := store.add(activeUser("admin", auth.RoleHRAdmin), "hunter2pass")
	store.reassignedL1 = 3
	store.reassignedL2 = 2
	svc := newTestService(store)
	actor := auth.UserContext{UserID: adminID, FullName: "Admin", Role: auth.RoleHRAdmin}

	res, err := svc.SetRole(context.Background(), actor, mgrID, auth.RoleEmployee, false)
	if err != nil {
		t.Fatalf("set role: %v", err)
	}
	if res.Reassigned != 5 {
		t.Fatalf("reassigned = %d, want 5 (L1 + L2)", res.Reassigned)
	}
	if len(store.l1Lines) != 1 || !strings.Contains(store.l1Lines[0], "Auto-Escalated to Admin") {
		t.Fatalf("missing escalation history line: %v", store.l1Lines)
	}
}

func TestSetRoleSeniorOnlyRevocation(t *testing.T) {
	store := newFakeStore()
	mgr := activeUser("boss", auth.RoleManager)
	mgr.SeniorManager = true
	mgrID := store.add(mgr, "hunter2pass")
	adminID := store.add(activeUser("admin", auth.RoleHRAdmin), "hunter2pass")
	store.reassignedL1 = 3
	store.reassignedL2 = 2
	svc := newTestService(store)
	actor := auth.UserContext{UserID: adminID, FullName: "Admin", Role: auth.RoleHRAdmin}

	// Keeping the manager role but dropping senior standing only moves
	// the L2 lane.
	res, err := svc.SetRole(context.Background(), actor, mgrID, auth.RoleManager, false)
	if err != nil {
		t.Fatalf("set role: %v", err)
	}
	if res.Reassigned != 2 {
		t.Fatalf("reassigned = %d, want 2", res.Reassigned)
	}
}

func TestSetActive(t *testing.T) {
	store := newFakeStore()
	empID := store.add(activeUser("jdoe", auth.RoleEmployee), "hunter2pass")
	adminID := store.add(activeUser("admin", auth.RoleHRAdmin), "hunter2pass")
	svc := newTestService(store)
	ctx := context.Background()
	actor := auth.UserContext{UserID: adminID, Role: auth.RoleHRAdmin}

	if _, _, err := svc.Login(ctx, "jdoe", "hunter2pass"); err != nil {
		t.Fatalf("login: %v", err)
	}
	u, err := svc.SetActive(ctx, actor, empID, false)
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if u.IsActive {
		t.Fatalf("still active")
	}
	if store.sessions[empID] != "" {
		t.Fatalf("session survived deactivation")
	}

	// Deactivating the only admin is refused.
	superID := store.add(activeUser("root", auth.RoleSuperuser), "hunter2pass")
	super := auth.UserContext{UserID: superID, Role: auth.RoleSuperuser}
	if _, err := svc.SetActive(ctx, super, adminID, false); !errors.Is(err, ErrLastAdmin) {
		t.Fatalf("err = %v, want ErrLastAdmin", err)
	}
}

func TestForgotPasswordIssuesTempCredentials(t *testing.T) {
	store := newFakeStore()
	id := store.add(activeUser("jdoe", auth.RoleEmployee), "hunter2pass")
	before := store.hashes[id]
	svc := newTestService(store)
	ctx := context.Background()

	svc.ForgotPassword(ctx, " JDoe@Example.Test ")
	if store.hashes[id] == before {
		t.Fatalf("password hash unchanged")
	}

	// Unknown addresses are silently ignored.
	svc.ForgotPassword(ctx, "stranger@example.test")
}

func TestUsernameAvailable(t *testing.T) {
	store := newFakeStore()
	store.add(activeUser("jdoe", auth.RoleEmployee), "hunter2pass")
	svc := newTestService(store)
	ctx := context.Background()

	ok, err := svc.UsernameAvailable(ctx, "  JDOE ")
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if ok {
		t.Fatalf("taken username reported available")
	}
	ok, err = svc.UsernameAvailable(ctx, "fresh")
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if !ok {
		t.Fatalf("fresh username reported taken")
	}
}
