package user

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"leavedesk/internal/domain/auth"
	"leavedesk/internal/domain/notifications"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrAlreadyExists      = errors.New("username or email already in use")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountDisabled    = errors.New("account is inactive")
	ErrSessionExpired     = errors.New("session is no longer valid")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidInput       = errors.New("invalid input")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrLastAdmin          = errors.New("cannot remove the last active HR admin")
	ErrSelfChange         = errors.New("cannot change own role or status")
	ErrInactiveTarget     = errors.New("user is inactive")
)

const historyTimeFormat = "2006-01-02 15:04"

type Service struct {
	Store  StoreAPI
	Notify *notifications.Service
}

func NewService(store StoreAPI, notify *notifications.Service) *Service {
	return &Service{Store: store, Notify: notify}
}

// Login verifies credentials and rotates the single allowed session.
func (s *Service) Login(ctx context.Context, username, password string) (User, string, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	id, hash, active, err := s.Store.Credentials(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return User{}, "", ErrInvalidCredentials
	}
	if err != nil {
		return User{}, "", err
	}
	if err := auth.CheckPassword(hash, password); err != nil {
		return User{}, "", ErrInvalidCredentials
	}
	if !active {
		return User{}, "", ErrAccountDisabled
	}

	sessionID, err := newSessionToken()
	if err != nil {
		return User{}, "", err
	}
	if err := s.Store.SetSession(ctx, id, sessionID); err != nil {
		return User{}, "", err
	}

	u, err := s.Store.GetByID(ctx, id)
	if err != nil {
		return User{}, "", err
	}
	return u, sessionID, nil
}

func (s *Service) Logout(ctx context.Context, userID uuid.UUID) error {
	return s.Store.SetSession(ctx, userID, "")
}

// ValidateSession rejects tokens whose session id no longer matches the
// user row, which logs out older devices after a fresh login.
func (s *Service) ValidateSession(ctx context.Context, userID, sessionID string) (auth.UserContext, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return auth.UserContext{}, ErrSessionExpired
	}
	u, stored, err := s.Store.SessionRow(ctx, id)
	if err != nil {
		return auth.UserContext{}, err
	}
	if !u.IsActive {
		return auth.UserContext{}, ErrAccountDisabled
	}
	if sessionID == "" || stored != sessionID {
		return auth.UserContext{}, ErrSessionExpired
	}
	return auth.UserContext{
		UserID:        u.ID,
		Username:      u.Username,
		FullName:      u.FullName,
		Role:          u.Role,
		SeniorManager: u.SeniorManager,
		SessionID:     sessionID,
	}, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (User, error) {
	return s.Store.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]User, error) {
	return s.Store.List(ctx, filter)
}

func (s *Service) Approvers(ctx context.Context) ([]Summary, error) {
	return s.Store.Approvers(ctx)
}

// Create registers a new account. The caller provisions leave balances
// for the new employee afterwards.
func (s *Service) Create(ctx context.Context, input CreateInput) (User, error) {
	input.Username = strings.ToLower(strings.TrimSpace(input.Username))
	input.FullName = strings.TrimSpace(input.FullName)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.Username == "" || input.FullName == "" {
		return User{}, fmt.Errorf("%w: username and full name are required", ErrInvalidInput)
	}
	if input.Role == "" {
		input.Role = auth.RoleEmployee
	}
	if !auth.ValidRole(input.Role) || input.Role == auth.RoleSuperuser {
		return User{}, ErrInvalidRole
	}
	if len(input.Password) < 8 {
		return User{}, ErrWeakPassword
	}

	exists, err := s.Store.UsernameOrEmailExists(ctx, input.Username, input.Email)
	if err != nil {
		return User{}, err
	}
	if exists {
		return User{}, ErrAlreadyExists
	}

	code, err := s.NextEmployeeCode(ctx)
	if err != nil {
		return User{}, err
	}
	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return User{}, err
	}

	u, err := s.Store.Create(ctx, input, hash, code)
	if err != nil {
		return User{}, err
	}

	s.Notify.UserWelcome(u.Email, u.FullName, u.Username, input.Password)
	return u, nil
}

func (s *Service) NextEmployeeCode(ctx context.Context) (string, error) {
	year := time.Now().Year()
	seq, err := s.Store.MaxEmployeeSeq(ctx, year)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("EMP-%d-%04d", year, seq+1), nil
}

func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, input ProfileInput) (User, error) {
	input.FullName = strings.TrimSpace(input.FullName)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.FullName == "" {
		return User{}, fmt.Errorf("%w: full name is required", ErrInvalidInput)
	}
	if err := s.Store.UpdateProfile(ctx, id, input); err != nil {
		return User{}, err
	}
	return s.Store.GetByID(ctx, id)
}

func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	if len(next) < 8 {
		return ErrWeakPassword
	}
	hash, err := s.Store.PasswordHash(ctx, userID)
	if err != nil {
		return err
	}
	if err := auth.CheckPassword(hash, current); err != nil {
		return ErrInvalidCredentials
	}
	newHash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.Store.UpdatePassword(ctx, userID, newHash); err != nil {
		return err
	}

	u, err := s.Store.GetByID(ctx, userID)
	if err == nil {
		s.Notify.PasswordChanged(u.Email, u.FullName, time.Now().Format(historyTimeFormat))
	}
	return nil
}

// ResetPassword lets an admin force a new password onto an account.
func (s *Service) ResetPassword(ctx context.Context, targetID uuid.UUID, newPassword string) error {
	if len(newPassword) < 8 {
		return ErrWeakPassword
	}
	target, err := s.Store.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.Store.UpdatePassword(ctx, targetID, hash); err != nil {
		return err
	}
	s.Notify.AdminPasswordReset(target.Email, target.FullName, newPassword)
	return nil
}

// ForgotPassword always reports success to the caller; recovery mail goes
// out only when an active account matches the email.
func (s *Service) ForgotPassword(ctx context.Context, email string) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return
	}
	u, err := s.Store.FindByEmail(ctx, email)
	if err != nil || !u.IsActive {
		return
	}

	temp, err := newTempPassword()
	if err != nil {
		slog.Warn("temp password generation failed", "err", err)
		return
	}
	hash, err := auth.HashPassword(temp)
	if err != nil {
		slog.Warn("temp password hash failed", "err", err)
		return
	}
	if err := s.Store.UpdatePassword(ctx, u.ID, hash); err != nil {
		slog.Warn("recovery password update failed", "userId", u.ID, "err", err)
		return
	}
	s.Notify.CredentialsRecovery(u.Email, u.FullName, u.Username, temp)
}

type RoleChangeResult struct {
	User       User `json:"user"`
	Reassigned int  `json:"reassigned"`
}

// SetRole updates role and senior standing, guards the last active HR
// admin, and re-routes any approvals stranded by the revocation to the
// acting admin.
func (s *Service) SetRole(ctx context.Context, actor auth.UserContext, targetID uuid.UUID, role string, senior bool) (RoleChangeResult, error) {
	if !auth.ValidRole(role) || role == auth.RoleSuperuser {
		return RoleChangeResult{}, ErrInvalidRole
	}
	if actor.UserID == targetID {
		return RoleChangeResult{}, ErrSelfChange
	}

	target, err := s.Store.GetByID(ctx, targetID)
	if err != nil {
		return RoleChangeResult{}, err
	}
	if !target.IsActive {
		return RoleChangeResult{}, ErrInactiveTarget
	}
	if target.Role == auth.RoleHRAdmin && role != auth.RoleHRAdmin {
		others, err := s.Store.OtherActiveAdmins(ctx, targetID)
		if err != nil {
			return RoleChangeResult{}, err
		}
		if others < 1 {
			return RoleChangeResult{}, ErrLastAdmin
		}
	}

	reassigned, err := s.reassignOnRevocation(ctx, actor, target, role, senior)
	if err != nil {
		return RoleChangeResult{}, err
	}

	if err := s.Store.SetRole(ctx, targetID, role, senior); err != nil {
		return RoleChangeResult{}, err
	}
	updated, err := s.Store.GetByID(ctx, targetID)
	if err != nil {
		return RoleChangeResult{}, err
	}

	s.Notify.RoleUpdated(updated.Email, updated.FullName, updated.Role, updated.SeniorManager)
	return RoleChangeResult{User: updated, Reassigned: reassigned}, nil
}

func (s *Service) reassignOnRevocation(ctx context.Context, actor auth.UserContext, target User, newRole string, newSenior bool) (int, error) {
	stamp := time.Now().Format(historyTimeFormat)
	total := 0

	wasApprover := target.Role == auth.RoleManager || target.Role == auth.RoleHRAdmin
	nowApprover := newRole == auth.RoleManager || newRole == auth.RoleHRAdmin
	if wasApprover && !nowApprover {
		line := fmt.Sprintf("\n> Auto-Escalated to %s {Note: Manager Role Revoked} (%s)", actor.FullName, stamp)
		n, err := s.Store.ReassignL1Approvals(ctx, target.ID, actor.UserID, line)
		if err != nil {
			return total, err
		}
		total += n
	}

	if target.SeniorManager && !newSenior {
		line := fmt.Sprintf("\n> Auto-Escalated to %s {Note: L2 Role Revoked} (%s)", actor.FullName, stamp)
		n, err := s.Store.ReassignL2Approvals(ctx, target.ID, actor.UserID, line)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// SetActive toggles an account. Deactivation clears the stored session so
// outstanding tokens die immediately.
func (s *Service) SetActive(ctx context.Context, actor auth.UserContext, targetID uuid.UUID, active bool) (User, error) {
	if actor.UserID == targetID {
		return User{}, ErrSelfChange
	}
	target, err := s.Store.GetByID(ctx, targetID)
	if err != nil {
		return User{}, err
	}
	if target.IsActive == active {
		return target, nil
	}
	if !active && target.Role == auth.RoleHRAdmin {
		others, err := s.Store.OtherActiveAdmins(ctx, targetID)
		if err != nil {
			return User{}, err
		}
		if others < 1 {
			return User{}, ErrLastAdmin
		}
	}

	if err := s.Store.SetActive(ctx, targetID, active); err != nil {
		return User{}, err
	}
	updated, err := s.Store.GetByID(ctx, targetID)
	if err != nil {
		return User{}, err
	}
	s.Notify.AccountStatus(updated.Email, updated.FullName, updated.IsActive)
	return updated, nil
}

func (s *Service) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return true, nil
	}
	_, err := s.Store.GetByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

func newSessionToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

const tempPasswordAlphabet = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func newTempPassword() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, len(buf))
	for i, b := range buf {
		out[i] = tempPasswordAlphabet[int(b)%len(tempPasswordAlphabet)]
	}
	return string(out), nil
}
