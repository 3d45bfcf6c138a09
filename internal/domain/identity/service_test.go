package identity

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/psiclinic/clinic/internal/platform/apperr"
	"github.com/psiclinic/clinic/internal/platform/auth"
)

// -- Mock Repository --

type mockUserRepo struct {
	users  map[int64]*User
	nextID int64
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[int64]*User)}
}

func (m *mockUserRepo) Create(_ context.Context, u *User) error {
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return apperr.Conflict("user already exists")
		}
	}
	m.nextID++
	u.ID = m.nextID
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id int64) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFound("user")
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("user")
}

func (m *mockUserRepo) List(_ context.Context, limit, offset int) ([]*User, int, error) {
	var all []*User
	for _, u := range m.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *mockUserRepo) SetActive(_ context.Context, id int64, active bool) error {
	u, ok := m.users[id]
	if !ok {
		return apperr.NotFound("user")
	}
	u.IsActive = active
	return nil
}

func (m *mockUserRepo) UpdatePassword(_ context.Context, id int64, hash string) error {
	u, ok := m.users[id]
	if !ok {
		return apperr.NotFound("user")
	}
	u.PasswordHash = hash
	return nil
}

func (m *mockUserRepo) TouchLastLogin(_ context.Context, id int64, at time.Time) error {
	if u, ok := m.users[id]; ok {
		u.LastLoginAt = &at
	}
	return nil
}

// -- Helpers --

func newTestService() (*Service, *mockUserRepo) {
	repo := newMockUserRepo()
	tokens := auth.NewTokenManager("test-secret-key-for-unit-tests-only", "psiclinic", 168*time.Hour)
	return NewService(repo, auth.NewBcryptHasher(4), tokens), repo
}

func seedUser(t *testing.T, svc *Service, email, password, role string) *User {
	t.Helper()
	u, err := svc.Bootstrap(context.Background(), CreateUserRequest{
		Email: email, Password: password, Name: "Test User", Role: role,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

var (
	adminActor = auth.Principal{ID: 900, Email: "admin@clinic.test", Role: auth.RoleAdmin}
	rootActor  = auth.Principal{ID: 901, Email: "root@clinic.test", Role: auth.RoleSuperAdmin}
)

// -- Tests --

func TestLogin_Success(t *testing.T) {
	svc, repo := newTestService()
	u := seedUser(t, svc, "a@x.com", "secret", auth.RolePsychologist)

	res, err := svc.Login(context.Background(), "  A@X.com ", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Token == "" {
		t.Fatal("expected a token")
	}
	if res.User.ID != u.ID {
		t.Errorf("expected user %d, got %d", u.ID, res.User.ID)
	}
	if repo.users[u.ID].LastLoginAt == nil {
		t.Error("expected lastLoginAt to be stamped")
	}

	p, err := svc.VerifyToken(context.Background(), res.Token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.ID != u.ID || p.Role != auth.RolePsychologist {
		t.Errorf("unexpected principal %+v", p)
	}
}

func TestLogin_UnknownEmailAndWrongPasswordAreIndistinguishable(t *testing.T) {
	svc, _ := newTestService()
	seedUser(t, svc, "a@x.com", "secret", auth.RolePsychologist)

	_, errUnknown := svc.Login(context.Background(), "nobody@x.com", "secret")
	_, errWrong := svc.Login(context.Background(), "a@x.com", "wrong")

	for _, err := range []error{errUnknown, errWrong} {
		if apperr.KindOf(err) != apperr.KindAuthentication {
			t.Fatalf("expected authentication error, got %v", err)
		}
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	}
	if errUnknown.Error() != errWrong.Error() {
		t.Errorf("messages differ: %q vs %q", errUnknown.Error(), errWrong.Error())
	}
}

func TestLogin_DisabledAccount(t *testing.T) {
	svc, repo := newTestService()
	u := seedUser(t, svc, "a@x.com", "secret", auth.RolePsychologist)
	repo.users[u.ID].IsActive = false

	_, err := svc.Login(context.Background(), "a@x.com", "secret")
	if !errors.Is(err, auth.ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
	if apperr.KindOf(err) != apperr.KindAuthentication {
		t.Errorf("expected 401 kind, got %s", apperr.KindOf(err))
	}

	// A wrong password on a disabled account reveals nothing extra.
	_, err = svc.Login(context.Background(), "a@x.com", "wrong")
	if !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Login(context.Background(), "", "")
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestVerifyToken_DeactivatedAfterIssue(t *testing.T) {
	svc, _ := newTestService()
	admin := seedUser(t, svc, "admin@x.com", "secret", auth.RoleAdmin)
	u := seedUser(t, svc, "a@x.com", "secret", auth.RolePsychologist)

	res, err := svc.Login(context.Background(), "a@x.com", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if _, err := svc.SetActive(context.Background(), admin.Principal(), u.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	_, err = svc.VerifyToken(context.Background(), res.Token)
	if !errors.Is(err, auth.ErrAccountDisabled) {
		t.Errorf("expected ErrAccountDisabled, got %v", err)
	}
}

func TestVerifyToken_DeletedUser(t *testing.T) {
	svc, repo := newTestService()
	u := seedUser(t, svc, "a@x.com", "secret", auth.RolePsychologist)
	res, _ := svc.Login(context.Background(), "a@x.com", "secret")
	delete(repo.users, u.ID)

	_, err := svc.VerifyToken(context.Background(), res.Token)
	if !errors.Is(err, auth.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestVerifyToken_RoleComesFromRow(t *testing.T) {
	svc, repo := newTestService()
	u := seedUser(t, svc, "a@x.com", "secret", auth.RoleSuperAdmin)
	res, _ := svc.Login(context.Background(), "a@x.com", "secret")
	repo.users[u.ID].Role = auth.RolePsychologist

	p, err := svc.VerifyToken(context.Background(), res.Token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.BypassesScoping() {
		t.Error("a demoted user must lose the scoping bypass immediately")
	}
}

func TestVerifyToken_Garbage(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.VerifyToken(context.Background(), "garbage"); !errors.Is(err, auth.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestCreateUser_Validation(t *testing.T) {
	svc, _ := newTestService()
	tests := []struct {
		name string
		req  CreateUserRequest
	}{
		{"bad email", CreateUserRequest{Email: "nope", Password: "secret", Name: "A"}},
		{"no name", CreateUserRequest{Email: "a@x.com", Password: "secret"}},
		{"short password", CreateUserRequest{Email: "a@x.com", Password: "123", Name: "A"}},
		{"bad role", CreateUserRequest{Email: "a@x.com", Password: "secret", Name: "A", Role: "physician"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateUser(context.Background(), adminActor, tt.req)
			if apperr.KindOf(err) != apperr.KindValidation {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreateUser_DefaultsAndDuplicate(t *testing.T) {
	svc, _ := newTestService()
	u, err := svc.CreateUser(context.Background(), adminActor, CreateUserRequest{
		Email: "New@X.com", Password: "secret", Name: "New",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Role != auth.RolePsychologist || !u.IsActive || u.Email != "new@x.com" {
		t.Errorf("unexpected defaults %+v", u)
	}
	if u.PasswordHash == "secret" {
		t.Error("password must be hashed")
	}

	_, err = svc.Bootstrap(context.Background(), CreateUserRequest{
		Email: "new@x.com", Password: "secret", Name: "Again",
	})
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	svc, _ := newTestService()
	u := seedUser(t, svc, "a@x.com", "secret", auth.RolePsychologist)

	err := svc.ChangePassword(context.Background(), u.Principal(), "wrong", "newsecret")
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("expected validation error for wrong current password, got %v", err)
	}
	err = svc.ChangePassword(context.Background(), u.Principal(), "secret", "123")
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("expected validation error for short password, got %v", err)
	}
	if err := svc.ChangePassword(context.Background(), u.Principal(), "secret", "newsecret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Login(context.Background(), "a@x.com", "newsecret"); err != nil {
		t.Errorf("expected login with new password, got %v", err)
	}
}

func TestSetActive_CannotDisableSelf(t *testing.T) {
	svc, _ := newTestService()
	admin := seedUser(t, svc, "admin@x.com", "secret", auth.RoleAdmin)

	_, err := svc.SetActive(context.Background(), admin.Principal(), admin.ID, false)
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestSetActive_UnknownUser(t *testing.T) {
	svc, _ := newTestService()
	admin := seedUser(t, svc, "admin@x.com", "secret", auth.RoleAdmin)

	_, err := svc.SetActive(context.Background(), admin.Principal(), 999, false)
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestCreateUser_SuperAdminRequiresSuperAdmin(t *testing.T) {
	svc, repo := newTestService()
	req := CreateUserRequest{Email: "boss@x.com", Password: "secret", Name: "Boss", Role: auth.RoleSuperAdmin}

	for _, actor := range []auth.Principal{adminActor, {ID: 902, Role: auth.RolePsychologist}} {
		_, err := svc.CreateUser(context.Background(), actor, req)
		if apperr.KindOf(err) != apperr.KindAuthorization {
			t.Fatalf("%s creating super_admin: expected forbidden, got %v", actor.Role, err)
		}
	}
	if len(repo.users) != 0 {
		t.Fatalf("rejected request must not persist a user, have %d", len(repo.users))
	}
	if _, err := svc.Login(context.Background(), "boss@x.com", "secret"); apperr.KindOf(err) != apperr.KindAuthentication {
		t.Errorf("expected no usable account, got %v", err)
	}

	u, err := svc.CreateUser(context.Background(), rootActor, req)
	if err != nil {
		t.Fatalf("super_admin creating super_admin: %v", err)
	}
	if u.Role != auth.RoleSuperAdmin {
		t.Errorf("role = %q", u.Role)
	}
}

func TestCreateUser_AdminCanCreateAdmin(t *testing.T) {
	svc, _ := newTestService()
	u, err := svc.CreateUser(context.Background(), adminActor, CreateUserRequest{
		Email: "ops@x.com", Password: "secret", Name: "Ops", Role: auth.RoleAdmin,
	})
	if err != nil || u.Role != auth.RoleAdmin {
		t.Fatalf("got %+v, %v", u, err)
	}
}

func TestSetActive_SuperAdminTarget(t *testing.T) {
	svc, _ := newTestService()
	admin := seedUser(t, svc, "admin@x.com", "secret", auth.RoleAdmin)
	root := seedUser(t, svc, "root@x.com", "secret", auth.RoleSuperAdmin)
	other := seedUser(t, svc, "root2@x.com", "secret", auth.RoleSuperAdmin)

	_, err := svc.SetActive(context.Background(), admin.Principal(), root.ID, false)
	if apperr.KindOf(err) != apperr.KindAuthorization {
		t.Fatalf("admin disabling super_admin: expected forbidden, got %v", err)
	}
	if got, _ := svc.CurrentUser(context.Background(), root.Principal()); got == nil || !got.IsActive {
		t.Fatal("super_admin must stay active after a rejected change")
	}

	u, err := svc.SetActive(context.Background(), root.Principal(), other.ID, false)
	if err != nil || u.IsActive {
		t.Fatalf("super_admin disabling super_admin: %+v, %v", u, err)
	}
	if _, err := svc.SetActive(context.Background(), admin.Principal(), other.ID, true); apperr.KindOf(err) != apperr.KindAuthorization {
		t.Errorf("admin re-enabling super_admin: expected forbidden, got %v", err)
	}
}
