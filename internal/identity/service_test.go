package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/bissquit/campus-reservations/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRepository implements Repository for testing.
type mockRepository struct {
	users       map[string]*domain.User
	roles       map[string][]domain.RoleAssignment
	upsertErr   error
	getRolesErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		users: make(map[string]*domain.User),
		roles: make(map[string][]domain.RoleAssignment),
	}
}

func (m *mockRepository) UpsertUser(_ context.Context, user *domain.User) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *mockRepository) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockRepository) GetUsersByIDs(_ context.Context, ids []string) ([]domain.User, error) {
	var out []domain.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *mockRepository) ListUsers(_ context.Context) ([]domain.User, error) {
	var out []domain.User
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, nil
}

func (m *mockRepository) GetUserRoles(_ context.Context, userID string) ([]domain.RoleAssignment, error) {
	if m.getRolesErr != nil {
		return nil, m.getRolesErr
	}
	return m.roles[userID], nil
}

func (m *mockRepository) ListRoleAssignments(_ context.Context) ([]domain.RoleAssignment, error) {
	var out []domain.RoleAssignment
	for _, rows := range m.roles {
		out = append(out, rows...)
	}
	return out, nil
}

func (m *mockRepository) ReplaceRole(_ context.Context, userID string, role domain.Role) (*domain.RoleAssignment, error) {
	a := domain.RoleAssignment{UserID: userID, Role: role}
	m.roles[userID] = []domain.RoleAssignment{a}
	return &a, nil
}

// mockVerifier implements TokenVerifier for testing.
type mockVerifier struct {
	claims map[string]*Claims
}

func (m *mockVerifier) Verify(_ context.Context, token string) (*Claims, error) {
	if c, ok := m.claims[token]; ok {
		return c, nil
	}
	return nil, errors.New("signature is invalid")
}

func newTestService() (*Service, *mockRepository) {
	repo := newMockRepository()
	verifier := &mockVerifier{claims: map[string]*Claims{
		"student-token": {UserID: "s1", Email: "s1@example.com", DisplayName: "Sam Student"},
		"anon-name":     {UserID: "s2", Email: "s2@example.com"},
	}}
	return NewService(repo, verifier), repo
}

func TestAuthenticate_SyncsProfile(t *testing.T) {
	service, repo := newTestService()

	session, err := service.Authenticate(context.Background(), "student-token")

	require.NoError(t, err)
	assert.Equal(t, "s1", session.UserID)
	assert.Equal(t, "s1@example.com", session.Email)
	require.Contains(t, repo.users, "s1")
	require.NotNil(t, repo.users["s1"].DisplayName)
	assert.Equal(t, "Sam Student", *repo.users["s1"].DisplayName)
}

func TestAuthenticate_NoDisplayName(t *testing.T) {
	service, repo := newTestService()

	_, err := service.Authenticate(context.Background(), "anon-name")

	require.NoError(t, err)
	assert.Nil(t, repo.users["s2"].DisplayName)
}

func TestAuthenticate_InvalidToken(t *testing.T) {
	service, repo := newTestService()

	session, err := service.Authenticate(context.Background(), "forged")

	assert.Nil(t, session)
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
	assert.Empty(t, repo.users)
}

func TestAuthenticate_ProfileSyncFails(t *testing.T) {
	service, repo := newTestService()
	repo.upsertErr = errors.New("database error")

	_, err := service.Authenticate(context.Background(), "student-token")

	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotAuthenticated)
}

func TestResolveRole(t *testing.T) {
	service, repo := newTestService()
	repo.roles["staff-1"] = []domain.RoleAssignment{{UserID: "staff-1", Role: domain.RoleStaff}}

	role, err := service.ResolveRole(context.Background(), "staff-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleStaff, role)

	role, err = service.ResolveRole(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleStudent, role, "no row defaults to student")
}

func TestResolveRoles_EmptySetForRolelessUser(t *testing.T) {
	service, _ := newTestService()

	roles, err := service.ResolveRoles(context.Background(), "nobody")

	require.NoError(t, err)
	assert.Empty(t, roles)
}

func TestResolve_RequiresIdentity(t *testing.T) {
	service, _ := newTestService()

	_, err := service.ResolveRole(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)

	_, err = service.ResolveRoles(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
}

func TestResolveRole_StoreError(t *testing.T) {
	service, repo := newTestService()
	repo.getRolesErr = errors.New("connection refused")

	_, err := service.ResolveRole(context.Background(), "s1")

	require.Error(t, err)
	assert.Equal(t, domain.CodeInternal, domain.ErrorCode(err))
}

func TestGetUserWithRole(t *testing.T) {
	service, repo := newTestService()
	repo.users["a1"] = &domain.User{ID: "a1", Email: "admin@example.com"}
	repo.roles["a1"] = []domain.RoleAssignment{{UserID: "a1", Role: domain.RoleAdmin}}

	user, err := service.GetUserWithRole(context.Background(), "a1")

	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", user.Email)
	assert.Equal(t, domain.RoleAdmin, user.Role)
}

func TestGetUser(t *testing.T) {
	service, repo := newTestService()
	repo.users["s1"] = &domain.User{ID: "s1", Email: "s1@example.com"}

	user, err := service.GetUser(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1@example.com", user.Email)

	_, err = service.GetUser(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = service.GetUser(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
}

func TestGetUserWithRole_UnknownUser(t *testing.T) {
	service, _ := newTestService()

	_, err := service.GetUserWithRole(context.Background(), "missing")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetUsersByIDs(t *testing.T) {
	service, repo := newTestService()
	repo.users["s1"] = &domain.User{ID: "s1", Email: "s1@example.com"}

	users, err := service.GetUsersByIDs(context.Background(), []string{"s1", "missing"})

	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, "s1@example.com", users["s1"].Email)
}
