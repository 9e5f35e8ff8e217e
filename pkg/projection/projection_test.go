package projection_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auriga-id/auriga/pkg/apperror"
	"github.com/auriga-id/auriga/pkg/command"
	"github.com/auriga-id/auriga/pkg/domain"
	"github.com/auriga-id/auriga/pkg/events"
	"github.com/auriga-id/auriga/pkg/eventstore/sqlite"
	"github.com/auriga-id/auriga/pkg/projection"
	"github.com/auriga-id/auriga/pkg/query"
)

const testInstance = "inst-1"

// fixture wires the write side, the projection engine and the read side on
// one in-memory database, the way the serve command does.
type fixture struct {
	store   *sqlite.Store
	cmds    *command.Commands
	manager *projection.Manager
	queries *query.Queries
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlite.New(sqlite.WithMemoryDatabase())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, projection.Migrate(store.DB()))

	return &fixture{
		store:   store,
		cmds:    command.New(store),
		manager: projection.NewManager(store.DB(), store, store, projection.DefaultHandlers()),
		queries: query.New(store.DB()),
	}
}

func (f *fixture) catchUp(t *testing.T) {
	t.Helper()
	require.NoError(t, f.manager.CatchUp(context.Background(), testInstance))
}

func TestOrgProjection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.cmds.AddOrg(ctx, testInstance, "ACME")
	require.NoError(t, err)
	_, err = f.cmds.ChangeOrg(ctx, testInstance, created.ID, "ACME GmbH")
	require.NoError(t, err)
	_, err = f.cmds.DeactivateOrg(ctx, testInstance, created.ID)
	require.NoError(t, err)
	_, err = f.cmds.ReactivateOrg(ctx, testInstance, created.ID)
	require.NoError(t, err)

	f.catchUp(t)

	org, err := f.queries.OrgByID(ctx, testInstance, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "ACME GmbH", org.Name)
	assert.Equal(t, "active", org.State)

	// Catching up again must not change anything; the checkpoint skips
	// already applied events.
	f.catchUp(t)
	again, err := f.queries.OrgByID(ctx, testInstance, created.ID)
	require.NoError(t, err)
	assert.Equal(t, org.Sequence, again.Sequence)
}

func TestOrgDomainProjection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.cmds.AddOrg(ctx, testInstance, "acme")
	require.NoError(t, err)
	_, err = f.cmds.AddOrgDomain(ctx, testInstance, created.ID, "example.com")
	require.NoError(t, err)

	f.catchUp(t)

	domains, err := f.queries.OrgDomains(ctx, testInstance, created.ID)
	require.NoError(t, err)
	require.Len(t, domains, 1)
	assert.Equal(t, "example.com", domains[0].Domain)
	assert.False(t, domains[0].IsVerified)

	// Unverified domains do not resolve an org.
	_, err = f.queries.OrgByDomain(ctx, testInstance, "example.com")
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestUserProjection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.cmds.AddHuman(ctx, testInstance, "org-1", command.AddHuman{
		Username:  "ada",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
	})
	require.NoError(t, err)

	f.catchUp(t)

	user, err := f.queries.UserByUsername(ctx, testInstance, "ada")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)
	assert.Equal(t, "org-1", user.ResourceOwner)
	assert.Equal(t, "Ada Lovelace", user.DisplayName)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.False(t, user.IsEmailVerified)
}

func TestAppProjection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	project, err := f.cmds.AddProject(ctx, testInstance, "org-1", "crm", false, false)
	require.NoError(t, err)
	app, err := f.cmds.AddOIDCApp(ctx, testInstance, project.ID, command.AddOIDCApp{
		Name:           "web client",
		AppType:        domain.OIDCAppTypeWeb,
		AuthMethodType: domain.OIDCAuthMethodTypeNone,
		RedirectURIs:   []string{"https://app.example.com/callback"},
	})
	require.NoError(t, err)

	f.catchUp(t)

	stored, err := f.queries.OIDCAppByClientID(ctx, testInstance, app.ClientID)
	require.NoError(t, err)
	assert.Equal(t, app.AppID, stored.AppID)
	assert.Equal(t, project.ID, stored.ProjectID)
	assert.Equal(t, "oidc", stored.Type)
	assert.Equal(t, "active", stored.State)
	assert.Equal(t, []string{"https://app.example.com/callback"}, stored.RedirectURIs)
}

func TestSessionProjectionFansOutBulkTermination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.cmds.AddHuman(ctx, testInstance, "org-1", command.AddHuman{
		Username:  "ada",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := f.cmds.CreateSession(ctx, testInstance, "org-1", user.ID, "agent", "client-1", time.Hour)
		require.NoError(t, err)
	}
	// A session of another user stays untouched.
	other, err := f.cmds.CreateSession(ctx, testInstance, "org-1", "user-other", "agent", "client-1", time.Hour)
	require.NoError(t, err)

	f.catchUp(t)
	active, err := f.queries.SessionsByUser(ctx, testInstance, user.ID, true)
	require.NoError(t, err)
	assert.Len(t, active, 3)

	_, err = f.cmds.TerminateAllUserSessions(ctx, testInstance, user.ID, "credentials rotated")
	require.NoError(t, err)
	f.catchUp(t)

	active, err = f.queries.SessionsByUser(ctx, testInstance, user.ID, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := f.queries.SessionsByUser(ctx, testInstance, user.ID, false)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for _, session := range all {
		assert.Equal(t, "terminated", session.State)
	}

	otherSession, err := f.queries.SessionByID(ctx, testInstance, other.ID)
	require.NoError(t, err)
	assert.Equal(t, "active", otherSession.State)
}

func TestSessionProjectionRecordsFactors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.cmds.CreateSession(ctx, testInstance, "org-1", "user-1", "agent", "", time.Hour)
	require.NoError(t, err)
	_, err = f.cmds.SetSessionFactor(ctx, testInstance, created.ID, domain.AuthMethodTypePassword)
	require.NoError(t, err)
	_, err = f.cmds.SetSessionFactor(ctx, testInstance, created.ID, domain.AuthMethodTypeTOTP)
	require.NoError(t, err)

	f.catchUp(t)

	session, err := f.queries.SessionByID(ctx, testInstance, created.ID)
	require.NoError(t, err)
	assert.Contains(t, session.Factors, "password")
	assert.Contains(t, session.Factors, "totp")
}

func TestSMTPProjectionNeverStoresSecrets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.cmds.AddSMTPConfig(ctx, testInstance, "org-1", command.AddSMTPConfig{
		Description:   "primary",
		Host:          "smtp.example.com:587",
		User:          "mailer",
		Password:      "hunter2",
		SenderAddress: "noreply@example.com",
	})
	require.NoError(t, err)
	_, err = f.cmds.ActivateSMTPConfig(ctx, testInstance, "org-1", created.ID)
	require.NoError(t, err)

	f.catchUp(t)

	config, err := f.queries.ActiveSMTPConfig(ctx, testInstance, "org-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, config.ID)
	assert.Equal(t, "smtp.example.com:587", config.Host)
	assert.Equal(t, "mailer", config.User)

	// The password column does not exist in the read model; probe the row.
	var count int
	err = f.store.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info('smtp_configs_projection') WHERE name LIKE '%password%'`).
		Scan(&count)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPolicyProjectionResolvesOrgBeforeInstance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	org, err := f.cmds.AddOrg(ctx, testInstance, "acme")
	require.NoError(t, err)

	_, err = f.cmds.AddInstancePolicy(ctx, testInstance, domain.PolicyTypePasswordComplexity,
		events.PolicyPayload{PasswordComplexity: &domain.PasswordComplexityPolicy{MinLength: 8}})
	require.NoError(t, err)

	f.catchUp(t)

	resolved, err := f.queries.PolicyByOrg(ctx, testInstance, org.ID, domain.PolicyTypePasswordComplexity)
	require.NoError(t, err)
	assert.True(t, resolved.IsDefault)

	_, err = f.cmds.AddOrgPolicy(ctx, testInstance, org.ID, domain.PolicyTypePasswordComplexity,
		events.PolicyPayload{PasswordComplexity: &domain.PasswordComplexityPolicy{MinLength: 12}})
	require.NoError(t, err)

	f.catchUp(t)

	resolved, err = f.queries.PolicyByOrg(ctx, testInstance, org.ID, domain.PolicyTypePasswordComplexity)
	require.NoError(t, err)
	assert.False(t, resolved.IsDefault)
}

func TestWebKeyProjection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.cmds.GenerateWebKey(ctx, testInstance)
	require.NoError(t, err)
	_, err = f.cmds.ActivateWebKey(ctx, testInstance, first.KeyID)
	require.NoError(t, err)

	f.catchUp(t)

	active, err := f.queries.ActiveWebKey(ctx, testInstance)
	require.NoError(t, err)
	assert.Equal(t, first.KeyID, active.ID)
	assert.Equal(t, "ES256", active.Algorithm)
	assert.NotEmpty(t, active.PublicKey)

	keys, err := f.queries.WebKeys(ctx, testInstance)
	require.NoError(t, err)
	require.Len(t, keys, 1)
}

func TestOrgRemovalCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	org, err := f.cmds.AddOrg(ctx, testInstance, "acme")
	require.NoError(t, err)
	_, err = f.cmds.AddOrgDomain(ctx, testInstance, org.ID, "example.com")
	require.NoError(t, err)

	f.catchUp(t)

	_, err = f.cmds.RemoveOrg(ctx, testInstance, org.ID)
	require.NoError(t, err)

	f.catchUp(t)

	_, err = f.queries.OrgByID(ctx, testInstance, org.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))

	domains, err := f.queries.OrgDomains(ctx, testInstance, org.ID)
	require.NoError(t, err)
	assert.Empty(t, domains)
}

func TestRebuildRestoresReadModelFromLog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	org, err := f.cmds.AddOrg(ctx, testInstance, "Phoenix")
	require.NoError(t, err)
	f.catchUp(t)

	// Damage the read model out of band; the log stays the truth.
	_, err = f.store.DB().ExecContext(ctx, `
		UPDATE organizations_projection SET name = 'damaged'
		WHERE instance_id = ? AND id = ?`,
		testInstance, org.ID)
	require.NoError(t, err)

	require.NoError(t, f.manager.Rebuild(ctx, testInstance, "organizations"))

	stored, err := f.queries.OrgByID(ctx, testInstance, org.ID)
	require.NoError(t, err)
	assert.Equal(t, "Phoenix", stored.Name)
}

func TestRebuildUnknownProjection(t *testing.T) {
	f := newFixture(t)
	err := f.manager.Rebuild(context.Background(), testInstance, "no-such-projection")
	require.Error(t, err)
}

func TestMemberProjectionTracksGrantMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	project, err := f.cmds.AddProject(ctx, testInstance, "org-1", "crm", false, false)
	require.NoError(t, err)
	_, err = f.cmds.AddProjectRole(ctx, testInstance, project.ID, "reader", "Reader", "")
	require.NoError(t, err)
	_, err = f.cmds.AddProjectRole(ctx, testInstance, project.ID, "writer", "Writer", "")
	require.NoError(t, err)

	grant, err := f.cmds.AddProjectGrant(ctx, testInstance, project.ID, "org-2", []string{"reader", "writer"})
	require.NoError(t, err)
	_, err = f.cmds.AddProjectGrantMember(ctx, testInstance, project.ID, grant.GrantID, "user-1", []string{"reader"})
	require.NoError(t, err)

	f.catchUp(t)

	roles, err := f.queries.ProjectGrantMemberRoles(ctx, testInstance, project.ID, grant.GrantID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"reader"}, roles)

	// Grant memberships do not leak into the direct project members.
	_, err = f.queries.ProjectMemberRoles(ctx, testInstance, project.ID, "user-1")
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))

	_, err = f.cmds.ChangeProjectGrantMember(ctx, testInstance, project.ID, grant.GrantID, "user-1", []string{"reader", "writer"})
	require.NoError(t, err)
	f.catchUp(t)

	roles, err = f.queries.ProjectGrantMemberRoles(ctx, testInstance, project.ID, grant.GrantID, "user-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"reader", "writer"}, roles)

	_, err = f.cmds.RemoveProjectGrantMember(ctx, testInstance, project.ID, grant.GrantID, "user-1")
	require.NoError(t, err)
	f.catchUp(t)

	_, err = f.queries.ProjectGrantMemberRoles(ctx, testInstance, project.ID, grant.GrantID, "user-1")
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestWebKeyProjectionKeepsOneActiveKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.cmds.GenerateWebKey(ctx, testInstance)
	require.NoError(t, err)
	_, err = f.cmds.ActivateWebKey(ctx, testInstance, first.KeyID)
	require.NoError(t, err)

	second, err := f.cmds.GenerateWebKey(ctx, testInstance)
	require.NoError(t, err)
	_, err = f.cmds.ActivateWebKey(ctx, testInstance, second.KeyID)
	require.NoError(t, err)

	f.catchUp(t)

	active, err := f.queries.ActiveWebKey(ctx, testInstance)
	require.NoError(t, err)
	assert.Equal(t, second.KeyID, active.ID)

	keys, err := f.queries.WebKeys(ctx, testInstance)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	activeCount := 0
	for _, key := range keys {
		if key.State == "active" {
			activeCount++
		}
	}
	assert.Equal(t, 1, activeCount)
}
