package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	budget "grants-cloud/internal/budget/domain"
)

func TestPermissionTable(t *testing.T) {
	cases := []struct {
		role   Role
		action Action
		want   bool
	}{
		{RoleViewer, ActionView, true},
		{RoleViewer, ActionExport, true},
		{RoleViewer, ActionCreate, false},
		{RoleEditor, ActionEdit, true},
		{RoleEditor, ActionDelete, false},
		{RoleAdmin, ActionDelete, true},
		{Role(""), ActionView, false},
	}
	for _, tc := range cases {
		for _, module := range Modules {
			assert.Equal(t, tc.want, HasPermission(tc.role, module, tc.action), "%s %s %s", tc.role, module, tc.action)
		}
	}
	assert.False(t, HasPermission(RoleAdmin, Module("payroll"), ActionView))
	assert.False(t, HasPermission(RoleAdmin, ModuleGrants, Action("approve")))
	assert.True(t, HasModuleAccess(RoleViewer, ModuleReports))
}

func TestRequire(t *testing.T) {
	_, err := Require(context.Background(), ModuleEngagements, ActionView)
	var perr *budget.PermissionError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "engagements", perr.Module)

	ctx := WithIdentity(context.Background(), Identity{Subject: "u", Role: RoleViewer})
	_, err = Require(ctx, ModuleEngagements, ActionCreate)
	require.ErrorIs(t, err, budget.ErrPermission)

	id, err := Require(ctx, ModuleEngagements, ActionView)
	require.NoError(t, err)
	assert.Equal(t, "u", id.Subject)
}

func TestIssueAndParseJWT(t *testing.T) {
	secret := []byte("s3cret")
	token, err := IssueJWT(Identity{
		Subject:    "u-7",
		FullName:   "Fatou Ndiaye",
		Role:       RoleEditor,
		Profession: budget.ProfessionNationalCoordinator,
	}, secret, time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWT(token, secret)
	require.NoError(t, err)
	id := claims.Identity()
	assert.Equal(t, RoleEditor, id.Role)
	assert.Equal(t, budget.ProfessionNationalCoordinator, id.Profession)
	assert.Equal(t, budget.Signer{FullName: "Fatou Ndiaye", Profession: budget.ProfessionNationalCoordinator}, id.Signer())

	_, err = ParseJWT(token, []byte("other"))
	require.Error(t, err)
}

func TestPolicyRequiredModule(t *testing.T) {
	policy := NewDefaultPolicy(nil, nil)
	cases := map[string]Module{
		"/api/v1/grants":                        ModuleGrants,
		"/api/v1/grants/g-1/amount":             ModuleGrants,
		"/api/v1/grants/g-1/lines/l-1/sublines": ModuleBudgetPlanning,
		"/api/v1/grants/g-1/report.pdf":         ModuleReports,
		"/api/v1/engagements/e-1/approvals/x":   ModuleEngagements,
		"/api/v1/payments":                      ModuleTracking,
	}
	for path, want := range cases {
		req := newRequest(path)
		got, ok := policy.RequiredModule(req)
		require.True(t, ok, path)
		assert.Equal(t, want, got, path)
	}
	_, ok := policy.RequiredModule(newRequest("/healthz"))
	assert.False(t, ok)
}

func TestPermissionsListing(t *testing.T) {
	viewer := Permissions(RoleViewer)
	assert.Equal(t, []Action{ActionView, ActionViewDetails, ActionExport}, viewer[ModuleEngagements])

	admin := Permissions(RoleAdmin)
	assert.Len(t, admin, len(Modules))
	assert.Contains(t, admin[ModuleGrants], ActionDelete)

	assert.Empty(t, Permissions(Role("guest")))
}
