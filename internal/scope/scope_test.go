package scope_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitcrm/orbit/internal/scope"
)

func TestMaster(t *testing.T) {
	sc := scope.Master()

	assert.True(t, sc.IsMaster)
	assert.Nil(t, sc.OrganizationID, "master scope carries no organization of its own")
	assert.Nil(t, sc.SalesID)
}

func TestOrganization(t *testing.T) {
	sc := scope.Organization(42)

	assert.False(t, sc.IsMaster)
	require.NotNil(t, sc.OrganizationID)
	assert.Equal(t, int64(42), *sc.OrganizationID)
	assert.Nil(t, sc.SalesID)
}

func TestSession(t *testing.T) {
	sc := scope.Session(42, 7)

	assert.False(t, sc.IsMaster)
	require.NotNil(t, sc.OrganizationID)
	assert.Equal(t, int64(42), *sc.OrganizationID)
	require.NotNil(t, sc.SalesID)
	assert.Equal(t, int64(7), *sc.SalesID)
}

func TestContextRoundTrip(t *testing.T) {
	ctx := scope.WithContext(context.Background(), scope.Organization(3))

	sc, ok := scope.FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(3), *sc.OrganizationID)
}

func TestFromContext_Unset(t *testing.T) {
	_, ok := scope.FromContext(context.Background())
	assert.False(t, ok, "a request without a resolved scope must not get one by default")
}
