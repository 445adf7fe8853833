package access

import (
	"fmt"
	"testing"

	"reviewdesk/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestHasAccess_Table(t *testing.T) {
	roles := []models.Role{models.RoleSuperAdmin, models.RoleTenantAdmin, models.RoleUser, models.Role("owner"), models.Role("")}
	required := []models.Role{models.RoleSuperAdmin, models.RoleTenantAdmin, models.RoleUser}

	want := map[models.Role]map[models.Role]bool{
		models.RoleSuperAdmin:  {models.RoleSuperAdmin: true, models.RoleTenantAdmin: true, models.RoleUser: true},
		models.RoleTenantAdmin: {models.RoleSuperAdmin: false, models.RoleTenantAdmin: true, models.RoleUser: true},
		models.RoleUser:        {models.RoleSuperAdmin: false, models.RoleTenantAdmin: false, models.RoleUser: true},
		models.Role("owner"):   {models.RoleSuperAdmin: false, models.RoleTenantAdmin: false, models.RoleUser: false},
		models.Role(""):        {models.RoleSuperAdmin: false, models.RoleTenantAdmin: false, models.RoleUser: false},
	}

	count := 0
	for _, role := range roles {
		for _, req := range required {
			count++
			t.Run(fmt.Sprintf("%q requires %q", role, req), func(t *testing.T) {
				assert.Equal(t, want[role][req], HasAccess(role, req))
			})
		}
	}
	assert.Equal(t, 15, count)
}

func TestHasAccess_AnyRole(t *testing.T) {
	assert.True(t, HasAccess(models.RoleSuperAdmin, AnyRole))
	assert.True(t, HasAccess(models.RoleTenantAdmin, AnyRole))
	assert.True(t, HasAccess(models.RoleUser, AnyRole))
	assert.False(t, HasAccess(models.Role("guest"), AnyRole))
	assert.False(t, HasAccess(models.Role(""), AnyRole))
}

func TestHasAccess_UnknownRequirement(t *testing.T) {
	assert.False(t, HasAccess(models.RoleSuperAdmin, models.Role("root")))
}

func TestCanAssignRole(t *testing.T) {
	assert.True(t, CanAssignRole(models.RoleSuperAdmin, models.RoleTenantAdmin))
	assert.True(t, CanAssignRole(models.RoleSuperAdmin, models.RoleUser))
	assert.False(t, CanAssignRole(models.RoleSuperAdmin, models.RoleSuperAdmin))

	assert.True(t, CanAssignRole(models.RoleTenantAdmin, models.RoleTenantAdmin))
	assert.True(t, CanAssignRole(models.RoleTenantAdmin, models.RoleUser))
	assert.False(t, CanAssignRole(models.RoleTenantAdmin, models.RoleSuperAdmin))

	assert.False(t, CanAssignRole(models.RoleUser, models.RoleUser))
	assert.False(t, CanAssignRole(models.RoleTenantAdmin, models.Role("owner")))
}
