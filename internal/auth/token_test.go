package auth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valetops/leads-service/internal/model"
)

func TestIssueAndParse(t *testing.T) {
	user := model.User{
		ID:    uuid.New(),
		Email: "admin@valetops.ae",
		Role:  model.RoleAdmin,
	}

	issuer := NewIssuer("test-secret")
	token, err := issuer.Issue(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	parser := NewParser("test-secret")
	principal, err := parser.Parse(token)
	require.NoError(t, err)

	assert.Equal(t, user.ID, principal.UserID)
	assert.Equal(t, user.Email, principal.Email)
	assert.Equal(t, model.RoleAdmin, principal.Role)
	assert.True(t, principal.IsAdmin())
}

func TestParseRejectsWrongSecret(t *testing.T) {
	issuer := NewIssuer("secret-a")
	token, err := issuer.Issue(model.User{ID: uuid.New(), Email: "u@x.com", Role: model.RoleUser})
	require.NoError(t, err)

	parser := NewParser("secret-b")
	_, err = parser.Parse(token)
	assert.Error(t, err)
}

func TestParseRejectsGarbage(t *testing.T) {
	parser := NewParser("test-secret")
	_, err := parser.Parse("not.a.token")
	assert.Error(t, err)
}
