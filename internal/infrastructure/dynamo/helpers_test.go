package dynamo

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-user-registration/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrKey(t *testing.T) {
	k := strKey(fieldUserID, "u-1")
	require.Len(t, k, 1)
	v, ok := k["user_id"].(*types.AttributeValueMemberS)
	require.True(t, ok)
	assert.Equal(t, "u-1", v.Value)
}

func TestUserItem_UsesIndexedAttributeNames(t *testing.T) {
	u := &domain.User{UserID: "u-1", Email: "alice@example.com", PasswordHash: "h", CreatedAt: time.Now().UTC()}
	item, err := attributevalue.MarshalMap(u)
	require.NoError(t, err)

	assert.Contains(t, item, fieldUserID)
	assert.Contains(t, item, fieldEmail)
	assert.Contains(t, item, "password_hash", "hash is stored even though it is hidden from JSON")
	assert.Contains(t, item, "is_active")
}

func TestUnmarshalUser_BadItem(t *testing.T) {
	_, err := unmarshalUser(map[string]types.AttributeValue{
		"is_active": &types.AttributeValueMemberS{Value: "not-a-bool"},
	})
	assert.ErrorContains(t, err, "unmarshal user")
}
