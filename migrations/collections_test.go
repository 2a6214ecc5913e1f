package migrations

import (
	"strings"
	"testing"

	"github.com/pocketbase/pocketbase/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendance-guard/internal/models"
)

func TestNewCollectionAcceptsUUIDs(t *testing.T) {
	collection := newCollection("tamper_records")

	id, ok := collection.Fields.GetByName("id").(*core.TextField)
	require.True(t, ok)
	assert.Equal(t, idPattern, id.Pattern)
	assert.Equal(t, 36, id.Max)

	assert.NotNil(t, collection.Fields.GetByName("created"))
	assert.NotNil(t, collection.Fields.GetByName("updated"))
}

func TestChoiceKeepsOrder(t *testing.T) {
	field := choice("type", true, models.KindCheckin, models.KindCheckout)

	assert.Equal(t, []string{"checkin", "checkout"}, field.Values)
	assert.Equal(t, 1, field.MaxSelect)
	assert.True(t, field.Required)
}

func TestUniqueIndexes(t *testing.T) {
	collection := newCollection("device_bindings")
	collection.AddIndex("idx_device_bindings_device", true, "device_id", "")

	require.Len(t, collection.Indexes, 1)
	assert.True(t, strings.Contains(collection.Indexes[0], "UNIQUE"))
	assert.True(t, strings.Contains(collection.Indexes[0], "device_id"))
}
