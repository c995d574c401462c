package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Len(t, c.Commodities, 8)
	assert.Equal(t, []string{"Jita", "Amarr", "Rens", "Hek", "Dodixie"}, c.HubNames())
	assert.Equal(t, int32(34), c.Commodities[0].ID)
	assert.Equal(t, int32(11399), c.Commodities[7].ID)
}

func TestHubSystems(t *testing.T) {
	jita, ok := Default().Hub("Jita")
	require.True(t, ok)
	assert.True(t, jita.HasSystem(30000142))
	assert.True(t, jita.HasSystem(30000144))
	assert.False(t, jita.HasSystem(30002187))
	assert.False(t, jita.HasSystem(0))
	assert.Equal(t, int32(30000144), jita.StructureSystem())

	solo := Hub{RegionID: 1, Name: "Solo", PrimarySystemID: 7}
	assert.Equal(t, int32(7), solo.StructureSystem())
	assert.False(t, solo.HasSystem(0))
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := `
commodities:
  - {id: 34, name: Tritanium}
hubs:
  - {region_id: 10000002, name: Jita, primary_system_id: 30000142}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Tritanium", c.Commodities[0].Name)
	assert.Equal(t, int32(0), c.Hubs[0].SecondarySystemID)
}

func TestLoadRejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := `
commodities:
  - {id: 34, name: Tritanium}
  - {id: 34, name: Again}
hubs:
  - {region_id: 1, name: A, primary_system_id: 2}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}
