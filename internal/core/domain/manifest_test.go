package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestManifest_Items tests flattening order
func TestManifest_Items(t *testing.T) {
	m := NewManifest("2024")
	m.Add(ManifestItem{Name: "CVE-2024-1001.json", SubPartition: "1xxx"})
	m.Add(ManifestItem{Name: "CVE-2024-0002.json", SubPartition: "0xxx"})
	m.Add(ManifestItem{Name: "CVE-2024-0001.json", SubPartition: "0xxx"})

	items := m.Items()
	assert.Equal(t, 3, m.Len())
	assert.Equal(t, "CVE-2024-0002.json", items[0].Name)
	assert.Equal(t, "CVE-2024-0001.json", items[1].Name)
	assert.Equal(t, "CVE-2024-1001.json", items[2].Name)
}

// TestManifest_Nil tests a nil manifest behaves as empty
func TestManifest_Nil(t *testing.T) {
	var m *Manifest
	assert.Nil(t, m.Items())
	assert.Zero(t, m.Len())
}
