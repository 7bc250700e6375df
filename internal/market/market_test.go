package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBundledCatalogue(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)
	require.Len(t, c.Items, 6)

	byID := map[string]Price{}
	for _, p := range c.Items {
		byID[p.ID] = p
	}
	assert.Equal(t, "₹8700/Q", byID["ajwan"].Display())
	assert.Equal(t, "+12%", byID["ajwan"].ChangeLabel())
	assert.Equal(t, "-5%", byID["amla"].ChangeLabel())
	assert.Equal(t, "₹2800/100", byID["coconut"].Display())
	assert.Equal(t, "0%", byID["coconut"].ChangeLabel())
	assert.Equal(t, "Idukki", byID["pepper"].Location)
}

func TestFilter(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	spices := c.Filter("spice")
	require.Len(t, spices, 1)
	assert.Equal(t, "Pepper", spices[0].Name)
	assert.Len(t, c.Filter(""), 6)
	assert.Empty(t, c.Filter("Rubber"))
}

func TestParseRejectsIncompleteItems(t *testing.T) {
	_, err := Parse([]byte("items:\n  - name: Rubber\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("items: [unterminated"))
	assert.Error(t, err)
}
