package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

// A decoy table whose body mentions "Blueprint" precedes the real one; only
// header th cells may drive the selection.
const twoTablePage = `<html><body>
<table class="wikitable">
  <tr><th>Item</th><th>Price</th></tr>
  <tr><td>Blueprint fragment</td><td>120</td></tr>
</table>
<table class="wikitable">
  <tr><th>Blueprint</th><th>Workshop</th><th>Crafting Recipe</th></tr>
  <tr><td><a href="/wiki/Anvil">Anvil</a></td><td>Tier 2</td><td>3x Scrap</td></tr>
  <tr><td>Bolt Rifle</td><td>Tier 1</td></tr>
</table>
</body></html>`

func TestParseBlueprintTablePicksByHeader(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(twoTablePage))
	require.NoError(t, err)

	entries, err := parseBlueprintTable(doc)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "Anvil", entries[0]["blueprint_name"])
	assert.Equal(t, "Tier 2", entries[0]["workshop"])
	assert.Equal(t, "3x Scrap", entries[0]["crafting_recipe"])
	assert.Equal(t, "https://arcraiders.wiki/wiki/Anvil", entries[0]["blueprint_url"])

	// Short row padded to the header count.
	assert.Equal(t, "Bolt Rifle", entries[1]["blueprint_name"])
	assert.Empty(t, entries[1]["crafting_recipe"])
}

func TestHeaderMentions(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(twoTablePage))
	require.NoError(t, err)
	tables := findAll(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "table"
	})
	require.Len(t, tables, 2)

	assert.False(t, headerMentions(tables[0], "Blueprint"),
		"body text must not count")
	assert.True(t, headerMentions(tables[1], "Blueprint"))
}
