// Scrape the ARC Raiders Blueprints wiki table into JSON objects.
//
// One-shot extraction: fetch the page, find the wikitable whose header row
// mentions "Blueprint", canonicalize the headers to snake_case keys, and
// write one JSON object per data row. Row lengths are normalized to the
// header count (short rows padded with "", long rows truncated).
//
// Usage:
//
//	go run ./tools/table_scraper -o blueprints_full.json
//	go run ./tools/table_scraper -url https://arcraiders.wiki/wiki/Blueprints
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const defaultURL = "https://arcraiders.wiki/wiki/Blueprints"

// Map messy/variant headers -> clean snake_case keys.
var headerMap = map[string]string{
	"blueprint":       "blueprint_name",
	"blueprint name":  "blueprint_name",
	"name":            "blueprint_name",
	"workshop":        "workshop",
	"crafting recipe": "crafting_recipe",
	"loot":            "loot",
	"harvester event": "harvester_event",
	"quest reward":    "quest_reward",
	"trials reward":   "trials_reward",
}

func main() {
	var url, output string
	flag.StringVar(&url, "url", defaultURL, "Source URL")
	flag.StringVar(&output, "o", "blueprints_full.json", "Output JSON path")
	flag.Parse()

	if err := run(url, output); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		os.Exit(1)
	}
}

func run(url, output string) error {
	doc, err := fetchDocument(url)
	if err != nil {
		return err
	}
	entries, err := parseBlueprintTable(doc)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(output)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(entries); err != nil {
		return err
	}

	fmt.Printf("Wrote %d rows to %s\n", len(entries), output)
	return nil
}

func fetchDocument(url string) (*html.Node, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ArcScraper/1.0)")
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %s", url, resp.Status)
	}
	return html.Parse(resp.Body)
}

// parseBlueprintTable picks the wikitable whose header mentions "Blueprint"
// (falling back to the first wikitable) and converts it to records.
func parseBlueprintTable(doc *html.Node) ([]map[string]string, error) {
	tables := findAll(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "table" &&
			strings.Contains(attr(n, "class"), "wikitable")
	})
	if len(tables) == 0 {
		return nil, fmt.Errorf("blueprints table not found")
	}
	table := tables[0]
	for _, t := range tables {
		if headerMentions(t, "Blueprint") {
			table = t
			break
		}
	}

	rows := findAll(table, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "tr"
	})
	if len(rows) == 0 {
		return nil, fmt.Errorf("blueprints table has no rows")
	}

	// Headers from the first row's th cells.
	var headers []string
	for _, th := range childCells(rows[0], "th") {
		headers = append(headers, cleanKey(nodeText(th)))
	}
	if len(headers) == 0 {
		return nil, fmt.Errorf("blueprints table has no header cells")
	}

	out := make([]map[string]string, 0, len(rows)-1)
	for _, tr := range rows[1:] {
		tds := childCells(tr, "td")
		if len(tds) == 0 {
			continue
		}
		cells := make([]string, len(headers))
		for i, td := range tds {
			if i >= len(headers) {
				break
			}
			cells[i] = nodeText(td)
		}

		record := make(map[string]string, len(headers)+1)
		for i, h := range headers {
			record[h] = cells[i]
		}
		// Capture a link for the blueprint (first column, usually).
		if link := cellLink(tds[0]); link != "" {
			record["blueprint_url"] = link
		}
		out = append(out, record)
	}
	return out, nil
}

// headerMentions reports whether any th cell in the table's first row
// contains the given text. Only the header row counts: a table whose body
// happens to mention the text must not win the selection.
func headerMentions(table *html.Node, text string) bool {
	rows := findAll(table, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "tr"
	})
	if len(rows) == 0 {
		return false
	}
	for _, th := range childCells(rows[0], "th") {
		if strings.Contains(nodeText(th), text) {
			return true
		}
	}
	return false
}

func cleanKey(header string) string {
	h := strings.ToLower(strings.Join(strings.Fields(header), " "))
	if mapped, ok := headerMap[h]; ok {
		return mapped
	}
	return strings.ReplaceAll(h, " ", "_")
}

// cellLink returns the absolute URL of the first anchor in the cell, or "".
func cellLink(td *html.Node) string {
	anchors := findAll(td, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "a" && attr(n, "href") != ""
	})
	if len(anchors) == 0 {
		return ""
	}
	href := attr(anchors[0], "href")
	if strings.HasPrefix(href, "/") {
		return "https://arcraiders.wiki" + href
	}
	return href
}

// --- small html.Node helpers ---

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if match(node) {
			out = append(out, node)
			return // no nested matches (tables in tables, anchors in anchors)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

// childCells returns the direct th/td cells of a tr, in order.
func childCells(tr *html.Node, tag string) []*html.Node {
	var out []*html.Node
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			out = append(out, c)
		}
	}
	return out
}

// nodeText flattens all text under n, collapsing whitespace runs to single
// spaces (line breaks inside a cell become spaces).
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			sb.WriteString(" ")
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
