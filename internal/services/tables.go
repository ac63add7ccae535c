package services

import (
	"strconv"
	"strings"

	"kb-research-report/internal/models"
	"kb-research-report/internal/utils"

	"golang.org/x/net/html"
)

// tablePlaceholders are cell values treated as empty during row filtering
var tablePlaceholders = map[string]bool{
	"":    true,
	"-":   true,
	"na":  true,
	"n/a": true,
	"nan": true,
}

// ExtractTables pulls every usable <table> out of a parsed page, in document
// order. A table's title is its <caption> or the nearest preceding heading or
// paragraph ("Table" when none exists). Tables with no header column or fewer
// than two total rows are skipped; data rows keep only non-placeholder cells
// and a row with no surviving cell is dropped. A table left with zero data
// rows is omitted entirely.
func ExtractTables(root *html.Node) []models.Table {
	var tables []models.Table
	lastTitle := ""

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "h1", "h2", "h3", "h4", "h5", "h6", "p":
				if text := utils.NormalizeWhitespace(nodeText(n)); text != "" {
					lastTitle = text
				}
			case "table":
				if table, ok := parseTable(n, lastTitle); ok {
					tables = append(tables, table)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return tables
}

func parseTable(tableNode *html.Node, precedingTitle string) (models.Table, bool) {
	title := precedingTitle
	if caption := findCaption(tableNode); caption != "" {
		title = caption
	}
	if title == "" {
		title = "Table"
	}
	if len(title) > 120 {
		title = utils.TruncateChars(title, 120)
	}

	rows := collectRows(tableNode)
	// One header row plus at least one data row. A lone surviving data row
	// still carries signal; only header-only tables are rejected here.
	if len(rows) < 2 {
		return models.Table{}, false
	}

	header := rows[0]
	if len(header) < 1 {
		return models.Table{}, false
	}

	table := models.Table{Title: title, Header: header}
	for _, row := range rows[1:] {
		cells := make(map[string]string)
		for i, cell := range row {
			if tablePlaceholders[strings.ToLower(strings.TrimSpace(cell))] {
				continue
			}
			cells[strconv.Itoa(i)] = cell
		}
		if len(cells) > 0 {
			table.Values = append(table.Values, cells)
		}
	}
	if len(table.Values) == 0 {
		return models.Table{}, false
	}
	return table, true
}

// collectRows flattens thead/tbody/tfoot into an ordered list of cell rows
func collectRows(tableNode *html.Node) [][]string {
	var rows [][]string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "tr":
				var cells []string
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					if c.Type == html.ElementNode && (c.Data == "th" || c.Data == "td") {
						cells = append(cells, utils.NormalizeWhitespace(nodeText(c)))
					}
				}
				if len(cells) > 0 {
					rows = append(rows, cells)
				}
				return
			case "table":
				if n != tableNode {
					return // nested tables are ignored
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(tableNode)
	return rows
}

func findCaption(tableNode *html.Node) string {
	for c := tableNode.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "caption" {
			return utils.NormalizeWhitespace(nodeText(c))
		}
	}
	return ""
}
