package support

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// LooksLikeHTML reports whether a source body is an HTML document rather
// than a plain text list.
func LooksLikeHTML(contentType string, body string) bool {
	if strings.Contains(strings.ToLower(contentType), "html") {
		return true
	}
	head := strings.ToLower(strings.TrimSpace(body))
	if len(head) > 512 {
		head = head[:512]
	}
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}

// ExtractProxyText flattens an HTML proxy list into lines NormalizeProxyLine
// understands: table rows whose first two cells hold ip and port become
// "ip:port", and every text block is kept on its own line.
func ExtractProxyText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	var builder strings.Builder

	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		ip := strings.TrimSpace(cells.Eq(0).Text())
		port := strings.TrimSpace(cells.Eq(1).Text())
		builder.WriteString(ip)
		builder.WriteString(":")
		builder.WriteString(port)
		builder.WriteString("\n")
	})

	doc.Find("pre, p, li, div, textarea").Each(func(_ int, block *goquery.Selection) {
		if block.Children().Length() > 0 && !block.Is("pre, textarea") {
			return
		}
		for _, field := range strings.Fields(block.Text()) {
			builder.WriteString(field)
			builder.WriteString("\n")
		}
	})

	return builder.String(), nil
}
