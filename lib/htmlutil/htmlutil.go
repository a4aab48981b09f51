package htmlutil

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		getTextRecursive(child, buffer)
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

// CleanText drops non-printable characters, trims the string and collapses
// runs of whitespace into a single space.
func CleanText(s string) string {
	var out strings.Builder
	for _, c := range s {
		if unicode.IsPrint(c) || unicode.IsSpace(c) {
			out.WriteRune(c)
		}
	}
	cleaned := strings.TrimSpace(out.String())
	return innerWhitespace.ReplaceAllString(cleaned, " ")
}

// UnescapeAttr undoes the escaping applied to a JSON object that was embedded
// as a string literal inside markup: backslash escaped quotes first, then
// html entities.
func UnescapeAttr(s string) string {
	s = strings.ReplaceAll(s, `\"`, `"`)
	return html.UnescapeString(s)
}

func inputSelector(name string) string {
	return `input[name="` + name + `"], textarea[name="` + name + `"], select[name="` + name + `"]`
}

// InputValue returns the value of the first form control with the given name
// and whether one was found with a non-empty value.
func InputValue(doc *goquery.Document, name string) (string, bool) {
	sel := doc.Find(inputSelector(name)).First()
	if sel.Length() == 0 {
		return "", false
	}
	value := controlValue(sel)
	return value, value != ""
}

// InputValues returns the non-empty values of every form control with the
// given name in document order.
func InputValues(doc *goquery.Document, name string) []string {
	values := []string{}
	doc.Find(inputSelector(name)).Each(func(_ int, sel *goquery.Selection) {
		value := controlValue(sel)
		if value != "" {
			values = append(values, value)
		}
	})
	return values
}

func controlValue(sel *goquery.Selection) string {
	if goquery.NodeName(sel) == "textarea" {
		if value, ok := sel.Attr("value"); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
		return strings.TrimSpace(sel.Text())
	}
	value, _ := sel.Attr("value")
	return strings.TrimSpace(value)
}
