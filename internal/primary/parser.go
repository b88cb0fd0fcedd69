package primary

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/septivank/meter-reconciler/internal/reading"
)

// Cell markers used by the counters page
const (
	attrMeterID = "data-meter-id"
	attrField   = "data-field"

	fieldService          = "service"
	fieldSerial           = "serial"
	fieldNextVerification = "next_verification"
	fieldLastDate         = "last_date"
	fieldLastValue        = "last_value"
	fieldCurrentDate      = "current_date"
	fieldCurrent          = "current"
	fieldAskue            = "askue"
)

// readingsFromDocument extracts meter records from the counters page. Records
// get sequential ids starting at 1 in page order
func readingsFromDocument(doc *html.Node) []reading.MeterReading {
	var readings []reading.MeterReading
	for _, row := range findAll(doc, func(n *html.Node) bool {
		return n.DataAtom == atom.Tr && hasAttr(n, attrMeterID)
	}) {
		readings = append(readings, parseRow(len(readings)+1, row))
	}
	return readings
}

func parseRow(id int, row *html.Node) reading.MeterReading {
	cells := make(map[string]*html.Node)
	for _, td := range findAll(row, func(n *html.Node) bool { return n.DataAtom == atom.Td && hasAttr(n, attrField) }) {
		cells[attr(td, attrField)] = td
	}
	text := func(field string) string {
		if td, ok := cells[field]; ok {
			return textContent(td)
		}
		return ""
	}

	r := reading.NewMeterReading(id, attr(row, attrMeterID), text(fieldService), text(fieldSerial))
	r.NextVerificationDate = text(fieldNextVerification)
	r.LastReading = reading.LastReading{
		Date:  text(fieldLastDate),
		Value: text(fieldLastValue),
	}
	r.CurrentReading.Date = text(fieldCurrentDate)

	if td, ok := cells[fieldCurrent]; ok {
		if input := findFirst(td, isElement(atom.Input)); input != nil {
			r.CurrentReading.Value = strings.TrimSpace(attr(input, "value"))
			if name := attr(input, "name"); name != "" {
				r.CurrentReading.InputFieldName = name
			}
		} else {
			r.CurrentReading.Value = textContent(td)
		}
	}

	if td, ok := cells[fieldAskue]; ok {
		if a := findFirst(td, isElement(atom.A)); a != nil {
			r.AskueLink = attr(a, "href")
		}
	}

	return r
}

// hasLoginForm reports whether the page still asks for a password
func hasLoginForm(doc *html.Node) bool {
	return findFirst(doc, func(n *html.Node) bool {
		return n.DataAtom == atom.Input && attr(n, "type") == "password"
	}) != nil
}

func isElement(a atom.Atom) func(*html.Node) bool {
	return func(n *html.Node) bool { return n.DataAtom == a }
}

func findAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func findFirst(root *html.Node, match func(*html.Node) bool) *html.Node {
	if root.Type == html.ElementNode && match(root) {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if n := findFirst(c, match); n != nil {
			return n
		}
	}
	return nil
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// textContent returns the element's text with whitespace runs collapsed
func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
