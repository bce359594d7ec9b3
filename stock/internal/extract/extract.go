// Package extract turns the serialised stock page into raw inventory
// records. It runs on the host against parsed HTML rather than inside the
// browser, so the same code serves the readiness check and the final pass.
package extract

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/hazyhaar/gagstock/stock/inventory"
)

// Page selectors.
const (
	SectionSelector = ".stock-card-container"
	ItemSelector    = ".stock-item-card"
	NameSelector    = ".text-white.text-sm"
	HeadingSelector = "h3"
)

// Section binds a category to the heading label and the colour token used
// by its quantity badges.
type Section struct {
	Category inventory.Category
	Label    string
	Color    string
}

// Sections is the fixed page layout.
var Sections = []Section{
	{Category: inventory.Seeds, Label: "SEEDS STOCK", Color: "green"},
	{Category: inventory.Gear, Label: "GEAR STOCK", Color: "blue"},
	{Category: inventory.Eggs, Label: "EGG STOCK", Color: "yellow"},
}

// Selectors are the elements that must exist before extraction is worth
// attempting.
var Selectors = []string{NameSelector, ItemSelector, SectionSelector}

var countToken = regexp.MustCompile(`\d+x`)

func (s Section) quantitySelector() string {
	return fmt.Sprintf(".ml-2.font-medium.text-%s-400", s.Color)
}

// Parse reads an HTML document and extracts every section.
func Parse(r io.Reader, logger *slog.Logger) (inventory.Raw, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("extract: parse html: %w", err)
	}
	return Document(doc, logger), nil
}

// ParseString is Parse over an in-memory document.
func ParseString(s string, logger *slog.Logger) (inventory.Raw, error) {
	return Parse(strings.NewReader(s), logger)
}

// Document extracts all sections from an already parsed document. The
// result always carries the three category keys.
func Document(doc *goquery.Document, logger *slog.Logger) inventory.Raw {
	if logger == nil {
		logger = slog.Default()
	}
	raw := make(inventory.Raw, len(Sections))
	for _, sec := range Sections {
		raw[sec.Category] = extractSection(doc, sec, logger)
	}
	return raw
}

func extractSection(doc *goquery.Document, sec Section, logger *slog.Logger) []inventory.Record {
	recs := []inventory.Record{}
	qtySel := sec.quantitySelector()

	sectionsFor(doc, sec.Label).Each(func(_ int, section *goquery.Selection) {
		section.Find(ItemSelector).Each(func(i int, item *goquery.Selection) {
			nameEl := item.Find(NameSelector).First()
			if nameEl.Length() == 0 {
				logger.Debug("extract: item without name element", "section", sec.Label, "index", i)
				return
			}
			name := inventory.CleanName(labelText(nameEl))
			if name == "" {
				logger.Debug("extract: skipping unnamed item", "section", sec.Label, "index", i)
				return
			}

			qty := 0
			if q := nameEl.Find(qtySel).First(); q.Length() > 0 {
				qty = inventory.ExtractQuantity(q.Text())
			}
			if qty == 0 {
				logger.Debug("extract: zero quantity", "section", sec.Label, "item", name)
			}
			recs = append(recs, inventory.Record{Name: name, Quantity: qty})
		})
	})
	return recs
}

// sectionsFor returns the containers whose first heading mentions label.
func sectionsFor(doc *goquery.Document, label string) *goquery.Selection {
	return doc.Find(SectionSelector).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(s.Find(HeadingSelector).First().Text(), label)
	})
}

// labelText reads the item label: the first child node of the name
// element, which excludes the nested quantity badge. When that node is
// empty the full text up to the first count token is used instead.
func labelText(nameEl *goquery.Selection) string {
	if n := nameEl.Get(0); n != nil && n.FirstChild != nil {
		if t := beforeCount(nodeText(n.FirstChild)); strings.TrimSpace(t) != "" {
			return t
		}
	}
	return beforeCount(nameEl.Text())
}

func beforeCount(s string) string {
	if loc := countToken.FindStringIndex(s); loc != nil {
		return s[:loc[0]]
	}
	return s
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// Ready reports whether the page has rendered enough to extract: at least
// three section containers, with every section label present among their
// headings.
func Ready(doc *goquery.Document) bool {
	containers := doc.Find(SectionSelector)
	if containers.Length() < len(Sections) {
		return false
	}
	var headings []string
	containers.Each(func(_ int, s *goquery.Selection) {
		headings = append(headings, s.Find(HeadingSelector).First().Text())
	})
	for _, sec := range Sections {
		found := false
		for _, h := range headings {
			if strings.Contains(h, sec.Label) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ReadyString is Ready over serialised HTML. Parse failures count as not
// ready.
func ReadyString(s string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return false
	}
	return Ready(doc)
}
