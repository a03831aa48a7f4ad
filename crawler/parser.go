package crawler

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"lpsn-harvester/utils"
)

// LinkExtractor pulls the links the pipeline follows out of LPSN pages.
type LinkExtractor interface {
	// ExtractSpeciesLinks returns absolute species URLs and raw subspecies
	// hrefs from a listing page, in document order.
	ExtractSpeciesLinks(doc *goquery.Document) (species, subspecies []string, err error)
	// DownloadLink returns the absolute FASTA download URL from a species page.
	DownloadLink(doc *goquery.Document) (string, bool)
}

const (
	listSelector       = "ul.main-list"
	speciesSelector    = "a.last-child.color-species"
	subspeciesSelector = "a.color-subspecies"
	downloadSelector   = "a.fasta-download"
)

// LPSNParser matches the markup of lpsn.dsmz.de.
type LPSNParser struct {
	// SiteRoot is the "scheme://host/" species and download hrefs resolve against.
	SiteRoot string
}

func NewLPSNParser(siteRoot string) *LPSNParser {
	return &LPSNParser{SiteRoot: siteRoot}
}

func (p *LPSNParser) ExtractSpeciesLinks(doc *goquery.Document) ([]string, []string, error) {
	list := doc.Find(listSelector).First()
	if list.Length() == 0 {
		return nil, nil, ErrNoListing
	}

	var species, subspecies []string
	list.Find("li").Each(func(i int, li *goquery.Selection) {
		if a := li.Find(speciesSelector).First(); a.Length() > 0 {
			href, _ := a.Attr("href")
			if strings.TrimSpace(href) == "" {
				return
			}
			if abs := utils.ResolveURL(p.SiteRoot, href); abs != "" {
				species = append(species, abs)
			}
			return
		}

		if a := li.Find(subspeciesSelector).First(); a.Length() > 0 {
			if href, ok := a.Attr("href"); ok {
				subspecies = append(subspecies, href)
			}
		}
	})

	return species, subspecies, nil
}

func (p *LPSNParser) DownloadLink(doc *goquery.Document) (string, bool) {
	href, ok := doc.Find(downloadSelector).First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return "", false
	}

	abs := utils.ResolveURL(p.SiteRoot, href)
	return abs, abs != ""
}
