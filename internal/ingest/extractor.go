package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/david/estate-finder/internal/models"
)

// ExtractionRules are the thresholds the extractor gates and estimates with.
type ExtractionRules struct {
	MinPrice       int64 `yaml:"min_price"`
	MinLandArea    int   `yaml:"min_land_area"`
	LandDefault    int   `yaml:"land_default"`
	LandRatio      int   `yaml:"land_ratio"`
	DescriptionMax int   `yaml:"description_max"`
	MaxListings    int   `yaml:"max_listings"`
}

func DefaultExtractionRules() ExtractionRules {
	return ExtractionRules{
		MinPrice:       500000,
		MinLandArea:    5000,
		LandDefault:    8000,
		LandRatio:      20,
		DescriptionMax: 500,
		MaxListings:    50,
	}
}

// Extractor turns listing fragments from one source into property records.
type Extractor struct {
	Source    string
	BaseURL   string
	Selectors SelectorConfig
	Rules     ExtractionRules
	Features  []FeatureRule
	Types     []TypeRule

	now    func() time.Time
	logger *zap.Logger
}

func NewExtractor(src SourceConfig, rules ExtractionRules, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		Source:    src.Name,
		BaseURL:   src.BaseURL,
		Selectors: src.Selectors,
		Rules:     rules,
		Features:  FeatureRules,
		Types:     TypeRules,
		now:       time.Now,
		logger:    logger,
	}
}

// find tries the primary selector and falls back to the alternate markup.
func find(sel *goquery.Selection, s Selector) *goquery.Selection {
	found := sel.Find(s.Primary)
	if found.Length() == 0 && s.Fallback != "" {
		found = sel.Find(s.Fallback)
	}
	return found
}

// itemText joins list items with commas so adjacent features never run
// together; other elements yield their plain text.
func itemText(sel *goquery.Selection) string {
	items := sel.Find("li")
	if items.Length() == 0 {
		return cleanText(sel.Text())
	}
	parts := make([]string, 0, items.Length())
	items.Each(func(_ int, li *goquery.Selection) {
		if t := cleanText(li.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, ", ")
}

// Listings returns the listing containers of a search results page.
func (e *Extractor) Listings(doc *goquery.Document) *goquery.Selection {
	return find(doc.Selection, e.Selectors.Listing)
}

// Extract parses one listing. It returns (nil, nil) when the listing does
// not meet the minimum price or land criteria, and an *ExtractionError
// when it cannot be parsed.
func (e *Extractor) Extract(listing *goquery.Selection, location string) (rec *models.PropertyRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec = nil
			err = &ExtractionError{Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	titleSel := find(listing, e.Selectors.Title).First()
	if titleSel.Length() == 0 {
		return nil, &ExtractionError{Err: errors.New("no title element")}
	}
	title := sanitizeText(titleSel.Text())
	href, _ := titleSel.Attr("href")
	if strings.TrimSpace(href) == "" {
		return nil, &ExtractionError{Err: fmt.Errorf("listing %q has no link", title)}
	}
	link := CanonicalizeURL(resolveURL(e.BaseURL, href))

	priceText := "0"
	if p := find(listing, e.Selectors.Price).First(); p.Length() > 0 {
		priceText = cleanText(p.Text())
	}
	price := ExtractNumber(priceText)

	description := ""
	if d := find(listing, e.Selectors.Description).First(); d.Length() > 0 {
		description = sanitizeText(d.Text())
	}

	featuresText := ""
	if f := find(listing, e.Selectors.Features).First(); f.Length() > 0 {
		featuresText = strings.ToLower(itemText(f))
	}

	built := ExtractBuiltArea(featuresText)
	land := EstimateLandArea(ExtractLandArea(featuresText), built, e.Rules.LandRatio, e.Rules.LandDefault)

	rec = &models.PropertyRecord{
		ID:           PropertyID(link),
		Title:        title,
		Location:     location,
		Price:        price,
		BuiltArea:    built,
		LandArea:     land,
		PropertyType: ClassifyType(title+" "+description, e.Types),
		Description:  TruncateText(description, e.Rules.DescriptionMax),
		Source:       e.Source,
		URL:          link,
		DiscoveredAt: e.now().UTC(),
		Status:       models.StatusActive,
	}
	applyFeatures(rec, DetectFeatures(title+" "+description+" "+featuresText, e.Features))

	if price < e.Rules.MinPrice || land < e.Rules.MinLandArea {
		return nil, nil
	}
	return rec, nil
}

// ExtractPage extracts up to limit listings from a results page, pacing
// after each one. Listings that fail to parse are logged and skipped.
func (e *Extractor) ExtractPage(ctx context.Context, doc *goquery.Document, location string, limit int, pacer *Pacer) ([]models.PropertyRecord, error) {
	listings := e.Listings(doc)
	if limit <= 0 {
		limit = e.Rules.MaxListings
	}

	var out []models.PropertyRecord
	var stopErr error
	listings.EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= limit {
			return false
		}
		rec, err := e.Extract(s, location)
		if err != nil {
			e.logger.Warn("error parsing listing", zap.String("location", location), zap.Int("index", i), zap.Error(err))
		} else if rec != nil {
			out = append(out, *rec)
		}
		if err := pacer.AfterListing(ctx); err != nil {
			stopErr = err
			return false
		}
		return true
	})
	if stopErr != nil {
		return nil, stopErr
	}
	return out, nil
}
