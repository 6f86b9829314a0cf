// Package report builds the final site report from collected page records
// and renders it as JSON-ready structs, HTML, and optionally PDF.
package report

import (
	"math"
	"sort"
	"time"

	"github.com/bl4ck0w1/sitelynx/pkg/models"
)

// Aggregate computes the cross-page summaries over the crawl's records and
// assembles the SiteReport. The input slice is not modified; duplicate-title
// and duplicate-meta issues land on the copies inside the report.
func Aggregate(cfg models.AuditConfig, records []models.PageRecord, runID, state string) *models.SiteReport {
	pages := make([]models.PageRecord, len(records))
	copy(pages, records)

	duplicateTitles := duplicateGroups(pages, func(p *models.PageRecord) string {
		return p.Signals.Title
	})
	duplicateMetas := duplicateGroups(pages, func(p *models.PageRecord) string {
		return p.Signals.MetaDescription
	})
	markDuplicates(pages, duplicateTitles, models.IssueDuplicateTitle, func(p *models.PageRecord) string {
		return p.Signals.Title
	})
	markDuplicates(pages, duplicateMetas, models.IssueDuplicateMetaDesc, func(p *models.PageRecord) string {
		return p.Signals.MetaDescription
	})

	summary := models.ReportSummary{
		PagesCrawled:              len(pages),
		IssueCounts:               map[models.IssueKind]int{},
		DuplicateTitles:           duplicateTitles,
		DuplicateMetaDescriptions: duplicateMetas,
	}
	for i := range pages {
		p := &pages[i]
		if p.Failed() {
			summary.PagesFailed++
		} else if !p.Indexable {
			summary.NonIndexable++
		}
		for _, is := range p.Issues {
			summary.IssueCounts[is.Kind]++
		}
	}

	return &models.SiteReport{
		RunID:       runID,
		GeneratedAt: time.Now().UTC(),
		StartURL:    cfg.StartURL,
		State:       state,
		Parameters:  cfg,
		Pages:       pages,
		Summary:     summary,
		Security:    securitySummary(pages),
	}
}

// duplicateGroups maps exact field text to the URLs sharing it, keeping only
// groups with at least two members. Failed fetches and empty values are
// skipped; missing fields are their own issue kinds.
func duplicateGroups(pages []models.PageRecord, field func(*models.PageRecord) string) map[string][]string {
	groups := map[string][]string{}
	for i := range pages {
		p := &pages[i]
		if p.Failed() {
			continue
		}
		if v := field(p); v != "" {
			groups[v] = append(groups[v], pageURL(p))
		}
	}
	for v, urls := range groups {
		if len(urls) < 2 {
			delete(groups, v)
		}
	}
	return groups
}

func markDuplicates(pages []models.PageRecord, groups map[string][]string, kind models.IssueKind, field func(*models.PageRecord) string) {
	if len(groups) == 0 {
		return
	}
	for i := range pages {
		p := &pages[i]
		if p.Failed() {
			continue
		}
		if _, dup := groups[field(p)]; dup {
			p.Issues = append(p.Issues, models.Issue{Kind: kind, Detail: field(p)})
		}
	}
}

func securitySummary(pages []models.PageRecord) models.SecuritySummary {
	s := models.SecuritySummary{
		GradeHistogram: map[string]int{},
		FindingCounts:  map[string]int{},
		CategoryTotals: map[string]int{},
	}

	scored := 0
	total := 0
	for i := range pages {
		p := &pages[i]
		if p.Failed() {
			continue
		}
		if scored == 0 || p.Security.Score < s.MinScore {
			s.MinScore = p.Security.Score
		}
		if scored == 0 || p.Security.Score > s.MaxScore {
			s.MaxScore = p.Security.Score
		}
		total += p.Security.Score
		scored++

		s.GradeHistogram[p.Security.Grade]++
		for _, f := range p.Security.Findings {
			s.FindingCounts[f]++
		}
		for cat, n := range p.Security.CategoryHits {
			s.CategoryTotals[cat] += n
		}
	}

	if scored > 0 {
		s.MeanScore = math.Round(float64(total)/float64(scored)*100) / 100
	}
	return s
}

// WorstPages returns up to limit pages sorted by ascending security score,
// then by issue count. Used by the HTML report's attention list.
func WorstPages(pages []models.PageRecord, limit int) []models.PageRecord {
	candidates := make([]models.PageRecord, 0, len(pages))
	for _, p := range pages {
		if !p.Failed() {
			candidates = append(candidates, p)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Security.Score != candidates[j].Security.Score {
			return candidates[i].Security.Score < candidates[j].Security.Score
		}
		return len(candidates[i].Issues) > len(candidates[j].Issues)
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

func pageURL(p *models.PageRecord) string {
	if p.FinalURL != "" {
		return p.FinalURL
	}
	return p.URL
}
