// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"math"
	"net/url"
	"strings"
)

// News outlet tiers. A source name matches a tier when it contains one of
// the entries.
var (
	highCredibilityNews = []string{
		"Reuters", "Associated Press", "BBC News", "NPR", "PBS NewsHour",
		"The Wall Street Journal", "The New York Times", "The Washington Post",
		"The Guardian", "Financial Times",
	}
	mediumCredibilityNews = []string{
		"CNN", "Fox News", "MSNBC", "ABC News", "CBS News", "NBC News",
		"Time", "Newsweek", "USA Today",
	}
)

var (
	healthAuthorityDomains = []string{"who.int", "cdc.gov", "fda.gov"}
	factCheckDomains       = []string{"snopes.com", "politifact.com", "factcheck.org"}
)

// verdictTable is scanned in order; the first keyword found in the
// lower-cased content decides the verdict.
var verdictTable = []struct {
	keyword, verdict string
}{
	{"false", "false"},
	{"true", "true"},
	{"misleading", "misleading"},
	{"partly false", "partly-false"},
	{"mostly true", "mostly-true"},
	{"debunked", "false"},
	{"verified", "true"},
	{"unproven", "unproven"},
}

const (
	factCheckBoost = 0.2
	authorityBoost = 0.3
)

// NewsCredibility scores a news outlet by name.
func NewsCredibility(source string) float64 {
	for _, s := range highCredibilityNews {
		if strings.Contains(source, s) {
			return 0.9
		}
	}
	for _, s := range mediumCredibilityNews {
		if strings.Contains(source, s) {
			return 0.7
		}
	}
	return 0.5
}

// WebCredibility scores a web page by the host of its URL.
func WebCredibility(rawURL string) float64 {
	host := hostname(rawURL)
	switch {
	case host == "":
		return 0.6
	case matchDomain(host, healthAuthorityDomains):
		return 0.95
	case isInstitutional(host):
		return 0.9
	case matchDomain(host, factCheckDomains):
		return 0.9
	case matchDomain(host, []string{"wikipedia.org"}):
		return 0.7
	default:
		return 0.6
	}
}

// ExtractVerdict maps the first verdict keyword found in content to its
// verdict, or returns "unverified".
func ExtractVerdict(content string) string {
	lower := strings.ToLower(content)
	for _, v := range verdictTable {
		if strings.Contains(lower, v.keyword) {
			return v.verdict
		}
	}
	return "unverified"
}

// ExtractDomain returns the URL's host without a leading "www.", or
// "unknown" when the URL cannot be parsed.
func ExtractDomain(rawURL string) string {
	host := hostname(rawURL)
	if host == "" {
		return "unknown"
	}
	return strings.TrimPrefix(host, "www.")
}

func boost(score, by float64) float64 {
	return math.Min(1.0, score+by)
}

func hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// matchDomain reports whether host is one of domains or a subdomain of one.
func matchDomain(host string, domains []string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// isInstitutional matches .gov and .edu hosts, including country second
// levels such as gov.uk or edu.au.
func isInstitutional(host string) bool {
	for _, tld := range []string{"gov", "edu"} {
		if strings.HasSuffix(host, "."+tld) || strings.Contains(host, "."+tld+".") {
			return true
		}
	}
	return false
}
