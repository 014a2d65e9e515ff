package infra

import (
	"context"
	"net/url"
	"regexp"

	"acquisitions-gateway/middleware/admission/domain"
)

type shieldScope int

const (
	scopePath shieldScope = 1 << iota
	scopeQuery
	scopeHeaders

	scopeURL = scopePath | scopeQuery
)

type shieldRule struct {
	name  string
	scope shieldScope
	re    *regexp.Regexp
}

// Regras baseadas nos ataques web mais comuns. São aplicadas ao path e à query
// (crus e decodificados) e, quando o escopo permite, aos headers coletados.
var defaultShieldRules = []shieldRule{
	{"sql-injection", scopeURL | scopeHeaders, regexp.MustCompile(
		`(?i)(\bunion\b[\s(]+(all\s+)?select\b|'\s*(or|and)\s+'?\d+'?\s*=\s*'?\d|'\s*(or|and)\s+'[^']*'\s*=\s*'|\b(or|and)\s+\d+\s*=\s*\d+\s*(--|#|$)|;\s*(drop|delete|truncate|insert|update|shutdown)\s|\bsleep\s*\(\s*\d|\bbenchmark\s*\(|\bwaitfor\s+delay\b|'\s*(--|#))`)},
	{"xss", scopeURL | scopeHeaders, regexp.MustCompile(
		`(?i)(<\s*/?\s*script|javascript\s*:|\bon(error|load|mouseover|focus|click|toggle)\s*=|<\s*iframe|<\s*svg\b[^>]*\bon\w+\s*=|document\.cookie)`)},
	{"path-traversal", scopeURL, regexp.MustCompile(
		`(?i)(\.\./|\.\.\\|%2e%2e(%2f|%5c|/))`)},
	// metacaractere + comando + argumento (ou fechamento de $( ) / crase);
	// "a=1;id=2" e "order=asc|ls" não casam
	{"command-injection", scopeURL, regexp.MustCompile(
		"(?i)(;|\\||&&|\\$\\(|`)\\s*(cat|ls|id|whoami|uname|wget|curl|nc|bash|sh|powershell)(\\s+[^\\s=&]|\\)|`)")},
	{"sensitive-file", scopeURL, regexp.MustCompile(
		`(?i)(/etc/(passwd|shadow|hosts)|/proc/self/|/\.env\b|/\.git/|wp-config\.php|boot\.ini|win\.ini)`)},
	{"jndi-lookup", scopeURL | scopeHeaders, regexp.MustCompile(
		`(?i)\$\{\s*(jndi|\$\{lower:j\}ndi)\s*:`)},
	// quebra de linha só é suspeita no path ou como par CRLF; valores de
	// formulário com %0A isolado são legítimos
	{"crlf-injection", scopePath, regexp.MustCompile(
		`(?i)(%0d|%0a|\r|\n)`)},
	{"crlf-injection", scopeQuery, regexp.MustCompile(
		`(?i)(%0d%0a|\r\n)`)},
}

// Shield implementa domain.Classifier para padrões de ataque web, de forma
// independente do volume de requisições.
type Shield struct {
	rules []shieldRule
}

func NewShield() *Shield {
	return &Shield{rules: defaultShieldRules}
}

func (s *Shield) Match(_ context.Context, req domain.RequestInfo) (string, bool) {
	pathTargets := []string{req.Path}
	if p, err := url.PathUnescape(req.Path); err == nil && p != req.Path {
		pathTargets = append(pathTargets, p)
	}
	queryTargets := []string{req.RawQuery}
	if q, err := url.QueryUnescape(req.RawQuery); err == nil && q != req.RawQuery {
		queryTargets = append(queryTargets, q)
	}

	for _, rule := range s.rules {
		if rule.scope&scopePath != 0 && matchAny(rule.re, pathTargets) {
			return "shield:" + rule.name, true
		}
		if rule.scope&scopeQuery != 0 && matchAny(rule.re, queryTargets) {
			return "shield:" + rule.name, true
		}
		if rule.scope&scopeHeaders != 0 {
			for _, v := range req.Headers {
				if v != "" && rule.re.MatchString(v) {
					return "shield:" + rule.name, true
				}
			}
		}
	}
	return "", false
}

func matchAny(re *regexp.Regexp, values []string) bool {
	for _, v := range values {
		if v != "" && re.MatchString(v) {
			return true
		}
	}
	return false
}
