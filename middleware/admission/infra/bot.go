package infra

import (
	"context"
	"regexp"
	"strings"

	"acquisitions-gateway/middleware/admission/domain"
)

type botSignature struct {
	name   string
	substr string
}

// Assinaturas de ferramentas de automação, comparadas em minúsculas. Valem
// mesmo quando o User-Agent também cita um agente liberado.
var defaultBotSignatures = []botSignature{
	{"curl", "curl/"},
	{"wget", "wget/"},
	{"httpie", "httpie/"},
	{"python-requests", "python-requests"},
	{"python-urllib", "python-urllib"},
	{"aiohttp", "aiohttp"},
	{"go-http-client", "go-http-client"},
	{"java", "java/"},
	{"okhttp", "okhttp"},
	{"apache-httpclient", "apache-httpclient"},
	{"libwww-perl", "libwww-perl"},
	{"node-fetch", "node-fetch"},
	{"axios", "axios/"},
	{"postman", "postmanruntime"},
	{"insomnia", "insomnia"},
	{"scrapy", "scrapy"},
	{"headless-chrome", "headlesschrome"},
	{"phantomjs", "phantomjs"},
	{"selenium", "selenium"},
	{"puppeteer", "puppeteer"},
	{"playwright", "playwright"},
	{"nikto", "nikto"},
	{"sqlmap", "sqlmap"},
	{"masscan", "masscan"},
	{"zgrab", "zgrab"},
}

// genericBotPattern casa bot/crawler/spider/scraper como palavra isolada ou
// como fim de um token de produto ("AhrefsBot/7.0", "Baiduspider/2.0").
// "CUBOT P50" (aparelho Android) não casa.
var genericBotPattern = regexp.MustCompile(`\b(bot|crawler|spider|scraper)\b|[a-z0-9](bot|crawler|spider|scraper)/`)

// DefaultAllowedAgents são robôs conhecidos liberados (buscadores e previews de link).
var DefaultAllowedAgents = []string{
	"googlebot",
	"bingbot",
	"duckduckbot",
	"applebot",
	"slackbot",
	"twitterbot",
	"facebookexternalhit",
	"linkedinbot",
	"discordbot",
}

// BotDetector implementa domain.Classifier para clientes automatizados:
// User-Agent ausente, assinatura conhecida ou cadência acima do humano.
type BotDetector struct {
	signatures []botSignature
	allowed    []string
	cadence    *CadenceTracker
}

type BotOption func(*BotDetector)

// WithAllowedAgents substitui a lista de agentes liberados. Cada nome precisa
// aparecer como token de produto ("Googlebot/2.1", "Slackbot-LinkExpanding").
func WithAllowedAgents(agents ...string) BotOption {
	return func(d *BotDetector) {
		d.allowed = d.allowed[:0]
		for _, a := range agents {
			if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
				d.allowed = append(d.allowed, a)
			}
		}
	}
}

// WithCadence liga a detecção por cadência.
func WithCadence(c *CadenceTracker) BotOption {
	return func(d *BotDetector) { d.cadence = c }
}

func NewBotDetector(opts ...BotOption) *BotDetector {
	d := &BotDetector{
		signatures: defaultBotSignatures,
		allowed:    append([]string(nil), DefaultAllowedAgents...),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *BotDetector) Match(_ context.Context, req domain.RequestInfo) (string, bool) {
	ua := strings.ToLower(strings.TrimSpace(req.UserAgent))
	if ua == "" {
		return "ua:missing", true
	}

	for _, sig := range d.signatures {
		if strings.Contains(ua, sig.substr) && !d.allowedToken(sig.substr) {
			return "ua:" + sig.name, true
		}
	}

	if !d.isAllowed(ua) {
		if m := genericBotPattern.FindStringSubmatch(ua); m != nil {
			name := m[1]
			if name == "" {
				name = m[2]
			}
			return "ua:" + name, true
		}
	}

	if d.cadence != nil && !d.cadence.Allow(req.ClientKey) {
		return "cadence", true
	}
	return "", false
}

// isAllowed informa se algum agente liberado aparece como token de produto.
func (d *BotDetector) isAllowed(ua string) bool {
	for _, a := range d.allowed {
		if hasProductToken(ua, a) {
			return true
		}
	}
	return false
}

// allowedToken permite liberar uma ferramenta pelo próprio nome
// (ex.: WithAllowedAgents("curl") para monitoração interna).
func (d *BotDetector) allowedToken(substr string) bool {
	name := strings.TrimSuffix(substr, "/")
	for _, a := range d.allowed {
		if strings.TrimSuffix(a, "/") == name {
			return true
		}
	}
	return false
}

// hasProductToken procura name no início de um token (início da string, espaço,
// "(", ";" ou ",") seguido de "/" ou "-".
func hasProductToken(ua, name string) bool {
	name = strings.TrimSuffix(name, "/")
	for from := 0; ; {
		i := strings.Index(ua[from:], name)
		if i < 0 {
			return false
		}
		i += from
		end := i + len(name)
		startOK := i == 0 || strings.ContainsRune(" (;,", rune(ua[i-1]))
		endOK := end < len(ua) && (ua[end] == '/' || ua[end] == '-')
		if startOK && endOK {
			return true
		}
		from = i + 1
	}
}
