package scraper

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html"

	"lunch-bot/internal/domain"
	"lunch-bot/internal/infra/metrics"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// bulletMarker отмечает строку с блюдом.
const bulletMarker = "*"

// Scraper загружает страницу с меню и разбирает её по каталогу ресторанов.
type Scraper struct {
	http    *resty.Client
	catalog domain.Catalog
}

var _ domain.MenuFetcher = (*Scraper)(nil)

// New создаёт загрузчик меню. Повторов нет: их заменяет следующий тик планировщика.
func New(catalog domain.Catalog, timeout time.Duration) *Scraper {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(0)
	client.SetHeader("user-agent", userAgent)
	client.SetHeader("accept", "text/html")
	return &Scraper{http: client, catalog: catalog}
}

// Fetch выполняет один GET и разбирает ответ.
func (s *Scraper) Fetch(ctx context.Context, pageURL string) (domain.Menu, error) {
	start := time.Now()
	res, err := s.http.R().
		SetContext(ctx).
		Get(pageURL)
	metrics.ObserveNetworkRequest("scraper", "fetch", hostOf(pageURL), start, err)
	if err != nil {
		return domain.Menu{}, &domain.FetchError{URL: pageURL, Err: err}
	}
	if res.StatusCode() != 200 {
		return domain.Menu{}, &domain.FetchError{URL: pageURL, Status: res.StatusCode()}
	}
	return Parse(bytes.NewReader(res.Body()), s.catalog)
}

// Parse раскладывает текст страницы по ресторанам каталога. Строка, содержащая
// название ресторана, переключает текущий ресторан; строка со звёздочки
// добавляет блюдо текущему ресторану. Остальные строки пропускаются. Рестораны,
// которых нет на странице, остаются с пустым списком блюд.
func Parse(body io.Reader, catalog domain.Catalog) (domain.Menu, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return domain.Menu{}, &domain.ParseError{Reason: "invalid html", Err: err}
	}

	m := catalog.EmptyMenu()
	current := ""
	for _, line := range textLines(doc.Selection) {
		if name, ok := matchRestaurant(line, catalog); ok {
			current = name
			continue
		}
		if current == "" || !strings.HasPrefix(line, bulletMarker) {
			continue
		}
		item := strings.TrimSpace(strings.TrimLeft(line, "* "))
		if item == "" {
			continue
		}
		m.Append(current, item)
	}
	return m, nil
}

func matchRestaurant(line string, catalog domain.Catalog) (string, bool) {
	for _, r := range catalog {
		if strings.Contains(line, r.Name) {
			return r.Name, true
		}
	}
	return "", false
}

// textLines возвращает непустые строки текста документа в порядке следования.
func textLines(sel *goquery.Selection) []string {
	var chunks []string
	for _, n := range sel.Nodes {
		collectText(n, &chunks)
	}
	var lines []string
	for _, line := range strings.Split(strings.Join(chunks, "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func collectText(node *html.Node, chunks *[]string) {
	if node == nil {
		return
	}
	switch node.Type {
	case html.TextNode:
		*chunks = append(*chunks, node.Data)
		return
	case html.ElementNode:
		switch node.Data {
		case "script", "style", "noscript", "template":
			return
		}
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, chunks)
	}
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}
