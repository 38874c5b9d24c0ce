package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
)

const scrapeTimeout = 60 * time.Second

// BrowserFetcher загружает праздники со страницы календаря через
// headless Chrome/Edge. URL содержит %d для года.
type BrowserFetcher struct {
	URL      string
	Headless bool
}

// Fetch открывает страницу года и разбирает таблицу праздников.
func (f *BrowserFetcher) Fetch(ctx context.Context, year int) ([]time.Time, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("headless", f.Headless),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()
	runCtx, cancel := context.WithTimeout(browserCtx, scrapeTimeout)
	defer cancel()

	url := fmt.Sprintf(f.URL, year)
	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", url, err)
	}
	return ParseHolidayPage(html, year)
}

// ParseHolidayPage извлекает даты из первой таблицы страницы.
// Дата — во второй колонке в формате "Jan 02".
func ParseHolidayPage(html string, year int) ([]time.Time, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse holiday page: %w", err)
	}

	var days []time.Time
	doc.Find("table").First().Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		cell := strings.Join(strings.Fields(row.Find("td").Eq(1).Text()), " ")
		if cell == "" {
			return
		}
		t, err := time.ParseInLocation("2006 Jan 02", fmt.Sprintf("%d %s", year, cell), time.Local)
		if err != nil {
			return
		}
		days = append(days, t)
	})
	if len(days) == 0 {
		return nil, fmt.Errorf("no holidays found for %d", year)
	}
	return days, nil
}
