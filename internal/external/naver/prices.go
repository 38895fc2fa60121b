package naver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/wuxing-quant/internal/contracts"
)

var (
	chartRowRe = regexp.MustCompile(`\["(\d{8})",\s*([\d.]+),\s*([\d.]+),\s*([\d.]+),\s*([\d.]+),\s*(\d+)`)
	pageDateRe = regexp.MustCompile(`^(\d{4})\.(\d{2})\.(\d{2})$`)

	// earliest date requested when from is open
	openFrom = time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
)

// Bars implements contracts.PriceSource; to is exclusive, zero bounds are open
func (c *Client) Bars(ctx context.Context, symbol string, from, to time.Time) (contracts.PriceSeries, error) {
	start := from
	if start.IsZero() {
		start = openFrom
	}
	end := to
	if end.IsZero() {
		end = time.Now().In(c.location)
	} else {
		end = end.AddDate(0, 0, -1)
	}

	bars, err := c.FetchPrices(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	return bars.Between(from, to), nil
}

// FetchPrices fetches daily bars for from..to (both inclusive).
// The chart API is tried first; the daily HTML pages are the fallback.
// ⭐ SSOT: Naver Finance 가격 호출은 이 함수에서만
func (c *Client) FetchPrices(ctx context.Context, symbol string, from, to time.Time) (contracts.PriceSeries, error) {
	bars, chartErr := c.fetchChart(ctx, symbol, from, to)
	if chartErr == nil && len(bars) > 0 {
		c.logger.WithFields(map[string]interface{}{
			"symbol": symbol,
			"count":  len(bars),
			"source": "chart",
		}).Debug("Fetched prices")
		return bars.Sorted(), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if chartErr != nil {
		c.logger.WithError(chartErr).WithField("symbol", symbol).Warn("Chart API failed, falling back to daily pages")
	}

	bars, pageErr := c.fetchDailyPages(ctx, symbol, from, to)
	if pageErr != nil {
		if chartErr != nil {
			return nil, fmt.Errorf("fetch prices %s: chart: %v; daily pages: %w", symbol, chartErr, pageErr)
		}
		return nil, fmt.Errorf("fetch prices %s: %w", symbol, pageErr)
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"count":  len(bars),
		"source": "daily_pages",
	}).Debug("Fetched prices")
	return bars.Sorted(), nil
}

func (c *Client) fetchChart(ctx context.Context, symbol string, from, to time.Time) (contracts.PriceSeries, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("requestType", "1")
	params.Set("startTime", from.Format("20060102"))
	params.Set("endTime", to.Format("20060102"))
	params.Set("timeframe", "day")

	body, err := c.fetch(ctx, c.chartURL, "/siseJson.naver", params)
	if err != nil {
		return nil, err
	}
	return c.parseChart(body)
}

// parseChart parses the chart API body: a JS array literal with a header row
func (c *Client) parseChart(body []byte) (contracts.PriceSeries, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return contracts.PriceSeries{}, nil
	}
	body = bytes.ReplaceAll(body, []byte("'"), []byte(`"`))

	var rows [][]interface{}
	if err := json.Unmarshal(body, &rows); err == nil {
		return c.parseChartRows(rows), nil
	}

	// Fallback to regex parsing
	bars := c.parseChartRegex(string(body))
	if len(bars) == 0 {
		return nil, errors.New("unrecognized chart response")
	}
	return bars, nil
}

func (c *Client) parseChartRows(rows [][]interface{}) contracts.PriceSeries {
	bars := make(contracts.PriceSeries, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}

		dateStr, ok := row[0].(string)
		if !ok {
			continue // header or malformed
		}
		date, ok := c.parseCompactDate(strings.TrimSpace(dateStr))
		if !ok {
			continue
		}

		bars = append(bars, contracts.PriceBar{
			Date:   date,
			Open:   toFloat(row[1]),
			High:   toFloat(row[2]),
			Low:    toFloat(row[3]),
			Close:  toFloat(row[4]),
			Volume: int64(toFloat(row[5])),
		})
	}
	return bars
}

func (c *Client) parseChartRegex(body string) contracts.PriceSeries {
	matches := chartRowRe.FindAllStringSubmatch(body, -1)

	bars := make(contracts.PriceSeries, 0, len(matches))
	for _, m := range matches {
		date, ok := c.parseCompactDate(m[1])
		if !ok {
			continue
		}
		volume, _ := strconv.ParseInt(m[6], 10, 64)
		bars = append(bars, contracts.PriceBar{
			Date:   date,
			Open:   toFloat(m[2]),
			High:   toFloat(m[3]),
			Low:    toFloat(m[4]),
			Close:  toFloat(m[5]),
			Volume: volume,
		})
	}
	return bars
}

// fetchDailyPages walks sise_day pages (newest first) until from is passed
func (c *Client) fetchDailyPages(ctx context.Context, symbol string, from, to time.Time) (contracts.PriceSeries, error) {
	var all contracts.PriceSeries

	for page := 1; page <= c.maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return all, err
		}

		params := url.Values{}
		params.Set("code", symbol)
		params.Set("page", strconv.Itoa(page))

		body, err := c.fetch(ctx, c.baseURL, "/item/sise_day.naver", params)
		if err != nil {
			return all, err
		}

		bars, oldest, hasMore, err := c.parseDailyHTML(body, from, to)
		if err != nil {
			return all, err
		}
		all = append(all, bars...)

		// 기준일보다 이전 데이터면 종료
		if oldest.IsZero() || oldest.Before(from) || !hasMore {
			break
		}
	}
	return all, nil
}

// parseDailyHTML extracts rows of 날짜 | 종가 | 전일비 | 시가 | 고가 | 저가 | 거래량
func (c *Client) parseDailyHTML(body []byte, from, to time.Time) (contracts.PriceSeries, time.Time, bool, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("parse daily page: %w", err)
	}

	var bars contracts.PriceSeries
	var oldest time.Time

	doc.Find("table.type2 tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 7 {
			return
		}

		m := pageDateRe.FindStringSubmatch(strings.TrimSpace(cells.Eq(0).Text()))
		if m == nil {
			return
		}
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		date := c.date(y, time.Month(mo), d)
		oldest = date

		if date.Before(from) || date.After(to) {
			return
		}

		bars = append(bars, contracts.PriceBar{
			Date:   date,
			Close:  parseNum(cells.Eq(1).Text()),
			Open:   parseNum(cells.Eq(3).Text()),
			High:   parseNum(cells.Eq(4).Text()),
			Low:    parseNum(cells.Eq(5).Text()),
			Volume: int64(parseNum(cells.Eq(6).Text())),
		})
	})

	// 다음 페이지 존재 여부 확인
	hasMore := doc.Find(".pgRR").Length() > 0
	return bars, oldest, hasMore, nil
}

func (c *Client) parseCompactDate(s string) (time.Time, bool) {
	if len(s) != 8 {
		return time.Time{}, false
	}
	t, err := time.Parse("20060102", s)
	if err != nil {
		return time.Time{}, false
	}
	return c.date(t.Year(), t.Month(), t.Day()), true
}

func parseNum(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || s == "-" {
		return 0
	}
	n, _ := strconv.ParseFloat(s, 64)
	return n
}

// toFloat converts JSON numbers and numeric strings
func toFloat(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int64:
		return float64(val)
	case int:
		return float64(val)
	case string:
		return parseNum(val)
	default:
		return 0
	}
}
