package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"cafemanager/apperr"
	"cafemanager/model"
)

const (
	DateLayout   = "2006-01-02"
	topItemLimit = 10
)

type DailySales struct {
	Date    string  `json:"date"`
	Orders  int     `json:"orders"`
	Revenue float64 `json:"revenue"`
}

type ItemSales struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Revenue  float64 `json:"revenue"`
}

type SalesReport struct {
	From         string       `json:"from"`
	To           string       `json:"to"`
	OrderCount   int          `json:"orderCount"`
	Revenue      float64      `json:"revenue"`
	Discount     float64      `json:"discount"`
	AverageOrder float64      `json:"averageOrder"`
	Daily        []DailySales `json:"daily"`
	TopItems     []ItemSales  `json:"topItems"`
}

type CampaignStats struct {
	CampaignID string  `json:"campaignId"`
	Orders     int64   `json:"orders"`
	Revenue    float64 `json:"revenue"`
	Discount   float64 `json:"discount"`
}

type ReportService struct {
	db *gorm.DB
}

func NewReportService(db *gorm.DB) *ReportService {
	return &ReportService{db: db}
}

// Sales summarises the paid orders created between from and to, both days
// inclusive, in UTC.
func (s *ReportService) Sales(ctx context.Context, cafeID string, from, to time.Time) (*SalesReport, error) {
	from = from.UTC().Truncate(24 * time.Hour)
	to = to.UTC().Truncate(24 * time.Hour)
	if to.Before(from) {
		return nil, apperr.Validation("'to' must not be before 'from'").WithCode("INVALID_RANGE")
	}

	var orders []model.Order
	err := s.db.WithContext(ctx).
		Preload("Items").
		Where("cafe_id = ? AND status = ? AND created_at >= ? AND created_at < ?",
			cafeID, model.OrderPaid, from, to.Add(24*time.Hour)).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}

	report := &SalesReport{
		From:     from.Format(DateLayout),
		To:       to.Format(DateLayout),
		Daily:    []DailySales{},
		TopItems: []ItemSales{},
	}
	daily := map[string]*DailySales{}
	items := map[string]*ItemSales{}

	for _, o := range orders {
		report.OrderCount++
		report.Revenue += o.Total
		report.Discount += o.Discount

		day := o.CreatedAt.UTC().Format(DateLayout)
		d, ok := daily[day]
		if !ok {
			d = &DailySales{Date: day}
			daily[day] = d
		}
		d.Orders++
		d.Revenue += o.Total

		for _, it := range o.Items {
			is, ok := items[it.Name]
			if !ok {
				is = &ItemSales{Name: it.Name}
				items[it.Name] = is
			}
			is.Quantity += it.Quantity
			is.Revenue += it.LineTotal
		}
	}

	for _, d := range daily {
		d.Revenue = round2(d.Revenue)
		report.Daily = append(report.Daily, *d)
	}
	sort.Slice(report.Daily, func(i, j int) bool { return report.Daily[i].Date < report.Daily[j].Date })

	for _, is := range items {
		is.Revenue = round2(is.Revenue)
		report.TopItems = append(report.TopItems, *is)
	}
	sort.Slice(report.TopItems, func(i, j int) bool {
		a, b := report.TopItems[i], report.TopItems[j]
		if a.Quantity != b.Quantity {
			return a.Quantity > b.Quantity
		}
		if a.Revenue != b.Revenue {
			return a.Revenue > b.Revenue
		}
		return a.Name < b.Name
	})
	if len(report.TopItems) > topItemLimit {
		report.TopItems = report.TopItems[:topItemLimit]
	}

	report.Revenue = round2(report.Revenue)
	report.Discount = round2(report.Discount)
	if report.OrderCount > 0 {
		report.AverageOrder = round2(report.Revenue / float64(report.OrderCount))
	}
	return report, nil
}

// WriteSalesXLSX renders r as a workbook with a summary, daily and top items sheet.
func WriteSalesXLSX(w io.Writer, r *SalesReport) error {
	f := excelize.NewFile()
	defer f.Close()

	const summary = "Summary"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return err
	}
	rows := [][]any{
		{"From", r.From},
		{"To", r.To},
		{"Orders", r.OrderCount},
		{"Revenue", r.Revenue},
		{"Discount", r.Discount},
		{"Average order", r.AverageOrder},
	}
	for i, row := range rows {
		if err := f.SetSheetRow(summary, fmt.Sprintf("A%d", i+1), &row); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet("Daily"); err != nil {
		return err
	}
	if err := f.SetSheetRow("Daily", "A1", &[]any{"Date", "Orders", "Revenue"}); err != nil {
		return err
	}
	for i, d := range r.Daily {
		if err := f.SetSheetRow("Daily", fmt.Sprintf("A%d", i+2), &[]any{d.Date, d.Orders, d.Revenue}); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet("Top items"); err != nil {
		return err
	}
	if err := f.SetSheetRow("Top items", "A1", &[]any{"Item", "Quantity", "Revenue"}); err != nil {
		return err
	}
	for i, it := range r.TopItems {
		if err := f.SetSheetRow("Top items", fmt.Sprintf("A%d", i+2), &[]any{it.Name, it.Quantity, it.Revenue}); err != nil {
			return err
		}
	}

	_, err := f.WriteTo(w)
	return err
}

// CampaignStats totals the paid orders that used campaignID.
func (s *ReportService) CampaignStats(ctx context.Context, cafeID, campaignID string) (*CampaignStats, error) {
	var campaign model.Campaign
	if err := s.db.WithContext(ctx).Select("id").Where("id = ? AND cafe_id = ?", campaignID, cafeID).First(&campaign).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Campaign not found")
		}
		return nil, err
	}

	var row struct {
		Orders   int64
		Revenue  float64
		Discount float64
	}
	err := s.db.WithContext(ctx).Model(&model.Order{}).
		Select("COUNT(*) AS orders, COALESCE(SUM(total), 0) AS revenue, COALESCE(SUM(discount), 0) AS discount").
		Where("cafe_id = ? AND campaign_id = ? AND status = ?", cafeID, campaignID, model.OrderPaid).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return &CampaignStats{
		CampaignID: campaignID,
		Orders:     row.Orders,
		Revenue:    round2(row.Revenue),
		Discount:   round2(row.Discount),
	}, nil
}
