package dashboard

import (
	"fmt"
	"sort"
	"time"

	"retail-backend/internal/auth"
	"retail-backend/internal/database"
	"retail-backend/internal/ledger"
	"retail-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type SalesChartPoint struct {
	Label    string  `json:"label"` // gün / hafta başlangıcı / ay başlangıcı
	Date     string  `json:"date"`
	Amount   float64 `json:"amount"` // fatura net toplamı
	Invoices int     `json:"invoices"`
	Cash     float64 `json:"cash"`
	Online   float64 `json:"online"`
	Slip     float64 `json:"slip"`
	Cheque   float64 `json:"cheque"`
	Payments float64 `json:"payments"`
}

type SalesChartTotals struct {
	Amount   float64 `json:"amount"`
	Invoices int     `json:"invoices"`
	Cash     float64 `json:"cash"`
	Online   float64 `json:"online"`
	Slip     float64 `json:"slip"`
	Cheque   float64 `json:"cheque"`
	Payments float64 `json:"payments"`
}

type SalesChartResponse struct {
	BusinessID  uint              `json:"businessId"`
	Period      string            `json:"period"` // daily | weekly | monthly
	From        string            `json:"from"`
	To          string            `json:"to"`
	Points      []SalesChartPoint `json:"points"`
	GrandTotals SalesChartTotals  `json:"grandTotals"`
}

// bucketStart: tarihin ait olduğu dilimin başlangıcı (UTC).
func bucketStart(t time.Time, period string) time.Time {
	d := ledger.StartOfDay(t.UTC())
	switch period {
	case "weekly":
		// hafta pazartesi başlar
		offset := (int(d.Weekday()) + 6) % 7
		return d.AddDate(0, 0, -offset)
	case "monthly":
		return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return d
	}
}

// SalesSeries: [start, end] aralığındaki fatura ve ödemeleri dilimlere toplar.
// authorID verilirse sadece o kullanıcının kayıtları sayılır.
func SalesSeries(db *gorm.DB, businessID uint, authorID *uint, start, end time.Time, period string) (SalesChartResponse, error) {
	from := ledger.StartOfDay(start.UTC())
	to := ledger.EndOfDay(end.UTC())

	type invoiceRow struct {
		CreatedAt time.Time
		NetAmount float64
	}
	type paymentRow struct {
		Date   time.Time
		Method models.PaymentMethod
		Amount float64
	}

	invQ := db.Model(&models.Invoice{}).
		Select("created_at, net_amount").
		Where("business_id = ? AND created_at >= ? AND created_at <= ?", businessID, from, to)
	payQ := db.Model(&models.Payment{}).
		Select("date, method, amount").
		Where("business_id = ? AND date >= ? AND date <= ?", businessID, from, to)
	if authorID != nil {
		invQ = invQ.Where("user_id = ?", *authorID)
		payQ = payQ.Where("user_id = ?", *authorID)
	}

	var invoices []invoiceRow
	if err := invQ.Scan(&invoices).Error; err != nil {
		return SalesChartResponse{}, err
	}
	var payments []paymentRow
	if err := payQ.Scan(&payments).Error; err != nil {
		return SalesChartResponse{}, err
	}

	buckets := make(map[time.Time]*SalesChartPoint)
	point := func(t time.Time) *SalesChartPoint {
		b := bucketStart(t, period)
		p, ok := buckets[b]
		if !ok {
			p = &SalesChartPoint{Label: b.Format("2006-01-02"), Date: b.Format("2006-01-02")}
			buckets[b] = p
		}
		return p
	}

	for _, r := range invoices {
		p := point(r.CreatedAt)
		p.Amount += r.NetAmount
		p.Invoices++
	}
	for _, r := range payments {
		p := point(r.Date)
		switch r.Method {
		case models.PaymentCash:
			p.Cash += r.Amount
		case models.PaymentOnline:
			p.Online += r.Amount
		case models.PaymentSlip:
			p.Slip += r.Amount
		case models.PaymentCheque:
			p.Cheque += r.Amount
		}
		p.Payments += r.Amount
	}

	keys := make([]time.Time, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	resp := SalesChartResponse{
		BusinessID: businessID,
		Period:     period,
		From:       from.Format("2006-01-02"),
		To:         to.Format("2006-01-02"),
		Points:     make([]SalesChartPoint, 0, len(keys)),
	}
	for _, k := range keys {
		p := buckets[k]
		resp.Points = append(resp.Points, *p)
		resp.GrandTotals.Amount += p.Amount
		resp.GrandTotals.Invoices += p.Invoices
		resp.GrandTotals.Cash += p.Cash
		resp.GrandTotals.Online += p.Online
		resp.GrandTotals.Slip += p.Slip
		resp.GrandTotals.Cheque += p.Cheque
		resp.GrandTotals.Payments += p.Payments
	}
	return resp, nil
}

// GET /api/dashboard/sales?start=2025-01-01&end=2025-01-31&period=daily
// start/end verilmezse son 7 gün (weekly: 8 hafta, monthly: 12 ay).
func SalesChartHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		businessID, err := auth.TenantID(c)
		if err != nil {
			return err
		}

		period := c.Query("period", "daily")
		now := time.Now().UTC()
		end := now
		var start time.Time
		switch period {
		case "weekly":
			start = bucketStart(now, period).AddDate(0, 0, -7*7)
		case "monthly":
			start = bucketStart(now, period).AddDate(0, -11, 0)
		default:
			period = "daily"
			start = ledger.StartOfDay(now).AddDate(0, 0, -6)
		}

		if s := c.Query("start"); s != "" {
			d, err := time.Parse("2006-01-02", s)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "start is invalid")
			}
			start = d
		}
		if s := c.Query("end"); s != "" {
			d, err := time.Parse("2006-01-02", s)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "end is invalid")
			}
			end = d
		}
		if end.Before(start) {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("end (%s) is before start (%s)",
				end.Format("2006-01-02"), start.Format("2006-01-02")))
		}

		var authorID *uint
		if auth.CurrentRole(c) == models.RoleUser {
			uid, _, err := auth.CurrentUser(c)
			if err != nil {
				return err
			}
			authorID = &uid
		}

		resp, err := SalesSeries(database.DB, businessID, authorID, start, end, period)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to aggregate sales")
		}
		return c.JSON(resp)
	}
}
