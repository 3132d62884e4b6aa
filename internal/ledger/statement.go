package ledger

import (
	"fmt"
	"sort"
	"time"

	"retail-backend/internal/models"

	"gorm.io/gorm"
)

type RowType string

const (
	RowInvoice RowType = "invoice"
	RowPayment RowType = "payment"
)

type Row struct {
	Type    RowType   `json:"type"`
	ID      uint      `json:"id"`
	Date    time.Time `json:"date"`
	Debit   float64   `json:"debit"`
	Credit  float64   `json:"credit"`
	Ref     string    `json:"ref"`
	Balance float64   `json:"balance"`
}

type StatementResult struct {
	CustomerID     uint       `json:"customerId"`
	From           *time.Time `json:"from"`
	To             time.Time  `json:"to"`
	OpeningBalance float64    `json:"openingBalance"`
	TotalInvoices  float64    `json:"totalInvoices"`
	TotalPayments  float64    `json:"totalPayments"`
	ClosingBalance float64    `json:"closingBalance"`
	Ledger         []Row      `json:"ledger"`
}

func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// Statement: müşteri ekstresi. from verilmezse açılış bakiyesi 0, to verilmezse now.
// Tarih aralığı iki uçta da dahildir.
func Statement(db *gorm.DB, businessID, customerID uint, from, to *time.Time, now time.Time) (*StatementResult, error) {
	end := EndOfDay(now)
	if to != nil {
		end = EndOfDay(*to)
	}
	var start *time.Time
	if from != nil {
		s := StartOfDay(*from)
		start = &s
	}

	opening := 0.0
	if start != nil {
		var invoicedBefore, paidBefore float64
		if err := db.Model(&models.Invoice{}).
			Select("COALESCE(SUM(net_amount), 0)").
			Where("business_id = ? AND customer_id = ? AND created_at < ?", businessID, customerID, *start).
			Scan(&invoicedBefore).Error; err != nil {
			return nil, err
		}
		if err := db.Model(&models.Payment{}).
			Select("COALESCE(SUM(amount), 0)").
			Where("business_id = ? AND customer_id = ? AND date < ?", businessID, customerID, *start).
			Scan(&paidBefore).Error; err != nil {
			return nil, err
		}
		opening = invoicedBefore - paidBefore
	}

	invQ := db.Where("business_id = ? AND customer_id = ? AND created_at <= ?", businessID, customerID, end)
	payQ := db.Where("business_id = ? AND customer_id = ? AND date <= ?", businessID, customerID, end)
	if start != nil {
		invQ = invQ.Where("created_at >= ?", *start)
		payQ = payQ.Where("date >= ?", *start)
	}

	var invoices []models.Invoice
	if err := invQ.Find(&invoices).Error; err != nil {
		return nil, err
	}
	var payments []models.Payment
	if err := payQ.Find(&payments).Error; err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(invoices)+len(payments))
	for _, inv := range invoices {
		rows = append(rows, Row{
			Type:  RowInvoice,
			ID:    inv.ID,
			Date:  inv.CreatedAt,
			Debit: inv.NetAmount,
			Ref:   inv.InvoiceNumber,
		})
	}
	for _, p := range payments {
		rows = append(rows, Row{
			Type:   RowPayment,
			ID:     p.ID,
			Date:   p.Date,
			Credit: p.Amount,
			Ref:    paymentRef(p),
		})
	}

	res := BuildLedger(opening, rows)
	res.CustomerID = customerID
	res.From = start
	res.To = end
	return res, nil
}

// BuildLedger: satırları tarihe göre sıralar ve yürüyen bakiyeyi işler.
// Aynı anda düşen satırlarda önce fatura, sonra ödeme; ardından id sırası.
func BuildLedger(opening float64, rows []Row) *StatementResult {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		if rows[i].Type != rows[j].Type {
			return rows[i].Type == RowInvoice
		}
		return rows[i].ID < rows[j].ID
	})

	res := &StatementResult{OpeningBalance: opening, Ledger: rows}
	balance := opening
	for i := range rows {
		balance += rows[i].Debit - rows[i].Credit
		rows[i].Balance = balance
		res.TotalInvoices += rows[i].Debit
		res.TotalPayments += rows[i].Credit
	}
	res.ClosingBalance = balance
	return res
}

func paymentRef(p models.Payment) string {
	switch p.Method {
	case models.PaymentOnline:
		if p.TransactionID != "" {
			return fmt.Sprintf("online %s", p.TransactionID)
		}
	case models.PaymentSlip:
		if p.SlipNo != "" {
			return fmt.Sprintf("slip %s", p.SlipNo)
		}
	case models.PaymentCheque:
		if p.ChequeNo != "" {
			return fmt.Sprintf("cheque %s", p.ChequeNo)
		}
	}
	return string(p.Method)
}
