package ledger

import (
	"retail-backend/internal/models"

	"gorm.io/gorm"
)

type Balance struct {
	TotalInvoices float64 `json:"totalInvoices"`
	TotalPayments float64 `json:"totalPayments"`
	Balance       float64 `json:"balance"`
}

type amountRow struct {
	CustomerID uint
	Total      float64
}

// CustomerBalance = Σ fatura net tutarı − Σ ödeme tutarı (tenant içinde).
func CustomerBalance(db *gorm.DB, businessID, customerID uint) (Balance, error) {
	balances, err := customerBalances(db, businessID, &customerID)
	if err != nil {
		return Balance{}, err
	}
	return balances[customerID], nil
}

// CustomerBalances: işletmenin bütün müşterileri için bakiye. Hareketi olmayan müşteri haritada yer almaz.
func CustomerBalances(db *gorm.DB, businessID uint) (map[uint]Balance, error) {
	return customerBalances(db, businessID, nil)
}

func customerBalances(db *gorm.DB, businessID uint, customerID *uint) (map[uint]Balance, error) {
	invQ := db.Model(&models.Invoice{}).
		Select("customer_id, COALESCE(SUM(net_amount), 0) AS total").
		Where("business_id = ? AND customer_id IS NOT NULL", businessID)
	payQ := db.Model(&models.Payment{}).
		Select("customer_id, COALESCE(SUM(amount), 0) AS total").
		Where("business_id = ?", businessID)
	if customerID != nil {
		invQ = invQ.Where("customer_id = ?", *customerID)
		payQ = payQ.Where("customer_id = ?", *customerID)
	}

	var invoiced, paid []amountRow
	if err := invQ.Group("customer_id").Scan(&invoiced).Error; err != nil {
		return nil, err
	}
	if err := payQ.Group("customer_id").Scan(&paid).Error; err != nil {
		return nil, err
	}

	out := make(map[uint]Balance)
	for _, r := range invoiced {
		b := out[r.CustomerID]
		b.TotalInvoices += r.Total
		out[r.CustomerID] = b
	}
	for _, r := range paid {
		b := out[r.CustomerID]
		b.TotalPayments += r.Total
		out[r.CustomerID] = b
	}
	for id, b := range out {
		b.Balance = b.TotalInvoices - b.TotalPayments
		out[id] = b
	}
	return out, nil
}
