package payment

import (
	"fmt"
	"strings"
	"time"

	"retail-backend/internal/apperror"
	"retail-backend/internal/audit"
	"retail-backend/internal/auth"
	"retail-backend/internal/customer"
	"retail-backend/internal/database"
	"retail-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CreatePaymentRequest struct {
	CustomerID    uint    `json:"customerId"`
	Method        string  `json:"method"`
	Amount        float64 `json:"amount"`
	Remarks       string  `json:"remarks"`
	Date          string  `json:"date"`
	Bank          string  `json:"bank"`
	TransactionID string  `json:"transaction_id"`
	SlipNo        string  `json:"slip_no"`
	SlipDate      string  `json:"slip_date"`
	ClearDate     string  `json:"clear_date"`
	ChequeNo      string  `json:"cheque_no"`
	ChequeDate    string  `json:"cheque_date"`
	ChequeBank    string  `json:"cheque_bank"`
}

type PaymentResponse struct {
	ID            uint                 `json:"id"`
	BusinessID    uint                 `json:"businessId"`
	UserID        uint                 `json:"userId"`
	UserName      string               `json:"userName,omitempty"`
	CustomerID    uint                 `json:"customerId"`
	CustomerName  string               `json:"customerName,omitempty"`
	CustomerPhone string               `json:"customerPhone,omitempty"`
	Method        models.PaymentMethod `json:"method"`
	Amount        float64              `json:"amount"`
	Remarks       string               `json:"remarks"`
	Date          time.Time            `json:"date"`
	Bank          string               `json:"bank,omitempty"`
	TransactionID string               `json:"transaction_id,omitempty"`
	SlipNo        string               `json:"slip_no,omitempty"`
	SlipDate      *time.Time           `json:"slip_date,omitempty"`
	ClearDate     *time.Time           `json:"clear_date,omitempty"`
	ChequeNo      string               `json:"cheque_no,omitempty"`
	ChequeDate    *time.Time           `json:"cheque_date,omitempty"`
	ChequeBank    string               `json:"cheque_bank,omitempty"`
	CreatedAt     time.Time            `json:"createdAt"`
}

func toResponse(p *models.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:            p.ID,
		BusinessID:    p.BusinessID,
		UserID:        p.UserID,
		CustomerID:    p.CustomerID,
		Method:        p.Method,
		Amount:        p.Amount,
		Remarks:       p.Remarks,
		Date:          p.Date,
		Bank:          p.Bank,
		TransactionID: p.TransactionID,
		SlipNo:        p.SlipNo,
		SlipDate:      p.SlipDate,
		ClearDate:     p.ClearDate,
		ChequeNo:      p.ChequeNo,
		ChequeDate:    p.ChequeDate,
		ChequeBank:    p.ChequeBank,
		CreatedAt:     p.CreatedAt,
	}
	if p.User != nil {
		resp.UserName = p.User.Name
	}
	if p.Customer != nil {
		resp.CustomerName = p.Customer.Name
		resp.CustomerPhone = p.Customer.Phone
	}
	return resp
}

// parseDate: "2006-01-02" ya da RFC3339 kabul eder, UTC döner.
func parseDate(field, s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if d, err := time.Parse("2006-01-02", s); err == nil {
		return &d, nil
	}
	d, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, apperror.Validation(fmt.Sprintf("%s must be a date (YYYY-MM-DD)", field))
	}
	d = d.UTC()
	return &d, nil
}

// buildPayment: yönteme özgü alanları doğrular; diğer yöntemlerin alanları atılır.
func buildPayment(body *CreatePaymentRequest) (*models.Payment, error) {
	method := models.PaymentMethod(strings.ToLower(strings.TrimSpace(body.Method)))
	if !method.Valid() {
		return nil, apperror.Validation("method must be one of cash, online, slip, cheque")
	}
	if body.CustomerID == 0 {
		return nil, apperror.Validation("customerId is required")
	}
	if body.Amount <= 0 {
		return nil, apperror.Validation("amount must be greater than 0")
	}

	date, err := parseDate("date", body.Date)
	if err != nil {
		return nil, err
	}
	if date == nil {
		return nil, apperror.Validation("date is required")
	}

	remarks := strings.TrimSpace(body.Remarks)
	if remarks == "" {
		remarks = "-"
	}

	p := &models.Payment{
		CustomerID: body.CustomerID,
		Method:     method,
		Amount:     body.Amount,
		Remarks:    remarks,
		Date:       *date,
	}

	switch method {
	case models.PaymentOnline:
		p.Bank = strings.TrimSpace(body.Bank)
		p.TransactionID = strings.TrimSpace(body.TransactionID)
		if p.Bank == "" && p.TransactionID == "" {
			return nil, apperror.Validation("online payments need a bank or transaction_id")
		}
	case models.PaymentSlip:
		p.SlipNo = strings.TrimSpace(body.SlipNo)
		if p.SlipDate, err = parseDate("slip_date", body.SlipDate); err != nil {
			return nil, err
		}
		if p.SlipDate == nil {
			return nil, apperror.Validation("slip payments need a slip_date")
		}
		if p.ClearDate, err = parseDate("clear_date", body.ClearDate); err != nil {
			return nil, err
		}
	case models.PaymentCheque:
		p.ChequeNo = strings.TrimSpace(body.ChequeNo)
		p.ChequeBank = strings.TrimSpace(body.ChequeBank)
		if p.ChequeNo == "" {
			return nil, apperror.Validation("cheque payments need a cheque_no")
		}
		if p.ChequeDate, err = parseDate("cheque_date", body.ChequeDate); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// POST /api/payments
// Ödemeler sadece eklenir; güncelleme ve silme yoktur.
func CreatePaymentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreatePaymentRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		p, err := buildPayment(&body)
		if err != nil {
			return err
		}

		businessID, err := auth.TenantID(c)
		if err != nil {
			return err
		}
		userID, userName, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}
		p.BusinessID = businessID
		p.UserID = userID

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			cu, err := customer.Find(tx, businessID, fmt.Sprint(p.CustomerID))
			if err != nil {
				return err
			}
			if err := tx.Create(p).Error; err != nil {
				return err
			}
			p.Customer = cu
			return audit.WriteLog(tx, audit.LogOptions{
				BusinessID:  &businessID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "payment",
				EntityID:    audit.ID(p.ID),
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Payment received from %s: %.2f (%s)", cu.Name, p.Amount, p.Method),
				After: map[string]interface{}{
					"customer_id": p.CustomerID,
					"method":      p.Method,
					"amount":      p.Amount,
					"date":        p.Date.Format("2006-01-02"),
				},
			})
		})
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"message": "Payment added successfully",
			"data":    toResponse(p),
		})
	}
}

// GET /api/payments?method=&from=&to=
func ListPaymentsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		businessID, err := auth.TenantID(c)
		if err != nil {
			return err
		}

		dbq := database.DB.Model(&models.Payment{}).
			Preload("Customer").
			Preload("User").
			Where("business_id = ?", businessID)

		if s := c.Query("method"); s != "" {
			if !models.PaymentMethod(s).Valid() {
				return fiber.NewError(fiber.StatusBadRequest, "method is invalid")
			}
			dbq = dbq.Where("method = ?", s)
		}
		if s := c.Query("from"); s != "" {
			from, err := time.Parse("2006-01-02", s)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "from is invalid")
			}
			dbq = dbq.Where("date >= ?", from)
		}
		if s := c.Query("to"); s != "" {
			to, err := time.Parse("2006-01-02", s)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "to is invalid")
			}
			dbq = dbq.Where("date < ?", to.AddDate(0, 0, 1))
		}

		var rows []models.Payment
		if err := dbq.Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch all payments")
		}

		resp := make([]PaymentResponse, 0, len(rows))
		for i := range rows {
			resp = append(resp, toResponse(&rows[i]))
		}
		return c.JSON(resp)
	}
}

// GET /api/payments/customer/:customerId
func CustomerPaymentsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		businessID, err := auth.TenantID(c)
		if err != nil {
			return err
		}

		cu, err := customer.Find(database.DB, businessID, c.Params("customerId"))
		if err != nil {
			return err
		}

		var rows []models.Payment
		if err := database.DB.
			Where("business_id = ? AND customer_id = ?", businessID, cu.ID).
			Order("created_at DESC, id DESC").
			Find(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch customer payments")
		}

		resp := make([]PaymentResponse, 0, len(rows))
		for i := range rows {
			rows[i].Customer = cu
			resp = append(resp, toResponse(&rows[i]))
		}
		return c.JSON(resp)
	}
}
