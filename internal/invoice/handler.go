package invoice

import (
	"time"

	"retail-backend/internal/auth"
	"retail-backend/internal/database"
	"retail-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type CreateInvoiceItemRequest struct {
	ArticleID uint `json:"articleId"`
	Quantity  int  `json:"quantity"`
}

type CreateInvoiceRequest struct {
	CustomerID  *uint                      `json:"customerId"`
	Items       []CreateInvoiceItemRequest `json:"items"`
	Discount    float64                    `json:"discount"`
	GrossAmount *float64                   `json:"grossAmount"`
	NetAmount   *float64                   `json:"netAmount"`
	Date        string                     `json:"date"`
}

type CustomerSummary struct {
	ID         uint   `json:"id"`
	Name       string `json:"name"`
	PersonName string `json:"personName,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address,omitempty"`
}

type ArticleSummary struct {
	ID           uint    `json:"id"`
	ArticleNo    string  `json:"articleNo"`
	SellingPrice float64 `json:"sellingPrice"`
}

type InvoiceItemResponse struct {
	ID                   uint            `json:"id"`
	ArticleID            uint            `json:"articleId"`
	Article              *ArticleSummary `json:"article"`
	Quantity             int             `json:"quantity"`
	SellingPriceSnapshot float64         `json:"sellingPriceSnapshot"`
	LineTotal            float64         `json:"lineTotal"`
}

type InvoiceResponse struct {
	ID            uint                  `json:"id"`
	InvoiceNumber string                `json:"invoiceNumber"`
	InvoiceDate   string                `json:"invoiceDate"`
	BusinessID    uint                  `json:"businessId"`
	UserID        uint                  `json:"userId"`
	CustomerID    *uint                 `json:"customerId"`
	Customer      *CustomerSummary      `json:"customer"`
	IsWalkIn      bool                  `json:"isWalkIn"`
	Discount      float64               `json:"discount"`
	GrossAmount   float64               `json:"grossAmount"`
	NetAmount     float64               `json:"netAmount"`
	CreatedAt     time.Time             `json:"createdAt"`
	Items         []InvoiceItemResponse `json:"items,omitempty"`
}

func toResponse(inv *models.Invoice, detailed bool) InvoiceResponse {
	resp := InvoiceResponse{
		ID:            inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		InvoiceDate:   inv.InvoiceDate.Format("2006-01-02"),
		BusinessID:    inv.BusinessID,
		UserID:        inv.UserID,
		CustomerID:    inv.CustomerID,
		IsWalkIn:      inv.IsWalkIn,
		Discount:      inv.Discount,
		GrossAmount:   inv.GrossAmount,
		NetAmount:     inv.NetAmount,
		CreatedAt:     inv.CreatedAt,
	}
	if inv.Customer != nil {
		cs := &CustomerSummary{ID: inv.Customer.ID, Name: inv.Customer.Name}
		if detailed {
			cs.PersonName = inv.Customer.PersonName
			cs.Phone = inv.Customer.Phone
			cs.Address = inv.Customer.Address
		}
		resp.Customer = cs
	}
	if detailed {
		resp.Items = make([]InvoiceItemResponse, 0, len(inv.Items))
		for _, it := range inv.Items {
			item := InvoiceItemResponse{
				ID:                   it.ID,
				ArticleID:            it.ArticleID,
				Quantity:             it.Quantity,
				SellingPriceSnapshot: it.SellingPriceSnapshot,
				LineTotal:            roundMoney(float64(it.Quantity) * it.SellingPriceSnapshot),
			}
			// Artikel sonradan silinmiş olabilir; satır yine de görünür.
			if it.Article != nil {
				item.Article = &ArticleSummary{
					ID:           it.Article.ID,
					ArticleNo:    it.Article.ArticleNo,
					SellingPrice: it.Article.SellingPrice,
				}
			}
			resp.Items = append(resp.Items, item)
		}
	}
	return resp
}

// POST /api/invoices
func CreateInvoiceHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateInvoiceRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		businessID, err := auth.TenantID(c)
		if err != nil {
			return err
		}
		userID, userName, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		in := CreateInput{
			BusinessID:  businessID,
			UserID:      userID,
			UserName:    userName,
			CustomerID:  body.CustomerID,
			Discount:    body.Discount,
			GrossAmount: body.GrossAmount,
			NetAmount:   body.NetAmount,
		}
		if in.CustomerID != nil && *in.CustomerID == 0 {
			in.CustomerID = nil
		}
		for _, it := range body.Items {
			in.Items = append(in.Items, ItemInput{ArticleID: it.ArticleID, Quantity: it.Quantity})
		}
		if body.Date != "" {
			d, err := time.Parse("2006-01-02", body.Date)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Date must be in 'YYYY-MM-DD' format")
			}
			in.Date = &d
		}

		inv, err := NewService(database.DB).Create(c.UserContext(), in)
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(toResponse(inv, true))
	}
}

// GET /api/invoices?customer_id=&walk_in=&from=&to=
func ListInvoicesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		businessID, err := auth.TenantID(c)
		if err != nil {
			return err
		}

		var f ListFilter
		if s := c.Query("customer_id"); s != "" {
			cid, ok := database.ParseID(s)
			if !ok {
				return fiber.NewError(fiber.StatusBadRequest, "customer_id is invalid")
			}
			f.CustomerID = &cid
		}
		if s := c.Query("walk_in"); s != "" {
			w := s == "true" || s == "1"
			f.WalkIn = &w
		}
		if s := c.Query("from"); s != "" {
			from, err := time.Parse("2006-01-02", s)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "from is invalid")
			}
			f.From = &from
		}
		if s := c.Query("to"); s != "" {
			to, err := time.Parse("2006-01-02", s)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "to is invalid")
			}
			f.To = &to
		}

		rows, err := NewService(database.DB).List(c.UserContext(), businessID, f)
		if err != nil {
			return err
		}

		resp := make([]InvoiceResponse, 0, len(rows))
		for i := range rows {
			resp = append(resp, toResponse(&rows[i], false))
		}
		return c.JSON(resp)
	}
}

// GET /api/invoices/:id
func GetInvoiceHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		businessID, err := auth.TenantID(c)
		if err != nil {
			return err
		}

		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid invoice ID")
		}

		inv, err := NewService(database.DB).Get(c.UserContext(), businessID, uint(id))
		if err != nil {
			return err
		}
		return c.JSON(toResponse(inv, true))
	}
}
