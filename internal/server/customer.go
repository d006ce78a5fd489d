package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	customerdomain "github.com/smallbiznis/customerdir/internal/customer/domain"
	obscontext "github.com/smallbiznis/customerdir/internal/observability/context"
)

const ndjsonContentType = "application/x-ndjson"

type addressPayload struct {
	Zip      string `json:"zip"`
	Location string `json:"location"`
	Street   string `json:"street"`
}

type createCustomerRequest struct {
	Name      string         `json:"name"`
	Email     string         `json:"email"`
	Phone     string         `json:"phone"`
	TaxNumber string         `json:"tax_number"`
	Address   addressPayload `json:"address"`
	CreatedBy string         `json:"created_by"`
}

type updateCustomerRequest struct {
	Name      string         `json:"name"`
	Email     string         `json:"email"`
	Phone     string         `json:"phone"`
	TaxNumber string         `json:"tax_number"`
	Address   addressPayload `json:"address"`
}

type getBulkRequest struct {
	IDs []string `json:"ids" binding:"required,max=1000"`
}

type customerUserRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type customerResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Email       string         `json:"email"`
	Phone       string         `json:"phone"`
	TaxNumber   string         `json:"tax_number"`
	Address     addressPayload `json:"address"`
	DateCreated string         `json:"date_created"`
	CreatedBy   string         `json:"created_by"`
	Users       []string       `json:"users"`
	HasUser     bool           `json:"has_user"`
}

func toAddress(p addressPayload) customerdomain.Address {
	return customerdomain.Address{
		Zip:      p.Zip,
		Location: p.Location,
		Street:   p.Street,
	}
}

func fromAddress(a customerdomain.Address) addressPayload {
	return addressPayload{
		Zip:      a.Zip,
		Location: a.Location,
		Street:   a.Street,
	}
}

func (r createCustomerRequest) toDomain() customerdomain.CreateCustomerRequest {
	return customerdomain.CreateCustomerRequest{
		Name:      r.Name,
		Email:     r.Email,
		Phone:     r.Phone,
		TaxNumber: r.TaxNumber,
		Address:   toAddress(r.Address),
		CreatedBy: r.CreatedBy,
	}
}

func (r updateCustomerRequest) toDomain(id string) customerdomain.UpdateCustomerRequest {
	return customerdomain.UpdateCustomerRequest{
		ID:        id,
		Name:      r.Name,
		Email:     r.Email,
		Phone:     r.Phone,
		TaxNumber: r.TaxNumber,
		Address:   toAddress(r.Address),
	}
}

func toCustomerResponse(c customerdomain.Customer) customerResponse {
	users := make([]string, 0, len(c.Users))
	users = append(users, c.Users...)
	return customerResponse{
		ID:          c.ID,
		Name:        c.Name,
		Email:       c.Email,
		Phone:       c.Phone,
		TaxNumber:   c.TaxNumber.String(),
		Address:     fromAddress(c.Address),
		DateCreated: c.DateCreated.UTC().Format(time.RFC3339),
		CreatedBy:   c.CreatedBy,
		Users:       users,
		HasUser:     c.HasUser(),
	}
}

func (s *Server) CreateCustomer(c *gin.Context) {
	var req createCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	if createdBy := strings.TrimSpace(req.CreatedBy); createdBy != "" {
		ctx = obscontext.WithActor(ctx, "user", createdBy)
	}

	resp, err := s.customerSvc.Create(ctx, req.toDomain())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": toCustomerResponse(resp)})
}

func (s *Server) ListCustomerIDs(c *gin.Context) {
	ids, err := s.customerSvc.GetAllIDs(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": ids})
}

func (s *Server) GetCustomerByID(c *gin.Context) {
	resp, err := s.customerSvc.GetByID(c.Request.Context(), customerdomain.GetCustomerRequest{
		ID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": toCustomerResponse(resp)})
}

// GetCustomersBulk streams the requested customers as NDJSON, one per line.
// The service returns a snapshot, so nothing is locked while the body drains.
func (s *Server) GetCustomersBulk(c *gin.Context) {
	var req getBulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	customers, err := s.customerSvc.GetBulk(c.Request.Context(), customerdomain.GetBulkRequest{IDs: req.IDs})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Type", ndjsonContentType)
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()

	ctx := c.Request.Context()
	enc := json.NewEncoder(c.Writer)
	for _, customer := range customers {
		if ctx.Err() != nil {
			return
		}
		if err := enc.Encode(toCustomerResponse(customer)); err != nil {
			_ = c.Error(err)
			return
		}
		c.Writer.Flush()
	}
}

func (s *Server) UpdateCustomer(c *gin.Context) {
	var req updateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.customerSvc.Update(c.Request.Context(), req.toDomain(strings.TrimSpace(c.Param("id"))))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": toCustomerResponse(resp)})
}

func (s *Server) FindCustomers(c *gin.Context) {
	var query struct {
		Q string `form:"q"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ids, err := s.customerSvc.FindByName(c.Request.Context(), customerdomain.FindCustomerRequest{Query: query.Q})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": ids})
}

func (s *Server) AddCustomerUser(c *gin.Context) {
	var req customerUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("user_id", "required", "user_id is required"))
		return
	}

	err := s.customerSvc.AddUser(c.Request.Context(), customerdomain.CustomerUserRequest{
		CustomerID: strings.TrimSpace(c.Param("id")),
		UserID:     strings.TrimSpace(req.UserID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) RemoveCustomerUser(c *gin.Context) {
	err := s.customerSvc.RemoveUser(c.Request.Context(), customerdomain.CustomerUserRequest{
		CustomerID: strings.TrimSpace(c.Param("id")),
		UserID:     strings.TrimSpace(c.Param("user_id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
