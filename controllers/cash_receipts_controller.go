package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hotel-reservation/services"
	"hotel-reservation/utils"
)

type ReceiveCashRequest struct {
	ReceiptNumber string `json:"receiptNumber"`
	CashierName   string `json:"cashierName"`
}

type BulkReceiveCashRequest struct {
	Items []struct {
		ReservationID uint   `json:"reservationId"`
		ReceiptNumber string `json:"receiptNumber"`
	} `json:"items"`
	CashierName string `json:"cashierName"`
}

// CashReceiptsController is the front desk view of cash payments.
type CashReceiptsController struct {
	Svc *services.PaymentService
}

func NewCashReceiptsController(svc *services.PaymentService) *CashReceiptsController {
	return &CashReceiptsController{Svc: svc}
}

// Summary handles GET /api/admin/cash-receipts
func (cc *CashReceiptsController) Summary(c *gin.Context) {
	sum, err := cc.Svc.CashReceipts(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, sum)
}

// Receive handles POST /api/admin/cash-receipts/:id/receive
func (cc *CashReceiptsController) Receive(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req ReceiveCashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	r, err := cc.Svc.ReceiveCash(c.Request.Context(), actorFrom(c), id, req.ReceiptNumber, req.CashierName)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, r)
}

// Bulk handles POST /api/admin/cash-receipts/bulk
func (cc *CashReceiptsController) Bulk(c *gin.Context) {
	var req BulkReceiveCashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	receipts := make([]services.CashReceipt, 0, len(req.Items))
	for _, item := range req.Items {
		receipts = append(receipts, services.CashReceipt{
			ReservationID: item.ReservationID,
			ReceiptNumber: item.ReceiptNumber,
		})
	}
	n, err := cc.Svc.BulkReceiveCash(c.Request.Context(), actorFrom(c), receipts, req.CashierName)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, gin.H{"processed": n, "requested": len(receipts)})
}
