// internal/api/handlers/shipment_handler.go
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"waste-tracking-api-server/internal/models"
	"waste-tracking-api-server/internal/service"
)

// maxDocumentSize caps multipart document uploads.
const maxDocumentSize = 20 << 20

type ShipmentHandler struct {
	Shipments *service.ShipmentService
	Tracking  *service.TrackingService
}

type CreateShipmentRequest struct {
	GeneratorCompanyID   string          `json:"generatorCompanyID" binding:"required"`
	TransporterCompanyID string          `json:"transporterCompanyID" binding:"required"`
	RecyclerCompanyID    string          `json:"recyclerCompanyID" binding:"required"`
	DriverID             string          `json:"driverID"`
	ManualDriverName     string          `json:"manualDriverName"`
	ManualVehiclePlate   string          `json:"manualVehiclePlate"`
	WasteTypeID          string          `json:"wasteTypeID" binding:"required"`
	Description          string          `json:"description"`
	Quantity             models.Quantity `json:"quantity"`
	PackagingType        string          `json:"packagingType"`
	PickupLocation       string          `json:"pickupLocation" binding:"required"`
	DeliveryLocation     string          `json:"deliveryLocation" binding:"required"`
	PickupDate           *time.Time      `json:"pickupDate"`
	DeliveryDate         *time.Time      `json:"deliveryDate"`
	Draft                bool            `json:"draft"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

type ApprovalRequest struct {
	ApprovalType    string `json:"approvalType" binding:"required"`
	Approve         *bool  `json:"approve" binding:"required"`
	RejectionReason string `json:"rejectionReason"`
}

func (h *ShipmentHandler) CreateShipment(c *gin.Context) {
	var req CreateShipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	s := &models.Shipment{
		GeneratorCompanyID:   req.GeneratorCompanyID,
		TransporterCompanyID: req.TransporterCompanyID,
		RecyclerCompanyID:    req.RecyclerCompanyID,
		DriverID:             req.DriverID,
		ManualDriverName:     req.ManualDriverName,
		ManualVehiclePlate:   req.ManualVehiclePlate,
		WasteTypeID:          req.WasteTypeID,
		Description:          req.Description,
		Quantity:             req.Quantity,
		PackagingType:        req.PackagingType,
		PickupLocation:       req.PickupLocation,
		DeliveryLocation:     req.DeliveryLocation,
		PickupDate:           req.PickupDate,
		DeliveryDate:         req.DeliveryDate,
	}
	if err := h.Shipments.Create(c.Request.Context(), s, req.Draft, currentActor(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

// GetShipments supports ?status=, ?approval=, ?companyID=, ?limit= and ?offset=.
func (h *ShipmentHandler) GetShipments(c *gin.Context) {
	filter := models.ShipmentFilter{
		Status:          models.ShipmentStatus(c.Query("status")),
		OverallApproval: models.ApprovalStatus(c.Query("approval")),
		CompanyID:       c.Query("companyID"),
		DriverID:        c.Query("driverID"),
		Limit:           queryInt(c, "limit"),
		Offset:          queryInt(c, "offset"),
	}
	shipments, err := h.Shipments.List(c.Request.Context(), filter, currentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, shipments)
}

func (h *ShipmentHandler) GetShipment(c *gin.Context) {
	s, err := h.Shipments.Get(c.Request.Context(), c.Param("id"), currentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *ShipmentHandler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s, err := h.Shipments.Advance(c.Request.Context(), c.Param("id"), req.Status, req.Notes, currentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *ShipmentHandler) GetStatusHistory(c *gin.Context) {
	history, err := h.Shipments.History(c.Request.Context(), c.Param("id"), currentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *ShipmentHandler) DecideApproval(c *gin.Context) {
	var req ApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s, err := h.Shipments.Decide(c.Request.Context(), c.Param("id"), req.ApprovalType, *req.Approve, req.RejectionReason, currentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// UploadDocument takes a multipart "file" field plus an optional "kind".
func (h *ShipmentHandler) UploadDocument(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxDocumentSize)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		badRequest(c, err)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		badRequest(c, err)
		return
	}
	defer file.Close()

	doc, err := h.Shipments.AttachDocument(
		c.Request.Context(),
		c.Param("id"),
		c.PostForm("kind"),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
		currentActor(c),
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (h *ShipmentHandler) GetDocuments(c *gin.Context) {
	docs, err := h.Shipments.Documents(c.Request.Context(), c.Param("id"), currentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, docs)
}

// GetRoute returns location samples tagged with the shipment, newest first.
func (h *ShipmentHandler) GetRoute(c *gin.Context) {
	ctx := c.Request.Context()
	s, err := h.Shipments.Get(ctx, c.Param("id"), currentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	route, err := h.Tracking.Route(ctx, s.ID.Hex(), queryInt(c, "limit"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, route)
}
