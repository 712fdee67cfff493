package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/nexthr/linerelay/internal/conversation"
	"github.com/nexthr/linerelay/internal/report"
)

type reportCreator interface {
	Create(ctx context.Context, params report.CreateParams) (report.Report, error)
}

// ReportHandler exposes the report pipeline to Dify, which posts here
// when an interview conversation ends.
type ReportHandler struct {
	logger   *slog.Logger
	reports  reportCreator
	validate *validator.Validate
}

func NewReportHandler(log *slog.Logger, reports reportCreator) *ReportHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ReportHandler{
		logger:   log.With(slog.String("handler", "report")),
		reports:  reports,
		validate: validator.New(),
	}
}

func (h *ReportHandler) Register(e *echo.Echo) {
	e.POST("/report/create", h.Create)
}

type createReportRequest struct {
	LineUserID string `json:"lineUserId" validate:"required"`
	DataA      string `json:"dataA"`
	DataB      string `json:"dataB"`
}

type createReportResponse struct {
	Message string        `json:"message"`
	Report  reportPayload `json:"report"`
}

type reportPayload struct {
	ID         string `json:"report_id"`
	CompanyID  string `json:"company_id"`
	LineUserID string `json:"line_user_id"`
	S3Path     string `json:"s3_path"`
}

func (h *ReportHandler) Create(c echo.Context) error {
	var req createReportRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	rep, err := h.reports.Create(c.Request().Context(), report.CreateParams{
		LineUserID: req.LineUserID,
		DataA:      req.DataA,
		DataB:      req.DataB,
	})
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid lineUserId")
		}
		h.logger.Error("create report failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create report")
	}

	return c.JSON(http.StatusOK, createReportResponse{
		Message: "Report created, PDF stored, and mail sent",
		Report: reportPayload{
			ID:         rep.ID,
			CompanyID:  rep.CompanyID,
			LineUserID: rep.LineUserID,
			S3Path:     rep.S3Path,
		},
	})
}
