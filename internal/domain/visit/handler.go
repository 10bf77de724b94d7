package visit

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicflow/clinicd/internal/platform/auth"
	"github.com/clinicflow/clinicd/pkg/pagination"
)

// ClockControl is the operator surface of the virtual clock exposed over the
// API, used to rehearse a clinic day or correct drift.
type ClockControl interface {
	Now() time.Time
	IsSimulated() bool
	SetSimulated(bool)
	Adjust(deltaMinutes int) error
	SetTime(t time.Time) error
}

type Handler struct {
	svc   *Service
	clock ClockControl
}

func NewHandler(svc *Service, clock ClockControl) *Handler {
	return &Handler{svc: svc, clock: clock}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole("admin", "physician", "nurse", "front-desk"))
	read.GET("/patients", h.ListPatients)
	read.GET("/patients/:id", h.GetPatient)
	read.GET("/patients/:id/history", h.GetHistory)
	read.GET("/board", h.Board)
	read.GET("/metrics/visits", h.Metrics)
	read.GET("/export/json", h.ExportJSON)
	read.GET("/clock", h.GetClock)

	write := api.Group("", auth.RequireRole("admin", "nurse", "front-desk"))
	write.POST("/patients", h.AddPatient)
	write.DELETE("/patients/:id", h.DeletePatient)
	write.DELETE("/patients", h.ClearPatients)
	write.PATCH("/patients/:id/status", h.UpdateStatus)
	write.PATCH("/patients/:id/room", h.AssignRoom)
	write.PATCH("/patients/:id/checkin", h.SetCheckInTime)
	write.PATCH("/patients/:id/demographics", h.EditDemographics)
	write.POST("/import/text", h.ImportText)
	write.POST("/import/json", h.ImportJSON)

	// Clock control is an operator action.
	ops := api.Group("", auth.RequireRole("admin", "front-desk"))
	ops.POST("/clock/mode", h.SetClockMode)
	ops.POST("/clock/adjust", h.AdjustClock)
}

func httpError(err error) error {
	var mfe *MissingFieldError
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient record not found")
	case errors.Is(err, ErrInvalidRegression):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrUnknownStatus), errors.As(err, &mfe):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func recordID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) AddPatient(c echo.Context) error {
	var d Draft
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d.Status = NormalizeStatus(string(d.Status))
	rec, err := h.svc.AddPatient(c.Request().Context(), d)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) ListPatients(c echo.Context) error {
	ctx := c.Request().Context()

	var records []*PatientRecord
	if raw := c.QueryParam("status"); raw != "" {
		records = h.svc.GetByStatus(ctx, NormalizeStatus(raw))
	} else {
		records = h.svc.GetAll(ctx)
	}

	pg := pagination.FromContext(c)
	total := len(records)
	lo, hi := pg.Slice(total)
	return c.JSON(http.StatusOK, pagination.NewResponse(records[lo:hi], total, pg.Limit, pg.Offset))
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := recordID(c)
	if err != nil {
		return err
	}
	rec, err := h.svc.GetByID(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) GetHistory(c echo.Context) error {
	id, err := recordID(c)
	if err != nil {
		return err
	}
	rec, err := h.svc.GetByID(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	history := rec.StatusHistory
	if history == nil {
		history = []StatusChange{}
	}
	return c.JSON(http.StatusOK, history)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	id, err := recordID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ClearPatients(c echo.Context) error {
	h.svc.Clear(c.Request().Context())
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := recordID(c)
	if err != nil {
		return err
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	// Unlike the tolerant import paths, a direct status command must not
	// fold a typo to scheduled.
	target, ok := LookupStatus(body.Status)
	if !ok {
		return httpError(fmt.Errorf("%w: %q", ErrUnknownStatus, body.Status))
	}
	rec, err := h.svc.UpdateStatus(c.Request().Context(), id, target)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) AssignRoom(c echo.Context) error {
	id, err := recordID(c)
	if err != nil {
		return err
	}
	var body struct {
		Room string `json:"room"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.AssignRoom(c.Request().Context(), id, body.Room)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) SetCheckInTime(c echo.Context) error {
	id, err := recordID(c)
	if err != nil {
		return err
	}
	var body struct {
		CheckInTime time.Time `json:"checkInTime"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if body.CheckInTime.IsZero() {
		return echo.NewHTTPError(http.StatusBadRequest, "checkInTime is required")
	}
	rec, err := h.svc.SetCheckInTime(c.Request().Context(), id, body.CheckInTime)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) EditDemographics(c echo.Context) error {
	id, err := recordID(c)
	if err != nil {
		return err
	}
	var body struct {
		Name     string `json:"name"`
		DOB      string `json:"dob"`
		Provider string `json:"provider"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.EditDemographics(c.Request().Context(), id, body.Name, body.DOB, body.Provider)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) ImportText(c echo.Context) error {
	var body struct {
		Text string `json:"text"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	added, replaced, skipped := h.svc.ImportText(c.Request().Context(), body.Text)
	return c.JSON(http.StatusOK, map[string]int{
		"added":    added,
		"replaced": replaced,
		"skipped":  skipped,
	})
}

func (h *Handler) ImportJSON(c echo.Context) error {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	records, err := h.svc.ImportJSON(c.Request().Context(), data)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"imported": len(records)})
}

func (h *Handler) ExportJSON(c echo.Context) error {
	data, err := h.svc.ExportJSON(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSONBlob(http.StatusOK, data)
}

// BoardEntry is one row of the live waiting board.
type BoardEntry struct {
	*PatientRecord
	WaitMinutes int `json:"waitMinutes"`
}

// Board returns all non-terminal records with their current wait figure,
// ordered by appointment time.
func (h *Handler) Board(c echo.Context) error {
	ctx := c.Request().Context()
	machine := h.svc.Machine()

	entries := []BoardEntry{}
	for _, rec := range h.svc.GetAll(ctx) {
		if rec.Status.IsTerminal() {
			continue
		}
		entries = append(entries, BoardEntry{PatientRecord: rec, WaitMinutes: machine.WaitMinutes(rec)})
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *Handler) Metrics(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Metrics(c.Request().Context()))
}

type clockState struct {
	Now       time.Time `json:"now"`
	Simulated bool      `json:"simulated"`
}

func (h *Handler) GetClock(c echo.Context) error {
	return c.JSON(http.StatusOK, clockState{Now: h.clock.Now(), Simulated: h.clock.IsSimulated()})
}

func (h *Handler) SetClockMode(c echo.Context) error {
	var body struct {
		Simulated bool `json:"simulated"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	h.clock.SetSimulated(body.Simulated)
	return c.JSON(http.StatusOK, clockState{Now: h.clock.Now(), Simulated: h.clock.IsSimulated()})
}

func (h *Handler) AdjustClock(c echo.Context) error {
	var body struct {
		DeltaMinutes int        `json:"deltaMinutes"`
		Absolute     *time.Time `json:"absolute"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var err error
	if body.Absolute != nil {
		err = h.clock.SetTime(*body.Absolute)
	} else {
		err = h.clock.Adjust(body.DeltaMinutes)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return c.JSON(http.StatusOK, clockState{Now: h.clock.Now(), Simulated: h.clock.IsSimulated()})
}
