package server

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pscheid92/gridpulse/internal/domain"
	apperrors "github.com/pscheid92/gridpulse/internal/errors"
)

type checkInRequest struct {
	RegistrationID uuid.UUID `json:"registrationId"`
	Status         string    `json:"status"`
}

type weightRequest struct {
	RegistrationID uuid.UUID `json:"registrationId"`
	Heat           string    `json:"heat"`
	MeasuredWeight float64   `json:"measuredWeight"`
}

type inspectionRequest struct {
	RegistrationID uuid.UUID `json:"registrationId"`
	Status         string    `json:"status"`
	Remark         string    `json:"remark"`
}

type registrationRequest struct {
	ClassID     *uuid.UUID `json:"classId"`
	StartNumber int        `json:"startNumber"`
	DriverName  string     `json:"driverName"`
	VehicleName string     `json:"vehicleName"`
	ClubName    string     `json:"clubName"`
}

func eventIDParam(c echo.Context) (uuid.UUID, error) {
	eventID, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		return uuid.Nil, apperrors.ValidationError("invalid event id").
			WithContext("event_id", c.Param("eventId"))
	}
	return eventID, nil
}

func (s *Server) handleCheckIn(c echo.Context) error {
	eventID, err := eventIDParam(c)
	if err != nil {
		return err
	}
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}

	var req checkInRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.RegistrationID == uuid.Nil {
		return apperrors.ValidationError("registrationId is required")
	}
	status := domain.CheckInStatus(req.Status)
	if !status.Valid() {
		return apperrors.ValidationError("invalid check-in status").
			WithContext("status", req.Status)
	}

	rec, err := s.app.ProcessCheckIn(c.Request().Context(), identity, eventID, req.RegistrationID, status)
	if err != nil {
		return apperrors.FromDomain(err)
	}

	if err := c.JSON(200, rec); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleWeight(c echo.Context) error {
	eventID, err := eventIDParam(c)
	if err != nil {
		return err
	}
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}

	var req weightRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.RegistrationID == uuid.Nil {
		return apperrors.ValidationError("registrationId is required")
	}
	if req.Heat == "" {
		return apperrors.ValidationError("heat is required")
	}
	if req.MeasuredWeight <= 0 {
		return apperrors.ValidationError("measuredWeight must be positive").
			WithContext("measured_weight", req.MeasuredWeight)
	}

	rec, err := s.app.RecordWeight(c.Request().Context(), identity, eventID, req.RegistrationID, req.Heat, req.MeasuredWeight)
	if err != nil {
		return apperrors.FromDomain(err)
	}

	if err := c.JSON(200, rec); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleInspection(c echo.Context) error {
	eventID, err := eventIDParam(c)
	if err != nil {
		return err
	}
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}

	var req inspectionRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.RegistrationID == uuid.Nil {
		return apperrors.ValidationError("registrationId is required")
	}
	status := domain.InspectionStatus(req.Status)
	if !status.Valid() {
		return apperrors.ValidationError("invalid inspection status").
			WithContext("status", req.Status)
	}

	rec, err := s.app.RecordInspection(c.Request().Context(), identity, eventID, req.RegistrationID, status, req.Remark)
	if err != nil {
		return apperrors.FromDomain(err)
	}

	if err := c.JSON(200, rec); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleCreateRegistration(c echo.Context) error {
	eventID, err := eventIDParam(c)
	if err != nil {
		return err
	}
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}

	var req registrationRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.StartNumber <= 0 {
		return apperrors.ValidationError("startNumber must be positive")
	}
	if req.DriverName == "" {
		return apperrors.ValidationError("driverName is required")
	}

	reg, err := s.app.CreateRegistration(c.Request().Context(), identity, &domain.Registration{
		EventID:     eventID,
		ClassID:     req.ClassID,
		StartNumber: req.StartNumber,
		DriverName:  req.DriverName,
		VehicleName: req.VehicleName,
		ClubName:    req.ClubName,
	})
	if err != nil {
		return apperrors.FromDomain(err)
	}

	if err := c.JSON(201, reg); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleUpdateRegistration(c echo.Context) error {
	eventID, err := eventIDParam(c)
	if err != nil {
		return err
	}
	registrationID, err := uuid.Parse(c.Param("registrationId"))
	if err != nil {
		return apperrors.ValidationError("invalid registration id").
			WithContext("registration_id", c.Param("registrationId"))
	}
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}

	var req registrationRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.StartNumber <= 0 {
		return apperrors.ValidationError("startNumber must be positive")
	}
	if req.DriverName == "" {
		return apperrors.ValidationError("driverName is required")
	}

	reg, err := s.app.UpdateRegistration(c.Request().Context(), identity, &domain.Registration{
		ID:          registrationID,
		EventID:     eventID,
		ClassID:     req.ClassID,
		StartNumber: req.StartNumber,
		DriverName:  req.DriverName,
		VehicleName: req.VehicleName,
		ClubName:    req.ClubName,
	})
	if err != nil {
		return apperrors.FromDomain(err)
	}

	if err := c.JSON(200, reg); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleGetEvent(c echo.Context) error {
	eventID, err := eventIDParam(c)
	if err != nil {
		return err
	}

	event, err := s.app.GetEvent(c.Request().Context(), eventID)
	if err != nil {
		return apperrors.FromDomain(err)
	}

	if err := c.JSON(200, event); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleListRegistrations(c echo.Context) error {
	eventID, err := eventIDParam(c)
	if err != nil {
		return err
	}

	regs, err := s.app.ListRegistrations(c.Request().Context(), eventID)
	if err != nil {
		return apperrors.FromDomain(err)
	}
	if regs == nil {
		regs = []domain.Registration{}
	}

	if err := c.JSON(200, regs); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleGetState(c echo.Context) error {
	eventID, err := eventIDParam(c)
	if err != nil {
		return err
	}

	state, err := s.app.Snapshot(c.Request().Context(), eventID)
	if err != nil {
		return apperrors.FromDomain(err)
	}

	if err := c.JSON(200, state); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
