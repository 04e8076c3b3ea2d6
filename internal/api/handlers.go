package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/mgavrilo/dosetrack/internal/errors"
	"github.com/mgavrilo/dosetrack/internal/ledger"
	"github.com/mgavrilo/dosetrack/internal/metrics"
	"github.com/mgavrilo/dosetrack/internal/schedule"
	"github.com/mgavrilo/dosetrack/internal/stats"
)

// loadOwnedAssignment fetches an assignment and checks it belongs to
// the profile in the route.
func (s *Server) loadOwnedAssignment(c *fiber.Ctx) (*ledger.Assignment, error) {
	a, err := s.store.GetAssignment(c.Params("pmid"))
	if err != nil {
		s.logger.Error("failed to load assignment", zap.Error(err))
		return nil, c.Status(500).JSON(fiber.Map{"error": "failed to load medication"})
	}
	if a == nil || a.ProfileID != c.Params("id") {
		return nil, c.Status(404).JSON(fiber.Map{"error": "medication not found"})
	}
	return a, nil
}

func (s *Server) handleGetSchedule(c *fiber.Ctx) error {
	a, err := s.loadOwnedAssignment(c)
	if a == nil {
		return err
	}

	return c.JSON(scheduleResponse{
		ProfileMedicationID: a.ID,
		MedicationName:      a.MedicationName,
		Category:            a.Category,
		Groups:              a.Schedule().Raw(),
	})
}

func (s *Server) handlePutSchedule(c *fiber.Ctx) error {
	a, err := s.loadOwnedAssignment(c)
	if a == nil {
		return err
	}

	var req scheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}

	// Validation failures never touch storage.
	sched, err := schedule.Normalize(req.Groups)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}

	saved, err := s.store.SaveSchedule(a.ID, sched)
	if err != nil {
		s.logger.Error("failed to save schedule",
			zap.String("profile_medication_id", a.ID),
			zap.Error(err),
		)
		return c.Status(500).JSON(fiber.Map{"error": "failed to save schedule"})
	}

	return c.JSON(scheduleResponse{
		ProfileMedicationID: saved.ID,
		MedicationName:      saved.MedicationName,
		Category:            saved.Category,
		Groups:              saved.Schedule().Raw(),
	})
}

func (s *Server) handleToday(c *fiber.Ctx) error {
	view, err := s.tracker.Today(c.Params("id"))
	if err != nil {
		s.logger.Error("failed to build day view", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"error": "failed to build day view"})
	}
	return c.JSON(view)
}

func (s *Server) handlePostIntake(c *fiber.Ctx) error {
	var req intakeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}
	if req.ProfileID == "" || req.ProfileMedicationID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "profile_id and profile_medication_id are required"})
	}

	a, err := s.store.GetAssignment(req.ProfileMedicationID)
	if err != nil {
		s.logger.Error("failed to load assignment", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"error": "failed to record intake"})
	}
	if a == nil || a.ProfileID != req.ProfileID {
		return c.Status(404).JSON(fiber.Map{"error": "medication not found"})
	}

	date := req.Date
	if date == "" {
		date = s.tracker.TodayDate()
	}

	for i, raw := range req.Times {
		tod, err := schedule.ParseTimeOfDay(raw)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		}
		if err := s.store.RecordIntake(req.ProfileID, a.ID, date, tod, req.Taken[i]); err != nil {
			s.logger.Error("failed to record intake",
				zap.String("profile_medication_id", a.ID),
				zap.Error(err),
			)
			return c.Status(500).JSON(fiber.Map{"error": "failed to record intake"})
		}
		metrics.IntakesRecorded.WithLabelValues(strconv.FormatBool(req.Taken[i])).Inc()
	}

	// Respond with a re-fetched view so the client renders exactly
	// what the store now holds.
	view, err := s.tracker.Today(req.ProfileID)
	if err != nil {
		s.logger.Error("failed to rebuild day view", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"error": "failed to build day view"})
	}
	return c.Status(201).JSON(view)
}

func (s *Server) handleStatistics(c *fiber.Ctx) error {
	period, err := stats.ParsePeriod(c.Query("period", string(stats.Weekly)))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}

	snap, err := s.aggregator.Aggregate(c.Context(), c.Params("id"), period)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrStatsTotal.Code) {
			return c.Status(502).JSON(fiber.Map{"error": "statistics unavailable"})
		}
		s.logger.Error("statistics load failed", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"error": "failed to load statistics"})
	}

	return c.JSON(snap)
}
