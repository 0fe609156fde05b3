// Package armapi serves the arm over HTTP: pose changes in, a WebSocket
// stream of published poses out.
package armapi

import (
	"context"
	"math"
	"net"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/log"
	"github.com/tigerbot-team/tigerbot/arm-controller/pkg/servogroup"
)

// PoseWriter is the write side of a servo group.
type PoseWriter interface {
	NumServos() int
	CurrentPose() servogroup.Pose
	WritePoseChange(ctx context.Context, pc servogroup.PoseChange) error
	WritePoseChanges(ctx context.Context, pcs []servogroup.PoseChange) error
}

// PoseSource hands out a fresh pose stream handle per subscriber.
type PoseSource interface {
	Poses() *servogroup.ReaderHandle
}

type Server struct {
	app    *fiber.App
	writer PoseWriter
	poses  PoseSource
}

func NewServer(writer PoseWriter, poses PoseSource) *Server {
	s := &Server{
		writer: writer,
		poses:  poses,
	}

	app := fiber.New(fiber.Config{
		AppName:               "Arm Controller",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	app.Use(recover.New())

	api := app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Post("/pose-change", s.handlePoseChange)
	api.Post("/pose-changes", s.handlePoseChanges)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/pose", websocket.New(s.handlePoseWS))

	s.app = app
	return s
}

func (s *Server) Listen(addr string) error {
	log.Info("Arm API listening", "addr", addr)
	return s.app.Listen(addr)
}

func (s *Server) Serve(ln net.Listener) error {
	log.Info("Arm API listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

func (s *Server) Shutdown(timeout time.Duration) error {
	return s.app.ShutdownWithTimeout(timeout)
}

type poseChangeRequest struct {
	Pose []float64 `json:"pose"`
	// Duration in seconds.
	Duration float64 `json:"duration"`
}

type poseChangesRequest struct {
	PoseChanges []poseChangeRequest `json:"pose_changes"`
}

type poseMessage struct {
	Angles []float64 `json:"angles"`
}

type healthResponse struct {
	Servos int       `json:"servos"`
	Pose   []float64 `json:"pose"`
}

// MaxDuration bounds a single pose change.
const MaxDuration = time.Hour

func (r poseChangeRequest) toPoseChange() (servogroup.PoseChange, error) {
	if math.IsNaN(r.Duration) || r.Duration <= 0 || r.Duration > MaxDuration.Seconds() {
		return servogroup.PoseChange{}, errors.Wrapf(servogroup.ErrInvalidArgument,
			"duration %vs must be positive and at most %v", r.Duration, MaxDuration)
	}
	return servogroup.PoseChange{
		Pose:     servogroup.NewPose(r.Pose...),
		Duration: time.Duration(r.Duration * float64(time.Second)),
	}, nil
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(healthResponse{
		Servos: s.writer.NumServos(),
		Pose:   s.writer.CurrentPose().Angles(),
	})
}

func (s *Server) handlePoseChange(c *fiber.Ctx) error {
	var req poseChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return errors.Wrap(servogroup.ErrInvalidArgument, err.Error())
	}
	pc, err := req.toPoseChange()
	if err != nil {
		return err
	}
	log.Debug("Pose change", "pose", req.Pose, "duration", pc.Duration)
	if err := s.writer.WritePoseChange(c.UserContext(), pc); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handlePoseChanges(c *fiber.Ctx) error {
	var req poseChangesRequest
	if err := c.BodyParser(&req); err != nil {
		return errors.Wrap(servogroup.ErrInvalidArgument, err.Error())
	}
	pcs := make([]servogroup.PoseChange, 0, len(req.PoseChanges))
	for i, r := range req.PoseChanges {
		pc, err := r.toPoseChange()
		if err != nil {
			return errors.Wrapf(err, "pose change %d", i+1)
		}
		pcs = append(pcs, pc)
	}
	log.Debug("Pose changes", "count", len(pcs))
	if err := s.writer.WritePoseChanges(c.UserContext(), pcs); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handlePoseWS(c *websocket.Conn) {
	id := uuid.NewString()
	poses := s.poses.Poses()
	defer poses.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("Pose subscriber connected", "session", id, "remote", c.RemoteAddr().String())
	defer log.Info("Pose subscriber disconnected", "session", id)

	// Inbound messages are ignored; a read error means the client is gone.
	go func() {
		defer cancel()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		pose, err := poses.RecvPose(ctx)
		if err == servogroup.ErrClosed {
			_ = c.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "pose stream closed"))
			return
		}
		if err != nil {
			return
		}
		if err := c.WriteJSON(poseMessage{Angles: pose.Angles()}); err != nil {
			log.Debug("Pose subscriber write failed", "session", id, "err", err)
			return
		}
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.Is(err, servogroup.ErrInvalidArgument):
		code = fiber.StatusBadRequest
	default:
		log.Error("Request failed", "path", c.Path(), "err", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
