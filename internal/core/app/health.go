package app

import (
	"context"
	"fmt"
	"time"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

type HealthService struct {
	app *App
}

func NewHealthService(app *App) *HealthService {
	return &HealthService{app: app}
}

func (s *HealthService) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}

	libraries, parsers, closed := s.app.Host.Stats()
	if closed {
		status.Status = "down"
		status.Components["registry"] = "closed"
	} else {
		status.Components["registry"] = fmt.Sprintf("ok (%d libraries, %d parsers)", libraries, parsers)
	}

	if s.app.History != nil {
		if _, err := s.app.History.Recent(1); err != nil {
			if status.Status == "up" {
				status.Status = "degraded"
			}
			status.Components["history"] = "error: " + err.Error()
		} else {
			status.Components["history"] = "ok"
		}
	} else if s.app.Config.History.Enabled {
		if status.Status == "up" {
			status.Status = "degraded"
		}
		status.Components["history"] = "missing but enabled in config"
	}

	return status
}
