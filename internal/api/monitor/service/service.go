package monitorService

import (
	"CraneGuard/internal/api/monitor"
	"CraneGuard/internal/entity"
	"CraneGuard/internal/pipeline"
	"CraneGuard/pkg/notify"
	"context"
	"github.com/sirupsen/logrus"
)

type IMonitorService interface {
	Zones() monitor.ZonesResponse
	SelectZone(ctx context.Context, id string) (entity.Zone, error)
	UpdateCamera(ctx context.Context, id, sourceURL string) (entity.Zone, error)
	Safety() monitor.SafetyResponse
	SetCurrentWeight(ctx context.Context, weight float64) (monitor.SafetyResponse, error)
	SetMaxWeight(ctx context.Context, weight float64) (monitor.SafetyResponse, error)
	Status() pipeline.Status
	Scan(ctx context.Context) (monitor.ScanResponse, error)
	Events(ctx context.Context) <-chan monitor.Event
}

type monitorService struct {
	log     *logrus.Logger
	session *pipeline.Session
	hub     *notify.Hub
}

func NewMonitorService(
	log *logrus.Logger,
	session *pipeline.Session,
	hub *notify.Hub,
) IMonitorService {
	return &monitorService{
		log:     log,
		session: session,
		hub:     hub,
	}
}
