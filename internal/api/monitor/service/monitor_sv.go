package monitorService

import (
	"CraneGuard/internal/api/monitor"
	"CraneGuard/internal/entity"
	"CraneGuard/internal/pipeline"
	"CraneGuard/internal/zone"
	contextPkg "CraneGuard/pkg/context"
	"CraneGuard/pkg/log"
	"context"
	"fmt"
)

func (s *monitorService) Zones() monitor.ZonesResponse {
	zones, active := s.session.Zones()
	return monitor.ZonesResponse{Zones: zones, ActiveZoneID: active}
}

func (s *monitorService) SelectZone(ctx context.Context, id string) (entity.Zone, error) {
	z, err := s.session.SelectZone(id)
	if err != nil {
		return entity.Zone{}, fmt.Errorf("select zone %q: %w", id, err)
	}

	s.log.WithFields(log.Fields{
		"request_id": contextPkg.GetRequestID(ctx),
		"zone":       z.ID,
	}).Info("[monitorService.SelectZone] zone selected")
	return z, nil
}

func (s *monitorService) UpdateCamera(ctx context.Context, id, sourceURL string) (entity.Zone, error) {
	if err := zone.ValidateCameraURL(sourceURL); err != nil {
		return entity.Zone{}, err
	}

	z, err := s.session.UpdateZoneCamera(id, sourceURL)
	if err != nil {
		return entity.Zone{}, fmt.Errorf("update camera for zone %q: %w", id, err)
	}

	s.log.WithFields(log.Fields{
		"request_id": contextPkg.GetRequestID(ctx),
		"zone":       z.ID,
		"local":      z.UsesLocalDevice(),
	}).Info("[monitorService.UpdateCamera] camera source updated")
	return z, nil
}

func (s *monitorService) Safety() monitor.SafetyResponse {
	return s.safetyResponse(s.session.Safety().Snapshot())
}

func (s *monitorService) SetCurrentWeight(ctx context.Context, weight float64) (monitor.SafetyResponse, error) {
	snap, err := s.session.Safety().SetCurrentWeight(weight)
	if err != nil {
		return monitor.SafetyResponse{}, err
	}

	s.log.WithFields(log.Fields{
		"request_id":      contextPkg.GetRequestID(ctx),
		"current_weight":  snap.CurrentWeight,
		"weight_overload": snap.WeightOverload,
	}).Debug("[monitorService.SetCurrentWeight] current weight set")
	return s.safetyResponse(snap), nil
}

func (s *monitorService) SetMaxWeight(ctx context.Context, weight float64) (monitor.SafetyResponse, error) {
	snap, err := s.session.Safety().SetMaxWeight(weight)
	if err != nil {
		return monitor.SafetyResponse{}, err
	}

	s.log.WithFields(log.Fields{
		"request_id": contextPkg.GetRequestID(ctx),
		"requested":  weight,
		"max_weight": snap.MaxWeight,
	}).Debug("[monitorService.SetMaxWeight] max weight set")
	return s.safetyResponse(snap), nil
}

func (s *monitorService) Status() pipeline.Status {
	return s.session.Status()
}

func (s *monitorService) Scan(ctx context.Context) (monitor.ScanResponse, error) {
	if err := s.session.Scan(); err != nil {
		return monitor.ScanResponse{}, err
	}

	_, active := s.session.Zones()
	s.log.WithFields(log.Fields{
		"request_id": contextPkg.GetRequestID(ctx),
		"zone":       active,
	}).Info("[monitorService.Scan] manual scan dispatched")
	return monitor.ScanResponse{Status: "dispatched", ZoneID: active}, nil
}

// Events merges safety snapshots and notifications into one stream, starting
// with the current snapshot. The channel closes when ctx is done or either
// source shuts down.
func (s *monitorService) Events(ctx context.Context) <-chan monitor.Event {
	state := s.session.Safety()
	safetyID, snapshots := state.Subscribe()

	var notifyID int
	var notifications <-chan entity.Notification
	if s.hub != nil {
		notifyID, notifications = s.hub.Subscribe()
	}

	out := make(chan monitor.Event, 8)
	go func() {
		defer close(out)
		defer state.Unsubscribe(safetyID)
		if s.hub != nil {
			defer s.hub.Unsubscribe(notifyID)
		}

		send := func(ev monitor.Event) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send(monitor.Event{Type: monitor.EventSafety, Data: s.Safety()}) {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-snapshots:
				if !ok {
					return
				}
				if !send(monitor.Event{Type: monitor.EventSafety, Data: s.safetyResponse(snap)}) {
					return
				}
			case n, ok := <-notifications:
				if !ok {
					return
				}
				if !send(monitor.Event{Type: monitor.EventNotification, Data: n}) {
					return
				}
			}
		}
	}()

	return out
}

func (s *monitorService) safetyResponse(snap entity.SafetySnapshot) monitor.SafetyResponse {
	minMax, maxMax := s.session.Safety().MaxWeightRange()
	return monitor.NewSafetyResponse(snap, minMax, maxMax)
}
