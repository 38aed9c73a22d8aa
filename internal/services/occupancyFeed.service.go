package services

import (
	"context"
	"errors"
	"sync"

	"findmyspot/internal/database"
	"findmyspot/internal/events"
	"findmyspot/internal/models"
	"findmyspot/internal/repositories"
	"findmyspot/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OccupancyFeed delivers live parking spot snapshots to subscribers. Each
// subscription starts with the current state and then receives updates;
// a slow subscriber only ever sees the newest pending snapshot per spot.
type OccupancyFeed struct {
	db    database.DB
	spots repositories.ParkingSpotRepository
	bus   *events.EventBus
	log   logger.Logger

	mu          sync.Mutex
	subscribers map[uint64]*occupancySubscriber
	nextID      uint64
}

func NewOccupancyFeed(
	db database.DB,
	spots repositories.ParkingSpotRepository,
	bus *events.EventBus,
) *OccupancyFeed {
	feed := &OccupancyFeed{
		db:          db,
		spots:       spots,
		bus:         bus,
		log:         logger.New("OccupancyFeed"),
		subscribers: make(map[uint64]*occupancySubscriber),
	}

	if bus != nil {
		if err := bus.Subscribe(events.OCCUPANCY_CHANNEL, feed.handleEvent); err != nil {
			feed.log.Function("NewOccupancyFeed").
				Er("failed to subscribe to occupancy events, delivering locally only", err)
			feed.bus = nil
		}
	}

	return feed
}

// Subscribe streams snapshots of spotID, or of every spot when spotID is
// uuid.Nil. The channel is closed once ctx is done.
func (f *OccupancyFeed) Subscribe(
	ctx context.Context,
	spotID uuid.UUID,
) (<-chan models.ParkingSpot, error) {
	log := f.log.TraceFromContext(ctx).Function("Subscribe")

	subscriber := &occupancySubscriber{
		spotID:    spotID,
		pending:   make(map[uuid.UUID]models.ParkingSpot),
		signal:    make(chan struct{}, 1),
		delivered: make(map[uuid.UUID]int64),
	}

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subscribers[id] = subscriber
	f.mu.Unlock()

	current, err := f.currentState(ctx, spotID)
	if err != nil {
		f.unsubscribe(id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, log.ErrorWithType(ErrNotFound, "parking spot not found", "spotID", spotID)
		}
		return nil, Classify(ctx, log, "failed to load current occupancy", err)
	}

	for _, spot := range current {
		subscriber.offer(*spot)
	}

	out := make(chan models.ParkingSpot)
	go func() {
		defer close(out)
		defer f.unsubscribe(id)
		subscriber.run(ctx, out)
	}()

	return out, nil
}

// Publish announces a committed snapshot to every subscriber of the spot.
func (f *OccupancyFeed) Publish(ctx context.Context, spot models.ParkingSpot) {
	log := f.log.TraceFromContext(ctx).Function("Publish")

	if f.bus != nil {
		event, err := events.NewEvent(events.SPOT_UPDATE, spot)
		if err == nil {
			err = f.bus.Publish(events.OCCUPANCY_CHANNEL, event)
		}
		if err == nil {
			return
		}
		log.Warn("failed to publish occupancy event, delivering locally", "spotID", spot.ID, "error", err)
	}

	f.dispatch(spot)
}

// SubscriberCount reports the number of live subscriptions.
func (f *OccupancyFeed) SubscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers)
}

func (f *OccupancyFeed) handleEvent(event events.Event) error {
	if event.Type != events.SPOT_UPDATE {
		return nil
	}

	var spot models.ParkingSpot
	if err := event.Decode(&spot); err != nil {
		return err
	}

	f.dispatch(spot)
	return nil
}

func (f *OccupancyFeed) dispatch(spot models.ParkingSpot) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, subscriber := range f.subscribers {
		if subscriber.spotID == uuid.Nil || subscriber.spotID == spot.ID {
			subscriber.offer(spot)
		}
	}
}

func (f *OccupancyFeed) unsubscribe(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subscribers, id)
}

func (f *OccupancyFeed) currentState(
	ctx context.Context,
	spotID uuid.UUID,
) ([]*models.ParkingSpot, error) {
	tx := f.db.SQLWithContext(ctx)

	if spotID == uuid.Nil {
		return f.spots.GetAll(ctx, tx)
	}

	spot, err := f.spots.GetByID(ctx, tx, spotID)
	if err != nil {
		return nil, err
	}
	return []*models.ParkingSpot{spot}, nil
}

type occupancySubscriber struct {
	spotID uuid.UUID
	signal chan struct{}

	mu      sync.Mutex
	pending map[uuid.UUID]models.ParkingSpot
	order   []uuid.UUID

	delivered map[uuid.UUID]int64
}

// offer queues spot, replacing an older pending snapshot of the same spot.
// It never blocks.
func (s *occupancySubscriber) offer(spot models.ParkingSpot) {
	s.mu.Lock()
	existing, queued := s.pending[spot.ID]
	switch {
	case !queued:
		s.order = append(s.order, spot.ID)
		s.pending[spot.ID] = spot
	case spot.Version >= existing.Version:
		s.pending[spot.ID] = spot
	}
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *occupancySubscriber) next() (models.ParkingSpot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.order) == 0 {
		return models.ParkingSpot{}, false
	}

	id := s.order[0]
	s.order = s.order[1:]
	spot := s.pending[id]
	delete(s.pending, id)
	return spot, true
}

func (s *occupancySubscriber) run(ctx context.Context, out chan<- models.ParkingSpot) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.signal:
		}

		for {
			spot, ok := s.next()
			if !ok {
				break
			}

			if version, seen := s.delivered[spot.ID]; seen && spot.Version <= version {
				continue
			}

			select {
			case out <- spot:
				s.delivered[spot.ID] = spot.Version
			case <-ctx.Done():
				return
			}
		}
	}
}
