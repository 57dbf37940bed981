package repository

import (
	"context"

	"CoinRoute/internal/domain/models"
	"CoinRoute/internal/domain/repository"
	"CoinRoute/pkg/queue"
)

// Queue message types for asynchronous persistence.
const (
	TypeOrderPersist     = "order.persist"
	TypeRejectionPersist = "rejection.persist"
)

// OrderPersistJob writes a filled order to storage and announces it on
// the event bus. Running it behind the queue keeps exchange-facing
// workers off the storage round trip.
type OrderPersistJob struct {
	storage   repository.Storage
	publisher repository.Publisher
}

func NewOrderPersistJob(storage repository.Storage, publisher repository.Publisher) *OrderPersistJob {
	return &OrderPersistJob{storage: storage, publisher: publisher}
}

func (j *OrderPersistJob) Name() string { return "order-persist" }
func (j *OrderPersistJob) Type() string { return TypeOrderPersist }

func (j *OrderPersistJob) Handle(ctx context.Context, payload interface{}) error {
	res, err := queue.ParsePayload[models.OrderResult](payload)
	if err != nil {
		return err
	}
	if err := j.storage.StoreOrder(ctx, res); err != nil {
		return err
	}
	return j.publisher.PublishOrder(ctx, res)
}

// RejectionPersistJob announces a rejected signal on the event bus.
type RejectionPersistJob struct {
	publisher repository.Publisher
}

func NewRejectionPersistJob(publisher repository.Publisher) *RejectionPersistJob {
	return &RejectionPersistJob{publisher: publisher}
}

func (j *RejectionPersistJob) Name() string { return "rejection-persist" }
func (j *RejectionPersistJob) Type() string { return TypeRejectionPersist }

func (j *RejectionPersistJob) Handle(ctx context.Context, payload interface{}) error {
	rs, err := queue.ParsePayload[models.RankedSignal](payload)
	if err != nil {
		return err
	}
	return j.publisher.PublishRejection(ctx, rs)
}
