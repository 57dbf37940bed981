package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinRoute/internal/domain/models"
)

type fakeStorage struct {
	stored   []*models.OrderResult
	storeErr error
}

func (s *fakeStorage) StoreOrder(_ context.Context, r *models.OrderResult) error {
	if s.storeErr != nil {
		return s.storeErr
	}
	s.stored = append(s.stored, r)
	return nil
}

func (s *fakeStorage) QueryOrders(context.Context, string, time.Time, time.Time, int) ([]*models.OrderResult, error) {
	return nil, nil
}

func (s *fakeStorage) Health(context.Context) error { return nil }
func (s *fakeStorage) Close() error                 { return nil }

type fakePublisher struct {
	orders     []*models.OrderResult
	rejections []*models.RankedSignal
}

func (p *fakePublisher) PublishOrder(_ context.Context, r *models.OrderResult) error {
	p.orders = append(p.orders, r)
	return nil
}

func (p *fakePublisher) PublishRejection(_ context.Context, s *models.RankedSignal) error {
	p.rejections = append(p.rejections, s)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func TestOrderPersistJobStoresThenPublishes(t *testing.T) {
	storage := &fakeStorage{}
	publisher := &fakePublisher{}
	job := NewOrderPersistJob(storage, publisher)

	assert.Equal(t, TypeOrderPersist, job.Type())

	res := &models.OrderResult{OrderID: "o-1", Symbol: "BTC/USDT"}
	require.NoError(t, job.Handle(context.Background(), res))

	require.Len(t, storage.stored, 1)
	require.Len(t, publisher.orders, 1)
	assert.Equal(t, "o-1", publisher.orders[0].OrderID)
}

func TestOrderPersistJobSkipsPublishOnStoreFailure(t *testing.T) {
	storage := &fakeStorage{storeErr: errors.New("clickhouse down")}
	publisher := &fakePublisher{}
	job := NewOrderPersistJob(storage, publisher)

	err := job.Handle(context.Background(), &models.OrderResult{OrderID: "o-2"})
	assert.Error(t, err)
	assert.Empty(t, publisher.orders)
}

func TestRejectionPersistJobPublishes(t *testing.T) {
	publisher := &fakePublisher{}
	job := NewRejectionPersistJob(publisher)

	assert.Equal(t, TypeRejectionPersist, job.Type())

	rs := &models.RankedSignal{Status: models.SignalRejected, Reasons: []string{"confidence below floor"}}
	require.NoError(t, job.Handle(context.Background(), rs))
	require.Len(t, publisher.rejections, 1)
	assert.Equal(t, models.SignalRejected, publisher.rejections[0].Status)
}

func TestPersistJobsRejectForeignPayloads(t *testing.T) {
	orderJob := NewOrderPersistJob(&fakeStorage{}, &fakePublisher{})
	assert.Error(t, orderJob.Handle(context.Background(), 3.14))

	rejectionJob := NewRejectionPersistJob(&fakePublisher{})
	assert.Error(t, rejectionJob.Handle(context.Background(), "nope"))
}
