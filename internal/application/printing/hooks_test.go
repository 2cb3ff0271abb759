package printing_test

import (
	"context"
	"testing"

	"github.com/erp/labelprint/internal/application/printing"
	domain "github.com/erp/labelprint/internal/domain/printing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockLocationRecorder struct {
	mock.Mock
}

func (m *MockLocationRecorder) RecordLocations(ctx context.Context, codes []domain.SaleCode, locationID, locationName string) error {
	args := m.Called(ctx, codes, locationID, locationName)
	return args.Error(0)
}

type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) Archive(ctx context.Context, storeID string, doc *domain.Document) (string, error) {
	args := m.Called(ctx, storeID, doc)
	return args.String(0), args.Error(1)
}

func TestLocationHook(t *testing.T) {
	batch := confirmedBatch(3)
	recorder := new(MockLocationRecorder)
	recorder.On("RecordLocations", mock.Anything, batch.SaleCodes(), "loc-1", "Downtown").Return(nil).Once()
	hook := printing.NewLocationHook(recorder)

	err := hook.AfterPrint(context.Background(), printing.PrintedBatch{Batch: batch, Config: *testConfig()})

	assert.NoError(t, err)
	assert.Equal(t, "location", hook.Name())
	recorder.AssertExpectations(t)
}

func TestLocationHook_SkipsWithoutLocation(t *testing.T) {
	recorder := new(MockLocationRecorder)
	hook := printing.NewLocationHook(recorder)

	err := hook.AfterPrint(context.Background(), printing.PrintedBatch{Batch: confirmedBatch(1)})

	assert.NoError(t, err)
	recorder.AssertNotCalled(t, "RecordLocations", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestArchiveHook(t *testing.T) {
	doc := &domain.Document{Data: []byte("%PDF")}
	archive := new(MockArchive)
	archive.On("Archive", mock.Anything, "store-1", doc).Return("labels/2026/03/x.pdf", nil).Once()
	hook := printing.NewArchiveHook(archive)

	err := hook.AfterPrint(context.Background(), printing.PrintedBatch{Config: *testConfig(), Document: doc})

	assert.NoError(t, err)
	archive.AssertExpectations(t)
}
