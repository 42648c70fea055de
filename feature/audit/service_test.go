package audit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"crm-sync/core/database"
	"crm-sync/core/reconcile"
	"crm-sync/core/reconcile/memory"
	"crm-sync/core/registry"
	"crm-sync/core/storage"
	"crm-sync/core/storage/mocks"
	"crm-sync/feature/records"

	"github.com/minio/minio-go/v7"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	windowStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	windowEnd   = windowStart.Add(24 * time.Hour)
)

type engineMap map[string]*reconcile.Engine

func (m engineMap) Engine(recordType string) (*reconcile.Engine, error) {
	e, ok := m[recordType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", registry.ErrUnknownType, recordType)
	}
	return e, nil
}

// contactEngine has one drifted record and one record missing locally.
func contactEngine(t *testing.T) engineMap {
	t.Helper()
	m, err := reconcile.NewMapping("Contact", map[string]string{"Email": "email"}, reconcile.MappingOptions{LocalType: "contacts"})
	require.NoError(t, err)

	remote := memory.NewRemote()
	remote.Put("Contact", "C1", reconcile.Attributes{"Email": "a@example.com"})
	remote.Put("Contact", "C2", reconcile.Attributes{"Email": "c@example.com"})
	remote.SetUpdated("Contact", "C1", "C2")

	store := memory.NewStore()
	store.Put(reconcile.LocalRecord{
		Type:       "Contact",
		RemoteID:   "C1",
		Attributes: reconcile.Attributes{"email": "b@example.com"},
		UpdatedAt:  windowStart.Add(-time.Hour),
	})

	mech, err := reconcile.NewMechanism(reconcile.MechanismDefault, remote)
	require.NoError(t, err)
	return engineMap{"Contact": reconcile.NewEngine(remote, store, m, mech, reconcile.EngineConfig{PartitionSize: 100, Workers: 1}, nil, nil)}
}

func setupHistory(t *testing.T) *records.History {
	t.Helper()
	db, err := database.Connect(database.Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, records.Migrate(db))
	return records.NewHistory(db)
}

func TestRun_ArchivesReport(t *testing.T) {
	client := new(mocks.Client)
	var archived []byte
	client.On("PutObject", mock.Anything, "crm-sync", "audits/Contact/run-1.json", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			archived, _ = io.ReadAll(args.Get(3).(io.Reader))
		}).
		Return(minio.UploadInfo{}, nil)

	history := setupHistory(t)
	svc := NewService(contactEngine(t), history, client, "crm-sync", zap.NewNop())
	svc.newID = func() string { return "run-1" }

	result, err := svc.Run(context.Background(), "Contact", windowStart, windowEnd)
	require.NoError(t, err)
	assert.Equal(t, "run-1", result.ID)
	assert.Equal(t, reconcile.AuditFailure, result.Status)
	require.Len(t, result.Discrepancies, 2)

	g := goldie.New(t, goldie.WithFixtureDir("testdata"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "contact_report", archived)

	run, err := history.Get(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, records.RunSuccess, run.Status)
	assert.Equal(t, 2, run.Discrepancies)
	client.AssertExpectations(t)
}

func TestRun_WithoutStorage(t *testing.T) {
	svc := NewService(contactEngine(t), setupHistory(t), nil, "", zap.NewNop())

	result, err := svc.Run(context.Background(), "Contact", windowStart, windowEnd)
	require.NoError(t, err)

	report, err := svc.Get(context.Background(), "Contact", result.ID)
	require.NoError(t, err)
	assert.Nil(t, report.Result)
	assert.Equal(t, 2, report.Run.Discrepancies)
}

func TestRun_Validation(t *testing.T) {
	svc := NewService(contactEngine(t), setupHistory(t), nil, "", zap.NewNop())

	_, err := svc.Run(context.Background(), "Contact", windowEnd, windowStart)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = svc.Run(context.Background(), "Opportunity", windowStart, windowEnd)
	assert.ErrorIs(t, err, registry.ErrUnknownType)
}

func TestGet_LoadsArchivedResult(t *testing.T) {
	client := new(mocks.Client)
	client.On("PutObject", mock.Anything, "crm-sync", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{}, nil)
	client.On("GetObject", mock.Anything, "crm-sync", "audits/Contact/run-1.json", mock.Anything).
		Return(io.NopCloser(bytes.NewBufferString(`{"id":"run-1","record_type":"Contact","status":"failure","discrepancies":[]}`)), nil)
	client.On("GetObject", mock.Anything, "crm-sync", "audits/Contact/run-2.json", mock.Anything).
		Return(nil, storage.ErrNotFound)

	svc := NewService(contactEngine(t), setupHistory(t), client, "crm-sync", zap.NewNop())
	for _, id := range []string{"run-1", "run-2"} {
		svc.newID = func() string { return id }
		_, err := svc.Run(context.Background(), "Contact", windowStart, windowEnd)
		require.NoError(t, err)
	}

	report, err := svc.Get(context.Background(), "Contact", "run-1")
	require.NoError(t, err)
	require.NotNil(t, report.Result)
	assert.Equal(t, reconcile.AuditFailure, report.Result.Status)

	report, err = svc.Get(context.Background(), "Contact", "run-2")
	require.NoError(t, err)
	assert.Nil(t, report.Result)

	_, err = svc.Get(context.Background(), "Lead", "run-1")
	assert.ErrorIs(t, err, records.ErrRunNotFound)
}

func TestPrune(t *testing.T) {
	client := new(mocks.Client)
	client.On("PutObject", mock.Anything, "crm-sync", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{}, nil)
	client.On("RemoveObject", mock.Anything, "crm-sync", "audits/Contact/run-0.json", mock.Anything).Return(nil)

	history := setupHistory(t)
	svc := NewService(contactEngine(t), history, client, "crm-sync", zap.NewNop())
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("run-%d", i)
		svc.newID = func() string { return id }
		_, err := svc.Run(context.Background(), "Contact", windowStart, windowEnd)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	removed, err := svc.Prune(context.Background(), "Contact", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	client.AssertExpectations(t)
}
