package file

import (
	"testing"
	"time"

	"github.com/approvio/approvio/pkg/models"
	"github.com/approvio/approvio/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInstance(id, requesterID string) *models.WorkflowInstance {
	now := time.Now().UTC()

	return &models.WorkflowInstance{
		ID:           id,
		WorkflowType: models.WorkflowTypeLeaveRequest,
		RequesterID:  requesterID,
		Status:       models.InstanceStatusInProgress,
		CurrentStage: 1,
		TotalStages:  2,
		Chain: []*models.ApprovalChainEntry{
			{ApproverID: "mgr-1", StageNumber: 1, StageName: "Supervisor Review", Status: models.ChainEntryPending},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestInstanceRepository_SaveDuplicate(t *testing.T) {
	repo := NewInstanceRepository(t.TempDir())

	instance := testInstance("wf-1", "emp-1")
	require.NoError(t, repo.Save(t.Context(), instance))
	assert.Equal(t, int64(1), instance.Revision)

	err := repo.Save(t.Context(), testInstance("wf-1", "emp-1"))
	assert.ErrorIs(t, err, persistence.ErrAlreadyExists)
}

func TestInstanceRepository_UpdateRevisions(t *testing.T) {
	repo := NewInstanceRepository(t.TempDir())

	require.NoError(t, repo.Save(t.Context(), testInstance("wf-1", "emp-1")))

	first, err := repo.ByID(t.Context(), "wf-1")
	require.NoError(t, err)
	second, err := repo.ByID(t.Context(), "wf-1")
	require.NoError(t, err)

	first.CurrentApproverID = "mgr-1"
	require.NoError(t, repo.Update(t.Context(), first))
	assert.Equal(t, int64(2), first.Revision)

	// The second reader still holds revision 1 and loses the race.
	second.CurrentApproverID = "mgr-2"
	err = repo.Update(t.Context(), second)
	assert.ErrorIs(t, err, persistence.ErrRevisionConflict)

	stored, err := repo.ByID(t.Context(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "mgr-1", stored.CurrentApproverID)
}

func TestInstanceRepository_UpdateMissing(t *testing.T) {
	repo := NewInstanceRepository(t.TempDir())

	err := repo.Update(t.Context(), testInstance("wf-404", "emp-1"))
	assert.ErrorIs(t, err, persistence.ErrInstanceNotFound)
}

func TestInstanceRepository_PendingByApprover(t *testing.T) {
	repo := NewInstanceRepository(t.TempDir())

	pending := testInstance("wf-1", "emp-1")
	pending.CurrentApproverID = "mgr-1"
	require.NoError(t, repo.Save(t.Context(), pending))

	other := testInstance("wf-2", "emp-2")
	other.CurrentApproverID = "mgr-2"
	require.NoError(t, repo.Save(t.Context(), other))

	done := testInstance("wf-3", "emp-3")
	done.CurrentApproverID = "mgr-1"
	done.Status = models.InstanceStatusApproved
	require.NoError(t, repo.Save(t.Context(), done))

	result, err := repo.PendingByApprover(t.Context(), "mgr-1")
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "wf-1", result[0].ID)
}

func TestInstanceRepository_DelegatedTo(t *testing.T) {
	repo := NewInstanceRepository(t.TempDir())

	delegated := testInstance("wf-1", "emp-1")
	delegated.Chain[0].Status = models.ChainEntryDelegated
	delegated.Chain[0].DelegatedTo = "mgr-2"
	delegated.Chain[0].ApproverID = "mgr-2"
	delegated.CurrentApproverID = "mgr-2"
	require.NoError(t, repo.Save(t.Context(), delegated))

	require.NoError(t, repo.Save(t.Context(), testInstance("wf-2", "emp-2")))

	result, err := repo.DelegatedTo(t.Context(), "mgr-2")
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "wf-1", result[0].ID)

	result, err = repo.DelegatedTo(t.Context(), "mgr-9")
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestInstanceRepository_ByRequester(t *testing.T) {
	repo := NewInstanceRepository(t.TempDir())

	base := time.Now().UTC()

	for i, id := range []string{"wf-1", "wf-2", "wf-3"} {
		instance := testInstance(id, "emp-1")
		instance.CreatedAt = base.Add(time.Duration(i) * time.Minute)

		if id == "wf-2" {
			instance.Status = models.InstanceStatusRejected
		}

		require.NoError(t, repo.Save(t.Context(), instance))
	}

	require.NoError(t, repo.Save(t.Context(), testInstance("wf-other", "emp-2")))

	result, err := repo.ByRequester(t.Context(), "emp-1", persistence.ListInstancesOptions{})
	require.NoError(t, err)
	require.Len(t, result, 3)
	assert.Equal(t, "wf-3", result[0].ID, "newest first")

	rejected := models.InstanceStatusRejected
	result, err = repo.ByRequester(t.Context(), "emp-1", persistence.ListInstancesOptions{Status: &rejected})
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "wf-2", result[0].ID)

	result, err = repo.ByRequester(t.Context(), "emp-1", persistence.ListInstancesOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, result, 2)

	result, err = repo.ByRequester(t.Context(), "emp-1", persistence.ListInstancesOptions{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, result, 1)

	result, err = repo.ByRequester(t.Context(), "emp-1", persistence.ListInstancesOptions{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, validateID("wf-1"))
	assert.Error(t, validateID(""))
	assert.Error(t, validateID("../escape"))
	assert.Error(t, validateID("a/b"))
	assert.Error(t, validateID(`a\b`))
}
