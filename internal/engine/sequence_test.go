package engine

import (
	"testing"
	"time"

	"github.com/naywayne90/sygfp-artis-g-re-sub010/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferenceFormat(t *testing.T) {
	e := newTestEngine(t)
	at := time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)

	ref, err := AllocateReference(e.db, models.TypeEngagement, at)
	require.NoError(t, err)
	assert.Equal(t, "ENG-0326-0001", ref)
}

func TestReferencesAreMonotonicWithinPartition(t *testing.T) {
	e := newTestEngine(t)
	at := time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC)

	refs := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		ref, err := AllocateReference(e.db, models.TypeLiquidation, at)
		require.NoError(t, err)
		refs = append(refs, ref)
	}
	assert.Equal(t, []string{
		"LIQ-0726-0001", "LIQ-0726-0002", "LIQ-0726-0003", "LIQ-0726-0004", "LIQ-0726-0005",
	}, refs)
}

// Counters are partitioned by (type, month, year): each partition numbers
// from one independently.
func TestReferencePartitions(t *testing.T) {
	e := newTestEngine(t)
	mars := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	avril := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)

	r1, err := AllocateReference(e.db, models.TypeEngagement, mars)
	require.NoError(t, err)
	r2, err := AllocateReference(e.db, models.TypeEngagement, avril)
	require.NoError(t, err)
	r3, err := AllocateReference(e.db, models.TypeOrdonnancement, mars)
	require.NoError(t, err)

	assert.Equal(t, "ENG-0326-0001", r1)
	assert.Equal(t, "ENG-0426-0001", r2, "new month restarts the counter")
	assert.Equal(t, "ORD-0326-0001", r3, "each type counts on its own")
}

// The conflict-ignoring seed never resets a partition that already exists:
// allocation continues from the stored counter.
func TestAllocateReferenceJoinsExistingPartition(t *testing.T) {
	e := newTestEngine(t)
	at := time.Date(2026, time.May, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, e.db.Create(&models.CompteurReference{
		TypeDoc: models.TypeReglement, Mois: 5, Annee: 2026, Compteur: 41,
	}).Error)

	ref, err := AllocateReference(e.db, models.TypeReglement, at)
	require.NoError(t, err)
	assert.Equal(t, "REG-0526-0042", ref)
}

func TestAllocateReferenceUnknownType(t *testing.T) {
	e := newTestEngine(t)
	_, err := AllocateReference(e.db, "facture", time.Now())
	assert.Error(t, err)
}
