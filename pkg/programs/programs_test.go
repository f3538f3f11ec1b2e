package programs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unicef/hope-sub007/internal/testfixtures"
	"github.com/unicef/hope-sub007/pkg/models"
	"github.com/unicef/hope-sub007/pkg/programs"
	"github.com/unicef/hope-sub007/pkg/report"
	"github.com/unicef/hope-sub007/pkg/store"
)

func TestStorageProgram(t *testing.T) {
	f := testfixtures.New(t)
	dct := f.CollectingType(models.CollectingTypeSizeOnly)
	resolver := programs.NewResolver(f.Store, testfixtures.Logger())

	r := report.New()
	ctx := report.WithRecorder(f.Ctx, r)

	first, err := resolver.StorageProgram(ctx, f.BA.ID, models.CollectingTypeSizeOnly)
	require.NoError(t, err)
	assert.Equal(t, models.ProgramKindStorage, first.Kind)
	assert.Equal(t, models.ProgramStatusActive, first.Status)
	assert.False(t, first.IsVisible)
	assert.Equal(t, dct.ID, models.StringValue(first.DataCollectingTypeID))

	second, err := resolver.StorageProgram(ctx, f.BA.ID, models.CollectingTypeSizeOnly)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, r.Counts()[models.EntityProgram].Created)

	unknown, err := resolver.StorageProgram(ctx, f.BA.ID, "something_else")
	require.NoError(t, err)
	assert.Equal(t, models.CollectingTypeUnknown, unknown.DataCollectingTypeCode)
	assert.Nil(t, unknown.DataCollectingTypeID)
	assert.NotEqual(t, first.ID, unknown.ID)
}

func TestVoidProgram(t *testing.T) {
	f := testfixtures.New(t)
	resolver := programs.NewResolver(f.Store, testfixtures.Logger())

	void, err := resolver.VoidProgram(f.Ctx, f.BA.ID)
	require.NoError(t, err)
	assert.Equal(t, programs.VoidProgramName, void.Name)
	assert.Equal(t, models.ProgramStatusDraft, void.Status)
	assert.Equal(t, models.ProgramKindVoid, void.Kind)

	again, err := resolver.VoidProgram(f.Ctx, f.BA.ID)
	require.NoError(t, err)
	assert.Equal(t, void.ID, again.ID)

	count, err := f.Store.Programs().Count(f.Ctx, store.Where(store.Eq("kind", string(models.ProgramKindVoid))))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCollectingTypeCode(t *testing.T) {
	f := testfixtures.New(t)
	resolver := programs.NewResolver(f.Store, testfixtures.Logger())
	full := f.CollectingType(models.CollectingTypeFull)
	odd := f.CollectingType("legacy")

	tests := []struct {
		name string
		rdi  *models.RegistrationDataImport
		want string
	}{
		{name: "known", rdi: f.RDI("a", full), want: models.CollectingTypeFull},
		{name: "unrecognised", rdi: f.RDI("b", odd), want: models.CollectingTypeUnknown},
		{name: "none", rdi: f.RDI("c", nil), want: models.CollectingTypeUnknown},
		{name: "nil rdi", rdi: nil, want: models.CollectingTypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolver.CollectingTypeCode(f.Ctx, tt.rdi)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOrdered(t *testing.T) {
	f := testfixtures.New(t)
	resolver := programs.NewResolver(f.Store, testfixtures.Logger())
	a := f.Program("A")
	b := f.Program("B")

	got, err := resolver.Ordered(f.Ctx, []string{b.ID, a.ID, b.ID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, a.ID, got[0].ID)
	assert.Equal(t, b.ID, got[1].ID)

	none, err := resolver.Ordered(f.Ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}
