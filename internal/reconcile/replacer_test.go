// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reconcile

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/harvest-reconcile/pkg/types"
)

type mockMutator struct {
	mock.Mock
}

func (m *mockMutator) Rename(ctx context.Context, storeID, newName string) error {
	return m.Called(ctx, storeID, newName).Error(0)
}

func (m *mockMutator) Remove(ctx context.Context, storeID string) error {
	return m.Called(ctx, storeID).Error(0)
}

// callOrder lists the recorded calls as "method:storeID".
func callOrder(m *mockMutator) []string {
	var order []string
	for _, c := range m.Calls {
		order = append(order, strings.ToLower(c.Method)+":"+c.Arguments.String(1))
	}
	return order
}

func newTestReplacer(store RecordMutator, maxNameLen int) (*Replacer, *bytes.Buffer) {
	var logs bytes.Buffer
	r := NewReplacer(store, maxNameLen, slog.New(slog.NewTextHandler(&logs, nil)))
	r.suffix = func() string { return "ab12z" }
	return r, &logs
}

func records(ids ...string) []types.LocalRecord {
	recs := make([]types.LocalRecord, len(ids))
	for i, id := range ids {
		recs[i] = types.LocalRecord{StoreID: id, Name: "dataset-" + strings.ToLower(id)}
	}
	return recs
}

func TestRetireRenamesAllBeforeRemoving(t *testing.T) {
	m := &mockMutator{}
	m.On("Rename", mock.Anything, "L1", "dataset-l1-deletedab12z").Return(nil)
	m.On("Rename", mock.Anything, "L2", "dataset-l2-deletedab12z").Return(nil)
	m.On("Remove", mock.Anything, "L1").Return(nil)
	m.On("Remove", mock.Anything, "L2").Return(nil)

	r, _ := newTestReplacer(m, 100)
	retired := r.Retire(context.Background(), records("L1", "L2"))

	assert.Equal(t, []string{"L1", "L2"}, retired)
	assert.Equal(t, []string{"rename:L1", "rename:L2", "remove:L1", "remove:L2"}, callOrder(m))
	m.AssertExpectations(t)
}

func TestRetireSkipsRemoveAfterFailedRename(t *testing.T) {
	m := &mockMutator{}
	m.On("Rename", mock.Anything, "L1", mock.Anything).Return(errors.New("disk full"))
	m.On("Rename", mock.Anything, "L2", mock.Anything).Return(nil)
	m.On("Remove", mock.Anything, "L2").Return(nil)

	r, logs := newTestReplacer(m, 100)
	retired := r.Retire(context.Background(), records("L1", "L2"))

	assert.Equal(t, []string{"L2"}, retired)
	m.AssertNotCalled(t, "Remove", mock.Anything, "L1")
	m.AssertExpectations(t)
	assert.Contains(t, logs.String(), "rename before delete failed")
	assert.Contains(t, logs.String(), "store_id=L1")
}

func TestRetireIsolatesRemoveFailure(t *testing.T) {
	m := &mockMutator{}
	m.On("Rename", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	m.On("Remove", mock.Anything, "L1").Return(nil)
	m.On("Remove", mock.Anything, "L2").Return(errors.New("locked"))
	m.On("Remove", mock.Anything, "L3").Return(nil)

	r, logs := newTestReplacer(m, 100)
	retired := r.Retire(context.Background(), records("L1", "L2", "L3"))

	assert.Equal(t, []string{"L1", "L3"}, retired)
	m.AssertExpectations(t)
	assert.Contains(t, logs.String(), "delete after rename failed")
}

func TestRetireNothing(t *testing.T) {
	m := &mockMutator{}
	r, _ := newTestReplacer(m, 100)

	assert.Empty(t, r.Retire(context.Background(), nil))
	m.AssertNotCalled(t, "Rename", mock.Anything, mock.Anything, mock.Anything)
	m.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything)
}

func TestRetiredName(t *testing.T) {
	tests := []struct {
		name       string
		maxNameLen int
		in         string
		want       string
	}{
		{"short name", 100, "annual-budget", "annual-budget-deletedab12z"},
		{"truncated to fit", 20, "annual-budget-2017", "annual--deletedab12z"},
		{"exact fit", 20, "annual-", "annual--deletedab12z"},
		{"multibyte runes are not split", 20, strings.Repeat("\u00e9", 11), strings.Repeat("\u00e9", 7) + "-deletedab12z"},
		{"decomposed input is composed first", 20, "cafe\u0301-cafe\u0301", "caf\u00e9-ca-deletedab12z"},
		{"limit too small falls back to default", 5, "x", "x-deletedab12z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestReplacer(&mockMutator{}, tt.maxNameLen)
			got := r.RetiredName(tt.in)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, utf8.RuneCountInString(got), r.maxNameLen)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestIsRetiredName(t *testing.T) {
	r, _ := newTestReplacer(&mockMutator{}, 20)
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"produced by RetiredName", r.RetiredName("annual-budget-2017"), true},
		{"random suffix", "budget-deleted" + randomSuffix(), true},
		{"plain name", "budget", false},
		{"marker without suffix", "budget-deleted", false},
		{"suffix too long", "budget-deletedab12zz", false},
		{"uppercase suffix", "budget-deletedAB12Z", false},
		{"marker in the middle", "budget-deletedab12z-v2", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetiredName(tt.in))
		})
	}
}

func TestRandomSuffix(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		s := randomSuffix()
		require.Len(t, s, suffixLen)
		for _, c := range s {
			assert.Contains(t, suffixAlpha, string(c))
		}
		seen[s] = true
	}
	assert.Greater(t, len(seen), 1)
}
