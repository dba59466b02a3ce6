package selection

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToggle(t *testing.T) {
	s := New()
	assert.True(t, s.Toggle(3))
	assert.True(t, s.Toggle(1))
	assert.True(t, s.IsSelected(3))
	assert.Equal(t, []int64{3, 1}, s.IDs())

	assert.False(t, s.Toggle(3))
	assert.False(t, s.IsSelected(3))
	assert.Equal(t, []int64{1}, s.IDs())
	assert.Equal(t, 1, s.Len())
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name     string
		selected []int64
		current  []int64
		dropped  []int64
		left     []int64
	}{
		{"nothing removed", []int64{1, 2}, []int64{1, 2, 3}, nil, []int64{1, 2}},
		{"selected id deleted", []int64{1, 2}, []int64{2}, []int64{1}, []int64{2}},
		{"store emptied", []int64{1, 2}, nil, []int64{1, 2}, []int64{}},
		{"empty selection", nil, []int64{1}, nil, []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			for _, id := range tt.selected {
				s.Toggle(id)
			}
			current := make(map[int64]struct{})
			for _, id := range tt.current {
				current[id] = struct{}{}
			}
			assert.Equal(t, tt.dropped, s.Reconcile(current))
			assert.Equal(t, tt.left, s.IDs())
			for _, id := range tt.dropped {
				assert.False(t, s.IsSelected(id))
			}
		})
	}
}

func TestClear(t *testing.T) {
	s := New()
	s.Toggle(1)
	s.Toggle(2)
	s.Clear()
	assert.Zero(t, s.Len())
	assert.False(t, s.IsSelected(1))
	assert.True(t, s.Toggle(1), "set is usable after clear")
}

func TestConcurrentToggle(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			s.Toggle(id)
			s.IsSelected(id)
		}(int64(i))
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len())
}
