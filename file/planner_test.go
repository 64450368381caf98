package file

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlanChunks(t *testing.T) {
	cfg := DefaultPlannerConfig()

	tests := []struct {
		name      string
		size      int
		wantPer   int
		wantCount int
	}{
		{"empty", 0, 1024, 0},
		{"single byte", 1, 1024, 1},
		{"two chunks", testSizeTwoChunks, 1024, 2},
		{"exact default ceiling", 512 * 1024, 1024, 512},
		{"one byte over ceiling", 512*1024 + 1, 1040, 505},
		{"large payload", testSizeLarge, 3920, 511},
		{"clamped to max", 4 * 1024 * 1024, 4096, 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := PlanChunks(tt.size, cfg)
			assert.Equal(t, tt.wantPer, plan.ChunkSize)
			assert.Equal(t, tt.wantCount, plan.ChunkCount)
		})
	}
}

func TestPlanChunks_Properties(t *testing.T) {
	cfg := DefaultPlannerConfig()
	maxSize := cfg.MaxPackets * cfg.MaxChunkSize

	for size := 0; size <= maxSize; size += 7919 {
		plan := PlanChunks(size, cfg)
		if plan.ChunkSize != cfg.DefaultChunkSize {
			assert.GreaterOrEqual(t, plan.ChunkSize, cfg.MinChunkSize, "size %d", size)
			assert.LessOrEqual(t, plan.ChunkSize, cfg.MaxChunkSize, "size %d", size)
			assert.Zero(t, plan.ChunkSize%cfg.Alignment, "size %d", size)
		}
		assert.LessOrEqual(t, plan.ChunkCount, cfg.MaxPackets, "size %d", size)
		assert.Equal(t, ceilDiv(size, plan.ChunkSize), plan.ChunkCount, "size %d", size)
	}
}

func TestPlanChunks_MinimumClamp(t *testing.T) {
	cfg := PlannerConfig{
		DefaultChunkSize: 64,
		MaxPackets:       4,
		MinChunkSize:     512,
		MaxChunkSize:     4096,
		Alignment:        16,
	}

	plan := PlanChunks(1000, cfg)
	assert.Equal(t, 512, plan.ChunkSize)
	assert.Equal(t, 2, plan.ChunkCount)
}

func TestPlanChunks_ZeroConfig(t *testing.T) {
	plan := PlanChunks(testSizeTwoChunks, PlannerConfig{})
	assert.Equal(t, 1024, plan.ChunkSize)
	assert.Equal(t, 2, plan.ChunkCount)
}

func TestChunkPlan_Bounds(t *testing.T) {
	plan := ChunkPlan{ChunkSize: 1024, ChunkCount: 2}

	start, end := plan.Bounds(0, testSizeTwoChunks)
	assert.Equal(t, 0, start)
	assert.Equal(t, 1024, end)

	start, end = plan.Bounds(1, testSizeTwoChunks)
	assert.Equal(t, 1024, start)
	assert.Equal(t, testSizeTwoChunks, end)

	start, end = plan.Bounds(5, testSizeTwoChunks)
	assert.Equal(t, testSizeTwoChunks, start)
	assert.Equal(t, testSizeTwoChunks, end)
}
