package limits

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePayloadSize(t *testing.T) {
	tests := []struct {
		name    string
		size    uint64
		wantErr error
	}{
		{name: "empty", size: 0},
		{name: "small", size: 2000},
		{name: "max", size: MaxPayloadSize},
		{name: "over", size: MaxPayloadSize + 1, wantErr: ErrPayloadTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePayloadSize(tt.size)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestValidateChunkCount(t *testing.T) {
	assert.NoError(t, ValidateChunkCount(0))
	assert.NoError(t, ValidateChunkCount(MaxChunkCount))
	assert.ErrorIs(t, ValidateChunkCount(MaxChunkCount+1), ErrTooManyChunks)
}

func TestValidateChunkIndex(t *testing.T) {
	assert.NoError(t, ValidateChunkIndex(0))
	assert.NoError(t, ValidateChunkIndex(MaxChunkIndex))
	assert.ErrorIs(t, ValidateChunkIndex(-1), ErrChunkIndexOutOfRange)
	assert.ErrorIs(t, ValidateChunkIndex(MaxChunkIndex+1), ErrChunkIndexOutOfRange)
}

func TestFieldWidthsMatchLimits(t *testing.T) {
	assert.Equal(t, uint64(1)<<(8*SizeFieldWidth)-1, uint64(MaxPayloadSize))
	assert.Equal(t, 1<<(8*CountFieldWidth)-1, MaxChunkCount)
	assert.Equal(t, 1<<(8*IndexFieldWidth)-1, MaxChunkIndex)
}
