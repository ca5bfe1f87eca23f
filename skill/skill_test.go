package skill

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptor_Validate(t *testing.T) {
	tests := []struct {
		name       string
		descriptor Descriptor
		wantErr    error
	}{
		{
			name:       "valid",
			descriptor: Descriptor{ID: "EchoSkillBot", AppID: "app-1", Endpoint: "http://localhost:39783/api/messages"},
			wantErr:    nil,
		},
		{
			name:       "missing id",
			descriptor: Descriptor{AppID: "app-1", Endpoint: "http://localhost:39783/api/messages"},
			wantErr:    ErrMissingSkillID,
		},
		{
			name:       "missing app id",
			descriptor: Descriptor{ID: "EchoSkillBot", Endpoint: "http://localhost:39783/api/messages"},
			wantErr:    ErrMissingAppID,
		},
		{
			name:       "missing endpoint",
			descriptor: Descriptor{ID: "EchoSkillBot", AppID: "app-1"},
			wantErr:    ErrMissingEndpoint,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.descriptor.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestNewRegistry(t *testing.T) {
	t.Run("lookup", func(t *testing.T) {
		reg, err := NewRegistry([]Descriptor{
			{ID: "EchoSkillBot", AppID: "app-echo", Endpoint: "http://localhost:39783/api/messages"},
			{ID: "DiceSkillBot", AppID: "app-dice", Endpoint: "http://localhost:39784/api/messages"},
		})
		require.NoError(t, err)

		assert.Equal(t, 2, reg.Len())
		assert.True(t, reg.Has("EchoSkillBot"))
		assert.False(t, reg.Has("NoSuchBot"))
		assert.Equal(t, []string{"DiceSkillBot", "EchoSkillBot"}, reg.IDs())

		d, err := reg.Get("EchoSkillBot")
		require.NoError(t, err)
		assert.Equal(t, "app-echo", d.AppID)

		_, err = reg.Get("NoSuchBot")
		assert.ErrorIs(t, err, ErrSkillNotFound)
	})

	t.Run("duplicate id rejected", func(t *testing.T) {
		_, err := NewRegistry([]Descriptor{
			{ID: "EchoSkillBot", AppID: "a", Endpoint: "http://x/api/messages"},
			{ID: "EchoSkillBot", AppID: "b", Endpoint: "http://y/api/messages"},
		})
		assert.ErrorIs(t, err, ErrDuplicateSkill)
	})

	t.Run("invalid descriptor rejected", func(t *testing.T) {
		_, err := NewRegistry([]Descriptor{{ID: "", AppID: "a", Endpoint: "http://x"}})
		assert.ErrorIs(t, err, ErrMissingSkillID)
	})
}
