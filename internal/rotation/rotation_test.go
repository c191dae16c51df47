package rotation_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/caskdb/caskdb/internal/rotation"
)

func Test_NullPolicy_NeverRotates(t *testing.T) {
	t.Parallel()

	p := rotation.NullPolicy{}
	require.False(t, p.ShouldRotate(1<<40, 1<<20, time.Now()))
}

func Test_SizePolicy_RotatesAtThreshold(t *testing.T) {
	t.Parallel()

	p := rotation.SizePolicy{MaxBytes: 1024}
	require.False(t, p.ShouldRotate(1023, 0, time.Now()))
	require.True(t, p.ShouldRotate(1024, 0, time.Now()))
}

func Test_EntryCountPolicy_RotatesAtThreshold(t *testing.T) {
	t.Parallel()

	p := rotation.EntryCountPolicy{MaxEntries: 10}
	require.False(t, p.ShouldRotate(0, 9, time.Now()))
	require.True(t, p.ShouldRotate(0, 10, time.Now()))
}

func Test_TimePolicy_RotatesAfterInterval(t *testing.T) {
	t.Parallel()

	start := time.Now()
	p := rotation.NewTimePolicy(time.Minute, start)

	require.False(t, p.ShouldRotate(0, 0, start.Add(30*time.Second)))
	require.True(t, p.ShouldRotate(0, 0, start.Add(61*time.Second)))
}

func Test_CompositePolicy_RotatesIfAnyMemberWould(t *testing.T) {
	t.Parallel()

	p := rotation.CompositePolicy{
		Policies: []rotation.Policy{
			rotation.SizePolicy{MaxBytes: 1 << 30},
			rotation.EntryCountPolicy{MaxEntries: 5},
		},
	}

	require.True(t, p.ShouldRotate(0, 5, time.Now()))
	require.False(t, p.ShouldRotate(0, 4, time.Now()))
}

func Test_FromConfig_NoTriggersYieldsNullPolicy(t *testing.T) {
	t.Parallel()

	p := rotation.FromConfig(0, 0, 0, time.Now())
	_, ok := p.(rotation.NullPolicy)
	require.True(t, ok)
}

func Test_FromConfig_SingleTriggerYieldsBarePolicy(t *testing.T) {
	t.Parallel()

	p := rotation.FromConfig(1024, 0, 0, time.Now())
	_, ok := p.(rotation.SizePolicy)
	require.True(t, ok)
}

func Test_FromConfig_MultipleTriggersYieldsComposite(t *testing.T) {
	t.Parallel()

	p := rotation.FromConfig(1024, 10, 0, time.Now())
	_, ok := p.(rotation.CompositePolicy)
	require.True(t, ok)
}
