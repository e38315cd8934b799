package crawlers

import (
	"errors"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stretchr/testify/assert"
)

func TestResourceGuard_Check(t *testing.T) {
	const mb = 1024 * 1024

	tests := []struct {
		name      string
		available uint64
		memErr    error
		cpu       float64
		wantErr   bool
	}{
		{"资源充足", 2048 * mb, nil, 20, false},
		{"内存不足", 100 * mb, nil, 20, true},
		{"CPU过载", 2048 * mb, nil, 99, true},
		{"读取内存失败时放行", 0, errors.New("unsupported"), 20, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewResourceGuard(256, 90)
			g.virtualMemory = func() (*mem.VirtualMemoryStat, error) {
				if tt.memErr != nil {
					return nil, tt.memErr
				}
				return &mem.VirtualMemoryStat{Available: tt.available}, nil
			}
			g.cpuPercent = func(time.Duration, bool) ([]float64, error) {
				return []float64{tt.cpu}, nil
			}

			err := g.Check()
			assert.Equal(t, tt.wantErr, err != nil, "err=%v", err)
		})
	}
}

func TestResourceGuard_Disabled(t *testing.T) {
	g := NewResourceGuard(0, 0)
	g.virtualMemory = func() (*mem.VirtualMemoryStat, error) {
		t.Fatal("未启用内存检查时不应读取内存")
		return nil, nil
	}
	assert.NoError(t, g.Check())
}

func TestDynamicStrategy_ResourceGuardBlocksLaunch(t *testing.T) {
	g := NewResourceGuard(1024, 0)
	g.virtualMemory = func() (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{Available: 10 * 1024 * 1024}, nil
	}

	factory := newFakeFactory(t, fakeSession{html: cardsHTML})
	d := NewDynamicStrategy(testDynamicConfig(), factory, &Extractor{},
		WithDynamicSleeper(NoSleep), WithResourceGuard(g))

	result := d.Fetch(t.Context(), dynamicTarget())

	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "可用内存不足")
	acquired, _ := factory.counts()
	assert.Equal(t, 0, acquired)
}
